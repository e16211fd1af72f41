package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aulaplan/aulaplan/internal/api/search"
	"github.com/aulaplan/aulaplan/internal/types"
)

const defaultPageSize = 10

var _ FeedbackService = (*FeedbackServiceImpl)(nil)

type FeedbackService interface {
	// Create accepts feedback from any authenticated user.
	Create(ctx context.Context, p types.Principal, params types.CreateFeedbackParams) (*types.Feedback, error)
	Get(ctx context.Context, p types.Principal, id uuid.UUID) (*types.Feedback, error)
	// List is the admin view over all feedback.
	List(ctx context.Context, p types.Principal, params url.Values) ([]types.Feedback, types.PageMeta, error)
	// ListMine returns only the caller's own feedback.
	ListMine(ctx context.Context, p types.Principal, params url.Values) ([]types.Feedback, types.PageMeta, error)
	// Respond requires admin or superadmin.
	Respond(ctx context.Context, p types.Principal, id uuid.UUID, text, status string) (*types.Feedback, error)
}

type FeedbackServiceImpl struct {
	logger *slog.Logger
	repo   FeedbackRepository
}

func NewFeedbackService(repo FeedbackRepository, logger *slog.Logger) *FeedbackServiceImpl {
	return &FeedbackServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *FeedbackServiceImpl) Create(ctx context.Context, p types.Principal, params types.CreateFeedbackParams) (*types.Feedback, error) {
	ctx, span := otel.Tracer("FeedbackService").Start(ctx, "Create", trace.WithAttributes(
		attribute.String("user.id", p.ID),
		attribute.String("feedback.target_type", params.TargetType),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Create"), slog.String("userID", p.ID))

	if strings.TrimSpace(params.Comment) == "" {
		return nil, fmt.Errorf("empty comment: %w", types.ErrValidation)
	}
	if params.Rating != nil && (*params.Rating < 1 || *params.Rating > 5) {
		return nil, fmt.Errorf("rating out of range: %w", types.ErrValidation)
	}

	switch params.TargetType {
	case types.FeedbackTargetGuide, types.FeedbackTargetActivity:
		if params.TargetID == nil {
			return nil, fmt.Errorf("missing target id: %w", types.ErrValidation)
		}
		if params.Rating == nil {
			return nil, fmt.Errorf("missing rating: %w", types.ErrValidation)
		}
		exists, err := s.repo.TargetExists(ctx, params.TargetType, *params.TargetID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to check feedback target")
			return nil, fmt.Errorf("checking feedback target: %w", err)
		}
		if !exists {
			return nil, types.ErrNotFound
		}
	case types.FeedbackTargetSystem:
		// System feedback carries no target and the rating stays optional.
		params.TargetID = nil
	default:
		return nil, fmt.Errorf("unknown target type %q: %w", params.TargetType, types.ErrValidation)
	}

	userID, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("bad principal id: %w", types.ErrValidation)
	}

	fb, err := s.repo.Create(ctx, userID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create feedback", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create feedback")
		return nil, fmt.Errorf("creating feedback: %w", err)
	}

	l.InfoContext(ctx, "Feedback created", slog.String("feedbackID", fb.ID.String()))
	return fb, nil
}

func (s *FeedbackServiceImpl) Get(ctx context.Context, p types.Principal, id uuid.UUID) (*types.Feedback, error) {
	ctx, span := otel.Tracer("FeedbackService").Start(ctx, "Get", trace.WithAttributes(
		attribute.String("feedback.id", id.String()),
	))
	defer span.End()

	fb, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch feedback")
		}
		return nil, fmt.Errorf("fetching feedback: %w", err)
	}
	// Instructors only see their own feedback.
	if p.Role == types.RoleInstructor && p.ID != fb.UserID.String() {
		return nil, types.ErrForbidden
	}
	return fb, nil
}

func (s *FeedbackServiceImpl) List(ctx context.Context, p types.Principal, params url.Values) ([]types.Feedback, types.PageMeta, error) {
	ctx, span := otel.Tracer("FeedbackService").Start(ctx, "List", trace.WithAttributes(
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.PageMeta{}, types.ErrForbidden
	}
	filter := search.BuildSearchQuery(params,
		nil,
		[]string{"status", "targetType", "userId"},
		[]string{"rating"},
		nil,
	)
	return s.list(ctx, span, filter, params)
}

func (s *FeedbackServiceImpl) ListMine(ctx context.Context, p types.Principal, params url.Values) ([]types.Feedback, types.PageMeta, error) {
	ctx, span := otel.Tracer("FeedbackService").Start(ctx, "ListMine", trace.WithAttributes(
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	filter := search.BuildSearchQuery(params,
		nil,
		[]string{"status", "targetType"},
		nil,
		nil,
	)
	filter.Append("user_id = $%d", p.ID)
	return s.list(ctx, span, filter, params)
}

func (s *FeedbackServiceImpl) list(ctx context.Context, span trace.Span, filter search.Filter, params url.Values) ([]types.Feedback, types.PageMeta, error) {
	page := search.BuildPaginationOptions(params, defaultPageSize)
	sort := search.BuildSortOptions(params, "createdAt", true)

	items, total, err := s.repo.List(ctx, filter, page, sort)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list feedback")
		return nil, types.PageMeta{}, fmt.Errorf("listing feedback: %w", err)
	}
	return items, types.NewPageMeta(total, page.Page, page.Limit), nil
}

func (s *FeedbackServiceImpl) Respond(ctx context.Context, p types.Principal, id uuid.UUID, text, status string) (*types.Feedback, error) {
	ctx, span := otel.Tracer("FeedbackService").Start(ctx, "Respond", trace.WithAttributes(
		attribute.String("feedback.id", id.String()),
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.ErrForbidden
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty response: %w", types.ErrValidation)
	}
	if status == "" {
		status = types.FeedbackStatusReviewed
	}
	if status != types.FeedbackStatusReviewed && status != types.FeedbackStatusResolved {
		return nil, fmt.Errorf("invalid status %q: %w", status, types.ErrValidation)
	}
	respondedBy, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("bad principal id: %w", types.ErrValidation)
	}

	fb, err := s.repo.Respond(ctx, id, respondedBy, text, status)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to respond to feedback")
		}
		return nil, fmt.Errorf("responding to feedback: %w", err)
	}

	s.logger.InfoContext(ctx, "Feedback responded",
		slog.String("feedbackID", id.String()), slog.String("userID", p.ID))
	return fb, nil
}
