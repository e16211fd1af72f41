package activity

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

var _ ActivityService = (*ActivityServiceImpl)(nil)

type ActivityService interface {
	Create(ctx context.Context, p types.Principal, params types.CreateActivityParams) (*types.Activity, error)
	Get(ctx context.Context, p types.Principal, id uuid.UUID) (*types.Activity, error)
	// List honours the shared query-string contract. Instructors only
	// ever see their own activities, whatever filters they send.
	List(ctx context.Context, p types.Principal, params url.Values) ([]types.Activity, types.PageMeta, error)
	Update(ctx context.Context, p types.Principal, id uuid.UUID, params types.UpdateActivityParams) (*types.Activity, error)
	Delete(ctx context.Context, p types.Principal, id uuid.UUID) error
}

type ActivityServiceImpl struct {
	logger *slog.Logger
	repo   ActivityRepository
}

func NewActivityService(repo ActivityRepository, logger *slog.Logger) *ActivityServiceImpl {
	return &ActivityServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *ActivityServiceImpl) Create(ctx context.Context, p types.Principal, params types.CreateActivityParams) (*types.Activity, error) {
	ctx, span := otel.Tracer("ActivityService").Start(ctx, "Create", trace.WithAttributes(
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Create"), slog.String("userID", p.ID))

	if strings.TrimSpace(params.Title) == "" {
		return nil, fmt.Errorf("title is required: %w", types.ErrValidation)
	}
	instructorID, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("bad principal id: %w", types.ErrValidation)
	}

	activity, err := s.repo.Create(ctx, instructorID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create activity", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create activity")
		return nil, fmt.Errorf("creating activity: %w", err)
	}

	l.InfoContext(ctx, "Activity created", slog.String("activityID", activity.ID.String()))
	span.SetStatus(codes.Ok, "Activity created")
	return activity, nil
}

func (s *ActivityServiceImpl) Get(ctx context.Context, p types.Principal, id uuid.UUID) (*types.Activity, error) {
	ctx, span := otel.Tracer("ActivityService").Start(ctx, "Get", trace.WithAttributes(
		attribute.String("activity.id", id.String()),
	))
	defer span.End()

	activity, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch activity")
		}
		return nil, fmt.Errorf("fetching activity: %w", err)
	}
	if !canAccess(p, activity.InstructorID) {
		return nil, types.ErrForbidden
	}
	return activity, nil
}

func (s *ActivityServiceImpl) List(ctx context.Context, p types.Principal, params url.Values) ([]types.Activity, types.PageMeta, error) {
	ctx, span := otel.Tracer("ActivityService").Start(ctx, "List", trace.WithAttributes(
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "List"), slog.String("userID", p.ID))

	filter := search.BuildSearchQuery(params,
		[]string{"title", "description"},
		[]string{"status", "category", "priority"},
		[]string{"progress"},
		[]string{"tags"},
	)
	if p.Role == types.RoleInstructor {
		filter.Append("instructor_id = $%d", p.ID)
	}
	page := search.BuildPaginationOptions(params, defaultPageSize)
	sort := search.BuildSortOptions(params, "createdAt", true)

	activities, total, err := s.repo.List(ctx, filter, page, sort)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list activities", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list activities")
		return nil, types.PageMeta{}, fmt.Errorf("listing activities: %w", err)
	}
	return activities, types.NewPageMeta(total, page.Page, page.Limit), nil
}

func (s *ActivityServiceImpl) Update(ctx context.Context, p types.Principal, id uuid.UUID, params types.UpdateActivityParams) (*types.Activity, error) {
	ctx, span := otel.Tracer("ActivityService").Start(ctx, "Update", trace.WithAttributes(
		attribute.String("activity.id", id.String()),
	))
	defer span.End()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching activity: %w", err)
	}
	if !canAccess(p, current.InstructorID) {
		return nil, types.ErrForbidden
	}

	updated, err := s.repo.Update(ctx, id, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update activity")
		return nil, fmt.Errorf("updating activity: %w", err)
	}
	return updated, nil
}

func (s *ActivityServiceImpl) Delete(ctx context.Context, p types.Principal, id uuid.UUID) error {
	ctx, span := otel.Tracer("ActivityService").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("activity.id", id.String()),
	))
	defer span.End()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching activity: %w", err)
	}
	if !canAccess(p, current.InstructorID) {
		return types.ErrForbidden
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete activity")
		return fmt.Errorf("deleting activity: %w", err)
	}
	s.logger.InfoContext(ctx, "Activity deleted",
		slog.String("activityID", id.String()), slog.String("userID", p.ID))
	return nil
}

// canAccess allows the owning instructor plus admins and superadmins.
func canAccess(p types.Principal, ownerID uuid.UUID) bool {
	return p.HasRole(types.RoleAdmin, types.RoleSuperadmin) || p.ID == ownerID.String()
}
