package guide

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
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

// VersionComparison pairs two snapshots with the fields that differ
// between them.
type VersionComparison struct {
	Base          *types.GuideVersion `json:"base"`
	Other         *types.GuideVersion `json:"other"`
	ChangedFields []string            `json:"changed_fields"`
}

var _ GuideService = (*GuideServiceImpl)(nil)

type GuideService interface {
	Create(ctx context.Context, p types.Principal, params types.CreateGuideParams) (*types.Guide, error)
	Get(ctx context.Context, p types.Principal, id uuid.UUID) (*types.Guide, error)
	// List combines the declared field filters with the free-form
	// `search` param over title, introduction and development.
	List(ctx context.Context, p types.Principal, params url.Values) ([]types.Guide, types.PageMeta, error)
	Update(ctx context.Context, p types.Principal, id uuid.UUID, params types.UpdateGuideParams) (*types.Guide, error)
	Delete(ctx context.Context, p types.Principal, id uuid.UUID) error

	CreateVersion(ctx context.Context, p types.Principal, guideID uuid.UUID, changeDescription string) (*types.GuideVersion, error)
	ListVersions(ctx context.Context, p types.Principal, guideID uuid.UUID) ([]types.GuideVersion, error)
	GetVersion(ctx context.Context, p types.Principal, guideID uuid.UUID, versionNumber int) (*types.GuideVersion, error)
	CompareVersions(ctx context.Context, p types.Principal, guideID uuid.UUID, base, other int) (*VersionComparison, error)
	// RestoreVersion snapshots the current content first, so the restore
	// itself appears in the history.
	RestoreVersion(ctx context.Context, p types.Principal, guideID uuid.UUID, versionNumber int) (*types.Guide, error)
}

type GuideServiceImpl struct {
	logger *slog.Logger
	repo   GuideRepository
}

func NewGuideService(repo GuideRepository, logger *slog.Logger) *GuideServiceImpl {
	return &GuideServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func canAccess(p types.Principal, ownerID uuid.UUID) bool {
	return p.HasRole(types.RoleAdmin, types.RoleSuperadmin) || p.ID == ownerID.String()
}

func (s *GuideServiceImpl) Create(ctx context.Context, p types.Principal, params types.CreateGuideParams) (*types.Guide, error) {
	ctx, span := otel.Tracer("GuideService").Start(ctx, "Create", trace.WithAttributes(
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Create"), slog.String("userID", p.ID))

	if strings.TrimSpace(params.Title) == "" || params.ActivityID == uuid.Nil {
		return nil, fmt.Errorf("title and activity are required: %w", types.ErrValidation)
	}
	instructorID, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("bad principal id: %w", types.ErrValidation)
	}

	guide, err := s.repo.Create(ctx, instructorID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create guide", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create guide")
		return nil, fmt.Errorf("creating guide: %w", err)
	}

	l.InfoContext(ctx, "Guide created", slog.String("guideID", guide.ID.String()))
	span.SetStatus(codes.Ok, "Guide created")
	return guide, nil
}

func (s *GuideServiceImpl) Get(ctx context.Context, p types.Principal, id uuid.UUID) (*types.Guide, error) {
	ctx, span := otel.Tracer("GuideService").Start(ctx, "Get", trace.WithAttributes(
		attribute.String("guide.id", id.String()),
	))
	defer span.End()

	guide, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch guide")
		}
		return nil, fmt.Errorf("fetching guide: %w", err)
	}
	if !canAccess(p, guide.InstructorID) {
		return nil, types.ErrForbidden
	}
	return guide, nil
}

func (s *GuideServiceImpl) List(ctx context.Context, p types.Principal, params url.Values) ([]types.Guide, types.PageMeta, error) {
	ctx, span := otel.Tracer("GuideService").Start(ctx, "List", trace.WithAttributes(
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "List"), slog.String("userID", p.ID))

	filter := search.BuildSearchQuery(params,
		[]string{"title"},
		[]string{"status", "category", "difficulty", "instructorId"},
		[]string{"estimatedTime"},
		[]string{"tags"},
	)
	filter = search.BuildFullTextSearch(params.Get("search"),
		[]string{"title", "introduction", "development"}, filter)
	if p.Role == types.RoleInstructor {
		filter.Append("instructor_id = $%d", p.ID)
	}
	page := search.BuildPaginationOptions(params, defaultPageSize)
	sort := search.BuildSortOptions(params, "createdAt", true)

	guides, total, err := s.repo.List(ctx, filter, page, sort)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list guides", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list guides")
		return nil, types.PageMeta{}, fmt.Errorf("listing guides: %w", err)
	}
	return guides, types.NewPageMeta(total, page.Page, page.Limit), nil
}

func (s *GuideServiceImpl) Update(ctx context.Context, p types.Principal, id uuid.UUID, params types.UpdateGuideParams) (*types.Guide, error) {
	ctx, span := otel.Tracer("GuideService").Start(ctx, "Update", trace.WithAttributes(
		attribute.String("guide.id", id.String()),
	))
	defer span.End()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching guide: %w", err)
	}
	if !canAccess(p, current.InstructorID) {
		return nil, types.ErrForbidden
	}
	// Only admins decide the review status; instructors cannot approve
	// their own guides.
	if params.Status != nil && !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.ErrForbidden
	}

	updated, err := s.repo.Update(ctx, id, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update guide")
		return nil, fmt.Errorf("updating guide: %w", err)
	}
	return updated, nil
}

func (s *GuideServiceImpl) Delete(ctx context.Context, p types.Principal, id uuid.UUID) error {
	ctx, span := otel.Tracer("GuideService").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("guide.id", id.String()),
	))
	defer span.End()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching guide: %w", err)
	}
	if !canAccess(p, current.InstructorID) {
		return types.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete guide")
		return fmt.Errorf("deleting guide: %w", err)
	}
	return nil
}

func (s *GuideServiceImpl) CreateVersion(ctx context.Context, p types.Principal, guideID uuid.UUID, changeDescription string) (*types.GuideVersion, error) {
	ctx, span := otel.Tracer("GuideService").Start(ctx, "CreateVersion", trace.WithAttributes(
		attribute.String("guide.id", guideID.String()),
	))
	defer span.End()

	guide, err := s.repo.Get(ctx, guideID)
	if err != nil {
		return nil, fmt.Errorf("fetching guide: %w", err)
	}
	if !canAccess(p, guide.InstructorID) {
		return nil, types.ErrForbidden
	}
	changedBy, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("bad principal id: %w", types.ErrValidation)
	}

	version, err := s.repo.CreateVersion(ctx, guideID, changedBy, changeDescription)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create guide version")
		return nil, fmt.Errorf("creating guide version: %w", err)
	}
	s.logger.InfoContext(ctx, "Guide version created",
		slog.String("guideID", guideID.String()),
		slog.Int("version", version.VersionNumber))
	return version, nil
}

func (s *GuideServiceImpl) ListVersions(ctx context.Context, p types.Principal, guideID uuid.UUID) ([]types.GuideVersion, error) {
	ctx, span := otel.Tracer("GuideService").Start(ctx, "ListVersions", trace.WithAttributes(
		attribute.String("guide.id", guideID.String()),
	))
	defer span.End()

	guide, err := s.repo.Get(ctx, guideID)
	if err != nil {
		return nil, fmt.Errorf("fetching guide: %w", err)
	}
	if !canAccess(p, guide.InstructorID) {
		return nil, types.ErrForbidden
	}
	return s.repo.ListVersions(ctx, guideID)
}

func (s *GuideServiceImpl) GetVersion(ctx context.Context, p types.Principal, guideID uuid.UUID, versionNumber int) (*types.GuideVersion, error) {
	guide, err := s.repo.Get(ctx, guideID)
	if err != nil {
		return nil, fmt.Errorf("fetching guide: %w", err)
	}
	if !canAccess(p, guide.InstructorID) {
		return nil, types.ErrForbidden
	}
	return s.repo.GetVersion(ctx, guideID, versionNumber)
}

func (s *GuideServiceImpl) CompareVersions(ctx context.Context, p types.Principal, guideID uuid.UUID, base, other int) (*VersionComparison, error) {
	ctx, span := otel.Tracer("GuideService").Start(ctx, "CompareVersions", trace.WithAttributes(
		attribute.String("guide.id", guideID.String()),
		attribute.Int("version.base", base),
		attribute.Int("version.other", other),
	))
	defer span.End()

	guide, err := s.repo.Get(ctx, guideID)
	if err != nil {
		return nil, fmt.Errorf("fetching guide: %w", err)
	}
	if !canAccess(p, guide.InstructorID) {
		return nil, types.ErrForbidden
	}

	baseV, err := s.repo.GetVersion(ctx, guideID, base)
	if err != nil {
		return nil, fmt.Errorf("fetching base version: %w", err)
	}
	otherV, err := s.repo.GetVersion(ctx, guideID, other)
	if err != nil {
		return nil, fmt.Errorf("fetching other version: %w", err)
	}

	return &VersionComparison{
		Base:          baseV,
		Other:         otherV,
		ChangedFields: diffVersions(baseV, otherV),
	}, nil
}

func (s *GuideServiceImpl) RestoreVersion(ctx context.Context, p types.Principal, guideID uuid.UUID, versionNumber int) (*types.Guide, error) {
	ctx, span := otel.Tracer("GuideService").Start(ctx, "RestoreVersion", trace.WithAttributes(
		attribute.String("guide.id", guideID.String()),
		attribute.Int("version", versionNumber),
	))
	defer span.End()

	guide, err := s.repo.Get(ctx, guideID)
	if err != nil {
		return nil, fmt.Errorf("fetching guide: %w", err)
	}
	if !canAccess(p, guide.InstructorID) {
		return nil, types.ErrForbidden
	}
	target, err := s.repo.GetVersion(ctx, guideID, versionNumber)
	if err != nil {
		return nil, fmt.Errorf("fetching version to restore: %w", err)
	}
	changedBy, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("bad principal id: %w", types.ErrValidation)
	}

	// Snapshot current content before overwriting it.
	if _, err := s.repo.CreateVersion(ctx, guideID, changedBy,
		fmt.Sprintf("Restauración a la versión %d", versionNumber)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to snapshot before restore")
		return nil, fmt.Errorf("snapshotting before restore: %w", err)
	}

	restored, err := s.repo.RestoreVersion(ctx, guideID, target)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to restore guide version")
		return nil, fmt.Errorf("restoring guide version: %w", err)
	}
	return restored, nil
}

func diffVersions(a, b *types.GuideVersion) []string {
	var changed []string
	if a.Title != b.Title {
		changed = append(changed, "title")
	}
	if a.Introduction != b.Introduction {
		changed = append(changed, "introduction")
	}
	if !slices.Equal(a.Objectives, b.Objectives) {
		changed = append(changed, "objectives")
	}
	if !slices.Equal(a.Materials, b.Materials) {
		changed = append(changed, "materials")
	}
	if a.Development != b.Development {
		changed = append(changed, "development")
	}
	if a.Evaluation != b.Evaluation {
		changed = append(changed, "evaluation")
	}
	if !slices.Equal(a.Resources, b.Resources) {
		changed = append(changed, "resources")
	}
	if changed == nil {
		changed = []string{}
	}
	return changed
}
