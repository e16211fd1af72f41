package report

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

var (
	validTypes   = []string{types.ReportTypeActivity, types.ReportTypeInstructor, types.ReportTypeEvent, types.ReportTypeGeneral}
	validFormats = []string{types.ReportFormatExcel, types.ReportFormatPDF, types.ReportFormatCSV}
)

var _ ReportService = (*ReportServiceImpl)(nil)

type ReportService interface {
	// Create requires admin or superadmin.
	Create(ctx context.Context, p types.Principal, params types.CreateReportParams) (*types.Report, error)
	Get(ctx context.Context, p types.Principal, id uuid.UUID) (*types.Report, error)
	List(ctx context.Context, p types.Principal, params url.Values) ([]types.Report, types.PageMeta, error)
	// Delete requires superadmin.
	Delete(ctx context.Context, p types.Principal, id uuid.UUID) error
}

type ReportServiceImpl struct {
	logger *slog.Logger
	repo   ReportRepository
}

func NewReportService(repo ReportRepository, logger *slog.Logger) *ReportServiceImpl {
	return &ReportServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *ReportServiceImpl) Create(ctx context.Context, p types.Principal, params types.CreateReportParams) (*types.Report, error) {
	ctx, span := otel.Tracer("ReportService").Start(ctx, "Create", trace.WithAttributes(
		attribute.String("user.id", p.ID),
		attribute.String("report.type", params.Type),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Create"), slog.String("userID", p.ID))

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.ErrForbidden
	}
	if strings.TrimSpace(params.Title) == "" ||
		!slices.Contains(validTypes, params.Type) ||
		!slices.Contains(validFormats, params.Format) {
		return nil, fmt.Errorf("invalid report payload: %w", types.ErrValidation)
	}
	creatorID, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("bad principal id: %w", types.ErrValidation)
	}

	report, err := s.repo.Create(ctx, creatorID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create report", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create report")
		return nil, fmt.Errorf("creating report: %w", err)
	}

	l.InfoContext(ctx, "Report created", slog.String("reportID", report.ID.String()))
	return report, nil
}

func (s *ReportServiceImpl) Get(ctx context.Context, p types.Principal, id uuid.UUID) (*types.Report, error) {
	ctx, span := otel.Tracer("ReportService").Start(ctx, "Get", trace.WithAttributes(
		attribute.String("report.id", id.String()),
	))
	defer span.End()

	report, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch report")
		}
		return nil, fmt.Errorf("fetching report: %w", err)
	}
	// Instructors only see reports they created.
	if p.Role == types.RoleInstructor && p.ID != report.CreatorID.String() {
		return nil, types.ErrForbidden
	}
	return report, nil
}

func (s *ReportServiceImpl) List(ctx context.Context, p types.Principal, params url.Values) ([]types.Report, types.PageMeta, error) {
	ctx, span := otel.Tracer("ReportService").Start(ctx, "List", trace.WithAttributes(
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	filter := search.BuildSearchQuery(params,
		[]string{"title"},
		[]string{"type", "format", "status"},
		nil,
		nil,
	)
	if p.Role == types.RoleInstructor {
		filter.Append("creator_id = $%d", p.ID)
	}
	page := search.BuildPaginationOptions(params, defaultPageSize)
	sort := search.BuildSortOptions(params, "createdAt", true)

	reports, total, err := s.repo.List(ctx, filter, page, sort)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list reports")
		return nil, types.PageMeta{}, fmt.Errorf("listing reports: %w", err)
	}
	return reports, types.NewPageMeta(total, page.Page, page.Limit), nil
}

func (s *ReportServiceImpl) Delete(ctx context.Context, p types.Principal, id uuid.UUID) error {
	ctx, span := otel.Tracer("ReportService").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("report.id", id.String()),
	))
	defer span.End()

	if p.Role != types.RoleSuperadmin {
		return types.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to delete report")
		}
		return fmt.Errorf("deleting report: %w", err)
	}
	s.logger.InfoContext(ctx, "Report deleted",
		slog.String("reportID", id.String()), slog.String("userID", p.ID))
	return nil
}
