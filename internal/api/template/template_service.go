package template

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

var validTypes = []string{types.TemplateTypeGuide, types.TemplateTypeActivity, types.TemplateTypeReport}

var _ TemplateService = (*TemplateServiceImpl)(nil)

type TemplateService interface {
	// Create requires admin or superadmin.
	Create(ctx context.Context, p types.Principal, params types.CreateTemplateParams) (*types.Template, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Template, error)
	List(ctx context.Context, params url.Values) ([]types.Template, types.PageMeta, error)
	// Update requires admin or superadmin.
	Update(ctx context.Context, p types.Principal, id uuid.UUID, params types.UpdateTemplateParams) (*types.Template, error)
	// Delete requires superadmin.
	Delete(ctx context.Context, p types.Principal, id uuid.UUID) error
}

type TemplateServiceImpl struct {
	logger *slog.Logger
	repo   TemplateRepository
}

func NewTemplateService(repo TemplateRepository, logger *slog.Logger) *TemplateServiceImpl {
	return &TemplateServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func (s *TemplateServiceImpl) Create(ctx context.Context, p types.Principal, params types.CreateTemplateParams) (*types.Template, error) {
	ctx, span := otel.Tracer("TemplateService").Start(ctx, "Create", trace.WithAttributes(
		attribute.String("user.id", p.ID),
		attribute.String("template.type", params.Type),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Create"), slog.String("userID", p.ID))

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.ErrForbidden
	}
	if strings.TrimSpace(params.Name) == "" || !slices.Contains(validTypes, params.Type) {
		return nil, fmt.Errorf("invalid template payload: %w", types.ErrValidation)
	}
	creatorID, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("bad principal id: %w", types.ErrValidation)
	}

	tpl, err := s.repo.Create(ctx, creatorID, params)
	if err != nil {
		if !errors.Is(err, types.ErrConflict) {
			l.ErrorContext(ctx, "Failed to create template", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to create template")
		}
		return nil, fmt.Errorf("creating template: %w", err)
	}

	l.InfoContext(ctx, "Template created", slog.String("templateID", tpl.ID.String()))
	return tpl, nil
}

func (s *TemplateServiceImpl) Get(ctx context.Context, id uuid.UUID) (*types.Template, error) {
	ctx, span := otel.Tracer("TemplateService").Start(ctx, "Get", trace.WithAttributes(
		attribute.String("template.id", id.String()),
	))
	defer span.End()

	tpl, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch template")
		}
		return nil, fmt.Errorf("fetching template: %w", err)
	}
	return tpl, nil
}

func (s *TemplateServiceImpl) List(ctx context.Context, params url.Values) ([]types.Template, types.PageMeta, error) {
	ctx, span := otel.Tracer("TemplateService").Start(ctx, "List")
	defer span.End()

	filter := search.BuildSearchQuery(params,
		[]string{"name", "description"},
		[]string{"type"},
		nil,
		nil,
	)
	page := search.BuildPaginationOptions(params, defaultPageSize)
	sort := search.BuildSortOptions(params, "createdAt", true)

	templates, total, err := s.repo.List(ctx, filter, page, sort)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list templates")
		return nil, types.PageMeta{}, fmt.Errorf("listing templates: %w", err)
	}
	return templates, types.NewPageMeta(total, page.Page, page.Limit), nil
}

func (s *TemplateServiceImpl) Update(ctx context.Context, p types.Principal, id uuid.UUID, params types.UpdateTemplateParams) (*types.Template, error) {
	ctx, span := otel.Tracer("TemplateService").Start(ctx, "Update", trace.WithAttributes(
		attribute.String("template.id", id.String()),
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.ErrForbidden
	}
	if params.Type != nil && !slices.Contains(validTypes, *params.Type) {
		return nil, fmt.Errorf("invalid template type %q: %w", *params.Type, types.ErrValidation)
	}
	if params.Name != nil && strings.TrimSpace(*params.Name) == "" {
		return nil, fmt.Errorf("empty template name: %w", types.ErrValidation)
	}

	tpl, err := s.repo.Update(ctx, id, params)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) && !errors.Is(err, types.ErrConflict) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to update template")
		}
		return nil, fmt.Errorf("updating template: %w", err)
	}

	s.logger.InfoContext(ctx, "Template updated",
		slog.String("templateID", id.String()), slog.String("userID", p.ID))
	return tpl, nil
}

func (s *TemplateServiceImpl) Delete(ctx context.Context, p types.Principal, id uuid.UUID) error {
	ctx, span := otel.Tracer("TemplateService").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("template.id", id.String()),
	))
	defer span.End()

	if p.Role != types.RoleSuperadmin {
		return types.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to delete template")
		}
		return fmt.Errorf("deleting template: %w", err)
	}
	s.logger.InfoContext(ctx, "Template deleted",
		slog.String("templateID", id.String()), slog.String("userID", p.ID))
	return nil
}
