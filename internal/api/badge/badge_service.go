package badge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aulaplan/aulaplan/internal/types"
)

const (
	catalogCacheKey = "badge:catalog"
	catalogTTL      = 5 * time.Minute
)

var _ BadgeService = (*BadgeServiceImpl)(nil)

type BadgeService interface {
	Create(ctx context.Context, p types.Principal, params types.CreateBadgeParams) (*types.Badge, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Badge, error)
	// Catalog serves the active badge list from cache; any badge
	// mutation invalidates it.
	Catalog(ctx context.Context) ([]types.Badge, error)
	Update(ctx context.Context, p types.Principal, id uuid.UUID, params types.UpdateBadgeParams) (*types.Badge, error)
	Delete(ctx context.Context, p types.Principal, id uuid.UUID) error

	Assign(ctx context.Context, p types.Principal, userID, badgeID uuid.UUID) (*types.UserBadge, error)
	ListUserBadges(ctx context.Context, userID uuid.UUID) ([]types.UserBadge, error)
	UpdateProgress(ctx context.Context, p types.Principal, userID, badgeID uuid.UUID, progress int) (*types.UserBadge, error)
}

type BadgeServiceImpl struct {
	logger *slog.Logger
	repo   BadgeRepository
	cache  *cache.Cache
}

func NewBadgeService(repo BadgeRepository, logger *slog.Logger) *BadgeServiceImpl {
	return &BadgeServiceImpl{
		logger: logger,
		repo:   repo,
		cache:  cache.New(catalogTTL, 10*time.Minute),
	}
}

func (s *BadgeServiceImpl) Create(ctx context.Context, p types.Principal, params types.CreateBadgeParams) (*types.Badge, error) {
	ctx, span := otel.Tracer("BadgeService").Start(ctx, "Create", trace.WithAttributes(
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Create"), slog.String("userID", p.ID))

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.ErrForbidden
	}
	if strings.TrimSpace(params.Name) == "" {
		return nil, fmt.Errorf("name is required: %w", types.ErrValidation)
	}
	createdBy, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("bad principal id: %w", types.ErrValidation)
	}

	badge, err := s.repo.Create(ctx, createdBy, params)
	if err != nil {
		if !errors.Is(err, types.ErrConflict) {
			l.ErrorContext(ctx, "Failed to create badge", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to create badge")
		}
		return nil, fmt.Errorf("creating badge: %w", err)
	}

	s.cache.Delete(catalogCacheKey)
	l.InfoContext(ctx, "Badge created", slog.String("badgeID", badge.ID.String()))
	return badge, nil
}

func (s *BadgeServiceImpl) Get(ctx context.Context, id uuid.UUID) (*types.Badge, error) {
	badge, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching badge: %w", err)
	}
	return badge, nil
}

func (s *BadgeServiceImpl) Catalog(ctx context.Context) ([]types.Badge, error) {
	ctx, span := otel.Tracer("BadgeService").Start(ctx, "Catalog")
	defer span.End()

	if cached, ok := s.cache.Get(catalogCacheKey); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached.([]types.Badge), nil
	}

	badges, err := s.repo.ListActive(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load badge catalog")
		return nil, fmt.Errorf("loading badge catalog: %w", err)
	}

	s.cache.Set(catalogCacheKey, badges, cache.DefaultExpiration)
	span.SetAttributes(attribute.Bool("cache.hit", false))
	return badges, nil
}

func (s *BadgeServiceImpl) Update(ctx context.Context, p types.Principal, id uuid.UUID, params types.UpdateBadgeParams) (*types.Badge, error) {
	ctx, span := otel.Tracer("BadgeService").Start(ctx, "Update", trace.WithAttributes(
		attribute.String("badge.id", id.String()),
	))
	defer span.End()

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.ErrForbidden
	}

	badge, err := s.repo.Update(ctx, id, params)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to update badge")
		}
		return nil, fmt.Errorf("updating badge: %w", err)
	}

	s.cache.Delete(catalogCacheKey)
	return badge, nil
}

func (s *BadgeServiceImpl) Delete(ctx context.Context, p types.Principal, id uuid.UUID) error {
	ctx, span := otel.Tracer("BadgeService").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("badge.id", id.String()),
	))
	defer span.End()

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return types.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to delete badge")
		}
		return fmt.Errorf("deleting badge: %w", err)
	}

	s.cache.Delete(catalogCacheKey)
	return nil
}

func (s *BadgeServiceImpl) Assign(ctx context.Context, p types.Principal, userID, badgeID uuid.UUID) (*types.UserBadge, error) {
	ctx, span := otel.Tracer("BadgeService").Start(ctx, "Assign", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("badge.id", badgeID.String()),
	))
	defer span.End()

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.ErrForbidden
	}

	ub, err := s.repo.Assign(ctx, userID, badgeID)
	if err != nil {
		if !errors.Is(err, types.ErrConflict) && !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to assign badge")
		}
		return nil, fmt.Errorf("assigning badge: %w", err)
	}

	s.logger.InfoContext(ctx, "Badge assigned",
		slog.String("userID", userID.String()), slog.String("badgeID", badgeID.String()))
	return ub, nil
}

func (s *BadgeServiceImpl) ListUserBadges(ctx context.Context, userID uuid.UUID) ([]types.UserBadge, error) {
	badges, err := s.repo.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing user badges: %w", err)
	}
	return badges, nil
}

func (s *BadgeServiceImpl) UpdateProgress(ctx context.Context, p types.Principal, userID, badgeID uuid.UUID, progress int) (*types.UserBadge, error) {
	ctx, span := otel.Tracer("BadgeService").Start(ctx, "UpdateProgress", trace.WithAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("badge.id", badgeID.String()),
		attribute.Int("progress", progress),
	))
	defer span.End()

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.ErrForbidden
	}
	if progress < 0 || progress > 100 {
		return nil, fmt.Errorf("progress must be between 0 and 100: %w", types.ErrValidation)
	}

	ub, err := s.repo.UpdateProgress(ctx, userID, badgeID, progress)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to update badge progress")
		}
		return nil, fmt.Errorf("updating badge progress: %w", err)
	}
	return ub, nil
}
