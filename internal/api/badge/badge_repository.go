package badge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/aulaplan/aulaplan/internal/types"
)

var _ BadgeRepository = (*PostgresBadgeRepo)(nil)

type BadgeRepository interface {
	Create(ctx context.Context, createdBy uuid.UUID, params types.CreateBadgeParams) (*types.Badge, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Badge, error)
	// ListActive returns the badge catalog, active badges only.
	ListActive(ctx context.Context) ([]types.Badge, error)
	Update(ctx context.Context, id uuid.UUID, params types.UpdateBadgeParams) (*types.Badge, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Assign links a badge to a user. Returns ErrConflict when already
	// assigned.
	Assign(ctx context.Context, userID, badgeID uuid.UUID) (*types.UserBadge, error)
	ListUserBadges(ctx context.Context, userID uuid.UUID) ([]types.UserBadge, error)
	// UpdateProgress sets progress; reaching 100 marks completion and
	// stamps earned_at.
	UpdateProgress(ctx context.Context, userID, badgeID uuid.UUID, progress int) (*types.UserBadge, error)
}

type PostgresBadgeRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresBadgeRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresBadgeRepo {
	return &PostgresBadgeRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const badgeColumns = `id, name, description, icon, criteria, points, category, created_by, is_active, created_at, updated_at`

func scanBadge(row pgx.Row) (*types.Badge, error) {
	var b types.Badge
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.Criteria, &b.Points,
		&b.Category, &b.CreatedByID, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scanning badge: %w", err)
	}
	return &b, nil
}

func (r *PostgresBadgeRepo) Create(ctx context.Context, createdBy uuid.UUID, params types.CreateBadgeParams) (*types.Badge, error) {
	ctx, span := otel.Tracer("BadgeRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "badges"),
	))
	defer span.End()

	points := 0
	if params.Points != nil {
		points = *params.Points
	}
	category := params.Category
	if category == "" {
		category = types.BadgeCategoryAchievement
	}

	row := r.pgpool.QueryRow(ctx, `
		INSERT INTO badges (name, description, icon, criteria, points, category, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+badgeColumns,
		params.Name, params.Description, params.Icon, params.Criteria, points, category, createdBy)
	badge, err := scanBadge(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, types.ErrConflict
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert badge")
		return nil, fmt.Errorf("inserting badge: %w", err)
	}
	return badge, nil
}

func (r *PostgresBadgeRepo) Get(ctx context.Context, id uuid.UUID) (*types.Badge, error) {
	ctx, span := otel.Tracer("BadgeRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "badges"),
		attribute.String("db.badge.id", id.String()),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx, `SELECT `+badgeColumns+` FROM badges WHERE id = $1`, id)
	badge, err := scanBadge(row)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch badge")
		}
		return nil, err
	}
	return badge, nil
}

func (r *PostgresBadgeRepo) ListActive(ctx context.Context) ([]types.Badge, error) {
	ctx, span := otel.Tracer("BadgeRepo").Start(ctx, "ListActive", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "badges"),
	))
	defer span.End()

	rows, err := r.pgpool.Query(ctx,
		`SELECT `+badgeColumns+` FROM badges WHERE is_active ORDER BY points DESC, name ASC`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list badges")
		return nil, fmt.Errorf("listing badges: %w", err)
	}
	defer rows.Close()

	var badges []types.Badge
	for rows.Next() {
		b, err := scanBadge(rows)
		if err != nil {
			return nil, err
		}
		badges = append(badges, *b)
	}
	return badges, rows.Err()
}

func (r *PostgresBadgeRepo) Update(ctx context.Context, id uuid.UUID, params types.UpdateBadgeParams) (*types.Badge, error) {
	ctx, span := otel.Tracer("BadgeRepo").Start(ctx, "Update", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "badges"),
		attribute.String("db.badge.id", id.String()),
	))
	defer span.End()

	setClauses := []string{"updated_at = now()"}
	args := []interface{}{}
	argID := 1

	addClause := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argID))
		args = append(args, value)
		argID++
	}

	if params.Name != nil {
		addClause("name", *params.Name)
	}
	if params.Description != nil {
		addClause("description", *params.Description)
	}
	if params.Icon != nil {
		addClause("icon", *params.Icon)
	}
	if params.Criteria != nil {
		addClause("criteria", *params.Criteria)
	}
	if params.Category != nil {
		addClause("category", *params.Category)
	}
	if params.Points != nil {
		addClause("points", *params.Points)
	}
	if params.IsActive != nil {
		addClause("is_active", *params.IsActive)
	}

	query := fmt.Sprintf("UPDATE badges SET %s WHERE id = $%d RETURNING %s",
		strings.Join(setClauses, ", "), argID, badgeColumns)
	args = append(args, id)

	badge, err := scanBadge(r.pgpool.QueryRow(ctx, query, args...))
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to update badge")
		}
		return nil, err
	}
	return badge, nil
}

func (r *PostgresBadgeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("BadgeRepo").Start(ctx, "Delete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "badges"),
		attribute.String("db.badge.id", id.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM badges WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete badge")
		return fmt.Errorf("deleting badge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

const userBadgeSelect = `
	SELECT ub.id, ub.user_id, ub.badge_id, ub.progress, ub.is_completed, ub.earned_at,
	       b.id, b.name, b.description, b.icon, b.criteria, b.points, b.category,
	       b.created_by, b.is_active, b.created_at, b.updated_at
	FROM user_badges ub
	JOIN badges b ON b.id = ub.badge_id
`

func scanUserBadge(row pgx.Row) (*types.UserBadge, error) {
	var (
		ub types.UserBadge
		b  types.Badge
	)
	err := row.Scan(&ub.ID, &ub.UserID, &ub.BadgeID, &ub.Progress, &ub.IsCompleted, &ub.EarnedAt,
		&b.ID, &b.Name, &b.Description, &b.Icon, &b.Criteria, &b.Points, &b.Category,
		&b.CreatedByID, &b.IsActive, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scanning user badge: %w", err)
	}
	ub.Badge = &b
	return &ub, nil
}

func (r *PostgresBadgeRepo) Assign(ctx context.Context, userID, badgeID uuid.UUID) (*types.UserBadge, error) {
	ctx, span := otel.Tracer("BadgeRepo").Start(ctx, "Assign", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "user_badges"),
		attribute.String("db.user.id", userID.String()),
		attribute.String("db.badge.id", badgeID.String()),
	))
	defer span.End()

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx, `
		INSERT INTO user_badges (user_id, badge_id) VALUES ($1, $2)
		RETURNING id`, userID, badgeID).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return nil, types.ErrConflict
			case "23503":
				return nil, types.ErrNotFound
			}
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to assign badge")
		return nil, fmt.Errorf("assigning badge: %w", err)
	}

	return scanUserBadge(r.pgpool.QueryRow(ctx, userBadgeSelect+` WHERE ub.id = $1`, id))
}

func (r *PostgresBadgeRepo) ListUserBadges(ctx context.Context, userID uuid.UUID) ([]types.UserBadge, error) {
	ctx, span := otel.Tracer("BadgeRepo").Start(ctx, "ListUserBadges", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "user_badges"),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	rows, err := r.pgpool.Query(ctx,
		userBadgeSelect+` WHERE ub.user_id = $1 ORDER BY ub.is_completed DESC, b.points DESC`, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list user badges")
		return nil, fmt.Errorf("listing user badges: %w", err)
	}
	defer rows.Close()

	var badges []types.UserBadge
	for rows.Next() {
		ub, err := scanUserBadge(rows)
		if err != nil {
			return nil, err
		}
		badges = append(badges, *ub)
	}
	return badges, rows.Err()
}

func (r *PostgresBadgeRepo) UpdateProgress(ctx context.Context, userID, badgeID uuid.UUID, progress int) (*types.UserBadge, error) {
	ctx, span := otel.Tracer("BadgeRepo").Start(ctx, "UpdateProgress", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "user_badges"),
		attribute.String("db.user.id", userID.String()),
		attribute.String("db.badge.id", badgeID.String()),
		attribute.Int("progress", progress),
	))
	defer span.End()

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx, `
		UPDATE user_badges
		SET progress = $3,
		    is_completed = ($3 >= 100),
		    earned_at = CASE WHEN $3 >= 100 AND earned_at IS NULL THEN now() ELSE earned_at END
		WHERE user_id = $1 AND badge_id = $2
		RETURNING id`, userID, badgeID, progress).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update badge progress")
		return nil, fmt.Errorf("updating badge progress: %w", err)
	}

	return scanUserBadge(r.pgpool.QueryRow(ctx, userBadgeSelect+` WHERE ub.id = $1`, id))
}
