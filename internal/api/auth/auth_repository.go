package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

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

var _ AuthRepository = (*PostgresAuthRepo)(nil)

type AuthRepository interface {
	// GetUserByEmail returns ErrNotFound when no account uses the email.
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*types.User, error)
	// SetOnline flags the account as connected and stamps last_active.
	SetOnline(ctx context.Context, id uuid.UUID, online bool) error
}

// pgxQuerier is the slice of pgxpool.Pool this repo needs. Tests swap
// in a pgxmock pool through it.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresAuthRepo struct {
	logger *slog.Logger
	pgpool pgxQuerier
}

func NewPostgresAuthRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresAuthRepo {
	return &PostgresAuthRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

const userColumns = `id, name, email, password_hash, role, area, status, is_online, last_active, created_at, updated_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Area,
		&u.Status,
		&u.IsOnline,
		&u.LastActive,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

func (r *PostgresAuthRepo) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByEmail", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "GetUserByEmail"))
	l.DebugContext(ctx, "Fetching user by email")

	row := r.pgpool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	user, err := scanUser(row)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			l.ErrorContext(ctx, "Failed to fetch user by email", slog.Any("error", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch user by email")
		}
		return nil, err
	}
	return user, nil
}

func (r *PostgresAuthRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*types.User, error) {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "GetUserByID", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", id.String()),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch user by id")
		}
		return nil, err
	}
	return user, nil
}

func (r *PostgresAuthRepo) SetOnline(ctx context.Context, id uuid.UUID, online bool) error {
	ctx, span := otel.Tracer("AuthRepo").Start(ctx, "SetOnline", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", id.String()),
		attribute.Bool("user.online", online),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx,
		`UPDATE users SET is_online = $1, last_active = now(), updated_at = now() WHERE id = $2`,
		online, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update online status")
		return fmt.Errorf("updating online status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
