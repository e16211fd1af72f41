package user

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

	"github.com/aulaplan/aulaplan/internal/api/search"
	"github.com/aulaplan/aulaplan/internal/types"
)

var _ UserRepository = (*PostgresUserRepo)(nil)

type UserRepository interface {
	Create(ctx context.Context, params types.RegisterUserParams, passwordHash, status string) (*types.User, error)
	Get(ctx context.Context, id uuid.UUID) (*types.User, error)
	List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.User, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*types.User, error)
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresUserRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

var sortColumns = map[string]string{
	"createdAt":  "created_at",
	"name":       "name",
	"email":      "email",
	"lastActive": "last_active",
}

const userColumns = `id, name, email, password_hash, role, area, status, is_online, last_active, created_at, updated_at`

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Area, &u.Status,
		&u.IsOnline, &u.LastActive, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	return &u, nil
}

func (r *PostgresUserRepo) Create(ctx context.Context, params types.RegisterUserParams, passwordHash, status string) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("user.role", params.Role),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("email", params.Email))

	row := r.pgpool.QueryRow(ctx, `
		INSERT INTO users (name, email, password_hash, role, area, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		params.Name, params.Email, passwordHash, params.Role, params.Area, status,
	)
	u, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, types.ErrConflict
		}
		l.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert user")
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepo) Get(ctx context.Context, id uuid.UUID) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", id.String()),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch user")
		}
		return nil, err
	}
	return u, nil
}

func (r *PostgresUserRepo) List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.User, int, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.Int("page", page.Page),
	))
	defer span.End()

	where, args := filter.SQL(1)
	whereSQL := ""
	if where != "" {
		whereSQL = " WHERE " + where
	}

	var total int
	if err := r.pgpool.QueryRow(ctx, `SELECT count(*) FROM users`+whereSQL, args...).Scan(&total); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to count users")
		return nil, 0, fmt.Errorf("counting users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users` + whereSQL +
		` ORDER BY ` + sort.OrderBy(sortColumns, "created_at") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Skip)

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list users")
		return nil, 0, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating users: %w", err)
	}
	return users, total, nil
}

func (r *PostgresUserRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*types.User, error) {
	ctx, span := otel.Tracer("UserRepo").Start(ctx, "UpdateStatus", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "users"),
		attribute.String("db.user.id", id.String()),
		attribute.String("user.status", status),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx, `
		UPDATE users SET status = $1, updated_at = now()
		WHERE id = $2
		RETURNING `+userColumns, status, id)
	u, err := scanUser(row)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to update user status")
		}
		return nil, err
	}
	return u, nil
}
