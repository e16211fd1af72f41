package template

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

var _ TemplateRepository = (*PostgresTemplateRepo)(nil)

type TemplateRepository interface {
	Create(ctx context.Context, creatorID uuid.UUID, params types.CreateTemplateParams) (*types.Template, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Template, error)
	List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Template, int, error)
	Update(ctx context.Context, id uuid.UUID, params types.UpdateTemplateParams) (*types.Template, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PostgresTemplateRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresTemplateRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresTemplateRepo {
	return &PostgresTemplateRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

var sortColumns = map[string]string{
	"createdAt": "t.created_at",
	"updatedAt": "t.updated_at",
	"name":      "t.name",
	"type":      "t.type",
}

const templateSelect = `
	SELECT t.id, t.name, t.description, t.type, t.creator_id, t.structure, t.is_default,
	       t.created_at, t.updated_at,
	       u.id, u.name, u.email
`

func scanTemplate(row pgx.Row) (*types.Template, error) {
	var (
		tpl types.Template
		ref types.UserRef
	)
	err := row.Scan(
		&tpl.ID, &tpl.Name, &tpl.Description, &tpl.Type, &tpl.CreatorID, &tpl.Structure,
		&tpl.IsDefault, &tpl.CreatedAt, &tpl.UpdatedAt,
		&ref.ID, &ref.Name, &ref.Email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scanning template: %w", err)
	}
	tpl.Creator = &ref
	return &tpl, nil
}

func (r *PostgresTemplateRepo) Create(ctx context.Context, creatorID uuid.UUID, params types.CreateTemplateParams) (*types.Template, error) {
	ctx, span := otel.Tracer("TemplateRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "templates"),
		attribute.String("template.type", params.Type),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("creatorID", creatorID.String()))

	structure := params.Structure
	if len(structure) == 0 {
		structure = []byte("{}")
	}
	isDefault := params.IsDefault != nil && *params.IsDefault

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if isDefault {
		// Only one default template per type.
		if _, err := tx.Exec(ctx,
			`UPDATE templates SET is_default = false WHERE type = $1 AND is_default`, params.Type); err != nil {
			return nil, fmt.Errorf("clearing default template: %w", err)
		}
	}

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO templates (name, description, type, creator_id, structure, is_default)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		params.Name, params.Description, params.Type, creatorID, structure, isDefault,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, types.ErrConflict
		}
		l.ErrorContext(ctx, "Failed to insert template", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert template")
		return nil, fmt.Errorf("inserting template: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing template insert: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *PostgresTemplateRepo) Get(ctx context.Context, id uuid.UUID) (*types.Template, error) {
	ctx, span := otel.Tracer("TemplateRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "templates"),
		attribute.String("db.template.id", id.String()),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx, templateSelect+`
		FROM templates t
		JOIN users u ON u.id = t.creator_id
		WHERE t.id = $1`, id)
	tpl, err := scanTemplate(row)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch template")
		}
		return nil, err
	}
	return tpl, nil
}

func (r *PostgresTemplateRepo) List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Template, int, error) {
	ctx, span := otel.Tracer("TemplateRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "templates"),
		attribute.Int("page", page.Page),
	))
	defer span.End()

	where, args := filter.SQL(1)
	whereSQL := ""
	if where != "" {
		whereSQL = " WHERE " + where
	}

	var total int
	if err := r.pgpool.QueryRow(ctx, `SELECT count(*) FROM templates`+whereSQL, args...).Scan(&total); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to count templates")
		return nil, 0, fmt.Errorf("counting templates: %w", err)
	}

	query := templateSelect + `
		FROM (SELECT * FROM templates` + whereSQL + `) t
		JOIN users u ON u.id = t.creator_id
		ORDER BY ` + sort.OrderBy(sortColumns, "t.created_at") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Skip)

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list templates")
		return nil, 0, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var templates []types.Template
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, 0, err
		}
		templates = append(templates, *tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating templates: %w", err)
	}
	return templates, total, nil
}

func (r *PostgresTemplateRepo) Update(ctx context.Context, id uuid.UUID, params types.UpdateTemplateParams) (*types.Template, error) {
	ctx, span := otel.Tracer("TemplateRepo").Start(ctx, "Update", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "templates"),
		attribute.String("db.template.id", id.String()),
	))
	defer span.End()

	tx, err := r.pgpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if params.IsDefault != nil && *params.IsDefault {
		if _, err := tx.Exec(ctx, `
			UPDATE templates SET is_default = false
			WHERE is_default AND type = (SELECT type FROM templates WHERE id = $1) AND id <> $1`, id); err != nil {
			return nil, fmt.Errorf("clearing default template: %w", err)
		}
	}

	clauses := []string{"updated_at = now()"}
	args := []any{id}
	argID := 2
	addClause := func(col string, val any) {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", col, argID))
		args = append(args, val)
		argID++
	}
	if params.Name != nil {
		addClause("name", *params.Name)
	}
	if params.Description != nil {
		addClause("description", *params.Description)
	}
	if params.Type != nil {
		addClause("type", *params.Type)
	}
	if len(params.Structure) > 0 {
		addClause("structure", params.Structure)
	}
	if params.IsDefault != nil {
		addClause("is_default", *params.IsDefault)
	}

	query := "UPDATE templates SET "
	for i, c := range clauses {
		if i > 0 {
			query += ", "
		}
		query += c
	}
	query += " WHERE id = $1"

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, types.ErrConflict
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update template")
		return nil, fmt.Errorf("updating template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, types.ErrNotFound
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing template update: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *PostgresTemplateRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("TemplateRepo").Start(ctx, "Delete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "templates"),
		attribute.String("db.template.id", id.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM templates WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete template")
		return fmt.Errorf("deleting template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
