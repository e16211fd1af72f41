package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/aulaplan/aulaplan/internal/api/search"
	"github.com/aulaplan/aulaplan/internal/types"
)

var _ ReportRepository = (*PostgresReportRepo)(nil)

type ReportRepository interface {
	Create(ctx context.Context, creatorID uuid.UUID, params types.CreateReportParams) (*types.Report, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Report, error)
	List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Report, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PostgresReportRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresReportRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresReportRepo {
	return &PostgresReportRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

var sortColumns = map[string]string{
	"createdAt":   "r.created_at",
	"generatedAt": "r.generated_at",
	"title":       "r.title",
	"type":        "r.type",
}

const reportSelect = `
	SELECT r.id, r.title, r.description, r.type, r.creator_id, r.data, r.format,
	       r.status, r.generated_at, r.created_at,
	       u.id, u.name, u.email
`

func scanReport(row pgx.Row) (*types.Report, error) {
	var (
		rep types.Report
		ref types.UserRef
	)
	err := row.Scan(
		&rep.ID, &rep.Title, &rep.Description, &rep.Type, &rep.CreatorID, &rep.Data,
		&rep.Format, &rep.Status, &rep.GeneratedAt, &rep.CreatedAt,
		&ref.ID, &ref.Name, &ref.Email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scanning report: %w", err)
	}
	rep.Creator = &ref
	return &rep, nil
}

func (r *PostgresReportRepo) Create(ctx context.Context, creatorID uuid.UUID, params types.CreateReportParams) (*types.Report, error) {
	ctx, span := otel.Tracer("ReportRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "reports"),
		attribute.String("report.type", params.Type),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("creatorID", creatorID.String()))

	data := params.Data
	if len(data) == 0 {
		data = []byte("{}")
	}

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx, `
		INSERT INTO reports (title, description, type, creator_id, data, format)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		params.Title, params.Description, params.Type, creatorID, data, params.Format,
	).Scan(&id)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert report", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert report")
		return nil, fmt.Errorf("inserting report: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *PostgresReportRepo) Get(ctx context.Context, id uuid.UUID) (*types.Report, error) {
	ctx, span := otel.Tracer("ReportRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "reports"),
		attribute.String("db.report.id", id.String()),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx, reportSelect+`
		FROM reports r
		JOIN users u ON u.id = r.creator_id
		WHERE r.id = $1`, id)
	report, err := scanReport(row)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch report")
		}
		return nil, err
	}
	return report, nil
}

func (r *PostgresReportRepo) List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Report, int, error) {
	ctx, span := otel.Tracer("ReportRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "reports"),
		attribute.Int("page", page.Page),
	))
	defer span.End()

	where, args := filter.SQL(1)
	whereSQL := ""
	if where != "" {
		whereSQL = " WHERE " + where
	}

	var total int
	if err := r.pgpool.QueryRow(ctx, `SELECT count(*) FROM reports`+whereSQL, args...).Scan(&total); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to count reports")
		return nil, 0, fmt.Errorf("counting reports: %w", err)
	}

	query := reportSelect + `
		FROM (SELECT * FROM reports` + whereSQL + `) r
		JOIN users u ON u.id = r.creator_id
		ORDER BY ` + sort.OrderBy(sortColumns, "r.created_at") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Skip)

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list reports")
		return nil, 0, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var reports []types.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, 0, err
		}
		reports = append(reports, *rep)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating reports: %w", err)
	}
	return reports, total, nil
}

func (r *PostgresReportRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("ReportRepo").Start(ctx, "Delete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "reports"),
		attribute.String("db.report.id", id.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM reports WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete report")
		return fmt.Errorf("deleting report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
