package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

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

var _ ActivityRepository = (*PostgresActivityRepo)(nil)

type ActivityRepository interface {
	Create(ctx context.Context, instructorID uuid.UUID, params types.CreateActivityParams) (*types.Activity, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Activity, error)
	// List applies the filter to the activities table and joins the
	// instructor projection. Returns the page plus the unpaged total.
	List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Activity, int, error)
	Update(ctx context.Context, id uuid.UUID, params types.UpdateActivityParams) (*types.Activity, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type PostgresActivityRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresActivityRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresActivityRepo {
	return &PostgresActivityRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

// sortColumns is the allow-list for client-supplied sort fields.
var sortColumns = map[string]string{
	"createdAt": "a.created_at",
	"title":     "a.title",
	"startDate": "a.start_date",
	"deadline":  "a.deadline",
	"priority":  "a.priority",
	"progress":  "a.progress",
}

const activitySelect = `
	SELECT a.id, a.title, a.description, a.instructor_id, a.start_date, a.deadline,
	       a.priority, a.category, a.tags, a.location, a.status, a.progress,
	       a.created_at, a.updated_at,
	       u.id, u.name, u.email
`

func scanActivity(row pgx.Row) (*types.Activity, error) {
	var (
		a   types.Activity
		ref types.UserRef
	)
	err := row.Scan(
		&a.ID, &a.Title, &a.Description, &a.InstructorID, &a.StartDate, &a.Deadline,
		&a.Priority, &a.Category, &a.Tags, &a.Location, &a.Status, &a.Progress,
		&a.CreatedAt, &a.UpdatedAt,
		&ref.ID, &ref.Name, &ref.Email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scanning activity: %w", err)
	}
	a.Instructor = &ref
	return &a, nil
}

func (r *PostgresActivityRepo) Create(ctx context.Context, instructorID uuid.UUID, params types.CreateActivityParams) (*types.Activity, error) {
	ctx, span := otel.Tracer("ActivityRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "activities"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("instructorID", instructorID.String()))
	l.DebugContext(ctx, "Creating activity")

	priority := "media"
	if params.Priority != nil {
		priority = *params.Priority
	}
	category := "otro"
	if params.Category != nil {
		category = *params.Category
	}
	tags := params.Tags
	if tags == nil {
		tags = []string{}
	}

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx, `
		INSERT INTO activities (title, description, instructor_id, deadline, priority, category, tags, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		params.Title, params.Description, instructorID, params.Deadline,
		priority, category, tags, params.Location,
	).Scan(&id)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert activity", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert activity")
		return nil, fmt.Errorf("inserting activity: %w", err)
	}

	return r.Get(ctx, id)
}

func (r *PostgresActivityRepo) Get(ctx context.Context, id uuid.UUID) (*types.Activity, error) {
	ctx, span := otel.Tracer("ActivityRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "activities"),
		attribute.String("db.activity.id", id.String()),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx, activitySelect+`
		FROM activities a
		JOIN users u ON u.id = a.instructor_id
		WHERE a.id = $1`, id)
	activity, err := scanActivity(row)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch activity")
		}
		return nil, err
	}
	return activity, nil
}

func (r *PostgresActivityRepo) List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Activity, int, error) {
	ctx, span := otel.Tracer("ActivityRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "activities"),
		attribute.Int("page", page.Page),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "List"))

	where, args := filter.SQL(1)
	whereSQL := ""
	if where != "" {
		whereSQL = " WHERE " + where
	}

	var total int
	err := r.pgpool.QueryRow(ctx, `SELECT count(*) FROM activities`+whereSQL, args...).Scan(&total)
	if err != nil {
		l.ErrorContext(ctx, "Failed to count activities", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to count activities")
		return nil, 0, fmt.Errorf("counting activities: %w", err)
	}

	// Filter columns are unqualified, so filtering happens in a subselect
	// before the instructor join.
	query := activitySelect + `
		FROM (SELECT * FROM activities` + whereSQL + `) a
		JOIN users u ON u.id = a.instructor_id
		ORDER BY ` + sort.OrderBy(sortColumns, "a.created_at") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Skip)

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list activities", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list activities")
		return nil, 0, fmt.Errorf("listing activities: %w", err)
	}
	defer rows.Close()

	var activities []types.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, 0, err
		}
		activities = append(activities, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating activities: %w", err)
	}
	return activities, total, nil
}

func (r *PostgresActivityRepo) Update(ctx context.Context, id uuid.UUID, params types.UpdateActivityParams) (*types.Activity, error) {
	ctx, span := otel.Tracer("ActivityRepo").Start(ctx, "Update", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "activities"),
		attribute.String("db.activity.id", id.String()),
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

	if params.Title != "" {
		addClause("title", params.Title)
	}
	if params.Description != "" {
		addClause("description", params.Description)
	}
	if params.Deadline != nil {
		addClause("deadline", *params.Deadline)
	}
	if params.Status != nil {
		addClause("status", *params.Status)
	}
	if params.Progress != nil {
		addClause("progress", *params.Progress)
	}
	if params.Tags != nil {
		addClause("tags", params.Tags)
	}
	if params.Category != nil {
		addClause("category", *params.Category)
	}
	if params.Location != nil {
		addClause("location", *params.Location)
	}

	query := fmt.Sprintf("UPDATE activities SET %s WHERE id = $%d",
		strings.Join(setClauses, ", "), argID)
	args = append(args, id)

	tag, err := r.pgpool.Exec(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update activity")
		return nil, fmt.Errorf("updating activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, types.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *PostgresActivityRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("ActivityRepo").Start(ctx, "Delete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "activities"),
		attribute.String("db.activity.id", id.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM activities WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete activity")
		return fmt.Errorf("deleting activity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}
