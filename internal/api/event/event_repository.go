package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

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

var _ EventRepository = (*PostgresEventRepo)(nil)

type EventRepository interface {
	Create(ctx context.Context, organizerID uuid.UUID, params types.UpsertEventParams) (*types.Event, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Event, error)
	List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Event, int, error)
	Update(ctx context.Context, id uuid.UUID, params types.UpsertEventParams) (*types.Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// AddParticipant is idempotent: joining twice leaves one entry.
	AddParticipant(ctx context.Context, eventID, userID uuid.UUID) (*types.Event, error)

	// EventsBetween and ActivityDeadlinesBetween feed the calendar view.
	// instructorID narrows to owned items when non-nil.
	EventsBetween(ctx context.Context, from, to time.Time, instructorID *uuid.UUID) ([]types.Event, error)
	ActivityDeadlinesBetween(ctx context.Context, from, to time.Time, instructorID *uuid.UUID) ([]types.Activity, error)
}

type PostgresEventRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresEventRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresEventRepo {
	return &PostgresEventRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

var sortColumns = map[string]string{
	"createdAt": "e.created_at",
	"startDate": "e.start_date",
	"endDate":   "e.end_date",
	"title":     "e.title",
}

const eventSelect = `
	SELECT e.id, e.title, e.description, e.start_date, e.end_date, e.location,
	       e.organizer_id, e.participants, e.status, e.created_at, e.updated_at,
	       u.id, u.name, u.email
`

func scanEvent(row pgx.Row) (*types.Event, error) {
	var (
		e   types.Event
		ref types.UserRef
	)
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.StartDate, &e.EndDate, &e.Location,
		&e.OrganizerID, &e.Participants, &e.Status, &e.CreatedAt, &e.UpdatedAt,
		&ref.ID, &ref.Name, &ref.Email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scanning event: %w", err)
	}
	if e.Participants == nil {
		e.Participants = []uuid.UUID{}
	}
	e.Organizer = &ref
	return &e, nil
}

func (r *PostgresEventRepo) Create(ctx context.Context, organizerID uuid.UUID, params types.UpsertEventParams) (*types.Event, error) {
	ctx, span := otel.Tracer("EventRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "events"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("organizerID", organizerID.String()))

	participants := params.Participants
	if participants == nil {
		participants = []uuid.UUID{}
	}
	status := types.EventStatusScheduled
	if params.Status != nil {
		status = *params.Status
	}

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx, `
		INSERT INTO events (title, description, start_date, end_date, location, organizer_id, participants, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		params.Title, params.Description, params.StartDate, params.EndDate,
		params.Location, organizerID, participants, status,
	).Scan(&id)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert event", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert event")
		return nil, fmt.Errorf("inserting event: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *PostgresEventRepo) Get(ctx context.Context, id uuid.UUID) (*types.Event, error) {
	ctx, span := otel.Tracer("EventRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "events"),
		attribute.String("db.event.id", id.String()),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx, eventSelect+`
		FROM events e
		JOIN users u ON u.id = e.organizer_id
		WHERE e.id = $1`, id)
	event, err := scanEvent(row)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch event")
		}
		return nil, err
	}
	return event, nil
}

func (r *PostgresEventRepo) List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Event, int, error) {
	ctx, span := otel.Tracer("EventRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "events"),
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
	if err := r.pgpool.QueryRow(ctx, `SELECT count(*) FROM events`+whereSQL, args...).Scan(&total); err != nil {
		l.ErrorContext(ctx, "Failed to count events", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to count events")
		return nil, 0, fmt.Errorf("counting events: %w", err)
	}

	query := eventSelect + `
		FROM (SELECT * FROM events` + whereSQL + `) e
		JOIN users u ON u.id = e.organizer_id
		ORDER BY ` + sort.OrderBy(sortColumns, "e.start_date") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Skip)

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list events", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list events")
		return nil, 0, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating events: %w", err)
	}
	return events, total, nil
}

func (r *PostgresEventRepo) Update(ctx context.Context, id uuid.UUID, params types.UpsertEventParams) (*types.Event, error) {
	ctx, span := otel.Tracer("EventRepo").Start(ctx, "Update", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "events"),
		attribute.String("db.event.id", id.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `
		UPDATE events
		SET title = $1, description = $2, start_date = $3, end_date = $4,
		    location = $5, participants = COALESCE($6, participants),
		    status = COALESCE($7, status), updated_at = now()
		WHERE id = $8`,
		params.Title, params.Description, params.StartDate, params.EndDate,
		params.Location, params.Participants, params.Status, id,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update event")
		return nil, fmt.Errorf("updating event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, types.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *PostgresEventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("EventRepo").Start(ctx, "Delete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "events"),
		attribute.String("db.event.id", id.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete event")
		return fmt.Errorf("deleting event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (r *PostgresEventRepo) AddParticipant(ctx context.Context, eventID, userID uuid.UUID) (*types.Event, error) {
	ctx, span := otel.Tracer("EventRepo").Start(ctx, "AddParticipant", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "events"),
		attribute.String("db.event.id", eventID.String()),
		attribute.String("db.user.id", userID.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `
		UPDATE events
		SET participants = array_append(participants, $1), updated_at = now()
		WHERE id = $2 AND NOT ($1 = ANY(participants))`,
		userID, eventID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to add participant")
		return nil, fmt.Errorf("adding participant: %w", err)
	}
	// Zero rows means either the event is missing or the user already
	// joined. Get settles which.
	_ = tag
	return r.Get(ctx, eventID)
}

func (r *PostgresEventRepo) EventsBetween(ctx context.Context, from, to time.Time, instructorID *uuid.UUID) ([]types.Event, error) {
	ctx, span := otel.Tracer("EventRepo").Start(ctx, "EventsBetween", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "events"),
	))
	defer span.End()

	query := eventSelect + `
		FROM events e
		JOIN users u ON u.id = e.organizer_id
		WHERE e.start_date <= $2 AND e.end_date >= $1`
	args := []interface{}{from, to}
	if instructorID != nil {
		query += ` AND (e.organizer_id = $3 OR $3 = ANY(e.participants))`
		args = append(args, *instructorID)
	}
	query += ` ORDER BY e.start_date ASC`

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch calendar events")
		return nil, fmt.Errorf("fetching calendar events: %w", err)
	}
	defer rows.Close()

	var events []types.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *PostgresEventRepo) ActivityDeadlinesBetween(ctx context.Context, from, to time.Time, instructorID *uuid.UUID) ([]types.Activity, error) {
	ctx, span := otel.Tracer("EventRepo").Start(ctx, "ActivityDeadlinesBetween", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "activities"),
	))
	defer span.End()

	query := `
		SELECT a.id, a.title, a.description, a.instructor_id, a.start_date, a.deadline,
		       a.status, a.progress, u.id, u.name, u.email
		FROM activities a
		JOIN users u ON u.id = a.instructor_id
		WHERE a.deadline IS NOT NULL AND a.deadline BETWEEN $1 AND $2`
	args := []interface{}{from, to}
	if instructorID != nil {
		query += ` AND a.instructor_id = $3`
		args = append(args, *instructorID)
	}
	query += ` ORDER BY a.deadline ASC`

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch activity deadlines")
		return nil, fmt.Errorf("fetching activity deadlines: %w", err)
	}
	defer rows.Close()

	var activities []types.Activity
	for rows.Next() {
		var (
			a   types.Activity
			ref types.UserRef
		)
		err := rows.Scan(&a.ID, &a.Title, &a.Description, &a.InstructorID, &a.StartDate,
			&a.Deadline, &a.Status, &a.Progress, &ref.ID, &ref.Name, &ref.Email)
		if err != nil {
			return nil, fmt.Errorf("scanning activity deadline: %w", err)
		}
		a.Instructor = &ref
		activities = append(activities, a)
	}
	return activities, rows.Err()
}
