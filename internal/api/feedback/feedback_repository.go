package feedback

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

var _ FeedbackRepository = (*PostgresFeedbackRepo)(nil)

type FeedbackRepository interface {
	Create(ctx context.Context, userID uuid.UUID, params types.CreateFeedbackParams) (*types.Feedback, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Feedback, error)
	List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Feedback, int, error)
	// Respond stores the admin answer and moves the status forward.
	Respond(ctx context.Context, id, respondedBy uuid.UUID, text, status string) (*types.Feedback, error)
	// TargetExists checks the referenced guide or activity is real.
	TargetExists(ctx context.Context, targetType string, targetID uuid.UUID) (bool, error)
}

type PostgresFeedbackRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresFeedbackRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresFeedbackRepo {
	return &PostgresFeedbackRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

var sortColumns = map[string]string{
	"createdAt": "f.created_at",
	"updatedAt": "f.updated_at",
	"rating":    "f.rating",
	"status":    "f.status",
}

const feedbackSelect = `
	SELECT f.id, f.user_id, f.target_type, f.target_id, f.rating, f.comment, f.status,
	       f.response_text, f.responded_by, f.responded_at, f.created_at, f.updated_at,
	       u.id, u.name, u.email
`

func scanFeedback(row pgx.Row) (*types.Feedback, error) {
	var (
		fb           types.Feedback
		ref          types.UserRef
		responseText *string
		respondedBy  *uuid.UUID
		respondedAt  *time.Time
	)
	err := row.Scan(
		&fb.ID, &fb.UserID, &fb.TargetType, &fb.TargetID, &fb.Rating, &fb.Comment, &fb.Status,
		&responseText, &respondedBy, &respondedAt, &fb.CreatedAt, &fb.UpdatedAt,
		&ref.ID, &ref.Name, &ref.Email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scanning feedback: %w", err)
	}
	fb.User = &ref
	if responseText != nil && respondedBy != nil && respondedAt != nil {
		fb.Response = &types.FeedbackResponse{
			Text:          *responseText,
			RespondedByID: *respondedBy,
			RespondedAt:   *respondedAt,
		}
	}
	return &fb, nil
}

func (r *PostgresFeedbackRepo) Create(ctx context.Context, userID uuid.UUID, params types.CreateFeedbackParams) (*types.Feedback, error) {
	ctx, span := otel.Tracer("FeedbackRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "feedback"),
		attribute.String("feedback.target_type", params.TargetType),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("userID", userID.String()))

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx, `
		INSERT INTO feedback (user_id, target_type, target_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		userID, params.TargetType, params.TargetID, params.Rating, params.Comment,
	).Scan(&id)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert feedback", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert feedback")
		return nil, fmt.Errorf("inserting feedback: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *PostgresFeedbackRepo) Get(ctx context.Context, id uuid.UUID) (*types.Feedback, error) {
	ctx, span := otel.Tracer("FeedbackRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "feedback"),
		attribute.String("db.feedback.id", id.String()),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx, feedbackSelect+`
		FROM feedback f
		JOIN users u ON u.id = f.user_id
		WHERE f.id = $1`, id)
	fb, err := scanFeedback(row)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch feedback")
		}
		return nil, err
	}
	return fb, nil
}

func (r *PostgresFeedbackRepo) List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Feedback, int, error) {
	ctx, span := otel.Tracer("FeedbackRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "feedback"),
		attribute.Int("page", page.Page),
	))
	defer span.End()

	where, args := filter.SQL(1)
	whereSQL := ""
	if where != "" {
		whereSQL = " WHERE " + where
	}

	var total int
	if err := r.pgpool.QueryRow(ctx, `SELECT count(*) FROM feedback`+whereSQL, args...).Scan(&total); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to count feedback")
		return nil, 0, fmt.Errorf("counting feedback: %w", err)
	}

	query := feedbackSelect + `
		FROM (SELECT * FROM feedback` + whereSQL + `) f
		JOIN users u ON u.id = f.user_id
		ORDER BY ` + sort.OrderBy(sortColumns, "f.created_at") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Skip)

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list feedback")
		return nil, 0, fmt.Errorf("listing feedback: %w", err)
	}
	defer rows.Close()

	var items []types.Feedback
	for rows.Next() {
		fb, err := scanFeedback(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, *fb)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating feedback: %w", err)
	}
	return items, total, nil
}

func (r *PostgresFeedbackRepo) Respond(ctx context.Context, id, respondedBy uuid.UUID, text, status string) (*types.Feedback, error) {
	ctx, span := otel.Tracer("FeedbackRepo").Start(ctx, "Respond", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "feedback"),
		attribute.String("db.feedback.id", id.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `
		UPDATE feedback
		SET response_text = $1, responded_by = $2, responded_at = now(),
		    status = $3, updated_at = now()
		WHERE id = $4`,
		text, respondedBy, status, id,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to respond to feedback")
		return nil, fmt.Errorf("responding to feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, types.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *PostgresFeedbackRepo) TargetExists(ctx context.Context, targetType string, targetID uuid.UUID) (bool, error) {
	ctx, span := otel.Tracer("FeedbackRepo").Start(ctx, "TargetExists", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("feedback.target_type", targetType),
	))
	defer span.End()

	var table string
	switch targetType {
	case types.FeedbackTargetGuide:
		table = "guides"
	case types.FeedbackTargetActivity:
		table = "activities"
	default:
		return false, fmt.Errorf("unknown target type %q: %w", targetType, types.ErrValidation)
	}

	var exists bool
	err := r.pgpool.QueryRow(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table), targetID).Scan(&exists)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to check feedback target")
		return false, fmt.Errorf("checking feedback target: %w", err)
	}
	return exists, nil
}
