package guide

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

var _ GuideRepository = (*PostgresGuideRepo)(nil)

type GuideRepository interface {
	Create(ctx context.Context, instructorID uuid.UUID, params types.CreateGuideParams) (*types.Guide, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Guide, error)
	List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Guide, int, error)
	Update(ctx context.Context, id uuid.UUID, params types.UpdateGuideParams) (*types.Guide, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// CreateVersion snapshots the guide's current content under the next
	// version number and returns the snapshot.
	CreateVersion(ctx context.Context, guideID, changedBy uuid.UUID, changeDescription string) (*types.GuideVersion, error)
	ListVersions(ctx context.Context, guideID uuid.UUID) ([]types.GuideVersion, error)
	GetVersion(ctx context.Context, guideID uuid.UUID, versionNumber int) (*types.GuideVersion, error)
	// RestoreVersion copies a snapshot back onto the guide. The caller
	// records a fresh snapshot first so the restore itself is versioned.
	RestoreVersion(ctx context.Context, guideID uuid.UUID, v *types.GuideVersion) (*types.Guide, error)
}

type PostgresGuideRepo struct {
	logger *slog.Logger
	pgpool *pgxpool.Pool
}

func NewPostgresGuideRepo(pgpool *pgxpool.Pool, logger *slog.Logger) *PostgresGuideRepo {
	return &PostgresGuideRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

var sortColumns = map[string]string{
	"createdAt":  "g.created_at",
	"updatedAt":  "g.updated_at",
	"title":      "g.title",
	"status":     "g.status",
	"difficulty": "g.difficulty",
}

const guideSelect = `
	SELECT g.id, g.title, g.instructor_id, g.introduction, g.objectives, g.materials,
	       g.development, g.evaluation, g.resources, g.tags, g.category, g.difficulty,
	       g.estimated_time, g.status, g.activity_id, a.title,
	       g.created_at, g.updated_at,
	       u.id, u.name, u.email
`

const guideJoins = `
	JOIN users u ON u.id = g.instructor_id
	JOIN activities a ON a.id = g.activity_id
`

func scanGuide(row pgx.Row) (*types.Guide, error) {
	var (
		g   types.Guide
		ref types.UserRef
	)
	err := row.Scan(
		&g.ID, &g.Title, &g.InstructorID, &g.Introduction, &g.Objectives, &g.Materials,
		&g.Development, &g.Evaluation, &g.Resources, &g.Tags, &g.Category, &g.Difficulty,
		&g.EstimatedTime, &g.Status, &g.ActivityID, &g.ActivityTitle,
		&g.CreatedAt, &g.UpdatedAt,
		&ref.ID, &ref.Name, &ref.Email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scanning guide: %w", err)
	}
	g.Instructor = &ref
	return &g, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *PostgresGuideRepo) Create(ctx context.Context, instructorID uuid.UUID, params types.CreateGuideParams) (*types.Guide, error) {
	ctx, span := otel.Tracer("GuideRepo").Start(ctx, "Create", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "guides"),
	))
	defer span.End()

	l := r.logger.With(slog.String("method", "Create"), slog.String("instructorID", instructorID.String()))

	var id uuid.UUID
	err := r.pgpool.QueryRow(ctx, `
		INSERT INTO guides (title, instructor_id, introduction, objectives, materials,
		                    development, evaluation, resources, tags, activity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`,
		params.Title, instructorID, params.Introduction,
		orEmpty(params.Objectives), orEmpty(params.Materials),
		params.Development, params.Evaluation,
		orEmpty(params.Resources), orEmpty(params.Tags), params.ActivityID,
	).Scan(&id)
	if err != nil {
		l.ErrorContext(ctx, "Failed to insert guide", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to insert guide")
		return nil, fmt.Errorf("inserting guide: %w", err)
	}
	return r.Get(ctx, id)
}

func (r *PostgresGuideRepo) Get(ctx context.Context, id uuid.UUID) (*types.Guide, error) {
	ctx, span := otel.Tracer("GuideRepo").Start(ctx, "Get", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "guides"),
		attribute.String("db.guide.id", id.String()),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx, guideSelect+` FROM guides g `+guideJoins+` WHERE g.id = $1`, id)
	guide, err := scanGuide(row)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch guide")
		}
		return nil, err
	}
	return guide, nil
}

func (r *PostgresGuideRepo) List(ctx context.Context, filter search.Filter, page search.Pagination, sort search.Sort) ([]types.Guide, int, error) {
	ctx, span := otel.Tracer("GuideRepo").Start(ctx, "List", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "guides"),
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
	if err := r.pgpool.QueryRow(ctx, `SELECT count(*) FROM guides`+whereSQL, args...).Scan(&total); err != nil {
		l.ErrorContext(ctx, "Failed to count guides", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to count guides")
		return nil, 0, fmt.Errorf("counting guides: %w", err)
	}

	query := guideSelect + `
		FROM (SELECT * FROM guides` + whereSQL + `) g ` + guideJoins + `
		ORDER BY ` + sort.OrderBy(sortColumns, "g.created_at") +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, page.Limit, page.Skip)

	rows, err := r.pgpool.Query(ctx, query, args...)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list guides", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list guides")
		return nil, 0, fmt.Errorf("listing guides: %w", err)
	}
	defer rows.Close()

	var guides []types.Guide
	for rows.Next() {
		g, err := scanGuide(rows)
		if err != nil {
			return nil, 0, err
		}
		guides = append(guides, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating guides: %w", err)
	}
	return guides, total, nil
}

func (r *PostgresGuideRepo) Update(ctx context.Context, id uuid.UUID, params types.UpdateGuideParams) (*types.Guide, error) {
	ctx, span := otel.Tracer("GuideRepo").Start(ctx, "Update", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "guides"),
		attribute.String("db.guide.id", id.String()),
	))
	defer span.End()

	status := params.Status
	query := `
		UPDATE guides
		SET title = $1, introduction = $2, objectives = $3, materials = $4,
		    development = $5, evaluation = $6, resources = $7, tags = $8,
		    status = COALESCE($9, status), updated_at = now()
		WHERE id = $10`
	tag, err := r.pgpool.Exec(ctx, query,
		params.Title, params.Introduction,
		orEmpty(params.Objectives), orEmpty(params.Materials),
		params.Development, params.Evaluation,
		orEmpty(params.Resources), orEmpty(params.Tags),
		status, id,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update guide")
		return nil, fmt.Errorf("updating guide: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, types.ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *PostgresGuideRepo) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := otel.Tracer("GuideRepo").Start(ctx, "Delete", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "guides"),
		attribute.String("db.guide.id", id.String()),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM guides WHERE id = $1`, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete guide")
		return fmt.Errorf("deleting guide: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrNotFound
	}
	return nil
}

const versionSelect = `
	SELECT v.id, v.guide_id, v.version_number, v.title, v.introduction, v.objectives,
	       v.materials, v.development, v.evaluation, v.resources,
	       v.changed_by, v.change_description, v.created_at,
	       u.id, u.name, u.email
	FROM guide_versions v
	JOIN users u ON u.id = v.changed_by
`

func scanVersion(row pgx.Row) (*types.GuideVersion, error) {
	var (
		v   types.GuideVersion
		ref types.UserRef
	)
	err := row.Scan(
		&v.ID, &v.GuideID, &v.VersionNumber, &v.Title, &v.Introduction, &v.Objectives,
		&v.Materials, &v.Development, &v.Evaluation, &v.Resources,
		&v.ChangedByID, &v.ChangeDescription, &v.CreatedAt,
		&ref.ID, &ref.Name, &ref.Email,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		return nil, fmt.Errorf("scanning guide version: %w", err)
	}
	v.ChangedBy = &ref
	return &v, nil
}

func (r *PostgresGuideRepo) CreateVersion(ctx context.Context, guideID, changedBy uuid.UUID, changeDescription string) (*types.GuideVersion, error) {
	ctx, span := otel.Tracer("GuideRepo").Start(ctx, "CreateVersion", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "guide_versions"),
		attribute.String("db.guide.id", guideID.String()),
	))
	defer span.End()

	// The insert copies the guide row so snapshot and version counter
	// advance atomically.
	var versionNumber int
	err := r.pgpool.QueryRow(ctx, `
		INSERT INTO guide_versions (guide_id, version_number, title, introduction, objectives,
		                            materials, development, evaluation, resources,
		                            changed_by, change_description)
		SELECT g.id,
		       COALESCE((SELECT max(version_number) FROM guide_versions WHERE guide_id = g.id), 0) + 1,
		       g.title, g.introduction, g.objectives, g.materials, g.development,
		       g.evaluation, g.resources, $2, $3
		FROM guides g
		WHERE g.id = $1
		RETURNING version_number`,
		guideID, changedBy, changeDescription,
	).Scan(&versionNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to snapshot guide")
		return nil, fmt.Errorf("snapshotting guide: %w", err)
	}
	return r.GetVersion(ctx, guideID, versionNumber)
}

func (r *PostgresGuideRepo) ListVersions(ctx context.Context, guideID uuid.UUID) ([]types.GuideVersion, error) {
	ctx, span := otel.Tracer("GuideRepo").Start(ctx, "ListVersions", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "guide_versions"),
		attribute.String("db.guide.id", guideID.String()),
	))
	defer span.End()

	rows, err := r.pgpool.Query(ctx,
		versionSelect+` WHERE v.guide_id = $1 ORDER BY v.version_number DESC`, guideID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list guide versions")
		return nil, fmt.Errorf("listing guide versions: %w", err)
	}
	defer rows.Close()

	var versions []types.GuideVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating guide versions: %w", err)
	}
	return versions, nil
}

func (r *PostgresGuideRepo) GetVersion(ctx context.Context, guideID uuid.UUID, versionNumber int) (*types.GuideVersion, error) {
	ctx, span := otel.Tracer("GuideRepo").Start(ctx, "GetVersion", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "guide_versions"),
		attribute.String("db.guide.id", guideID.String()),
		attribute.Int("version", versionNumber),
	))
	defer span.End()

	row := r.pgpool.QueryRow(ctx,
		versionSelect+` WHERE v.guide_id = $1 AND v.version_number = $2`, guideID, versionNumber)
	v, err := scanVersion(row)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch guide version")
		}
		return nil, err
	}
	return v, nil
}

func (r *PostgresGuideRepo) RestoreVersion(ctx context.Context, guideID uuid.UUID, v *types.GuideVersion) (*types.Guide, error) {
	ctx, span := otel.Tracer("GuideRepo").Start(ctx, "RestoreVersion", trace.WithAttributes(
		semconv.DBSystemPostgreSQL,
		attribute.String("db.sql.table", "guides"),
		attribute.String("db.guide.id", guideID.String()),
		attribute.Int("version", v.VersionNumber),
	))
	defer span.End()

	tag, err := r.pgpool.Exec(ctx, `
		UPDATE guides
		SET title = $1, introduction = $2, objectives = $3, materials = $4,
		    development = $5, evaluation = $6, resources = $7, updated_at = now()
		WHERE id = $8`,
		v.Title, v.Introduction, v.Objectives, v.Materials,
		v.Development, v.Evaluation, v.Resources, guideID,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to restore guide version")
		return nil, fmt.Errorf("restoring guide version: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, types.ErrNotFound
	}
	return r.Get(ctx, guideID)
}
