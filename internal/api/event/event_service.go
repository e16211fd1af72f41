package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aulaplan/aulaplan/internal/api/search"
	"github.com/aulaplan/aulaplan/internal/types"
)

const defaultPageSize = 10

// Default calendar window around today.
const (
	calendarPastWindow   = 30 * 24 * time.Hour
	calendarFutureWindow = 60 * 24 * time.Hour
)

const (
	eventColor    = "#3788d8"
	activityColor = "#f59e0b"
)

var _ EventService = (*EventServiceImpl)(nil)

type EventService interface {
	Create(ctx context.Context, p types.Principal, params types.UpsertEventParams) (*types.Event, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Event, error)
	List(ctx context.Context, params url.Values) ([]types.Event, types.PageMeta, error)
	Update(ctx context.Context, p types.Principal, id uuid.UUID, params types.UpsertEventParams) (*types.Event, error)
	Delete(ctx context.Context, p types.Principal, id uuid.UUID) error
	Join(ctx context.Context, p types.Principal, eventID uuid.UUID) (*types.Event, error)
	// Calendar merges events and activity deadlines over the window,
	// sorted by start time. Instructors only see their own items.
	Calendar(ctx context.Context, p types.Principal, params url.Values) ([]types.CalendarItem, error)
}

type EventServiceImpl struct {
	logger *slog.Logger
	repo   EventRepository
}

func NewEventService(repo EventRepository, logger *slog.Logger) *EventServiceImpl {
	return &EventServiceImpl{
		logger: logger,
		repo:   repo,
	}
}

func validateWindow(params types.UpsertEventParams) error {
	if strings.TrimSpace(params.Title) == "" {
		return fmt.Errorf("title is required: %w", types.ErrValidation)
	}
	if params.StartDate.IsZero() || params.EndDate.IsZero() || !params.EndDate.After(params.StartDate) {
		return fmt.Errorf("end date must be after start date: %w", types.ErrValidation)
	}
	return nil
}

func (s *EventServiceImpl) Create(ctx context.Context, p types.Principal, params types.UpsertEventParams) (*types.Event, error) {
	ctx, span := otel.Tracer("EventService").Start(ctx, "Create", trace.WithAttributes(
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Create"), slog.String("userID", p.ID))

	if !p.HasRole(types.RoleAdmin, types.RoleSuperadmin) {
		return nil, types.ErrForbidden
	}
	if err := validateWindow(params); err != nil {
		return nil, err
	}
	organizerID, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("bad principal id: %w", types.ErrValidation)
	}

	event, err := s.repo.Create(ctx, organizerID, params)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create event", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create event")
		return nil, fmt.Errorf("creating event: %w", err)
	}

	l.InfoContext(ctx, "Event created", slog.String("eventID", event.ID.String()))
	span.SetStatus(codes.Ok, "Event created")
	return event, nil
}

func (s *EventServiceImpl) Get(ctx context.Context, id uuid.UUID) (*types.Event, error) {
	ctx, span := otel.Tracer("EventService").Start(ctx, "Get", trace.WithAttributes(
		attribute.String("event.id", id.String()),
	))
	defer span.End()

	event, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to fetch event")
		}
		return nil, fmt.Errorf("fetching event: %w", err)
	}
	return event, nil
}

func (s *EventServiceImpl) List(ctx context.Context, params url.Values) ([]types.Event, types.PageMeta, error) {
	ctx, span := otel.Tracer("EventService").Start(ctx, "List")
	defer span.End()

	filter := search.BuildSearchQuery(params,
		[]string{"title", "location"},
		[]string{"status"},
		nil,
		nil,
	)
	page := search.BuildPaginationOptions(params, defaultPageSize)
	sorting := search.BuildSortOptions(params, "startDate", false)

	events, total, err := s.repo.List(ctx, filter, page, sorting)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to list events")
		return nil, types.PageMeta{}, fmt.Errorf("listing events: %w", err)
	}
	return events, types.NewPageMeta(total, page.Page, page.Limit), nil
}

func (s *EventServiceImpl) Update(ctx context.Context, p types.Principal, id uuid.UUID, params types.UpsertEventParams) (*types.Event, error) {
	ctx, span := otel.Tracer("EventService").Start(ctx, "Update", trace.WithAttributes(
		attribute.String("event.id", id.String()),
	))
	defer span.End()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching event: %w", err)
	}
	if !canManage(p, current.OrganizerID) {
		return nil, types.ErrForbidden
	}
	if err := validateWindow(params); err != nil {
		return nil, err
	}

	updated, err := s.repo.Update(ctx, id, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to update event")
		return nil, fmt.Errorf("updating event: %w", err)
	}
	return updated, nil
}

func (s *EventServiceImpl) Delete(ctx context.Context, p types.Principal, id uuid.UUID) error {
	ctx, span := otel.Tracer("EventService").Start(ctx, "Delete", trace.WithAttributes(
		attribute.String("event.id", id.String()),
	))
	defer span.End()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching event: %w", err)
	}
	if !canManage(p, current.OrganizerID) {
		return types.ErrForbidden
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to delete event")
		return fmt.Errorf("deleting event: %w", err)
	}
	return nil
}

func (s *EventServiceImpl) Join(ctx context.Context, p types.Principal, eventID uuid.UUID) (*types.Event, error) {
	ctx, span := otel.Tracer("EventService").Start(ctx, "Join", trace.WithAttributes(
		attribute.String("event.id", eventID.String()),
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	userID, err := uuid.Parse(p.ID)
	if err != nil {
		return nil, fmt.Errorf("bad principal id: %w", types.ErrValidation)
	}

	event, err := s.repo.AddParticipant(ctx, eventID, userID)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "Failed to join event")
		}
		return nil, fmt.Errorf("joining event: %w", err)
	}
	return event, nil
}

func (s *EventServiceImpl) Calendar(ctx context.Context, p types.Principal, params url.Values) ([]types.CalendarItem, error) {
	ctx, span := otel.Tracer("EventService").Start(ctx, "Calendar", trace.WithAttributes(
		attribute.String("user.id", p.ID),
	))
	defer span.End()

	l := s.logger.With(slog.String("method", "Calendar"), slog.String("userID", p.ID))

	now := time.Now()
	from := now.Add(-calendarPastWindow)
	to := now.Add(calendarFutureWindow)
	if t, err := time.Parse(time.RFC3339, params.Get("startDate")); err == nil {
		from = t
	} else if t, err := time.Parse("2006-01-02", params.Get("startDate")); err == nil {
		from = t
	}
	if t, err := time.Parse(time.RFC3339, params.Get("endDate")); err == nil {
		to = t
	} else if t, err := time.Parse("2006-01-02", params.Get("endDate")); err == nil {
		to = t
	}

	var scope *uuid.UUID
	if p.Role == types.RoleInstructor {
		id, err := uuid.Parse(p.ID)
		if err != nil {
			return nil, fmt.Errorf("bad principal id: %w", types.ErrValidation)
		}
		scope = &id
	}

	events, err := s.repo.EventsBetween(ctx, from, to, scope)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch calendar events", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch calendar events")
		return nil, fmt.Errorf("fetching calendar events: %w", err)
	}
	activities, err := s.repo.ActivityDeadlinesBetween(ctx, from, to, scope)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fetch activity deadlines", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to fetch activity deadlines")
		return nil, fmt.Errorf("fetching activity deadlines: %w", err)
	}

	items := make([]types.CalendarItem, 0, len(events)+len(activities))
	for _, e := range events {
		items = append(items, types.CalendarItem{
			ID:          e.ID,
			Title:       e.Title,
			Start:       e.StartDate,
			End:         e.EndDate,
			Description: e.Description,
			Type:        "event",
			Status:      e.Status,
			Owner:       e.Organizer,
			Color:       eventColor,
		})
	}
	for _, a := range activities {
		progress := a.Progress
		items = append(items, types.CalendarItem{
			ID:          a.ID,
			Title:       a.Title,
			Start:       *a.Deadline,
			End:         *a.Deadline,
			Description: a.Description,
			Type:        "activity",
			Status:      a.Status,
			Progress:    &progress,
			Owner:       a.Instructor,
			Color:       activityColor,
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Start.Before(items[j].Start) })
	return items, nil
}

// canManage allows the organizer plus superadmins.
func canManage(p types.Principal, organizerID uuid.UUID) bool {
	return p.Role == types.RoleSuperadmin || p.ID == organizerID.String()
}
