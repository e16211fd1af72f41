package types

import (
	"time"

	"github.com/google/uuid"
)

// Event statuses.
const (
	EventStatusScheduled  = "scheduled"
	EventStatusInProgress = "in-progress"
	EventStatusCompleted  = "completed"
	EventStatusCancelled  = "cancelled"
)

type Event struct {
	ID           uuid.UUID   `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	StartDate    time.Time   `json:"start_date"`
	EndDate      time.Time   `json:"end_date"`
	Location     *string     `json:"location,omitempty"`
	OrganizerID  uuid.UUID   `json:"organizer_id"`
	Organizer    *UserRef    `json:"organizer,omitempty"`
	Participants []uuid.UUID `json:"participants"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

type UpsertEventParams struct {
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	StartDate    time.Time   `json:"start_date"`
	EndDate      time.Time   `json:"end_date"`
	Location     *string     `json:"location,omitempty"`
	Participants []uuid.UUID `json:"participants,omitempty"`
	Status       *string     `json:"status,omitempty"`
}

// CalendarItem is the merged view of events and activity deadlines served
// by the calendar endpoints.
type CalendarItem struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Description string    `json:"description"`
	Type        string    `json:"type"` // event | activity
	Status      string    `json:"status"`
	Progress    *int      `json:"progress,omitempty"`
	Owner       *UserRef  `json:"owner,omitempty"`
	Color       string    `json:"color"`
}
