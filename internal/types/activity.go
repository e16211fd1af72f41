package types

import (
	"time"

	"github.com/google/uuid"
)

// Activity statuses.
const (
	ActivityStatusPending    = "pending"
	ActivityStatusInProgress = "in-progress"
	ActivityStatusCompleted  = "completed"
)

type Activity struct {
	ID           uuid.UUID  `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	InstructorID uuid.UUID  `json:"instructor_id"`
	Instructor   *UserRef   `json:"instructor,omitempty"`
	StartDate    time.Time  `json:"start_date"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Priority     string     `json:"priority"` // baja | media | alta
	Category     string     `json:"category"` // clase | taller | evaluacion | proyecto | otro
	Tags         []string   `json:"tags"`
	Location     *string    `json:"location,omitempty"`
	Status       string     `json:"status"`
	Progress     int        `json:"progress"` // 0..100
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// UserRef is the thin user projection embedded in resource responses,
// mirroring what list endpoints join in (name/email only).
type UserRef struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
}

type CreateActivityParams struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Location    *string    `json:"location,omitempty"`
}

// UpdateActivityParams uses pointers so absent fields are left untouched.
type UpdateActivityParams struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Progress    *int       `json:"progress,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Location    *string    `json:"location,omitempty"`
}
