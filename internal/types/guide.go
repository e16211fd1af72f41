package types

import (
	"time"

	"github.com/google/uuid"
)

// Guide statuses.
const (
	GuideStatusDraft    = "draft"
	GuideStatusPending  = "pending"
	GuideStatusApproved = "approved"
	GuideStatusRejected = "rejected"
)

type Guide struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	InstructorID  uuid.UUID  `json:"instructor_id"`
	Instructor    *UserRef   `json:"instructor,omitempty"`
	Introduction  string     `json:"introduction"`
	Objectives    []string   `json:"objectives"`
	Materials     []string   `json:"materials"`
	Development   string     `json:"development"`
	Evaluation    string     `json:"evaluation"`
	Resources     []string   `json:"resources"`
	Tags          []string   `json:"tags"`
	Category      string     `json:"category"`   // teorica | practica | evaluativa | complementaria
	Difficulty    string     `json:"difficulty"` // basica | intermedia | avanzada
	EstimatedTime int        `json:"estimated_time"`
	Status        string     `json:"status"`
	ActivityID    uuid.UUID  `json:"activity_id"`
	ActivityTitle *string    `json:"activity_title,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type CreateGuideParams struct {
	Title        string    `json:"title"`
	Introduction string    `json:"introduction"`
	Objectives   []string  `json:"objectives"`
	Materials    []string  `json:"materials,omitempty"`
	Development  string    `json:"development"`
	Evaluation   string    `json:"evaluation"`
	Resources    []string  `json:"resources,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	ActivityID   uuid.UUID `json:"activity"`
}

type UpdateGuideParams struct {
	Title        string   `json:"title"`
	Introduction string   `json:"introduction"`
	Objectives   []string `json:"objectives"`
	Materials    []string `json:"materials,omitempty"`
	Development  string   `json:"development"`
	Evaluation   string   `json:"evaluation"`
	Resources    []string `json:"resources,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Status       *string  `json:"status,omitempty"` // admin/superadmin only
}

// GuideVersion is an immutable snapshot of a guide at versioning time.
type GuideVersion struct {
	ID                uuid.UUID `json:"id"`
	GuideID           uuid.UUID `json:"guide_id"`
	VersionNumber     int       `json:"version_number"`
	Title             string    `json:"title"`
	Introduction      string    `json:"introduction"`
	Objectives        []string  `json:"objectives"`
	Materials         []string  `json:"materials"`
	Development       string    `json:"development"`
	Evaluation        string    `json:"evaluation"`
	Resources         []string  `json:"resources"`
	ChangedByID       uuid.UUID `json:"changed_by_id"`
	ChangedBy         *UserRef  `json:"changed_by,omitempty"`
	ChangeDescription string    `json:"change_description"`
	CreatedAt         time.Time `json:"created_at"`
}
