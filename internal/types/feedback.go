package types

import (
	"time"

	"github.com/google/uuid"
)

// Feedback target types and statuses.
const (
	FeedbackTargetGuide    = "guide"
	FeedbackTargetActivity = "activity"
	FeedbackTargetSystem   = "system"

	FeedbackStatusPending  = "pending"
	FeedbackStatusReviewed = "reviewed"
	FeedbackStatusResolved = "resolved"
)

type Feedback struct {
	ID         uuid.UUID         `json:"id"`
	UserID     uuid.UUID         `json:"user_id"`
	User       *UserRef          `json:"user,omitempty"`
	TargetType string            `json:"target_type"`
	TargetID   *uuid.UUID        `json:"target_id,omitempty"` // nil for system feedback
	Rating     *int              `json:"rating,omitempty"`    // 1..5, nil for system feedback
	Comment    string            `json:"comment"`
	Status     string            `json:"status"`
	Response   *FeedbackResponse `json:"response,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

type FeedbackResponse struct {
	Text          string    `json:"text"`
	RespondedByID uuid.UUID `json:"responded_by_id"`
	RespondedAt   time.Time `json:"responded_at"`
}

type CreateFeedbackParams struct {
	TargetType string     `json:"target_type"`
	TargetID   *uuid.UUID `json:"target_id,omitempty"`
	Rating     *int       `json:"rating,omitempty"`
	Comment    string     `json:"comment"`
}
