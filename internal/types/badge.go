package types

import (
	"time"

	"github.com/google/uuid"
)

// Badge categories.
const (
	BadgeCategoryContent       = "content"
	BadgeCategoryParticipation = "participation"
	BadgeCategoryQuality       = "quality"
	BadgeCategoryAchievement   = "achievement"
)

type Badge struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Criteria    string    `json:"criteria"`
	Points      int       `json:"points"`
	Category    string    `json:"category"`
	CreatedByID uuid.UUID `json:"created_by_id"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateBadgeParams struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Criteria    string `json:"criteria"`
	Category    string `json:"category"`
	Points      *int   `json:"points,omitempty"`
}

type UpdateBadgeParams struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Icon        *string `json:"icon,omitempty"`
	Criteria    *string `json:"criteria,omitempty"`
	Category    *string `json:"category,omitempty"`
	Points      *int    `json:"points,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// UserBadge tracks a user's progress towards a badge. (user, badge) is unique.
type UserBadge struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	BadgeID     uuid.UUID  `json:"badge_id"`
	Badge       *Badge     `json:"badge,omitempty"`
	Progress    int        `json:"progress"` // 0..100
	IsCompleted bool       `json:"is_completed"`
	EarnedAt    *time.Time `json:"earned_at,omitempty"`
}
