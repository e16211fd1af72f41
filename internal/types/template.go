package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Template types.
const (
	TemplateTypeGuide    = "guide"
	TemplateTypeActivity = "activity"
	TemplateTypeReport   = "report"
)

type Template struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	CreatorID   uuid.UUID       `json:"creator_id"`
	Creator     *UserRef        `json:"creator,omitempty"`
	Structure   json.RawMessage `json:"structure"`
	IsDefault   bool            `json:"is_default"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CreateTemplateParams struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Structure   json.RawMessage `json:"structure"`
	IsDefault   *bool           `json:"is_default,omitempty"`
}

type UpdateTemplateParams struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	Type        *string         `json:"type,omitempty"`
	Structure   json.RawMessage `json:"structure,omitempty"`
	IsDefault   *bool           `json:"is_default,omitempty"`
}
