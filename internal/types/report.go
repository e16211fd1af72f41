package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Report types and formats.
const (
	ReportTypeActivity   = "activity"
	ReportTypeInstructor = "instructor"
	ReportTypeEvent      = "event"
	ReportTypeGeneral    = "general"

	ReportFormatExcel = "excel"
	ReportFormatPDF   = "pdf"
	ReportFormatCSV   = "csv"
)

type Report struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	CreatorID   uuid.UUID       `json:"creator_id"`
	Creator     *UserRef        `json:"creator,omitempty"`
	Data        json.RawMessage `json:"data"`
	Format      string          `json:"format"`
	Status      string          `json:"status"` // pending | generated | error
	GeneratedAt time.Time       `json:"generated_at"`
	CreatedAt   time.Time       `json:"created_at"`
}

type CreateReportParams struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	Data        json.RawMessage `json:"data"`
	Format      string          `json:"format"`
}
