package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Result holds the inference output for a single Upload. Summary is the raw
// body returned by the inference endpoint and is stored verbatim.
type Result struct {
	ID         uuid.UUID       `db:"id"          json:"id"`
	UploadID   uuid.UUID       `db:"upload_id"   json:"upload_id"`
	Summary    json.RawMessage `db:"summary"     json:"summary"`
	ReportPath *string         `db:"report_path" json:"report_path"`
	CreatedAt  time.Time       `db:"created_at"  json:"created_at"`
}
