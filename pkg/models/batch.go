package models

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stdworks-inc/stdworks-engine/pkg/jsonutil"
)

// Batch lifecycle status values.
const (
	BatchStatusReceived  = "received"
	BatchStatusValidated = "validated"
	BatchStatusInvalid   = "invalid"
)

// Row status values.
const (
	RowStatusReceived = "received"
	RowStatusOK       = "ok"
	RowStatusError    = "error"
)

// Batch is one ingested set of tabular work-master rows from a single
// upload or API event. Rows cascade-delete with their batch.
type Batch struct {
	ID         uuid.UUID      `json:"id"`
	Source     string         `json:"source"`
	ProjectRef *string        `json:"project_ref,omitempty"`
	Uploader   string         `json:"uploader,omitempty"`
	Status     string         `json:"status"` // 'received', 'validated', 'invalid'
	Meta       map[string]any `json:"meta,omitempty"`
	ReceivedAt time.Time      `json:"received_at"`
}

// BatchSummary is a Batch with per-row status aggregates for listings.
type BatchSummary struct {
	Batch
	TotalRows int `json:"total_rows"`
	OKRows    int `json:"ok_rows"`
	ErrorRows int `json:"error_rows"`
}

// Row is a single work-master row within a batch. Payload is the raw
// ingested record and is expected to carry the business 'code' field.
type Row struct {
	ID       uuid.UUID      `json:"id"`
	BatchID  uuid.UUID      `json:"batch_id"`
	RowIndex int            `json:"row_index"`
	Payload  map[string]any `json:"payload"`
	Status   string         `json:"status"` // 'received', 'ok', 'error'
	Errors   []string       `json:"errors,omitempty"`
}

// CodeField is the payload key holding the stable business code used to
// match rows across batch generations.
const CodeField = "code"

// Code returns the row's business code, or "" when absent or blank.
// Upstream sources sometimes send numeric codes, so scalars are stringified.
func (r *Row) Code() string {
	return strings.TrimSpace(jsonutil.StringValue(r.Payload[CodeField]))
}

// Item is a flattened row view joined with its batch, used by item queries.
type Item struct {
	Row
	Source     string    `json:"source"`
	ReceivedAt time.Time `json:"received_at"`
}
