package entities

import "time"

// OperationType classifies an audit record.
type OperationType string

const (
	OperationProcess  OperationType = "PROCESS"
	OperationBatch    OperationType = "BATCH"
	OperationValidate OperationType = "VALIDATE"
	OperationErasure  OperationType = "ERASURE"
)

// ParseOperationType validates an operation type name.
func ParseOperationType(s string) (OperationType, bool) {
	switch t := OperationType(s); t {
	case OperationProcess, OperationBatch, OperationValidate, OperationErasure:
		return t, true
	default:
		return "", false
	}
}

// Operation is an append-only audit record of one logical action.
// It carries file identifiers and counts, never document text.
type Operation struct {
	ID                string         `json:"id"`
	Timestamp         time.Time      `json:"timestamp"`
	OperationType     OperationType  `json:"operation_type"`
	Files             []string       `json:"files"`
	UserModifications map[string]any `json:"user_modifications,omitempty"`
	ModelName         string         `json:"model_name,omitempty"`
	ModelVersion      string         `json:"model_version,omitempty"`
	ThemeSelected     Theme          `json:"theme_selected,omitempty"`
	EntityCount       int            `json:"entity_count"`
	ProcessingTime    float64        `json:"processing_time"`
	Success           bool           `json:"success"`
	ErrorMessage      string         `json:"error_message,omitempty"`
}

// OperationFilter narrows audit queries. Zero values mean "any".
type OperationFilter struct {
	Type    OperationType `json:"operation_type,omitempty"`
	Success *bool         `json:"success,omitempty"`
	From    time.Time     `json:"from,omitempty"`
	To      time.Time     `json:"to,omitempty"`
	Limit   int           `json:"limit,omitempty"`
}

// FileRecord is the idempotency bookkeeping kept per processed file.
type FileRecord struct {
	FileID      string    `json:"-"`
	ContentHash string    `json:"content_hash"`
	ProcessedAt time.Time `json:"processed_at"`
}
