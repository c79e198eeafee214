package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/ports"
)

// ExportSchemaVersion versions the JSON export manifest.
const ExportSchemaVersion = "1.0"

// csvHeader is the column order of the flat export.
var csvHeader = []string{
	"id", "timestamp", "operation_type", "files", "user_modifications",
	"model_name", "model_version", "theme_selected", "entity_count",
	"processing_time", "success", "error_message",
}

// AuditService records and exports the operation log.
type AuditService struct {
	log    ports.AuditLog
	logger *slog.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(log ports.AuditLog, logger *slog.Logger) *AuditService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditService{log: log, logger: logger}
}

// Record appends one operation.
func (s *AuditService) Record(ctx context.Context, op *entities.Operation) error {
	if _, ok := entities.ParseOperationType(string(op.OperationType)); !ok {
		return fmt.Errorf("unknown operation type %q", op.OperationType)
	}
	if err := s.log.AppendOperation(ctx, op); err != nil {
		return fmt.Errorf("recording operation: %w", err)
	}
	return nil
}

// Query returns matching operations, newest first.
func (s *AuditService) Query(ctx context.Context, filter entities.OperationFilter) ([]*entities.Operation, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, fmt.Errorf("invalid date range: until is before since")
	}
	ops, err := s.log.QueryOperations(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("querying operations: %w", err)
	}
	return ops, nil
}

// exportManifest is the JSON export document.
type exportManifest struct {
	SchemaVersion   string                `json:"schema_version"`
	ExportTimestamp time.Time             `json:"export_timestamp"`
	FiltersApplied  map[string]any        `json:"filters_applied"`
	TotalResults    int                   `json:"total_results"`
	Operations      []*entities.Operation `json:"operations"`
}

// ExportJSON writes the matching operations as a manifest and returns how
// many were written.
func (s *AuditService) ExportJSON(ctx context.Context, w io.Writer, filter entities.OperationFilter) (int, error) {
	ops, err := s.Query(ctx, filter)
	if err != nil {
		return 0, err
	}
	if ops == nil {
		ops = []*entities.Operation{}
	}

	manifest := exportManifest{
		SchemaVersion:   ExportSchemaVersion,
		ExportTimestamp: time.Now().UTC(),
		FiltersApplied:  describeFilter(filter),
		TotalResults:    len(ops),
		Operations:      ops,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(manifest); err != nil {
		return 0, fmt.Errorf("encoding export: %w", err)
	}
	s.logger.Info("audit exported", "format", "json", "operations", len(ops))
	return len(ops), nil
}

// ExportCSV writes the matching operations as flat rows. files are joined
// with ";" and user_modifications is embedded as compact JSON.
func (s *AuditService) ExportCSV(ctx context.Context, w io.Writer, filter entities.OperationFilter) (int, error) {
	ops, err := s.Query(ctx, filter)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, fmt.Errorf("writing csv header: %w", err)
	}
	for _, op := range ops {
		row, err := csvRow(op)
		if err != nil {
			return 0, err
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flushing csv: %w", err)
	}
	s.logger.Info("audit exported", "format", "csv", "operations", len(ops))
	return len(ops), nil
}

func csvRow(op *entities.Operation) ([]string, error) {
	mods := ""
	if op.UserModifications != nil {
		data, err := json.Marshal(op.UserModifications)
		if err != nil {
			return nil, fmt.Errorf("encoding user modifications: %w", err)
		}
		mods = string(data)
	}
	return []string{
		op.ID,
		op.Timestamp.UTC().Format(time.RFC3339Nano),
		string(op.OperationType),
		strings.Join(op.Files, ";"),
		mods,
		op.ModelName,
		op.ModelVersion,
		string(op.ThemeSelected),
		strconv.Itoa(op.EntityCount),
		strconv.FormatFloat(op.ProcessingTime, 'f', -1, 64),
		strconv.FormatBool(op.Success),
		op.ErrorMessage,
	}, nil
}

// describeFilter lists only the filters that were set.
func describeFilter(f entities.OperationFilter) map[string]any {
	applied := map[string]any{}
	if f.Type != "" {
		applied["operation_type"] = f.Type
	}
	if f.Success != nil {
		applied["success"] = *f.Success
	}
	if !f.From.IsZero() {
		applied["from"] = f.From.UTC().Format(time.RFC3339)
	}
	if !f.To.IsZero() {
		applied["to"] = f.To.UTC().Format(time.RFC3339)
	}
	if f.Limit > 0 {
		applied["limit"] = f.Limit
	}
	return applied
}
