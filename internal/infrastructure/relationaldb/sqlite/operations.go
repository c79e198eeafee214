package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

// AppendOperation records one operation. ID and Timestamp are filled when empty.
func (r *Repository) AppendOperation(ctx context.Context, op *entities.Operation) error {
	if op.ID == "" {
		op.ID = generateUUID()
	}
	if op.Timestamp.IsZero() {
		op.Timestamp = timeNow().UTC()
	}
	if op.Files == nil {
		op.Files = []string{}
	}

	files, err := json.Marshal(op.Files)
	if err != nil {
		return fmt.Errorf("marshaling files: %w", err)
	}

	var mods sql.NullString
	if op.UserModifications != nil {
		data, err := json.Marshal(op.UserModifications)
		if err != nil {
			return fmt.Errorf("marshaling user modifications: %w", err)
		}
		mods = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO operations (id, timestamp, operation_type, files, user_modifications,
			model_name, model_version, theme_selected, entity_count, processing_time,
			success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.conn(ctx).ExecContext(ctx, query,
		op.ID,
		op.Timestamp.UnixNano(),
		string(op.OperationType),
		string(files),
		mods,
		op.ModelName,
		op.ModelVersion,
		string(op.ThemeSelected),
		op.EntityCount,
		op.ProcessingTime,
		boolToInt(op.Success),
		op.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("%w: appending operation: %v", entities.ErrPersistenceFailure, err)
	}
	return nil
}

// QueryOperations returns operations matching the filter, newest first.
func (r *Repository) QueryOperations(ctx context.Context, filter entities.OperationFilter) ([]*entities.Operation, error) {
	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		where = append(where, "operation_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Success != nil {
		where = append(where, "success = ?")
		args = append(args, boolToInt(*filter.Success))
	}
	if !filter.From.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.From.UnixNano())
	}
	if !filter.To.IsZero() {
		where = append(where, "timestamp <= ?")
		args = append(args, filter.To.UnixNano())
	}

	var b strings.Builder
	b.WriteString(`SELECT id, timestamp, operation_type, files, user_modifications,
		model_name, model_version, theme_selected, entity_count, processing_time,
		success, error_message FROM operations`)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY timestamp DESC, rowid DESC")
	if filter.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, filter.Limit)
	}

	rows, err := r.conn(ctx).QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying operations: %w", err)
	}
	defer rows.Close()

	var ops []*entities.Operation
	if filter.Limit > 0 {
		ops = make([]*entities.Operation, 0, filter.Limit)
	}
	for rows.Next() {
		var (
			op      entities.Operation
			ts      int64
			opType  string
			files   string
			mods    sql.NullString
			theme   string
			success int
		)
		if err := rows.Scan(
			&op.ID, &ts, &opType, &files, &mods,
			&op.ModelName, &op.ModelVersion, &theme,
			&op.EntityCount, &op.ProcessingTime, &success, &op.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}

		op.Timestamp = time.Unix(0, ts).UTC()
		op.OperationType = entities.OperationType(opType)
		op.ThemeSelected = entities.Theme(theme)
		op.Success = success != 0

		if err := json.Unmarshal([]byte(files), &op.Files); err != nil {
			return nil, fmt.Errorf("unmarshaling files: %w", err)
		}
		if mods.Valid && mods.String != "" {
			if err := json.Unmarshal([]byte(mods.String), &op.UserModifications); err != nil {
				return nil, fmt.Errorf("unmarshaling user modifications: %w", err)
			}
		}
		ops = append(ops, &op)
	}
	return ops, rows.Err()
}

// fileRecordValue is the JSON stored under a file: metadata key.
type fileRecordValue struct {
	ContentHash string    `json:"content_hash"`
	ProcessedAt time.Time `json:"processed_at"`
}

// FileRecord returns the bookkeeping stored for fileID, or nil.
func (r *Repository) FileRecord(ctx context.Context, fileID string) (*entities.FileRecord, error) {
	var raw string
	err := r.conn(ctx).QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, metaFilePrefix+fileID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading file record: %w", err)
	}

	var v fileRecordValue
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("%w: unreadable file record", entities.ErrCorruptedStore)
	}
	return &entities.FileRecord{FileID: fileID, ContentHash: v.ContentHash, ProcessedAt: v.ProcessedAt}, nil
}

// RecordFile upserts the bookkeeping for rec.FileID.
func (r *Repository) RecordFile(ctx context.Context, rec *entities.FileRecord) error {
	if rec.FileID == "" {
		return errors.New("file id is required")
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = timeNow().UTC()
	}
	data, err := json.Marshal(fileRecordValue{ContentHash: rec.ContentHash, ProcessedAt: rec.ProcessedAt})
	if err != nil {
		return fmt.Errorf("marshaling file record: %w", err)
	}
	return r.setMetadata(ctx, metaFilePrefix+rec.FileID, string(data))
}
