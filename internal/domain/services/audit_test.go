package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/mocks"
)

func seedOperations(t *testing.T, svc *AuditService) {
	t.Helper()
	ctx := context.Background()
	for _, op := range []*entities.Operation{
		{OperationType: entities.OperationProcess, Files: []string{"a.txt"}, EntityCount: 3, Success: true, ThemeSelected: entities.ThemeNeutral},
		{OperationType: entities.OperationProcess, Files: []string{"b.txt"}, Success: false, ErrorMessage: "persistence failure"},
		{OperationType: entities.OperationBatch, Files: []string{"a.txt", "b.txt"}, EntityCount: 3, Success: false,
			UserModifications: map[string]any{"succeeded": 1, "failed": 1}},
	} {
		require.NoError(t, svc.Record(ctx, op))
	}
}

func TestAuditService_Record(t *testing.T) {
	store := mocks.NewStore()
	svc := NewAuditService(store, nil)

	err := svc.Record(context.Background(), &entities.Operation{OperationType: "DELETE"})
	require.Error(t, err)
	assert.Empty(t, store.Operations())

	op := &entities.Operation{OperationType: entities.OperationValidate, Success: true}
	require.NoError(t, svc.Record(context.Background(), op))
	assert.NotEmpty(t, op.ID)
	assert.False(t, op.Timestamp.IsZero())
}

func TestAuditService_Query(t *testing.T) {
	svc := NewAuditService(mocks.NewStore(), nil)
	seedOperations(t, svc)
	ctx := context.Background()
	failed := false

	tests := []struct {
		name   string
		filter entities.OperationFilter
		want   []entities.OperationType
	}{
		{name: "all newest first", want: []entities.OperationType{entities.OperationBatch, entities.OperationProcess, entities.OperationProcess}},
		{name: "by type", filter: entities.OperationFilter{Type: entities.OperationBatch}, want: []entities.OperationType{entities.OperationBatch}},
		{name: "failures", filter: entities.OperationFilter{Success: &failed}, want: []entities.OperationType{entities.OperationBatch, entities.OperationProcess}},
		{name: "limit", filter: entities.OperationFilter{Limit: 1}, want: []entities.OperationType{entities.OperationBatch}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ops, err := svc.Query(ctx, tt.filter)
			require.NoError(t, err)
			got := make([]entities.OperationType, len(ops))
			for i, op := range ops {
				got[i] = op.OperationType
			}
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("inverted range", func(t *testing.T) {
		now := time.Now()
		_, err := svc.Query(ctx, entities.OperationFilter{From: now, To: now.Add(-time.Hour)})
		require.Error(t, err)
	})
}

func TestAuditService_ExportJSON(t *testing.T) {
	svc := NewAuditService(mocks.NewStore(), nil)
	seedOperations(t, svc)

	var buf bytes.Buffer
	n, err := svc.ExportJSON(context.Background(), &buf, entities.OperationFilter{Type: entities.OperationProcess})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var manifest struct {
		SchemaVersion   string               `json:"schema_version"`
		ExportTimestamp time.Time            `json:"export_timestamp"`
		FiltersApplied  map[string]any       `json:"filters_applied"`
		TotalResults    int                  `json:"total_results"`
		Operations      []entities.Operation `json:"operations"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &manifest))
	assert.Equal(t, ExportSchemaVersion, manifest.SchemaVersion)
	assert.False(t, manifest.ExportTimestamp.IsZero())
	assert.Equal(t, map[string]any{"operation_type": "PROCESS"}, manifest.FiltersApplied)
	assert.Equal(t, 2, manifest.TotalResults)
	require.Len(t, manifest.Operations, 2)
	assert.Equal(t, []string{"b.txt"}, manifest.Operations[0].Files)
}

func TestAuditService_ExportJSON_Empty(t *testing.T) {
	svc := NewAuditService(mocks.NewStore(), nil)

	var buf bytes.Buffer
	n, err := svc.ExportJSON(context.Background(), &buf, entities.OperationFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Contains(t, buf.String(), `"operations": []`)
	assert.Contains(t, buf.String(), `"filters_applied": {}`)
}

func TestAuditService_ExportCSV(t *testing.T) {
	svc := NewAuditService(mocks.NewStore(), nil)
	seedOperations(t, svc)

	var buf bytes.Buffer
	n, err := svc.ExportCSV(context.Background(), &buf, entities.OperationFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader, rows[0])

	batch := rows[1]
	assert.Equal(t, "BATCH", batch[2])
	assert.Equal(t, "a.txt;b.txt", batch[3])
	assert.JSONEq(t, `{"failed":1,"succeeded":1}`, batch[4])
	assert.Equal(t, "false", batch[10])

	failed := rows[2]
	assert.Empty(t, failed[4])
	assert.Equal(t, "persistence failure", failed[11])
}
