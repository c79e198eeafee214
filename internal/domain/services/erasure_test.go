package services

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

func TestErase_ByFullName(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	dupont := person(t, f, "Marie Dupont")
	svc := NewErasureService(f.store, nil, f.metrics)

	result, err := svc.Erase(ctx, "Marie Dupont", "GDPR-REQ-2026-042")
	require.NoError(t, err)
	assert.Equal(t, dupont.Entity.ID, result.Entity.ID)

	found, err := f.store.FindByFullName(ctx, "Marie Dupont")
	require.NoError(t, err)
	assert.Nil(t, found)

	ops, err := f.store.QueryOperations(ctx, entities.OperationFilter{Type: entities.OperationErasure})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	op := ops[0]
	assert.True(t, op.Success)
	assert.Equal(t, 1, op.EntityCount)
	assert.Empty(t, op.Files)
	assert.Equal(t, map[string]any{
		"entity_id":   dupont.Entity.ID,
		"entity_name": "Marie Dupont",
		"entity_type": "PERSON",
		"reason":      "GDPR-REQ-2026-042",
	}, op.UserModifications)

	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.Erasures), 1e-9)
}

func TestErase_ThenReprocessMintsFreshMapping(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	before := person(t, f, "Marie Dupont")

	_, err := NewErasureService(f.store, nil, nil).Erase(ctx, "Marie Dupont", "")
	require.NoError(t, err)

	after := person(t, f, "Marie Dupont")
	assert.Equal(t, entities.OutcomeNew, after.Outcome)
	assert.NotEqual(t, before.Entity.ID, after.Entity.ID)
}

func TestErase_ByIDPrefix(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	lyon := f.assign(t, "Lyon", entities.EntityLocation)
	svc := NewErasureService(f.store, nil, nil)

	result, err := svc.Erase(ctx, lyon.Entity.ID[:8], "")
	require.NoError(t, err)
	assert.Equal(t, "Lyon", result.Entity.FullName)

	count, err := f.store.CountEntities(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestErase_NotFound(t *testing.T) {
	f := newEngineFixture(t)
	svc := NewErasureService(f.store, nil, f.metrics)

	for _, id := range []string{"Nobody", "   "} {
		_, err := svc.Erase(context.Background(), id, "")
		require.ErrorIs(t, err, entities.ErrNotFound)
	}
	assert.Empty(t, f.store.Operations())
	assert.Zero(t, testutil.ToFloat64(f.metrics.Erasures))
}

func TestErase_AuditFailureKeepsEntity(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	person(t, f, "Marie Dupont")
	f.store.AppendErr = errors.New("log full")

	_, err := NewErasureService(f.store, nil, nil).Erase(ctx, "Marie Dupont", "")
	require.Error(t, err)

	found, err := f.store.FindByFullName(ctx, "Marie Dupont")
	require.NoError(t, err)
	assert.NotNil(t, found, "deletion rolls back with the audit record")
}

func TestEntityService(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	person(t, f, "Marie Dubois")
	person(t, f, "Claire")
	f.assign(t, "Lyon", entities.EntityLocation)
	svc := NewEntityService(f.store)

	found, err := svc.Search(ctx, "dubois", "")
	require.NoError(t, err)
	require.Len(t, found, 1)

	byPseudonym, err := svc.Search(ctx, "valbrune", entities.EntityLocation)
	require.NoError(t, err)
	require.Len(t, byPseudonym, 1)

	people, err := svc.List(ctx, entities.EntityFilter{EntityType: entities.EntityPerson})
	require.NoError(t, err)
	assert.Len(t, people, 2)

	review, err := svc.Ambiguous(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, "Claire", review[0].FullName)

	count, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	e, err := svc.FindByName(ctx, "Lyon")
	require.NoError(t, err)
	require.NotNil(t, e)

}
