package integration

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pseudo-core/internal/application/handlers"
	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/services"
)

const (
	letter = "Chère Marie Dubois, Pierre Lefebvre vous attend à Lyon. Marie Dubois confirmera."
	reply  = "Mme Dubois a répondu depuis Lyon."

	letterSpans = `[
		{"text": "Marie Dubois", "type": "PERSON"},
		{"text": "Pierre Lefebvre", "type": "PERSON"},
		{"text": "Lyon", "type": "LOCATION"}
	]`
	replySpans = `[
		{"text": "Mme Dubois", "type": "PERSON"},
		{"text": "Lyon", "type": "LOC"}
	]`
)

func TestPipeline_ProcessEraseAudit(t *testing.T) {
	w := newWorkspace(t)
	ctx := t.Context()
	a := w.writeDoc(t, "letter.txt", letter, letterSpans)
	b := w.writeDoc(t, "reply.txt", reply, replySpans)

	store := w.open(t)
	defer store.Close()

	batch, err := w.handler(store).HandleFiles(ctx, []string{a, b}, handlers.ProcessOptions{SkipValidation: true}, nil)
	require.NoError(t, err)
	require.Equal(t, 2, batch.Succeeded)

	marie, err := store.FindByFullName(ctx, "Marie Dubois")
	require.NoError(t, err)
	require.NotNil(t, marie)
	lyon, err := store.FindByFullName(ctx, "Lyon")
	require.NoError(t, err)
	require.NotNil(t, lyon)

	out, err := os.ReadFile(batch.Files[0].OutputPath)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(out), marie.PseudonymFull))
	assert.NotContains(t, string(out), "Dubois")
	assert.NotContains(t, string(out), "Lyon")

	// "Mme Dubois" reuses the surname pseudonym of "Marie Dubois".
	titled, err := store.FindByFullName(ctx, "Mme Dubois")
	require.NoError(t, err)
	require.NotNil(t, titled)
	assert.Equal(t, marie.PseudonymLast, titled.PseudonymLast)

	replyOut, err := os.ReadFile(batch.Files[1].OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(replyOut), lyon.PseudonymFull)

	// Reprocessing is a no-op in effect.
	again, err := w.handler(store).HandleFile(ctx, a, handlers.ProcessOptions{SkipValidation: true})
	require.NoError(t, err)
	assert.True(t, again.Result.AlreadyProcessed)
	assert.Zero(t, again.Result.EntitiesNew)

	// Erasure removes the mapping and is audited in the same store.
	erasure := services.NewErasureService(store, nil, w.metrics)
	res, err := erasure.Erase(ctx, "Marie Dubois", "subject request")
	require.NoError(t, err)
	assert.Equal(t, marie.ID, res.Entity.ID)

	gone, err := store.FindByFullName(ctx, "Marie Dubois")
	require.NoError(t, err)
	assert.Nil(t, gone)

	audit := services.NewAuditService(store, nil)
	erasures, err := audit.Query(ctx, entities.OperationFilter{Type: entities.OperationErasure})
	require.NoError(t, err)
	require.Len(t, erasures, 1)
	assert.Equal(t, "subject request", erasures[0].UserModifications["reason"])

	batches, err := audit.Query(ctx, entities.OperationFilter{Type: entities.OperationBatch})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, []string{a, b}, batches[0].Files)

	assert.InDelta(t, 1, testutil.ToFloat64(w.metrics.Erasures), 0.001)
}

func TestPipeline_NoPlaintextAtRest(t *testing.T) {
	w := newWorkspace(t)
	a := w.writeDoc(t, "letter.txt", letter, letterSpans)

	store := w.open(t)
	_, err := w.handler(store).HandleFile(t.Context(), a, handlers.ProcessOptions{SkipValidation: true})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	for _, suffix := range []string{"", "-wal"} {
		raw, err := os.ReadFile(w.cfg.Path + suffix)
		if os.IsNotExist(err) {
			continue
		}
		require.NoError(t, err)
		for _, name := range []string{"Marie", "Dubois", "Pierre", "Lefebvre", "Lyon"} {
			assert.NotContains(t, string(raw), name, "store file%s leaks a real name", suffix)
		}
	}
}

func TestPipeline_ParallelWorkersShareMappings(t *testing.T) {
	w := newWorkspace(t)

	var paths []string
	for i := range 6 {
		text := fmt.Sprintf("Note %d : Pierre Lefebvre et Marie Dubois à Lyon.", i)
		paths = append(paths, w.writeDoc(t, fmt.Sprintf("note%d.txt", i), text, letterSpans))
	}

	batch, err := handlers.NewParallelHandler(w.factory(), 3, nil).HandleFiles(t.Context(), paths, handlers.ProcessOptions{}, nil)
	require.NoError(t, err)
	require.Equal(t, len(paths), batch.Succeeded)

	store := w.open(t)
	defer store.Close()

	n, err := store.CountEntities(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pierre, err := store.FindByFullName(t.Context(), "Pierre Lefebvre")
	require.NoError(t, err)
	require.NotNil(t, pierre)
	for _, fr := range batch.Files {
		out, err := os.ReadFile(fr.OutputPath)
		require.NoError(t, err)
		assert.Contains(t, string(out), pierre.PseudonymFull)
	}
}
