package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
	"github.com/ersonp/pseudo-core/internal/domain/mocks"
	"github.com/ersonp/pseudo-core/internal/domain/ports"
)

type mention struct {
	text string
	typ  entities.EntityType
}

// spansFor returns a span for every whole-word occurrence of each mention.
func spansFor(text string, mentions ...mention) []entities.DetectedSpan {
	var spans []entities.DetectedSpan
	for _, m := range mentions {
		for _, loc := range LocateAll(text, m.text) {
			spans = append(spans, entities.DetectedSpan{
				Text: m.text, EntityType: m.typ, Start: loc[0], End: loc[1], Confidence: 0.95,
			})
		}
	}
	return spans
}

func newTestProcessor(t *testing.T, validator ports.Validator) (*Processor, *engineFixture) {
	t.Helper()
	f := newEngineFixture(t)
	p := NewProcessor(f.store, f.engine, validator, ProcessorOptions{
		ModelName:    "sidecar",
		ModelVersion: "1",
		Metrics:      f.metrics,
	})
	return p, f
}

const doc = "Marie Dubois a rencontré Pierre Lefebvre à Lyon. Marie Dubois est repartie."

func docRequest(id string) ProcessRequest {
	return ProcessRequest{
		DocumentID:  id,
		Text:        doc,
		ContentHash: "hash-1",
		Spans: spansFor(doc,
			mention{"Marie Dubois", entities.EntityPerson},
			mention{"Pierre Lefebvre", entities.EntityPerson},
			mention{"Lyon", entities.EntityLocation},
		),
		SkipValidation: true,
	}
}

func TestProcess_ReprocessingIsIdempotent(t *testing.T) {
	p, f := newTestProcessor(t, nil)
	ctx := context.Background()

	first, err := p.Process(ctx, docRequest("a.txt"))
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, 4, first.EntitiesDetected)
	assert.Equal(t, 3, first.UniqueEntities)
	assert.Equal(t, 3, first.EntitiesNew)
	assert.Zero(t, first.EntitiesReused)
	assert.False(t, first.AlreadyProcessed)
	assert.Equal(t, "Claire Martin a rencontré Antoine Bernard à Valbrune. Claire Martin est repartie.", first.Output)

	second, err := p.Process(ctx, docRequest("a.txt"))
	require.NoError(t, err)
	assert.Zero(t, second.EntitiesNew)
	assert.Equal(t, second.UniqueEntities, second.EntitiesReused)
	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, first.Output, second.Output)

	count, err := f.store.CountEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestProcess_RecordsOperationAndFile(t *testing.T) {
	p, f := newTestProcessor(t, nil)
	ctx := context.Background()

	_, err := p.Process(ctx, docRequest("a.txt"))
	require.NoError(t, err)

	ops := f.store.Operations()
	require.Len(t, ops, 1)
	op := ops[0]
	assert.Equal(t, entities.OperationProcess, op.OperationType)
	assert.Equal(t, []string{"a.txt"}, op.Files)
	assert.Equal(t, 3, op.EntityCount)
	assert.True(t, op.Success)
	assert.Equal(t, "sidecar", op.ModelName)
	assert.Equal(t, entities.ThemeNeutral, op.ThemeSelected)

	rec, err := f.store.FileRecord(ctx, "a.txt")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "hash-1", rec.ContentHash)
}

func TestProcess_PersistenceFailureRollsBackDocument(t *testing.T) {
	p, f := newTestProcessor(t, nil)
	ctx := context.Background()
	f.store.FailSaveAt = 2

	result, err := p.Process(ctx, docRequest("a.txt"))
	require.ErrorIs(t, err, entities.ErrPersistenceFailure)
	assert.False(t, result.Success)
	assert.NotEmpty(t, result.Error)
	assert.Zero(t, result.EntitiesNew)
	assert.Empty(t, result.Output)

	count, err := f.store.CountEntities(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "no partial rows survive")

	rec, err := f.store.FileRecord(ctx, "a.txt")
	require.NoError(t, err)
	assert.Nil(t, rec)

	ops := f.store.Operations()
	require.Len(t, ops, 1)
	assert.False(t, ops[0].Success)
	assert.Equal(t, entities.OperationProcess, ops[0].OperationType)
	assert.NotContains(t, ops[0].ErrorMessage, "Marie")
	assert.NotContains(t, ops[0].ErrorMessage, "Dubois")
}

func TestProcess_CancelledContextCommitsNothing(t *testing.T) {
	p, f := newTestProcessor(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.Process(ctx, docRequest("a.txt"))
	require.Error(t, err)
	assert.False(t, result.Success)

	count, err := f.store.CountEntities(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)

	ops := f.store.Operations()
	require.Len(t, ops, 1)
	assert.False(t, ops[0].Success)
}

func TestProcess_Validation(t *testing.T) {
	v := &mocks.Validator{
		Reject: map[string]bool{"Lyon": true},
		Edit:   map[string]string{"Pierre Lefebvre": "Pierre Lefèvre"},
	}
	p, f := newTestProcessor(t, v)
	ctx := context.Background()

	req := docRequest("a.txt")
	req.SkipValidation = false
	result, err := p.Process(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Calls)
	assert.Equal(t, 3, result.EntitiesDetected)
	assert.Equal(t, 2, result.UniqueEntities)
	assert.Contains(t, result.Output, "à Lyon.")

	lyon, err := f.store.FindByFullName(ctx, "Lyon")
	require.NoError(t, err)
	assert.Nil(t, lyon, "rejected spans are never persisted")

	edited, err := f.store.FindByFullName(ctx, "Pierre Lefèvre")
	require.NoError(t, err)
	assert.NotNil(t, edited)

	validate, err := f.store.QueryOperations(ctx, entities.OperationFilter{Type: entities.OperationValidate})
	require.NoError(t, err)
	require.Len(t, validate, 1)
	assert.Equal(t, 2, validate[0].UserModifications["accepted"])
	assert.Equal(t, 1, validate[0].UserModifications["rejected"])
	assert.Equal(t, 1, validate[0].UserModifications["edited"])
}

func TestProcess_SkipValidationBypassesValidator(t *testing.T) {
	v := &mocks.Validator{Reject: map[string]bool{"Lyon": true}}
	p, _ := newTestProcessor(t, v)

	result, err := p.Process(context.Background(), docRequest("a.txt"))
	require.NoError(t, err)
	assert.Zero(t, v.Calls)
	assert.Equal(t, 3, result.UniqueEntities)
}

func TestProcess_EntityTypeFilter(t *testing.T) {
	p, f := newTestProcessor(t, nil)
	ctx := context.Background()

	req := docRequest("a.txt")
	req.EntityTypes = []entities.EntityType{entities.EntityLocation}
	result, err := p.Process(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UniqueEntities)
	assert.Contains(t, result.Output, "Marie Dubois")
	assert.Contains(t, result.Output, "Valbrune")

	count, err := f.store.CountEntities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcess_ClassifiesEachFirstTokenOnce(t *testing.T) {
	p, f := newTestProcessor(t, nil)
	text := "Marie Dubois et Marie Curie."
	req := ProcessRequest{
		DocumentID:     "b.txt",
		Text:           text,
		Spans:          spansFor(text, mention{"Marie Dubois", entities.EntityPerson}, mention{"Marie Curie", entities.EntityPerson}),
		SkipValidation: true,
	}

	result, err := p.Process(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, f.classifier.CallCount)
	assert.Equal(t, "Claire Martin et Claire Bernard.", result.Output)
}

func TestProcess_MissingDocumentID(t *testing.T) {
	p, _ := newTestProcessor(t, nil)
	result, err := p.Process(context.Background(), ProcessRequest{Text: "x"})
	require.Error(t, err)
	assert.False(t, result.Success)
}

func TestCollectMentions(t *testing.T) {
	spans := []entities.DetectedSpan{
		{Text: "Marie  Dubois", EntityType: entities.EntityPerson, Confidence: 0.5},
		{Text: "Lyon", EntityType: entities.EntityLocation, Confidence: 0.9},
		{Text: "Marie Dubois", EntityType: entities.EntityPerson, Confidence: 0.8, GenderHint: entities.GenderFemale},
		{Text: "Lyon", EntityType: entities.EntityOrganization, Confidence: 0.7},
	}

	mentions := collectMentions(spans)
	require.Len(t, mentions, 3)
	assert.Equal(t, "Marie Dubois", mentions[0].Text)
	assert.InDelta(t, 0.8, mentions[0].Confidence, 1e-9)
	assert.Equal(t, entities.GenderFemale, mentions[0].GenderHint)
	assert.Equal(t, entities.EntityLocation, mentions[1].EntityType)
	assert.Equal(t, entities.EntityOrganization, mentions[2].EntityType)
}
