package parsers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestJSONParser_Parse_ValidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []RawSpan
	}{
		{
			name:  "single span",
			input: `[{"text": "Marie Dubois", "type": "PERSON"}]`,
			expected: []RawSpan{
				{Text: "Marie Dubois", Type: "PERSON", LineNum: 1},
			},
		},
		{
			name:     "empty array",
			input:    "[]",
			expected: []RawSpan{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &JSONParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestJSONParser_Parse_AllFields(t *testing.T) {
	input := `[{
		"text": "Lyon",
		"type": "LOC",
		"start": 0,
		"end": 4,
		"confidence": 0.95,
		"gender": ""
	}]`

	parser := &JSONParser{}
	result, err := parser.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, result, 1)

	span := result[0]
	assert.Equal(t, "Lyon", span.Text)
	assert.Equal(t, "LOC", span.Type)
	assert.Equal(t, intPtr(0), span.Start)
	assert.Equal(t, intPtr(4), span.End)
	assert.Equal(t, floatPtr(0.95), span.Confidence)
}

func TestJSONParser_Parse_InvalidInput(t *testing.T) {
	parser := &JSONParser{}
	_, err := parser.Parse(strings.NewReader("not json"))
	require.Error(t, err)
}

func TestCSVParser_Parse_ValidInput(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []RawSpan
	}{
		{
			name:  "required columns only",
			input: "text,type\nMarie Dubois,PERSON\n",
			expected: []RawSpan{
				{Text: "Marie Dubois", Type: "PERSON", LineNum: 2},
			},
		},
		{
			name:     "empty CSV (header only)",
			input:    "text,type\n",
			expected: nil,
		},
		{
			name:  "columns in different order",
			input: "type,end,text,start\nLOCATION,4,Lyon,0\n",
			expected: []RawSpan{
				{Text: "Lyon", Type: "LOCATION", Start: intPtr(0), End: intPtr(4), LineNum: 2},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &CSVParser{}
			result, err := parser.Parse(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCSVParser_Parse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		errMsg string
	}{
		{
			name:   "missing required column",
			input:  "text\nMarie\n",
			errMsg: "missing required column: type",
		},
		{
			name:   "invalid confidence value",
			input:  "text,type,confidence\nMarie,PERSON,high\n",
			errMsg: "invalid confidence value",
		},
		{
			name:   "invalid offset",
			input:  "text,type,start,end\nMarie,PERSON,a,5\n",
			errMsg: "invalid start offset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := &CSVParser{}
			_, err := parser.Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestForFormat(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFormat("json"))
	assert.IsType(t, &CSVParser{}, ForFormat("csv"))
	assert.Nil(t, ForFormat("unknown"))
}

func TestForFile(t *testing.T) {
	assert.IsType(t, &JSONParser{}, ForFile("letter.txt.spans.json"))
	assert.IsType(t, &CSVParser{}, ForFile("data.csv"))
	assert.Nil(t, ForFile("file.txt"))
	assert.Nil(t, ForFile("noextension"))
}

func TestResolve(t *testing.T) {
	text := "Marie Dubois vit à Lyon avec Dubois."

	t.Run("offsets and expansion", func(t *testing.T) {
		raw := []RawSpan{
			{Text: "Marie Dubois", Type: "PER", Start: intPtr(0), End: intPtr(12), Gender: "female", Confidence: floatPtr(0.9)},
			{Text: "Lyon", Type: "LOCATION"},
		}
		spans, err := Resolve(raw, text)
		require.NoError(t, err)
		require.Len(t, spans, 2)
		assert.Equal(t, entities.DetectedSpan{
			Text: "Marie Dubois", EntityType: entities.EntityPerson, Start: 0, End: 12, Confidence: 0.9, GenderHint: entities.GenderFemale,
		}, spans[0])
		assert.Equal(t, "Lyon", text[spans[1].Start:spans[1].End])
		assert.InDelta(t, defaultConfidence, spans[1].Confidence, 1e-9)
	})

	t.Run("text without offsets matches every whole word", func(t *testing.T) {
		spans, err := Resolve([]RawSpan{{Text: "Dubois", Type: "PERSON"}}, text)
		require.NoError(t, err)
		assert.Len(t, spans, 2)
	})

	t.Run("blank text is skipped", func(t *testing.T) {
		spans, err := Resolve([]RawSpan{{Text: " ", Type: "PERSON"}}, text)
		require.NoError(t, err)
		assert.Empty(t, spans)
	})

	errCases := []struct {
		name string
		raw  RawSpan
	}{
		{"unknown type", RawSpan{Text: "Lyon", Type: "DATE"}},
		{"unknown gender", RawSpan{Text: "Lyon", Type: "LOC", Gender: "robot"}},
		{"half offsets", RawSpan{Text: "Lyon", Type: "LOC", Start: intPtr(20)}},
		{"out of range", RawSpan{Text: "Lyon", Type: "LOC", Start: intPtr(20), End: intPtr(200)}},
		{"mismatched text", RawSpan{Text: "Paris", Type: "LOC", Start: intPtr(0), End: intPtr(5)}},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve([]RawSpan{tc.raw}, text)
			require.Error(t, err)
			assert.NotContains(t, err.Error(), "Paris")
		})
	}
}

func TestSidecarRecognizer(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "letter.txt")
	text := "Bonjour Marie Dubois."
	require.NoError(t, os.WriteFile(doc, []byte(text), 0600))

	r := NewSidecarRecognizer()
	name, _ := r.ModelInfo()
	assert.Equal(t, "sidecar", name)

	_, err := r.Recognize(context.Background(), doc, text)
	require.ErrorIs(t, err, ErrNoSidecar)

	require.NoError(t, os.WriteFile(doc+".spans.csv", []byte("text,type\nMarie Dubois,PERSON\n"), 0600))
	spans, err := r.Recognize(context.Background(), doc, text)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, 8, spans[0].Start)

	require.NoError(t, os.WriteFile(doc+".spans.json", []byte(`[{"text":"Dubois","type":"PERSON"}]`), 0600))
	spans, err = r.Recognize(context.Background(), doc, text)
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "Dubois", spans[0].Text, "json sidecar takes precedence")
}
