package console

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

func init() {
	color.NoColor = true
}

var spans = []entities.DetectedSpan{
	{Text: "Marie Dubois", EntityType: entities.EntityPerson, Start: 0, End: 12},
	{Text: "Lyon", EntityType: entities.EntityLocation, Start: 20, End: 24},
	{Text: "Marie Dubois", EntityType: entities.EntityPerson, Start: 30, End: 42},
	{Text: "Nordis", EntityType: entities.EntityOrganization, Start: 50, End: 56},
}

func TestValidator_Decisions(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		accepted int
		rejected int
		edited   int
		texts    []string
	}{
		{
			name:     "accept all by default",
			input:    "\n\n\n",
			accepted: 4,
			texts:    []string{"Marie Dubois", "Lyon", "Marie Dubois", "Nordis"},
		},
		{
			name:     "reject shares decision across spans",
			input:    "r\na\na\n",
			accepted: 2,
			rejected: 2,
			texts:    []string{"Lyon", "Nordis"},
		},
		{
			name:     "edit",
			input:    "e\nMarie Dupont\nn\ny\n",
			accepted: 1,
			rejected: 1,
			edited:   2,
			texts:    []string{"Marie Dupont", "Marie Dupont", "Nordis"},
		},
		{
			name:     "accept all remaining",
			input:    "r\nA\n",
			accepted: 2,
			rejected: 2,
			texts:    []string{"Lyon", "Nordis"},
		},
		{
			name:     "end of input accepts",
			input:    "r\n",
			accepted: 2,
			rejected: 2,
			texts:    []string{"Lyon", "Nordis"},
		},
		{
			name:     "unknown answer asks again",
			input:    "x\nr\n\n\n",
			accepted: 2,
			rejected: 2,
			texts:    []string{"Lyon", "Nordis"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			v := NewValidator(strings.NewReader(tt.input), &out)

			res, err := v.Validate(context.Background(), "a.txt", "", spans)
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, res.Accepted)
			assert.Equal(t, tt.rejected, res.Rejected)
			assert.Equal(t, tt.edited, res.Edited)

			var texts []string
			for _, s := range res.Spans {
				texts = append(texts, s.Text)
			}
			assert.Equal(t, tt.texts, texts)
			assert.Contains(t, out.String(), "Review 3 mention(s) in a.txt")
		})
	}
}

func TestValidator_EditKeepsOffsets(t *testing.T) {
	v := NewValidator(strings.NewReader("e\nMarie Dupont\n\n\n"), &bytes.Buffer{})
	res, err := v.Validate(context.Background(), "a.txt", "", spans)
	require.NoError(t, err)
	require.NotEmpty(t, res.Spans)
	assert.Equal(t, 0, res.Spans[0].Start)
	assert.Equal(t, 12, res.Spans[0].End)
}

func TestValidator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	v := NewValidator(strings.NewReader(""), &bytes.Buffer{})
	_, err := v.Validate(ctx, "a.txt", "", spans)
	require.ErrorIs(t, err, context.Canceled)
}

func TestAutoAccept(t *testing.T) {
	res, err := AutoAccept{}.Validate(context.Background(), "a.txt", "", spans)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Accepted)
	assert.Equal(t, spans, res.Spans)
}
