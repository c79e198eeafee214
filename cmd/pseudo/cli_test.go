package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/pseudo-core/internal/domain/entities"
)

func TestConfirmFrom(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(strings.TrimSpace(tt.input), func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, tt.want, confirmFrom(strings.NewReader(tt.input), &out, "Erase?"))
			assert.Equal(t, "Erase? [y/N]: ", out.String())
		})
	}
}

func TestParseDate(t *testing.T) {
	from, err := parseDate("2026-03-01", false)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), from)

	to, err := parseDate("2026-03-01", true)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 23, 59, 59, 999999999, time.UTC), to)

	exact, err := parseDate("2026-03-01T10:00:00Z", true)
	require.NoError(t, err)
	assert.Equal(t, 10, exact.Hour())

	zero, err := parseDate("", false)
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	_, err = parseDate("yesterday", false)
	require.Error(t, err)
}

func TestBuildOperationFilter(t *testing.T) {
	f, err := buildOperationFilter(auditFlags{opType: "erasure", success: "false", since: "2026-01-01", limit: 5})
	require.NoError(t, err)
	assert.Equal(t, entities.OperationErasure, f.Type)
	require.NotNil(t, f.Success)
	assert.False(t, *f.Success)
	assert.Equal(t, 5, f.Limit)
	assert.False(t, f.From.IsZero())
	assert.True(t, f.To.IsZero())

	_, err = buildOperationFilter(auditFlags{opType: "DELETE"})
	require.Error(t, err)
	_, err = buildOperationFilter(auditFlags{success: "maybe"})
	require.Error(t, err)
}

func TestParseTypes(t *testing.T) {
	got, err := parseTypes(nil, []string{"PERSON", "ORG"})
	require.NoError(t, err)
	assert.Equal(t, []entities.EntityType{entities.EntityPerson, entities.EntityOrganization}, got)

	got, err = parseTypes([]string{"location"}, []string{"PERSON"})
	require.NoError(t, err)
	assert.Equal(t, []entities.EntityType{entities.EntityLocation}, got)

	got, err = parseTypes(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultTypes(), got)

	_, err = parseTypes([]string{"EMAIL"}, nil)
	require.Error(t, err)
}
