package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncrementAssignment("PERSON", "NEW")
		m.IncrementAmbiguous("PERSON")
		m.ObserveDocument(true, time.Second)
		m.AddValidationRejected(2)
		m.IncrementErasure()
		m.IncrementPoolFallback("combined")
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile("/nonexistent/x.prom"))
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.IncrementAssignment("PERSON", "NEW")
	m.IncrementAssignment("PERSON", "NEW")
	m.IncrementAssignment("PERSON", "REUSED")
	m.ObserveDocument(false, 10*time.Millisecond)
	m.AddValidationRejected(0)
	m.AddValidationRejected(3)
	m.IncrementErasure()

	assert.InDelta(t, 2, testutil.ToFloat64(m.Assignments.WithLabelValues("PERSON", "NEW")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Assignments.WithLabelValues("PERSON", "REUSED")), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Documents.WithLabelValues("failure")), 1e-9)
	assert.InDelta(t, 3, testutil.ToFloat64(m.ValidationRejected), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Erasures), 1e-9)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := New()
	m.IncrementErasure()

	path := filepath.Join(t.TempDir(), "pseudo.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pseudo_erasures_total 1")
	assert.NoError(t, m.WriteTextfile(""))
}
