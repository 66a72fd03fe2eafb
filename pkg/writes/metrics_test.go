package writes

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordResult(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.RecordResult(ActionCreate, WriteResult{Status: StatusSucceeded, Attempts: 2})
	m.RecordResult(ActionCreate, WriteResult{Status: StatusFailed, Attempts: 3})
	m.RecordResult(ActionSkip, WriteResult{Status: StatusSkipped})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.actionsTotal.WithLabelValues("Create", "Succeeded")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.actionsTotal.WithLabelValues("Create", "Failed")))
	assert.Equal(t, float64(5), testutil.ToFloat64(m.attemptsTotal))
}

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordResult(ActionCreate, WriteResult{Status: StatusSucceeded})
		m.RecordRollback(true)
		m.ObserveRun(1)
	})
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
}

func TestMetricsWriteTextfile(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.RecordRollback(false)
	m.ObserveRun(0.25)

	path := filepath.Join(t.TempDir(), "kv2appconfig.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `kv2appconfig_rollbacks_total{outcome="failed"} 1`)
	assert.Contains(t, string(data), "kv2appconfig_write_run_duration_seconds_count 1")
}
