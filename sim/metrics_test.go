package sim

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestMetrics_MeanStdDev(t *testing.T) {
	m := NewMetrics(NewStencilConfig(10, 10, 100, 2, 1), 2)

	mean, std := m.MeanStdDevSeconds()
	assert.Zero(t, mean)
	assert.Zero(t, std)

	m.Record(1 * time.Second)
	mean, std = m.MeanStdDevSeconds()
	assert.Equal(t, 1.0, mean)
	assert.Zero(t, std, "one run has no spread")

	m.Record(3 * time.Second)
	mean, std = m.MeanStdDevSeconds()
	assert.InDelta(t, 2.0, mean, 1e-12)
	assert.InDelta(t, 1.4142135623730951, std, 1e-12, "sample stddev of {1, 3}")
}

func TestMetrics_CellUpdatesPerSec(t *testing.T) {
	// GIVEN 10×10 cells × 100 steps in a mean of 2s
	m := NewMetrics(NewStencilConfig(10, 10, 100, 2, 1), 2)
	m.Record(1 * time.Second)
	m.Record(3 * time.Second)

	// THEN throughput is 10000 / 2
	assert.InDelta(t, 5000.0, m.CellUpdatesPerSec(), 1e-9)

	empty := NewMetrics(NewStencilConfig(10, 10, 100, 2, 1), 2)
	assert.Zero(t, empty.CellUpdatesPerSec())
}

func TestMetrics_Print_ContainsSummary(t *testing.T) {
	m := NewMetrics(NewStencilConfig(16, 8, 4, 2, 1), 2)
	m.Record(10 * time.Millisecond)

	var buf bytes.Buffer
	m.Print(&buf)

	out := buf.String()
	assert.Contains(t, out, "Stencil Metrics")
	assert.Contains(t, out, "16x8")
	assert.Contains(t, out, "spin barrier")
	assert.Contains(t, out, "Mcell/s")
}

func TestMetrics_SaveResults_WritesYAML(t *testing.T) {
	// GIVEN metrics for two runs
	cfg := NewStencilConfig(4, 4, 2, 2, 1)
	cfg.Barrier = BarrierCond
	m := NewMetrics(cfg, 2)
	m.Record(time.Second)
	m.Record(time.Second)
	m.Sample = 0.75

	// WHEN saved
	path := filepath.Join(t.TempDir(), "metrics.yaml")
	require.NoError(t, m.SaveResults(path))

	// THEN the file round-trips into MetricsOutput
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out MetricsOutput
	require.NoError(t, yaml.Unmarshal(data, &out))
	assert.Equal(t, "cond", out.Barrier)
	assert.Equal(t, 2, out.Runs)
	assert.Equal(t, []float64{1, 1}, out.RunSeconds)
	assert.Equal(t, 0.75, out.Sample)
	assert.Contains(t, string(data), "cell_updates_per_sec")
}

func TestMetrics_SaveResults_BadPath(t *testing.T) {
	m := NewMetrics(NewStencilConfig(4, 4, 2, 2, 1), 2)
	err := m.SaveResults(filepath.Join(t.TempDir(), "missing", "metrics.yaml"))
	assert.Error(t, err)
}
