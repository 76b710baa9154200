// Tracks per-run wall time and throughput for a stencil benchmark.

package sim

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"
)

// Metrics aggregates the timings of repeated runs of one configuration.
type Metrics struct {
	Width   int
	Height  int
	Steps   int
	Workers int
	Barrier BarrierKind

	RunDurations []time.Duration // wall time of each run, in order
	Sample       float64         // reported cell of the last run's final grid
}

// MetricsOutput is the serialized form written by SaveResults.
type MetricsOutput struct {
	Width             int       `yaml:"width"`
	Height            int       `yaml:"height"`
	Steps             int       `yaml:"steps"`
	Workers           int       `yaml:"workers"`
	Barrier           string    `yaml:"barrier"`
	Runs              int       `yaml:"runs"`
	RunSeconds        []float64 `yaml:"run_seconds"`
	MeanSeconds       float64   `yaml:"mean_seconds"`
	StdDevSeconds     float64   `yaml:"stddev_seconds"`
	CellUpdatesPerSec float64   `yaml:"cell_updates_per_sec"`
	Sample            float64   `yaml:"sample"`
}

// NewMetrics creates an empty Metrics for cfg run with the given worker count.
func NewMetrics(cfg StencilConfig, workers int) *Metrics {
	barrier := cfg.Barrier
	if barrier == "" {
		barrier = BarrierSpin
	}
	return &Metrics{
		Width:        cfg.Width,
		Height:       cfg.Height,
		Steps:        cfg.Steps,
		Workers:      workers,
		Barrier:      barrier,
		RunDurations: make([]time.Duration, 0),
	}
}

// Record appends the wall time of one run.
func (m *Metrics) Record(d time.Duration) {
	m.RunDurations = append(m.RunDurations, d)
}

func (m *Metrics) runSeconds() []float64 {
	secs := make([]float64, len(m.RunDurations))
	for i, d := range m.RunDurations {
		secs[i] = d.Seconds()
	}
	return secs
}

// MeanStdDevSeconds returns the mean and sample standard deviation of the run
// times. Stddev is 0 with fewer than two runs.
func (m *Metrics) MeanStdDevSeconds() (mean, std float64) {
	secs := m.runSeconds()
	switch len(secs) {
	case 0:
		return 0, 0
	case 1:
		return secs[0], 0
	}
	return stat.MeanStdDev(secs, nil)
}

// CellUpdatesPerSec is the throughput of the mean run: W·H·Steps cell updates
// divided by the mean wall time.
func (m *Metrics) CellUpdatesPerSec() float64 {
	mean, _ := m.MeanStdDevSeconds()
	if mean <= 0 {
		return 0
	}
	return float64(m.Width) * float64(m.Height) * float64(m.Steps) / mean
}

// Output builds the serializable view of m.
func (m *Metrics) Output() MetricsOutput {
	mean, std := m.MeanStdDevSeconds()
	return MetricsOutput{
		Width:             m.Width,
		Height:            m.Height,
		Steps:             m.Steps,
		Workers:           m.Workers,
		Barrier:           string(m.Barrier),
		Runs:              len(m.RunDurations),
		RunSeconds:        m.runSeconds(),
		MeanSeconds:       mean,
		StdDevSeconds:     std,
		CellUpdatesPerSec: m.CellUpdatesPerSec(),
		Sample:            m.Sample,
	}
}

// Print writes a human-readable summary to w.
func (m *Metrics) Print(w io.Writer) {
	out := m.Output()
	fmt.Fprintln(w, "=== Stencil Metrics ===")
	fmt.Fprintf(w, "Grid                 : %dx%d\n", out.Width, out.Height)
	fmt.Fprintf(w, "Steps                : %d\n", out.Steps)
	fmt.Fprintf(w, "Workers              : %d (%s barrier)\n", out.Workers, out.Barrier)
	fmt.Fprintf(w, "Runs                 : %d\n", out.Runs)
	if out.Runs > 0 {
		fmt.Fprintf(w, "Mean Run Time        : %.6f s\n", out.MeanSeconds)
		fmt.Fprintf(w, "Run Time Stddev      : %.6f s\n", out.StdDevSeconds)
		fmt.Fprintf(w, "Throughput           : %.2f Mcell/s\n", out.CellUpdatesPerSec/1e6)
	}
}

// SaveResults writes the metrics as YAML to path.
func (m *Metrics) SaveResults(path string) error {
	data, err := yaml.Marshal(m.Output())
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write metrics %q: %w", path, err)
	}
	logrus.Infof("Metrics written to: %s", path)
	return nil
}
