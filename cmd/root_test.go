package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sim "github.com/stencil-sim/stencil-sim/sim"
	"github.com/stencil-sim/stencil-sim/sim/trace"
)

// newTestRunCmd builds a fresh run command, resets every flag variable to its
// default and parses args.
func newTestRunCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "run"}
	registerRunFlags(c.Flags())
	require.NoError(t, c.ParseFlags(args))
	return c
}

func TestResolveRunOptions_Defaults_BenchmarkConfig(t *testing.T) {
	// GIVEN no flags
	c := newTestRunCmd(t)

	// WHEN resolved
	opts, err := resolveRunOptions(c)

	// THEN the harness default applies: 512×512 ones for 3*1*20 steps
	require.NoError(t, err)
	assert.Equal(t, 512, opts.Config.Width)
	assert.Equal(t, 512, opts.Config.Height)
	assert.Equal(t, 60, opts.Config.Steps)
	assert.Equal(t, 1.0, opts.Config.Fill)
	assert.Equal(t, sim.BarrierSpin, opts.Config.Barrier)
	assert.Equal(t, 1, opts.Reps)
}

func TestResolveRunOptions_ItersScaleSteps(t *testing.T) {
	c := newTestRunCmd(t, "--iters", "4")
	opts, err := resolveRunOptions(c)
	require.NoError(t, err)
	assert.Equal(t, 240, opts.Config.Steps)
}

func TestResolveRunOptions_ExplicitZeroSteps_Honored(t *testing.T) {
	c := newTestRunCmd(t, "--steps", "0")
	opts, err := resolveRunOptions(c)
	require.NoError(t, err)
	assert.Equal(t, 0, opts.Config.Steps)
}

func TestResolveRunOptions_InvalidValues(t *testing.T) {
	for _, args := range [][]string{
		{"--barrier", "futex"},
		{"--trace", "verbose"},
		{"--trace", "counters", "--reps", "3"},
	} {
		c := newTestRunCmd(t, args...)
		_, err := resolveRunOptions(c)
		assert.Errorf(t, err, "args %v", args)
	}
}

func TestApplyPreset_UserFlagsWin(t *testing.T) {
	// GIVEN a preset and a user who set --width and --steps
	fillValue := 2.0
	preset := Preset{Width: 64, Height: 32, Steps: 7, Fill: &fillValue, Barrier: "cond", Reps: 2}
	c := newTestRunCmd(t, "--width", "10", "--steps", "3")

	// WHEN the preset is applied
	applyPreset(c, preset)
	opts, err := resolveRunOptions(c)
	require.NoError(t, err)

	// THEN user flags keep their values and the rest come from the preset
	assert.Equal(t, 10, opts.Config.Width)
	assert.Equal(t, 3, opts.Config.Steps)
	assert.Equal(t, 32, opts.Config.Height)
	assert.Equal(t, 2.0, opts.Config.Fill)
	assert.Equal(t, sim.BarrierCond, opts.Config.Barrier)
	assert.Equal(t, 2, opts.Reps)
}

func TestApplyPresetFromFile_MissingImplicitFile_Ignored(t *testing.T) {
	c := newTestRunCmd(t)
	err := applyPresetFromFile(c, filepath.Join(t.TempDir(), "defaults.yaml"), "")
	assert.NoError(t, err)
	assert.Equal(t, sim.DefaultWidth, width)
}

func TestApplyPresetFromFile_NamedPreset(t *testing.T) {
	path := writeDefaults(t, `
presets:
  smoke:
    width: 5
    height: 5
    steps: 1
    sample_row: 2
    sample_col: 2
`)
	c := newTestRunCmd(t, "--defaults", path, "--preset", "smoke")
	require.NoError(t, applyPresetFromFile(c, defaultsFile, presetName))

	opts, err := resolveRunOptions(c)
	require.NoError(t, err)
	assert.Equal(t, 5, opts.Config.Width)
	assert.Equal(t, 1, opts.Config.Steps)
	assert.Equal(t, 2, opts.Config.SampleRow)

	// An unknown preset in an explicit file is an error.
	c = newTestRunCmd(t, "--defaults", path, "--preset", "missing")
	assert.Error(t, applyPresetFromFile(c, defaultsFile, presetName))
}

func TestRunStencil_PrintsSampleLine(t *testing.T) {
	// GIVEN the 5×5 one-step scenario sampling the center
	cfg := sim.NewStencilConfig(5, 5, 1, 2, 1)
	cfg.SampleRow, cfg.SampleCol = 2, 2

	// WHEN run
	var buf bytes.Buffer
	err := runStencil(runOptions{Config: cfg, Reps: 1}, &buf)

	// THEN stdout carries the sample formatted like printf("%f\n")
	require.NoError(t, err)
	assert.Equal(t, "1.000000\n", buf.String())
}

func TestRunStencil_CornerSampleIsZero(t *testing.T) {
	var buf bytes.Buffer
	err := runStencil(runOptions{Config: sim.NewStencilConfig(16, 16, 3, 4, 1), Reps: 2}, &buf)
	require.NoError(t, err)
	assert.Equal(t, "0.000000\n", buf.String())
}

func TestRunStencil_MetricsTraceAndProfile(t *testing.T) {
	// GIVEN a run with every diagnostic enabled
	dir := t.TempDir()
	opts := runOptions{
		Config:       sim.NewStencilConfig(32, 32, 20, 4, 1),
		Reps:         1,
		CPUProfile:   filepath.Join(dir, "cpu.pprof"),
		MetricsOut:   filepath.Join(dir, "metrics.yaml"),
		PrintMetrics: true,
		TraceLevel:   trace.TraceLevelSteps,
	}

	// WHEN run
	var buf bytes.Buffer
	require.NoError(t, runStencil(opts, &buf))

	// THEN the summary is printed and both files exist
	assert.Contains(t, buf.String(), "Stencil Metrics")
	_, err := os.Stat(opts.MetricsOut)
	assert.NoError(t, err)
	_, err = os.Stat(opts.CPUProfile)
	assert.NoError(t, err)
}

func TestRunStencil_InvalidConfig_Error(t *testing.T) {
	var buf bytes.Buffer
	err := runStencil(runOptions{Config: sim.NewStencilConfig(4, 4, 1, 9, 1), Reps: 1}, &buf)
	assert.ErrorIs(t, err, sim.ErrInvalidConfig)
	assert.Empty(t, buf.String())
}
