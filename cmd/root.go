package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	sim "github.com/stencil-sim/stencil-sim/sim"
	"github.com/stencil-sim/stencil-sim/sim/trace"
)

var (
	// CLI flags for the grid and run shape
	width     int     // Grid columns
	height    int     // Grid rows
	steps     int     // Stencil steps per run; 0 with --iters unset means harness default
	iters     int     // Harness iterations; steps = 3 * iters * 20 when --steps is not given
	workers   int     // Worker pool size; 0 = min(NumCPU, 8, height)
	fill      float64 // Initial value of every cell
	barrier   string  // Barrier implementation (spin, cond)
	sampleRow int     // Row of the reported cell
	sampleCol int     // Column of the reported cell
	reps      int     // Timed repetitions of the run

	// CLI flags for presets, output and diagnostics
	presetName     string // Preset name in defaults.yaml
	defaultsFile   string // Path to defaults.yaml
	cpuProfilePath string // CPU profile output path
	metricsOut     string // Metrics YAML output path
	printMetrics   bool   // Print the metrics summary after the sample
	traceLevel     string // Step trace level (none, counters, steps)
	logLevel       string // Log verbosity level
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "stencil-sim",
	Short: "Parallel 5-point stencil benchmark",
}

// runOptions is the resolved form of the run flags.
type runOptions struct {
	Config       sim.StencilConfig
	Reps         int
	CPUProfile   string
	MetricsOut   string
	PrintMetrics bool
	TraceLevel   trace.TraceLevel
}

// runCmd executes the stencil benchmark using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the stencil benchmark and print the sampled cell",
	Run: func(cmd *cobra.Command, args []string) {
		// Set up logging
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if err := applyPresetFromFile(cmd, defaultsFile, presetName); err != nil {
			logrus.Fatalf("%v", err)
		}

		opts, err := resolveRunOptions(cmd)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if err := runStencil(opts, os.Stdout); err != nil {
			logrus.Fatalf("Stencil run failed: %v", err)
		}
	},
}

// applyPresetFromFile loads defaults.yaml and applies the selected preset.
// A missing defaults file is only an error when the user named it or a preset.
func applyPresetFromFile(cmd *cobra.Command, path, name string) error {
	explicit := cmd.Flags().Changed("defaults") || cmd.Flags().Changed("preset")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		logrus.Debugf("defaults file %s not found; using flag defaults", path)
		return nil
	}
	cfg, err := loadDefaultsConfig(path)
	if err != nil {
		return err
	}
	preset, err := GetPreset(cfg, name)
	if err != nil {
		return err
	}
	applyPreset(cmd, preset)
	return nil
}

// applyPreset copies preset values into every flag the user did not set.
func applyPreset(cmd *cobra.Command, p Preset) {
	changed := cmd.Flags().Changed
	if p.Width > 0 && !changed("width") {
		width = p.Width
	}
	if p.Height > 0 && !changed("height") {
		height = p.Height
	}
	if p.Steps > 0 && !changed("steps") && !changed("iters") {
		steps = p.Steps
	}
	if p.Iters > 0 && !changed("iters") && !changed("steps") {
		iters = p.Iters
	}
	if p.Workers > 0 && !changed("workers") {
		workers = p.Workers
	}
	if p.Fill != nil && !changed("fill") {
		fill = *p.Fill
	}
	if p.Barrier != "" && !changed("barrier") {
		barrier = p.Barrier
	}
	if !changed("sample-row") {
		sampleRow = p.SampleRow
	}
	if !changed("sample-col") {
		sampleCol = p.SampleCol
	}
	if p.Reps > 0 && !changed("reps") {
		reps = p.Reps
	}
}

// resolveRunOptions turns the flag values into runOptions.
func resolveRunOptions(cmd *cobra.Command) (runOptions, error) {
	if !sim.IsValidBarrierKind(barrier) {
		return runOptions{}, fmt.Errorf("unknown barrier %q (valid: spin, cond)", barrier)
	}
	if !trace.IsValidTraceLevel(traceLevel) {
		return runOptions{}, fmt.Errorf("unknown trace level %q (valid: none, counters, steps)", traceLevel)
	}
	tl := trace.TraceLevel(traceLevel)
	if tl != trace.TraceLevelNone && tl != "" && reps != 1 {
		return runOptions{}, fmt.Errorf("--trace %s requires --reps 1, got %d", traceLevel, reps)
	}

	// An explicit --steps 0 is honored; otherwise 0 means the harness default.
	n := steps
	if n == 0 && !cmd.Flags().Changed("steps") {
		n = sim.BenchSteps(iters)
	}
	cfg := sim.NewStencilConfig(width, height, n, workers, fill)
	cfg.Barrier = sim.BarrierKind(barrier)
	cfg.SampleRow, cfg.SampleCol = sampleRow, sampleCol

	return runOptions{
		Config:       cfg,
		Reps:         reps,
		CPUProfile:   cpuProfilePath,
		MetricsOut:   metricsOut,
		PrintMetrics: printMetrics,
		TraceLevel:   tl,
	}, nil
}

// runStencil executes the benchmark and writes the sampled cell as "%f\n" to out.
func runStencil(opts runOptions, out io.Writer) error {
	s, err := sim.NewSimulator(opts.Config)
	if err != nil {
		return err
	}

	var st *trace.StepTrace
	if opts.TraceLevel != trace.TraceLevelNone && opts.TraceLevel != "" {
		st = trace.NewStepTrace(trace.TraceConfig{Level: opts.TraceLevel, Workers: s.Workers()})
		s.SetObserver(st)
	}

	if opts.CPUProfile != "" {
		stop, err := startCPUProfile(opts.CPUProfile)
		if err != nil {
			return err
		}
		defer stop()
	}

	cfg := s.Config()
	logrus.Infof("Starting stencil run: grid=%dx%d, steps=%d, workers=%d, barrier=%s, reps=%d",
		cfg.Width, cfg.Height, cfg.Steps, s.Workers(), cfg.Barrier, opts.Reps)
	startTime := time.Now()

	m, _, err := s.Bench(opts.Reps)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%f\n", m.Sample)
	if opts.PrintMetrics {
		m.Print(out)
	}
	if opts.MetricsOut != "" {
		if err := m.SaveResults(opts.MetricsOut); err != nil {
			return err
		}
	}

	if st != nil {
		summary := trace.Summarize(st)
		logrus.Infof("Step trace: %d kernel invocations over %d workers, %d isolation violations",
			summary.KernelStarts, summary.Workers, summary.Violations)
		if !summary.Isolated() {
			return fmt.Errorf("barrier round isolation violated %d times", summary.Violations)
		}
	}

	logrus.Infof("Stencil run complete in %s.", time.Since(startTime))
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// registerRunFlags defines the run flags on fs, bound to the package-level flag variables.
func registerRunFlags(fs *pflag.FlagSet) {
	fs.IntVar(&width, "width", sim.DefaultWidth, "Grid width (columns)")
	fs.IntVar(&height, "height", sim.DefaultHeight, "Grid height (rows)")
	fs.IntVar(&steps, "steps", 0, "Stencil steps per run (default: 3 * iters * 20)")
	fs.IntVar(&iters, "iters", 1, "Benchmark iterations; scales the default step count")
	fs.IntVar(&workers, "workers", 0, "Worker count (0 = min(NumCPU, 8, height))")
	fs.Float64Var(&fill, "fill", sim.DefaultFill, "Initial value of every grid cell")
	fs.StringVar(&barrier, "barrier", string(sim.BarrierSpin), "Barrier implementation (spin, cond)")
	fs.IntVar(&sampleRow, "sample-row", 0, "Row of the reported cell")
	fs.IntVar(&sampleCol, "sample-col", 0, "Column of the reported cell")
	fs.IntVar(&reps, "reps", 1, "Timed repetitions, each from a fresh grid")

	fs.StringVar(&presetName, "preset", "", "Preset name from the defaults file (default: the file's default_preset)")
	fs.StringVar(&defaultsFile, "defaults", "defaults.yaml", "Path to the presets YAML file")
	fs.StringVar(&cpuProfilePath, "cpuprofile", "", "Write a CPU profile to this path")
	fs.StringVar(&metricsOut, "metrics-out", "", "Write run metrics as YAML to this path")
	fs.BoolVar(&printMetrics, "metrics", false, "Print a metrics summary after the sampled value")
	fs.StringVar(&traceLevel, "trace", string(trace.TraceLevelNone), "Step trace level (none, counters, steps)")
	fs.StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
}

// init sets up CLI flags and subcommands
func init() {
	registerRunFlags(runCmd.Flags())

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
