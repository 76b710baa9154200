package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig marks a precondition violation detected before any worker starts.
	ErrInvalidConfig = errors.New("invalid stencil config")
	// ErrWorkerSpawn marks a run aborted because a worker could not be started.
	// No partial grid is returned.
	ErrWorkerSpawn = errors.New("worker spawn failed")
)

// Benchmark defaults from the original harness: a 512×512 grid of ones stepped
// Reps × iters × Scale times.
const (
	DefaultWidth  = 512
	DefaultHeight = 512
	DefaultFill   = 1.0
	DefaultReps   = 3
	DefaultScale  = 20
)

// StencilConfig is the explicit configuration record consumed by NewSimulator.
type StencilConfig struct {
	Width     int         // grid columns (must be >= 1)
	Height    int         // grid rows (must be >= 1)
	Steps     int         // stencil applications per run (>= 0)
	Workers   int         // worker pool size; 0 = ClampWorkers(NumCPU); otherwise must be in [1, Height]
	Fill      float64     // initial value of every cell
	Barrier   BarrierKind // "spin" (default) or "cond"
	SampleRow int         // row of the reported cell
	SampleCol int         // column of the reported cell
}

// NewStencilConfig creates a StencilConfig with the spin barrier and the (0,0) sample cell.
func NewStencilConfig(width, height, steps, workers int, fill float64) StencilConfig {
	return StencilConfig{
		Width:   width,
		Height:  height,
		Steps:   steps,
		Workers: workers,
		Fill:    fill,
		Barrier: BarrierSpin,
	}
}

// DefaultStencilConfig returns the 512×512 benchmark configuration for one
// iteration of the harness.
func DefaultStencilConfig() StencilConfig {
	return NewStencilConfig(DefaultWidth, DefaultHeight, BenchSteps(1), 0, DefaultFill)
}

// BenchSteps converts a harness iteration count into a step count.
func BenchSteps(iters int) int {
	if iters < 1 {
		iters = 1
	}
	return DefaultReps * iters * DefaultScale
}

// ResolvedWorkers returns the worker count a run with this config will use.
func (c StencilConfig) ResolvedWorkers() int {
	if c.Workers == 0 {
		return ClampWorkers(0, c.Height)
	}
	return c.Workers
}

// Validate checks the config. Every failure wraps ErrInvalidConfig.
func (c StencilConfig) Validate() error {
	if c.Width < 1 {
		return fmt.Errorf("%w: Width must be >= 1, got %d", ErrInvalidConfig, c.Width)
	}
	if c.Height < 1 {
		return fmt.Errorf("%w: Height must be >= 1, got %d", ErrInvalidConfig, c.Height)
	}
	if c.Steps < 0 {
		return fmt.Errorf("%w: Steps must be >= 0, got %d", ErrInvalidConfig, c.Steps)
	}
	if c.Workers < 0 || c.Workers > c.Height {
		return fmt.Errorf("%w: Workers must be in [0, %d], got %d", ErrInvalidConfig, c.Height, c.Workers)
	}
	if !IsValidBarrierKind(string(c.Barrier)) {
		return fmt.Errorf("%w: unknown barrier kind %q", ErrInvalidConfig, c.Barrier)
	}
	if c.SampleRow < 0 || c.SampleRow >= c.Height {
		return fmt.Errorf("%w: SampleRow must be in [0, %d), got %d", ErrInvalidConfig, c.Height, c.SampleRow)
	}
	if c.SampleCol < 0 || c.SampleCol >= c.Width {
		return fmt.Errorf("%w: SampleCol must be in [0, %d), got %d", ErrInvalidConfig, c.Width, c.SampleCol)
	}
	return nil
}
