package sim

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// StepObserver receives a callback around every kernel invocation. It exists
// for test instrumentation; implementations must be safe for concurrent use
// because every worker calls it from its own goroutine.
type StepObserver interface {
	OnKernelStart(worker, step int)
	OnKernelDone(worker, step int)
}

// Simulator runs the fixed-step stencil over a grid pair with a worker pool.
type Simulator struct {
	cfg      StencilConfig
	workers  int
	observer StepObserver

	// spawnLimit bounds how many helper goroutines may be started; 0 means
	// workers-1. Lowering it forces the spawn-failure path.
	spawnLimit int
}

// NewSimulator validates cfg and resolves its worker count.
func NewSimulator(cfg StencilConfig) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Simulator{cfg: cfg, workers: cfg.ResolvedWorkers()}, nil
}

// Config returns the validated configuration.
func (s *Simulator) Config() StencilConfig { return s.cfg }

// Workers returns the resolved worker pool size.
func (s *Simulator) Workers() int { return s.workers }

// SetObserver installs a StepObserver for subsequent runs. nil disables it.
func (s *Simulator) SetObserver(o StepObserver) { s.observer = o }

// NewInitialGrid allocates a grid with the configured dimensions and fill.
func (s *Simulator) NewInitialGrid() (*Grid, error) {
	return NewGrid(s.cfg.Width, s.cfg.Height, s.cfg.Fill)
}

// Run steps initial cfg.Steps times and returns whichever grid of the pair
// holds the final state. initial is used as one half of the pair and is
// overwritten when Steps > 1.
func (s *Simulator) Run(initial *Grid) (*Grid, error) {
	if initial == nil {
		return nil, fmt.Errorf("%w: initial grid is nil", ErrInvalidConfig)
	}
	if initial.width != s.cfg.Width || initial.height != s.cfg.Height {
		return nil, fmt.Errorf("%w: grid is %dx%d, config expects %dx%d",
			ErrInvalidConfig, initial.width, initial.height, s.cfg.Width, s.cfg.Height)
	}
	return s.run(initial)
}

// Bench performs reps runs, each from a freshly filled grid, and records the
// wall time of every run. The returned grid is the final state of the last run.
func (s *Simulator) Bench(reps int) (*Metrics, *Grid, error) {
	if reps < 1 {
		return nil, nil, fmt.Errorf("%w: reps must be >= 1, got %d", ErrInvalidConfig, reps)
	}
	m := NewMetrics(s.cfg, s.workers)
	var final *Grid
	for r := 0; r < reps; r++ {
		initial, err := s.NewInitialGrid()
		if err != nil {
			return nil, nil, err
		}
		start := time.Now()
		final, err = s.run(initial)
		if err != nil {
			return nil, nil, err
		}
		m.Record(time.Since(start))
	}
	m.Sample = final.At(s.cfg.SampleRow, s.cfg.SampleCol)
	return m, final, nil
}

// Run is the plain entry point: steps applications of the stencil to initial
// with the given worker count and a spin barrier.
func Run(initial *Grid, steps, workers int) (*Grid, error) {
	if initial == nil {
		return nil, fmt.Errorf("%w: initial grid is nil", ErrInvalidConfig)
	}
	// 0 would mean "auto" in a StencilConfig; here the caller must be explicit.
	if workers < 1 {
		return nil, fmt.Errorf("%w: Workers must be in [1, %d], got %d", ErrInvalidConfig, initial.height, workers)
	}
	s, err := NewSimulator(NewStencilConfig(initial.width, initial.height, steps, workers, 0))
	if err != nil {
		return nil, err
	}
	return s.run(initial)
}

func (s *Simulator) run(initial *Grid) (*Grid, error) {
	steps, workers := s.cfg.Steps, s.workers
	if steps == 0 {
		return initial, nil
	}

	// The only allocation of the run: the second half of the ping-pong pair.
	next := &Grid{width: initial.width, height: initial.height, data: make([]float64, len(initial.data))}

	logrus.WithFields(logrus.Fields{
		"width":   initial.width,
		"height":  initial.height,
		"steps":   steps,
		"workers": workers,
		"barrier": s.cfg.Barrier,
	}).Debug("stencil run starting")

	if workers == 1 {
		return s.runSequential(initial, next), nil
	}
	return s.runParallel(initial, next)
}

// runSequential is the single-actor path: no barrier, no goroutines.
func (s *Simulator) runSequential(cur, next *Grid) *Grid {
	for step := 0; step < s.cfg.Steps; step++ {
		if s.observer != nil {
			s.observer.OnKernelStart(0, step)
		}
		stepGrid(cur, next)
		if s.observer != nil {
			s.observer.OnKernelDone(0, step)
		}
		cur, next = next, cur
	}
	return cur
}

func (s *Simulator) runParallel(initial, next *Grid) (*Grid, error) {
	ranges := Partition(initial.height, s.workers)
	barrier := NewBarrier(s.cfg.Barrier, s.workers)

	pool := make([]*worker, s.workers)
	for id := range pool {
		pool[id] = &worker{
			id:       id,
			rows:     ranges[id],
			cur:      initial,
			next:     next,
			steps:    s.cfg.Steps,
			barrier:  barrier,
			observer: s.observer,
		}
	}

	limit := s.spawnLimit
	if limit <= 0 {
		limit = s.workers - 1
	}
	var g errgroup.Group
	g.SetLimit(limit)

	// Helpers park on the gate until every spawn has succeeded; otherwise a
	// partial pool would spin at the first barrier forever.
	gate := make(chan struct{})
	var aborted atomic.Bool
	for id := 1; id < s.workers; id++ {
		w := pool[id]
		started := g.TryGo(func() error {
			<-gate
			if aborted.Load() {
				return nil
			}
			w.loop()
			return nil
		})
		if !started {
			aborted.Store(true)
			close(gate)
			_ = g.Wait()
			logrus.Errorf("stencil run aborted: started %d of %d helper workers", id-1, s.workers-1)
			return nil, fmt.Errorf("%w: worker %d of %d", ErrWorkerSpawn, id, s.workers)
		}
	}
	close(gate)

	pool[0].loop()
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pool[0].cur, nil
}

// worker owns one RowRange of the output grid for the whole run. cur and next
// are its local labels for the shared pair; every worker swaps them in lockstep.
type worker struct {
	id       int
	rows     RowRange
	cur      *Grid
	next     *Grid
	steps    int
	barrier  Barrier
	observer StepObserver
}

func (w *worker) loop() {
	width, height := w.cur.width, w.cur.height
	for step := 0; step < w.steps; step++ {
		if w.observer != nil {
			w.observer.OnKernelStart(w.id, step)
		}
		StepRows(w.cur.data, w.next.data, width, height, w.rows)
		if w.observer != nil {
			w.observer.OnKernelDone(w.id, step)
		}
		w.barrier.Wait()
		w.cur, w.next = w.next, w.cur
	}
}
