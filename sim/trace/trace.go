// Package trace records kernel start/finish events from stencil workers and
// checks that no worker begins step t+1 before every worker has finished step t.
// This package has no dependencies on sim/: StepTrace satisfies sim.StepObserver
// structurally.
package trace

import (
	"sync"
	"sync/atomic"
)

// TraceLevel controls the verbosity of step tracing.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelCounters keeps per-worker progress counters and the isolation check only.
	TraceLevelCounters TraceLevel = "counters"
	// TraceLevelSteps additionally stores every kernel event in order of arrival.
	TraceLevelSteps TraceLevel = "steps"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:     true,
	TraceLevelCounters: true,
	TraceLevelSteps:    true,
	"":                 true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level   TraceLevel
	Workers int // number of workers that will report; must match the run
}

// EventKind distinguishes the two callbacks around a kernel invocation.
type EventKind string

const (
	KernelStart EventKind = "start"
	KernelDone  EventKind = "done"
)

// StepRecord is one kernel event.
type StepRecord struct {
	Worker int
	Step   int
	Kind   EventKind
}

// Violation describes a kernel start that overtook another worker.
type Violation struct {
	Worker    int // worker that started too early
	Step      int // step it started
	Lagging   int // worker whose progress was out of bounds
	Completed int64
}

// StepTrace collects kernel events during a stencil run. It is safe for
// concurrent use by all workers.
type StepTrace struct {
	Config TraceConfig

	completed []atomic.Int64 // per worker: kernels finished so far
	starts    atomic.Int64
	dones     atomic.Int64

	mu         sync.Mutex
	Records    []StepRecord
	Violations []Violation
}

// NewStepTrace creates a StepTrace ready for recording.
func NewStepTrace(config TraceConfig) *StepTrace {
	n := config.Workers
	if n < 1 {
		n = 1
	}
	return &StepTrace{
		Config:     config,
		completed:  make([]atomic.Int64, n),
		Records:    make([]StepRecord, 0),
		Violations: make([]Violation, 0),
	}
}

// OnKernelStart checks round isolation: when worker starts step, every worker
// must have finished exactly step or step+1 kernels.
func (st *StepTrace) OnKernelStart(worker, step int) {
	st.starts.Add(1)
	for other := range st.completed {
		done := st.completed[other].Load()
		if done < int64(step) || done > int64(step)+1 {
			st.recordViolation(Violation{Worker: worker, Step: step, Lagging: other, Completed: done})
		}
	}
	st.record(StepRecord{Worker: worker, Step: step, Kind: KernelStart})
}

// OnKernelDone marks step as finished by worker.
func (st *StepTrace) OnKernelDone(worker, step int) {
	st.dones.Add(1)
	st.completed[worker].Store(int64(step) + 1)
	st.record(StepRecord{Worker: worker, Step: step, Kind: KernelDone})
}

// Completed returns how many kernels worker has finished.
func (st *StepTrace) Completed(worker int) int64 {
	return st.completed[worker].Load()
}

func (st *StepTrace) record(r StepRecord) {
	if st.Config.Level != TraceLevelSteps {
		return
	}
	st.mu.Lock()
	st.Records = append(st.Records, r)
	st.mu.Unlock()
}

func (st *StepTrace) recordViolation(v Violation) {
	st.mu.Lock()
	st.Violations = append(st.Violations, v)
	st.mu.Unlock()
}
