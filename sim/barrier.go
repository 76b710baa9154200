package sim

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// Barrier is a reusable rendezvous for a fixed set of participants. Wait blocks
// until every participant of the current round has called it, then releases all
// of them together. The participant count is a precondition: too many expected
// callers deadlocks, too few releases early.
type Barrier interface {
	Wait()
	Parties() int
}

// BarrierKind selects a Barrier implementation.
type BarrierKind string

const (
	// BarrierSpin busy-waits on an atomic phase counter. Lowest wake latency;
	// meant for short steps and at most MaxWorkers participants.
	BarrierSpin BarrierKind = "spin"
	// BarrierCond parks waiters on a sync.Cond. Better when steps are long or
	// participants outnumber available CPUs.
	BarrierCond BarrierKind = "cond"
)

// validBarrierKinds maps accepted barrier kind strings.
var validBarrierKinds = map[BarrierKind]bool{
	BarrierSpin: true,
	BarrierCond: true,
	"":          true, // empty defaults to spin
}

// IsValidBarrierKind returns true if the given string names a known barrier.
func IsValidBarrierKind(kind string) bool {
	return validBarrierKinds[BarrierKind(kind)]
}

// NewBarrier creates a barrier of the given kind for n participants.
// Panics on an unknown kind or n < 1.
func NewBarrier(kind BarrierKind, n int) Barrier {
	switch kind {
	case BarrierSpin, "":
		return NewSpinBarrier(n)
	case BarrierCond:
		return NewCondBarrier(n)
	default:
		panic(fmt.Sprintf("unknown barrier kind %q", kind))
	}
}

// spinYieldInterval is how many failed polls a spinning waiter makes before
// handing its P back to the Go scheduler once. Without it a run with more
// workers than GOMAXPROCS would only make progress through async preemption.
const spinYieldInterval = 1 << 10

// SpinBarrier is a sense-free spinning barrier: the last arriver resets the
// arrival counter and bumps the phase; everyone else polls the phase until it
// moves. The phase only ever increases, so a waiter can never observe a stale
// release from an earlier round.
type SpinBarrier struct {
	_        cpu.CacheLinePad
	arrived  atomic.Uint64
	_        cpu.CacheLinePad
	phase    atomic.Uint64
	_        cpu.CacheLinePad
	expected uint64
}

// NewSpinBarrier creates a spin barrier for n participants. Panics if n < 1.
func NewSpinBarrier(n int) *SpinBarrier {
	if n < 1 {
		panic(fmt.Sprintf("NewSpinBarrier: participant count %d must be >= 1", n))
	}
	return &SpinBarrier{expected: uint64(n)}
}

// Parties returns the number of participants per round.
func (b *SpinBarrier) Parties() int { return int(b.expected) }

// Phase returns the number of completed rounds.
func (b *SpinBarrier) Phase() uint64 { return b.phase.Load() }

// Wait blocks until all participants of the current round have arrived.
func (b *SpinBarrier) Wait() {
	// The phase must be read before arriving: once this caller's increment
	// lands, the last arriver may bump the phase at any moment.
	p := b.phase.Load()
	if b.arrived.Add(1) == b.expected {
		// arrived must be zero before the phase store publishes the next round.
		b.arrived.Store(0)
		b.phase.Add(1)
		return
	}
	for spins := 1; b.phase.Load() == p; spins++ {
		if spins%spinYieldInterval == 0 {
			runtime.Gosched()
		}
	}
}

// CondBarrier implements Barrier with a mutex and condition variable. Each
// round has a generation number; waiters sleep until it changes.
type CondBarrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	arrived    int
	generation uint64
	expected   int
}

// NewCondBarrier creates a condition-variable barrier for n participants.
// Panics if n < 1.
func NewCondBarrier(n int) *CondBarrier {
	if n < 1 {
		panic(fmt.Sprintf("NewCondBarrier: participant count %d must be >= 1", n))
	}
	b := &CondBarrier{expected: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Parties returns the number of participants per round.
func (b *CondBarrier) Parties() int { return b.expected }

// Wait blocks until all participants of the current round have arrived.
func (b *CondBarrier) Wait() {
	b.mu.Lock()
	gen := b.generation
	b.arrived++
	if b.arrived == b.expected {
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		b.mu.Unlock()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
	b.mu.Unlock()
}
