package sim

import (
	"fmt"
	"runtime"
)

// MaxWorkers caps the worker pool regardless of how many CPUs are online.
const MaxWorkers = 8

// RowRange is the half-open interval of rows [Start, End) owned by one worker.
type RowRange struct {
	Start int
	End   int
}

// Len returns the number of rows in the range.
func (r RowRange) Len() int { return r.End - r.Start }

// Partition splits h rows into p contiguous ranges. Range i covers
// [h*i/p, h*(i+1)/p), so the ranges never overlap, cover [0, h) exactly, and
// differ in size by at most one row.
// Panics if p is outside [1, h]: every worker must own at least one row.
func Partition(h, p int) []RowRange {
	if p < 1 || p > h {
		panic(fmt.Sprintf("Partition: worker count %d outside [1, %d]", p, h))
	}
	ranges := make([]RowRange, p)
	for i := 0; i < p; i++ {
		ranges[i] = RowRange{
			Start: h * i / p,
			End:   h * (i + 1) / p,
		}
	}
	return ranges
}

// ClampWorkers resolves a worker-count hint against the grid height.
// A hint <= 0 means "use the number of online CPUs". The result is always in
// [1, min(hint, MaxWorkers, h)].
func ClampWorkers(hint, h int) int {
	n := hint
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > MaxWorkers {
		n = MaxWorkers
	}
	if n > h {
		n = h
	}
	if n < 1 {
		n = 1
	}
	return n
}
