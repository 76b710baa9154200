// Package sim provides the parallel stencil engine for stencil-sim.
//
// # Reading Guide
//
// Start with these files, leaf first:
//   - grid.go: row-major Grid buffer; two of them form the ping-pong pair of a run
//   - partition.go: floor-division row partitioning and worker-count clamping
//   - barrier.go: reusable SpinBarrier (default) and CondBarrier
//   - kernel.go: one 5-point stencil step over a row range, borders forced to zero
//   - simulator.go: the worker pool driver
//
// # Execution Model
//
// A run of S steps with P workers partitions the H rows into P contiguous
// ranges. The calling goroutine acts as worker 0 and P-1 helpers are started
// through an errgroup. Every worker repeats, S times: apply StepRows to its own
// rows (current → next), wait on the barrier, swap its local current/next
// labels. A worker only ever writes its own rows of the output grid, and only
// reads the input grid, which the barrier guarantees was fully written during
// the previous step. No locks are taken and nothing is allocated per step.
//
// P = 1 takes a sequential path with no barrier. S = 0 returns the initial grid.
//
// Sub-packages:
//   - sim/trace/: kernel event recording and barrier round-isolation checks
package sim
