package trace

// TraceSummary aggregates statistics from a StepTrace.
type TraceSummary struct {
	Workers      int
	KernelStarts int64
	KernelDones  int64
	MinCompleted int64 // fewest kernels finished by any worker
	MaxCompleted int64 // most kernels finished by any worker
	Violations   int
	Recorded     int // stored events (TraceLevelSteps only)
}

// Isolated reports whether no round-isolation violation was observed.
func (s *TraceSummary) Isolated() bool { return s.Violations == 0 }

// Summarize computes aggregate statistics from a StepTrace.
// Safe for nil traces (returns zero-value fields).
// Call only after the run has joined all workers.
func Summarize(st *StepTrace) *TraceSummary {
	summary := &TraceSummary{}
	if st == nil {
		return summary
	}

	summary.Workers = len(st.completed)
	summary.KernelStarts = st.starts.Load()
	summary.KernelDones = st.dones.Load()
	for i := range st.completed {
		c := st.completed[i].Load()
		if i == 0 || c < summary.MinCompleted {
			summary.MinCompleted = c
		}
		if c > summary.MaxCompleted {
			summary.MaxCompleted = c
		}
	}

	st.mu.Lock()
	summary.Violations = len(st.Violations)
	summary.Recorded = len(st.Records)
	st.mu.Unlock()

	return summary
}
