package vcycle

import (
	"sync"
	"time"
)

// Status is a snapshot of a running controller, safe to read from other goroutines.
type Status struct {
	Phase       string    `json:"phase"`
	Run         int       `json:"run"`
	Runs        int       `json:"runs"`
	Levels      int       `json:"levels"`
	BestCut     int       `json:"best_cut"`
	VCycleGain  int       `json:"vcycle_gain"`
	StartedAt   time.Time `json:"started_at"`
	MaxPartWt   int       `json:"max_part_weight"`
	MaxVertexWt int       `json:"max_vertex_weight"`
}

type statusTracker struct {
	mu     sync.RWMutex
	status Status
}

func (st *statusTracker) update(fn func(s *Status)) {
	st.mu.Lock()
	fn(&st.status)
	st.mu.Unlock()
}

func (st *statusTracker) get() Status {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.status
}

func (c *Controller) Status() Status {
	return c.tracker.get()
}

func (c *Controller) setPhase(phase string) {
	c.tracker.update(func(s *Status) {
		s.Phase = phase
		s.Levels = c.levels.Len()
	})
}
