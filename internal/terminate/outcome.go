package terminate

import (
	"sync"
	"time"
)

// Disposition is the final state of one termination attempt.
type Disposition string

const (
	DispositionTerminatedGracefully Disposition = "terminated-gracefully"
	DispositionTerminatedForcibly   Disposition = "terminated-forcibly"
	DispositionAlreadyGone          Disposition = "already-gone"
	DispositionFailedPermission     Disposition = "failed-permission"
	DispositionFailedOther          Disposition = "failed-other"

	// DispositionAbandoned: the caller's context ended before the process
	// was resolved. A SIGTERM may already have been sent; the next run
	// reclassifies whatever is left.
	DispositionAbandoned Disposition = "abandoned"
)

// Succeeded reports whether the process is known to no longer be running.
func (d Disposition) Succeeded() bool {
	switch d {
	case DispositionTerminatedGracefully, DispositionTerminatedForcibly, DispositionAlreadyGone:
		return true
	}
	return false
}

// Failed reports whether the disposition counts as a failure.
func (d Disposition) Failed() bool {
	return d == DispositionFailedPermission || d == DispositionFailedOther
}

// Outcome records what happened to one process. Outcomes are produced once
// by the Controller and never modified.
type Outcome struct {
	PID         int           `json:"pid"`
	Name        string        `json:"name"`
	Disposition Disposition   `json:"disposition"`
	Message     string        `json:"message,omitempty"`
	Signals     []string      `json:"signals,omitempty"` // in the order sent
	Elapsed     time.Duration `json:"elapsed_ns"`
}

// Statistics are aggregate counters folded from outcomes.
type Statistics struct {
	Considered           int `json:"considered"`
	Terminated           int `json:"terminated"`
	TerminatedGracefully int `json:"terminated_gracefully"`
	TerminatedForcibly   int `json:"terminated_forcibly"`
	AlreadyGone          int `json:"already_gone"`
	Failed               int `json:"failed"`
	FailedPermission     int `json:"failed_permission"`
	Abandoned            int `json:"abandoned"`
}

// Add folds one outcome into s.
func (s *Statistics) Add(o Outcome) {
	s.Considered++
	switch o.Disposition {
	case DispositionTerminatedGracefully:
		s.Terminated++
		s.TerminatedGracefully++
	case DispositionTerminatedForcibly:
		s.Terminated++
		s.TerminatedForcibly++
	case DispositionAlreadyGone:
		s.AlreadyGone++
	case DispositionFailedPermission:
		s.Failed++
		s.FailedPermission++
	case DispositionFailedOther:
		s.Failed++
	case DispositionAbandoned:
		s.Abandoned++
	}
}

// Succeeded is the number of processes known to be gone.
func (s Statistics) Succeeded() int {
	return s.Terminated + s.AlreadyGone
}

// Fold computes statistics for a sequence of outcomes.
func Fold(outcomes []Outcome) Statistics {
	var s Statistics
	for _, o := range outcomes {
		s.Add(o)
	}
	return s
}

// Accumulator is a Statistics safe for concurrent Add.
type Accumulator struct {
	mu    sync.Mutex
	stats Statistics
}

// Add folds one outcome.
func (a *Accumulator) Add(o Outcome) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.Add(o)
}

// Snapshot returns the current totals.
func (a *Accumulator) Snapshot() Statistics {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
