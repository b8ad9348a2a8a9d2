package terminate

import (
	"fmt"
	"sync"
	"time"

	"github.com/steveyegge/reap/internal/proctable"
)

// Behavior scripts how a process held by a Double reacts to signals.
type Behavior int

const (
	// ExitOnGraceful exits immediately on any signal.
	ExitOnGraceful Behavior = iota
	// IgnoreGraceful ignores SIGTERM and exits on SIGKILL.
	IgnoreGraceful
	// Unkillable ignores every signal.
	Unkillable
	// DenyPermission rejects every signal with ErrPermission.
	DenyPermission
	// VanishOnSignal exits just before the first signal lands.
	VanishOnSignal
	// UnsupportedGraceful rejects SIGTERM with ErrUnsupported and exits
	// on SIGKILL, as on Windows.
	UnsupportedGraceful
)

// SignalCall records one Signal invocation.
type SignalCall struct {
	PID    int
	Signal Signal
}

// Double is a FAKE with SPY capabilities for the Signaler interface.
//
// Processes live in a proctable.Double; an "exit" removes the process from
// that table. Every Signal call is recorded, including rejected ones.
type Double struct {
	mu        sync.Mutex
	table     *proctable.Double
	behaviors map[int]Behavior
	delays    map[int]time.Duration
	calls     []SignalCall
}

// NewDouble creates a Double acting on table. Processes default to ExitOnGraceful.
func NewDouble(table *proctable.Double) *Double {
	return &Double{
		table:     table,
		behaviors: make(map[int]Behavior),
		delays:    make(map[int]time.Duration),
	}
}

// Ensure Double implements Signaler
var _ Signaler = (*Double)(nil)

// SetBehavior scripts pid's response to signals.
func (d *Double) SetBehavior(pid int, b Behavior) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.behaviors[pid] = b
}

// ExitAfter makes pid exit delay after it receives SIGTERM.
func (d *Double) ExitAfter(pid int, delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.behaviors[pid] = ExitOnGraceful
	d.delays[pid] = delay
}

// Calls returns every Signal invocation in order.
func (d *Double) Calls() []SignalCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]SignalCall, len(d.calls))
	copy(out, d.calls)
	return out
}

// CallsFor returns the signals sent to pid, in order.
func (d *Double) CallsFor(pid int) []Signal {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Signal
	for _, c := range d.calls {
		if c.PID == pid {
			out = append(out, c.Signal)
		}
	}
	return out
}

// Signal applies the scripted behavior for target.PID.
func (d *Double) Signal(target proctable.Record, sig Signal) error {
	d.mu.Lock()
	d.calls = append(d.calls, SignalCall{PID: target.PID, Signal: sig})
	behavior := d.behaviors[target.PID]
	delay := d.delays[target.PID]
	d.mu.Unlock()

	if behavior == VanishOnSignal {
		d.table.Remove(target.PID)
	}
	if err := verifyIdentity(d.table, target); err != nil {
		return err
	}

	switch behavior {
	case DenyPermission:
		return fmt.Errorf("%s pid %d: %w", sig, target.PID, ErrPermission)
	case Unkillable:
		return nil
	case IgnoreGraceful:
		if sig == SignalForce {
			d.table.Remove(target.PID)
		}
		return nil
	case UnsupportedGraceful:
		if sig == SignalGraceful {
			return fmt.Errorf("%s pid %d: %w", sig, target.PID, ErrUnsupported)
		}
		d.table.Remove(target.PID)
		return nil
	}

	if sig == SignalGraceful && delay > 0 {
		time.AfterFunc(delay, func() { d.table.Remove(target.PID) })
		return nil
	}
	d.table.Remove(target.PID)
	return nil
}
