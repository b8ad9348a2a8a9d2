package terminate

import (
	"errors"
	"fmt"

	"github.com/steveyegge/reap/internal/proctable"
)

// Signal is the kind of termination request.
type Signal int

const (
	// SignalGraceful asks the process to exit (SIGTERM).
	SignalGraceful Signal = iota
	// SignalForce kills the process unconditionally (SIGKILL).
	SignalForce
)

func (s Signal) String() string {
	switch s {
	case SignalGraceful:
		return "SIGTERM"
	case SignalForce:
		return "SIGKILL"
	}
	return fmt.Sprintf("Signal(%d)", int(s))
}

var (
	// ErrProcessGone means the target no longer exists, or its PID now
	// belongs to a different process instance.
	ErrProcessGone = errors.New("process not found")

	// ErrPermission means the caller may not signal the target.
	ErrPermission = errors.New("permission denied")

	// ErrUnsupported means the platform cannot deliver the signal.
	ErrUnsupported = errors.New("signal unsupported on this platform")
)

// Signaler delivers termination signals to one process instance.
// Implementations must refuse to signal a PID whose start time no longer
// matches target, returning ErrProcessGone.
type Signaler interface {
	Signal(target proctable.Record, sig Signal) error
}

// verifyIdentity confirms target is still the process at its PID.
func verifyIdentity(table proctable.Table, target proctable.Record) error {
	cur, err := table.Lookup(target.PID)
	if err != nil {
		if errors.Is(err, proctable.ErrNotFound) {
			return fmt.Errorf("pid %d: %w", target.PID, ErrProcessGone)
		}
		return err
	}
	if !cur.SameInstance(target) {
		return fmt.Errorf("pid %d reused by another process: %w", target.PID, ErrProcessGone)
	}
	if cur.Zombie {
		return fmt.Errorf("pid %d already exited: %w", target.PID, ErrProcessGone)
	}
	return nil
}
