//go:build unix

package terminate

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/steveyegge/reap/internal/proctable"
)

func unixSignal(sig Signal) unix.Signal {
	if sig == SignalForce {
		return unix.SIGKILL
	}
	return unix.SIGTERM
}

// mapErrno converts signal delivery errors into the package sentinels.
func mapErrno(pid int, sig Signal, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESRCH):
		return fmt.Errorf("%s pid %d: %w", sig, pid, ErrProcessGone)
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return fmt.Errorf("%s pid %d: %w", sig, pid, ErrPermission)
	case errors.Is(err, unix.ENOSYS), errors.Is(err, unix.EINVAL):
		return fmt.Errorf("%s pid %d: %w: %v", sig, pid, ErrUnsupported, err)
	}
	return fmt.Errorf("%s pid %d: %w", sig, pid, err)
}

// KillSignaler checks identity through the table, then uses kill(2).
// The window between the check and the signal cannot be closed with kill(2).
type KillSignaler struct {
	table proctable.Table
}

// NewKillSignaler returns a kill(2) based Signaler.
func NewKillSignaler(table proctable.Table) *KillSignaler {
	return &KillSignaler{table: table}
}

func (s *KillSignaler) Signal(target proctable.Record, sig Signal) error {
	if target.PID <= 1 {
		return fmt.Errorf("refusing to signal pid %d: %w", target.PID, ErrPermission)
	}
	if err := verifyIdentity(s.table, target); err != nil {
		return err
	}
	return mapErrno(target.PID, sig, unix.Kill(target.PID, unixSignal(sig)))
}
