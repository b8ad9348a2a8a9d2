//go:build linux

package terminate

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/steveyegge/reap/internal/proctable"
)

// PidfdSignaler pins the target with a pidfd before checking its identity,
// so the signal cannot land on a process that reused the PID. Kernels
// without pidfd_open fall back to kill(2).
type PidfdSignaler struct {
	table    proctable.Table
	fallback *KillSignaler
}

// NewSystemSignaler returns the production Signaler for Linux.
func NewSystemSignaler(table proctable.Table) Signaler {
	return &PidfdSignaler{table: table, fallback: NewKillSignaler(table)}
}

func (s *PidfdSignaler) Signal(target proctable.Record, sig Signal) error {
	if target.PID <= 1 {
		return fmt.Errorf("refusing to signal pid %d: %w", target.PID, ErrPermission)
	}

	fd, err := unix.PidfdOpen(target.PID, 0)
	if err != nil {
		if errors.Is(err, unix.ENOSYS) {
			return s.fallback.Signal(target, sig)
		}
		return mapErrno(target.PID, sig, err)
	}
	defer unix.Close(fd)

	// The fd now refers to one process instance; confirm it is ours.
	if err := verifyIdentity(s.table, target); err != nil {
		return err
	}

	err = unix.PidfdSendSignal(fd, unixSignal(sig), nil, 0)
	if errors.Is(err, unix.ENOSYS) {
		return s.fallback.Signal(target, sig)
	}
	return mapErrno(target.PID, sig, err)
}
