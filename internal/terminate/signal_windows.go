//go:build windows

package terminate

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/steveyegge/reap/internal/proctable"
)

// WindowsSignaler terminates processes with TerminateProcess. Windows has
// no graceful signal for a windowless process tree, so SignalGraceful
// returns ErrUnsupported and the Controller escalates.
type WindowsSignaler struct {
	table proctable.Table
}

// NewSystemSignaler returns the production Signaler for Windows.
func NewSystemSignaler(table proctable.Table) Signaler {
	return &WindowsSignaler{table: table}
}

func (s *WindowsSignaler) Signal(target proctable.Record, sig Signal) error {
	if sig == SignalGraceful {
		return fmt.Errorf("%s pid %d: %w", sig, target.PID, ErrUnsupported)
	}
	if target.PID <= 4 {
		return fmt.Errorf("refusing to signal pid %d: %w", target.PID, ErrPermission)
	}

	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE|windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(target.PID))
	if err != nil {
		return mapWindowsErr(target.PID, sig, err)
	}
	defer windows.CloseHandle(h)

	// The handle pins the process object; confirm it is still ours.
	if err := verifyIdentity(s.table, target); err != nil {
		return err
	}
	return mapWindowsErr(target.PID, sig, windows.TerminateProcess(h, 1))
}

func mapWindowsErr(pid int, sig Signal, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, windows.ERROR_INVALID_PARAMETER):
		return fmt.Errorf("%s pid %d: %w", sig, pid, ErrProcessGone)
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%s pid %d: %w", sig, pid, ErrPermission)
	}
	return fmt.Errorf("%s pid %d: %w", sig, pid, err)
}
