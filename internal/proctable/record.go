// Package proctable provides read-only snapshots of the operating system
// process table.
//
// A Table is the only view the rest of reap has of OS process state. The
// production table is bound to the platform facility (procfs on Linux, ps on
// macOS and the BSDs, a Toolhelp snapshot on Windows). Tests substitute a
// Double.
package proctable

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

// UnknownParent is the ParentName of a process whose parent has exited or
// could not be read.
const UnknownParent = "unknown"

// userDataDirFlag is the Chromium flag naming the profile directory.
const userDataDirFlag = "--user-data-dir"

var (
	// ErrNotFound is returned by Lookup when the process does not exist.
	ErrNotFound = errors.New("process not found")

	// ErrUnavailable is returned when the process listing facility itself
	// cannot be used. This is the only enumeration error that aborts a run.
	ErrUnavailable = errors.New("process table unavailable")
)

// Table enumerates and looks up OS processes.
type Table interface {
	// Enumerate returns a snapshot of every readable process. Processes that
	// vanish or cannot be read mid-scan are skipped.
	Enumerate(ctx context.Context) ([]Record, error)

	// Lookup re-reads one process. Returns ErrNotFound if it is gone.
	Lookup(pid int) (Record, error)
}

// Key identifies one process instance. PIDs are reused by the OS, so a PID
// is only meaningful together with the start time read at scan time.
type Key struct {
	PID       int
	StartTime uint64
}

// Record is a snapshot of one process at scan time. Records are immutable
// after construction.
type Record struct {
	PID         int      `json:"pid"`
	StartTime   uint64   `json:"start_time"`
	Name        string   `json:"name"`
	Args        []string `json:"args"`
	PPID        int      `json:"ppid"`
	ParentName  string   `json:"parent_name"`
	UserDataDir string   `json:"user_data_dir,omitempty"`
	Zombie      bool     `json:"zombie,omitempty"`
}

// NewRecord builds a Record. Args are copied, the name is reduced to its
// base name, and the user-data-dir is extracted from args.
func NewRecord(pid int, startTime uint64, name string, args []string, ppid int, parentName string) Record {
	copied := make([]string, len(args))
	copy(copied, args)

	if parentName == "" {
		parentName = UnknownParent
	}

	return Record{
		PID:         pid,
		StartTime:   startTime,
		Name:        baseName(name),
		Args:        copied,
		PPID:        ppid,
		ParentName:  baseName(parentName),
		UserDataDir: extractUserDataDir(copied),
	}
}

// Key returns the PID+start-time identity of the record.
func (r Record) Key() Key {
	return Key{PID: r.PID, StartTime: r.StartTime}
}

// CommandLine joins the argument vector with spaces.
func (r Record) CommandLine() string {
	if len(r.Args) == 0 {
		return r.Name
	}
	return strings.Join(r.Args, " ")
}

// DisplayCommand returns the command line truncated to max characters.
func (r Record) DisplayCommand(max int) string {
	cmd := r.CommandLine()
	runes := []rune(cmd)
	if max <= 3 || len(runes) <= max {
		return cmd
	}
	return string(runes[:max-3]) + "..."
}

// SameInstance reports whether other is the same process instance as r.
func (r Record) SameInstance(other Record) bool {
	return r.Key() == other.Key()
}

// extractUserDataDir finds --user-data-dir in either "--flag=value" or
// "--flag value" form. The last occurrence wins, as in Chromium.
func extractUserDataDir(args []string) string {
	dir := ""
	for i, arg := range args {
		if i == 0 {
			continue
		}
		if v, ok := strings.CutPrefix(arg, userDataDirFlag+"="); ok {
			dir = strings.Trim(v, `"'`)
		} else if arg == userDataDirFlag && i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			dir = strings.Trim(args[i+1], `"'`)
		}
	}
	return dir
}

// baseName strips any directory from an executable name. Windows paths are
// handled on every platform since ps and Toolhelp report differently.
func baseName(name string) string {
	if name == "" || name == UnknownParent {
		return name
	}
	if i := strings.LastIndexAny(name, `/\`); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return filepath.Base(name)
}
