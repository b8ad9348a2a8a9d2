//go:build linux

package proctable

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"github.com/prometheus/procfs"
)

// DefaultProcRoot is the procfs mount point.
const DefaultProcRoot = procfs.DefaultMountPoint

// ProcfsTable reads the process table from /proc.
type ProcfsTable struct {
	fs procfs.FS
}

// NewProcfsTable opens procfs at root ("" means /proc).
func NewProcfsTable(root string) (*ProcfsTable, error) {
	if root == "" {
		root = DefaultProcRoot
	}
	pfs, err := procfs.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("%w: opening procfs at %s: %v", ErrUnavailable, root, err)
	}
	return &ProcfsTable{fs: pfs}, nil
}

// NewSystemTable returns the production table for this platform.
func NewSystemTable() (Table, error) {
	return NewProcfsTable("")
}

// entry is a partially read process used while resolving parent names.
type entry struct {
	pid       int
	ppid      int
	comm      string
	startTime uint64
	zombie    bool
	args      []string
}

// Enumerate lists every process in /proc.
func (t *ProcfsTable) Enumerate(ctx context.Context) ([]Record, error) {
	procs, err := t.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("%w: listing /proc: %v", ErrUnavailable, err)
	}

	entries := make([]entry, 0, len(procs))
	comms := make(map[int]string, len(procs))
	for _, p := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e, err := readEntry(p)
		if err != nil {
			// Vanished or unreadable mid-scan.
			continue
		}
		entries = append(entries, e)
		comms[e.pid] = e.comm
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		parent, ok := comms[e.ppid]
		if !ok {
			parent = UnknownParent
		}
		records = append(records, e.record(parent))
	}
	return records, nil
}

// Lookup re-reads a single process and its parent's name.
func (t *ProcfsTable) Lookup(pid int) (Record, error) {
	p, err := t.fs.Proc(pid)
	if err != nil {
		return Record{}, mapProcErr(pid, err)
	}
	e, err := readEntry(p)
	if err != nil {
		return Record{}, mapProcErr(pid, err)
	}

	parent := UnknownParent
	if pp, err := t.fs.Proc(e.ppid); err == nil {
		if comm, err := pp.Comm(); err == nil {
			parent = comm
		}
	}
	return e.record(parent), nil
}

func readEntry(p procfs.Proc) (entry, error) {
	stat, err := p.Stat()
	if err != nil {
		return entry{}, err
	}
	e := entry{
		pid:       p.PID,
		ppid:      stat.PPID,
		comm:      stat.Comm,
		startTime: stat.Starttime,
		zombie:    stat.State == "Z" || stat.State == "X",
	}
	// Kernel threads and zombies have an empty cmdline.
	if args, err := p.CmdLine(); err == nil {
		e.args = args
	}
	return e, nil
}

func (e entry) record(parent string) Record {
	rec := NewRecord(e.pid, e.startTime, e.comm, e.args, e.ppid, parent)
	rec.Zombie = e.zombie
	return rec
}

func mapProcErr(pid int, err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("pid %d: %w", pid, ErrNotFound)
	}
	return fmt.Errorf("reading pid %d: %w", pid, err)
}
