//go:build windows

package proctable

import (
	"context"
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// ToolhelpTable reads the process table through CreateToolhelp32Snapshot.
// Command lines come from NtQueryInformationProcess on the same limited
// query handle as the creation time. When the command line is denied, Args
// holds only the image name.
type ToolhelpTable struct{}

// NewSystemTable returns the production table for this platform.
func NewSystemTable() (Table, error) {
	return &ToolhelpTable{}, nil
}

type snapshotEntry struct {
	pid  int
	ppid int
	exe  string
}

func snapshot() ([]snapshotEntry, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: CreateToolhelp32Snapshot: %v", ErrUnavailable, err)
	}
	defer windows.CloseHandle(snap)

	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))
	if err := windows.Process32First(snap, &pe); err != nil {
		return nil, fmt.Errorf("%w: Process32First: %v", ErrUnavailable, err)
	}

	var entries []snapshotEntry
	for {
		entries = append(entries, snapshotEntry{
			pid:  int(pe.ProcessID),
			ppid: int(pe.ParentProcessID),
			exe:  windows.UTF16ToString(pe.ExeFile[:]),
		})
		if err := windows.Process32Next(snap, &pe); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				break
			}
			return nil, fmt.Errorf("%w: Process32Next: %v", ErrUnavailable, err)
		}
	}
	return entries, nil
}

// processInfo holds what one limited query handle yields.
type processInfo struct {
	started uint64
	args    []string
}

// queryProcess opens pid once and reads its creation time (100ns ticks) and
// command line. exe stands in for argv when the command line is unreadable.
func queryProcess(pid int, exe string) (processInfo, error) {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return processInfo{}, err
	}
	defer windows.CloseHandle(h)

	var creation, exit, kernel, user windows.Filetime
	if err := windows.GetProcessTimes(h, &creation, &exit, &kernel, &user); err != nil {
		return processInfo{}, err
	}
	info := processInfo{
		started: uint64(creation.HighDateTime)<<32 | uint64(creation.LowDateTime),
		args:    []string{exe},
	}
	if args, err := commandLine(h); err == nil && len(args) > 0 {
		info.args = args
	}
	return info, nil
}

// commandLine reads and splits the command line of the process behind h.
func commandLine(h windows.Handle) ([]string, error) {
	var size uint32
	err := windows.NtQueryInformationProcess(h, windows.ProcessCommandLineInformation, nil, 0, &size)
	if err != nil && !errors.Is(err, windows.STATUS_INFO_LENGTH_MISMATCH) && !errors.Is(err, windows.STATUS_BUFFER_TOO_SMALL) {
		return nil, err
	}
	if size < uint32(unsafe.Sizeof(windows.NTUnicodeString{})) {
		return nil, fmt.Errorf("command line query returned %d bytes", size)
	}

	// uint64 backing keeps the UNICODE_STRING header aligned.
	buf := make([]uint64, (size+7)/8)
	if err := windows.NtQueryInformationProcess(h, windows.ProcessCommandLineInformation,
		unsafe.Pointer(&buf[0]), uint32(len(buf)*8), &size); err != nil {
		return nil, err
	}
	line := (*windows.NTUnicodeString)(unsafe.Pointer(&buf[0])).String()
	if line == "" {
		return nil, errors.New("empty command line")
	}
	return windows.DecomposeCommandLine(line)
}

// Enumerate lists every process in a Toolhelp snapshot. Processes whose
// creation time cannot be read (gone, or protected) are skipped, since they
// cannot be identified safely.
func (t *ToolhelpTable) Enumerate(ctx context.Context) ([]Record, error) {
	entries, err := snapshot()
	if err != nil {
		return nil, err
	}

	names := make(map[int]string, len(entries))
	for _, e := range entries {
		names[e.pid] = e.exe
	}

	records := make([]Record, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := queryProcess(e.pid, e.exe)
		if err != nil {
			continue
		}
		parent, ok := names[e.ppid]
		if !ok {
			parent = UnknownParent
		}
		records = append(records, NewRecord(e.pid, info.started, e.exe, info.args, e.ppid, parent))
	}
	return records, nil
}

// Lookup finds one process in a fresh snapshot.
func (t *ToolhelpTable) Lookup(pid int) (Record, error) {
	entries, err := snapshot()
	if err != nil {
		return Record{}, err
	}
	for _, e := range entries {
		if e.pid != pid {
			continue
		}
		info, err := queryProcess(pid, e.exe)
		if err != nil {
			if errors.Is(err, windows.ERROR_INVALID_PARAMETER) {
				return Record{}, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
			}
			return Record{}, fmt.Errorf("reading pid %d: %w", pid, err)
		}
		parent := UnknownParent
		for _, p := range entries {
			if p.pid == e.ppid {
				parent = p.exe
				break
			}
		}
		return NewRecord(e.pid, info.started, e.exe, info.args, e.ppid, parent), nil
	}
	return Record{}, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
}
