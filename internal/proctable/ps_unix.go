//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package proctable

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// lstartLayout is the layout ps uses for the lstart column.
const lstartLayout = "Mon Jan _2 15:04:05 2006"

// PsTable reads the process table by running ps(1).
type PsTable struct {
	// Command is the ps binary, "ps" by default.
	Command string
}

// NewSystemTable returns the production table for this platform.
func NewSystemTable() (Table, error) {
	path, err := exec.LookPath("ps")
	if err != nil {
		return nil, fmt.Errorf("%w: ps not found: %v", ErrUnavailable, err)
	}
	return &PsTable{Command: path}, nil
}

// psRow is one line of the identity listing.
type psRow struct {
	pid       int
	ppid      int
	startTime uint64
	state     string
	comm      string
}

// Enumerate runs ps twice: once for identity columns (which end with comm,
// so paths with spaces survive), once for argv.
func (t *PsTable) Enumerate(ctx context.Context) ([]Record, error) {
	rows, err := t.identity(ctx, nil)
	if err != nil {
		return nil, err
	}
	args, err := t.argv(ctx, nil)
	if err != nil {
		return nil, err
	}
	return buildRecords(rows, args), nil
}

// Lookup reads a single process. The parent name comes from a second query.
func (t *PsTable) Lookup(pid int) (Record, error) {
	ctx := context.Background()
	rows, err := t.identity(ctx, []int{pid})
	if err != nil {
		return Record{}, err
	}
	row, ok := rows[pid]
	if !ok {
		return Record{}, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
	}
	if parents, err := t.identity(ctx, []int{row.ppid}); err == nil {
		for k, v := range parents {
			rows[k] = v
		}
	}
	args, _ := t.argv(ctx, []int{pid})
	for _, rec := range buildRecords(rows, args) {
		if rec.PID == pid {
			return rec, nil
		}
	}
	return Record{}, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
}

func (t *PsTable) run(ctx context.Context, pids []int, columns string) ([]byte, bool, error) {
	cmdArgs := []string{"-ww", "-o", columns}
	if len(pids) == 0 {
		cmdArgs = append([]string{"-ax"}, cmdArgs...)
	} else {
		ids := make([]string, len(pids))
		for i, p := range pids {
			ids[i] = strconv.Itoa(p)
		}
		cmdArgs = append(cmdArgs, "-p", strings.Join(ids, ","))
	}

	name := t.Command
	if name == "" {
		name = "ps"
	}
	out, err := exec.CommandContext(ctx, name, cmdArgs...).Output()
	if err != nil {
		// ps exits 1 when a -p selection matches nothing.
		if exitErr, ok := err.(*exec.ExitError); ok && len(pids) > 0 && exitErr.ExitCode() == 1 {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: running ps: %v", ErrUnavailable, err)
	}
	return out, true, nil
}

func (t *PsTable) identity(ctx context.Context, pids []int) (map[int]psRow, error) {
	out, ok, err := t.run(ctx, pids, "pid=,ppid=,state=,lstart=,comm=")
	if err != nil || !ok {
		return map[int]psRow{}, err
	}

	rows := make(map[int]psRow)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		row, ok := parseIdentityLine(scanner.Text())
		if !ok {
			continue
		}
		rows[row.pid] = row
	}
	return rows, nil
}

func (t *PsTable) argv(ctx context.Context, pids []int) (map[int][]string, error) {
	out, ok, err := t.run(ctx, pids, "pid=,args=")
	if err != nil || !ok {
		return map[int][]string{}, err
	}

	args := make(map[int][]string)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if pid, argv, ok := parseArgvLine(scanner.Text()); ok {
			args[pid] = argv
		}
	}
	return args, nil
}

// parseArgvLine parses "pid args...". ps joins argv with spaces, so an
// argument containing a space comes back split. Words following a
// --user-data-dir value are rejoined to it until the next switch, which
// keeps profile paths such as "Application Support" intact. Other
// arguments stay split.
func parseArgvLine(line string) (int, []string, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0, nil, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, nil, false
	}

	rest := fields[1:]
	argv := make([]string, 0, len(rest))
	for i := 0; i < len(rest); i++ {
		f := rest[i]
		argv = append(argv, f)

		joining := false
		switch {
		case strings.HasPrefix(f, userDataDirFlag+"="):
			joining = true
		case f == userDataDirFlag && i+1 < len(rest) && !strings.HasPrefix(rest[i+1], "-"):
			i++
			argv = append(argv, rest[i])
			joining = true
		}
		for joining && i+1 < len(rest) && !strings.HasPrefix(rest[i+1], "-") {
			i++
			argv[len(argv)-1] += " " + rest[i]
		}
	}
	return pid, argv, true
}

// parseIdentityLine parses "pid ppid state Dow Mon DD HH:MM:SS YYYY comm...".
func parseIdentityLine(line string) (psRow, bool) {
	fields := strings.Fields(line)
	if len(fields) < 9 {
		return psRow{}, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil {
		return psRow{}, false
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return psRow{}, false
	}
	started, err := time.ParseInLocation(lstartLayout, strings.Join(fields[3:8], " "), time.Local)
	if err != nil {
		return psRow{}, false
	}

	// comm is the remainder of the line and may contain spaces.
	comm := strings.Join(fields[8:], " ")
	return psRow{
		pid:       pid,
		ppid:      ppid,
		state:     fields[2],
		startTime: uint64(started.Unix()),
		comm:      comm,
	}, true
}

func buildRecords(rows map[int]psRow, args map[int][]string) []Record {
	records := make([]Record, 0, len(rows))
	for pid, row := range rows {
		parent := UnknownParent
		if p, ok := rows[row.ppid]; ok {
			parent = p.comm
		}
		rec := NewRecord(pid, row.startTime, row.comm, args[pid], row.ppid, parent)
		rec.Zombie = strings.HasPrefix(row.state, "Z")
		records = append(records, rec)
	}
	return records
}
