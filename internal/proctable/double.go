package proctable

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Double is a FAKE with SPY capabilities for the Table interface.
//
// It holds an in-memory process list that tests mutate directly (Add,
// Remove, Replace) or through a fake signaler. Enumerate and Lookup calls
// are counted for verification.
type Double struct {
	mu           sync.RWMutex
	procs        map[int]Record
	enumerateErr error
	enumerations int
	lookups      map[int]int
}

// NewDouble creates a Double pre-populated with records.
func NewDouble(records ...Record) *Double {
	d := &Double{
		procs:   make(map[int]Record),
		lookups: make(map[int]int),
	}
	for _, r := range records {
		d.procs[r.PID] = r
	}
	return d
}

// Ensure Double implements Table
var _ Table = (*Double)(nil)

// Add inserts or overwrites a process.
func (d *Double) Add(r Record) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.procs[r.PID] = r
}

// Remove deletes a process, simulating its exit.
func (d *Double) Remove(pid int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.procs, pid)
}

// Replace swaps the process at r.PID for r, simulating PID reuse when
// r.StartTime differs from the original.
func (d *Double) Replace(r Record) {
	d.Add(r)
}

// Alive reports whether pid is present and not a zombie.
func (d *Double) Alive(pid int) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.procs[pid]
	return ok && !r.Zombie
}

// FailEnumerate makes every subsequent Enumerate return err.
func (d *Double) FailEnumerate(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enumerateErr = err
}

// Enumerations returns how many times Enumerate was called.
func (d *Double) Enumerations() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enumerations
}

// Lookups returns how many times Lookup was called for pid.
func (d *Double) Lookups(pid int) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lookups[pid]
}

// Enumerate returns the current process list ordered by PID.
func (d *Double) Enumerate(ctx context.Context) ([]Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.enumerations++
	if d.enumerateErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, d.enumerateErr)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(d.procs))
	for _, r := range d.procs {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].PID < records[j].PID })
	return records, nil
}

// Lookup returns the process with pid, or ErrNotFound.
func (d *Double) Lookup(pid int) (Record, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lookups[pid]++
	r, ok := d.procs[pid]
	if !ok {
		return Record{}, fmt.Errorf("pid %d: %w", pid, ErrNotFound)
	}
	return r, nil
}
