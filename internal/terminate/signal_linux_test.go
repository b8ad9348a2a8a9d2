//go:build linux

package terminate

import (
	"context"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/reap/internal/proctable"
)

// startChild runs cmd and returns its record from the live process table.
// The child is reaped by a background Wait so it does not linger as a zombie.
func startChild(t *testing.T, table proctable.Table, cmd *exec.Cmd) proctable.Record {
	t.Helper()
	require.NoError(t, cmd.Start())
	go func() { _ = cmd.Wait() }()
	t.Cleanup(func() { _ = cmd.Process.Kill() })

	rec, err := table.Lookup(cmd.Process.Pid)
	require.NoError(t, err)
	return rec
}

func systemTable(t *testing.T) proctable.Table {
	t.Helper()
	table, err := proctable.NewSystemTable()
	if err != nil {
		t.Skipf("process table unavailable: %v", err)
	}
	return table
}

func TestSystemSignaler_GracefulExit(t *testing.T) {
	table := systemTable(t)
	rec := startChild(t, table, exec.Command("sleep", "30"))

	c := New(table, NewSystemSignaler(table), Options{GracefulTimeout: 2 * time.Second, PollInterval: 10 * time.Millisecond})
	outcomes, _ := c.Terminate(context.Background(), targets(rec), false)

	assert.Equal(t, DispositionTerminatedGracefully, outcomes[0].Disposition, outcomes[0].Message)
}

func TestSystemSignaler_EscalatesWhenTermIgnored(t *testing.T) {
	table := systemTable(t)
	cmd := exec.Command("sh", "-c", "trap '' TERM; sleep 30")
	rec := startChild(t, table, cmd)
	time.Sleep(50 * time.Millisecond) // let the trap install

	c := New(table, NewSystemSignaler(table), Options{GracefulTimeout: 300 * time.Millisecond, PollInterval: 10 * time.Millisecond})
	outcomes, _ := c.Terminate(context.Background(), targets(rec), false)

	assert.Equal(t, DispositionTerminatedForcibly, outcomes[0].Disposition, outcomes[0].Message)
	assert.Equal(t, []string{"SIGTERM", "SIGKILL"}, outcomes[0].Signals)
}

func TestSystemSignaler_RefusesStaleStartTime(t *testing.T) {
	table := systemTable(t)
	rec := startChild(t, table, exec.Command("sleep", "30"))
	stale := rec
	stale.StartTime++

	err := NewSystemSignaler(table).Signal(stale, SignalForce)

	assert.ErrorIs(t, err, ErrProcessGone)
	assert.NoError(t, syscall.Kill(rec.PID, 0), "the real process must not be signalled")
}

func TestSystemSignaler_RefusesInit(t *testing.T) {
	err := NewSystemSignaler(proctable.NewDouble()).Signal(proctable.Record{PID: 1}, SignalForce)
	assert.ErrorIs(t, err, ErrPermission)
}
