//go:build integration

package cleanup

import (
	"context"
	"testing"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/reap/internal/classify"
	"github.com/steveyegge/reap/internal/proctable"
	"github.com/steveyegge/reap/internal/terminate"
)

// TestRun_RealHeadlessBrowser launches a real Chromium the way automation
// frameworks do and checks it is classified and reaped.
func TestRun_RealHeadlessBrowser(t *testing.T) {
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no Chrome/Chromium binary found")
	}
	table, err := proctable.NewSystemTable()
	if err != nil {
		t.Skipf("process table unavailable: %v", err)
	}

	l := launcher.New().Bin(bin).Headless(true).Leakless(false)
	_, err = l.Launch()
	require.NoError(t, err)
	t.Cleanup(func() {
		l.Kill()
		l.Cleanup()
	})
	pid := l.PID()

	o := New(testConfig(t), table, terminate.NewSystemSignaler(table))

	all, err := o.Scan(context.Background())
	require.NoError(t, err)
	var found *classify.Classified
	for i := range all {
		if all[i].Record.PID == pid {
			found = &all[i]
		}
	}
	require.NotNil(t, found, "launched browser pid %d not enumerated", pid)
	assert.True(t, found.Result.Automation)
	assert.True(t, found.Result.Has(classify.IndicatorRemoteDebugging))

	report, err := o.Run(context.Background(), RunOptions{PIDs: []int{pid}})
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Disposition.Succeeded(), report.Outcomes[0].Message)
}
