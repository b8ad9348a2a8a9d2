//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package proctable

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgvLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		pid  int
		want []string
	}{
		{"plain", "  42 chrome --headless about:blank", 42,
			[]string{"chrome", "--headless", "about:blank"}},
		{"profile with spaces, equals form",
			"7 Google --user-data-dir=/Users/u/Library/Application Support/Google/Chrome --remote-debugging-port=9222", 7,
			[]string{"Google", "--user-data-dir=/Users/u/Library/Application Support/Google/Chrome", "--remote-debugging-port=9222"}},
		{"profile with spaces, separate value",
			"8 chrome --user-data-dir /private/tmp/run one --headless", 8,
			[]string{"chrome", "--user-data-dir", "/private/tmp/run one", "--headless"}},
		{"other arguments stay split", "9 chrome --window-name=a b", 9,
			[]string{"chrome", "--window-name=a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pid, argv, ok := parseArgvLine(tt.line)
			require.True(t, ok)
			assert.Equal(t, tt.pid, pid)
			assert.Equal(t, tt.want, argv)
		})
	}
}

func TestParseArgvLine_Rejects(t *testing.T) {
	for _, line := range []string{"", "42", "pid chrome"} {
		_, _, ok := parseArgvLine(line)
		assert.False(t, ok, line)
	}
}

func TestParseArgvLine_ProfileReachesRecord(t *testing.T) {
	_, argv, ok := parseArgvLine("7 chrome --user-data-dir=/Users/u/Library/Application Support/Google/Chrome")
	require.True(t, ok)
	rec := NewRecord(7, 1, "chrome", argv, 1, "launchd")
	assert.Equal(t, "/Users/u/Library/Application Support/Google/Chrome", rec.UserDataDir)
}

func TestParseIdentityLine(t *testing.T) {
	row, ok := parseIdentityLine("  501   1 S    Mon Oct  5 09:14:02 2026 /Applications/Google Chrome.app/Contents/MacOS/Google Chrome")
	require.True(t, ok)
	assert.Equal(t, 501, row.pid)
	assert.Equal(t, 1, row.ppid)
	assert.Equal(t, "S", row.state)
	assert.Equal(t, "/Applications/Google Chrome.app/Contents/MacOS/Google Chrome", row.comm)
	assert.NotZero(t, row.startTime)
}

func TestPsTable_LookupSelf(t *testing.T) {
	table, err := NewSystemTable()
	if err != nil {
		t.Skipf("ps unavailable: %v", err)
	}
	rec, err := table.Lookup(os.Getpid())
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), rec.PID)

	_, err = table.Enumerate(context.Background())
	assert.NoError(t, err)
}
