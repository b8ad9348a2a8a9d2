//go:build windows

package proctable

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolhelpTable_LookupSelfReadsCommandLine(t *testing.T) {
	table, err := NewSystemTable()
	require.NoError(t, err)

	rec, err := table.Lookup(os.Getpid())
	require.NoError(t, err)

	require.Len(t, rec.Args, len(os.Args))
	assert.Equal(t, os.Args[1:], rec.Args[1:])
	assert.True(t, strings.EqualFold(filepath.Base(rec.Args[0]), filepath.Base(os.Args[0])), rec.Args[0])
	assert.NotZero(t, rec.StartTime)
}

func TestToolhelpTable_EnumerateIncludesSelf(t *testing.T) {
	table, err := NewSystemTable()
	require.NoError(t, err)

	records, err := table.Enumerate(context.Background())
	require.NoError(t, err)

	for _, r := range records {
		if r.PID == os.Getpid() {
			assert.Equal(t, os.Args[1:], r.Args[1:])
			return
		}
	}
	t.Fatalf("pid %d not enumerated", os.Getpid())
}
