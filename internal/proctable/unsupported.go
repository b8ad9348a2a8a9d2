//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly && !windows

package proctable

import (
	"fmt"
	"runtime"
)

// NewSystemTable reports that no process table is available on this platform.
func NewSystemTable() (Table, error) {
	return nil, fmt.Errorf("%w: no process listing for %s", ErrUnavailable, runtime.GOOS)
}
