//go:build unix && !linux

package terminate

import "github.com/steveyegge/reap/internal/proctable"

// NewSystemSignaler returns the production Signaler for non-Linux Unix.
func NewSystemSignaler(table proctable.Table) Signaler {
	return NewKillSignaler(table)
}
