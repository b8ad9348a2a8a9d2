//go:build !unix && !windows

package terminate

import (
	"fmt"

	"github.com/steveyegge/reap/internal/proctable"
)

type unsupportedSignaler struct{}

// NewSystemSignaler returns a Signaler that refuses every request.
func NewSystemSignaler(proctable.Table) Signaler {
	return unsupportedSignaler{}
}

func (unsupportedSignaler) Signal(target proctable.Record, sig Signal) error {
	return fmt.Errorf("%s pid %d: %w", sig, target.PID, ErrUnsupported)
}
