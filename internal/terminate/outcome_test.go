package terminate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFold(t *testing.T) {
	outcomes := []Outcome{
		{Disposition: DispositionTerminatedGracefully},
		{Disposition: DispositionTerminatedForcibly},
		{Disposition: DispositionAlreadyGone},
		{Disposition: DispositionFailedPermission},
		{Disposition: DispositionFailedOther},
		{Disposition: DispositionAbandoned},
	}

	s := Fold(outcomes)

	assert.Equal(t, Statistics{
		Considered:           6,
		Terminated:           2,
		TerminatedGracefully: 1,
		TerminatedForcibly:   1,
		AlreadyGone:          1,
		Failed:               2,
		FailedPermission:     1,
		Abandoned:            1,
	}, s)
	assert.Equal(t, 3, s.Succeeded())
	assert.Equal(t, s.Considered, s.Terminated+s.AlreadyGone+s.Failed+s.Abandoned)
}

func TestDisposition_Predicates(t *testing.T) {
	assert.True(t, DispositionAlreadyGone.Succeeded())
	assert.False(t, DispositionAlreadyGone.Failed())
	assert.True(t, DispositionFailedOther.Failed())
	assert.False(t, DispositionAbandoned.Succeeded())
	assert.False(t, DispositionAbandoned.Failed())
}

func TestAccumulator_Concurrent(t *testing.T) {
	var acc Accumulator
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc.Add(Outcome{Disposition: DispositionTerminatedGracefully})
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, acc.Snapshot().Terminated)
}

func TestSignal_String(t *testing.T) {
	assert.Equal(t, "SIGTERM", SignalGraceful.String())
	assert.Equal(t, "SIGKILL", SignalForce.String())
	assert.Equal(t, "Signal(7)", Signal(7).String())
}
