// Package terminate drives the graceful-then-forced termination of a set of
// processes and records one Outcome per process.
package terminate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/panjf2000/ants/v2"

	"github.com/steveyegge/reap/internal/classify"
	"github.com/steveyegge/reap/internal/proctable"
)

// Defaults used when Options fields are zero.
const (
	DefaultGracefulTimeout = 3 * time.Second
	DefaultForceTimeout    = 2 * time.Second
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultConcurrency     = 4
)

// Options tune the Controller.
type Options struct {
	// GracefulTimeout is how long a process gets to exit after SIGTERM.
	GracefulTimeout time.Duration
	// ForceTimeout is how long to wait for exit after SIGKILL.
	ForceTimeout time.Duration
	// PollInterval is the spacing of liveness checks while waiting.
	PollInterval time.Duration
	// Concurrency bounds how many processes are handled at once.
	Concurrency int
}

// DefaultOptions returns the stock timing.
func DefaultOptions() Options {
	return Options{
		GracefulTimeout: DefaultGracefulTimeout,
		ForceTimeout:    DefaultForceTimeout,
		PollInterval:    DefaultPollInterval,
		Concurrency:     DefaultConcurrency,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.GracefulTimeout <= 0 {
		o.GracefulTimeout = d.GracefulTimeout
	}
	if o.ForceTimeout <= 0 {
		o.ForceTimeout = d.ForceTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = d.PollInterval
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	return o
}

// Controller terminates processes through a Signaler, confirming exits
// against a process Table.
type Controller struct {
	table    proctable.Table
	signaler Signaler
	opts     Options
}

// New creates a Controller. Zero Options fields take their defaults.
func New(table proctable.Table, signaler Signaler, opts Options) *Controller {
	return &Controller{table: table, signaler: signaler, opts: opts.withDefaults()}
}

// Options returns the effective options.
func (c *Controller) Options() Options {
	return c.opts
}

// Terminate handles every target and returns one outcome per target in
// input order, along with their statistics. With forced set, SIGTERM is
// skipped. Cancelling ctx abandons processes not yet resolved.
func (c *Controller) Terminate(ctx context.Context, targets []classify.Classified, forced bool) ([]Outcome, Statistics) {
	outcomes := make([]Outcome, len(targets))
	if len(targets) == 0 {
		return outcomes, Statistics{}
	}

	var acc Accumulator
	run := func(i int) {
		outcomes[i] = c.terminateOne(ctx, targets[i].Record, forced)
		acc.Add(outcomes[i])
	}

	pool, err := ants.NewPool(min(c.opts.Concurrency, len(targets)))
	if err != nil {
		for i := range targets {
			run(i)
		}
		return outcomes, acc.Snapshot()
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range targets {
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			run(i)
		}); err != nil {
			run(i)
			wg.Done()
		}
	}
	wg.Wait()

	return outcomes, acc.Snapshot()
}

// state is a step of the per-process termination machine.
type state int

const (
	stateRunning state = iota
	stateAwaitingExit
	stateForceKill
	stateDone
)

// termination is the mutable working state for one process. Only the
// goroutine handling that process touches it.
type termination struct {
	target  proctable.Record
	forced  bool
	outcome Outcome
	notes   []string
}

func (t *termination) finish(d Disposition, msg string) state {
	t.outcome.Disposition = d
	if len(t.notes) > 0 {
		if msg != "" {
			t.notes = append(t.notes, msg)
		}
		msg = strings.Join(t.notes, "; ")
	}
	t.outcome.Message = msg
	return stateDone
}

func (t *termination) sent(sig Signal) {
	t.outcome.Signals = append(t.outcome.Signals, sig.String())
}

func (c *Controller) terminateOne(ctx context.Context, target proctable.Record, forced bool) Outcome {
	start := time.Now()
	t := &termination{
		target:  target,
		forced:  forced,
		outcome: Outcome{PID: target.PID, Name: target.Name},
	}

	st := stateRunning
	for st != stateDone {
		switch st {
		case stateRunning:
			st = c.stepRunning(ctx, t)
		case stateAwaitingExit:
			st = c.stepAwaitingExit(ctx, t)
		case stateForceKill:
			st = c.stepForceKill(ctx, t)
		}
	}

	t.outcome.Elapsed = time.Since(start)
	return t.outcome
}

func (c *Controller) stepRunning(ctx context.Context, t *termination) state {
	if ctx.Err() != nil {
		return t.finish(DispositionAbandoned, "cancelled before signalling")
	}

	alive, err := c.alive(t.target)
	if err != nil {
		return t.finish(dispositionFor(err), err.Error())
	}
	if !alive {
		return t.finish(DispositionAlreadyGone, "exited before signalling")
	}

	if t.forced {
		return stateForceKill
	}

	err = c.signaler.Signal(t.target, SignalGraceful)
	switch {
	case err == nil:
		t.sent(SignalGraceful)
		return stateAwaitingExit
	case errors.Is(err, ErrUnsupported):
		t.notes = append(t.notes, "graceful signal unsupported, escalated")
		return stateForceKill
	default:
		return t.finish(dispositionFor(err), err.Error())
	}
}

func (c *Controller) stepAwaitingExit(ctx context.Context, t *termination) state {
	gone, err := c.waitGone(ctx, t.target, c.opts.GracefulTimeout)
	switch {
	case err != nil:
		return t.finish(dispositionFor(err), err.Error())
	case gone:
		return t.finish(DispositionTerminatedGracefully, "")
	case ctx.Err() != nil:
		return t.finish(DispositionAbandoned, "cancelled awaiting exit after SIGTERM")
	}
	t.notes = append(t.notes, fmt.Sprintf("no exit %s after SIGTERM", c.opts.GracefulTimeout))
	return stateForceKill
}

func (c *Controller) stepForceKill(ctx context.Context, t *termination) state {
	if ctx.Err() != nil {
		return t.finish(DispositionAbandoned, "cancelled before SIGKILL")
	}

	if err := c.signaler.Signal(t.target, SignalForce); err != nil {
		return t.finish(dispositionFor(err), err.Error())
	}
	t.sent(SignalForce)

	gone, err := c.waitGone(ctx, t.target, c.opts.ForceTimeout)
	switch {
	case err != nil:
		return t.finish(dispositionFor(err), err.Error())
	case gone:
		return t.finish(DispositionTerminatedForcibly, "")
	case ctx.Err() != nil:
		return t.finish(DispositionAbandoned, "cancelled awaiting exit after SIGKILL")
	}
	return t.finish(DispositionFailedOther, "process survived SIGKILL")
}

var errStillRunning = errors.New("still running")

// waitGone polls until target exits or timeout passes. It returns
// (false, nil) on timeout or cancellation.
func (c *Controller) waitGone(ctx context.Context, target proctable.Record, timeout time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	b := backoff.WithContext(backoff.NewConstantBackOff(c.opts.PollInterval), waitCtx)
	err := backoff.Retry(func() error {
		alive, err := c.alive(target)
		if err != nil {
			return backoff.Permanent(err)
		}
		if alive {
			return errStillRunning
		}
		return nil
	}, b)

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errStillRunning), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
	default:
		return false, err
	}

	if ctx.Err() != nil {
		return false, nil
	}
	// One last look in case the exit landed on the deadline.
	alive, err := c.alive(target)
	if err != nil {
		return false, err
	}
	return !alive, nil
}

// alive reports whether target's exact instance is still running.
func (c *Controller) alive(target proctable.Record) (bool, error) {
	cur, err := c.table.Lookup(target.PID)
	if err != nil {
		if errors.Is(err, proctable.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return cur.SameInstance(target) && !cur.Zombie, nil
}

func dispositionFor(err error) Disposition {
	switch {
	case errors.Is(err, ErrProcessGone), errors.Is(err, proctable.ErrNotFound):
		return DispositionAlreadyGone
	case errors.Is(err, ErrPermission):
		return DispositionFailedPermission
	}
	return DispositionFailedOther
}
