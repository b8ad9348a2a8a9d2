// Package cleanup runs one pass of the orphaned automation-browser reaper:
// enumerate, classify, and terminate the positives.
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/steveyegge/reap/internal/classify"
	"github.com/steveyegge/reap/internal/config"
	"github.com/steveyegge/reap/internal/debug"
	"github.com/steveyegge/reap/internal/proctable"
	"github.com/steveyegge/reap/internal/telemetry"
	"github.com/steveyegge/reap/internal/terminate"
)

const (
	component = "cleanup"

	// lockWait is how long a live run waits for another run to finish.
	lockWait = 500 * time.Millisecond

	// logCommandWidth bounds command lines in debug output.
	logCommandWidth = 160
)

// ErrBusy means another live cleanup run holds the run lock.
var ErrBusy = errors.New("another cleanup run is in progress")

// RunOptions select how Run behaves.
type RunOptions struct {
	// DryRun reports what would be terminated without sending any signal.
	DryRun bool
	// Forced skips SIGTERM. Config.Forced also enables it.
	Forced bool
	// PIDs, when set, restricts the run to these process IDs.
	PIDs []int
}

// Report is the result of one Run.
type Report struct {
	RunID    string                `json:"run_id"`
	DryRun   bool                  `json:"dry_run"`
	Forced   bool                  `json:"forced"`
	Disabled bool                  `json:"disabled,omitempty"`
	Affected []classify.Classified `json:"affected"`
	Outcomes []terminate.Outcome   `json:"outcomes,omitempty"`
	Stats    terminate.Statistics  `json:"stats"`
	Duration time.Duration         `json:"duration_ns"`
}

// Orchestrator wires the process table, classifier, and termination
// controller together under one configuration.
type Orchestrator struct {
	cfg        config.Config
	table      proctable.Table
	classifier *classify.Classifier
	controller *terminate.Controller
	selfPID    int
}

// New creates an Orchestrator.
func New(cfg config.Config, table proctable.Table, signaler terminate.Signaler) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		table:      table,
		classifier: classify.New(cfg.ClassifyConfig()),
		controller: terminate.New(table, signaler, cfg.TerminateOptions()),
		selfPID:    os.Getpid(),
	}
}

// Scan enumerates and classifies every process. It never signals anything.
func (o *Orchestrator) Scan(ctx context.Context) ([]classify.Classified, error) {
	return o.scan(ctx, "")
}

func (o *Orchestrator) scan(ctx context.Context, runID string) ([]classify.Classified, error) {
	records, err := o.table.Enumerate(ctx)
	if err != nil {
		telemetry.RecordScan(ctx, runID, 0, 0, err)
		debug.Log(component, "enumerate failed: %v", err)
		return nil, fmt.Errorf("enumerating processes: %w", err)
	}

	all := o.classifier.ClassifyAll(records)
	positives := 0
	for _, c := range all {
		if c.Result.Automation {
			positives++
		}
	}
	telemetry.RecordScan(ctx, runID, len(records), positives, nil)
	debug.Log(component, "scanned %d processes, %d automation browsers", len(records), positives)
	return all, nil
}

// Run performs one cleanup pass. Per-process failures are reported in the
// Report; an error means the pass itself could not run.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (report *Report, err error) {
	start := time.Now()
	report = &Report{
		RunID:    uuid.NewString(),
		DryRun:   opts.DryRun,
		Forced:   opts.Forced || o.cfg.Forced,
		Affected: []classify.Classified{},
	}
	debug.LogStart(component, "run", report.RunID)
	defer func() {
		report.Duration = time.Since(start)
		debug.LogEnd(component, "run", report.RunID, report.Duration, err)
		telemetry.RecordCleanup(ctx, summarize(report), err)
		if err != nil {
			report = nil
		}
	}()

	if !o.cfg.Enabled {
		report.Disabled = true
		debug.Log(component, "cleanup disabled by configuration")
		return report, nil
	}

	if !opts.DryRun {
		lock, err := o.acquireLock(ctx)
		if err != nil {
			return report, err
		}
		defer lock.Unlock()
	}

	all, err := o.scan(ctx, report.RunID)
	if err != nil {
		return report, err
	}
	report.Affected = o.selectTargets(classify.Automation(all), opts.PIDs)

	if opts.DryRun {
		report.Stats.Considered = len(report.Affected)
		for _, c := range report.Affected {
			debug.Log(component, "would terminate pid=%d name=%s indicators=%s cmd=%q",
				c.Record.PID, c.Record.Name, strings.Join(c.Result.IndicatorNames(), ","),
				c.Record.DisplayCommand(logCommandWidth))
		}
		return report, nil
	}

	report.Outcomes, report.Stats = o.controller.Terminate(ctx, report.Affected, report.Forced)
	o.logOutcomes(ctx, report)
	return report, nil
}

// selectTargets dedupes positives by process identity, drops the reaper
// itself, and applies the optional PID scope.
func (o *Orchestrator) selectTargets(positives []classify.Classified, pids []int) []classify.Classified {
	seen := mapset.NewThreadUnsafeSet[proctable.Key]()
	var scope mapset.Set[int]
	if len(pids) > 0 {
		scope = mapset.NewThreadUnsafeSet(pids...)
	}

	targets := make([]classify.Classified, 0, len(positives))
	for _, c := range positives {
		switch {
		case c.Record.PID == o.selfPID:
			continue
		case scope != nil && !scope.Contains(c.Record.PID):
			continue
		case !seen.Add(c.Record.Key()):
			continue
		}
		targets = append(targets, c)
	}
	return targets
}

func (o *Orchestrator) acquireLock(ctx context.Context) (*flock.Flock, error) {
	path := o.cfg.LockPath
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lock := flock.New(path)
	lockCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("lock acquisition failed: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock held: %s)", ErrBusy, path)
	}
	return lock, nil
}

func (o *Orchestrator) logOutcomes(ctx context.Context, report *Report) {
	for i, out := range report.Outcomes {
		c := report.Affected[i]
		indicators := c.Result.IndicatorNames()
		debug.Log(component, "pid=%d name=%s indicators=%s disposition=%s signals=%s cmd=%q %s",
			out.PID, out.Name, strings.Join(indicators, ","), out.Disposition,
			strings.Join(out.Signals, ","), c.Record.DisplayCommand(logCommandWidth), out.Message)
		telemetry.RecordTermination(ctx, telemetry.Termination{
			RunID:       report.RunID,
			PID:         out.PID,
			Name:        out.Name,
			Command:     c.Record.CommandLine(),
			Indicators:  indicators,
			Disposition: string(out.Disposition),
			Signals:     out.Signals,
			Message:     out.Message,
			Elapsed:     out.Elapsed,
			Failed:      out.Disposition.Failed(),
		})
	}
}

func summarize(r *Report) telemetry.CleanupSummary {
	return telemetry.CleanupSummary{
		RunID:       r.RunID,
		DryRun:      r.DryRun,
		Forced:      r.Forced,
		Considered:  r.Stats.Considered,
		Terminated:  r.Stats.Terminated,
		AlreadyGone: r.Stats.AlreadyGone,
		Failed:      r.Stats.Failed,
		Abandoned:   r.Stats.Abandoned,
		Duration:    r.Duration,
	}
}
