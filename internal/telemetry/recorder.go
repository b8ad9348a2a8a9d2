// Recording helpers for reap telemetry events.
// Each function emits an OTel log event and increments a metric counter.

package telemetry

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterRecorderName = "github.com/steveyegge/reap"
	loggerName        = "reap"
)

// recorderInstruments holds all lazy-initialized OTel metric instruments.
type recorderInstruments struct {
	// Counters
	scanTotal      metric.Int64Counter
	candidateTotal metric.Int64Counter
	terminateTotal metric.Int64Counter
	cleanupTotal   metric.Int64Counter

	// Histograms
	terminateDurationHist metric.Float64Histogram
	cleanupDurationHist   metric.Float64Histogram
}

var (
	instOnce sync.Once
	inst     recorderInstruments
)

// initInstruments registers all recorder metric instruments against the current
// global MeterProvider. Must be called after telemetry.Init so the real
// provider is set. Also called lazily on first use.
func initInstruments() {
	instOnce.Do(func() {
		m := otel.GetMeterProvider().Meter(meterRecorderName)

		inst.scanTotal, _ = m.Int64Counter("reap.scan.total",
			metric.WithDescription("Total process table scans"),
		)
		inst.candidateTotal, _ = m.Int64Counter("reap.scan.candidates.total",
			metric.WithDescription("Processes classified as automation browsers"),
		)
		inst.terminateTotal, _ = m.Int64Counter("reap.terminate.total",
			metric.WithDescription("Termination outcomes by disposition"),
		)
		inst.cleanupTotal, _ = m.Int64Counter("reap.cleanup.runs.total",
			metric.WithDescription("Total cleanup runs"),
		)

		inst.terminateDurationHist, _ = m.Float64Histogram("reap.terminate.duration_ms",
			metric.WithDescription("Time from first check to final disposition per process"),
			metric.WithUnit("ms"),
		)
		inst.cleanupDurationHist, _ = m.Float64Histogram("reap.cleanup.duration_ms",
			metric.WithDescription("Cleanup run wall-clock time"),
			metric.WithUnit("ms"),
		)
	})
}

// statusStr returns "ok" or "error" depending on whether err is nil.
func statusStr(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// emit sends an OTel log event with the given body and key-value attributes.
func emit(ctx context.Context, body string, sev otellog.Severity, attrs ...otellog.KeyValue) {
	logger := global.GetLoggerProvider().Logger(loggerName)
	var r otellog.Record
	r.SetBody(otellog.StringValue(body))
	r.SetSeverity(sev)
	r.AddAttributes(attrs...)
	logger.Emit(ctx, r)
}

// errKV returns a log KeyValue with the error message, or empty string if nil.
func errKV(err error) otellog.KeyValue {
	if err != nil {
		return otellog.String("error", err.Error())
	}
	return otellog.String("error", "")
}

// severity returns SeverityInfo on success, SeverityError on failure.
func severity(err error) otellog.Severity {
	if err != nil {
		return otellog.SeverityError
	}
	return otellog.SeverityInfo
}

// maxCommandLog is the maximum number of bytes of a command line captured in logs.
const maxCommandLog = 512

// truncateOutput trims s to max bytes and appends "…" when truncated.
// Avoids splitting multi-byte UTF-8 characters at the boundary.
func truncateOutput(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Walk back from the cut point to avoid splitting a multi-byte rune.
	truncated := s[:max]
	for len(truncated) > 0 && !utf8.ValidString(truncated) {
		truncated = truncated[:len(truncated)-1]
	}
	return truncated + "…"
}

// RecordScan records one process table scan (metrics + log event).
// records is the number enumerated; candidates the number classified positive.
func RecordScan(ctx context.Context, runID string, records, candidates int, err error) {
	initInstruments()
	status := statusStr(err)
	inst.scanTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	inst.candidateTotal.Add(ctx, int64(candidates))
	emit(ctx, "proc.scan", severity(err),
		otellog.String("run_id", runID),
		otellog.Int64("records", int64(records)),
		otellog.Int64("candidates", int64(candidates)),
		otellog.String("status", status),
		errKV(err),
	)
}

// Termination describes one acted-on process for RecordTermination.
type Termination struct {
	RunID       string
	PID         int
	Name        string
	Command     string
	Indicators  []string
	Disposition string
	Signals     []string
	Message     string
	Elapsed     time.Duration
	Failed      bool
}

// RecordTermination records the outcome for one process (metrics + log event).
func RecordTermination(ctx context.Context, t Termination) {
	initInstruments()
	attrs := metric.WithAttributes(attribute.String("disposition", t.Disposition))
	inst.terminateTotal.Add(ctx, 1, attrs)
	inst.terminateDurationHist.Record(ctx, float64(t.Elapsed.Milliseconds()), attrs)

	sev := otellog.SeverityInfo
	if t.Failed {
		sev = otellog.SeverityWarn
	}
	emit(ctx, "proc.terminate", sev,
		otellog.String("run_id", t.RunID),
		otellog.Int64("pid", int64(t.PID)),
		otellog.String("name", t.Name),
		otellog.String("command", truncateOutput(t.Command, maxCommandLog)),
		otellog.String("indicators", strings.Join(t.Indicators, ",")),
		otellog.String("disposition", t.Disposition),
		otellog.String("signals", strings.Join(t.Signals, ",")),
		otellog.String("message", t.Message),
		otellog.Int64("elapsed_ms", t.Elapsed.Milliseconds()),
	)
}

// CleanupSummary is the aggregate for RecordCleanup.
type CleanupSummary struct {
	RunID       string
	DryRun      bool
	Forced      bool
	Considered  int
	Terminated  int
	AlreadyGone int
	Failed      int
	Abandoned   int
	Duration    time.Duration
}

// RecordCleanup records a finished cleanup run (metrics + log event).
func RecordCleanup(ctx context.Context, s CleanupSummary, err error) {
	initInstruments()
	status := statusStr(err)
	attrs := metric.WithAttributes(
		attribute.String("status", status),
		attribute.Bool("dry_run", s.DryRun),
	)
	inst.cleanupTotal.Add(ctx, 1, attrs)
	inst.cleanupDurationHist.Record(ctx, float64(s.Duration.Milliseconds()), attrs)
	emit(ctx, "cleanup.run", severity(err),
		otellog.String("run_id", s.RunID),
		otellog.Bool("dry_run", s.DryRun),
		otellog.Bool("forced", s.Forced),
		otellog.Int64("considered", int64(s.Considered)),
		otellog.Int64("terminated", int64(s.Terminated)),
		otellog.Int64("already_gone", int64(s.AlreadyGone)),
		otellog.Int64("failed", int64(s.Failed)),
		otellog.Int64("abandoned", int64(s.Abandoned)),
		otellog.Int64("duration_ms", s.Duration.Milliseconds()),
		otellog.String("status", status),
		errKV(err),
	)
}
