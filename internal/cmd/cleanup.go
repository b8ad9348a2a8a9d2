package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steveyegge/reap/internal/cleanup"
	"github.com/steveyegge/reap/internal/exitcode"
	"github.com/steveyegge/reap/internal/output"
	"github.com/steveyegge/reap/internal/proctable"
	"github.com/steveyegge/reap/internal/style"
	"github.com/steveyegge/reap/internal/terminate"
)

var cleanupCmd = &cobra.Command{
	Use:     "cleanup",
	GroupID: GroupCleanup,
	Short:   "Terminate orphaned automation browsers",
	Long: `Terminate every browser process classified as automation.

Each process gets SIGTERM and the graceful timeout to exit, then SIGKILL.
With --forced, SIGKILL is sent straight away. Processes that exit on their
own, or whose PID was reused, are reported as already gone. A failure on
one process never stops the others, and the command exits 0 once the run
completes.

Examples:
  reap cleanup                 # Confirm, then terminate
  reap cleanup --dry-run       # Show what would be terminated
  reap cleanup --yes --json    # Unattended, machine-readable
  reap cleanup --pid 4242      # Only this process, if it qualifies
  reap cleanup --forced        # Skip the graceful signal`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

var (
	cleanupDryRun  bool
	cleanupForced  bool
	cleanupTimeout float64
	cleanupPIDs    []int
	cleanupYes     bool
	cleanupJSON    bool
)

const cleanupCommandWidth = 80

func init() {
	cleanupCmd.Flags().BoolVarP(&cleanupDryRun, "dry-run", "n", false, "List what would be terminated without signalling")
	cleanupCmd.Flags().BoolVar(&cleanupForced, "forced", false, "Send SIGKILL without a graceful SIGTERM first")
	cleanupCmd.Flags().Float64Var(&cleanupTimeout, "timeout", 0, "Seconds to wait after SIGTERM (default from config)")
	cleanupCmd.Flags().IntSliceVar(&cleanupPIDs, "pid", nil, "Restrict the run to these PIDs (repeatable)")
	cleanupCmd.Flags().BoolVarP(&cleanupYes, "yes", "y", false, "Do not ask for confirmation")
	cleanupCmd.Flags().BoolVar(&cleanupJSON, "json", false, "Output the report as JSON")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("timeout") {
		if cleanupTimeout <= 0 {
			return exitcode.Newf(exitcode.ErrUsage, "--timeout must be positive, got %v", cleanupTimeout)
		}
		cfg.GracefulTimeout = cleanupTimeout
	}

	table, err := openProcessTable()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o := cleanup.New(cfg, table, newSignaler(table))
	opts := cleanup.RunOptions{DryRun: cleanupDryRun, Forced: cleanupForced, PIDs: cleanupPIDs}
	out := cmd.OutOrStdout()

	if !opts.DryRun && !cleanupYes && !cleanupJSON && interactive() {
		preview, err := o.Run(ctx, cleanup.RunOptions{DryRun: true, PIDs: opts.PIDs})
		if err != nil {
			return runError(out, err)
		}
		if preview.Disabled || len(preview.Affected) == 0 {
			printReport(out, preview)
			return nil
		}
		printAffected(out, preview)
		if !confirm(cmd.InOrStdin(), out, len(preview.Affected)) {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
	}

	report, err := o.Run(ctx, opts)
	if err != nil {
		return runError(out, err)
	}
	if cleanupJSON {
		return output.WriteJSON(out, report)
	}
	printReport(out, report)
	return nil
}

// runError maps a failed run to its exit status. An interrupt before any
// signal was sent leaves nothing half done, so it is not an error.
func runError(out io.Writer, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(out, "%s Interrupted before any process was signalled\n", style.WarningPrefix)
		return nil
	case errors.Is(err, cleanup.ErrBusy):
		return exitcode.Busy("cleanup")
	case errors.Is(err, proctable.ErrUnavailable):
		return exitcode.Unavailable(err)
	}
	return exitcode.Wrap(exitcode.ErrInternal, "cleanup failed", err)
}

func confirm(in io.Reader, out io.Writer, n int) bool {
	fmt.Fprintf(out, "Terminate these %d process(es)? [y/N] ", n)
	response, _ := bufio.NewReader(in).ReadString('\n')
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

func printAffected(out io.Writer, report *cleanup.Report) {
	verb := "Found"
	if report.DryRun {
		verb = "Would terminate"
	}
	fmt.Fprintf(out, "%s %s %d automation browser process(es):\n\n", style.WarningPrefix, verb, len(report.Affected))
	for _, c := range report.Affected {
		fmt.Fprintf(out, "  %s %s  %s\n    %s\n",
			style.Bold.Render(fmt.Sprintf("PID %d", c.Record.PID)),
			c.Record.Name,
			style.Dim.Render("["+strings.Join(c.Result.IndicatorNames(), ", ")+"]"),
			style.Dim.Render(c.Record.DisplayCommand(cleanupCommandWidth)))
	}
	fmt.Fprintln(out)
}

func printReport(out io.Writer, report *cleanup.Report) {
	switch {
	case report.Disabled:
		fmt.Fprintf(out, "%s Cleanup disabled by configuration (enabled = false)\n", style.SkipPrefix)
		return
	case len(report.Affected) == 0:
		fmt.Fprintf(out, "%s No orphaned automation browsers found\n", style.SuccessPrefix)
		return
	case report.DryRun:
		printAffected(out, report)
		fmt.Fprintf(out, "%s\n", style.Dim.Render("Dry run: no signals sent"))
		return
	}

	for i, o := range report.Outcomes {
		c := report.Affected[i]
		line := fmt.Sprintf("  %s PID %d %s: %s", dispositionPrefix(o.Disposition), o.PID, o.Name, o.Disposition)
		if len(o.Signals) > 0 {
			line += " " + style.Dim.Render("("+strings.Join(o.Signals, " → ")+")")
		}
		fmt.Fprintln(out, line)
		fmt.Fprintf(out, "      %s\n", style.Dim.Render(
			"["+strings.Join(c.Result.IndicatorNames(), ", ")+"] "+c.Record.DisplayCommand(cleanupCommandWidth)))
		if o.Message != "" && o.Disposition != terminate.DispositionTerminatedGracefully {
			fmt.Fprintf(out, "      %s\n", style.Dim.Render(o.Message))
		}
	}

	s := report.Stats
	fmt.Fprintf(out, "\n%s %d terminated (%d graceful, %d forced), %d already gone, %d failed",
		style.Bold.Render("Summary:"), s.Terminated, s.TerminatedGracefully, s.TerminatedForcibly, s.AlreadyGone, s.Failed)
	if s.Abandoned > 0 {
		fmt.Fprintf(out, ", %s", style.Warning.Render(fmt.Sprintf("%d abandoned", s.Abandoned)))
	}
	fmt.Fprintf(out, " %s\n", style.Dim.Render(fmt.Sprintf("in %s", report.Duration.Round(time.Millisecond))))
	if s.FailedPermission > 0 {
		fmt.Fprintf(out, "%s %s\n", style.WarningPrefix, style.Warning.Render(fmt.Sprintf(
			"%d process(es) belong to another user; rerun with sufficient privileges", s.FailedPermission)))
	}
}

func dispositionPrefix(d terminate.Disposition) string {
	switch {
	case d.Succeeded() && d != terminate.DispositionAlreadyGone:
		return style.SuccessPrefix
	case d == terminate.DispositionAlreadyGone:
		return style.SkipPrefix
	case d.Failed():
		return style.ErrorPrefix
	}
	return style.WarningPrefix
}
