// Package cmd provides CLI commands for the reap tool.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/steveyegge/reap/internal/config"
	"github.com/steveyegge/reap/internal/debug"
	"github.com/steveyegge/reap/internal/exitcode"
	"github.com/steveyegge/reap/internal/proctable"
	"github.com/steveyegge/reap/internal/style"
	"github.com/steveyegge/reap/internal/telemetry"
	"github.com/steveyegge/reap/internal/terminate"
	"github.com/steveyegge/reap/internal/ui"
)

var rootCmd = &cobra.Command{
	Use:     "reap",
	Short:   "Terminate orphaned automation browsers",
	Version: Version,
	Long: `reap finds headless and automation-driven Chrome/Chromium processes
left behind by crashed test runs and scrapers, and terminates them.

A browser is only touched when its command line or parent shows it was
started by automation: a remote debugging port, an automation flag, a
throwaway profile under a temp directory, or a Python launcher parent.
Everyday browser windows are never selected.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initTelemetry,
}

var (
	configPath string

	telemetryProvider *telemetry.Provider
)

// Seams replaced in tests.
var (
	configFs    afero.Fs = afero.NewOsFs()
	openTable            = proctable.NewSystemTable
	newSignaler          = terminate.NewSystemSignaler
	interactive          = ui.IsInteractive
)

// Command group IDs - used by subcommands to organize help output
const (
	GroupCleanup = "cleanup"
	GroupConfig  = "config"
	GroupDiag    = "diag"
)

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: GroupCleanup, Title: "Cleanup:"},
		&cobra.Group{ID: GroupConfig, Title: "Configuration:"},
		&cobra.Group{ID: GroupDiag, Title: "Diagnostics:"},
	)
	rootCmd.SetHelpCommandGroupID(GroupDiag)
	rootCmd.SetCompletionCommandGroupID(GroupConfig)

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $XDG_CONFIG_HOME/reap/config.toml)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return exitcode.Wrapf(exitcode.ErrUsage, err, "%s", buildCommandPath(cmd))
	})
}

// Execute runs the root command and returns an exit code.
// The caller (main) should call os.Exit with this code.
func Execute() int {
	return run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	defer debug.Close()
	defer shutdownTelemetry()

	rootCmd.SetArgs(args)
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "%s %v\n", style.ErrorPrefix, err)
		code := exitcode.Code(err)
		if code == exitcode.ErrGeneral && isUsageError(err) {
			code = exitcode.ErrUsage
		}
		return code
	}
	return exitcode.Success
}

// isUsageError recognises cobra's own argument and command errors.
func isUsageError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "requires a subcommand") ||
		strings.Contains(msg, "arg(s)")
}

func initTelemetry(cmd *cobra.Command, _ []string) error {
	p, err := telemetry.Init(cmd.Context(), "reap", Version)
	if err != nil {
		// Best-effort: a broken collector must not block cleanup.
		debug.Log("telemetry", "init failed: %v", err)
		return nil
	}
	telemetryProvider = p
	return nil
}

func shutdownTelemetry() {
	if telemetryProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := telemetryProvider.Shutdown(ctx); err != nil {
		debug.Log("telemetry", "shutdown: %v", err)
	}
}

// loadConfig reads the configuration named by --config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configFs, configPath)
	switch {
	case err == nil:
		return cfg, nil
	case errors.Is(err, config.ErrNotFound):
		return config.Config{}, exitcode.FileNotFound(configPath)
	}
	return config.Config{}, exitcode.Wrap(exitcode.ErrUsage, "loading config", err)
}

// openProcessTable opens the live process table.
func openProcessTable() (proctable.Table, error) {
	table, err := openTable()
	if err != nil {
		return nil, exitcode.Unavailable(err)
	}
	return table, nil
}

// buildCommandPath walks the command hierarchy to build the full command path.
// For example: "reap config show".
func buildCommandPath(cmd *cobra.Command) string {
	var parts []string
	for c := cmd; c != nil; c = c.Parent() {
		parts = append([]string{c.Name()}, parts...)
	}
	return strings.Join(parts, " ")
}

// requireSubcommand returns a RunE function for parent commands that require
// a subcommand. Without this, Cobra silently shows help and exits 0 for
// unknown subcommands like "reap config foobar", masking errors.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return exitcode.Newf(exitcode.ErrUsage, "requires a subcommand\n\nRun '%s --help' for usage", buildCommandPath(cmd))
	}
	return exitcode.Newf(exitcode.ErrUsage, "unknown command %q for %q\n\nRun '%s --help' for available commands",
		args[0], buildCommandPath(cmd), buildCommandPath(cmd))
}
