package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveyegge/reap/internal/classify"
	"github.com/steveyegge/reap/internal/cleanup"
	"github.com/steveyegge/reap/internal/exitcode"
	"github.com/steveyegge/reap/internal/output"
	"github.com/steveyegge/reap/internal/proctable"
	"github.com/steveyegge/reap/internal/style"
)

var scanCmd = &cobra.Command{
	Use:     "scan",
	GroupID: GroupCleanup,
	Short:   "List browser processes and how they classify",
	Long: `List Chrome/Chromium processes with the automation verdict and the
indicators behind it. Nothing is signalled.

Examples:
  reap scan           # Browser-name matches only
  reap scan --all     # Every process, including non-browsers
  reap scan --json    # Machine-readable classification`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanAll  bool
	scanJSON bool
)

const scanCommandWidth = 60

func init() {
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "Include processes whose name is not a browser")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	table, err := openProcessTable()
	if err != nil {
		return err
	}

	o := cleanup.New(cfg, table, newSignaler(table))
	all, err := o.Scan(cmd.Context())
	if err != nil {
		if errors.Is(err, proctable.ErrUnavailable) {
			return exitcode.Unavailable(err)
		}
		return exitcode.Wrap(exitcode.ErrInternal, "scan failed", err)
	}

	shown := make([]classify.Classified, 0, len(all))
	automation := 0
	for _, c := range all {
		if c.Result.Automation {
			automation++
		}
		if scanAll || c.Result.NameMatched {
			shown = append(shown, c)
		}
	}

	if scanJSON {
		return output.WriteJSON(cmd.OutOrStdout(), shown)
	}

	out := cmd.OutOrStdout()
	if len(shown) == 0 {
		fmt.Fprintf(out, "%s No browser processes found\n", style.SuccessPrefix)
		return nil
	}

	tbl := style.NewTable(
		style.Column{Name: "PID", Width: 7, Align: style.AlignRight},
		style.Column{Name: "PARENT", Width: 14},
		style.Column{Name: "NAME", Width: 16},
		style.Column{Name: "VERDICT", Width: 10},
		style.Column{Name: "INDICATORS", Width: 44},
		style.Column{Name: "COMMAND", Width: scanCommandWidth, Style: style.Dim},
	)
	for _, c := range shown {
		tbl.AddRow(
			strconv.Itoa(c.Record.PID),
			fmt.Sprintf("%s:%d", c.Record.ParentName, c.Record.PPID),
			c.Record.Name,
			verdict(c.Result),
			strings.Join(c.Result.IndicatorNames(), ","),
			c.Record.CommandLine(),
		)
	}
	fmt.Fprint(out, tbl.Render())
	fmt.Fprintf(out, "\n%s %d processes, %d browser matches, %d automation\n",
		style.Bold.Render("Scanned:"), len(all), countNameMatched(all), automation)
	if automation > 0 {
		fmt.Fprintf(out, "%s\n", style.Dim.Render("Use 'reap cleanup' to terminate the automation browsers"))
	}
	return nil
}

func verdict(r classify.Result) string {
	switch {
	case r.Automation:
		return style.Warning.Render("automation")
	case r.NameMatched:
		return "everyday"
	}
	return style.Dim.Render("-")
}

func countNameMatched(all []classify.Classified) int {
	n := 0
	for _, c := range all {
		if c.Result.NameMatched {
			n++
		}
	}
	return n
}
