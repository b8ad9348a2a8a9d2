package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Build metadata, set with -ldflags "-X github.com/steveyegge/reap/internal/cmd.Version=...".
var (
	Version = "dev"
	Commit  = ""
)

var versionCmd = &cobra.Command{
	Use:     "version",
	GroupID: GroupDiag,
	Short:   "Print version information",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if Commit != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "reap version %s (%s)\n", Version, Commit)
			return
		}
		fmt.Fprintf(cmd.OutOrStdout(), "reap version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
