package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/steveyegge/reap/internal/config"
	"github.com/steveyegge/reap/internal/exitcode"
	"github.com/steveyegge/reap/internal/output"
	"github.com/steveyegge/reap/internal/style"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: GroupConfig,
	Short:   "Manage reap configuration",
	RunE:    requireSubcommand,
	Long: `Manage reap configuration.

Settings come from a TOML file, overridden by REAP_* environment
variables (for example REAP_GRACEFUL_TIMEOUT=5).

Commands:
  reap config show       Print the effective configuration
  reap config init       Write the default configuration file`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration reap would run with, after defaults, the
config file, and environment overrides are applied.

Examples:
  reap config show
  reap config show --json`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	Long: `Write the built-in defaults to the config file so they can be edited.

An existing file is left alone unless --force is given.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var (
	configShowJSON  bool
	configInitForce bool
)

func init() {
	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "Output as JSON")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if configShowJSON {
		return output.WriteJSON(cmd.OutOrStdout(), cfg)
	}
	data, err := config.Encode(cfg)
	if err != nil {
		return exitcode.Wrap(exitcode.ErrInternal, "encoding config", err)
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	if err := config.WriteDefault(configFs, path, configInitForce); err != nil {
		if errors.Is(err, os.ErrExist) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Use --force to overwrite it.")
			return exitcode.AlreadyExists(path)
		}
		return exitcode.Wrap(exitcode.ErrGeneral, "writing config", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Wrote default config to %s\n", style.SuccessPrefix, path)
	return nil
}
