// Package commands implements the graft CLI.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/graftwork/graft/pkg/config"
	"github.com/graftwork/graft/pkg/logsetup"
)

var (
	// Global flags
	configPath   string
	consoleLevel string
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "graft",
		Short: "Graft - cloud instance payload orchestrator",
		Long: `Graft specializes freshly booted cloud instances: it acquires the
payloads named in the instance configuration and deploys each one by
running its declared step list.

A payload is any directory with a .graft/ subdirectory describing its
deployment: YAML or JSON step files, Starlark programs, or plain
executables. Acquisition methods and deployment handlers are plugins;
the builtins cover git, sftp, http and local sources, shell and argv
commands, and system packages.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file path (default /etc/graft.ini)")
	rootCmd.PersistentFlags().StringVar(&consoleLevel, "console", "", "console log level override")

	rootCmd.AddCommand(newRunCommand(version))
	rootCmd.AddCommand(newAcquireCommand())
	rootCmd.AddCommand(newDeployCommand())
	rootCmd.AddCommand(newPayloadsCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newDevCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}

// loadConfig loads the configuration file and configures logging from
// it. Every subcommand that reads the instance configuration starts
// here.
func loadConfig() (*config.Config, error) {
	if consoleLevel != "" {
		os.Setenv(logsetup.ConsoleEnv, consoleLevel)
	}
	cfg := config.New()
	if err := cfg.Load(configPath); err != nil {
		return nil, err
	}
	if err := logsetup.Configure(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
