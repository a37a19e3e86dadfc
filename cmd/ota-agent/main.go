package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/ota-agent/internal/config"
	"github.com/open-edge-platform/ota-agent/internal/utils/logger"
)

var (
	cfgFile  string
	verbose  bool
	agentCfg *config.AgentConfig
)

func main() {
	if err := createRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// createRootCommand creates the ota-agent root command
func createRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ota-agent",
		Short: "Over-the-air update agent for edge devices",
		Long: `ota-agent polls the update server for a manifest describing file and
firmware changes, downloads and integrity-checks the payloads, and commits
them to persistent storage with a backup/rollback discipline.`,
		PersistentPreRunE: setup,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/flash/ota-agent.yml",
		"Path of the agent configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.AddCommand(createUpdateCommand())
	rootCmd.AddCommand(createNetconfigCommand())
	return rootCmd
}

// setup loads the configuration and installs the logger before any
// subcommand runs.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	z, err := logger.New(level)
	if err != nil {
		return fmt.Errorf("setting up logging: %w", err)
	}
	logger.Init(z)

	agentCfg = cfg
	return nil
}
