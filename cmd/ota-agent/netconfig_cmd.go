package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/ota-agent/internal/config"
	"github.com/open-edge-platform/ota-agent/internal/netconfig"
	"github.com/open-edge-platform/ota-agent/internal/utils/logger"
)

// createNetconfigCommand creates the netconfig subcommand
func createNetconfigCommand() *cobra.Command {
	netconfigCmd := &cobra.Command{
		Use:   "netconfig",
		Short: "Refresh the device's network configuration from the server",
		Long: `Netconfig fetches the device-scoped network configuration document and
merges the WiFi, LTE, and LoRa sections into the persisted configuration
file, then requests a device reset. Failures are logged but never fatal.`,
		Args: cobra.NoArgs,
		RunE: executeNetconfig,
	}
	return netconfigCmd
}

// executeNetconfig handles the netconfig command logic
func executeNetconfig(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	helpers := config.NewHelpers(agentCfg)

	if agentCfg.Server.ConfigURL == "" {
		return fmt.Errorf("server.config_url is not configured")
	}
	cfgPath, err := helpers.DeviceConfigPath()
	if err != nil {
		return fmt.Errorf("resolving device config path: %w", err)
	}

	deviceID, err := netconfig.DeviceID(cfgPath)
	if err != nil {
		log.Warnf("skipping network config update: %v", err)
		return nil
	}

	applier := &netconfig.Applier{
		BaseURL:    agentCfg.Server.ConfigURL,
		ConfigPath: cfgPath,
		Reset: func() {
			// The reset primitive is hardware-specific; off-device the
			// operator power-cycles after seeing this.
			log.Infof("device reset requested to apply network config")
		},
	}

	// Best effort: a broken config path must not fail the process the
	// way a broken update would.
	if err := applier.Apply(deviceID); err != nil {
		log.Warnf("%v", err)
	}
	return nil
}
