package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/open-edge-platform/ota-agent/internal/config"
	"github.com/open-edge-platform/ota-agent/internal/device"
	"github.com/open-edge-platform/ota-agent/internal/download"
	"github.com/open-edge-platform/ota-agent/internal/flash"
	"github.com/open-edge-platform/ota-agent/internal/manifest"
	"github.com/open-edge-platform/ota-agent/internal/ota"
	"github.com/open-edge-platform/ota-agent/internal/swap"
	"github.com/open-edge-platform/ota-agent/internal/transport"
	"github.com/open-edge-platform/ota-agent/internal/utils/logger"
)

var (
	updateFwtype   string
	updateToken    string
	updateManifest string
)

// createUpdateCommand creates the update subcommand
func createUpdateCommand() *cobra.Command {
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Run one update attempt against the configured server",
		Long: `Update fetches the device's manifest, stages and verifies every file it
names, swaps them into place with backups, retires deleted files, and
streams a firmware image to the flash slot when one is listed.

A local manifest file can be supplied with --manifest to skip the fetch,
which is useful for factory provisioning and offline recovery.`,
		Args: cobra.NoArgs,
		RunE: executeUpdate,
	}

	updateCmd.Flags().StringVar(&updateFwtype, "fwtype", "",
		"Requested firmware type: pymesh, pygate, or empty for the default build")
	updateCmd.Flags().StringVar(&updateToken, "token", "",
		"Access token, required for pymesh manifests")
	updateCmd.Flags().StringVar(&updateManifest, "manifest", "",
		"Path of a local manifest file to apply instead of fetching one")
	return updateCmd
}

// executeUpdate handles the update command logic
func executeUpdate(cmd *cobra.Command, args []string) error {
	log := logger.Logger()
	helpers := config.NewHelpers(agentCfg)

	if err := helpers.CreateStateDir(); err != nil {
		return fmt.Errorf("preparing state directory: %w", err)
	}

	identity, err := device.FromConfig(agentCfg, helpers.DeviceIDPath())
	if err != nil {
		return fmt.Errorf("resolving device identity: %w", err)
	}

	client := &download.Client{
		ChunkSize: agentCfg.Download.ChunkSize,
		Progress:  agentCfg.Download.Progress,
	}
	orch := &ota.Orchestrator{
		Manifests: &manifest.Fetcher{
			Target:   transport.Target{Host: agentCfg.Server.Host, Port: agentCfg.Server.Port},
			Client:   client,
			Identity: identity,
		},
		Swap:     &swap.Manager{DL: client},
		Firmware: client,
		NewSession: func() flash.Session {
			return &flash.FileSession{Path: agentCfg.Device.FirmwareSlotPath}
		},
	}

	var custom *manifest.Manifest
	if updateManifest != "" {
		data, err := os.ReadFile(updateManifest)
		if err != nil {
			return fmt.Errorf("reading local manifest: %w", err)
		}
		custom, err = manifest.Parse(data)
		if err != nil {
			return fmt.Errorf("parsing local manifest: %w", err)
		}
		if custom == nil {
			log.Infof("local manifest %s is empty, nothing to apply", updateManifest)
			return nil
		}
	}

	outcome, err := orch.Update(custom, updateFwtype, updateToken)
	log.Infof("update outcome: %s", outcome)
	if outcome == ota.Failed {
		return fmt.Errorf("update failed: %w", err)
	}
	return nil
}
