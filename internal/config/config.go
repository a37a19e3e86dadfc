package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AgentConfig is the top-level configuration for the OTA agent, loaded
// from a YAML file on the device.
type AgentConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Device   DeviceConfig   `yaml:"device"`
	Download DownloadConfig `yaml:"download"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig identifies the update server the agent polls for
// manifests. Port 443 selects TLS on the raw transport.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// ConfigURL is the base URL of the device configuration service
	// used by the network-config merge path.
	ConfigURL string `yaml:"config_url"`
}

// DeviceConfig holds the static parts of the device identity and the
// paths of the persisted state the agent owns.
type DeviceConfig struct {
	SysName      string `yaml:"sysname"`
	Release      string `yaml:"release"`
	FirmwareType string `yaml:"fwtype"`
	OTASlot      int    `yaml:"ota_slot"`

	// IDPath stores the generated device id when no hardware MAC is
	// configured. ConfigPath is the persisted device configuration
	// document the netconfig merge writes back to.
	MAC        string `yaml:"mac"`
	IDPath     string `yaml:"id_path"`
	ConfigPath string `yaml:"config_path"`

	// FirmwareSlotPath is where the file-backed flash session commits
	// firmware images when no hardware flash primitive is wired in.
	FirmwareSlotPath string `yaml:"firmware_slot_path"`
}

// DownloadConfig tunes the streaming download engine.
type DownloadConfig struct {
	// ChunkSize bounds the bytes held in memory per transport read.
	// The protocol reference uses 50; anything below that is raised to
	// the floor.
	ChunkSize int  `yaml:"chunk_size"`
	Progress  bool `yaml:"progress"`
}

// LoggingConfig controls the agent's log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

const (
	defaultPort      = 443
	defaultChunkSize = 512
	minChunkSize     = 50
)

// Load reads and validates an agent configuration file.
func Load(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a configuration with all tunables at their defaults.
// The server host and device identity still have to come from the file.
func Default() *AgentConfig {
	return &AgentConfig{
		Server:   ServerConfig{Port: defaultPort},
		Download: DownloadConfig{ChunkSize: defaultChunkSize},
		Logging:  LoggingConfig{Level: "info"},
	}
}

// Validate checks the loaded configuration and normalizes tunables.
func (c *AgentConfig) Validate() error {
	if c.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Device.SysName == "" {
		return fmt.Errorf("device.sysname is required")
	}
	if c.Download.ChunkSize < minChunkSize {
		c.Download.ChunkSize = minChunkSize
	}
	return nil
}
