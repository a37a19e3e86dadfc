package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Helpers provides convenient access to derived configuration values.
type Helpers struct {
	config *AgentConfig
}

// NewHelpers creates a new config helpers instance.
func NewHelpers(config *AgentConfig) *Helpers {
	return &Helpers{config: config}
}

// DeviceConfigPath returns the absolute path of the persisted device
// configuration document.
func (h *Helpers) DeviceConfigPath() (string, error) {
	if h.config.Device.ConfigPath == "" {
		return "", fmt.Errorf("device.config_path not configured")
	}
	return filepath.Abs(h.config.Device.ConfigPath)
}

// DeviceIDPath returns the path holding the generated device id,
// defaulting to a sibling of the device config document.
func (h *Helpers) DeviceIDPath() string {
	if h.config.Device.IDPath != "" {
		return h.config.Device.IDPath
	}
	return filepath.Join(filepath.Dir(h.config.Device.ConfigPath), "device_id")
}

// LogLevel returns the configured log level.
func (h *Helpers) LogLevel() string {
	return h.config.Logging.Level
}

// IsDebugMode returns true if debug logging is enabled.
func (h *Helpers) IsDebugMode() bool {
	return h.config.Logging.Level == "debug"
}

// CreateStateDir ensures the directory holding the persisted device
// state exists.
func (h *Helpers) CreateStateDir() error {
	p, err := h.DeviceConfigPath()
	if err != nil {
		return err
	}
	return createDirIfNotExists(filepath.Dir(p))
}

func createDirIfNotExists(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
