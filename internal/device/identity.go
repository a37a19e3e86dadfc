package device

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/open-edge-platform/ota-agent/internal/config"
)

// Firmware variants a device can report in a manifest request.
const (
	FirmwareDefault = "pybytes"
	FirmwareMesh    = "pymesh"
	FirmwareGateway = "pygate"
)

// Identity is the read-only device identity the update protocol needs
// when composing a manifest request.
type Identity interface {
	// UniqueID is the device's hardware id (MAC) as lowercase hex.
	UniqueID() string
	SysName() string
	Release() string
	// FirmwareType reports the variant the running firmware was built
	// as, one of the Firmware* constants.
	FirmwareType() string
	// OTASlot is the flash region selector the next firmware image
	// targets.
	OTASlot() int
}

// StaticIdentity is an Identity backed by the agent configuration, with
// the sysname/release optionally filled in from an os-release style
// file on the device.
type StaticIdentity struct {
	ID       string
	Name     string
	Version  string
	Firmware string
	Slot     int
}

var _ Identity = (*StaticIdentity)(nil)

func (s *StaticIdentity) UniqueID() string { return s.ID }
func (s *StaticIdentity) SysName() string  { return s.Name }
func (s *StaticIdentity) Release() string  { return s.Version }
func (s *StaticIdentity) OTASlot() int     { return s.Slot }

func (s *StaticIdentity) FirmwareType() string {
	if s.Firmware == "" {
		return FirmwareDefault
	}
	return s.Firmware
}

// OsReleaseFile is consulted for the running release when the
// configuration does not pin one. Overridable for tests.
var OsReleaseFile = "/etc/os-release"

// FromConfig builds the device identity from the agent configuration.
// A missing MAC is replaced by a generated id persisted at idPath, so
// the device keeps a stable identity across update attempts.
func FromConfig(cfg *config.AgentConfig, idPath string) (*StaticIdentity, error) {
	id := strings.ToLower(cfg.Device.MAC)
	if id == "" {
		generated, err := EnsureDeviceID(idPath)
		if err != nil {
			return nil, fmt.Errorf("resolving device id: %w", err)
		}
		id = generated
	}

	release := cfg.Device.Release
	if release == "" {
		if v, err := releaseFromOsRelease(); err == nil && v != "" {
			release = v
		}
	}

	return &StaticIdentity{
		ID:       id,
		Name:     cfg.Device.SysName,
		Version:  release,
		Firmware: cfg.Device.FirmwareType,
		Slot:     cfg.Device.OTASlot,
	}, nil
}

// EnsureDeviceID returns the persisted device id at path, generating
// and storing a fresh one on first use.
func EnsureDeviceID(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(data))
		if id != "" {
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("reading device id %s: %w", path, err)
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := os.WriteFile(path, []byte(id+"\n"), 0644); err != nil {
		return "", fmt.Errorf("persisting device id %s: %w", path, err)
	}
	return id, nil
}

func releaseFromOsRelease() (string, error) {
	file, err := os.Open(OsReleaseFile)
	if err != nil {
		return "", err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "VERSION_ID=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				return strings.Trim(strings.TrimSpace(parts[1]), "\""), nil
			}
		}
	}
	return "", scanner.Err()
}
