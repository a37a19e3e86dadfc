package netconfig

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/open-edge-platform/ota-agent/internal/utils/logger"
	"github.com/open-edge-platform/ota-agent/internal/utils/network"
)

// Error reports a failed network-config update. The path is
// best-effort: callers log it and carry on, it never aborts an
// in-flight file or firmware update.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("updating network config: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

type response struct {
	NetworkConfig *NetworkConfig `json:"networkConfig"`
}

// NetworkConfig is the server's network section for one device. Each
// field is independently present or absent; an absent field removes
// the matching section from the persisted configuration.
type NetworkConfig struct {
	NetworkPreferences json.RawMessage `json:"networkPreferences"`
	Wifi               json.RawMessage `json:"wifi"`
	Lte                json.RawMessage `json:"lte"`
	Lora               *LoraConfig     `json:"lora"`
}

// LoraConfig carries the LoRa join material, both OTAA and ABP.
type LoraConfig struct {
	Otaa json.RawMessage `json:"otaa"`
	Abp  json.RawMessage `json:"abp"`
}

// Applier fetches the device's network configuration from the server
// and merges it into the persisted configuration document.
type Applier struct {
	// BaseURL of the configuration service, e.g. "https://config.example.com".
	BaseURL string
	// ConfigPath is the persisted JSON configuration document.
	ConfigPath string
	// HTTPClient defaults to the agent's secure client.
	HTTPClient *http.Client
	// Reset requests a device reset once the new configuration is on
	// disk. Optional.
	Reset func()
}

// Apply fetches and merges the network configuration for deviceID and
// writes the document back, then requests a reset. Any returned error
// is informational only.
func (a *Applier) Apply(deviceID string) error {
	log := logger.Logger()

	targetURL := fmt.Sprintf("%s/device/networks/%s", a.BaseURL, deviceID)
	log.Debugf("requesting device network config: %s", targetURL)

	body, err := a.fetch(targetURL)
	if err != nil {
		return &Error{Err: err}
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return &Error{Err: fmt.Errorf("decoding %s: %w", targetURL, err)}
	}
	if resp.NetworkConfig == nil {
		log.Debugf("no network config section for device %s", deviceID)
		return nil
	}

	doc, err := loadDocument(a.ConfigPath)
	if err != nil {
		return &Error{Err: err}
	}
	Merge(doc, resp.NetworkConfig)

	if err := writeDocument(a.ConfigPath, doc); err != nil {
		return &Error{Err: err}
	}
	log.Infof("network config updated, resetting device")

	if a.Reset != nil {
		a.Reset()
	}
	return nil
}

// Merge folds the server's network section into the persisted
// configuration document. WiFi, LTE, and LoRa each replace the stored
// section when present and remove it when absent.
func Merge(doc map[string]json.RawMessage, nc *NetworkConfig) {
	if nc.NetworkPreferences != nil {
		doc["network_preferences"] = nc.NetworkPreferences
	}

	if nc.Wifi != nil {
		doc["wifi"] = nc.Wifi
	} else {
		delete(doc, "wifi")
	}

	if nc.Lte != nil {
		doc["lte"] = nc.Lte
	} else {
		delete(doc, "lte")
	}

	if nc.Lora != nil {
		lora, err := json.Marshal(map[string]json.RawMessage{
			"otaa": nc.Lora.Otaa,
			"abp":  nc.Lora.Abp,
		})
		if err == nil {
			doc["lora"] = lora
		}
	} else {
		delete(doc, "lora")
	}
}

func (a *Applier) fetch(targetURL string) ([]byte, error) {
	client := a.HTTPClient
	if client == nil {
		client = network.NewSecureHTTPClient()
	}

	req, err := http.NewRequest(http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", targetURL, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", targetURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calling %s: status %s", targetURL, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", targetURL, err)
	}
	return body, nil
}

// DeviceID reads the device_id field of the persisted configuration
// document, the id the configuration service scopes its URLs by.
func DeviceID(path string) (string, error) {
	doc, err := loadDocument(path)
	if err != nil {
		return "", err
	}
	raw, ok := doc["device_id"]
	if !ok {
		return "", fmt.Errorf("config document %s has no device_id", path)
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", fmt.Errorf("parsing device_id in %s: %w", path, err)
	}
	return id, nil
}

func loadDocument(path string) (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config document %s: %w", path, err)
	}
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing config document %s: %w", path, err)
	}
	return doc, nil
}

func writeDocument(path string, doc map[string]json.RawMessage) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding config document: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config document %s: %w", path, err)
	}
	return nil
}
