package manifest

import (
	"fmt"
	"strings"

	"github.com/open-edge-platform/ota-agent/internal/device"
)

// BuildRequest composes the manifest request path for the device. The
// query layout depends on the requested firmware type:
//
//   - pymesh adds the token, an uppercase MAC, and the device's
//     current firmware type
//   - pygate is the same without the token
//   - anything else sends only version, sysname, MAC, and OTA slot
//
// The exact field order is part of the server protocol and must not
// change.
func BuildRequest(id device.Identity, fwtype, token string) string {
	slot := fmt.Sprintf("%#x", id.OTASlot())

	switch fwtype {
	case device.FirmwareMesh:
		current := device.FirmwareDefault
		if id.FirmwareType() == device.FirmwareMesh {
			current = device.FirmwareMesh
		}
		return fmt.Sprintf(
			"manifest.json?current_ver=%s&sysname=%s&token=%s&ota_slot=%s&wmac=%s&fwtype=%s&current_fwtype=%s",
			id.Release(), id.SysName(), token, slot,
			strings.ToUpper(id.UniqueID()), fwtype, current)

	case device.FirmwareGateway:
		current := device.FirmwareDefault
		if id.FirmwareType() == device.FirmwareGateway {
			current = device.FirmwareGateway
		}
		return fmt.Sprintf(
			"manifest.json?current_ver=%s&sysname=%s&ota_slot=%s&wmac=%s&fwtype=%s&current_fwtype=%s",
			id.Release(), id.SysName(), slot,
			strings.ToUpper(id.UniqueID()), fwtype, current)

	default:
		return fmt.Sprintf(
			"manifest.json?current_ver=%s&sysname=%s&wmac=%s&ota_slot=%s",
			id.Release(), id.SysName(), id.UniqueID(), slot)
	}
}
