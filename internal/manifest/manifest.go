package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// FileEntry describes one file the manifest adds or replaces. DstPath
// is the absolute persisted path; Hash is the expected lowercase hex
// SHA-1 of the content.
type FileEntry struct {
	URL     string `json:"URL"`
	DstPath string `json:"dst_path"`
	Hash    string `json:"hash"`
}

// FirmwareEntry points at a firmware image to flash. The protocol
// declares no expected hash for firmware.
type FirmwareEntry struct {
	URL string `json:"URL"`
}

// Manifest is the server's description of one update: files to add,
// files to replace, paths to delete, and/or a firmware image. A nil
// Manifest means the device is already current.
type Manifest struct {
	New      []FileEntry    `json:"new,omitempty"`
	Update   []FileEntry    `json:"update,omitempty"`
	Delete   []string       `json:"delete,omitempty"`
	Firmware *FirmwareEntry `json:"firmware,omitempty"`
}

// Files returns the combined new+update list, the set every staging
// and commit pass walks.
func (m *Manifest) Files() []FileEntry {
	files := make([]FileEntry, 0, len(m.New)+len(m.Update))
	files = append(files, m.New...)
	files = append(files, m.Update...)
	return files
}

// Error reports a manifest that could not be retrieved or decoded.
// The orchestrator treats it as fatal to the whole update attempt.
type Error struct {
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("reading manifest: %v", e.Err) }
func (e *Error) Unwrap() error { return e.Err }

const schemaJSON = `{
	"type": "object",
	"properties": {
		"new": {"type": "array", "items": {"$ref": "#/$defs/file"}},
		"update": {"type": "array", "items": {"$ref": "#/$defs/file"}},
		"delete": {"type": "array", "items": {"type": "string"}},
		"firmware": {
			"type": "object",
			"required": ["URL"],
			"properties": {"URL": {"type": "string"}}
		}
	},
	"$defs": {
		"file": {
			"type": "object",
			"required": ["URL", "dst_path", "hash"],
			"properties": {
				"URL": {"type": "string"},
				"dst_path": {"type": "string"},
				"hash": {"type": "string"}
			}
		}
	}
}`

var schema = jsonschema.MustCompileString("manifest.json", schemaJSON)

// Parse decodes a manifest response body. A body that is empty or the
// JSON null is the "no update available" signal and yields a nil
// Manifest with no error.
func Parse(body []byte) (*Manifest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var doc interface{}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, &Error{Err: fmt.Errorf("decoding body: %w", err)}
	}
	if doc == nil {
		return nil, nil
	}
	if err := schema.Validate(doc); err != nil {
		return nil, &Error{Err: fmt.Errorf("validating body: %w", err)}
	}

	var m Manifest
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, &Error{Err: fmt.Errorf("decoding body: %w", err)}
	}
	return &m, nil
}
