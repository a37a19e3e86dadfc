package manifest

import (
	"errors"
	"unicode/utf8"

	"github.com/open-edge-platform/ota-agent/internal/device"
	"github.com/open-edge-platform/ota-agent/internal/download"
	"github.com/open-edge-platform/ota-agent/internal/transport"
)

var errNotText = errors.New("response body is not valid UTF-8 text")

// BodyFetcher retrieves a small protocol document from the update
// server. *download.Client satisfies it.
type BodyFetcher interface {
	FetchBody(target transport.Target, path string) ([]byte, error)
}

var _ BodyFetcher = (*download.Client)(nil)

// Fetcher retrieves and decodes the update manifest for one device.
type Fetcher struct {
	Target   transport.Target
	Client   BodyFetcher
	Identity device.Identity
}

// Fetch requests the manifest and parses it. A nil result with no
// error means no update is available.
func (f *Fetcher) Fetch(fwtype, token string) (*Manifest, error) {
	req := BuildRequest(f.Identity, fwtype, token)
	body, err := f.Client.FetchBody(f.Target, req)
	if err != nil {
		return nil, &Error{Err: err}
	}
	if !utf8.Valid(body) {
		return nil, &Error{Err: errNotText}
	}
	return Parse(body)
}
