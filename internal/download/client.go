package download

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/open-edge-platform/ota-agent/internal/flash"
	"github.com/open-edge-platform/ota-agent/internal/transport"
)

// Client runs the download engine with the agent's wiring: a transport
// per target, the configured chunk size, and optional progress output
// for long firmware transfers.
type Client struct {
	// NewTransport returns a fresh transport for the target. Defaults
	// to transport.ForTarget.
	NewTransport func(target transport.Target) transport.Transport
	ChunkSize    int
	Progress     bool
}

func (c *Client) transportFor(target transport.Target) transport.Transport {
	if c.NewTransport != nil {
		return c.NewTransport(target)
	}
	return transport.ForTarget(target)
}

// FetchFile downloads rawURL into destPath and returns the hex SHA-1
// digest of the body.
func (c *Client) FetchFile(rawURL, destPath string) (string, error) {
	target, path, err := transport.ParseTarget(rawURL)
	if err != nil {
		return "", &Error{Req: rawURL, Err: err}
	}
	res, err := Get(c.transportFor(target), target, path, Options{
		DestPath:  destPath,
		Hash:      true,
		ChunkSize: c.ChunkSize,
	})
	if err != nil {
		return "", err
	}
	return res.Digest, nil
}

// FetchFirmware streams rawURL into the flash session and returns the
// hex SHA-1 digest of the image. The current manifest format declares
// no expected firmware hash, so callers can only log the digest.
func (c *Client) FetchFirmware(rawURL string, session flash.Session) (string, error) {
	target, path, err := transport.ParseTarget(rawURL)
	if err != nil {
		return "", &Error{Req: rawURL, Err: err}
	}
	res, err := Get(c.transportFor(target), target, path, Options{
		Flash:     session,
		Hash:      true,
		ChunkSize: c.ChunkSize,
		Progress:  c.progressBar(),
	})
	if err != nil {
		return "", err
	}
	return res.Digest, nil
}

// FetchBody downloads path from target into memory, for small protocol
// documents like the manifest.
func (c *Client) FetchBody(target transport.Target, path string) ([]byte, error) {
	res, err := Get(c.transportFor(target), target, path, Options{
		ChunkSize: c.ChunkSize,
	})
	if err != nil {
		return nil, err
	}
	return res.Body, nil
}

func (c *Client) progressBar() io.Writer {
	if !c.Progress {
		return nil
	}
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("flashing firmware"),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
	)
}
