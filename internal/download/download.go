package download

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"

	"github.com/open-edge-platform/ota-agent/internal/flash"
	"github.com/open-edge-platform/ota-agent/internal/transport"
)

// ErrConflictingSinks is returned when a call asks for both a file
// destination and a flash session; one transfer feeds exactly one sink.
var ErrConflictingSinks = errors.New("cannot write firmware to a file")

// Error reports a failed transfer, carrying the request path and the
// underlying cause.
type Error struct {
	Req string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("downloading %s: %v", e.Req, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Options selects the sink and tunables for one transfer.
type Options struct {
	// DestPath, when set, streams the body into a file at that path.
	DestPath string
	// Flash, when set, streams the body into a flash write session.
	Flash flash.Session
	// Hash enables the streaming SHA-1 digest over every body byte.
	Hash bool
	// ChunkSize bounds each transport read. Zero means the default.
	ChunkSize int
	// Progress optionally receives every body byte for display.
	Progress io.Writer
}

// Result carries whatever the caller asked for: the in-memory body
// when no file or flash sink was given, and the hex digest when
// hashing was on.
type Result struct {
	Body   []byte
	Digest string
}

const (
	defaultChunkSize = 512
	headerDelim      = "\r\n\r\n"
)

// Get sends a minimal HTTP/1.0 GET for path over a fresh connection to
// target and streams the response body into the selected sink. The
// response header block up to the first blank line is discarded. The
// transport, the file handle, and the digest are all released on every
// exit path.
func Get(t transport.Transport, target transport.Target, path string, opts Options) (*Result, error) {
	if opts.DestPath != "" && opts.Flash != nil {
		return nil, &Error{Req: path, Err: ErrConflictingSinks}
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	if err := t.Connect(target); err != nil {
		return nil, &Error{Req: path, Err: err}
	}
	defer t.Close()

	req := fmt.Sprintf("GET /%s HTTP/1.0\r\nHost: %s\r\n\r\n", path, target.Addr())
	if err := t.Send([]byte(req)); err != nil {
		return nil, &Error{Req: path, Err: err}
	}

	res := &Result{}

	var h hash.Hash
	if opts.Hash {
		h = sha1.New()
		// Only one digest context exists at a time; extract it before
		// returning so the next transfer can start cleanly even after
		// a failure.
		defer func() { res.Digest = hex.EncodeToString(h.Sum(nil)) }()
	}

	sinks := make([]io.Writer, 0, 3)

	var buf bytes.Buffer
	var fp *os.File
	switch {
	case opts.Flash != nil:
		if err := opts.Flash.Start(); err != nil {
			return res, &Error{Req: path, Err: err}
		}
		sinks = append(sinks, opts.Flash)
	case opts.DestPath != "":
		var err error
		fp, err = os.OpenFile(opts.DestPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			return res, &Error{Req: path, Err: err}
		}
		defer fp.Close()
		sinks = append(sinks, fp)
	default:
		sinks = append(sinks, &buf)
	}
	if h != nil {
		sinks = append(sinks, h)
	}
	if opts.Progress != nil {
		sinks = append(sinks, opts.Progress)
	}
	body := io.MultiWriter(sinks...)

	var split bodySplitter
	for {
		chunk, err := t.Receive(chunkSize)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return res, &Error{Req: path, Err: err}
		}
		if _, err := body.Write(split.body(chunk)); err != nil {
			return res, &Error{Req: path, Err: err}
		}
	}

	if err := t.Close(); err != nil {
		return res, &Error{Req: path, Err: err}
	}
	if fp != nil {
		if err := fp.Close(); err != nil {
			return res, &Error{Req: path, Err: err}
		}
	}
	if opts.Flash != nil {
		if err := opts.Flash.Finish(); err != nil {
			return res, &Error{Req: path, Err: err}
		}
	}

	if opts.DestPath == "" && opts.Flash == nil {
		res.Body = buf.Bytes()
	}
	return res, nil
}

// bodySplitter drops the HTTP header block and yields body bytes. It
// buffers incoming chunks until the blank-line delimiter shows up, so
// a delimiter straddling a chunk boundary is still found.
type bodySplitter struct {
	inBody  bool
	pending []byte
}

func (s *bodySplitter) body(chunk []byte) []byte {
	if s.inBody {
		return chunk
	}
	s.pending = append(s.pending, chunk...)
	if i := bytes.Index(s.pending, []byte(headerDelim)); i >= 0 {
		s.inBody = true
		body := s.pending[i+len(headerDelim):]
		s.pending = nil
		return body
	}
	return nil
}
