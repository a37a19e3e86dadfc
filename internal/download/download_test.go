package download

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/open-edge-platform/ota-agent/internal/transport"
)

// mockTransport replays scripted receive chunks, ignoring maxLen so
// tests control exactly how the response is fragmented.
type mockTransport struct {
	chunks     [][]byte
	pos        int
	connectErr error
	recvErrAt  int // chunk index that fails, -1 for none
	recvErr    error

	connected bool
	closed    bool
	sent      []byte
}

func newMockTransport(chunks ...[]byte) *mockTransport {
	return &mockTransport{chunks: chunks, recvErrAt: -1}
}

func (m *mockTransport) Connect(target transport.Target) error {
	if m.connectErr != nil {
		return m.connectErr
	}
	m.connected = true
	return nil
}

func (m *mockTransport) Send(p []byte) error {
	m.sent = append(m.sent, p...)
	return nil
}

func (m *mockTransport) Receive(maxLen int) ([]byte, error) {
	if m.pos == m.recvErrAt {
		return nil, m.recvErr
	}
	if m.pos >= len(m.chunks) {
		return nil, io.EOF
	}
	chunk := m.chunks[m.pos]
	m.pos++
	return chunk, nil
}

func (m *mockTransport) Close() error {
	m.closed = true
	return nil
}

// chunked splits a full HTTP response into n-byte receive chunks.
func chunked(resp []byte, n int) [][]byte {
	var chunks [][]byte
	for len(resp) > 0 {
		if len(resp) < n {
			n = len(resp)
		}
		chunks = append(chunks, resp[:n])
		resp = resp[n:]
	}
	return chunks
}

func httpResponse(body string) []byte {
	return []byte("HTTP/1.0 200 OK\r\nContent-Type: application/octet-stream\r\n\r\n" + body)
}

func sha1hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

var testTarget = transport.Target{Host: "updates.example.com", Port: 443}

func TestGetBufferSink(t *testing.T) {
	body := "payload bytes"
	mt := newMockTransport(chunked(httpResponse(body), 50)...)

	res, err := Get(mt, testTarget, "files/a.txt", Options{Hash: true})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(res.Body) != body {
		t.Errorf("body = %q, want %q", res.Body, body)
	}
	if res.Digest != sha1hex(body) {
		t.Errorf("digest = %s, want %s", res.Digest, sha1hex(body))
	}
	if !mt.closed {
		t.Error("transport not closed after success")
	}
}

func TestGetRequestLine(t *testing.T) {
	mt := newMockTransport(chunked(httpResponse(""), 50)...)
	if _, err := Get(mt, testTarget, "files/a.txt", Options{}); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := "GET /files/a.txt HTTP/1.0\r\nHost: updates.example.com:443\r\n\r\n"
	if string(mt.sent) != want {
		t.Errorf("request = %q, want %q", mt.sent, want)
	}
}

func TestGetHeaderDelimiterStraddlesChunks(t *testing.T) {
	body := "after the split"
	resp := httpResponse(body)

	// Fragment the response at every possible boundary so the blank
	// line lands across chunks in several of the runs.
	for n := 1; n <= 7; n++ {
		t.Run(fmt.Sprintf("chunk_size_%d", n), func(t *testing.T) {
			mt := newMockTransport(chunked(resp, n)...)
			res, err := Get(mt, testTarget, "x", Options{})
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(res.Body) != body {
				t.Errorf("body = %q, want %q", res.Body, body)
			}
		})
	}
}

func TestGetFileSink(t *testing.T) {
	body := "file payload"
	dest := filepath.Join(t.TempDir(), "a.txt.new")
	mt := newMockTransport(chunked(httpResponse(body), 5)...)

	res, err := Get(mt, testTarget, "files/a.txt", Options{DestPath: dest, Hash: true})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if res.Body != nil {
		t.Errorf("expected no in-memory body with a file sink, got %q", res.Body)
	}
	if res.Digest != sha1hex(body) {
		t.Errorf("digest = %s, want %s", res.Digest, sha1hex(body))
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading dest: %v", err)
	}
	if string(data) != body {
		t.Errorf("dest content = %q, want %q", data, body)
	}
}

// fakeSession records the flash write lifecycle.
type fakeSession struct {
	started  bool
	finished bool
	writeErr error
	data     bytes.Buffer
}

func (s *fakeSession) Start() error { s.started = true; return nil }
func (s *fakeSession) Write(p []byte) (int, error) {
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	return s.data.Write(p)
}
func (s *fakeSession) Finish() error { s.finished = true; return nil }

func TestGetFlashSink(t *testing.T) {
	body := "firmware image bytes"
	session := &fakeSession{}
	mt := newMockTransport(chunked(httpResponse(body), 7)...)

	res, err := Get(mt, testTarget, "fw.bin", Options{Flash: session, Hash: true})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !session.started || !session.finished {
		t.Errorf("session lifecycle: started=%v finished=%v", session.started, session.finished)
	}
	if session.data.String() != body {
		t.Errorf("flashed %q, want %q", session.data.String(), body)
	}
	if res.Digest != sha1hex(body) {
		t.Errorf("digest = %s, want %s", res.Digest, sha1hex(body))
	}
}

func TestGetConflictingSinks(t *testing.T) {
	mt := newMockTransport()
	_, err := Get(mt, testTarget, "x", Options{DestPath: "/tmp/x", Flash: &fakeSession{}})
	if !errors.Is(err, ErrConflictingSinks) {
		t.Fatalf("expected ErrConflictingSinks, got %v", err)
	}
	if mt.connected {
		t.Error("no connection should be made for an invalid sink combination")
	}
}

func TestGetReceiveFailureMidStream(t *testing.T) {
	body := "partial body that never finishes"
	mt := newMockTransport(chunked(httpResponse(body), 10)...)
	mt.recvErrAt = 2
	mt.recvErr = errors.New("connection reset")

	res, err := Get(mt, testTarget, "x", Options{Hash: true})
	if err == nil {
		t.Fatal("expected an error")
	}
	var dlErr *Error
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected *download.Error, got %T", err)
	}
	if !strings.Contains(dlErr.Error(), "connection reset") {
		t.Errorf("error should carry the cause, got %v", dlErr)
	}
	if !mt.closed {
		t.Error("transport must be closed on the failure path")
	}
	// The single digest context is still finalized on failure.
	if res.Digest == "" {
		t.Error("digest must be extracted even when the transfer fails")
	}
}

func TestGetSinkWriteFailure(t *testing.T) {
	session := &fakeSession{writeErr: errors.New("flash write rejected")}
	mt := newMockTransport(chunked(httpResponse("some image"), 8)...)

	_, err := Get(mt, testTarget, "fw.bin", Options{Flash: session, Hash: true})
	if err == nil {
		t.Fatal("expected an error")
	}
	if session.finished {
		t.Error("a failed session must not be finalized")
	}
	if !mt.closed {
		t.Error("transport must be closed on the failure path")
	}
}

func TestGetConnectFailure(t *testing.T) {
	mt := newMockTransport()
	mt.connectErr = errors.New("connection refused")
	_, err := Get(mt, testTarget, "x", Options{})
	var dlErr *Error
	if !errors.As(err, &dlErr) {
		t.Fatalf("expected *download.Error, got %v", err)
	}
}

func TestClientFetchFile(t *testing.T) {
	body := "staged content"
	dest := filepath.Join(t.TempDir(), "b.txt.new")
	mt := newMockTransport(chunked(httpResponse(body), 9)...)
	client := &Client{
		NewTransport: func(target transport.Target) transport.Transport {
			if target.Host != "h" || target.Port != 443 {
				t.Errorf("unexpected target %+v", target)
			}
			return mt
		},
	}

	digest, err := client.FetchFile("https://h/files/b.txt", dest)
	if err != nil {
		t.Fatalf("FetchFile failed: %v", err)
	}
	if digest != sha1hex(body) {
		t.Errorf("digest = %s, want %s", digest, sha1hex(body))
	}
	if !strings.HasPrefix(string(mt.sent), "GET /files/b.txt HTTP/1.0\r\n") {
		t.Errorf("unexpected request %q", mt.sent)
	}
}

func TestClientFetchFileBadURL(t *testing.T) {
	client := &Client{}
	if _, err := client.FetchFile("not a url", "/tmp/x"); err == nil {
		t.Fatal("expected an error for an unparsable url")
	}
}

func TestClientFetchBody(t *testing.T) {
	mt := newMockTransport(chunked(httpResponse(`{"ok":1}`), 6)...)
	client := &Client{
		NewTransport: func(transport.Target) transport.Transport { return mt },
	}
	body, err := client.FetchBody(testTarget, "manifest.json?x=1")
	if err != nil {
		t.Fatalf("FetchBody failed: %v", err)
	}
	if string(body) != `{"ok":1}` {
		t.Errorf("body = %q", body)
	}
}

func TestClientFetchFirmware(t *testing.T) {
	body := "image"
	session := &fakeSession{}
	mt := newMockTransport(chunked(httpResponse(body), 4)...)
	client := &Client{
		NewTransport: func(transport.Target) transport.Transport { return mt },
	}

	digest, err := client.FetchFirmware("https://h:8080/fw.bin", session)
	if err != nil {
		t.Fatalf("FetchFirmware failed: %v", err)
	}
	if digest != sha1hex(body) {
		t.Errorf("digest = %s, want %s", digest, sha1hex(body))
	}
	if !session.finished {
		t.Error("session not finalized")
	}
}
