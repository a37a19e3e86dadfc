package transport

import (
	"crypto/tls"
	"fmt"
	"io"
)

// TLSTransport is the TLS byte stream used when the target serves on
// the TLS port.
type TLSTransport struct {
	// Config overrides the default TLS settings. Fleets that pin a
	// private CA on the device set RootCAs here.
	Config *tls.Config

	conn *tls.Conn
}

var _ Transport = (*TLSTransport)(nil)

// NewTLSConfig returns the TLS settings the agent uses for update
// downloads. Callers can reuse this instead of re-defining the TLS
// settings everywhere.
func NewTLSConfig(serverName string) *tls.Config {
	return &tls.Config{
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,

		// CipherSuites applies only to TLS 1.0–1.2
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		},
	}
}

// Connect dials the target and completes the TLS handshake.
func (t *TLSTransport) Connect(target Target) error {
	cfg := t.Config
	if cfg == nil {
		cfg = NewTLSConfig(target.Host)
	}
	conn, err := tls.Dial("tcp", target.Addr(), cfg)
	if err != nil {
		return fmt.Errorf("connecting to %s with TLS: %w", target.Addr(), err)
	}
	t.conn = conn
	return nil
}

// Send writes the whole buffer to the stream.
func (t *TLSTransport) Send(p []byte) error {
	if t.conn == nil {
		return fmt.Errorf("transport not connected")
	}
	if _, err := t.conn.Write(p); err != nil {
		return fmt.Errorf("sending %d bytes: %w", len(p), err)
	}
	return nil
}

// Receive reads up to maxLen bytes from the stream.
func (t *TLSTransport) Receive(maxLen int) ([]byte, error) {
	if t.conn == nil {
		return nil, fmt.Errorf("transport not connected")
	}
	buf := make([]byte, maxLen)
	n, err := t.conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

// Close closes the underlying connection.
func (t *TLSTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
