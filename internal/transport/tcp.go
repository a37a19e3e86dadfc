package transport

import (
	"fmt"
	"io"
	"net"
)

// TCPTransport is the plain TCP byte stream.
type TCPTransport struct {
	conn net.Conn
}

var _ Transport = (*TCPTransport)(nil)

// Connect dials the target.
func (t *TCPTransport) Connect(target Target) error {
	conn, err := net.Dial("tcp", target.Addr())
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", target.Addr(), err)
	}
	t.conn = conn
	return nil
}

// Send writes the whole buffer to the stream.
func (t *TCPTransport) Send(p []byte) error {
	if t.conn == nil {
		return fmt.Errorf("transport not connected")
	}
	if _, err := t.conn.Write(p); err != nil {
		return fmt.Errorf("sending %d bytes: %w", len(p), err)
	}
	return nil
}

// Receive reads up to maxLen bytes from the stream.
func (t *TCPTransport) Receive(maxLen int) ([]byte, error) {
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

// Close closes the underlying connection. Safe to call when the dial
// never happened.
func (t *TCPTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
