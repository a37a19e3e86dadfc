package transport

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Transport is the byte-stream abstraction the download engine runs
// over. Concrete implementations own connection establishment (TCP,
// TLS, cellular); the engine only sends and receives bytes.
type Transport interface {
	Connect(target Target) error
	Send(p []byte) error
	// Receive reads up to maxLen bytes. It returns io.EOF once the
	// peer closes the stream.
	Receive(maxLen int) ([]byte, error)
	Close() error
}

// Target is the explicit connection endpoint for one transfer. It is
// always passed in, never stashed on the transport between calls.
type Target struct {
	Host string
	Port int
}

// Addr returns the host:port form used for dialing and the HTTP Host
// header.
func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// TLS reports whether this target uses TLS. The update protocol keys
// this off the port, matching the server deployment.
func (t Target) TLS() bool { return t.Port == 443 }

// ParseTarget splits a download URL into the connection target and the
// request path. A missing port defaults to 443.
func ParseTarget(rawURL string) (Target, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Target{}, "", fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	if u.Host == "" {
		return Target{}, "", fmt.Errorf("url %q has no host", rawURL)
	}

	target := Target{Host: u.Host, Port: 443}
	if host, port, err := net.SplitHostPort(u.Host); err == nil {
		p, err := strconv.Atoi(port)
		if err != nil {
			return Target{}, "", fmt.Errorf("url %q has invalid port: %w", rawURL, err)
		}
		target.Host = host
		target.Port = p
	}

	return target, strings.TrimPrefix(u.Path, "/"), nil
}

// Factory creates an unconnected transport.
type Factory func() Transport

var factories = make(map[string]Factory)

// Register makes a transport Factory available under name.
func Register(name string, f Factory) {
	factories[name] = f
}

// Get returns the transport Factory by name.
func Get(name string) (Factory, bool) {
	f, ok := factories[name]
	return f, ok
}

// ForTarget returns a fresh transport suited to the target: TLS for
// TLS targets, plain TCP otherwise.
func ForTarget(target Target) Transport {
	name := "tcp"
	if target.TLS() {
		name = "tls"
	}
	f, ok := Get(name)
	if !ok {
		// Both built-ins register in this package's init.
		panic(fmt.Sprintf("transport %q not registered", name))
	}
	return f()
}

func init() {
	Register("tcp", func() Transport { return &TCPTransport{} })
	Register("tls", func() Transport { return &TLSTransport{} })
}
