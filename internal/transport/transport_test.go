package transport

import (
	"testing"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name     string
		rawURL   string
		wantHost string
		wantPort int
		wantPath string
		wantErr  bool
	}{
		{
			name:     "explicit_port",
			rawURL:   "http://updates.example.com:8080/fw/image.bin",
			wantHost: "updates.example.com",
			wantPort: 8080,
			wantPath: "fw/image.bin",
		},
		{
			name:     "default_port_443",
			rawURL:   "https://updates.example.com/fw/image.bin",
			wantHost: "updates.example.com",
			wantPort: 443,
			wantPath: "fw/image.bin",
		},
		{
			name:     "nested_path",
			rawURL:   "https://h/a/b/c.txt",
			wantHost: "h",
			wantPort: 443,
			wantPath: "a/b/c.txt",
		},
		{
			name:     "no_path",
			rawURL:   "https://h",
			wantHost: "h",
			wantPort: 443,
			wantPath: "",
		},
		{
			name:    "no_host",
			rawURL:  "/just/a/path",
			wantErr: true,
		},
		{
			name:    "bad_port",
			rawURL:  "http://h:notaport/x",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, path, err := ParseTarget(tt.rawURL)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTarget(%q) expected error, got target %+v", tt.rawURL, target)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTarget(%q) failed: %v", tt.rawURL, err)
			}
			if target.Host != tt.wantHost || target.Port != tt.wantPort {
				t.Errorf("ParseTarget(%q) = %+v, want host %s port %d",
					tt.rawURL, target, tt.wantHost, tt.wantPort)
			}
			if path != tt.wantPath {
				t.Errorf("ParseTarget(%q) path = %q, want %q", tt.rawURL, path, tt.wantPath)
			}
		})
	}
}

func TestTargetAddr(t *testing.T) {
	target := Target{Host: "h.example.com", Port: 8443}
	if got := target.Addr(); got != "h.example.com:8443" {
		t.Errorf("Addr() = %q, want h.example.com:8443", got)
	}
}

func TestTargetTLS(t *testing.T) {
	if !(Target{Host: "h", Port: 443}).TLS() {
		t.Error("port 443 should select TLS")
	}
	if (Target{Host: "h", Port: 80}).TLS() {
		t.Error("port 80 should not select TLS")
	}
}

func TestForTarget(t *testing.T) {
	if _, ok := ForTarget(Target{Host: "h", Port: 443}).(*TLSTransport); !ok {
		t.Error("expected a TLS transport for port 443")
	}
	if _, ok := ForTarget(Target{Host: "h", Port: 8080}).(*TCPTransport); !ok {
		t.Error("expected a TCP transport for port 8080")
	}
}

func TestRegistry(t *testing.T) {
	Register("test-null", func() Transport { return &TCPTransport{} })
	f, ok := Get("test-null")
	if !ok {
		t.Fatal("registered factory not found")
	}
	if f() == nil {
		t.Error("factory returned nil transport")
	}
	if _, ok := Get("no-such-transport"); ok {
		t.Error("unknown name should not resolve")
	}
}
