// ABOUTME: Tests for mDNS discovery
// ABOUTME: Tests manager defaults, advertisement validation and entry conversion
package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "test-mictroll", Port: 8927})
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	if mgr.config.BrowseTimeout != defaultBrowseTimeout {
		t.Errorf("expected default browse timeout, got %v", mgr.config.BrowseTimeout)
	}
	mgr.Stop()

	custom := NewManager(Config{BrowseTimeout: time.Second})
	if custom.config.BrowseTimeout != time.Second {
		t.Errorf("expected 1s browse timeout, got %v", custom.config.BrowseTimeout)
	}
}

func TestAdvertiseValidation(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"missing name", Config{Port: 8927}},
		{"missing port", Config{ServiceName: "x"}},
		{"negative port", Config{ServiceName: "x", Port: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mgr := NewManager(tt.config)
			defer mgr.Stop()
			if err := mgr.Advertise(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFromEntry(t *testing.T) {
	if fromEntry(nil) != nil {
		t.Error("expected nil for nil entry")
	}
	if fromEntry(&mdns.ServiceEntry{Name: "v6-only"}) != nil {
		t.Error("expected nil for entry without IPv4 address")
	}

	svc := fromEntry(&mdns.ServiceEntry{
		Name:       "desk-mictroll._mictroll._tcp.local.",
		AddrV4:     net.IPv4(192, 168, 1, 20),
		Port:       8927,
		InfoFields: []string{"path=/ctl"},
	})
	if svc == nil {
		t.Fatal("expected service info")
	}
	if svc.Addr() != "192.168.1.20:8927" {
		t.Errorf("expected 192.168.1.20:8927, got %s", svc.Addr())
	}
	if svc.Path != "/ctl" {
		t.Errorf("expected path /ctl, got %s", svc.Path)
	}

	plain := fromEntry(&mdns.ServiceEntry{AddrV4: net.IPv4(10, 0, 0, 1), Port: 1})
	if plain.Path != ControlPath {
		t.Errorf("expected default path %s, got %s", ControlPath, plain.Path)
	}
}
