// ABOUTME: mDNS service discovery for the remote control endpoint
// ABOUTME: Handles both advertisement (app side) and browsing (remote CLI side)
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceType is the DNS-SD type every instance advertises
	ServiceType = "_mictroll._tcp"

	// ControlPath is published in the TXT record
	ControlPath = "/control"

	defaultBrowseTimeout = 3 * time.Second
)

// Config holds discovery configuration
type Config struct {
	ServiceName string
	Port        int

	// BrowseTimeout bounds each query round; defaults to 3s
	BrowseTimeout time.Duration
}

// Manager handles mDNS operations
type Manager struct {
	config   Config
	ctx      context.Context
	cancel   context.CancelFunc
	services chan *ServiceInfo
}

// ServiceInfo describes a discovered instance
type ServiceInfo struct {
	Name string
	Host string
	Port int
	Path string
}

// Addr returns host:port for dialing
func (s *ServiceInfo) Addr() string {
	return net.JoinHostPort(s.Host, fmt.Sprintf("%d", s.Port))
}

// NewManager creates a discovery manager
func NewManager(config Config) *Manager {
	if config.BrowseTimeout <= 0 {
		config.BrowseTimeout = defaultBrowseTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:   config,
		ctx:      ctx,
		cancel:   cancel,
		services: make(chan *ServiceInfo, 10),
	}
}

// Advertise publishes the control endpoint until Stop
func (m *Manager) Advertise() error {
	if m.config.ServiceName == "" {
		return fmt.Errorf("service name is required")
	}
	if m.config.Port <= 0 {
		return fmt.Errorf("invalid port %d", m.config.Port)
	}

	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		ServiceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=" + ControlPath},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, ServiceType)

	go func() {
		<-m.ctx.Done()
		if err := server.Shutdown(); err != nil {
			log.Printf("mDNS shutdown error: %v", err)
		}
	}()

	return nil
}

// Browse searches for instances until Stop, delivering them on Services
func (m *Manager) Browse() {
	go m.browseLoop()
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		found, err := m.query()
		if err != nil {
			log.Printf("mDNS query failed: %v", err)
		}
		for _, svc := range found {
			select {
			case m.services <- svc:
			case <-m.ctx.Done():
				return
			}
		}
	}
}

// Lookup runs a single query round and returns what answered
func (m *Manager) Lookup() ([]*ServiceInfo, error) {
	return m.query()
}

func (m *Manager) query() ([]*ServiceInfo, error) {
	entries := make(chan *mdns.ServiceEntry, 10)
	done := make(chan []*ServiceInfo, 1)

	go func() {
		var found []*ServiceInfo
		for entry := range entries {
			svc := fromEntry(entry)
			if svc == nil {
				continue
			}
			log.Printf("Discovered instance: %s at %s", svc.Name, svc.Addr())
			found = append(found, svc)
		}
		done <- found
	}()

	params := mdns.DefaultParams(ServiceType)
	params.Entries = entries
	params.Timeout = m.config.BrowseTimeout
	params.DisableIPv6 = true

	err := mdns.Query(params)
	close(entries)
	found := <-done
	if err != nil {
		return found, fmt.Errorf("mdns query failed: %w", err)
	}
	return found, nil
}

func fromEntry(entry *mdns.ServiceEntry) *ServiceInfo {
	if entry == nil || entry.AddrV4 == nil {
		return nil
	}
	svc := &ServiceInfo{
		Name: entry.Name,
		Host: entry.AddrV4.String(),
		Port: entry.Port,
		Path: ControlPath,
	}
	for _, field := range entry.InfoFields {
		if len(field) > 5 && field[:5] == "path=" {
			svc.Path = field[5:]
		}
	}
	return svc
}

// Services returns the channel of discovered instances
func (m *Manager) Services() <-chan *ServiceInfo {
	return m.services
}

// Stop stops advertising and browsing
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns local IP addresses
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
