package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Bridge represents an origctl daemon discovered on the network
type Bridge struct {
	// Instance is the mDNS instance name (e.g., "origctl on desk")
	Instance string

	// Hostname is the mDNS hostname (e.g., "desk.local.")
	Hostname string

	// IP is the address to connect to (IPv4 preferred)
	IP string

	// Port is the bridge HTTP port
	Port int

	// Device is the Bluetooth address of the earbuds the daemon drives
	Device string

	// Path is the websocket endpoint path (TXT "path", default "/ws")
	Path string

	// Metadata contains every mDNS TXT record
	Metadata map[string]string

	// DiscoveredAt is when the bridge was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the bridge
func (b *Bridge) String() string {
	if b.Device != "" {
		return fmt.Sprintf("origctl bridge %q for %s at %s:%d", b.Instance, b.Device, b.IP, b.Port)
	}
	return fmt.Sprintf("origctl bridge %q at %s:%d", b.Instance, b.IP, b.Port)
}

// URL returns the websocket URL of the bridge
func (b *Bridge) URL() string {
	path := b.Path
	if path == "" {
		path = DefaultPath
	}
	return fmt.Sprintf("ws://%s%s", net.JoinHostPort(b.IP, strconv.Itoa(b.Port)), path)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (b *Bridge) GetMetadata(key string) string {
	if b.Metadata == nil {
		return ""
	}
	return b.Metadata[key]
}
