// Package transport provides the byte-stream links used to reach the earbuds.
//
// A Transport is any io.ReadWriteCloser carrying the raw SPP stream. Dialers
// open one either with link-level security (DialSecure) or without it
// (DialInsecure); the engine tries the former first.
//
// Implementations:
//   - RFCOMMDialer: native AF_BLUETOOTH RFCOMM socket (Linux)
//   - SerialDialer: a bound RFCOMM TTY such as /dev/rfcomm0
//   - WebSocketDialer: a relay forwarding the SPP stream as binary messages
//
// Closing a Transport must unblock a pending Read.
package transport

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnsupported is returned by transports or probes unavailable on this platform
var ErrUnsupported = errors.New("not supported on this platform")

// Transport is an open byte stream to the device
type Transport interface {
	io.ReadWriteCloser
}

// Dialer opens transports to a device address
type Dialer interface {
	DialSecure(ctx context.Context, address string) (Transport, error)
	DialInsecure(ctx context.Context, address string) (Transport, error)
}

// Prober reports whether the host currently has a link to the device
type Prober interface {
	Connected(ctx context.Context, address string) (bool, error)
}

// ParseAddress parses a Bluetooth address "AA:BB:CC:DD:EE:FF" (or with dashes)
// into its six bytes in display order.
func ParseAddress(address string) ([6]byte, error) {
	var out [6]byte

	normalized := strings.ReplaceAll(strings.TrimSpace(address), "-", ":")
	parts := strings.Split(normalized, ":")
	if len(parts) != 6 {
		return out, fmt.Errorf("invalid Bluetooth address %q", address)
	}
	for i, part := range parts {
		if len(part) != 2 {
			return out, fmt.Errorf("invalid Bluetooth address %q", address)
		}
		b, err := hex.DecodeString(part)
		if err != nil {
			return out, fmt.Errorf("invalid Bluetooth address %q: %w", address, err)
		}
		out[i] = b[0]
	}
	return out, nil
}

// FormatAddress renders six address bytes in display order
func FormatAddress(addr [6]byte) string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", addr[0], addr[1], addr[2], addr[3], addr[4], addr[5])
}
