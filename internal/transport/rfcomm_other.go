//go:build !linux

package transport

import "context"

// RFCOMMDialer connects with a native Bluetooth RFCOMM socket (Linux only)
type RFCOMMDialer struct {
	Channel uint8
}

// NewRFCOMMDialer returns a dialer for the given RFCOMM channel
func NewRFCOMMDialer(channel uint8) *RFCOMMDialer {
	return &RFCOMMDialer{Channel: channel}
}

// DialSecure is unsupported on this platform
func (d *RFCOMMDialer) DialSecure(ctx context.Context, address string) (Transport, error) {
	return nil, ErrUnsupported
}

// DialInsecure is unsupported on this platform
func (d *RFCOMMDialer) DialInsecure(ctx context.Context, address string) (Transport, error) {
	return nil, ErrUnsupported
}
