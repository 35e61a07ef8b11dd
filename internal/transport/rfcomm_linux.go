//go:build linux

package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/muurk/origctl/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// Bluetooth socket options (include/net/bluetooth/bluetooth.h)
const (
	solBluetooth     = 274
	btSecurity       = 4
	btSecurityLow    = 1
	btSecurityMedium = 2
)

// connectPollInterval bounds how long a pending connect waits between ctx checks
const connectPollInterval = 100 * time.Millisecond

// RFCOMMDialer connects with a native Bluetooth RFCOMM socket
type RFCOMMDialer struct {
	Channel uint8
}

// NewRFCOMMDialer returns a dialer for the given RFCOMM channel
func NewRFCOMMDialer(channel uint8) *RFCOMMDialer {
	return &RFCOMMDialer{Channel: channel}
}

// DialSecure connects requiring an authenticated, encrypted link
func (d *RFCOMMDialer) DialSecure(ctx context.Context, address string) (Transport, error) {
	return d.dial(ctx, address, btSecurityMedium)
}

// DialInsecure connects without link-level security
func (d *RFCOMMDialer) DialInsecure(ctx context.Context, address string) (Transport, error) {
	return d.dial(ctx, address, btSecurityLow)
}

func (d *RFCOMMDialer) dial(ctx context.Context, address string, level byte) (Transport, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("rfcomm socket: %w", err)
	}

	// struct bt_security { uint8_t level; uint8_t key_size; }
	if err := unix.SetsockoptString(fd, solBluetooth, btSecurity, string([]byte{level, 0})); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rfcomm security level %d: %w", level, err)
	}

	// The kernel expects the address bytes in reverse (little-endian) order
	sa := &unix.SockaddrRFCOMM{Channel: d.Channel}
	for i := 0; i < 6; i++ {
		sa.Addr[i] = addr[5-i]
	}

	logging.Debug("RFCOMM connect",
		zap.String("address", address),
		zap.Uint8("channel", d.Channel),
		zap.Bool("secure", level >= btSecurityMedium),
	)

	if err := connectNonblocking(ctx, fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("rfcomm connect %s channel %d: %w", address, d.Channel, err)
	}

	// A non-blocking fd is registered with the runtime poller, so Close
	// unblocks a pending Read.
	return os.NewFile(uintptr(fd), "rfcomm:"+address), nil
}

// connectNonblocking issues connect on a non-blocking socket and waits for
// completion while honouring ctx.
func connectNonblocking(ctx context.Context, fd int, sa unix.Sockaddr) error {
	err := unix.Connect(fd, sa)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EINPROGRESS) && !errors.Is(err, unix.EAGAIN) {
		return err
	}

	timeoutMs := int(connectPollInterval / time.Millisecond)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(fds, timeoutMs)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}

		soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
		if err != nil {
			return err
		}
		if soErr != 0 {
			return unix.Errno(soErr)
		}
		return nil
	}
}
