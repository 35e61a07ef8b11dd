package transport

import (
	"context"
	"fmt"

	"github.com/muurk/origctl/internal/logging"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// DefaultBaudRate is used when SerialDialer.BaudRate is zero. RFCOMM TTYs
// ignore it, but the port still needs a mode.
const DefaultBaudRate = 115200

// SerialDialer opens a TTY already bound to the device, e.g. by
// `rfcomm bind 0 AA:BB:CC:DD:EE:FF 1`. Link security is decided at bind time,
// so both dial variants open the same port.
type SerialDialer struct {
	Port     string
	BaudRate int
}

// NewSerialDialer returns a dialer for the given TTY path
func NewSerialDialer(port string) *SerialDialer {
	return &SerialDialer{Port: port, BaudRate: DefaultBaudRate}
}

// DialSecure opens the serial port
func (d *SerialDialer) DialSecure(ctx context.Context, address string) (Transport, error) {
	return d.open(ctx, address)
}

// DialInsecure opens the serial port
func (d *SerialDialer) DialInsecure(ctx context.Context, address string) (Transport, error) {
	return d.open(ctx, address)
}

func (d *SerialDialer) open(ctx context.Context, address string) (Transport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Port == "" {
		return nil, fmt.Errorf("serial port not configured for %s", address)
	}

	baud := d.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	logging.Debug("Opening serial port",
		zap.String("port", d.Port),
		zap.String("address", address),
		zap.Int("baud", baud),
	)

	port, err := serial.Open(d.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", d.Port, err)
	}

	return &serialTransport{port: port}, nil
}

// serialTransport wraps a serial port
type serialTransport struct {
	port serial.Port
}

func (s *serialTransport) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *serialTransport) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *serialTransport) Close() error {
	return s.port.Close()
}
