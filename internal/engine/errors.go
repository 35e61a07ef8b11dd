package engine

import (
	"errors"
	"fmt"
)

// Engine errors
var (
	ErrNotConnected      = errors.New("not connected")
	ErrConnectInProgress = errors.New("connection attempt already in progress")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrConnectAborted    = errors.New("connection attempt aborted by disconnect")
	ErrNoDialer          = errors.New("no dialer configured")
	ErrUnknownCommand    = errors.New("unknown command")
)

// ConnectError reports that both the secure and the insecure dial failed
type ConnectError struct {
	Address  string
	Secure   error
	Insecure error
}

// Error implements the error interface
func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect %s failed: secure: %v; insecure: %v", e.Address, e.Secure, e.Insecure)
}

// Unwrap returns both dial errors
func (e *ConnectError) Unwrap() []error {
	return []error{e.Secure, e.Insecure}
}
