package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/origctl/internal/logging"
	"go.uber.org/zap"
)

// DefaultHandshakeTimeout bounds the relay websocket handshake
const DefaultHandshakeTimeout = 10 * time.Second

// ErrConnectionClosed is returned when reading from a closed relay connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketDialer connects to a relay that forwards the device's SPP stream
// as binary websocket messages. The relay URL may omit its scheme; secure
// dials use wss://, insecure dials ws://. The device address is passed as the
// "address" query parameter.
type WebSocketDialer struct {
	URL              string
	TLSConfig        *tls.Config
	HandshakeTimeout time.Duration
}

// NewWebSocketDialer returns a dialer for the given relay URL
func NewWebSocketDialer(relayURL string) *WebSocketDialer {
	return &WebSocketDialer{URL: relayURL, HandshakeTimeout: DefaultHandshakeTimeout}
}

// DialSecure connects to the relay over TLS
func (d *WebSocketDialer) DialSecure(ctx context.Context, address string) (Transport, error) {
	return d.dial(ctx, address, "wss")
}

// DialInsecure connects to the relay without TLS
func (d *WebSocketDialer) DialInsecure(ctx context.Context, address string) (Transport, error) {
	return d.dial(ctx, address, "ws")
}

// relayURL builds the URL for one dial attempt
func (d *WebSocketDialer) relayURL(address, scheme string) (string, error) {
	raw := d.URL
	if !strings.Contains(raw, "://") {
		raw = scheme + "://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid relay URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return "", fmt.Errorf("unsupported relay URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid relay URL %q: missing host", d.URL)
	}

	u.Scheme = scheme
	q := u.Query()
	q.Set("address", address)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (d *WebSocketDialer) dial(ctx context.Context, address, scheme string) (Transport, error) {
	target, err := d.relayURL(address, scheme)
	if err != nil {
		return nil, err
	}

	timeout := d.HandshakeTimeout
	if timeout == 0 {
		timeout = DefaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		TLSClientConfig:  d.TLSConfig,
	}

	logging.Debug("Dialing relay", zap.String("url", target))

	conn, resp, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("relay connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("relay connection failed: %w", err)
	}

	return NewWebSocketTransport(conn), nil
}

// WebSocketTransport adapts a websocket connection to a byte stream.
// Non-binary messages are skipped.
type WebSocketTransport struct {
	conn *websocket.Conn

	readMu    sync.Mutex
	buf       []byte
	bufOffset int
	closed    bool

	writeMu sync.Mutex
}

// NewWebSocketTransport wraps an established websocket connection
func NewWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	return &WebSocketTransport{conn: conn}
}

func (w *WebSocketTransport) Read(p []byte) (int, error) {
	w.readMu.Lock()
	defer w.readMu.Unlock()

	if w.closed {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed = true
			return 0, err
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketTransport) Write(p []byte) (int, error) {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketTransport) Close() error {
	return w.conn.Close()
}
