package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    [6]byte
		wantErr bool
	}{
		{"colons", "AA:BB:CC:DD:EE:FF", [6]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, false},
		{"lowercase", "01:23:45:67:89:ab", [6]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB}, false},
		{"dashes", "01-23-45-67-89-AB", [6]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB}, false},
		{"padded", "  01:23:45:67:89:AB ", [6]byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xAB}, false},
		{"too few", "01:23:45:67:89", [6]byte{}, true},
		{"too many", "01:23:45:67:89:AB:CD", [6]byte{}, true},
		{"bad hex", "01:23:45:67:89:ZZ", [6]byte{}, true},
		{"short octet", "1:23:45:67:89:AB", [6]byte{}, true},
		{"empty", "", [6]byte{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseAddress(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatAddressRoundTrip(t *testing.T) {
	addr, err := ParseAddress("de:ad:be:ef:00:01")
	if err != nil {
		t.Fatalf("ParseAddress() error = %v", err)
	}
	if got := FormatAddress(addr); got != "DE:AD:BE:EF:00:01" {
		t.Errorf("FormatAddress() = %q, want %q", got, "DE:AD:BE:EF:00:01")
	}
}

func TestRelayURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		scheme  string
		want    string
		wantErr bool
	}{
		{"no scheme secure", "relay.local:7320/spp", "wss", "wss://relay.local:7320/spp?address=AA%3ABB%3ACC%3ADD%3AEE%3AFF", false},
		{"no scheme insecure", "relay.local:7320/spp", "ws", "ws://relay.local:7320/spp?address=AA%3ABB%3ACC%3ADD%3AEE%3AFF", false},
		{"scheme replaced", "ws://relay.local/spp", "wss", "wss://relay.local/spp?address=AA%3ABB%3ACC%3ADD%3AEE%3AFF", false},
		{"bad scheme", "ftp://relay.local", "ws", "", true},
		{"missing host", "ws:///spp", "ws", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewWebSocketDialer(tt.base)
			got, err := d.relayURL("AA:BB:CC:DD:EE:FF", tt.scheme)
			if (err != nil) != tt.wantErr {
				t.Fatalf("relayURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("relayURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

// newEchoRelay starts a relay that sends a text message, then echoes every
// binary message back split into two halves.
func newEchoRelay(t *testing.T) (*httptest.Server, <-chan string) {
	t.Helper()

	addresses := make(chan string, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addresses <- r.URL.Query().Get("address")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
			return
		}

		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt != websocket.BinaryMessage {
				continue
			}
			half := len(data) / 2
			if err := conn.WriteMessage(websocket.BinaryMessage, data[:half]); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, data[half:]); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, addresses
}

func TestWebSocketDialInsecureEcho(t *testing.T) {
	srv, addresses := newEchoRelay(t)

	d := NewWebSocketDialer(strings.TrimPrefix(srv.URL, "http://") + "/spp")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tr, err := d.DialInsecure(ctx, "AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("DialInsecure() error = %v", err)
	}
	defer tr.Close()

	if got := <-addresses; got != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("relay saw address %q, want %q", got, "AA:BB:CC:DD:EE:FF")
	}

	frame := []byte{0x4E, 0x03, 0x00, 0x00, 0x05, 0x00}
	n, err := tr.Write(frame)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if n != len(frame) {
		t.Errorf("Write() = %d, want %d", n, len(frame))
	}

	// The text greeting is skipped and the two halves arrive as one stream
	got := make([]byte, len(frame))
	if _, err := io.ReadFull(tr, got); err != nil {
		t.Fatalf("ReadFull() error = %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("read % X, want % X", got, frame)
	}
}

func TestWebSocketSmallReadBuffer(t *testing.T) {
	srv, _ := newEchoRelay(t)

	d := NewWebSocketDialer(srv.URL)
	tr, err := d.DialInsecure(context.Background(), "AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("DialInsecure() error = %v", err)
	}
	defer tr.Close()

	payload := []byte("0123456789")
	if _, err := tr.Write(payload); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var out []byte
	buf := make([]byte, 3)
	for len(out) < len(payload) {
		n, err := tr.Read(buf)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		if n > len(buf) {
			t.Fatalf("Read() = %d, exceeds buffer %d", n, len(buf))
		}
		out = append(out, buf[:n]...)
	}
	if !bytes.Equal(out, payload) {
		t.Errorf("read %q, want %q", out, payload)
	}
}

func TestWebSocketCloseUnblocksRead(t *testing.T) {
	srv, _ := newEchoRelay(t)

	tr, err := NewWebSocketDialer(srv.URL).DialInsecure(context.Background(), "AA:BB:CC:DD:EE:FF")
	if err != nil {
		t.Fatalf("DialInsecure() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := tr.Read(make([]byte, 16))
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	tr.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Error("Read() after Close returned nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read() did not return after Close")
	}

	if _, err := tr.Read(make([]byte, 1)); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("second Read() error = %v, want %v", err, ErrConnectionClosed)
	}
}

func TestWebSocketDialSecureFailsAgainstPlainRelay(t *testing.T) {
	srv, _ := newEchoRelay(t)

	d := NewWebSocketDialer(strings.TrimPrefix(srv.URL, "http://"))
	d.HandshakeTimeout = time.Second

	if _, err := d.DialSecure(context.Background(), "AA:BB:CC:DD:EE:FF"); err == nil {
		t.Error("DialSecure() against a plain relay succeeded, want error")
	}
}

func TestSerialDialerRequiresPort(t *testing.T) {
	d := &SerialDialer{}
	if _, err := d.DialSecure(context.Background(), "AA:BB:CC:DD:EE:FF"); err == nil {
		t.Error("DialSecure() without port succeeded, want error")
	}
}

func TestSerialDialerHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewSerialDialer("/dev/null-origctl-missing")
	if _, err := d.DialInsecure(ctx, "AA:BB:CC:DD:EE:FF"); !errors.Is(err, context.Canceled) {
		t.Errorf("DialInsecure() error = %v, want %v", err, context.Canceled)
	}
}

func TestSerialDialerMissingPort(t *testing.T) {
	d := NewSerialDialer("/dev/origctl-does-not-exist")
	if _, err := d.DialSecure(context.Background(), "AA:BB:CC:DD:EE:FF"); err == nil {
		t.Error("DialSecure() on missing port succeeded, want error")
	}
}

func TestRFCOMMDialerRejectsBadAddress(t *testing.T) {
	d := NewRFCOMMDialer(1)
	if _, err := d.DialSecure(context.Background(), "not-an-address"); err == nil {
		t.Error("DialSecure() with bad address succeeded, want error")
	}
}
