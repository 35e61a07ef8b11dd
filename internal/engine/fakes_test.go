package engine

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/muurk/origctl/internal/protocol"
	"github.com/muurk/origctl/internal/transport"
)

// fakeConn is an in-memory transport. Bytes written with deliver() are read by
// the engine; frames the engine writes are recorded with their timestamps.
type fakeConn struct {
	inR *io.PipeReader
	inW *io.PipeWriter

	mu       sync.Mutex
	writes   [][]byte
	times    []time.Time
	closed   bool
	writeErr error
}

func newFakeConn() *fakeConn {
	r, w := io.Pipe()
	return &fakeConn{inR: r, inW: w}
}

func (c *fakeConn) Read(p []byte) (int, error) {
	return c.inR.Read(p)
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, io.ErrClosedPipe
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.writes = append(c.writes, append([]byte(nil), p...))
	c.times = append(c.times, time.Now())
	return len(p), nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.inR.Close()
}

// deliver feeds device bytes to the engine's read loop
func (c *fakeConn) deliver(t *testing.T, data []byte) {
	t.Helper()
	if _, err := c.inW.Write(data); err != nil {
		t.Fatalf("deliver: %v", err)
	}
}

// hangUp simulates the device closing the stream
func (c *fakeConn) hangUp() {
	_ = c.inW.Close()
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.writes))
	copy(out, c.writes)
	return out
}

func (c *fakeConn) writeTimes() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Time(nil), c.times...)
}

func (c *fakeConn) count(frame []byte) int {
	n := 0
	for _, w := range c.written() {
		if bytes.Equal(w, frame) {
			n++
		}
	}
	return n
}

// fakeDialer hands out a fixed connection and records the attempts
type fakeDialer struct {
	conn        *fakeConn
	secureErr   error
	insecureErr error
	block       bool // Block until the context ends

	mu            sync.Mutex
	secureCalls   int
	insecureCalls int
}

func (d *fakeDialer) DialSecure(ctx context.Context, address string) (transport.Transport, error) {
	d.mu.Lock()
	d.secureCalls++
	d.mu.Unlock()
	return d.result(ctx, d.secureErr)
}

func (d *fakeDialer) DialInsecure(ctx context.Context, address string) (transport.Transport, error) {
	d.mu.Lock()
	d.insecureCalls++
	d.mu.Unlock()
	return d.result(ctx, d.insecureErr)
}

func (d *fakeDialer) result(ctx context.Context, err error) (transport.Transport, error) {
	if d.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, err
	}
	return d.conn, nil
}

func (d *fakeDialer) calls() (secure, insecure int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.secureCalls, d.insecureCalls
}

// recorder is an EventSink keeping every event
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) kinds(kind EventKind) []Event {
	var out []Event
	for _, ev := range r.all() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) connectionStates() []ConnectionState {
	var out []ConnectionState
	for _, ev := range r.kinds(EventConnectionStateChanged) {
		out = append(out, ev.Connection)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// frameCapture records frames sent by a Synchronizer
type frameCapture struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *frameCapture) Send(frame []byte) {
	f.mu.Lock()
	f.frames = append(f.frames, frame)
	f.mu.Unlock()
}

func (f *frameCapture) take() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.frames
	f.frames = nil
	return out
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// report builds a Report the way the read loop would
func report(t *testing.T, frame []byte) protocol.Report {
	t.Helper()
	f, err := protocol.ParseFrame(frame)
	if err != nil {
		t.Fatalf("ParseFrame(% X) error = %v", frame, err)
	}
	return protocol.ParseReport(f)
}

// quietOptions are engine timings that keep the poller out of the way
func quietOptions(d *fakeDialer, sink EventSink) Options {
	return Options{
		Dialer:       d,
		Sink:         sink,
		SettleDelay:  time.Hour,
		QueryGap:     time.Millisecond,
		PollInterval: time.Hour,
	}
}

const testAddress = "AA:BB:CC:DD:EE:FF"
