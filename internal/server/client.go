package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/origctl/internal/engine"
	"github.com/muurk/origctl/internal/logging"
	"github.com/muurk/origctl/internal/version"
	"go.uber.org/zap"
)

// ErrClientClosed is returned by Do once the bridge connection has ended
var ErrClientClosed = errors.New("bridge connection closed")

// clientEventBuffer is the size of the client event channel
const clientEventBuffer = 64

// Client talks to a running bridge
type Client struct {
	conn     *websocket.Conn
	snapshot engine.Snapshot
	events   chan engine.Event

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan Message
	closed  chan struct{}
	err     error

	closeOnce sync.Once
	closing   atomic.Bool
}

// Dial connects to the bridge at url and waits for its initial snapshot
func Dial(ctx context.Context, url string) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{"User-Agent": {version.UserAgent()}}
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to bridge %s (HTTP %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to bridge %s: %w", url, err)
	}

	c := &Client{
		conn:    conn,
		events:  make(chan engine.Event, clientEventBuffer),
		pending: make(map[uint64]chan Message),
		closed:  make(chan struct{}),
	}

	snap, err := c.readSnapshot(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	c.snapshot = snap

	go c.readLoop()
	return c, nil
}

func (c *Client) readSnapshot(ctx context.Context) (engine.Snapshot, error) {
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return engine.Snapshot{}, err
	}
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return engine.Snapshot{}, fmt.Errorf("failed to read bridge snapshot: %w", err)
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		msg, err := DecodeMessage(data)
		if err != nil {
			return engine.Snapshot{}, err
		}
		if msg.Type != MessageSnapshot || msg.Snapshot == nil {
			return engine.Snapshot{}, fmt.Errorf("bridge sent %s before snapshot", msg.Type)
		}
		return *msg.Snapshot, nil
	}
}

// Snapshot returns the state sent by the bridge on connect
func (c *Client) Snapshot() engine.Snapshot {
	return c.snapshot
}

// Events returns the event stream. It is closed when the connection ends.
func (c *Client) Events() <-chan engine.Event {
	return c.events
}

// Do sends cmd and waits for the bridge to answer it
func (c *Client) Do(ctx context.Context, cmd engine.Command) error {
	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.nextID++
	id := c.nextID
	reply := make(chan Message, 1)
	c.pending[id] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	data, err := EncodeMessage(Message{Type: MessageCommand, ID: id, Command: &cmd})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = c.conn.WriteMessage(websocket.BinaryMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to send %s command: %w", cmd.Kind, err)
	}

	select {
	case msg := <-reply:
		if msg.Error != "" {
			return errors.New(msg.Error)
		}
		return nil
	case <-c.closed:
		return ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the error that ended the connection, if any
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if errors.Is(c.err, ErrClientClosed) {
		return nil
	}
	return c.err
}

// Close ends the connection
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closing.Store(true)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	<-c.closed
	return err
}

func (c *Client) readLoop() {
	var loopErr error
	defer func() {
		c.mu.Lock()
		if loopErr == nil {
			loopErr = ErrClientClosed
		}
		c.err = loopErr
		c.mu.Unlock()
		close(c.events)
		close(c.closed)
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closing.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				loopErr = err
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}

		msg, err := DecodeMessage(data)
		if err != nil {
			logging.Warn("Malformed message from bridge", zap.Error(err))
			continue
		}

		switch msg.Type {
		case MessageEvent:
			if msg.Event == nil {
				continue
			}
			select {
			case c.events <- *msg.Event:
			default:
				logging.Warn("Dropping bridge event", zap.String("event", msg.Event.Kind.String()))
			}
		case MessageResult:
			c.mu.Lock()
			reply, ok := c.pending[msg.ID]
			c.mu.Unlock()
			if ok {
				reply <- msg
			}
		case MessageSnapshot:
			// Only sent on connect
		}
	}
}
