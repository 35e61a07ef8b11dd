package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/origctl/internal/engine"
	"github.com/muurk/origctl/internal/logging"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	// resultBuffer is the number of command results queued per client
	resultBuffer = 16
)

// handleWebSocket upgrades a bridge client and serves it until either side closes
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	logRequest(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	remoteAddr := conn.RemoteAddr().String()
	if !s.track(remoteAddr, conn) {
		_ = conn.Close()
		return
	}
	defer s.untrack(remoteAddr)

	logging.LogConnection(remoteAddr, "bridge_client_connected")
	defer logging.LogConnection(remoteAddr, "bridge_client_closed")

	if err := s.serveClient(conn, remoteAddr); err != nil {
		logging.Debug("Bridge client ended",
			zap.String("remote_addr", remoteAddr),
			zap.Error(err),
		)
	}
}

// serveClient runs the writer in a goroutine and the reader inline
func (s *Server) serveClient(conn *websocket.Conn, remoteAddr string) error {
	// Subscribe before taking the snapshot so no event falls in between
	events, unsubscribe := s.events.Subscribe()

	done := make(chan struct{})
	results := make(chan Message, resultBuffer)
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		s.writeLoop(conn, remoteAddr, events, results, done)
	}()

	err := s.readLoop(conn, remoteAddr, results, done)

	close(done)
	unsubscribe()
	_ = conn.Close()
	<-writerDone
	return err
}

// writeLoop sends the snapshot, then events, command results and pings
func (s *Server) writeLoop(conn *websocket.Conn, remoteAddr string, events <-chan engine.Event, results <-chan Message, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	snap := s.ctrl.Snapshot()
	if err := writeMessage(conn, Message{Type: MessageSnapshot, Snapshot: &snap}); err != nil {
		logging.Debug("Failed to send snapshot", zap.String("remote_addr", remoteAddr), zap.Error(err))
		_ = conn.Close()
		return
	}

	for {
		var msg Message
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg = Message{Type: MessageEvent, Event: &ev}
		case msg = <-results:
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logging.Debug("Ping failed", zap.String("remote_addr", remoteAddr), zap.Error(err))
				_ = conn.Close()
				return
			}
			continue
		}

		if err := writeMessage(conn, msg); err != nil {
			logging.Debug("Write to bridge client failed",
				zap.String("remote_addr", remoteAddr),
				zap.String("type", msg.Type.String()),
				zap.Error(err),
			)
			_ = conn.Close()
			return
		}
	}
}

// readLoop decodes commands from the client and dispatches them
func (s *Server) readLoop(conn *websocket.Conn, remoteAddr string, results chan<- Message, done <-chan struct{}) error {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return err
		}

		if messageType != websocket.BinaryMessage {
			logging.Debug("Ignoring non-binary bridge message", zap.String("remote_addr", remoteAddr))
			continue
		}

		msg, err := DecodeMessage(data)
		if err != nil {
			logging.Warn("Malformed bridge message",
				zap.String("remote_addr", remoteAddr),
				zap.Error(err),
			)
			continue
		}
		if msg.Type != MessageCommand || msg.Command == nil {
			logging.Debug("Ignoring bridge message",
				zap.String("remote_addr", remoteAddr),
				zap.String("type", msg.Type.String()),
			)
			continue
		}

		go s.dispatch(remoteAddr, msg.ID, *msg.Command, results, done)
	}
}

// dispatch runs one command and queues its result
func (s *Server) dispatch(remoteAddr string, id uint64, cmd engine.Command, results chan<- Message, done <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.CommandTimeout)
	defer cancel()

	logging.Info("Bridge command",
		zap.String("remote_addr", remoteAddr),
		zap.String("command", cmd.Kind.String()),
	)

	result := Message{Type: MessageResult, ID: id}
	if err := s.ctrl.Dispatch(ctx, cmd); err != nil {
		result.Error = err.Error()
		logging.Warn("Bridge command failed",
			zap.String("remote_addr", remoteAddr),
			zap.String("command", cmd.Kind.String()),
			zap.Error(err),
		)
	}

	select {
	case results <- result:
	case <-done:
	}
}

func writeMessage(conn *websocket.Conn, msg Message) error {
	data, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.BinaryMessage, data)
}
