package server

import (
	"net/http"

	"github.com/muurk/origctl/internal/logging"
	"go.uber.org/zap"
)

// Endpoint paths
const (
	PathWebSocket = "/ws"
	PathSnapshot  = "/snapshot"
	PathHealth    = "/healthz"
)

// contentTypeCBOR is the media type of snapshot responses
const contentTypeCBOR = "application/cbor"

// Handler returns the bridge HTTP handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PathWebSocket, s.handleWebSocket)
	mux.HandleFunc(PathSnapshot, s.handleSnapshot)
	mux.HandleFunc(PathHealth, handleHealth)
	return mux
}

// handleSnapshot returns the current snapshot as a CBOR message
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	logRequest(r)

	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.ctrl.Snapshot()
	data, err := EncodeMessage(Message{Type: MessageSnapshot, Snapshot: &snap})
	if err != nil {
		logging.Error("Failed to encode snapshot", zap.Error(err))
		http.Error(w, "encode failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentTypeCBOR)
	_, _ = w.Write(data)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

// logRequest logs the details of a bridge HTTP request
func logRequest(r *http.Request) {
	logging.Debug("Bridge request",
		zap.String("remote_addr", r.RemoteAddr),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("user_agent", r.Header.Get("User-Agent")),
		zap.String("sec_websocket_version", r.Header.Get("Sec-WebSocket-Version")),
	)
}
