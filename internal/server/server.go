package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/origctl/internal/discovery"
	"github.com/muurk/origctl/internal/engine"
	"github.com/muurk/origctl/internal/logging"
	"go.uber.org/zap"
)

// DefaultCommandTimeout bounds a single dispatched command (a connect dials
// twice, so it needs more than one dial timeout)
const DefaultCommandTimeout = 30 * time.Second

// Controller is the engine surface the bridge exposes
type Controller interface {
	Snapshot() engine.Snapshot
	Dispatch(ctx context.Context, cmd engine.Command) error
}

// EventSource hands out event subscriptions
type EventSource interface {
	Subscribe() (<-chan engine.Event, func())
}

// Config holds the bridge configuration
type Config struct {
	Listen         string // host:port
	Advertise      bool   // Announce the bridge with mDNS
	Instance       string // mDNS instance name
	Device         string // Earbud address, advertised in TXT
	Version        string
	CommandTimeout time.Duration
}

// Server is the event bridge: a websocket endpoint streaming engine events
// and accepting commands.
type Server struct {
	config   *Config
	ctrl     Controller
	events   EventSource
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener
	advertiser *discovery.Advertiser

	wg          sync.WaitGroup
	mu          sync.Mutex
	activeConns map[string]*websocket.Conn
	closing     chan struct{}
	closeOnce   sync.Once
}

// New creates a bridge server for ctrl, streaming events from events
func New(config *Config, ctrl Controller, events EventSource) (*Server, error) {
	if config == nil {
		return nil, errors.New("server config is required")
	}
	if ctrl == nil || events == nil {
		return nil, errors.New("server needs a controller and an event source")
	}
	if config.CommandTimeout <= 0 {
		config.CommandTimeout = DefaultCommandTimeout
	}

	s := &Server{
		config:      config,
		ctrl:        ctrl,
		events:      events,
		activeConns: make(map[string]*websocket.Conn),
		closing:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Listen opens the listening socket. Serve calls it if needed.
func (s *Server) Listen() error {
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the bridge until ctx is cancelled, then shuts down
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	addr := s.listener.Addr().String()

	logging.Info("Starting event bridge",
		zap.String("addr", addr),
		zap.Bool("advertise", s.config.Advertise),
	)

	if s.config.Advertise {
		port := 0
		if tcp, ok := s.listener.Addr().(*net.TCPAddr); ok {
			port = tcp.Port
		}
		ad, err := discovery.Advertise(discovery.Advertisement{
			Instance: s.config.Instance,
			Port:     port,
			Device:   s.config.Device,
			Path:     discovery.DefaultPath,
			Version:  s.config.Version,
		})
		if err != nil {
			// The bridge still works with an explicit URL
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			s.advertiser = ad
		}
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops the bridge and closes every client connection
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down event bridge...")

	s.closeOnce.Do(func() { close(s.closing) })
	s.advertiser.Shutdown()

	if err := s.httpServer.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error("Error stopping HTTP server", zap.Error(err))
	}

	// Hijacked websocket connections are not tracked by http.Server
	s.mu.Lock()
	for addr, conn := range s.activeConns {
		logging.Debug("Closing bridge client", zap.String("remote_addr", addr))
		_ = conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logging.Info("All bridge clients closed")
	case <-ctx.Done():
		logging.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return nil
}

// GetActiveConnections returns the number of connected bridge clients
func (s *Server) GetActiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.activeConns)
}

func (s *Server) track(addr string, conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.closing:
		return false
	default:
	}
	s.activeConns[addr] = conn
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(addr string) {
	s.mu.Lock()
	delete(s.activeConns, addr)
	s.mu.Unlock()
	s.wg.Done()
}
