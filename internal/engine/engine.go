package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/muurk/origctl/internal/battery"
	"github.com/muurk/origctl/internal/logging"
	"github.com/muurk/origctl/internal/protocol"
	"github.com/muurk/origctl/internal/transport"
	"go.uber.org/zap"
)

// Timing defaults
const (
	DefaultSettleDelay       = 300 * time.Millisecond
	DefaultAutoGameModeDelay = 100 * time.Millisecond
	DefaultQueryGap          = 50 * time.Millisecond
	DefaultPollInterval      = 30 * time.Second
	DefaultConnectTimeout    = 10 * time.Second

	// readBufferSize is the size of each blocking read from the transport
	readBufferSize = 1024
)

// NameResolver looks up the display name of a device
type NameResolver interface {
	DisplayName(ctx context.Context, address string) (string, error)
}

// Options configures an Engine
type Options struct {
	Dialer   transport.Dialer
	Sink     EventSink
	Cache    *battery.Cache
	Prober   transport.Prober // Optional host-level link probe
	Resolver NameResolver     // Optional, used when Device.Name is empty

	SettleDelay       time.Duration
	AutoGameModeDelay time.Duration
	QueryGap          time.Duration
	PollInterval      time.Duration
	ConnectTimeout    time.Duration
}

func (o *Options) applyDefaults() {
	if o.Sink == nil {
		o.Sink = nopSink{}
	}
	if o.Cache == nil {
		o.Cache = battery.NewCache(nil)
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = DefaultSettleDelay
	}
	if o.AutoGameModeDelay <= 0 {
		o.AutoGameModeDelay = DefaultAutoGameModeDelay
	}
	if o.QueryGap <= 0 {
		o.QueryGap = DefaultQueryGap
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
}

// Device identifies the earbuds to connect to
type Device struct {
	Address string
	Name    string
}

// ConnectOptions tunes a single connection
type ConnectOptions struct {
	AutoGameMode bool // Turn game mode on shortly after the first status query
}

// Engine drives one earbud connection: it dials, reads and decodes the
// stream, keeps the feature state and polls the device.
type Engine struct {
	opts   Options
	sync   *Synchronizer
	poller *Poller

	// teardownMu is held for a whole teardown; Connect waits on it so a new
	// link never races the reset of the old one.
	teardownMu sync.Mutex

	mu         sync.Mutex
	state      ConnectionState
	device     Device
	gen        uint64
	conn       transport.Transport
	sched      *scheduler
	dialCancel context.CancelFunc
	lastErr    error

	writeMu sync.Mutex
}

// New creates an engine. Engines are independent; any number may coexist.
func New(opts Options) *Engine {
	opts.applyDefaults()
	e := &Engine{opts: opts}
	e.sync = NewSynchronizer(opts.Cache, opts.Sink, SenderFunc(e.send))
	e.poller = NewPoller(e, opts.QueryGap)
	return e
}

// State returns the connection state
func (e *Engine) State() ConnectionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Snapshot returns a copy of the connection and feature state
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	snap := Snapshot{
		Connection: e.state,
		Address:    e.device.Address,
	}
	if e.lastErr != nil {
		snap.LastError = e.lastErr.Error()
	}
	e.mu.Unlock()

	snap.State = e.sync.State()
	return snap
}

// CachedBattery returns the persisted battery readings
func (e *Engine) CachedBattery() battery.Status {
	return e.opts.Cache.Cached()
}

func (e *Engine) publish(ev Event) {
	e.opts.Sink.Publish(ev)
}

func (e *Engine) publishState(state ConnectionState, err error) {
	ev := Event{Kind: EventConnectionStateChanged, Connection: state}
	if err != nil {
		ev.Error = err.Error()
	}
	logging.LogStateChange("connection", state.String())
	e.publish(ev)
}

// Connect dials the device and, on success, starts the read loop and the
// status poller. It returns once the link is up or both dial attempts failed.
//
// Connect while connecting returns ErrConnectInProgress and while connected
// returns ErrAlreadyConnected; neither changes state. From Error the engine
// first returns to Disconnected.
func (e *Engine) Connect(ctx context.Context, dev Device, copts ConnectOptions) error {
	if e.opts.Dialer == nil {
		return ErrNoDialer
	}

	e.teardownMu.Lock()
	e.mu.Lock()
	e.teardownMu.Unlock()
	switch e.state {
	case Connecting:
		e.mu.Unlock()
		return ErrConnectInProgress
	case Connected:
		e.mu.Unlock()
		return ErrAlreadyConnected
	}
	wasError := e.state == Error

	e.gen++
	gen := e.gen
	dialCtx, cancel := context.WithCancel(ctx)
	e.dialCancel = cancel
	e.state = Connecting
	e.device = dev
	e.lastErr = nil
	e.mu.Unlock()
	defer cancel()

	if wasError {
		e.publishState(Disconnected, nil)
	}
	e.publishState(Connecting, nil)
	logging.LogConnection(dev.Address, "connecting")

	if dev.Name == "" {
		dev.Name = e.resolveName(dialCtx, dev.Address)
	}

	conn, err := e.dial(dialCtx, dev.Address)

	// Held until the outcome is published so a concurrent teardown is ordered
	// after it
	e.teardownMu.Lock()
	defer e.teardownMu.Unlock()

	e.mu.Lock()
	if e.gen != gen {
		// Disconnect ran while dialing
		e.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrConnectAborted
	}
	e.dialCancel = nil
	if err != nil {
		e.state = Error
		e.lastErr = err
		e.mu.Unlock()

		logging.Error("Connection failed", zap.String("address", dev.Address), zap.Error(err))
		e.publishState(Error, err)
		return err
	}

	sched := newScheduler(context.Background())
	e.conn = conn
	e.sched = sched
	e.state = Connected
	e.device = dev
	e.mu.Unlock()

	e.sync.SetDeviceName(dev.Name)
	logging.LogConnection(dev.Address, "connected", zap.String("name", dev.Name))
	e.publishState(Connected, nil)
	e.publish(Event{Kind: EventDeviceConnected, DeviceName: dev.Name})

	sched.Go(func(ctx context.Context) {
		e.readLoop(ctx, conn, dev.Address, gen)
	})
	sched.After(e.opts.SettleDelay, func(ctx context.Context) {
		if copts.AutoGameMode {
			sched.After(e.opts.AutoGameModeDelay, func(ctx context.Context) {
				logging.Info("Enabling game mode automatically", zap.String("address", dev.Address))
				e.sync.SetGameMode(true)
			})
		}
		_ = e.poller.QueryAll(ctx)
	})
	sched.Every(e.opts.PollInterval, func(ctx context.Context) {
		_ = e.poller.QueryAll(ctx)
	})

	return nil
}

// resolveName asks the resolver for a display name, falling back to the address
func (e *Engine) resolveName(ctx context.Context, address string) string {
	if e.opts.Resolver == nil {
		return address
	}
	name, err := e.opts.Resolver.DisplayName(ctx, address)
	if err != nil || name == "" {
		logging.Debug("Name lookup failed, using address", zap.String("address", address), zap.Error(err))
		return address
	}
	return name
}

// dial tries the secure link, then the insecure one, each bounded by ConnectTimeout
func (e *Engine) dial(ctx context.Context, address string) (transport.Transport, error) {
	secureCtx, cancel := context.WithTimeout(ctx, e.opts.ConnectTimeout)
	conn, secureErr := e.opts.Dialer.DialSecure(secureCtx, address)
	cancel()
	if secureErr == nil {
		return conn, nil
	}

	logging.Warn("Secure connect failed, trying insecure",
		zap.String("address", address),
		zap.Error(secureErr),
	)

	insecureCtx, cancel := context.WithTimeout(ctx, e.opts.ConnectTimeout)
	conn, insecureErr := e.opts.Dialer.DialInsecure(insecureCtx, address)
	cancel()
	if insecureErr == nil {
		logging.LogConnection(address, "connected_insecure")
		return conn, nil
	}

	return nil, &ConnectError{Address: address, Secure: secureErr, Insecure: insecureErr}
}

// readLoop feeds transport bytes through the decoder into the synchronizer
// until the stream ends or the connection is torn down.
func (e *Engine) readLoop(ctx context.Context, conn transport.Transport, address string, gen uint64) {
	dec := protocol.NewDecoder()
	buf := make([]byte, readBufferSize)

	for {
		n, err := conn.Read(buf)
		if n > 0 {
			logging.LogRawBytes("Read chunk", buf[:n], zap.String("address", address))
			protocol.HandleFrames(address, dec.Feed(buf[:n]), e.sync)
		}
		if err == nil {
			continue
		}

		if ctx.Err() == nil {
			if errors.Is(err, io.EOF) {
				logging.Info("Device closed the stream", zap.String("address", address))
			} else {
				logging.Error("Read error", zap.String("address", address), zap.Error(err))
			}
			// Teardown waits for this goroutine, so it must run elsewhere
			go e.teardown(gen)
		}

		stats := dec.Stats()
		logging.Debug("Read loop finished",
			zap.String("address", address),
			zap.Uint64("frames", stats.Frames),
			zap.Uint64("discarded", stats.Discarded),
		)
		return
	}
}

// Disconnect tears the connection down. It is idempotent and safe to call
// while a dial or a poll is in flight.
func (e *Engine) Disconnect() {
	e.teardown(0)
}

// DeviceDisconnected handles an external notice that the device went away
func (e *Engine) DeviceDisconnected(address string) {
	e.mu.Lock()
	current := e.device.Address
	e.mu.Unlock()
	if address != "" && address != current {
		return
	}
	e.teardown(0)
}

// teardown closes the connection of generation gen (0 means current)
func (e *Engine) teardown(gen uint64) {
	e.teardownMu.Lock()
	defer e.teardownMu.Unlock()

	e.mu.Lock()
	if (gen != 0 && gen != e.gen) || e.state == Disconnected {
		e.mu.Unlock()
		return
	}

	address := e.device.Address
	e.gen++
	if e.dialCancel != nil {
		e.dialCancel()
		e.dialCancel = nil
	}
	sched, conn := e.sched, e.conn
	e.sched, e.conn = nil, nil
	e.state = Disconnected
	e.device = Device{}
	e.mu.Unlock()

	if sched != nil {
		sched.Cancel()
	}
	if conn != nil {
		// Closing unblocks the pending Read
		if err := conn.Close(); err != nil {
			logging.Debug("Close error ignored", zap.String("address", address), zap.Error(err))
		}
	}
	if sched != nil {
		sched.Wait()
	}

	e.sync.Reset()
	logging.LogConnection(address, "disconnected")
	e.publishState(Disconnected, nil)
	e.publish(Event{Kind: EventDeviceDisconnected})
}

// current returns the live connection and its scheduler, or ErrNotConnected
func (e *Engine) current() (transport.Transport, *scheduler, string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Connected || e.conn == nil {
		return nil, nil, "", ErrNotConnected
	}
	return e.conn, e.sched, e.device.Address, nil
}

// WriteFrame writes a full frame to the transport. Writes are serialised so
// frames never interleave.
func (e *Engine) WriteFrame(ctx context.Context, frame []byte) error {
	conn, _, address, err := e.current()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	logging.LogFrame("tx", address, frame)
	if _, err := conn.Write(frame); err != nil {
		return err
	}
	return nil
}

// send is the fire-and-forget path used by commands. Failures are logged and
// the frame dropped.
func (e *Engine) send(frame []byte) {
	_, sched, address, err := e.current()
	if err != nil {
		logging.Debug("Dropping frame, not connected", zap.String("frame", protocol.CommandName(frame)))
		return
	}
	sched.Go(func(ctx context.Context) {
		if err := e.WriteFrame(ctx, frame); err != nil {
			logging.Warn("Write failed, frame dropped",
				zap.String("address", address),
				zap.String("frame", protocol.CommandName(frame)),
				zap.Error(err),
			)
		}
	})
}

// requireConnected guards every command
func (e *Engine) requireConnected() error {
	_, _, _, err := e.current()
	return err
}

// SetAncMode selects a noise control mode
func (e *Engine) SetAncMode(mode protocol.AncMode) error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	e.sync.SetAncMode(mode)
	return nil
}

// SetEq selects an equalizer preset
func (e *Engine) SetEq(mode protocol.EqMode) error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	e.sync.SetEq(mode)
	return nil
}

// SetGameMode toggles game mode (low latency follows)
func (e *Engine) SetGameMode(on bool) error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	e.sync.SetGameMode(on)
	return nil
}

// SetLowLatency toggles low latency
func (e *Engine) SetLowLatency(on bool) error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	e.sync.SetLowLatency(on)
	return nil
}

// SetDualConn toggles dual connection
func (e *Engine) SetDualConn(on bool) error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	e.sync.SetDualConn(on)
	return nil
}

// SetWindSuppression toggles wind suppression
func (e *Engine) SetWindSuppression(on bool) error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	e.sync.SetWindSuppression(on)
	return nil
}

// SetInEarDetection toggles in-ear detection
func (e *Engine) SetInEarDetection(on bool) error {
	if err := e.requireConnected(); err != nil {
		return err
	}
	e.sync.SetInEarDetection(on)
	return nil
}

// RefreshStatus runs the query sequence now, in the background
func (e *Engine) RefreshStatus() error {
	_, sched, _, err := e.current()
	if err != nil {
		return err
	}
	sched.Go(func(ctx context.Context) {
		_ = e.poller.QueryAll(ctx)
	})
	return nil
}

// ProbeDevice asks the host whether the device link is up. It returns
// transport.ErrUnsupported when no prober is configured.
func (e *Engine) ProbeDevice(ctx context.Context, address string) (bool, error) {
	if e.opts.Prober == nil {
		return false, transport.ErrUnsupported
	}
	return e.opts.Prober.Connected(ctx, address)
}
