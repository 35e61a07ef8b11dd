package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/origctl/internal/battery"
	"github.com/muurk/origctl/internal/bluez"
	"github.com/muurk/origctl/internal/config"
	"github.com/muurk/origctl/internal/engine"
	"github.com/muurk/origctl/internal/logging"
	"github.com/muurk/origctl/internal/server"
	"github.com/muurk/origctl/internal/transport"
	"github.com/muurk/origctl/internal/ui"
	"github.com/muurk/origctl/internal/version"
)

// linkCheckInterval is how often the daemon asks BlueZ about the link
const linkCheckInterval = 5 * time.Second

// Run command flags
var (
	runDevice      string
	runTransport   string
	runChannel     int
	runPort        string
	runRelay       string
	runListen      string
	runAdvertise   bool
	runAutoGame    bool
	runNoReconnect bool
	runQuiet       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to the earbuds and serve the event bridge",
	Long: `Connect to a pair of earbuds and keep the connection open.

The daemon queries battery and feature state after connecting, polls it
periodically, and serves a websocket event bridge that the status, set and
refresh commands talk to. Transport settings given on the command line are
remembered for the device in the configuration file.

Press Ctrl+C to disconnect and exit.`,
	Example: `  # Connect over RFCOMM channel 1 (default)
  origctl run --device AA:BB:CC:DD:EE:FF

  # Use a bound serial port
  origctl run --device AA:BB:CC:DD:EE:FF --transport serial --port /dev/rfcomm0

  # Reach the earbuds through a websocket relay and advertise the bridge
  origctl run --device AA:BB:CC:DD:EE:FF --transport websocket --relay relay.local:8080/spp --advertise

  # Turn game mode on after every connect
  origctl run --device AA:BB:CC:DD:EE:FF --auto-game-mode`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().StringVar(&runDevice, "device", "", "Bluetooth address of the earbuds (default from preferences)")
	runCmd.Flags().StringVar(&runTransport, "transport", "", "Transport: rfcomm, serial or websocket (default rfcomm)")
	runCmd.Flags().IntVar(&runChannel, "channel", config.DefaultChannel, "RFCOMM channel")
	runCmd.Flags().StringVar(&runPort, "port", "", "Serial port for the serial transport, e.g. /dev/rfcomm0")
	runCmd.Flags().StringVar(&runRelay, "relay", "", "Relay URL for the websocket transport")
	runCmd.Flags().StringVar(&runListen, "listen", "", "Event bridge listen address (default from preferences, "+config.DefaultBridgeListen+")")
	runCmd.Flags().BoolVar(&runAdvertise, "advertise", false, "Advertise the event bridge with mDNS")
	runCmd.Flags().BoolVar(&runAutoGame, "auto-game-mode", false, "Enable game mode after connecting")
	runCmd.Flags().BoolVar(&runNoReconnect, "no-reconnect", false, "Do not reconnect when BlueZ reports the earbuds back")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Do not print events")

	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	registry, err := config.LoadRegistry()
	if err != nil {
		return err
	}
	prefs := registry.Preferences

	address := runDevice
	if address == "" {
		address = prefs.DefaultDevice
	}
	if address == "" {
		return errors.New("no device given: use --device or set default_device in preferences")
	}
	if _, err := transport.ParseAddress(address); err != nil {
		return fmt.Errorf("invalid device address: %w", err)
	}
	address = config.NormalizeAddress(address)

	device := registry.EnsureDevice(address)
	link := linkFromDevice(device)
	flags := cmd.Flags()
	if runTransport != "" {
		link.Transport = runTransport
	}
	if flags.Changed("channel") {
		link.Channel = runChannel
	}
	if flags.Changed("port") {
		link.Port = runPort
	}
	if flags.Changed("relay") {
		link.Relay = runRelay
	}

	dialer, err := newDialer(link)
	if err != nil {
		return err
	}
	link.apply(device)

	autoGame := prefs.AutoGameMode
	if flags.Changed("auto-game-mode") {
		autoGame = runAutoGame
	}
	listen := prefs.Bridge.Listen
	if runListen != "" {
		listen = runListen
	}
	advertise := prefs.Bridge.Advertise
	if flags.Changed("advertise") {
		advertise = runAdvertise
	}

	cache := battery.NewCache(nil)
	if store, err := battery.DefaultFileStore(); err != nil {
		logging.Warn("Battery cache unavailable", zap.Error(err))
	} else {
		cache = battery.NewCache(store)
		if err := cache.Load(); err != nil {
			logging.Warn("Failed to load battery cache", zap.String("path", store.Path()), zap.Error(err))
		}
	}

	bz := bluez.NewClient(bluez.DefaultAdapter)
	defer bz.Close()

	bus := engine.NewBus(0)
	opts := engine.Options{
		Dialer:         dialer,
		Sink:           bus,
		Cache:          cache,
		Resolver:       bz,
		SettleDelay:    prefs.SettleDelay,
		PollInterval:   prefs.PollInterval,
		ConnectTimeout: prefs.ConnectTimeout,
	}
	if link.usesHostBluetooth() {
		opts.Prober = bz
	}
	eng := engine.New(opts)

	srv, err := server.New(&server.Config{
		Listen:    listen,
		Advertise: advertise,
		Instance:  "origctl " + address,
		Device:    address,
		Version:   version.Version,
	}, eng, bus)
	if err != nil {
		return err
	}
	if err := srv.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	view := ui.NewView()
	fmt.Println(ui.NewHeader("origctl daemon", "origctl run", []ui.Param{
		{Key: "Device", Value: registry.DisplayName(address)},
		{Key: "Address", Value: address},
		{Key: "Transport", Value: describeLink(link)},
		{Key: "Bridge", Value: "ws://" + srv.Addr().String() + "/ws"},
	}).SetPlain(view.Plain).Render())

	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()
	stopWatch := startWatchEvents(ctx, events, view, registry, address)

	copts := engine.ConnectOptions{AutoGameMode: autoGame}
	go connectOnce(ctx, eng, address, copts)
	if opts.Prober != nil {
		go watchLink(ctx, eng, address, copts, !runNoReconnect)
	}

	err = srv.Serve(ctx)
	eng.Disconnect()
	// The watcher writes the registry; it must be gone before the final save
	stopWatch()
	if saveErr := config.SaveGlobal(); saveErr != nil {
		logging.Warn("Failed to save configuration", zap.Error(saveErr))
	}
	return err
}

func describeLink(l linkOptions) string {
	switch l.Transport {
	case config.TransportSerial:
		return "serial " + l.Port
	case config.TransportWebSocket:
		return "websocket relay " + l.Relay
	default:
		return fmt.Sprintf("rfcomm channel %d", l.Channel)
	}
}

// connectOnce makes the initial connection attempt. A failure leaves the
// daemon running so a client or a link change can retry.
func connectOnce(ctx context.Context, eng *engine.Engine, address string, copts engine.ConnectOptions) {
	if err := eng.Connect(ctx, engine.Device{Address: address}, copts); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

// startWatchEvents runs watchEvents in a goroutine. The returned stop
// function ends it and waits for it to return.
func startWatchEvents(ctx context.Context, events <-chan engine.Event, view *ui.View, registry *config.Registry, address string) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		watchEvents(ctx, events, view, registry, address)
	}()
	return func() {
		cancel()
		<-done
	}
}

// watchEvents prints events and records successful connections
func watchEvents(ctx context.Context, events <-chan engine.Event, view *ui.View, registry *config.Registry, address string) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !runQuiet {
				fmt.Println(view.Event(time.Now(), ev))
			}
			if ev.Kind == engine.EventDeviceConnected {
				name := ev.DeviceName
				if name == address {
					name = ""
				}
				registry.UpdateDeviceLastSeen(address, name)
				if err := registry.Save(); err != nil {
					logging.Warn("Failed to save configuration", zap.Error(err))
				}
			}
		}
	}
}

// watchLink follows the host's view of the Bluetooth link: it tears the
// engine down when BlueZ reports the earbuds gone and, if reconnect is set,
// connects again when they come back.
func watchLink(ctx context.Context, eng *engine.Engine, address string, copts engine.ConnectOptions, reconnect bool) {
	ticker := time.NewTicker(linkCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		up, err := eng.ProbeDevice(ctx, address)
		if err != nil {
			logging.Debug("Link probe failed", zap.String("address", address), zap.Error(err))
			continue
		}

		switch state := eng.State(); {
		case state == engine.Connected && !up:
			logging.Info("BlueZ reports earbuds disconnected", zap.String("address", address))
			eng.DeviceDisconnected(address)
		case reconnect && up && (state == engine.Disconnected || state == engine.Error):
			logging.Info("BlueZ reports earbuds connected, reconnecting", zap.String("address", address))
			if err := eng.Connect(ctx, engine.Device{Address: address}, copts); err != nil &&
				!errors.Is(err, engine.ErrConnectInProgress) && !errors.Is(err, engine.ErrAlreadyConnected) {
				logging.Warn("Reconnect failed", zap.String("address", address), zap.Error(err))
			}
		}
	}
}
