package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/origctl/internal/config"
	"github.com/muurk/origctl/internal/discovery"
	"github.com/muurk/origctl/internal/engine"
	"github.com/muurk/origctl/internal/logging"
	"github.com/muurk/origctl/internal/server"
	"github.com/muurk/origctl/internal/ui"
)

// Bridge client flags
var (
	bridgeURL     string
	bridgeDevice  string
	bridgeTimeout time.Duration
	statusWatch   bool
	connectAuto   bool
	scanTimeout   time.Duration
)

func init() {
	for _, c := range []*cobra.Command{statusCmd, setCmd, refreshCmd, connectCmd, disconnectCmd} {
		c.Flags().StringVar(&bridgeURL, "bridge", "", "Bridge URL, e.g. ws://127.0.0.1:7311/ws (default: local bridge, then mDNS)")
		c.Flags().StringVar(&bridgeDevice, "for", "", "With mDNS, pick the bridge driving this device address")
		c.Flags().DurationVar(&bridgeTimeout, "timeout", 30*time.Second, "Command timeout")
		rootCmd.AddCommand(c)
	}
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Keep printing events until interrupted")
	connectCmd.Flags().BoolVar(&connectAuto, "auto-game-mode", false, "Enable game mode after connecting")

	bridgesCmd.Flags().DurationVar(&scanTimeout, "scan-timeout", discovery.DefaultScanTimeout, "mDNS scan duration")
	rootCmd.AddCommand(bridgesCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show earbud status",
	Long: `Show the connection, battery and feature state held by a running daemon.

With --watch, events are printed as they arrive until interrupted.`,
	Example: `  origctl status
  origctl status --watch
  origctl status --bridge ws://desk.local:7311/ws`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var setCmd = &cobra.Command{
	Use:   "set <feature> <value>",
	Short: "Change an earbud setting",
	Long: `Change an earbud setting through the running daemon.

Features and values:
  anc          off, transparent, normal, deep, wind_suppression
  eq           blue, balanced, bass, pure, game, fine, vocal
  game         on, off (also turns low latency on or off)
  low-latency  on, off
  dual-conn    on, off
  wind         on, off
  in-ear       on, off`,
	Example: `  origctl set anc normal
  origctl set eq bass
  origctl set game on`,
	Args: cobra.ExactArgs(2),
	RunE: runSet,
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Query battery and feature state now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doCommand(engine.Command{Kind: engine.CommandRefreshStatus}, "Status refresh requested")
	},
}

var connectCmd = &cobra.Command{
	Use:   "connect [address]",
	Short: "Ask the daemon to connect",
	Long: `Ask the daemon to connect to the earbuds. Without an address the
daemon's configured device is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConnect,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Ask the daemon to disconnect",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return doCommand(engine.Command{Kind: engine.CommandDisconnect}, "Disconnected")
	},
}

var bridgesCmd = &cobra.Command{
	Use:   "bridges",
	Short: "List origctl daemons advertised on the network",
	Args:  cobra.NoArgs,
	RunE:  runBridges,
}

// troubleshooting is shown when no bridge can be reached
var troubleshooting = []string{
	"Start the daemon with 'origctl run --device <address>'",
	"Use 'origctl run --advertise' to find it with mDNS",
	"Pass --bridge ws://host:port/ws to name it directly",
}

// bridgeCandidates lists the URLs to try when --bridge is not given
func bridgeCandidates(explicit string, prefs *config.Preferences) []string {
	if explicit != "" {
		return []string{explicit}
	}
	listen := config.DefaultBridgeListen
	if prefs != nil && prefs.Bridge != nil && prefs.Bridge.Listen != "" {
		listen = prefs.Bridge.Listen
	}
	if strings.HasPrefix(listen, ":") {
		listen = "127.0.0.1" + listen
	}
	return []string{"ws://" + listen + discovery.DefaultPath}
}

// openBridge connects to the bridge named by --bridge, else the local bridge
// from preferences, else one found with mDNS
func openBridge(ctx context.Context) (*server.Client, error) {
	var prefs *config.Preferences
	if registry, err := config.LoadRegistry(); err == nil {
		prefs = registry.Preferences
	}

	var errs []error
	for _, url := range bridgeCandidates(bridgeURL, prefs) {
		client, err := server.Dial(ctx, url)
		if err == nil {
			return client, nil
		}
		logging.Debug("Bridge not reachable", zap.String("url", url), zap.Error(err))
		errs = append(errs, err)
	}
	if bridgeURL != "" {
		return nil, errors.Join(errs...)
	}

	bridge, err := discovery.FindBridge(ctx, bridgeDevice)
	if err != nil {
		return nil, errors.Join(append(errs, err)...)
	}
	logging.Info("Found bridge", zap.String("bridge", bridge.String()))
	return server.Dial(ctx, bridge.URL())
}

func withBridge(fn func(ctx context.Context, client *server.Client) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), bridgeTimeout)
	defer cancel()

	client, err := openBridge(ctx)
	if err != nil {
		fmt.Println(ui.NewFailureResult("No origctl daemon reachable", err, troubleshooting).
			SetPlain(ui.NewView().Plain).Render())
		return errors.New("no bridge")
	}
	defer client.Close()

	return fn(ctx, client)
}

// doCommand sends one command and prints the outcome
func doCommand(cmd engine.Command, success string, details ...ui.Param) error {
	return withBridge(func(ctx context.Context, client *server.Client) error {
		plain := ui.NewView().Plain
		if err := client.Do(ctx, cmd); err != nil {
			fmt.Println(ui.NewFailureResult(cmd.Kind.String()+" failed", err, nil).SetPlain(plain).Render())
			return err
		}
		fmt.Println(ui.NewSuccessResult(success, details).SetPlain(plain).Render())
		return nil
	})
}

func runStatus(cmd *cobra.Command, args []string) error {
	if !statusWatch {
		return withBridge(func(ctx context.Context, client *server.Client) error {
			fmt.Println(ui.NewView().Snapshot(client.Snapshot()))
			return nil
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), bridgeTimeout)
	client, err := openBridge(ctx)
	cancel()
	if err != nil {
		return err
	}
	defer client.Close()

	view := ui.NewView()
	fmt.Println(view.Snapshot(client.Snapshot()))

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	for {
		select {
		case <-sigCtx.Done():
			return nil
		case ev, ok := <-client.Events():
			if !ok {
				return client.Err()
			}
			fmt.Println(view.Event(time.Now(), ev))
		}
	}
}

func runSet(cmd *cobra.Command, args []string) error {
	command, err := engine.ParseSetCommand(args[0], args[1])
	if err != nil {
		return err
	}
	return doCommand(command, fmt.Sprintf("%s set to %s", args[0], strings.ToLower(args[1])))
}

func runConnect(cmd *cobra.Command, args []string) error {
	command := engine.Command{Kind: engine.CommandConnect, AutoGameMode: connectAuto}
	if len(args) == 1 {
		command.Address = config.NormalizeAddress(args[0])
	}
	return withBridge(func(ctx context.Context, client *server.Client) error {
		if command.Address == "" {
			command.Address = client.Snapshot().Address
		}
		if command.Address == "" {
			return errors.New("the daemon has no device; pass an address")
		}
		plain := ui.NewView().Plain
		if err := client.Do(ctx, command); err != nil {
			fmt.Println(ui.NewFailureResult("Connect failed", err, nil).SetPlain(plain).Render())
			return err
		}
		fmt.Println(connectResult(command).SetPlain(plain).Render())
		return nil
	})
}

// connectResult describes a successful connect command
func connectResult(command engine.Command) *ui.Result {
	result := ui.NewSuccessResult("Connected", nil).AddDetail("Address", command.Address)
	if command.AutoGameMode {
		result.AddDetail("Game mode", "on after first status query")
	}
	return result
}

func runBridges(cmd *cobra.Command, args []string) error {
	fmt.Printf("Scanning for origctl bridges (timeout: %v)...\n\n", scanTimeout)

	scanner := discovery.NewScanner()
	scanner.Timeout = scanTimeout
	bridges, err := scanner.ScanForBridges(context.Background())
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(bridges) == 0 {
		fmt.Println("No bridges found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Start the daemon with 'origctl run --advertise'")
		fmt.Println("  - Check that multicast DNS is not blocked on this network")
		fmt.Println("  - Try increasing --scan-timeout")
		return nil
	}

	fmt.Printf("Found %d bridge(s):\n\n", len(bridges))
	for i, b := range bridges {
		fmt.Printf("%d. %s\n", i+1, b.Instance)
		fmt.Printf("   URL:     %s\n", b.URL())
		if b.Device != "" {
			fmt.Printf("   Device:  %s\n", b.Device)
		}
		if v := b.GetMetadata("version"); v != "" {
			fmt.Printf("   Version: %s\n", v)
		}
		fmt.Println()
	}
	return nil
}
