// Package config provides user configuration management for origctl.
//
// This package manages a YAML-based configuration file that stores per-device
// metadata (nickname, transport, RFCOMM channel) and application preferences
// (poll interval, settle delay, auto game mode, bridge settings). The
// configuration follows OS-specific conventions for storage location.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/origctl/config.yaml or $HOME/.config/origctl/config.yaml
//   - macOS: $HOME/.config/origctl/config.yaml
//   - Windows: %LOCALAPPDATA%\origctl\config.yaml
//
// # Example File
//
//	version: 1
//	devices:
//	  "AA:BB:CC:DD:EE:FF":
//	    nickname: Commute buds
//	    transport: rfcomm
//	    channel: 1
//	preferences:
//	  auto_game_mode: false
//	  poll_interval: 30s
//	  settle_delay: 300ms
//	  connect_timeout: 10s
//	  bridge:
//	    listen: 127.0.0.1:7311
//	    advertise: false
//
// # Usage Example
//
//	registry, err := config.LoadRegistry()
//	if err != nil {
//	    return err
//	}
//	registry.SetDeviceNickname("AA:BB:CC:DD:EE:FF", "Commute buds")
//	if err := registry.Save(); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// The global registry uses sync.Once for safe initialization across goroutines.
// File writes go through WriteFileAtomic, which is serialised by a mutex.
package config
