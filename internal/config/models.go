package config

import (
	"strings"
	"time"
)

// Transport kinds a device can be reached through
const (
	TransportRFCOMM    = "rfcomm"
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
)

// Preference defaults
const (
	DefaultPollInterval   = 30 * time.Second
	DefaultSettleDelay    = 300 * time.Millisecond
	DefaultConnectTimeout = 10 * time.Second
	DefaultChannel        = 1
	DefaultBridgeListen   = "127.0.0.1:7311"
)

// Registry represents the entire user configuration file.
// This stores user-defined metadata for earbuds and application preferences.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by Bluetooth address (upper case)
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents user-defined metadata for a single pair of earbuds.
type Device struct {
	Nickname   string    `yaml:"nickname,omitempty"`    // User-friendly name
	LastName   string    `yaml:"last_name,omitempty"`   // Last name resolved from BlueZ
	Transport  string    `yaml:"transport,omitempty"`   // rfcomm, serial or websocket
	Channel    int       `yaml:"channel,omitempty"`     // RFCOMM channel
	SerialPort string    `yaml:"serial_port,omitempty"` // Bound TTY, e.g. /dev/rfcomm0
	RelayURL   string    `yaml:"relay_url,omitempty"`   // websocket relay, host:port/path
	LastSeen   time.Time `yaml:"last_seen,omitempty"`   // Last successful connection
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	AutoGameMode   bool          `yaml:"auto_game_mode"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	SettleDelay    time.Duration `yaml:"settle_delay"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	LogLevel       string        `yaml:"log_level,omitempty"`
	DefaultDevice  string        `yaml:"default_device,omitempty"`
	Bridge         *BridgePrefs  `yaml:"bridge,omitempty"`
}

// BridgePrefs configures the local event bridge.
type BridgePrefs struct {
	Listen    string `yaml:"listen"`
	Advertise bool   `yaml:"advertise"`
}

// NewPreferences returns preferences populated with defaults.
func NewPreferences() *Preferences {
	return &Preferences{
		PollInterval:   DefaultPollInterval,
		SettleDelay:    DefaultSettleDelay,
		ConnectTimeout: DefaultConnectTimeout,
		Bridge: &BridgePrefs{
			Listen: DefaultBridgeListen,
		},
	}
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: NewPreferences(),
	}
}

// applyDefaults fills zero values left by an older or hand-edited file.
func (r *Registry) applyDefaults() {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if r.Preferences == nil {
		r.Preferences = NewPreferences()
		return
	}
	p := r.Preferences
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.SettleDelay <= 0 {
		p.SettleDelay = DefaultSettleDelay
	}
	if p.ConnectTimeout <= 0 {
		p.ConnectTimeout = DefaultConnectTimeout
	}
	if p.Bridge == nil {
		p.Bridge = &BridgePrefs{Listen: DefaultBridgeListen}
	} else if p.Bridge.Listen == "" {
		p.Bridge.Listen = DefaultBridgeListen
	}
}

// NormalizeAddress upper-cases a Bluetooth address for use as a registry key.
func NormalizeAddress(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}

// GetDevice retrieves device metadata by Bluetooth address.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(address string) *Device {
	return r.Devices[NormalizeAddress(address)]
}

// EnsureDevice ensures a device entry exists in the registry.
// If the device doesn't exist, creates a new entry defaulting to RFCOMM.
func (r *Registry) EnsureDevice(address string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	key := NormalizeAddress(address)
	if device, exists := r.Devices[key]; exists {
		return device
	}

	device := &Device{
		Transport: TransportRFCOMM,
		Channel:   DefaultChannel,
	}
	r.Devices[key] = device
	return device
}

// UpdateDeviceLastSeen records a successful connection and the resolved name.
func (r *Registry) UpdateDeviceLastSeen(address, name string) {
	device := r.EnsureDevice(address)
	device.LastSeen = time.Now()
	if name != "" {
		device.LastName = name
	}
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(address, nickname string) {
	device := r.EnsureDevice(address)
	device.Nickname = nickname
}

// DisplayName returns the nickname, else the last resolved name, else the address.
func (r *Registry) DisplayName(address string) string {
	if device := r.GetDevice(address); device != nil {
		if device.Nickname != "" {
			return device.Nickname
		}
		if device.LastName != "" {
			return device.LastName
		}
	}
	return NormalizeAddress(address)
}
