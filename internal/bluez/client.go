package bluez

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/muurk/origctl/internal/logging"
	"go.uber.org/zap"
)

const (
	bluezService    = "org.bluez"
	deviceIface     = "org.bluez.Device1"
	objManagerIface = "org.freedesktop.DBus.ObjectManager"
	propsIface      = "org.freedesktop.DBus.Properties"

	errUnknownObject = "org.freedesktop.DBus.Error.UnknownObject"
	errUnknownMethod = "org.freedesktop.DBus.Error.UnknownMethod"
)

// ErrDeviceNotFound is returned when BlueZ has no object for an address
var ErrDeviceNotFound = errors.New("device not known to BlueZ")

// Client is a lazily connected BlueZ client. It is safe for concurrent use.
type Client struct {
	adapter string

	mu   sync.Mutex
	conn *dbus.Conn
}

// NewClient returns a client for the given adapter ("" selects hci0)
func NewClient(adapter string) *Client {
	if adapter == "" {
		adapter = DefaultAdapter
	}
	return &Client{adapter: adapter}
}

// bus connects to the system bus on first use
func (c *Client) bus() (*dbus.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		return c.conn, nil
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("bluez: connect system bus: %w", err)
	}
	c.conn = conn
	return conn, nil
}

// Close releases the bus connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Device reads the Device1 properties for address
func (c *Client) Device(ctx context.Context, address string) (DeviceInfo, error) {
	conn, err := c.bus()
	if err != nil {
		return DeviceInfo{}, err
	}

	path := DevicePath(c.adapter, address)
	var props map[string]dbus.Variant
	call := conn.Object(bluezService, path).CallWithContext(ctx, propsIface+".GetAll", 0, deviceIface)
	if call.Err != nil {
		if isUnknownObject(call.Err) {
			return DeviceInfo{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, address)
		}
		return DeviceInfo{}, fmt.Errorf("bluez: GetAll %s: %w", path, call.Err)
	}
	if err := call.Store(&props); err != nil {
		return DeviceInfo{}, fmt.Errorf("bluez: decode properties: %w", err)
	}
	return deviceFromProps(path, props), nil
}

// Devices lists every device object BlueZ manages, supported devices first
func (c *Client) Devices(ctx context.Context) ([]DeviceInfo, error) {
	conn, err := c.bus()
	if err != nil {
		return nil, err
	}

	var objs map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	call := conn.Object(bluezService, dbus.ObjectPath("/")).CallWithContext(ctx, objManagerIface+".GetManagedObjects", 0)
	if call.Err != nil {
		return nil, fmt.Errorf("bluez: GetManagedObjects: %w", call.Err)
	}
	if err := call.Store(&objs); err != nil {
		return nil, fmt.Errorf("bluez: decode GetManagedObjects: %w", err)
	}

	out := devicesFromObjects(objs)
	logging.Debug("BlueZ devices listed", zap.Int("count", len(out)))
	return out, nil
}

// devicesFromObjects extracts Device1 objects from a GetManagedObjects reply
func devicesFromObjects(objs map[dbus.ObjectPath]map[string]map[string]dbus.Variant) []DeviceInfo {
	var out []DeviceInfo
	for path, ifaces := range objs {
		props, ok := ifaces[deviceIface]
		if !ok {
			continue
		}
		out = append(out, deviceFromProps(path, props))
	}
	SortDevices(out)
	return out
}

// DisplayName resolves the name shown for address: alias, name, address
func (c *Client) DisplayName(ctx context.Context, address string) (string, error) {
	info, err := c.Device(ctx, address)
	if err != nil {
		return address, err
	}
	return info.DisplayName(), nil
}

// Connected reports the Device1 Connected property for address. Failure to
// query is returned as an error, never as "not connected".
func (c *Client) Connected(ctx context.Context, address string) (bool, error) {
	info, err := c.Device(ctx, address)
	if err != nil {
		return false, err
	}
	return info.Connected, nil
}

func isUnknownObject(err error) bool {
	var dbusErr dbus.Error
	if errors.As(err, &dbusErr) {
		return dbusErr.Name == errUnknownObject || dbusErr.Name == errUnknownMethod
	}
	var dbusErrPtr *dbus.Error
	if errors.As(err, &dbusErrPtr) {
		return dbusErrPtr.Name == errUnknownObject || dbusErrPtr.Name == errUnknownMethod
	}
	return false
}
