// Package bluez talks to the BlueZ daemon over the D-Bus system bus.
//
// It resolves device display names (alias, then name, then address), probes
// whether the host currently holds a link to a device, and lists the devices
// BlueZ knows about with the supported earbuds first.
package bluez

import (
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

// DefaultAdapter is the controller used to build device object paths
const DefaultAdapter = "hci0"

// supportedNameTokens mark device names of the OriG earbud family
var supportedNameTokens = []string{"yuandao", "orig", "nicehck"}

// DeviceInfo is the subset of org.bluez.Device1 properties origctl uses
type DeviceInfo struct {
	Path      string
	Address   string
	Name      string
	Alias     string
	Paired    bool
	Connected bool
	UUIDs     []string
}

// DisplayName returns the alias, then the name, then the address
func (d DeviceInfo) DisplayName() string {
	if d.Alias != "" {
		return d.Alias
	}
	if d.Name != "" {
		return d.Name
	}
	return d.Address
}

// Supported reports whether the device name marks a supported earbud model
func (d DeviceInfo) Supported() bool {
	return IsSupported(d.Name) || IsSupported(d.Alias)
}

// HasService reports whether the device advertises the given service UUID
func (d DeviceInfo) HasService(uuid string) bool {
	for _, u := range d.UUIDs {
		if strings.EqualFold(u, uuid) {
			return true
		}
	}
	return false
}

// IsSupported reports whether name contains one of the supported model tokens
// (case-insensitive).
func IsSupported(name string) bool {
	lower := strings.ToLower(name)
	for _, token := range supportedNameTokens {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// SortDevices orders devices with supported ones first, then by display name
func SortDevices(devices []DeviceInfo) {
	sort.SliceStable(devices, func(i, j int) bool {
		si, sj := devices[i].Supported(), devices[j].Supported()
		if si != sj {
			return si
		}
		return strings.ToLower(devices[i].DisplayName()) < strings.ToLower(devices[j].DisplayName())
	})
}

// DevicePath returns the BlueZ object path for address on adapter
func DevicePath(adapter, address string) dbus.ObjectPath {
	if adapter == "" {
		adapter = DefaultAdapter
	}
	mac := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(address)), ":", "_")
	return dbus.ObjectPath("/org/bluez/" + adapter + "/dev_" + mac)
}

// addressFromPath extracts the MAC from a .../dev_XX_XX_XX_XX_XX_XX path
func addressFromPath(p dbus.ObjectPath) string {
	s := string(p)
	idx := strings.LastIndex(s, "/dev_")
	if idx < 0 {
		return ""
	}
	return strings.ReplaceAll(s[idx+5:], "_", ":")
}

// deviceFromProps decodes Device1 properties
func deviceFromProps(path dbus.ObjectPath, props map[string]dbus.Variant) DeviceInfo {
	d := DeviceInfo{Path: string(path)}
	if v, ok := props["Address"]; ok {
		d.Address, _ = v.Value().(string)
	}
	if v, ok := props["Name"]; ok {
		d.Name, _ = v.Value().(string)
	}
	if v, ok := props["Alias"]; ok {
		d.Alias, _ = v.Value().(string)
	}
	if v, ok := props["Paired"]; ok {
		d.Paired, _ = v.Value().(bool)
	}
	if v, ok := props["Connected"]; ok {
		d.Connected, _ = v.Value().(bool)
	}
	if v, ok := props["UUIDs"]; ok {
		d.UUIDs, _ = v.Value().([]string)
	}
	if d.Address == "" {
		d.Address = addressFromPath(path)
	}
	return d
}
