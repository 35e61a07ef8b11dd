package bluez

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestIsSupported(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"YUANDAO TWS", true},
		{"OriG Pro", true},
		{"NiceHCK HB3", true},
		{"nicehck", true},
		{"Pixel Buds", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsSupported(tt.name); got != tt.want {
			t.Errorf("IsSupported(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		info DeviceInfo
		want string
	}{
		{"alias wins", DeviceInfo{Alias: "My Buds", Name: "OriG", Address: "AA:BB:CC:DD:EE:FF"}, "My Buds"},
		{"name fallback", DeviceInfo{Name: "OriG", Address: "AA:BB:CC:DD:EE:FF"}, "OriG"},
		{"address fallback", DeviceInfo{Address: "AA:BB:CC:DD:EE:FF"}, "AA:BB:CC:DD:EE:FF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDevicePath(t *testing.T) {
	got := DevicePath("", "aa:bb:cc:dd:ee:ff")
	want := dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")
	if got != want {
		t.Errorf("DevicePath() = %q, want %q", got, want)
	}

	if got := DevicePath("hci1", "AA:BB:CC:DD:EE:FF"); got != "/org/bluez/hci1/dev_AA_BB_CC_DD_EE_FF" {
		t.Errorf("DevicePath(hci1) = %q", got)
	}
}

func TestAddressFromPath(t *testing.T) {
	if got := addressFromPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF"); got != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("addressFromPath() = %q, want %q", got, "AA:BB:CC:DD:EE:FF")
	}
	if got := addressFromPath("/org/bluez/hci0"); got != "" {
		t.Errorf("addressFromPath(adapter) = %q, want empty", got)
	}
}

func TestDeviceFromProps(t *testing.T) {
	path := dbus.ObjectPath("/org/bluez/hci0/dev_11_22_33_44_55_66")
	props := map[string]dbus.Variant{
		"Name":      dbus.MakeVariant("OriG Air"),
		"Alias":     dbus.MakeVariant("Desk buds"),
		"Paired":    dbus.MakeVariant(true),
		"Connected": dbus.MakeVariant(true),
		"UUIDs":     dbus.MakeVariant([]string{"0000A100-1000-8000-4E48-434B4354524C"}),
	}

	d := deviceFromProps(path, props)
	if d.Address != "11:22:33:44:55:66" {
		t.Errorf("Address = %q, want address from path", d.Address)
	}
	if d.Name != "OriG Air" || d.Alias != "Desk buds" {
		t.Errorf("Name/Alias = %q/%q", d.Name, d.Alias)
	}
	if !d.Paired || !d.Connected {
		t.Errorf("Paired/Connected = %v/%v, want true/true", d.Paired, d.Connected)
	}
	if !d.HasService("0000a100-1000-8000-4e48-434b4354524c") {
		t.Error("HasService() = false, want true (case-insensitive)")
	}
	if !d.Supported() {
		t.Error("Supported() = false, want true")
	}
}

func TestDeviceFromPropsWrongTypes(t *testing.T) {
	props := map[string]dbus.Variant{
		"Address":   dbus.MakeVariant(uint32(7)),
		"Connected": dbus.MakeVariant("yes"),
	}
	d := deviceFromProps("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF", props)
	if d.Address != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("Address = %q, want fallback to path", d.Address)
	}
	if d.Connected {
		t.Error("Connected = true for non-bool property")
	}
}

func TestDevicesFromObjects(t *testing.T) {
	objs := map[dbus.ObjectPath]map[string]map[string]dbus.Variant{
		"/org/bluez/hci0": {
			"org.bluez.Adapter1": {"Address": dbus.MakeVariant("00:00:00:00:00:01")},
		},
		"/org/bluez/hci0/dev_AA_AA_AA_AA_AA_AA": {
			deviceIface: {"Name": dbus.MakeVariant("Android Phone")},
		},
		"/org/bluez/hci0/dev_BB_BB_BB_BB_BB_BB": {
			deviceIface: {"Name": dbus.MakeVariant("YUANDAO-X")},
		},
		"/org/bluez/hci0/dev_CC_CC_CC_CC_CC_CC": {
			deviceIface: {"Name": dbus.MakeVariant("Car Kit")},
		},
	}

	got := devicesFromObjects(objs)
	if len(got) != 3 {
		t.Fatalf("devicesFromObjects() returned %d devices, want 3", len(got))
	}

	wantOrder := []string{"YUANDAO-X", "Android Phone", "Car Kit"}
	for i, name := range wantOrder {
		if got[i].Name != name {
			t.Errorf("device[%d] = %q, want %q", i, got[i].Name, name)
		}
	}
}

func TestIsUnknownObject(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"value", dbus.Error{Name: errUnknownObject}, true},
		{"pointer", &dbus.Error{Name: errUnknownMethod}, true},
		{"other dbus", dbus.Error{Name: "org.bluez.Error.Failed"}, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUnknownObject(tt.err); got != tt.want {
				t.Errorf("isUnknownObject() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClientCloseWithoutBus(t *testing.T) {
	c := NewClient("")
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v, want nil", err)
	}
}
