package ui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muurk/origctl/internal/battery"
	"github.com/muurk/origctl/internal/bluez"
	"github.com/muurk/origctl/internal/engine"
)

// View renders engine state for the terminal
type View struct {
	Width int
	Plain bool
}

// NewView creates a view sized to the terminal. Plain is set when stdout is
// not a terminal.
func NewView() *View {
	return &View{Plain: !IsTerminal(os.Stdout), Width: GetTerminalWidth()}
}

// Snapshot renders the full status of the earbuds
func (v *View) Snapshot(snap engine.Snapshot) string {
	st := snap.State
	name := st.DeviceName
	if name == "" {
		name = snap.Address
	}

	connection := Param{Key: "Connection", Value: snap.Connection.String(), Style: connectionStyle(snap.Connection)}
	if snap.LastError != "" && snap.Connection == engine.Error {
		connection.Value += " (" + snap.LastError + ")"
	}

	params := []Param{
		{Key: "Device", Value: name},
		{Key: "Address", Value: orDash(snap.Address)},
		connection,
		batteryParam("Battery", aggregate(st.Battery)),
		batteryParam("Left", st.Battery.Left),
		batteryParam("Right", st.Battery.Right),
		batteryParam("Case", st.Battery.Case),
		{Key: "ANC", Value: st.AncMode.String()},
		{Key: "EQ", Value: st.EqMode.String()},
		switchParam("Game mode", st.GameMode),
		switchParam("Low latency", st.LowLatency),
		switchParam("Dual connection", st.DualConn),
		switchParam("Wind suppression", st.WindSuppression),
		switchParam("In-ear detection", st.InEarDetection),
	}

	return NewHeader("OriG earbuds", "", params).
		SetWidth(v.Width).
		SetPlain(v.Plain).
		Render()
}

// Event renders one event as a single line prefixed with the time
func (v *View) Event(at time.Time, ev engine.Event) string {
	stamp := at.Format("15:04:05")
	line := FormatEvent(ev)
	if v.Plain {
		return stamp + " " + line
	}
	return OffStyle.Render(stamp) + " " + ValueStyle.Render(line)
}

// Devices renders a device list, one per line
func (v *View) Devices(devices []bluez.DeviceInfo) string {
	if len(devices) == 0 {
		return "No Bluetooth devices known to BlueZ"
	}

	var b strings.Builder
	for _, d := range devices {
		var flags []string
		if d.Supported() {
			flags = append(flags, "supported")
		}
		if d.Paired {
			flags = append(flags, "paired")
		}
		if d.Connected {
			flags = append(flags, "connected")
		}
		note := ""
		if len(flags) > 0 {
			note = " (" + strings.Join(flags, ", ") + ")"
		}

		if v.Plain {
			fmt.Fprintf(&b, "%s  %s%s\n", d.Address, d.DisplayName(), note)
			continue
		}
		nameStyle := OffStyle
		if d.Supported() {
			nameStyle = ValueStyle
		}
		fmt.Fprintf(&b, "  %s  %s%s\n",
			OffStyle.Render(d.Address),
			nameStyle.Render(d.DisplayName()),
			OffStyle.Render(note),
		)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// FormatEvent describes ev in a few words
func FormatEvent(ev engine.Event) string {
	switch ev.Kind {
	case engine.EventConnectionStateChanged:
		if ev.Error != "" {
			return fmt.Sprintf("connection: %s (%s)", ev.Connection, ev.Error)
		}
		return "connection: " + ev.Connection.String()
	case engine.EventBatteryChanged:
		if ev.Battery == nil {
			return "battery: unknown"
		}
		return "battery: " + FormatBattery(*ev.Battery)
	case engine.EventAncModeChanged:
		return "anc: " + ev.AncMode.String()
	case engine.EventEqChanged:
		return "eq: " + ev.EqMode.String()
	case engine.EventGameModeChanged:
		return "game mode: " + onOff(ev.Enabled)
	case engine.EventLowLatencyChanged:
		return "low latency: " + onOff(ev.Enabled)
	case engine.EventDualConnChanged:
		return "dual connection: " + onOff(ev.Enabled)
	case engine.EventWindSuppressionChanged:
		return "wind suppression: " + onOff(ev.Enabled)
	case engine.EventInEarDetectionChanged:
		return "in-ear detection: " + onOff(ev.Enabled)
	case engine.EventDeviceConnected:
		return "connected to " + orDash(ev.DeviceName)
	case engine.EventDeviceDisconnected:
		return "disconnected"
	default:
		return ev.Kind.String()
	}
}

// FormatBattery summarises all three components, e.g. "L 80% R 75% case -"
func FormatBattery(s battery.Status) string {
	return fmt.Sprintf("L %s R %s case %s", s.Left, s.Right, s.Case)
}

func aggregate(s battery.Status) battery.Reading {
	level, ok := s.Aggregate()
	return battery.Reading{
		Level:    level,
		Present:  ok,
		Charging: ok && (s.Left.Charging || s.Right.Charging),
	}
}

func batteryParam(key string, r battery.Reading) Param {
	p := Param{Key: key, Value: r.String()}
	switch {
	case !r.Present:
		p.Style = &OffStyle
	case r.Charging:
		p.Style = &ChargingStyle
	}
	return p
}

func switchParam(key string, on bool) Param {
	style := &OffStyle
	if on {
		style = &OnStyle
	}
	return Param{Key: key, Value: onOff(on), Style: style}
}

func connectionStyle(state engine.ConnectionState) *lipgloss.Style {
	switch state {
	case engine.Connected:
		return &OnStyle
	case engine.Connecting:
		return &ChargingStyle
	case engine.Error:
		return &ErrorMessageStyle
	default:
		return &OffStyle
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
