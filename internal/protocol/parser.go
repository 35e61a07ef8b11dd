package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Minimum frame sizes per report kind
const (
	minStatusFrame  = HeaderSize + 1 // Single status byte at offset 6
	minBatteryFrame = HeaderSize + 3 // Left, right, case at offsets 6, 7, 8
)

// maxBatteryLevel caps a battery byte; the byte is the level itself
const maxBatteryLevel = 100

// Report is a decoded device report
type Report interface {
	Opcode() Opcode
	String() string
}

// BatteryLevel is one component of a battery report. A Level of 0 means the
// component is not reporting.
type BatteryLevel struct {
	Level int
}

// Active reports whether the component sent a live level
func (b BatteryLevel) Active() bool {
	return b.Level > 0
}

func (b BatteryLevel) String() string {
	if !b.Active() {
		return "-"
	}
	return fmt.Sprintf("%d%%", b.Level)
}

// BatteryReport carries the left, right and case battery levels
type BatteryReport struct {
	Left  BatteryLevel
	Right BatteryLevel
	Case  BatteryLevel
}

func (r *BatteryReport) Opcode() Opcode { return OpBattery }

func (r *BatteryReport) String() string {
	return fmt.Sprintf("Battery{left=%s right=%s case=%s}", r.Left, r.Right, r.Case)
}

// AncReport carries the current noise control mode
type AncReport struct {
	Mode AncMode
}

func (r *AncReport) Opcode() Opcode { return OpAncQuery }

func (r *AncReport) String() string {
	return fmt.Sprintf("ANC{mode=%s}", r.Mode)
}

// EqReport carries the current equalizer preset
type EqReport struct {
	Mode EqMode
}

func (r *EqReport) Opcode() Opcode { return OpEqQuery }

func (r *EqReport) String() string {
	return fmt.Sprintf("EQ{mode=%s}", r.Mode)
}

// ToggleReport carries the state of a boolean feature
type ToggleReport struct {
	Feature Feature
	Enabled bool
}

func (r *ToggleReport) Opcode() Opcode { return r.Feature.QueryOpcode() }

func (r *ToggleReport) String() string {
	return fmt.Sprintf("Toggle{%s=%t}", r.Feature, r.Enabled)
}

// VersionReport carries the firmware version bytes
type VersionReport struct {
	Raw []byte
}

func (r *VersionReport) Opcode() Opcode { return OpVersion }

// Version renders the version bytes as a dotted string
func (r *VersionReport) Version() string {
	parts := make([]string, len(r.Raw))
	for i, b := range r.Raw {
		parts[i] = strconv.Itoa(int(b))
	}
	return strings.Join(parts, ".")
}

func (r *VersionReport) String() string {
	return fmt.Sprintf("Version{%s}", r.Version())
}

// UnknownReport is any frame without a dedicated parser, or one too short for its opcode
type UnknownReport struct {
	Op      Opcode
	Payload []byte
}

func (r *UnknownReport) Opcode() Opcode { return r.Op }

func (r *UnknownReport) String() string {
	return fmt.Sprintf("Unknown{op=%s payload=% X}", r.Op, r.Payload)
}

// ParseReport decodes a frame into a typed report. It never fails: frames it
// cannot interpret come back as *UnknownReport.
func ParseReport(f *Frame) Report {
	if f == nil {
		return &UnknownReport{}
	}
	unknown := &UnknownReport{Op: f.Opcode, Payload: f.Payload}

	switch f.Opcode {
	case OpBattery:
		if len(f.Raw) < minBatteryFrame {
			return unknown
		}
		return &BatteryReport{
			Left:  parseBatteryByte(f.Raw[6]),
			Right: parseBatteryByte(f.Raw[7]),
			Case:  parseBatteryByte(f.Raw[8]),
		}

	case OpAncQuery:
		if len(f.Raw) < minStatusFrame {
			return unknown
		}
		return &AncReport{Mode: ParseAncMode(f.Raw[6])}

	case OpEqQuery:
		if len(f.Raw) < minStatusFrame {
			return unknown
		}
		return &EqReport{Mode: ParseEqMode(f.Raw[6])}

	case OpVersion:
		if len(f.Payload) == 0 {
			return unknown
		}
		return &VersionReport{Raw: f.Payload}
	}

	if feature, ok := featureForQuery(f.Opcode); ok {
		if len(f.Raw) < minStatusFrame {
			return unknown
		}
		return &ToggleReport{Feature: feature, Enabled: f.Raw[6] == ToggleOn}
	}

	return unknown
}

// parseBatteryByte reads a battery byte as a percentage. Any non-zero byte is
// a live level; values above 100 are clamped.
func parseBatteryByte(b byte) BatteryLevel {
	level := int(b)
	if level > maxBatteryLevel {
		level = maxBatteryLevel
	}
	return BatteryLevel{Level: level}
}
