package protocol

import "fmt"

// Opcode identifies a protocol operation (little-endian on the wire)
type Opcode uint16

// Opcodes (from the device firmware's SPP command table)
const (
	OpVersion   Opcode = 0x0003
	OpBattery   Opcode = 0x0005 // Query and report share the opcode
	OpFullState Opcode = 0x0103
	OpCodec     Opcode = 0x0204

	OpAncSet   Opcode = 0x0201
	OpAncQuery Opcode = 0x0101

	OpEqSet   Opcode = 0x0207
	OpEqQuery Opcode = 0x0107

	OpGameModeSet   Opcode = 0x0208
	OpGameModeQuery Opcode = 0x0108

	OpLowLatencySet   Opcode = 0x0206
	OpLowLatencyQuery Opcode = 0x0106

	OpDualConnSet   Opcode = 0x0205
	OpDualConnQuery Opcode = 0x0105

	OpInEarSet   Opcode = 0x0209
	OpInEarQuery Opcode = 0x0109

	OpWindSuppressionSet   Opcode = 0x02E1
	OpWindSuppressionQuery Opcode = 0x01E1
)

// SPPServiceUUID is the RFCOMM service record the earbuds expose
const SPPServiceUUID = "0000a100-1000-8000-4e48-434b4354524c"

var opcodeNames = map[Opcode]string{
	OpVersion:              "version",
	OpBattery:              "battery",
	OpFullState:            "full_state",
	OpCodec:                "codec",
	OpAncSet:               "anc_set",
	OpAncQuery:             "anc_query",
	OpEqSet:                "eq_set",
	OpEqQuery:              "eq_query",
	OpGameModeSet:          "game_mode_set",
	OpGameModeQuery:        "game_mode_query",
	OpLowLatencySet:        "low_latency_set",
	OpLowLatencyQuery:      "low_latency_query",
	OpDualConnSet:          "dual_conn_set",
	OpDualConnQuery:        "dual_conn_query",
	OpInEarSet:             "in_ear_set",
	OpInEarQuery:           "in_ear_query",
	OpWindSuppressionSet:   "wind_suppression_set",
	OpWindSuppressionQuery: "wind_suppression_query",
}

// String returns a human-readable opcode name
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%04X)", uint16(o))
}

// IsQuery reports whether the opcode is a query (high byte 0x01) or the battery opcode
func (o Opcode) IsQuery() bool {
	return o>>8 == 0x01 || o == OpBattery || o == OpVersion
}

// Feature is a boolean device feature controlled by a set/query opcode pair
type Feature int

const (
	FeatureGameMode Feature = iota
	FeatureLowLatency
	FeatureDualConn
	FeatureWindSuppression
	FeatureInEarDetection
)

type featureOps struct {
	set   Opcode
	query Opcode
	name  string
}

var features = map[Feature]featureOps{
	FeatureGameMode:        {OpGameModeSet, OpGameModeQuery, "game_mode"},
	FeatureLowLatency:      {OpLowLatencySet, OpLowLatencyQuery, "low_latency"},
	FeatureDualConn:        {OpDualConnSet, OpDualConnQuery, "dual_conn"},
	FeatureWindSuppression: {OpWindSuppressionSet, OpWindSuppressionQuery, "wind_suppression"},
	FeatureInEarDetection:  {OpInEarSet, OpInEarQuery, "in_ear_detection"},
}

// String returns the feature name
func (f Feature) String() string {
	if ops, ok := features[f]; ok {
		return ops.name
	}
	return fmt.Sprintf("Feature(%d)", int(f))
}

// SetOpcode returns the opcode used to change the feature
func (f Feature) SetOpcode() Opcode { return features[f].set }

// QueryOpcode returns the opcode used to read the feature back
func (f Feature) QueryOpcode() Opcode { return features[f].query }

// featureForQuery maps a query opcode back to its boolean feature
func featureForQuery(op Opcode) (Feature, bool) {
	for f, ops := range features {
		if ops.query == op {
			return f, true
		}
	}
	return 0, false
}

// AncMode is the noise control mode byte
type AncMode byte

// Noise control modes
const (
	AncOff             AncMode = 0x00
	AncTransparent     AncMode = 0x01
	AncNormal          AncMode = 0x02
	AncDeep            AncMode = 0x03
	AncExperiment      AncMode = 0x10
	AncWindSuppression AncMode = 0x11
)

// ParseAncMode maps a status byte to a mode. Unknown values default to AncOff.
func ParseAncMode(b byte) AncMode {
	switch m := AncMode(b); m {
	case AncOff, AncTransparent, AncNormal, AncDeep, AncExperiment, AncWindSuppression:
		return m
	default:
		return AncOff
	}
}

// String returns the mode name
func (m AncMode) String() string {
	switch m {
	case AncOff:
		return "off"
	case AncTransparent:
		return "transparent"
	case AncNormal:
		return "normal"
	case AncDeep:
		return "deep"
	case AncExperiment:
		return "experiment"
	case AncWindSuppression:
		return "wind_suppression"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(m))
	}
}

// AncModeFromName parses a mode name as produced by String
func AncModeFromName(name string) (AncMode, error) {
	for _, m := range AncModes {
		if m.String() == name {
			return m, nil
		}
	}
	return AncOff, fmt.Errorf("unknown ANC mode %q", name)
}

// AncModes lists every valid noise control mode
var AncModes = []AncMode{AncOff, AncTransparent, AncNormal, AncDeep, AncExperiment, AncWindSuppression}

// EqMode is the equalizer preset byte
type EqMode byte

// Equalizer presets
const (
	EqBlue     EqMode = 0x00
	EqBalanced EqMode = 0x01
	EqBass     EqMode = 0x02
	EqPure     EqMode = 0x03
	EqGame     EqMode = 0x04
	EqFine     EqMode = 0x05
	EqVocal    EqMode = 0x06
)

// DefaultEqMode is the preset assumed when the device reports nothing or garbage
const DefaultEqMode = EqBalanced

// EqModes lists every preset in wire order
var EqModes = []EqMode{EqBlue, EqBalanced, EqBass, EqPure, EqGame, EqFine, EqVocal}

// ParseEqMode maps a status byte to a preset. Unknown values default to EqBalanced.
func ParseEqMode(b byte) EqMode {
	if b <= byte(EqVocal) {
		return EqMode(b)
	}
	return DefaultEqMode
}

// String returns the preset name
func (m EqMode) String() string {
	switch m {
	case EqBlue:
		return "blue"
	case EqBalanced:
		return "balanced"
	case EqBass:
		return "bass"
	case EqPure:
		return "pure"
	case EqGame:
		return "game"
	case EqFine:
		return "fine"
	case EqVocal:
		return "vocal"
	default:
		return fmt.Sprintf("unknown(0x%02X)", byte(m))
	}
}

// EqModeFromName parses a preset name as produced by String
func EqModeFromName(name string) (EqMode, error) {
	for _, m := range EqModes {
		if m.String() == name {
			return m, nil
		}
	}
	return DefaultEqMode, fmt.Errorf("unknown EQ mode %q", name)
}
