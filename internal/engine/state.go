package engine

import (
	"fmt"

	"github.com/muurk/origctl/internal/battery"
	"github.com/muurk/origctl/internal/protocol"
)

// ConnectionState is the lifecycle state of the device link
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Error
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("ConnectionState(%d)", int(s))
	}
}

// State is the authoritative feature state of the connected earbuds
type State struct {
	AncMode         protocol.AncMode `cbor:"1,keyasint"`
	EqMode          protocol.EqMode  `cbor:"2,keyasint"`
	GameMode        bool             `cbor:"3,keyasint"`
	LowLatency      bool             `cbor:"4,keyasint"`
	DualConn        bool             `cbor:"5,keyasint"`
	WindSuppression bool             `cbor:"6,keyasint"`
	InEarDetection  bool             `cbor:"7,keyasint"`
	DeviceName      string           `cbor:"8,keyasint"`
	Battery         battery.Status   `cbor:"9,keyasint"`
}

// DefaultState is the state of a freshly created or disconnected engine
func DefaultState() State {
	return State{
		AncMode: protocol.AncOff,
		EqMode:  protocol.DefaultEqMode,
	}
}

// Toggle returns the value of a boolean feature
func (s State) Toggle(f protocol.Feature) bool {
	switch f {
	case protocol.FeatureGameMode:
		return s.GameMode
	case protocol.FeatureLowLatency:
		return s.LowLatency
	case protocol.FeatureDualConn:
		return s.DualConn
	case protocol.FeatureWindSuppression:
		return s.WindSuppression
	case protocol.FeatureInEarDetection:
		return s.InEarDetection
	default:
		return false
	}
}

func (s *State) setToggle(f protocol.Feature, v bool) {
	switch f {
	case protocol.FeatureGameMode:
		s.GameMode = v
	case protocol.FeatureLowLatency:
		s.LowLatency = v
	case protocol.FeatureDualConn:
		s.DualConn = v
	case protocol.FeatureWindSuppression:
		s.WindSuppression = v
	case protocol.FeatureInEarDetection:
		s.InEarDetection = v
	}
}

// Snapshot is a point-in-time copy of the engine
type Snapshot struct {
	Connection ConnectionState `cbor:"1,keyasint"`
	Address    string          `cbor:"2,keyasint,omitempty"`
	State      State           `cbor:"3,keyasint"`
	LastError  string          `cbor:"4,keyasint,omitempty"`
}
