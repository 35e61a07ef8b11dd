package protocol

import (
	"encoding/binary"
	"fmt"
)

// Message constructor library for building command frames sent to the earbuds

// Toggle parameter bytes
const (
	ToggleOn  byte = 0x01
	ToggleOff byte = 0x00
)

// BuildFrame constructs a complete frame for op with params as the payload
//
// Frame Structure:
//
//	[0]     0x4E           Marker byte (FrameMarker)
//	[1-2]   length         3 + len(params) (little-endian uint16)
//	[3]     0x00           Reserved
//	[4-5]   opcode         Opcode (little-endian uint16)
//	[6+]    params         Command parameters, verbatim
//
// BuildFrame panics if params exceed MaxPayloadSize; use BuildFrameChecked
// for untrusted input.
func BuildFrame(op Opcode, params ...byte) []byte {
	frame, err := BuildFrameChecked(op, params)
	if err != nil {
		panic(err)
	}
	return frame
}

// BuildFrameChecked is BuildFrame returning an error for oversized params
func BuildFrameChecked(op Opcode, params []byte) ([]byte, error) {
	if len(params) > MaxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes (max %d)", len(params), MaxPayloadSize)
	}

	frame := make([]byte, HeaderSize+len(params))
	frame[0] = FrameMarker
	binary.LittleEndian.PutUint16(frame[1:3], uint16(lengthOverhead+len(params)))
	frame[3] = 0x00
	binary.LittleEndian.PutUint16(frame[4:6], uint16(op))
	copy(frame[HeaderSize:], params)

	return frame, nil
}

// AncSet builds the noise control command: [mode, 0x00]
func AncSet(mode AncMode) []byte {
	return BuildFrame(OpAncSet, byte(mode), 0x00)
}

// EqSet builds the equalizer command: [preset, 0x00]
func EqSet(mode EqMode) []byte {
	return BuildFrame(OpEqSet, byte(mode), 0x00)
}

// ToggleSet builds the set command for a boolean feature: [0x01] or [0x00]
func ToggleSet(feature Feature, on bool) []byte {
	value := ToggleOff
	if on {
		value = ToggleOn
	}
	return BuildFrame(feature.SetOpcode(), value)
}

// Query builds a parameterless query frame for op
func Query(op Opcode) []byte {
	return BuildFrame(op)
}

// QueryFeature builds the query frame for a boolean feature
func QueryFeature(feature Feature) []byte {
	return Query(feature.QueryOpcode())
}

// QueryVersion builds the firmware version query
func QueryVersion() []byte {
	return Query(OpVersion)
}

// QueryFullState builds the aggregate state query
func QueryFullState() []byte {
	return Query(OpFullState)
}

// CommandName describes a built frame by opcode, for logs
func CommandName(frame []byte) string {
	if len(frame) < HeaderSize || frame[0] != FrameMarker {
		return fmt.Sprintf("invalid(% X)", frame)
	}
	return Opcode(binary.LittleEndian.Uint16(frame[4:6])).String()
}
