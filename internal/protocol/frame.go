package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame layout constants
const (
	FrameMarker = 0x4E

	// HeaderSize is marker + length(2) + reserved + opcode(2)
	HeaderSize = 6

	// lengthOverhead is the part of the length field not counted as payload (reserved + opcode)
	lengthOverhead = 3

	// MaxBufferSize bounds the decoder working buffer and therefore the largest frame
	MaxBufferSize = 2048

	// MaxPayloadSize is the largest payload that still fits in the decoder buffer
	MaxPayloadSize = MaxBufferSize - HeaderSize
)

// Frame parse errors
var (
	ErrShortFrame = errors.New("frame too short")
	ErrBadMarker  = errors.New("frame does not start with marker byte")
	ErrBadLength  = errors.New("frame length field does not match data")
)

// Frame is one complete protocol frame
type Frame struct {
	Opcode  Opcode
	Payload []byte
	Raw     []byte // Complete frame bytes including header
}

// ParseFrame validates a complete frame. raw must hold exactly one frame.
func ParseFrame(raw []byte) (*Frame, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes (min %d)", ErrShortFrame, len(raw), HeaderSize)
	}
	if raw[0] != FrameMarker {
		return nil, fmt.Errorf("%w: got 0x%02X", ErrBadMarker, raw[0])
	}

	length := int(binary.LittleEndian.Uint16(raw[1:3]))
	if length < lengthOverhead || length+3 != len(raw) {
		return nil, fmt.Errorf("%w: length field %d, frame %d bytes", ErrBadLength, length, len(raw))
	}

	return &Frame{
		Opcode:  Opcode(binary.LittleEndian.Uint16(raw[4:6])),
		Payload: raw[HeaderSize:],
		Raw:     raw,
	}, nil
}

// Status returns the first payload byte, the status byte of single-value reports
func (f *Frame) Status() (byte, bool) {
	if len(f.Payload) == 0 {
		return 0, false
	}
	return f.Payload[0], true
}

// String returns a short description of the frame
func (f *Frame) String() string {
	return fmt.Sprintf("Frame{op=%s len=%d payload=% X}", f.Opcode, len(f.Raw), f.Payload)
}
