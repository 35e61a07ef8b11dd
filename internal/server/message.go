package server

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/muurk/origctl/internal/engine"
)

// MessageType identifies a bridge message
type MessageType int

const (
	// MessageSnapshot carries the full engine state; sent first on every connection
	MessageSnapshot MessageType = iota + 1
	// MessageEvent carries one engine event
	MessageEvent
	// MessageCommand carries a client request
	MessageCommand
	// MessageResult answers a command with the same ID
	MessageResult
)

func (t MessageType) String() string {
	switch t {
	case MessageSnapshot:
		return "snapshot"
	case MessageEvent:
		return "event"
	case MessageCommand:
		return "command"
	case MessageResult:
		return "result"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// Message is the unit exchanged over the bridge websocket. Each message is
// one binary websocket frame holding a CBOR map with integer keys.
type Message struct {
	Type     MessageType      `cbor:"1,keyasint"`
	ID       uint64           `cbor:"2,keyasint,omitempty"`
	Snapshot *engine.Snapshot `cbor:"3,keyasint,omitempty"`
	Event    *engine.Event    `cbor:"4,keyasint,omitempty"`
	Command  *engine.Command  `cbor:"5,keyasint,omitempty"`
	Error    string           `cbor:"6,keyasint,omitempty"`
}

var (
	encMode = mustEncMode()
	decMode = mustDecMode()
)

func mustEncMode() cbor.EncMode {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func mustDecMode() cbor.DecMode {
	dm, err := cbor.DecOptions{
		MaxNestedLevels: 16,
		MaxMapPairs:     256,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return dm
}

// EncodeMessage serialises m
func EncodeMessage(m Message) ([]byte, error) {
	data, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", m.Type, err)
	}
	return data, nil
}

// DecodeMessage parses one message
func DecodeMessage(data []byte) (Message, error) {
	var m Message
	if err := decMode.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if m.Type < MessageSnapshot || m.Type > MessageResult {
		return Message{}, fmt.Errorf("decode message: unknown type %d", int(m.Type))
	}
	return m, nil
}
