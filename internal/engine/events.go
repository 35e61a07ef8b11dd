package engine

import (
	"fmt"
	"sync"

	"github.com/muurk/origctl/internal/battery"
	"github.com/muurk/origctl/internal/logging"
	"github.com/muurk/origctl/internal/protocol"
	"go.uber.org/zap"
)

// EventKind identifies a state notification
type EventKind int

const (
	EventConnectionStateChanged EventKind = iota + 1
	EventBatteryChanged
	EventAncModeChanged
	EventGameModeChanged
	EventLowLatencyChanged
	EventDualConnChanged
	EventEqChanged
	EventWindSuppressionChanged
	EventInEarDetectionChanged
	EventDeviceConnected
	EventDeviceDisconnected
)

var eventNames = map[EventKind]string{
	EventConnectionStateChanged: "connection_state_changed",
	EventBatteryChanged:         "battery_changed",
	EventAncModeChanged:         "anc_mode_changed",
	EventGameModeChanged:        "game_mode_changed",
	EventLowLatencyChanged:      "low_latency_changed",
	EventDualConnChanged:        "dual_conn_changed",
	EventEqChanged:              "eq_changed",
	EventWindSuppressionChanged: "wind_suppression_changed",
	EventInEarDetectionChanged:  "in_ear_detection_changed",
	EventDeviceConnected:        "device_connected",
	EventDeviceDisconnected:     "device_disconnected",
}

func (k EventKind) String() string {
	if name, ok := eventNames[k]; ok {
		return name
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is a single state notification. Only the fields relevant to Kind are set.
type Event struct {
	Kind       EventKind        `cbor:"1,keyasint"`
	Connection ConnectionState  `cbor:"2,keyasint,omitempty"`
	Battery    *battery.Status  `cbor:"3,keyasint,omitempty"`
	AncMode    protocol.AncMode `cbor:"4,keyasint,omitempty"`
	EqMode     protocol.EqMode  `cbor:"5,keyasint,omitempty"`
	Enabled    bool             `cbor:"6,keyasint,omitempty"`
	DeviceName string           `cbor:"7,keyasint,omitempty"`
	Error      string           `cbor:"8,keyasint,omitempty"`
}

func (ev Event) String() string {
	switch ev.Kind {
	case EventConnectionStateChanged:
		if ev.Error != "" {
			return fmt.Sprintf("%s(%s: %s)", ev.Kind, ev.Connection, ev.Error)
		}
		return fmt.Sprintf("%s(%s)", ev.Kind, ev.Connection)
	case EventBatteryChanged:
		if ev.Battery != nil {
			return fmt.Sprintf("%s(%s)", ev.Kind, ev.Battery)
		}
	case EventAncModeChanged:
		return fmt.Sprintf("%s(%s)", ev.Kind, ev.AncMode)
	case EventEqChanged:
		return fmt.Sprintf("%s(%s)", ev.Kind, ev.EqMode)
	case EventGameModeChanged, EventLowLatencyChanged, EventDualConnChanged,
		EventWindSuppressionChanged, EventInEarDetectionChanged:
		return fmt.Sprintf("%s(%t)", ev.Kind, ev.Enabled)
	case EventDeviceConnected:
		return fmt.Sprintf("%s(%s)", ev.Kind, ev.DeviceName)
	}
	return ev.Kind.String()
}

// toggleEvent maps a boolean feature to its change event
func toggleEvent(f protocol.Feature, enabled bool) Event {
	kinds := map[protocol.Feature]EventKind{
		protocol.FeatureGameMode:        EventGameModeChanged,
		protocol.FeatureLowLatency:      EventLowLatencyChanged,
		protocol.FeatureDualConn:        EventDualConnChanged,
		protocol.FeatureWindSuppression: EventWindSuppressionChanged,
		protocol.FeatureInEarDetection:  EventInEarDetectionChanged,
	}
	return Event{Kind: kinds[f], Enabled: enabled}
}

// EventSink receives engine notifications. Publish must not block.
type EventSink interface {
	Publish(Event)
}

// SinkFunc adapts a function to EventSink
type SinkFunc func(Event)

// Publish calls f(ev)
func (f SinkFunc) Publish(ev Event) { f(ev) }

type nopSink struct{}

func (nopSink) Publish(Event) {}

// DefaultBusBuffer is the per-subscriber channel size
const DefaultBusBuffer = 64

// Bus fans events out to any number of subscribers over buffered channels.
// A subscriber whose channel is full misses the event; a warning is logged.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	buffer int
}

// NewBus creates a bus with the given per-subscriber buffer (DefaultBusBuffer if <= 0)
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = DefaultBusBuffer
	}
	return &Bus{
		subs:   make(map[int]chan Event),
		buffer: buffer,
	}
}

// Publish delivers ev to every subscriber without blocking
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logging.Warn("Dropping event for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("event", ev.Kind.String()),
			)
		}
	}
}

// Subscribe registers a subscriber. The returned function unsubscribes and
// closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.buffer)
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			close(ch)
		})
	}
}

// Subscribers returns the current subscriber count
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
