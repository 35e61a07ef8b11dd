package engine

import (
	"sync"

	"github.com/muurk/origctl/internal/battery"
	"github.com/muurk/origctl/internal/logging"
	"github.com/muurk/origctl/internal/protocol"
	"go.uber.org/zap"
)

// Sender writes a command frame to the device without waiting for it
type Sender interface {
	Send(frame []byte)
}

// SenderFunc adapts a function to Sender
type SenderFunc func(frame []byte)

// Send calls f(frame)
func (f SenderFunc) Send(frame []byte) { f(frame) }

// Synchronizer owns the feature state. It applies local commands (sending the
// matching frames) and inbound reports, and publishes one event per changed field.
//
// Coupling rules:
//   - ANC set to WIND_SUPPRESSION turns wind suppression on; any other mode clears it.
//   - Wind suppression on forces ANC to WIND_SUPPRESSION; off leaves ANC alone.
//   - ANC reports are ignored while wind suppression is on.
//   - Game mode drives low latency to the same value. Turning low latency off
//     while game mode is on turns game mode off too.
type Synchronizer struct {
	mu     sync.Mutex
	state  State
	cache  *battery.Cache
	sink   EventSink
	sender Sender

	// batteryReady is set once a merged status holds a live-looking earbud level
	batteryReady bool
}

// NewSynchronizer creates a synchronizer in the default state
func NewSynchronizer(cache *battery.Cache, sink EventSink, sender Sender) *Synchronizer {
	if cache == nil {
		cache = battery.NewCache(nil)
	}
	if sink == nil {
		sink = nopSink{}
	}
	if sender == nil {
		sender = SenderFunc(func([]byte) {})
	}
	return &Synchronizer{
		state:  DefaultState(),
		cache:  cache,
		sink:   sink,
		sender: sender,
	}
}

// State returns a copy of the current state
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// change accumulates frames and events produced under the lock
type change struct {
	frames [][]byte
	events []Event
}

func (c *change) send(frame []byte) { c.frames = append(c.frames, frame) }
func (c *change) emit(ev Event)     { c.events = append(c.events, ev) }

// commit sends frames then publishes events, outside the lock
func (s *Synchronizer) commit(c *change) {
	for _, frame := range c.frames {
		s.sender.Send(frame)
	}
	for _, ev := range c.events {
		s.sink.Publish(ev)
	}
}

func (s *Synchronizer) update(fn func(c *change)) {
	var c change
	s.mu.Lock()
	fn(&c)
	s.mu.Unlock()
	s.commit(&c)
}

// setAncLocked changes the ANC field, emitting on change
func (s *Synchronizer) setAncLocked(c *change, mode protocol.AncMode) {
	if s.state.AncMode == mode {
		return
	}
	s.state.AncMode = mode
	c.emit(Event{Kind: EventAncModeChanged, AncMode: mode})
	logging.LogStateChange("anc_mode", mode.String())
}

// setToggleLocked changes a boolean field, emitting on change
func (s *Synchronizer) setToggleLocked(c *change, f protocol.Feature, v bool) {
	if s.state.Toggle(f) == v {
		return
	}
	s.state.setToggle(f, v)
	c.emit(toggleEvent(f, v))
	logging.LogStateChange(f.String(), v)
}

// SetAncMode selects a noise control mode. Selecting the current mode does nothing.
func (s *Synchronizer) SetAncMode(mode protocol.AncMode) {
	s.update(func(c *change) {
		if s.state.AncMode == mode {
			logging.Debug("ANC mode unchanged, skipping", zap.String("mode", mode.String()))
			return
		}
		c.send(protocol.AncSet(mode))
		s.setAncLocked(c, mode)
		s.setToggleLocked(c, protocol.FeatureWindSuppression, mode == protocol.AncWindSuppression)
	})
}

// SetEq selects an equalizer preset. Selecting the current preset does nothing.
func (s *Synchronizer) SetEq(mode protocol.EqMode) {
	s.update(func(c *change) {
		if s.state.EqMode == mode {
			logging.Debug("EQ mode unchanged, skipping", zap.String("mode", mode.String()))
			return
		}
		c.send(protocol.EqSet(mode))
		s.state.EqMode = mode
		c.emit(Event{Kind: EventEqChanged, EqMode: mode})
		logging.LogStateChange("eq_mode", mode.String())
	})
}

// SetGameMode toggles game mode; low latency follows it
func (s *Synchronizer) SetGameMode(on bool) {
	s.update(func(c *change) {
		c.send(protocol.ToggleSet(protocol.FeatureGameMode, on))
		s.setToggleLocked(c, protocol.FeatureGameMode, on)
		s.setToggleLocked(c, protocol.FeatureLowLatency, on)
	})
}

// SetLowLatency toggles low latency. Turning it off while game mode is on
// also turns game mode off on the device.
func (s *Synchronizer) SetLowLatency(on bool) {
	s.update(func(c *change) {
		c.send(protocol.ToggleSet(protocol.FeatureLowLatency, on))
		s.setToggleLocked(c, protocol.FeatureLowLatency, on)
		if !on && s.state.GameMode {
			c.send(protocol.ToggleSet(protocol.FeatureGameMode, false))
			s.setToggleLocked(c, protocol.FeatureGameMode, false)
		}
	})
}

// SetDualConn toggles dual connection
func (s *Synchronizer) SetDualConn(on bool) {
	s.setSimpleToggle(protocol.FeatureDualConn, on)
}

// SetInEarDetection toggles in-ear detection
func (s *Synchronizer) SetInEarDetection(on bool) {
	s.setSimpleToggle(protocol.FeatureInEarDetection, on)
}

// SetWindSuppression toggles wind suppression. On forces ANC to
// WIND_SUPPRESSION; off leaves ANC as it is until the device reports it.
func (s *Synchronizer) SetWindSuppression(on bool) {
	s.update(func(c *change) {
		c.send(protocol.ToggleSet(protocol.FeatureWindSuppression, on))
		s.setToggleLocked(c, protocol.FeatureWindSuppression, on)
		if on {
			s.setAncLocked(c, protocol.AncWindSuppression)
		}
	})
}

func (s *Synchronizer) setSimpleToggle(f protocol.Feature, on bool) {
	s.update(func(c *change) {
		c.send(protocol.ToggleSet(f, on))
		s.setToggleLocked(c, f, on)
	})
}

// SetDeviceName records the display name of the connected device
func (s *Synchronizer) SetDeviceName(name string) {
	s.mu.Lock()
	s.state.DeviceName = name
	s.mu.Unlock()
}

// HandleReport applies an inbound device report
func (s *Synchronizer) HandleReport(r protocol.Report) {
	switch r := r.(type) {
	case *protocol.BatteryReport:
		s.applyBattery(r)

	case *protocol.AncReport:
		s.update(func(c *change) {
			if s.state.WindSuppression {
				logging.Debug("Ignoring ANC report while wind suppression is on",
					zap.String("reported", r.Mode.String()))
				return
			}
			s.setAncLocked(c, r.Mode)
		})

	case *protocol.EqReport:
		s.update(func(c *change) {
			if s.state.EqMode == r.Mode {
				return
			}
			s.state.EqMode = r.Mode
			c.emit(Event{Kind: EventEqChanged, EqMode: r.Mode})
		})

	case *protocol.ToggleReport:
		s.update(func(c *change) {
			s.setToggleLocked(c, r.Feature, r.Enabled)
			if r.Feature == protocol.FeatureWindSuppression && r.Enabled {
				s.setAncLocked(c, protocol.AncWindSuppression)
			}
		})

	case *protocol.VersionReport:
		logging.Info("Firmware version reported", zap.String("version", r.Version()))
	}
}

// applyBattery merges a live report with the cache and publishes the result.
// Nothing is published until the first merged status with a usable earbud level.
func (s *Synchronizer) applyBattery(r *protocol.BatteryReport) {
	merged := s.cache.Merge(battery.FromReport(r))

	s.update(func(c *change) {
		changed := merged != s.state.Battery

		if !s.batteryReady {
			if !merged.HasValidEarbud() {
				logging.Debug("Battery report without earbud levels, holding", zap.String("battery", merged.String()))
				return
			}
			s.batteryReady = true
			changed = true
		}
		s.state.Battery = merged
		if changed {
			status := merged
			c.emit(Event{Kind: EventBatteryChanged, Battery: &status})
		}
	})
}

// Reset returns every feature to its default, publishing an event for each
// field that changes. The battery cache is kept.
func (s *Synchronizer) Reset() {
	s.update(func(c *change) {
		def := DefaultState()

		s.setAncLocked(c, def.AncMode)
		if s.state.EqMode != def.EqMode {
			s.state.EqMode = def.EqMode
			c.emit(Event{Kind: EventEqChanged, EqMode: def.EqMode})
		}
		for _, f := range []protocol.Feature{
			protocol.FeatureGameMode,
			protocol.FeatureLowLatency,
			protocol.FeatureDualConn,
			protocol.FeatureWindSuppression,
			protocol.FeatureInEarDetection,
		} {
			s.setToggleLocked(c, f, false)
		}
		if s.state.Battery != def.Battery {
			s.state.Battery = def.Battery
			empty := def.Battery
			c.emit(Event{Kind: EventBatteryChanged, Battery: &empty})
		}

		s.state.DeviceName = ""
		s.batteryReady = false
	})
}
