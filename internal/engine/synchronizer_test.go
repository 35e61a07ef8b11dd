package engine

import (
	"bytes"
	"testing"

	"github.com/muurk/origctl/internal/battery"
	"github.com/muurk/origctl/internal/protocol"
)

func newTestSynchronizer() (*Synchronizer, *recorder, *frameCapture) {
	rec := &recorder{}
	sent := &frameCapture{}
	return NewSynchronizer(battery.NewCache(nil), rec, sent), rec, sent
}

func assertFrames(t *testing.T, got [][]byte, want ...[]byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("sent %d frames, want %d: % X", len(got), len(want), got)
	}
	for i := range want {
		if !bytes.Equal(got[i], want[i]) {
			t.Errorf("frame[%d] = % X, want % X", i, got[i], want[i])
		}
	}
}

func TestSetAncModeSkipsCurrent(t *testing.T) {
	s, rec, sent := newTestSynchronizer()

	s.SetAncMode(protocol.AncNormal)
	s.SetAncMode(protocol.AncNormal)

	assertFrames(t, sent.take(), protocol.AncSet(protocol.AncNormal))
	if got := len(rec.kinds(EventAncModeChanged)); got != 1 {
		t.Errorf("AncModeChanged events = %d, want 1", got)
	}
	if got := s.State().AncMode; got != protocol.AncNormal {
		t.Errorf("AncMode = %v, want %v", got, protocol.AncNormal)
	}

	// Selecting the default from a fresh state sends nothing
	s2, _, sent2 := newTestSynchronizer()
	s2.SetAncMode(protocol.AncOff)
	if frames := sent2.take(); len(frames) != 0 {
		t.Errorf("SetAncMode(off) on default state sent %d frames, want 0", len(frames))
	}
}

func TestAncWindCoupling(t *testing.T) {
	s, rec, sent := newTestSynchronizer()

	s.SetAncMode(protocol.AncWindSuppression)
	assertFrames(t, sent.take(), protocol.AncSet(protocol.AncWindSuppression))
	if st := s.State(); !st.WindSuppression || st.AncMode != protocol.AncWindSuppression {
		t.Fatalf("after ANC=WIND state = %+v, want wind on", st)
	}
	if got := len(rec.kinds(EventWindSuppressionChanged)); got != 1 {
		t.Errorf("WindSuppressionChanged events = %d, want 1", got)
	}

	// An ANC report is ignored while wind suppression is on
	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpAncQuery, byte(protocol.AncDeep))))
	if got := s.State().AncMode; got != protocol.AncWindSuppression {
		t.Errorf("AncMode after report with wind on = %v, want %v", got, protocol.AncWindSuppression)
	}

	s.SetAncMode(protocol.AncDeep)
	assertFrames(t, sent.take(), protocol.AncSet(protocol.AncDeep))
	if st := s.State(); st.WindSuppression || st.AncMode != protocol.AncDeep {
		t.Errorf("after ANC=DEEP state = %+v, want wind off, deep", st)
	}
}

func TestSetWindSuppression(t *testing.T) {
	s, _, sent := newTestSynchronizer()
	s.SetAncMode(protocol.AncNormal)
	sent.take()

	s.SetWindSuppression(true)
	assertFrames(t, sent.take(), protocol.ToggleSet(protocol.FeatureWindSuppression, true))
	if st := s.State(); !st.WindSuppression || st.AncMode != protocol.AncWindSuppression {
		t.Fatalf("after wind on state = %+v", st)
	}

	// Off leaves ANC as it is and sends only the wind toggle
	s.SetWindSuppression(false)
	assertFrames(t, sent.take(), protocol.ToggleSet(protocol.FeatureWindSuppression, false))
	if st := s.State(); st.WindSuppression || st.AncMode != protocol.AncWindSuppression {
		t.Errorf("after wind off state = %+v, want ANC unchanged", st)
	}
}

func TestWindReportForcesAnc(t *testing.T) {
	s, rec, _ := newTestSynchronizer()

	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpWindSuppressionQuery, protocol.ToggleOn)))

	st := s.State()
	if !st.WindSuppression {
		t.Error("WindSuppression = false, want true")
	}
	if st.AncMode != protocol.AncWindSuppression {
		t.Errorf("AncMode = %v, want %v", st.AncMode, protocol.AncWindSuppression)
	}
	if got := rec.kinds(EventAncModeChanged); len(got) != 1 || got[0].AncMode != protocol.AncWindSuppression {
		t.Errorf("AncModeChanged events = %v, want one WIND event", got)
	}

	// Wind off from the device does not touch ANC
	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpWindSuppressionQuery, protocol.ToggleOff)))
	if st := s.State(); st.WindSuppression || st.AncMode != protocol.AncWindSuppression {
		t.Errorf("after wind off report state = %+v", st)
	}
}

func TestGameModeDrivesLowLatency(t *testing.T) {
	s, rec, sent := newTestSynchronizer()

	s.SetGameMode(true)
	assertFrames(t, sent.take(), protocol.ToggleSet(protocol.FeatureGameMode, true))
	if st := s.State(); !st.GameMode || !st.LowLatency {
		t.Fatalf("after game on state = %+v, want game and low latency on", st)
	}
	if len(rec.kinds(EventGameModeChanged)) != 1 || len(rec.kinds(EventLowLatencyChanged)) != 1 {
		t.Errorf("events = %v, want one game and one low latency change", rec.all())
	}

	s.SetGameMode(false)
	assertFrames(t, sent.take(), protocol.ToggleSet(protocol.FeatureGameMode, false))
	if st := s.State(); st.GameMode || st.LowLatency {
		t.Errorf("after game off state = %+v", st)
	}
}

func TestLowLatencyOffTurnsGameOff(t *testing.T) {
	s, _, sent := newTestSynchronizer()
	s.SetGameMode(true)
	sent.take()

	s.SetLowLatency(false)
	assertFrames(t, sent.take(),
		protocol.ToggleSet(protocol.FeatureLowLatency, false),
		protocol.ToggleSet(protocol.FeatureGameMode, false),
	)
	if st := s.State(); st.GameMode || st.LowLatency {
		t.Errorf("state = %+v, want game and low latency off", st)
	}

	// Without game mode only the low latency frame goes out
	s.SetLowLatency(true)
	s.SetLowLatency(false)
	assertFrames(t, sent.take(),
		protocol.ToggleSet(protocol.FeatureLowLatency, true),
		protocol.ToggleSet(protocol.FeatureLowLatency, false),
	)
}

func TestGameReportDoesNotMirrorLowLatency(t *testing.T) {
	s, _, _ := newTestSynchronizer()

	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpGameModeQuery, protocol.ToggleOn)))

	st := s.State()
	if !st.GameMode {
		t.Error("GameMode = false, want true")
	}
	if st.LowLatency {
		t.Error("LowLatency = true, want false (reports set fields independently)")
	}
}

func TestSetEqSkipsCurrent(t *testing.T) {
	s, rec, sent := newTestSynchronizer()

	s.SetEq(protocol.DefaultEqMode)
	if frames := sent.take(); len(frames) != 0 {
		t.Errorf("SetEq(default) sent %d frames, want 0", len(frames))
	}

	s.SetEq(protocol.EqBass)
	s.SetEq(protocol.EqBass)
	assertFrames(t, sent.take(), protocol.EqSet(protocol.EqBass))
	if got := rec.kinds(EventEqChanged); len(got) != 1 || got[0].EqMode != protocol.EqBass {
		t.Errorf("EqChanged events = %v, want one BASS event", got)
	}
}

func TestSimpleToggles(t *testing.T) {
	tests := []struct {
		name    string
		set     func(s *Synchronizer, on bool)
		feature protocol.Feature
		kind    EventKind
	}{
		{"dual conn", (*Synchronizer).SetDualConn, protocol.FeatureDualConn, EventDualConnChanged},
		{"in-ear", (*Synchronizer).SetInEarDetection, protocol.FeatureInEarDetection, EventInEarDetectionChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec, sent := newTestSynchronizer()

			tt.set(s, true)
			assertFrames(t, sent.take(), protocol.ToggleSet(tt.feature, true))
			if !s.State().Toggle(tt.feature) {
				t.Errorf("Toggle(%v) = false, want true", tt.feature)
			}
			if got := rec.kinds(tt.kind); len(got) != 1 || !got[0].Enabled {
				t.Errorf("events = %v, want one enabled %v", got, tt.kind)
			}
		})
	}
}

func TestReportsEmitOnlyOnChange(t *testing.T) {
	s, rec, _ := newTestSynchronizer()

	frame := protocol.BuildFrame(protocol.OpDualConnQuery, protocol.ToggleOn)
	s.HandleReport(report(t, frame))
	s.HandleReport(report(t, frame))

	if got := len(rec.kinds(EventDualConnChanged)); got != 1 {
		t.Errorf("DualConnChanged events = %d, want 1", got)
	}

	eq := protocol.BuildFrame(protocol.OpEqQuery, byte(protocol.EqVocal))
	s.HandleReport(report(t, eq))
	s.HandleReport(report(t, eq))
	if got := len(rec.kinds(EventEqChanged)); got != 1 {
		t.Errorf("EqChanged events = %d, want 1", got)
	}
}

func TestUnknownAncByteDefaultsToOff(t *testing.T) {
	s, _, _ := newTestSynchronizer()
	s.SetAncMode(protocol.AncNormal)

	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpAncQuery, 0x7F)))
	if got := s.State().AncMode; got != protocol.AncOff {
		t.Errorf("AncMode = %v, want %v", got, protocol.AncOff)
	}
}

func TestBatteryGating(t *testing.T) {
	s, rec, _ := newTestSynchronizer()

	// Nothing usable yet: no event and no visible state
	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpBattery, 0, 0, 0)))
	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpBattery, 0, 0, 60)))
	if got := len(rec.kinds(EventBatteryChanged)); got != 0 {
		t.Fatalf("BatteryChanged events = %d before a valid level, want 0", got)
	}
	if got := s.State().Battery; got != (battery.Status{}) {
		t.Errorf("Battery = %v before a valid level, want empty", got)
	}

	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpBattery, 80, 0, 0)))
	events := rec.kinds(EventBatteryChanged)
	if len(events) != 1 {
		t.Fatalf("BatteryChanged events = %d, want 1", len(events))
	}
	if events[0].Battery == nil || events[0].Battery.Left.Level != 80 {
		t.Errorf("battery event = %v, want left 80", events[0])
	}

	// Same reading again is not republished
	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpBattery, 80, 0, 0)))
	if got := len(rec.kinds(EventBatteryChanged)); got != 1 {
		t.Errorf("BatteryChanged events after repeat = %d, want 1", got)
	}

	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpBattery, 80, 60, 0)))
	events = rec.kinds(EventBatteryChanged)
	if len(events) != 2 {
		t.Fatalf("BatteryChanged events after change = %d, want 2", len(events))
	}
	right := events[1].Battery.Right
	if right.Level != 60 || !right.Present {
		t.Errorf("right = %v, want 60", right)
	}
}

func TestBatteryMergesWithCache(t *testing.T) {
	store := battery.NewMemoryStore(battery.Status{
		Left:  battery.Reading{Level: 80, Present: true},
		Right: battery.Reading{Level: 70, Present: true},
	})
	cache := battery.NewCache(store)
	if err := cache.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	rec := &recorder{}
	s := NewSynchronizer(cache, rec, nil)
	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpBattery, 0, 55, 0)))

	got := s.State().Battery
	if got.Left.Level != 80 {
		t.Errorf("Left = %d, want cached 80", got.Left.Level)
	}
	if got.Right.Level != 55 {
		t.Errorf("Right = %d, want live 55", got.Right.Level)
	}
	if cached := cache.Cached(); cached.Right.Level != 55 {
		t.Errorf("cache Right = %d, want 55", cached.Right.Level)
	}
}

func TestResetRestoresDefaults(t *testing.T) {
	s, rec, _ := newTestSynchronizer()
	s.SetDeviceName("OriG")
	s.SetAncMode(protocol.AncDeep)
	s.SetEq(protocol.EqGame)
	s.SetGameMode(true)
	s.SetDualConn(true)
	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpBattery, 50, 50, 0)))
	rec.reset()

	s.Reset()

	st := s.State()
	want := DefaultState()
	if st != want {
		t.Errorf("state after Reset = %+v, want %+v", st, want)
	}

	wantKinds := map[EventKind]bool{
		EventAncModeChanged:    true,
		EventEqChanged:         true,
		EventGameModeChanged:   true,
		EventLowLatencyChanged: true,
		EventDualConnChanged:   true,
		EventBatteryChanged:    true,
	}
	for _, ev := range rec.all() {
		if !wantKinds[ev.Kind] {
			t.Errorf("unexpected event %v on reset", ev)
		}
		delete(wantKinds, ev.Kind)
	}
	for kind := range wantKinds {
		t.Errorf("missing %v on reset", kind)
	}

	// Gating starts over; the cache still holds 50/50 so the merged status is valid
	rec.reset()
	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpBattery, 0, 0, 0)))
	if got := len(rec.kinds(EventBatteryChanged)); got != 1 {
		t.Errorf("BatteryChanged events after reset = %d, want 1", got)
	}
}

func TestVersionReportLeavesState(t *testing.T) {
	s, rec, _ := newTestSynchronizer()
	s.HandleReport(report(t, protocol.BuildFrame(protocol.OpVersion, 1, 2, 3)))

	if st := s.State(); st != DefaultState() {
		t.Errorf("state = %+v, want default", st)
	}
	if got := len(rec.all()); got != 0 {
		t.Errorf("events = %d, want 0", got)
	}
}
