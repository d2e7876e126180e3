package manager

import (
	"math"
	"testing"
	"time"

	"github.com/auralis-audio/aurascope/internal/collector"
	"github.com/auralis-audio/aurascope/internal/config"
	"github.com/auralis-audio/aurascope/internal/snapshot"
)

func TestEntityChangeDetection(t *testing.T) {
	cfg := config.Default()
	cfg.PositionChangeThreshold = 0.1
	cfg.OrientationChangeThreshold = 0.1

	prev := snapshot.NewEntityData(1)
	prev.Position = snapshot.Vector3{0, 0, 0}
	prev.Forward = snapshot.Vector3{0, 0, 1}

	cur := snapshot.NewEntityData(1)
	cur.Position = snapshot.Vector3{0.05, 0, 0}
	cur.Forward = snapshot.Vector3{0, 0, 1}
	if entityChanged(prev, cur, cfg) {
		t.Error("sub-threshold movement should not count as changed")
	}

	cur.Position = snapshot.Vector3{0.2, 0, 0}
	if !entityChanged(prev, cur, cfg) {
		t.Error("movement past the threshold should count as changed")
	}

	cur.Position = prev.Position
	cur.Forward = snapshot.Vector3{math.Sin(0.2), 0, math.Cos(0.2)}
	if !entityChanged(prev, cur, cfg) {
		t.Error("rotation past the threshold should count as changed")
	}
}

func TestChannelChangeDetection(t *testing.T) {
	cfg := config.Default()
	cfg.ParameterChangeThreshold = 0.05

	prev := snapshot.NewChannelData(1)
	prev.Gain = 1.0
	prev.PlaybackState = snapshot.PlaybackPlaying

	cur := snapshot.NewChannelData(1)
	cur.Gain = 0.98
	cur.PlaybackState = snapshot.PlaybackPlaying
	if channelChanged(prev, cur, cfg) {
		t.Error("2% gain change should stay below a 5% threshold")
	}

	cur.Gain = 0.5
	if !channelChanged(prev, cur, cfg) {
		t.Error("halved gain should count as changed")
	}

	cur.Gain = prev.Gain
	cur.PlaybackState = snapshot.PlaybackPaused
	if !channelChanged(prev, cur, cfg) {
		t.Error("playback state transitions always count as changed")
	}
}

func TestListenerChangeDetection(t *testing.T) {
	cfg := config.Default()
	cfg.PositionChangeThreshold = 0.1
	cfg.ParameterChangeThreshold = 0.05

	prev := snapshot.NewListenerData(1)
	prev.Position = snapshot.Vector3{0, 1.7, 0}
	prev.Forward = snapshot.Vector3{0, 0, 1}
	prev.Gain = 1.0

	cur := snapshot.NewListenerData(1)
	cur.Position = prev.Position
	cur.Forward = prev.Forward
	cur.Gain = 1.0
	if listenerChanged(prev, cur, cfg) {
		t.Error("identical listeners should not count as changed")
	}

	cur.Gain = 0.8
	if !listenerChanged(prev, cur, cfg) {
		t.Error("gain drop past the threshold should count as changed")
	}
}

func TestVecHelpers(t *testing.T) {
	if d := vecDistance(snapshot.Vector3{0, 0, 0}, snapshot.Vector3{3, 4, 0}); d != 5 {
		t.Errorf("distance: got %g, want 5", d)
	}
	if a := vecAngle(snapshot.Vector3{1, 0, 0}, snapshot.Vector3{0, 1, 0}); math.Abs(a-math.Pi/2) > 1e-9 {
		t.Errorf("angle: got %g, want pi/2", a)
	}
	if a := vecAngle(snapshot.Vector3{}, snapshot.Vector3{1, 0, 0}); a != 0 {
		t.Errorf("zero vectors compare as unchanged, got %g", a)
	}
	if d := relativeDelta(0, 0); d != 0 {
		t.Errorf("relative delta of zeros: got %g", d)
	}
	if d := relativeDelta(1.0, 0.5); d != 0.5 {
		t.Errorf("relative delta: got %g, want 0.5", d)
	}
}

func TestTimedModeCapturesAutomatically(t *testing.T) {
	sim := collector.NewSimulatedEngine(5, 1, 1, 1)

	cfg := config.Default()
	cfg.EnableNetworking = false
	cfg.UpdateMode = config.UpdateTimed
	cfg.UpdateFrequencyHz = 100

	m := newTestManager(t, cfg, sim)

	received := make(chan snapshot.Snapshot, 256)
	m.RegisterMessageCallback(func(s snapshot.Snapshot) {
		received <- s
	})

	// At 100 Hz a few full captures should land well within a second.
	deadline := time.After(2 * time.Second)
	seen := 0
	for seen < 8 {
		select {
		case <-received:
			seen++
		case <-deadline:
			t.Fatalf("timed mode produced only %d snapshots", seen)
		}
	}
}

func TestOnChangeModeSuppressesStableState(t *testing.T) {
	// A nil engine reports no entities and a default engine snapshot whose
	// values never move, so after the first interval on-change mode should
	// go quiet apart from engine/performance captures, which are always
	// re-captured. Assert entities never appear.
	cfg := config.Default()
	cfg.EnableNetworking = false
	cfg.UpdateMode = config.UpdateOnChange
	cfg.UpdateFrequencyHz = 100

	m := newTestManager(t, cfg, nil)

	received := make(chan snapshot.Snapshot, 256)
	m.RegisterMessageCallback(func(s snapshot.Snapshot) {
		received <- s
	})

	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case s := <-received:
			if s.Kind() == snapshot.KindEntity || s.Kind() == snapshot.KindChannel {
				t.Fatalf("no %s snapshots expected without an engine", s.Kind())
			}
		case <-deadline:
			return
		}
	}
}
