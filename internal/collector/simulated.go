package collector

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/auralis-audio/aurascope/internal/snapshot"
)

// SimulatedEngine is a self-contained Engine used by the demo server and in
// tests. Entities orbit the origin, channels loop through playback, and the
// performance counters wobble around plausible values. All motion derives
// from elapsed time, so two engines with the same seed report the same state
// at the same offset.
type SimulatedEngine struct {
	mu      sync.Mutex
	rng     *rand.Rand
	started time.Time

	entityIDs   []snapshot.EntityID
	channelIDs  []snapshot.ChannelID
	listenerIDs []snapshot.ListenerID

	soundNames []string
	phase      map[snapshot.EntityID]float64
}

// NewSimulatedEngine builds an engine with the given population sizes. The
// seed fixes the per-object phase offsets.
func NewSimulatedEngine(seed int64, entities, channels, listeners int) *SimulatedEngine {
	e := &SimulatedEngine{
		rng:     rand.New(rand.NewSource(seed)),
		started: time.Now(),
		soundNames: []string{
			"footstep_grass", "ambience_wind", "ui_click",
			"music_theme", "impact_metal", "voice_line",
		},
		phase: make(map[snapshot.EntityID]float64),
	}

	for i := 0; i < entities; i++ {
		id := snapshot.EntityID(i + 1)
		e.entityIDs = append(e.entityIDs, id)
		e.phase[id] = e.rng.Float64() * 2 * math.Pi
	}
	for i := 0; i < channels; i++ {
		e.channelIDs = append(e.channelIDs, snapshot.ChannelID(i+1))
	}
	for i := 0; i < listeners; i++ {
		e.listenerIDs = append(e.listenerIDs, snapshot.ListenerID(i+1))
	}
	return e
}

func (e *SimulatedEngine) elapsed() float64 {
	return time.Since(e.started).Seconds()
}

func (e *SimulatedEngine) EngineState() EngineState {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := e.elapsed()
	return EngineState{
		IsInitialized: true,
		Uptime:        time.Since(e.started),
		ConfigFile:    "simulated.config",

		TotalEntityCount:    uint32(len(e.entityIDs)),
		ActiveEntityCount:   uint32(len(e.entityIDs)),
		TotalChannelCount:   uint32(len(e.channelIDs)),
		ActiveChannelCount:  uint32(len(e.channelIDs)),
		TotalListenerCount:  uint32(len(e.listenerIDs)),
		ActiveListenerCount: uint32(len(e.listenerIDs)),

		CPUUsagePercent:  12 + 5*math.Sin(t/3),
		MemoryUsageBytes: 64<<20 + uint64(len(e.channelIDs))<<16,
		MemoryPeakBytes:  96 << 20,
		ActiveVoiceCount: uint32(len(e.channelIDs)),
		MaxVoiceCount:    64,

		SampleRate:   48000,
		ChannelCount: 2,
		FrameCount:   1024,
		MasterGain:   1.0,

		LoadedSoundBanks: []string{"master.bank", "sfx.bank"},
		LoadedPlugins:    []string{"aurascope"},
	}
}

func (e *SimulatedEngine) Performance() PerformanceState {
	t := e.elapsed()
	mixer := 4 + 2*math.Sin(t/2)
	dsp := 3 + 1.5*math.Cos(t/2)
	streaming := 1 + 0.5*math.Sin(t/5)

	return PerformanceState{
		TotalCPUUsage:     mixer + dsp + streaming,
		MixerCPUUsage:     mixer,
		DSPCPUUsage:       dsp,
		StreamingCPUUsage: streaming,

		TotalAllocatedMemory: 64 << 20,
		EngineMemory:         24 << 20,
		AudioBufferMemory:    16 << 20,
		AssetMemory:          24 << 20,

		ProcessedSamples: uint32(t * 48000),
		LatencyMs:        1024.0 / 48.0,

		ActiveThreadCount: 4,
	}
}

func (e *SimulatedEngine) EntityIDs() []snapshot.EntityID {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]snapshot.EntityID, len(e.entityIDs))
	copy(out, e.entityIDs)
	return out
}

func (e *SimulatedEngine) EntityState(id snapshot.EntityID) (EntityState, bool) {
	e.mu.Lock()
	phase, ok := e.phase[id]
	e.mu.Unlock()
	if !ok {
		return EntityState{}, false
	}

	// Orbit at a radius determined by the id, a full revolution every 20s.
	t := e.elapsed()
	radius := 5 + float64(id)*2
	angle := phase + t*2*math.Pi/20
	pos := snapshot.Vector3{radius * math.Cos(angle), 0, radius * math.Sin(angle)}
	speed := radius * 2 * math.Pi / 20

	dist := math.Sqrt(pos[0]*pos[0] + pos[2]*pos[2])
	return EntityState{
		Position: pos,
		Velocity: snapshot.Vector3{-speed * math.Sin(angle), 0, speed * math.Cos(angle)},
		Forward:  snapshot.Vector3{-math.Sin(angle), 0, math.Cos(angle)},
		Up:       snapshot.Vector3{0, 1, 0},

		ActiveChannelCount: 1,
		DistanceToListener: dist,
		Azimuth:            angle,
		AttenuationFactor:  1 / (1 + dist/10),

		ChannelIDs: []snapshot.ChannelID{snapshot.ChannelID(id)},
	}, true
}

func (e *SimulatedEngine) ChannelIDs() []snapshot.ChannelID {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]snapshot.ChannelID, len(e.channelIDs))
	copy(out, e.channelIDs)
	return out
}

func (e *SimulatedEngine) ChannelState(id snapshot.ChannelID) (ChannelState, bool) {
	e.mu.Lock()
	found := false
	for _, cid := range e.channelIDs {
		if cid == id {
			found = true
			break
		}
	}
	names := e.soundNames
	e.mu.Unlock()
	if !found {
		return ChannelState{}, false
	}

	t := e.elapsed()
	duration := 4 + float64(id%3)*2
	pos := math.Mod(t, duration)

	return ChannelState{
		PlaybackState:  snapshot.PlaybackPlaying,
		SourceEntityID: snapshot.EntityID(id),

		SoundName:        names[int(id)%len(names)],
		SoundBankName:    "master.bank",
		PlaybackPosition: pos,
		TotalDuration:    duration,
		LoopCount:        0,
		CurrentLoop:      uint32(t / duration),

		Gain:          0.5 + 0.5*math.Abs(math.Sin(t/4+float64(id))),
		DopplerFactor: 1.0,

		EffectParameters: map[string]float64{
			"lowpass_cutoff": 20000,
		},
	}, true
}

func (e *SimulatedEngine) ListenerIDs() []snapshot.ListenerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]snapshot.ListenerID, len(e.listenerIDs))
	copy(out, e.listenerIDs)
	return out
}

func (e *SimulatedEngine) ListenerState(id snapshot.ListenerID) (ListenerState, bool) {
	e.mu.Lock()
	found := false
	for _, lid := range e.listenerIDs {
		if lid == id {
			found = true
			break
		}
	}
	e.mu.Unlock()
	if !found {
		return ListenerState{}, false
	}

	// The listener sways gently at the origin.
	t := e.elapsed()
	return ListenerState{
		Position: snapshot.Vector3{0.2 * math.Sin(t / 7), 1.7, 0.2 * math.Cos(t / 7)},
		Forward:  snapshot.Vector3{0, 0, 1},
		Up:       snapshot.Vector3{0, 1, 0},
		Gain:     1.0,

		CurrentEnvironment: "outdoor",
		EnvironmentParameters: map[string]float64{
			"reverb_wet": 0.2,
		},
	}, true
}
