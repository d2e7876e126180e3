package collector

import (
	"log"
	"sync/atomic"
	"time"

	"github.com/auralis-audio/aurascope/internal/snapshot"
)

// Collector produces fresh snapshots of engine state. Implementations must
// tolerate an unavailable engine by returning default-valued snapshots; a
// snapshot can always be produced.
type Collector interface {
	CollectEngineData() *snapshot.EngineData
	CollectEntityData(id snapshot.EntityID) *snapshot.EntityData
	CollectChannelData(id snapshot.ChannelID) *snapshot.ChannelData
	CollectListenerData(id snapshot.ListenerID) *snapshot.ListenerData
	CollectPerformanceData() *snapshot.PerformanceData

	AllEntityIDs() []snapshot.EntityID
	AllChannelIDs() []snapshot.ChannelID
	AllListenerIDs() []snapshot.ListenerID
}

// EngineState mirrors the engine-wide accessors of the host engine.
type EngineState struct {
	IsInitialized bool
	Uptime        time.Duration
	ConfigFile    string

	TotalEntityCount    uint32
	ActiveEntityCount   uint32
	TotalChannelCount   uint32
	ActiveChannelCount  uint32
	TotalListenerCount  uint32
	ActiveListenerCount uint32

	CPUUsagePercent  float64
	MemoryUsageBytes uint64
	MemoryPeakBytes  uint64
	ActiveVoiceCount uint32
	MaxVoiceCount    uint32

	SampleRate   uint32
	ChannelCount uint32
	FrameCount   uint32
	MasterGain   float64

	LoadedSoundBanks []string
	LoadedPlugins    []string
}

// EntityState is one entity's spatial audio state as the engine reports it.
type EntityState struct {
	Position snapshot.Vector3
	Velocity snapshot.Vector3
	Forward  snapshot.Vector3
	Up       snapshot.Vector3

	ActiveChannelCount uint32
	DistanceToListener float64
	Obstruction        float64
	Occlusion          float64
	Azimuth            float64
	Elevation          float64
	AttenuationFactor  float64

	ChannelIDs         []snapshot.ChannelID
	EnvironmentEffects map[uint64]float64
}

// ChannelState is one channel's playback state.
type ChannelState struct {
	PlaybackState  snapshot.PlaybackState
	SourceEntityID snapshot.EntityID

	SoundName        string
	SoundBankName    string
	PlaybackPosition float64
	TotalDuration    float64
	LoopCount        uint32
	CurrentLoop      uint32

	Gain               float64
	Position           snapshot.Vector3
	DistanceToListener float64
	DopplerFactor      float64
	OcclusionFactor    float64
	ObstructionFactor  float64

	ActiveEffects    []string
	EffectParameters map[string]float64
}

// ListenerState is one listener's state.
type ListenerState struct {
	Position snapshot.Vector3
	Velocity snapshot.Vector3
	Forward  snapshot.Vector3
	Up       snapshot.Vector3
	Gain     float64

	CurrentEnvironment    string
	EnvironmentParameters map[string]float64
}

// PerformanceState carries the mixer pipeline counters.
type PerformanceState struct {
	TotalCPUUsage     float64
	MixerCPUUsage     float64
	DSPCPUUsage       float64
	StreamingCPUUsage float64

	TotalAllocatedMemory uint64
	EngineMemory         uint64
	AudioBufferMemory    uint64
	AssetMemory          uint64

	ProcessedSamples uint32
	Underruns        uint32
	Overruns         uint32
	LatencyMs        float64

	ActiveThreadCount uint32
}

// Engine is the host engine surface the collector queries. Accessors return
// current values; lookups report whether the object exists.
type Engine interface {
	EngineState() EngineState
	Performance() PerformanceState

	EntityIDs() []snapshot.EntityID
	EntityState(id snapshot.EntityID) (EntityState, bool)

	ChannelIDs() []snapshot.ChannelID
	ChannelState(id snapshot.ChannelID) (ChannelState, bool)

	ListenerIDs() []snapshot.ListenerID
	ListenerState(id snapshot.ListenerID) (ListenerState, bool)
}

// engineCollector adapts an Engine into snapshot values. A nil engine or a
// missing object degrades to a default-valued snapshot rather than failing.
type engineCollector struct {
	engine Engine

	// Captures run from arbitrary producer goroutines.
	warnedUnavailable atomic.Bool
}

// New creates a collector backed by the given engine. engine may be nil.
func New(engine Engine) Collector {
	return &engineCollector{engine: engine}
}

func (c *engineCollector) warnUnavailable() {
	if c.warnedUnavailable.CompareAndSwap(false, true) {
		log.Printf("[collector] engine not available, producing default snapshots")
	}
}

func (c *engineCollector) CollectEngineData() *snapshot.EngineData {
	data := snapshot.NewEngineData()
	if c.engine == nil {
		c.warnUnavailable()
		return data
	}

	state := c.engine.EngineState()
	data.IsInitialized = state.IsInitialized
	data.EngineUptime = state.Uptime.Seconds()
	data.ConfigFile = state.ConfigFile
	data.TotalEntityCount = state.TotalEntityCount
	data.ActiveEntityCount = state.ActiveEntityCount
	data.TotalChannelCount = state.TotalChannelCount
	data.ActiveChannelCount = state.ActiveChannelCount
	data.TotalListenerCount = state.TotalListenerCount
	data.ActiveListenerCount = state.ActiveListenerCount
	data.CPUUsagePercent = state.CPUUsagePercent
	data.MemoryUsageBytes = state.MemoryUsageBytes
	data.MemoryPeakBytes = state.MemoryPeakBytes
	data.ActiveVoiceCount = state.ActiveVoiceCount
	data.MaxVoiceCount = state.MaxVoiceCount
	data.SampleRate = state.SampleRate
	data.ChannelCount = state.ChannelCount
	data.FrameCount = state.FrameCount
	data.MasterGain = state.MasterGain
	data.LoadedSoundBanks = state.LoadedSoundBanks
	data.LoadedPlugins = state.LoadedPlugins
	return data
}

func (c *engineCollector) CollectEntityData(id snapshot.EntityID) *snapshot.EntityData {
	data := snapshot.NewEntityData(id)
	if c.engine == nil {
		c.warnUnavailable()
		return data
	}

	state, ok := c.engine.EntityState(id)
	if !ok {
		return data
	}
	data.Position = state.Position
	data.Velocity = state.Velocity
	data.Forward = state.Forward
	data.Up = state.Up
	data.ActiveChannelCount = state.ActiveChannelCount
	data.DistanceToListener = state.DistanceToListener
	data.Obstruction = state.Obstruction
	data.Occlusion = state.Occlusion
	data.Azimuth = state.Azimuth
	data.Elevation = state.Elevation
	data.AttenuationFactor = state.AttenuationFactor
	data.ChannelIDs = state.ChannelIDs
	data.EnvironmentEffects = state.EnvironmentEffects
	return data
}

func (c *engineCollector) CollectChannelData(id snapshot.ChannelID) *snapshot.ChannelData {
	data := snapshot.NewChannelData(id)
	if c.engine == nil {
		c.warnUnavailable()
		return data
	}

	state, ok := c.engine.ChannelState(id)
	if !ok {
		return data
	}
	data.PlaybackState = state.PlaybackState
	data.SourceEntityID = state.SourceEntityID
	data.SoundName = state.SoundName
	data.SoundBankName = state.SoundBankName
	data.PlaybackPosition = state.PlaybackPosition
	data.TotalDuration = state.TotalDuration
	data.LoopCount = state.LoopCount
	data.CurrentLoop = state.CurrentLoop
	data.Gain = state.Gain
	data.Position = state.Position
	data.DistanceToListener = state.DistanceToListener
	data.DopplerFactor = state.DopplerFactor
	data.OcclusionFactor = state.OcclusionFactor
	data.ObstructionFactor = state.ObstructionFactor
	data.ActiveEffects = state.ActiveEffects
	data.EffectParameters = state.EffectParameters
	return data
}

func (c *engineCollector) CollectListenerData(id snapshot.ListenerID) *snapshot.ListenerData {
	data := snapshot.NewListenerData(id)
	if c.engine == nil {
		c.warnUnavailable()
		return data
	}

	state, ok := c.engine.ListenerState(id)
	if !ok {
		return data
	}
	data.Position = state.Position
	data.Velocity = state.Velocity
	data.Forward = state.Forward
	data.Up = state.Up
	data.Gain = state.Gain
	data.CurrentEnvironment = state.CurrentEnvironment
	data.EnvironmentParameters = state.EnvironmentParameters
	return data
}

func (c *engineCollector) CollectPerformanceData() *snapshot.PerformanceData {
	data := snapshot.NewPerformanceData()
	if c.engine == nil {
		c.warnUnavailable()
		return data
	}

	state := c.engine.Performance()
	data.TotalCPUUsage = state.TotalCPUUsage
	data.MixerCPUUsage = state.MixerCPUUsage
	data.DSPCPUUsage = state.DSPCPUUsage
	data.StreamingCPUUsage = state.StreamingCPUUsage
	data.TotalAllocatedMemory = state.TotalAllocatedMemory
	data.EngineMemory = state.EngineMemory
	data.AudioBufferMemory = state.AudioBufferMemory
	data.AssetMemory = state.AssetMemory
	data.ProcessedSamples = state.ProcessedSamples
	data.Underruns = state.Underruns
	data.Overruns = state.Overruns
	data.LatencyMs = state.LatencyMs
	data.ActiveThreadCount = state.ActiveThreadCount
	return data
}

func (c *engineCollector) AllEntityIDs() []snapshot.EntityID {
	if c.engine == nil {
		return nil
	}
	return c.engine.EntityIDs()
}

func (c *engineCollector) AllChannelIDs() []snapshot.ChannelID {
	if c.engine == nil {
		return nil
	}
	return c.engine.ChannelIDs()
}

func (c *engineCollector) AllListenerIDs() []snapshot.ListenerID {
	if c.engine == nil {
		return nil
	}
	return c.engine.ListenerIDs()
}
