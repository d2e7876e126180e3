package snapshot

import (
	"sync/atomic"
	"time"
)

// MessageID uniquely identifies a snapshot within the process. IDs are
// assigned from a single monotonically increasing counter and never reused.
type MessageID uint64

// EntityID identifies an entity tracked by the engine.
type EntityID uint64

// ChannelID identifies a playing channel.
type ChannelID uint64

// ListenerID identifies a listener.
type ListenerID uint64

// Category is a bit-flag classification of a snapshot used for filtering.
type Category uint32

const (
	CategoryNone        Category = 0
	CategoryEngine      Category = 1 << 0
	CategoryEntity      Category = 1 << 1
	CategoryChannel     Category = 1 << 2
	CategoryListener    Category = 1 << 3
	CategoryEnvironment Category = 1 << 4
	CategoryPerformance Category = 1 << 5
	CategoryMemory      Category = 1 << 6
	CategoryEvents      Category = 1 << 7
	CategoryAll         Category = 0xFFFFFFFF
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryEngine:
		return "engine"
	case CategoryEntity:
		return "entity"
	case CategoryChannel:
		return "channel"
	case CategoryListener:
		return "listener"
	case CategoryEnvironment:
		return "environment"
	case CategoryPerformance:
		return "performance"
	case CategoryMemory:
		return "memory"
	case CategoryEvents:
		return "events"
	case CategoryAll:
		return "all"
	default:
		return "mixed"
	}
}

// Priority indicates how urgent a snapshot is to deliver.
type Priority uint8

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Kind is the wire discriminator for a snapshot.
type Kind string

const (
	KindEngine      Kind = "engine"
	KindEntity      Kind = "entity"
	KindChannel     Kind = "channel"
	KindListener    Kind = "listener"
	KindPerformance Kind = "performance"
	KindEvent       Kind = "event"
)

// Vector3 is a 3D vector, serialized as a 3-element array.
type Vector3 [3]float64

var messageIDCounter atomic.Uint64

func nextMessageID() MessageID {
	return MessageID(messageIDCounter.Add(1))
}

// Header carries the fields common to every snapshot kind. The message ID
// and timestamp are assigned when the snapshot is constructed, not when it
// is queued or sent, so queue order is creation order.
type Header struct {
	Timestamp time.Time
	MessageID MessageID
	Category  Category
	Priority  Priority
}

func newHeader(category Category) Header {
	return Header{
		Timestamp: time.Now(),
		MessageID: nextMessageID(),
		Category:  category,
		Priority:  PriorityNormal,
	}
}

// Meta returns the common header fields.
func (h Header) Meta() Header { return h }

func (Header) sealed() {}

// Snapshot is the closed set of telemetry records flowing through the
// pipeline. Only the six kinds in this package implement it; consumers
// dispatch on the concrete type and must handle all of them.
type Snapshot interface {
	Meta() Header
	Kind() Kind
	sealed()
}

// EngineData captures global engine state.
type EngineData struct {
	Header

	IsInitialized bool
	EngineUptime  float64
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

func NewEngineData() *EngineData {
	return &EngineData{Header: newHeader(CategoryEngine), MasterGain: 1.0}
}

func (*EngineData) Kind() Kind { return KindEngine }

// EntityData captures the audio state of one entity.
type EntityData struct {
	Header

	EntityID EntityID
	Position Vector3
	Velocity Vector3
	Forward  Vector3
	Up       Vector3

	ActiveChannelCount uint32
	DistanceToListener float64
	Obstruction        float64
	Occlusion          float64

	Azimuth           float64
	Elevation         float64
	AttenuationFactor float64

	ChannelIDs         []ChannelID
	EnvironmentEffects map[uint64]float64
}

func NewEntityData(id EntityID) *EntityData {
	return &EntityData{
		Header:            newHeader(CategoryEntity),
		EntityID:          id,
		AttenuationFactor: 1.0,
	}
}

func (*EntityData) Kind() Kind { return KindEntity }

// PlaybackState describes what a channel is currently doing.
type PlaybackState string

const (
	PlaybackStopped PlaybackState = "stopped"
	PlaybackPlaying PlaybackState = "playing"
	PlaybackPaused  PlaybackState = "paused"
	PlaybackFading  PlaybackState = "fading"
)

// ChannelData captures the playback state of one channel.
type ChannelData struct {
	Header

	ChannelID      ChannelID
	PlaybackState  PlaybackState
	SourceEntityID EntityID

	SoundName     string
	SoundBankName string
	// Positions and durations are in milliseconds.
	PlaybackPosition float64
	TotalDuration    float64
	LoopCount        uint32
	CurrentLoop      uint32

	Gain float64

	Position           Vector3
	DistanceToListener float64
	DopplerFactor      float64
	OcclusionFactor    float64
	ObstructionFactor  float64

	ActiveEffects    []string
	EffectParameters map[string]float64
}

func NewChannelData(id ChannelID) *ChannelData {
	return &ChannelData{
		Header:            newHeader(CategoryChannel),
		ChannelID:         id,
		PlaybackState:     PlaybackStopped,
		Gain:              1.0,
		DopplerFactor:     1.0,
		OcclusionFactor:   1.0,
		ObstructionFactor: 1.0,
	}
}

func (*ChannelData) Kind() Kind { return KindChannel }

// ListenerData captures the state of one listener.
type ListenerData struct {
	Header

	ListenerID ListenerID
	Position   Vector3
	Velocity   Vector3
	Forward    Vector3
	Up         Vector3
	Gain       float64

	CurrentEnvironment    string
	EnvironmentParameters map[string]float64
}

func NewListenerData(id ListenerID) *ListenerData {
	return &ListenerData{Header: newHeader(CategoryListener), ListenerID: id, Gain: 1.0}
}

func (*ListenerData) Kind() Kind { return KindListener }

// PerformanceData captures mixer and pipeline performance counters.
type PerformanceData struct {
	Header

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

func NewPerformanceData() *PerformanceData {
	return &PerformanceData{Header: newHeader(CategoryPerformance)}
}

func (*PerformanceData) Kind() Kind { return KindPerformance }

// EventData is a discrete instrumented event.
type EventData struct {
	Header

	Name        string
	Description string
	Parameters  map[string]string
}

func NewEvent(name, description string) *EventData {
	return &EventData{
		Header:      newHeader(CategoryEvents),
		Name:        name,
		Description: description,
	}
}

func (*EventData) Kind() Kind { return KindEvent }
