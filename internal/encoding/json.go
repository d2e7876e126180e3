package encoding

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/auralis-audio/aurascope/internal/snapshot"
)

// envelope carries the fields common to every wire record.
type envelope struct {
	Timestamp int64         `json:"timestamp"` // microseconds since epoch
	MessageID uint64        `json:"messageId"`
	Category  uint32        `json:"category"`
	Priority  uint8         `json:"priority"`
	Type      snapshot.Kind `json:"type"`
}

type engineRecord struct {
	envelope
	IsInitialized       bool     `json:"isInitialized"`
	EngineUptime        float64  `json:"engineUptime"`
	ConfigFile          string   `json:"configFile"`
	TotalEntityCount    uint32   `json:"totalEntityCount"`
	ActiveEntityCount   uint32   `json:"activeEntityCount"`
	TotalChannelCount   uint32   `json:"totalChannelCount"`
	ActiveChannelCount  uint32   `json:"activeChannelCount"`
	TotalListenerCount  uint32   `json:"totalListenerCount"`
	ActiveListenerCount uint32   `json:"activeListenerCount"`
	CPUUsagePercent     float64  `json:"cpuUsagePercent"`
	MemoryUsageBytes    uint64   `json:"memoryUsageBytes"`
	MemoryPeakBytes     uint64   `json:"memoryPeakBytes"`
	ActiveVoiceCount    uint32   `json:"activeVoiceCount"`
	MaxVoiceCount       uint32   `json:"maxVoiceCount"`
	SampleRate          uint32   `json:"sampleRate"`
	ChannelCount        uint32   `json:"channelCount"`
	FrameCount          uint32   `json:"frameCount"`
	MasterGain          float64  `json:"masterGain"`
	LoadedSoundBanks    []string `json:"loadedSoundBanks,omitempty"`
	LoadedPlugins       []string `json:"loadedPlugins,omitempty"`
}

type entityRecord struct {
	envelope
	EntityID           uint64             `json:"entityId"`
	Position           snapshot.Vector3   `json:"position"`
	Velocity           snapshot.Vector3   `json:"velocity"`
	Forward            snapshot.Vector3   `json:"forward"`
	Up                 snapshot.Vector3   `json:"up"`
	ActiveChannelCount uint32             `json:"activeChannelCount"`
	DistanceToListener float64            `json:"distanceToListener"`
	Obstruction        float64            `json:"obstruction"`
	Occlusion          float64            `json:"occlusion"`
	Azimuth            float64            `json:"azimuth"`
	Elevation          float64            `json:"elevation"`
	AttenuationFactor  float64            `json:"attenuationFactor"`
	ChannelIDs         []uint64           `json:"channelIds,omitempty"`
	EnvironmentEffects map[uint64]float64 `json:"environmentEffects,omitempty"`
}

type channelRecord struct {
	envelope
	ChannelID          uint64             `json:"channelId"`
	PlaybackState      string             `json:"playbackState"`
	SourceEntityID     uint64             `json:"sourceEntityId"`
	SoundName          string             `json:"soundName"`
	SoundBankName      string             `json:"soundBankName"`
	PlaybackPosition   float64            `json:"playbackPosition"`
	TotalDuration      float64            `json:"totalDuration"`
	LoopCount          uint32             `json:"loopCount"`
	CurrentLoop        uint32             `json:"currentLoop"`
	Gain               float64            `json:"gain"`
	Position           snapshot.Vector3   `json:"position"`
	DistanceToListener float64            `json:"distanceToListener"`
	DopplerFactor      float64            `json:"dopplerFactor"`
	OcclusionFactor    float64            `json:"occlusionFactor"`
	ObstructionFactor  float64            `json:"obstructionFactor"`
	ActiveEffects      []string           `json:"activeEffects,omitempty"`
	EffectParameters   map[string]float64 `json:"effectParameters,omitempty"`
}

type listenerRecord struct {
	envelope
	ListenerID            uint64             `json:"listenerId"`
	Position              snapshot.Vector3   `json:"position"`
	Velocity              snapshot.Vector3   `json:"velocity"`
	Forward               snapshot.Vector3   `json:"forward"`
	Up                    snapshot.Vector3   `json:"up"`
	Gain                  float64            `json:"gain"`
	CurrentEnvironment    string             `json:"currentEnvironment"`
	EnvironmentParameters map[string]float64 `json:"environmentParameters,omitempty"`
}

type performanceRecord struct {
	envelope
	TotalCPUUsage        float64 `json:"totalCpuUsage"`
	MixerCPUUsage        float64 `json:"mixerCpuUsage"`
	DSPCPUUsage          float64 `json:"dspCpuUsage"`
	StreamingCPUUsage    float64 `json:"streamingCpuUsage"`
	TotalAllocatedMemory uint64  `json:"totalAllocatedMemory"`
	EngineMemory         uint64  `json:"engineMemory"`
	AudioBufferMemory    uint64  `json:"audioBufferMemory"`
	AssetMemory          uint64  `json:"assetMemory"`
	ProcessedSamples     uint32  `json:"processedSamples"`
	Underruns            uint32  `json:"underruns"`
	Overruns             uint32  `json:"overruns"`
	LatencyMs            float64 `json:"latencyMs"`
	ActiveThreadCount    uint32  `json:"activeThreadCount"`
}

type eventRecord struct {
	envelope
	Name        string            `json:"eventName"`
	Description string            `json:"description"`
	Parameters  map[string]string `json:"parameters,omitempty"`
}

// JSONEncoder produces one self-describing JSON object per snapshot.
type JSONEncoder struct{}

func NewJSONEncoder() *JSONEncoder {
	return &JSONEncoder{}
}

func (e *JSONEncoder) ContentType() string {
	return "application/json"
}

func newEnvelope(h snapshot.Header, kind snapshot.Kind) envelope {
	return envelope{
		Timestamp: h.Timestamp.UnixMicro(),
		MessageID: uint64(h.MessageID),
		Category:  uint32(h.Category),
		Priority:  uint8(h.Priority),
		Type:      kind,
	}
}

// Encode serializes a snapshot. Every kind in the closed set is handled;
// encoding a well-formed snapshot cannot fail beyond marshaling itself.
func (e *JSONEncoder) Encode(s snapshot.Snapshot) ([]byte, error) {
	switch d := s.(type) {
	case *snapshot.EngineData:
		return json.Marshal(engineRecord{
			envelope:            newEnvelope(d.Header, snapshot.KindEngine),
			IsInitialized:       d.IsInitialized,
			EngineUptime:        d.EngineUptime,
			ConfigFile:          d.ConfigFile,
			TotalEntityCount:    d.TotalEntityCount,
			ActiveEntityCount:   d.ActiveEntityCount,
			TotalChannelCount:   d.TotalChannelCount,
			ActiveChannelCount:  d.ActiveChannelCount,
			TotalListenerCount:  d.TotalListenerCount,
			ActiveListenerCount: d.ActiveListenerCount,
			CPUUsagePercent:     d.CPUUsagePercent,
			MemoryUsageBytes:    d.MemoryUsageBytes,
			MemoryPeakBytes:     d.MemoryPeakBytes,
			ActiveVoiceCount:    d.ActiveVoiceCount,
			MaxVoiceCount:       d.MaxVoiceCount,
			SampleRate:          d.SampleRate,
			ChannelCount:        d.ChannelCount,
			FrameCount:          d.FrameCount,
			MasterGain:          d.MasterGain,
			LoadedSoundBanks:    d.LoadedSoundBanks,
			LoadedPlugins:       d.LoadedPlugins,
		})
	case *snapshot.EntityData:
		return json.Marshal(entityRecord{
			envelope:           newEnvelope(d.Header, snapshot.KindEntity),
			EntityID:           uint64(d.EntityID),
			Position:           d.Position,
			Velocity:           d.Velocity,
			Forward:            d.Forward,
			Up:                 d.Up,
			ActiveChannelCount: d.ActiveChannelCount,
			DistanceToListener: d.DistanceToListener,
			Obstruction:        d.Obstruction,
			Occlusion:          d.Occlusion,
			Azimuth:            d.Azimuth,
			Elevation:          d.Elevation,
			AttenuationFactor:  d.AttenuationFactor,
			ChannelIDs:         channelIDs(d.ChannelIDs),
			EnvironmentEffects: d.EnvironmentEffects,
		})
	case *snapshot.ChannelData:
		return json.Marshal(channelRecord{
			envelope:           newEnvelope(d.Header, snapshot.KindChannel),
			ChannelID:          uint64(d.ChannelID),
			PlaybackState:      string(d.PlaybackState),
			SourceEntityID:     uint64(d.SourceEntityID),
			SoundName:          d.SoundName,
			SoundBankName:      d.SoundBankName,
			PlaybackPosition:   d.PlaybackPosition,
			TotalDuration:      d.TotalDuration,
			LoopCount:          d.LoopCount,
			CurrentLoop:        d.CurrentLoop,
			Gain:               d.Gain,
			Position:           d.Position,
			DistanceToListener: d.DistanceToListener,
			DopplerFactor:      d.DopplerFactor,
			OcclusionFactor:    d.OcclusionFactor,
			ObstructionFactor:  d.ObstructionFactor,
			ActiveEffects:      d.ActiveEffects,
			EffectParameters:   d.EffectParameters,
		})
	case *snapshot.ListenerData:
		return json.Marshal(listenerRecord{
			envelope:              newEnvelope(d.Header, snapshot.KindListener),
			ListenerID:            uint64(d.ListenerID),
			Position:              d.Position,
			Velocity:              d.Velocity,
			Forward:               d.Forward,
			Up:                    d.Up,
			Gain:                  d.Gain,
			CurrentEnvironment:    d.CurrentEnvironment,
			EnvironmentParameters: d.EnvironmentParameters,
		})
	case *snapshot.PerformanceData:
		return json.Marshal(performanceRecord{
			envelope:             newEnvelope(d.Header, snapshot.KindPerformance),
			TotalCPUUsage:        d.TotalCPUUsage,
			MixerCPUUsage:        d.MixerCPUUsage,
			DSPCPUUsage:          d.DSPCPUUsage,
			StreamingCPUUsage:    d.StreamingCPUUsage,
			TotalAllocatedMemory: d.TotalAllocatedMemory,
			EngineMemory:         d.EngineMemory,
			AudioBufferMemory:    d.AudioBufferMemory,
			AssetMemory:          d.AssetMemory,
			ProcessedSamples:     d.ProcessedSamples,
			Underruns:            d.Underruns,
			Overruns:             d.Overruns,
			LatencyMs:            d.LatencyMs,
			ActiveThreadCount:    d.ActiveThreadCount,
		})
	case *snapshot.EventData:
		return json.Marshal(eventRecord{
			envelope:    newEnvelope(d.Header, snapshot.KindEvent),
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	default:
		return nil, fmt.Errorf("unknown snapshot kind %T", s)
	}
}

func channelIDs(ids []snapshot.ChannelID) []uint64 {
	if len(ids) == 0 {
		return nil
	}
	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out
}

func restoreHeader(env envelope) snapshot.Header {
	return snapshot.Header{
		Timestamp: time.UnixMicro(env.Timestamp),
		MessageID: snapshot.MessageID(env.MessageID),
		Category:  snapshot.Category(env.Category),
		Priority:  snapshot.Priority(env.Priority),
	}
}

// Decode parses a wire record back into a snapshot. It is the observer-side
// counterpart of Encode; the type discriminator selects the concrete kind.
func Decode(data []byte) (snapshot.Snapshot, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse record envelope: %w", err)
	}

	switch env.Type {
	case snapshot.KindEngine:
		var rec engineRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse engine record: %w", err)
		}
		return &snapshot.EngineData{
			Header:              restoreHeader(rec.envelope),
			IsInitialized:       rec.IsInitialized,
			EngineUptime:        rec.EngineUptime,
			ConfigFile:          rec.ConfigFile,
			TotalEntityCount:    rec.TotalEntityCount,
			ActiveEntityCount:   rec.ActiveEntityCount,
			TotalChannelCount:   rec.TotalChannelCount,
			ActiveChannelCount:  rec.ActiveChannelCount,
			TotalListenerCount:  rec.TotalListenerCount,
			ActiveListenerCount: rec.ActiveListenerCount,
			CPUUsagePercent:     rec.CPUUsagePercent,
			MemoryUsageBytes:    rec.MemoryUsageBytes,
			MemoryPeakBytes:     rec.MemoryPeakBytes,
			ActiveVoiceCount:    rec.ActiveVoiceCount,
			MaxVoiceCount:       rec.MaxVoiceCount,
			SampleRate:          rec.SampleRate,
			ChannelCount:        rec.ChannelCount,
			FrameCount:          rec.FrameCount,
			MasterGain:          rec.MasterGain,
			LoadedSoundBanks:    rec.LoadedSoundBanks,
			LoadedPlugins:       rec.LoadedPlugins,
		}, nil
	case snapshot.KindEntity:
		var rec entityRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse entity record: %w", err)
		}
		ids := make([]snapshot.ChannelID, len(rec.ChannelIDs))
		for i, id := range rec.ChannelIDs {
			ids[i] = snapshot.ChannelID(id)
		}
		return &snapshot.EntityData{
			Header:             restoreHeader(rec.envelope),
			EntityID:           snapshot.EntityID(rec.EntityID),
			Position:           rec.Position,
			Velocity:           rec.Velocity,
			Forward:            rec.Forward,
			Up:                 rec.Up,
			ActiveChannelCount: rec.ActiveChannelCount,
			DistanceToListener: rec.DistanceToListener,
			Obstruction:        rec.Obstruction,
			Occlusion:          rec.Occlusion,
			Azimuth:            rec.Azimuth,
			Elevation:          rec.Elevation,
			AttenuationFactor:  rec.AttenuationFactor,
			ChannelIDs:         ids,
			EnvironmentEffects: rec.EnvironmentEffects,
		}, nil
	case snapshot.KindChannel:
		var rec channelRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse channel record: %w", err)
		}
		return &snapshot.ChannelData{
			Header:             restoreHeader(rec.envelope),
			ChannelID:          snapshot.ChannelID(rec.ChannelID),
			PlaybackState:      snapshot.PlaybackState(rec.PlaybackState),
			SourceEntityID:     snapshot.EntityID(rec.SourceEntityID),
			SoundName:          rec.SoundName,
			SoundBankName:      rec.SoundBankName,
			PlaybackPosition:   rec.PlaybackPosition,
			TotalDuration:      rec.TotalDuration,
			LoopCount:          rec.LoopCount,
			CurrentLoop:        rec.CurrentLoop,
			Gain:               rec.Gain,
			Position:           rec.Position,
			DistanceToListener: rec.DistanceToListener,
			DopplerFactor:      rec.DopplerFactor,
			OcclusionFactor:    rec.OcclusionFactor,
			ObstructionFactor:  rec.ObstructionFactor,
			ActiveEffects:      rec.ActiveEffects,
			EffectParameters:   rec.EffectParameters,
		}, nil
	case snapshot.KindListener:
		var rec listenerRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse listener record: %w", err)
		}
		return &snapshot.ListenerData{
			Header:                restoreHeader(rec.envelope),
			ListenerID:            snapshot.ListenerID(rec.ListenerID),
			Position:              rec.Position,
			Velocity:              rec.Velocity,
			Forward:               rec.Forward,
			Up:                    rec.Up,
			Gain:                  rec.Gain,
			CurrentEnvironment:    rec.CurrentEnvironment,
			EnvironmentParameters: rec.EnvironmentParameters,
		}, nil
	case snapshot.KindPerformance:
		var rec performanceRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse performance record: %w", err)
		}
		return &snapshot.PerformanceData{
			Header:               restoreHeader(rec.envelope),
			TotalCPUUsage:        rec.TotalCPUUsage,
			MixerCPUUsage:        rec.MixerCPUUsage,
			DSPCPUUsage:          rec.DSPCPUUsage,
			StreamingCPUUsage:    rec.StreamingCPUUsage,
			TotalAllocatedMemory: rec.TotalAllocatedMemory,
			EngineMemory:         rec.EngineMemory,
			AudioBufferMemory:    rec.AudioBufferMemory,
			AssetMemory:          rec.AssetMemory,
			ProcessedSamples:     rec.ProcessedSamples,
			Underruns:            rec.Underruns,
			Overruns:             rec.Overruns,
			LatencyMs:            rec.LatencyMs,
			ActiveThreadCount:    rec.ActiveThreadCount,
		}, nil
	case snapshot.KindEvent:
		var rec eventRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("failed to parse event record: %w", err)
		}
		return &snapshot.EventData{
			Header:      restoreHeader(rec.envelope),
			Name:        rec.Name,
			Description: rec.Description,
			Parameters:  rec.Parameters,
		}, nil
	default:
		return nil, fmt.Errorf("unknown record type %q", env.Type)
	}
}
