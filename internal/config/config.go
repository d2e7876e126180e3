package config

import (
	"fmt"
	"math"

	"github.com/auralis-audio/aurascope/internal/snapshot"
)

const (
	// DefaultServerPort is the well-known profiler port.
	DefaultServerPort uint16 = 27002

	// MaxClients is the hard cap on concurrent observer connections.
	MaxClients uint32 = 8

	// DefaultMessageBufferSize is the per-message buffer size in bytes.
	DefaultMessageBufferSize uint32 = 1024 * 1024

	// MinMessageBufferSize is the smallest accepted message buffer.
	MinMessageBufferSize uint32 = 1024

	// DefaultMaxQueuedMessages bounds the capture queue.
	DefaultMaxQueuedMessages uint32 = 1000
)

// UpdateMode selects how the scheduling loop decides when to capture.
type UpdateMode uint8

const (
	// UpdateTimed captures the full configured state at fixed intervals.
	UpdateTimed UpdateMode = iota
	// UpdateOnChange captures only states that moved beyond the configured
	// thresholds.
	UpdateOnChange
	// UpdatePerFrame captures on every scheduling-loop iteration.
	UpdatePerFrame
	// UpdateManual captures only through explicit capture calls.
	UpdateManual
)

func (m UpdateMode) String() string {
	switch m {
	case UpdateTimed:
		return "timed"
	case UpdateOnChange:
		return "on_change"
	case UpdatePerFrame:
		return "per_frame"
	case UpdateManual:
		return "manual"
	default:
		return "timed"
	}
}

// ParseUpdateMode maps a config string to an update mode. Unknown strings
// fall back to timed, matching the loader's lenient key handling.
func ParseUpdateMode(s string) UpdateMode {
	switch s {
	case "on_change":
		return UpdateOnChange
	case "per_frame":
		return UpdatePerFrame
	case "manual":
		return UpdateManual
	default:
		return UpdateTimed
	}
}

func (m UpdateMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *UpdateMode) UnmarshalText(text []byte) error {
	*m = ParseUpdateMode(string(text))
	return nil
}

// LogLevel gates the profiler's own log output.
type LogLevel string

const (
	LogDebug    LogLevel = "debug"
	LogInfo     LogLevel = "info"
	LogWarning  LogLevel = "warning"
	LogError    LogLevel = "error"
	LogCritical LogLevel = "critical"
)

// Config is the full profiler configuration. Zero values are not usable;
// start from Default and override.
type Config struct {
	// Network settings
	EnableNetworking bool   `json:"enable_networking" yaml:"enable_networking"`
	ServerPort       uint16 `json:"server_port" yaml:"server_port"`
	MaxClients       uint32 `json:"max_clients" yaml:"max_clients"`
	BindAddress      string `json:"bind_address" yaml:"bind_address"`

	// Update settings
	UpdateMode          UpdateMode `json:"update_mode" yaml:"update_mode"`
	UpdateFrequencyHz   float64    `json:"update_frequency_hz" yaml:"update_frequency_hz"`
	MaxMessagesPerFrame uint32     `json:"max_messages_per_frame" yaml:"max_messages_per_frame"`

	// Data capture settings
	CategoryMask              snapshot.Category `json:"category_mask" yaml:"category_mask"`
	CaptureEngineState        bool              `json:"capture_engine_state" yaml:"capture_engine_state"`
	CaptureEntityStates       bool              `json:"capture_entity_states" yaml:"capture_entity_states"`
	CaptureChannelStates      bool              `json:"capture_channel_states" yaml:"capture_channel_states"`
	CaptureListenerStates     bool              `json:"capture_listener_states" yaml:"capture_listener_states"`
	CapturePerformanceMetrics bool              `json:"capture_performance_metrics" yaml:"capture_performance_metrics"`
	CaptureEvents             bool              `json:"capture_events" yaml:"capture_events"`

	// Performance settings
	MessageBufferSize uint32 `json:"message_buffer_size" yaml:"message_buffer_size"`
	MaxQueuedMessages uint32 `json:"max_queued_messages" yaml:"max_queued_messages"`

	// Change-detection thresholds
	PositionChangeThreshold    float64 `json:"position_change_threshold" yaml:"position_change_threshold"`
	OrientationChangeThreshold float64 `json:"orientation_change_threshold" yaml:"orientation_change_threshold"`
	ParameterChangeThreshold   float64 `json:"parameter_change_threshold" yaml:"parameter_change_threshold"`

	// Debug settings
	EnableLogging bool     `json:"enable_logging" yaml:"enable_logging"`
	LoggingLevel  LogLevel `json:"logging_level" yaml:"logging_level"`
	LogFilePath   string   `json:"log_file_path" yaml:"log_file_path"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		EnableNetworking: true,
		ServerPort:       DefaultServerPort,
		MaxClients:       MaxClients,
		BindAddress:      "127.0.0.1",

		UpdateMode:          UpdateTimed,
		UpdateFrequencyHz:   30.0,
		MaxMessagesPerFrame: 100,

		CategoryMask:              snapshot.CategoryAll,
		CaptureEngineState:        true,
		CaptureEntityStates:       true,
		CaptureChannelStates:      true,
		CaptureListenerStates:     true,
		CapturePerformanceMetrics: true,
		CaptureEvents:             true,

		MessageBufferSize: DefaultMessageBufferSize,
		MaxQueuedMessages: DefaultMaxQueuedMessages,

		PositionChangeThreshold:    0.01,     // 1cm
		OrientationChangeThreshold: 0.017453, // ~1 degree
		ParameterChangeThreshold:   0.01,     // 1%

		EnableLogging: false,
		LoggingLevel:  LogDebug,
		LogFilePath:   "aurascope.log",
	}
}

// Validate checks every setting and returns a descriptive error for the
// first invalid one. Values are never clamped.
func (c Config) Validate() error {
	if c.EnableNetworking {
		if c.ServerPort == 0 {
			return fmt.Errorf("invalid server port: %d", c.ServerPort)
		}
		if c.MaxClients == 0 || c.MaxClients > MaxClients {
			return fmt.Errorf("invalid max clients: %d (must be 1-%d)", c.MaxClients, MaxClients)
		}
		if c.BindAddress == "" {
			return fmt.Errorf("bind address cannot be empty when networking is enabled")
		}
	}

	if c.UpdateFrequencyHz <= 0 || c.UpdateFrequencyHz > 1000 {
		return fmt.Errorf("invalid update frequency: %g Hz (must be 0.1-1000)", c.UpdateFrequencyHz)
	}
	if c.MaxMessagesPerFrame == 0 || c.MaxMessagesPerFrame > 10000 {
		return fmt.Errorf("invalid max messages per frame: %d (must be 1-10000)", c.MaxMessagesPerFrame)
	}

	if c.MessageBufferSize < MinMessageBufferSize {
		return fmt.Errorf("message buffer size too small: %d (minimum %d bytes)", c.MessageBufferSize, MinMessageBufferSize)
	}
	if c.MaxQueuedMessages == 0 || c.MaxQueuedMessages > 100000 {
		return fmt.Errorf("invalid max queued messages: %d (must be 1-100000)", c.MaxQueuedMessages)
	}

	if c.PositionChangeThreshold < 0 || c.PositionChangeThreshold > 1000 {
		return fmt.Errorf("invalid position change threshold: %g (must be 0-1000)", c.PositionChangeThreshold)
	}
	if c.OrientationChangeThreshold < 0 || c.OrientationChangeThreshold > math.Pi {
		return fmt.Errorf("invalid orientation change threshold: %g (must be 0-π)", c.OrientationChangeThreshold)
	}
	if c.ParameterChangeThreshold < 0 || c.ParameterChangeThreshold > 1 {
		return fmt.Errorf("invalid parameter change threshold: %g (must be 0-1)", c.ParameterChangeThreshold)
	}

	if c.EnableLogging && c.LogFilePath == "" {
		return fmt.Errorf("log file path cannot be empty when logging is enabled")
	}

	return nil
}

// UpdateInterval converts the configured frequency to a loop interval.
func (c Config) UpdateInterval() float64 {
	return 1.0 / c.UpdateFrequencyHz
}

// CapturesCategory reports whether the category mask admits snapshots of the
// given category.
func (c Config) CapturesCategory(cat snapshot.Category) bool {
	return c.CategoryMask&cat != 0
}
