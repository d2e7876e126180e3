package manager

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/auralis-audio/aurascope/internal/collector"
	"github.com/auralis-audio/aurascope/internal/config"
	"github.com/auralis-audio/aurascope/internal/encoding"
	"github.com/auralis-audio/aurascope/internal/queue"
	"github.com/auralis-audio/aurascope/internal/server"
	"github.com/auralis-audio/aurascope/internal/snapshot"
)

// MessageCallback receives every snapshot as it is distributed, before or
// alongside network delivery.
type MessageCallback func(snapshot.Snapshot)

// Statistics summarizes distribution activity since initialization (or the
// last reset).
type Statistics struct {
	TotalMessagesSent  uint64
	MessagesDropped    uint64
	BytesTransmitted   uint64
	AverageMessageSize float64
	ActiveClients      int
}

// Manager owns the capture queue, the scheduling loop and the network
// server. One manager drives one profiling session.
type Manager struct {
	// mu serializes lifecycle transitions. initialized is atomic so the
	// update loop and capture sites can check it without blocking on a
	// lifecycle operation in progress.
	mu          sync.Mutex
	initialized atomic.Bool

	enabled atomic.Bool

	configMu sync.RWMutex
	cfg      config.Config

	queue     *queue.Queue
	pool      *queue.Pool
	collector collector.Collector
	encoder   encoding.Encoder

	// srvMu guards srv; the update loop reads it while UpdateConfig may
	// swap it.
	srvMu sync.Mutex
	srv   *server.Server

	stopCh   chan struct{}
	loopDone chan struct{}

	callbacksMu    sync.Mutex
	callbacks      map[int]MessageCallback
	nextCallbackID int

	statsMu          sync.Mutex
	messagesSent     uint64
	bytesTransmitted uint64
	// droppedBase is the queue's dropped count at the last statistics
	// reset; the queue's own counter is monotonic.
	droppedBase uint64
}

var (
	instanceMu sync.Mutex
	instance   *Manager
)

// Instance returns the process-wide manager, creating it on first use.
func Instance() *Manager {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance == nil {
		instance = New()
	}
	return instance
}

// Destroy deinitializes and discards the process-wide manager.
func Destroy() {
	instanceMu.Lock()
	m := instance
	instance = nil
	instanceMu.Unlock()

	if m != nil {
		m.Deinitialize()
	}
}

// New creates an uninitialized manager. Most callers want Instance; tests
// use New for isolation.
func New() *Manager {
	return &Manager{
		callbacks: make(map[int]MessageCallback),
	}
}

// Initialize validates the configuration and brings the session up: queue,
// collector, the scheduling loop, and the network server when networking is
// enabled. Initializing an initialized manager is a no-op. engine may be
// nil, in which case captures produce default-valued snapshots.
func (m *Manager) Initialize(cfg config.Config, engine collector.Engine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized.Load() {
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	enc, err := encoding.NewEncoder(encoding.FormatJSON)
	if err != nil {
		return err
	}

	m.cfg = cfg
	m.encoder = enc
	m.queue = queue.New(int(cfg.MaxQueuedMessages))
	m.pool = queue.NewPool()
	m.collector = collector.New(engine)

	if cfg.EnableNetworking {
		srv := server.New(enc)
		if err := srv.Start(int(cfg.ServerPort), cfg.BindAddress, int(cfg.MaxClients)); err != nil {
			return fmt.Errorf("failed to start telemetry server: %w", err)
		}
		m.setServer(srv)
	}

	m.stopCh = make(chan struct{})
	m.loopDone = make(chan struct{})
	go m.updateLoop(m.stopCh, m.loopDone)

	m.initialized.Store(true)
	m.enabled.Store(true)
	log.Printf("[manager] initialized (mode=%s, %.1f Hz)", cfg.UpdateMode, cfg.UpdateFrequencyHz)
	return nil
}

// InitializeFromFile loads a configuration file and initializes with it.
func (m *Manager) InitializeFromFile(path string, engine collector.Engine) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	return m.Initialize(cfg, engine)
}

// Deinitialize stops the scheduling loop and the server and clears the
// queue. Deinitializing an uninitialized manager is a no-op.
func (m *Manager) Deinitialize() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized.Load() {
		return
	}

	m.enabled.Store(false)
	close(m.stopCh)
	<-m.loopDone

	if srv := m.setServer(nil); srv != nil {
		srv.Stop()
	}

	m.queue.Clear()
	m.initialized.Store(false)
	log.Printf("[manager] deinitialized")
}

// IsInitialized reports whether Initialize has completed.
func (m *Manager) IsInitialized() bool {
	return m.initialized.Load()
}

// IsEnabled reports whether captures are currently admitted.
func (m *Manager) IsEnabled() bool {
	return m.enabled.Load()
}

// SetEnabled pauses or resumes capture without tearing the session down.
func (m *Manager) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// GetConfig returns a copy of the active configuration.
func (m *Manager) GetConfig() config.Config {
	m.configMu.RLock()
	defer m.configMu.RUnlock()
	return m.cfg
}

// UpdateConfig validates and swaps in a new configuration. When network
// settings change, the server is restarted on the new ones; an invalid
// configuration leaves the active one untouched.
func (m *Manager) UpdateConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized.Load() {
		return fmt.Errorf("manager is not initialized")
	}

	m.configMu.Lock()
	old := m.cfg
	m.cfg = cfg
	m.configMu.Unlock()

	networkChanged := old.EnableNetworking != cfg.EnableNetworking ||
		old.ServerPort != cfg.ServerPort ||
		old.BindAddress != cfg.BindAddress ||
		old.MaxClients != cfg.MaxClients

	if !networkChanged {
		return nil
	}

	if srv := m.setServer(nil); srv != nil {
		srv.Stop()
	}
	if cfg.EnableNetworking {
		srv := server.New(m.encoder)
		if err := srv.Start(int(cfg.ServerPort), cfg.BindAddress, int(cfg.MaxClients)); err != nil {
			return fmt.Errorf("failed to restart telemetry server: %w", err)
		}
		m.setServer(srv)
	}
	return nil
}

// setServer swaps the active server and returns the previous one.
func (m *Manager) setServer(srv *server.Server) *server.Server {
	m.srvMu.Lock()
	old := m.srv
	m.srv = srv
	m.srvMu.Unlock()
	return old
}

func (m *Manager) server() *server.Server {
	m.srvMu.Lock()
	defer m.srvMu.Unlock()
	return m.srv
}

// SetCategoryMask replaces the capture category mask.
func (m *Manager) SetCategoryMask(mask snapshot.Category) {
	m.configMu.Lock()
	m.cfg.CategoryMask = mask
	m.configMu.Unlock()
}

// SetUpdateMode switches the scheduling mode.
func (m *Manager) SetUpdateMode(mode config.UpdateMode) {
	m.configMu.Lock()
	m.cfg.UpdateMode = mode
	m.configMu.Unlock()
}

// SetUpdateFrequency changes the capture rate. Out-of-range values are
// rejected.
func (m *Manager) SetUpdateFrequency(hz float64) error {
	if hz <= 0 || hz > 1000 {
		return fmt.Errorf("invalid update frequency: %g Hz (must be 0.1-1000)", hz)
	}
	m.configMu.Lock()
	m.cfg.UpdateFrequencyHz = hz
	m.configMu.Unlock()
	return nil
}

// RegisterMessageCallback adds a local observer for distributed snapshots
// and returns a handle for unregistering it.
func (m *Manager) RegisterMessageCallback(cb MessageCallback) int {
	m.callbacksMu.Lock()
	defer m.callbacksMu.Unlock()
	m.nextCallbackID++
	id := m.nextCallbackID
	m.callbacks[id] = cb
	return id
}

// UnregisterMessageCallback removes a previously registered callback.
func (m *Manager) UnregisterMessageCallback(id int) {
	m.callbacksMu.Lock()
	delete(m.callbacks, id)
	m.callbacksMu.Unlock()
}

// ClientCount returns the number of connected observers.
func (m *Manager) ClientCount() int {
	srv := m.server()
	if srv == nil {
		return 0
	}
	return srv.GetClientCount()
}

// ServerPort returns the bound server port, or 0 when networking is off.
func (m *Manager) ServerPort() int {
	srv := m.server()
	if srv == nil {
		return 0
	}
	return srv.Port()
}

// GetStatistics returns a snapshot of the distribution counters.
func (m *Manager) GetStatistics() Statistics {
	m.statsMu.Lock()
	sent := m.messagesSent
	bytes := m.bytesTransmitted
	droppedBase := m.droppedBase
	m.statsMu.Unlock()

	stats := Statistics{
		TotalMessagesSent: sent,
		BytesTransmitted:  bytes,
	}
	if sent > 0 {
		stats.AverageMessageSize = float64(bytes) / float64(sent)
	}
	if m.queue != nil {
		stats.MessagesDropped = m.queue.Dropped() - droppedBase
	}
	stats.ActiveClients = m.ClientCount()
	return stats
}

// ResetStatistics zeroes the distribution counters.
func (m *Manager) ResetStatistics() {
	m.statsMu.Lock()
	m.messagesSent = 0
	m.bytesTransmitted = 0
	if m.queue != nil {
		m.droppedBase = m.queue.Dropped()
	}
	m.statsMu.Unlock()
	if srv := m.server(); srv != nil {
		srv.ResetStatistics()
	}
}

// PoolStats exposes the snapshot allocation counters.
func (m *Manager) PoolStats() queue.PoolStats {
	if m.pool == nil {
		return queue.PoolStats{}
	}
	return m.pool.Stats()
}

// QueueLen returns the number of snapshots awaiting distribution.
func (m *Manager) QueueLen() int {
	if m.queue == nil {
		return 0
	}
	return m.queue.Len()
}
