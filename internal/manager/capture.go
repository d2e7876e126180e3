package manager

import (
	"github.com/auralis-audio/aurascope/internal/snapshot"
)

// admits reports whether a capture of the given category should proceed.
func (m *Manager) admits(cat snapshot.Category) bool {
	if !m.IsInitialized() || !m.enabled.Load() {
		return false
	}
	m.configMu.RLock()
	defer m.configMu.RUnlock()
	return m.cfg.CapturesCategory(cat)
}

func (m *Manager) enqueue(s snapshot.Snapshot) bool {
	m.pool.Track(s.Kind())
	if !m.queue.Push(s) {
		m.pool.Release()
		return false
	}
	return true
}

// CaptureEngineState queues a snapshot of the engine-wide state.
func (m *Manager) CaptureEngineState() bool {
	if !m.admits(snapshot.CategoryEngine) {
		return false
	}
	return m.enqueue(m.collector.CollectEngineData())
}

// CaptureEntityState queues a snapshot of one entity.
func (m *Manager) CaptureEntityState(id snapshot.EntityID) bool {
	if !m.admits(snapshot.CategoryEntity) {
		return false
	}
	return m.enqueue(m.collector.CollectEntityData(id))
}

// CaptureChannelState queues a snapshot of one channel.
func (m *Manager) CaptureChannelState(id snapshot.ChannelID) bool {
	if !m.admits(snapshot.CategoryChannel) {
		return false
	}
	return m.enqueue(m.collector.CollectChannelData(id))
}

// CaptureListenerState queues a snapshot of one listener.
func (m *Manager) CaptureListenerState(id snapshot.ListenerID) bool {
	if !m.admits(snapshot.CategoryListener) {
		return false
	}
	return m.enqueue(m.collector.CollectListenerData(id))
}

// CapturePerformanceMetrics queues a snapshot of the pipeline counters.
func (m *Manager) CapturePerformanceMetrics() bool {
	if !m.admits(snapshot.CategoryPerformance) {
		return false
	}
	return m.enqueue(m.collector.CollectPerformanceData())
}

// CaptureEvent queues a discrete named event.
func (m *Manager) CaptureEvent(name, description string, params map[string]string) bool {
	if !m.admits(snapshot.CategoryEvents) {
		return false
	}
	ev := snapshot.NewEvent(name, description)
	ev.Parameters = params
	return m.enqueue(ev)
}

// CaptureAllEntities queues a snapshot for every live entity and returns the
// number captured.
func (m *Manager) CaptureAllEntities() int {
	if !m.admits(snapshot.CategoryEntity) {
		return 0
	}
	n := 0
	for _, id := range m.collector.AllEntityIDs() {
		if m.enqueue(m.collector.CollectEntityData(id)) {
			n++
		}
	}
	return n
}

// CaptureAllChannels queues a snapshot for every live channel.
func (m *Manager) CaptureAllChannels() int {
	if !m.admits(snapshot.CategoryChannel) {
		return 0
	}
	n := 0
	for _, id := range m.collector.AllChannelIDs() {
		if m.enqueue(m.collector.CollectChannelData(id)) {
			n++
		}
	}
	return n
}

// CaptureAllListeners queues a snapshot for every live listener.
func (m *Manager) CaptureAllListeners() int {
	if !m.admits(snapshot.CategoryListener) {
		return 0
	}
	n := 0
	for _, id := range m.collector.AllListenerIDs() {
		if m.enqueue(m.collector.CollectListenerData(id)) {
			n++
		}
	}
	return n
}

// CaptureFullState captures everything the configuration admits: the engine
// state, all entities, channels and listeners, and the performance
// counters. Returns the number of snapshots queued.
func (m *Manager) CaptureFullState() int {
	m.configMu.RLock()
	cfg := m.cfg
	m.configMu.RUnlock()

	n := 0
	if cfg.CaptureEngineState && m.CaptureEngineState() {
		n++
	}
	if cfg.CaptureEntityStates {
		n += m.CaptureAllEntities()
	}
	if cfg.CaptureChannelStates {
		n += m.CaptureAllChannels()
	}
	if cfg.CaptureListenerStates {
		n += m.CaptureAllListeners()
	}
	if cfg.CapturePerformanceMetrics && m.CapturePerformanceMetrics() {
		n++
	}
	return n
}
