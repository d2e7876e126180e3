package manager

import (
	"math"
	"time"

	"github.com/auralis-audio/aurascope/internal/config"
	"github.com/auralis-audio/aurascope/internal/snapshot"
)

// loopTick bounds scheduling latency; capture timing itself follows the
// configured frequency.
const loopTick = time.Millisecond

// changeCaches holds the last distributed state per object for on-change
// scheduling. Owned by the update loop, never shared.
type changeCaches struct {
	entities  map[snapshot.EntityID]*snapshot.EntityData
	channels  map[snapshot.ChannelID]*snapshot.ChannelData
	listeners map[snapshot.ListenerID]*snapshot.ListenerData
}

func newChangeCaches() *changeCaches {
	return &changeCaches{
		entities:  make(map[snapshot.EntityID]*snapshot.EntityData),
		channels:  make(map[snapshot.ChannelID]*snapshot.ChannelData),
		listeners: make(map[snapshot.ListenerID]*snapshot.ListenerData),
	}
}

func (m *Manager) updateLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	caches := newChangeCaches()
	lastCapture := time.Time{}

	for {
		select {
		case <-stop:
			return
		case <-time.After(loopTick):
		}

		m.configMu.RLock()
		cfg := m.cfg
		m.configMu.RUnlock()

		if m.enabled.Load() {
			interval := time.Duration(cfg.UpdateInterval() * float64(time.Second))
			switch cfg.UpdateMode {
			case config.UpdateTimed:
				if time.Since(lastCapture) >= interval {
					m.CaptureFullState()
					lastCapture = time.Now()
				}
			case config.UpdatePerFrame:
				m.CaptureFullState()
			case config.UpdateOnChange:
				if time.Since(lastCapture) >= interval {
					m.captureChanged(cfg, caches)
					lastCapture = time.Now()
				}
			case config.UpdateManual:
				// Captures arrive through explicit calls only.
			}
		}

		m.drain(int(cfg.MaxMessagesPerFrame))
	}
}

// drain pops up to maxCount queued snapshots and distributes each one.
func (m *Manager) drain(maxCount int) {
	batch := m.queue.PopBatch(maxCount)
	if len(batch) == 0 {
		return
	}

	m.callbacksMu.Lock()
	callbacks := make([]MessageCallback, 0, len(m.callbacks))
	for _, cb := range m.callbacks {
		callbacks = append(callbacks, cb)
	}
	m.callbacksMu.Unlock()

	srv := m.server()

	for _, snap := range batch {
		for _, cb := range callbacks {
			cb(snap)
		}

		data, err := m.encoder.Encode(snap)
		if err != nil {
			m.pool.Release()
			continue
		}

		if srv != nil && srv.IsRunning() {
			srv.BroadcastMessage(string(data))
		}

		m.statsMu.Lock()
		m.messagesSent++
		m.bytesTransmitted += uint64(len(data))
		m.statsMu.Unlock()

		m.pool.Release()
	}
}

// captureChanged queues only the objects whose state moved beyond the
// configured thresholds since their last distribution. Objects never seen
// before always count as changed; cache entries for objects that disappeared
// are pruned.
func (m *Manager) captureChanged(cfg config.Config, caches *changeCaches) {
	if cfg.CaptureEngineState {
		m.CaptureEngineState()
	}
	if cfg.CapturePerformanceMetrics {
		m.CapturePerformanceMetrics()
	}

	if cfg.CaptureEntityStates && m.admits(snapshot.CategoryEntity) {
		live := make(map[snapshot.EntityID]bool)
		for _, id := range m.collector.AllEntityIDs() {
			live[id] = true
			cur := m.collector.CollectEntityData(id)
			prev, seen := caches.entities[id]
			if seen && !entityChanged(prev, cur, cfg) {
				continue
			}
			caches.entities[id] = cur
			m.enqueue(cur)
		}
		for id := range caches.entities {
			if !live[id] {
				delete(caches.entities, id)
			}
		}
	}

	if cfg.CaptureChannelStates && m.admits(snapshot.CategoryChannel) {
		live := make(map[snapshot.ChannelID]bool)
		for _, id := range m.collector.AllChannelIDs() {
			live[id] = true
			cur := m.collector.CollectChannelData(id)
			prev, seen := caches.channels[id]
			if seen && !channelChanged(prev, cur, cfg) {
				continue
			}
			caches.channels[id] = cur
			m.enqueue(cur)
		}
		for id := range caches.channels {
			if !live[id] {
				delete(caches.channels, id)
			}
		}
	}

	if cfg.CaptureListenerStates && m.admits(snapshot.CategoryListener) {
		live := make(map[snapshot.ListenerID]bool)
		for _, id := range m.collector.AllListenerIDs() {
			live[id] = true
			cur := m.collector.CollectListenerData(id)
			prev, seen := caches.listeners[id]
			if seen && !listenerChanged(prev, cur, cfg) {
				continue
			}
			caches.listeners[id] = cur
			m.enqueue(cur)
		}
		for id := range caches.listeners {
			if !live[id] {
				delete(caches.listeners, id)
			}
		}
	}
}

func entityChanged(prev, cur *snapshot.EntityData, cfg config.Config) bool {
	if vecDistance(prev.Position, cur.Position) > cfg.PositionChangeThreshold {
		return true
	}
	if vecAngle(prev.Forward, cur.Forward) > cfg.OrientationChangeThreshold {
		return true
	}
	return false
}

func channelChanged(prev, cur *snapshot.ChannelData, cfg config.Config) bool {
	if prev.PlaybackState != cur.PlaybackState {
		return true
	}
	if relativeDelta(prev.Gain, cur.Gain) > cfg.ParameterChangeThreshold {
		return true
	}
	if vecDistance(prev.Position, cur.Position) > cfg.PositionChangeThreshold {
		return true
	}
	return false
}

func listenerChanged(prev, cur *snapshot.ListenerData, cfg config.Config) bool {
	if vecDistance(prev.Position, cur.Position) > cfg.PositionChangeThreshold {
		return true
	}
	if vecAngle(prev.Forward, cur.Forward) > cfg.OrientationChangeThreshold {
		return true
	}
	if relativeDelta(prev.Gain, cur.Gain) > cfg.ParameterChangeThreshold {
		return true
	}
	return false
}

func vecDistance(a, b snapshot.Vector3) float64 {
	dx := a[0] - b[0]
	dy := a[1] - b[1]
	dz := a[2] - b[2]
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// vecAngle returns the angle between two direction vectors in radians. Zero
// vectors compare as unchanged.
func vecAngle(a, b snapshot.Vector3) float64 {
	la := math.Sqrt(a[0]*a[0] + a[1]*a[1] + a[2]*a[2])
	lb := math.Sqrt(b[0]*b[0] + b[1]*b[1] + b[2]*b[2])
	if la == 0 || lb == 0 {
		return 0
	}
	dot := (a[0]*b[0] + a[1]*b[1] + a[2]*b[2]) / (la * lb)
	return math.Acos(math.Max(-1, math.Min(1, dot)))
}

// relativeDelta returns |a-b| relative to the larger magnitude. Both zero
// means no change.
func relativeDelta(a, b float64) float64 {
	base := math.Max(math.Abs(a), math.Abs(b))
	if base == 0 {
		return 0
	}
	return math.Abs(a-b) / base
}
