package queue

import (
	"sync"

	"github.com/auralis-audio/aurascope/internal/snapshot"
)

// PoolStats summarizes snapshot allocation activity.
type PoolStats struct {
	TotalAllocations uint64
	Outstanding      uint64
	PeakUsage        uint64
	ByKind           map[snapshot.Kind]uint64
}

// Pool tracks snapshot allocation statistics. The Go runtime owns the memory
// itself, so unlike a native allocator this pool never caches objects; it
// exists so capture and distribution keep allocation counters comparable
// across builds.
type Pool struct {
	mu    sync.Mutex
	stats PoolStats
}

// NewPool creates an empty statistics pool.
func NewPool() *Pool {
	return &Pool{stats: PoolStats{ByKind: make(map[snapshot.Kind]uint64)}}
}

// Track records the allocation of one snapshot of the given kind.
func (p *Pool) Track(kind snapshot.Kind) {
	p.mu.Lock()
	p.stats.TotalAllocations++
	p.stats.Outstanding++
	if p.stats.Outstanding > p.stats.PeakUsage {
		p.stats.PeakUsage = p.stats.Outstanding
	}
	p.stats.ByKind[kind]++
	p.mu.Unlock()
}

// Release records that a snapshot has left the pipeline.
func (p *Pool) Release() {
	p.mu.Lock()
	if p.stats.Outstanding > 0 {
		p.stats.Outstanding--
	}
	p.mu.Unlock()
}

// Stats returns a copy of the current statistics.
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := p.stats
	out.ByKind = make(map[snapshot.Kind]uint64, len(p.stats.ByKind))
	for k, v := range p.stats.ByKind {
		out.ByKind[k] = v
	}
	return out
}

// Reset zeroes all counters.
func (p *Pool) Reset() {
	p.mu.Lock()
	p.stats = PoolStats{ByKind: make(map[snapshot.Kind]uint64)}
	p.mu.Unlock()
}
