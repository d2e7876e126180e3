package queue

import (
	"sync"
	"sync/atomic"

	"github.com/auralis-audio/aurascope/internal/snapshot"
)

// DefaultMaxSize is the queue capacity used when none is configured.
const DefaultMaxSize = 1000

// Queue is a bounded FIFO of snapshots. Push never blocks: when the queue is
// full the snapshot is dropped and counted instead. A full queue is expected
// backpressure, not an error.
type Queue struct {
	mu      sync.Mutex
	items   []snapshot.Snapshot
	maxSize int

	size    atomic.Int64
	dropped atomic.Uint64
}

// New creates a queue holding at most maxSize snapshots.
func New(maxSize int) *Queue {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Queue{maxSize: maxSize}
}

// Push enqueues a snapshot. Returns false and increments the dropped counter
// when the queue is at capacity.
func (q *Queue) Push(s snapshot.Snapshot) bool {
	q.mu.Lock()
	if len(q.items) >= q.maxSize {
		q.mu.Unlock()
		q.dropped.Add(1)
		return false
	}
	q.items = append(q.items, s)
	q.size.Store(int64(len(q.items)))
	q.mu.Unlock()
	return true
}

// Pop removes and returns the oldest snapshot, or (nil, false) when empty.
func (q *Queue) Pop() (snapshot.Snapshot, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	s := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	q.size.Store(int64(len(q.items)))
	return s, true
}

// PopBatch removes up to maxCount of the oldest snapshots in FIFO order.
// It may return fewer than maxCount, including none, and never blocks.
func (q *Queue) PopBatch(maxCount int) []snapshot.Snapshot {
	if maxCount <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	n := maxCount
	if n > len(q.items) {
		n = len(q.items)
	}
	if n == 0 {
		return nil
	}

	batch := make([]snapshot.Snapshot, n)
	copy(batch, q.items[:n])
	for i := 0; i < n; i++ {
		q.items[i] = nil
	}
	q.items = q.items[n:]
	q.size.Store(int64(len(q.items)))
	return batch
}

// Len returns the current queue size without taking the queue lock.
func (q *Queue) Len() int {
	return int(q.size.Load())
}

// Empty reports whether the queue has no snapshots.
func (q *Queue) Empty() bool {
	return q.size.Load() == 0
}

// Dropped returns the total number of snapshots rejected because the queue
// was full.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}

// Clear discards all queued snapshots without distributing them.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.items = nil
	q.size.Store(0)
	q.mu.Unlock()
}

// MaxSize returns the configured capacity.
func (q *Queue) MaxSize() int {
	return q.maxSize
}
