package queue

import (
	"sync"
	"testing"

	"github.com/auralis-audio/aurascope/internal/snapshot"
)

func TestPushDropOnFull(t *testing.T) {
	q := New(2)

	a := snapshot.NewEvent("A", "")
	b := snapshot.NewEvent("B", "")
	c := snapshot.NewEvent("C", "")

	if !q.Push(a) {
		t.Fatal("push A should succeed")
	}
	if !q.Push(b) {
		t.Fatal("push B should succeed")
	}
	if q.Push(c) {
		t.Error("push C should fail on a full queue")
	}

	if q.Dropped() != 1 {
		t.Errorf("dropped count: got %d, want 1", q.Dropped())
	}
	if q.Len() != 2 {
		t.Errorf("size: got %d, want 2", q.Len())
	}

	batch := q.PopBatch(10)
	if len(batch) != 2 {
		t.Fatalf("expected 2 popped, got %d", len(batch))
	}
	if batch[0].(*snapshot.EventData).Name != "A" || batch[1].(*snapshot.EventData).Name != "B" {
		t.Error("popBatch must return entries in push order")
	}
	if !q.Empty() {
		t.Error("queue should be empty after draining")
	}
}

func TestSizeNeverExceedsMax(t *testing.T) {
	const max = 5
	q := New(max)

	rejected := 0
	for i := 0; i < 20; i++ {
		if !q.Push(snapshot.NewPerformanceData()) {
			rejected++
		}
		if q.Len() > max {
			t.Fatalf("size %d exceeds max %d", q.Len(), max)
		}
	}

	if rejected != 15 {
		t.Errorf("expected 15 rejected pushes, got %d", rejected)
	}
	if q.Dropped() != 15 {
		t.Errorf("dropped counter: got %d, want 15", q.Dropped())
	}
}

func TestPopFIFONoDuplicates(t *testing.T) {
	q := New(100)

	ids := make([]snapshot.MessageID, 0, 50)
	for i := 0; i < 50; i++ {
		s := snapshot.NewEngineData()
		ids = append(ids, s.MessageID)
		q.Push(s)
	}

	var got []snapshot.MessageID
	for {
		batch := q.PopBatch(7)
		if len(batch) == 0 {
			break
		}
		if len(batch) > 7 {
			t.Fatalf("batch larger than requested: %d", len(batch))
		}
		for _, s := range batch {
			got = append(got, s.Meta().MessageID)
		}
	}

	if len(got) != len(ids) {
		t.Fatalf("expected %d items, got %d", len(ids), len(got))
	}
	for i := range ids {
		if got[i] != ids[i] {
			t.Fatalf("order broken at %d: got %d, want %d", i, got[i], ids[i])
		}
	}
}

func TestPopEmpty(t *testing.T) {
	q := New(10)

	if s, ok := q.Pop(); ok || s != nil {
		t.Error("pop on empty queue should return nothing")
	}
	if batch := q.PopBatch(5); len(batch) != 0 {
		t.Errorf("popBatch on empty queue returned %d items", len(batch))
	}
}

func TestClear(t *testing.T) {
	q := New(10)
	for i := 0; i < 5; i++ {
		q.Push(snapshot.NewEvent("e", ""))
	}

	q.Clear()

	if !q.Empty() || q.Len() != 0 {
		t.Error("queue should be empty after clear")
	}
	if _, ok := q.Pop(); ok {
		t.Error("pop after clear should return nothing")
	}
}

func TestConcurrentPushPop(t *testing.T) {
	q := New(64)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				q.Push(snapshot.NewEvent("e", ""))
			}
		}()
	}

	popped := 0
	var popWg sync.WaitGroup
	popWg.Add(1)
	go func() {
		defer popWg.Done()
		for i := 0; i < 400; i++ {
			popped += len(q.PopBatch(8))
		}
	}()

	wg.Wait()
	popWg.Wait()

	drained := len(q.PopBatch(q.MaxSize()))
	total := popped + drained + int(q.Dropped())
	if total != 800 {
		t.Errorf("pushed 800, accounted for %d (popped %d, drained %d, dropped %d)",
			total, popped, drained, q.Dropped())
	}
}

func TestPoolStats(t *testing.T) {
	p := NewPool()

	p.Track(snapshot.KindEngine)
	p.Track(snapshot.KindEngine)
	p.Track(snapshot.KindEvent)
	p.Release()

	stats := p.Stats()
	if stats.TotalAllocations != 3 {
		t.Errorf("total allocations: got %d, want 3", stats.TotalAllocations)
	}
	if stats.Outstanding != 2 {
		t.Errorf("outstanding: got %d, want 2", stats.Outstanding)
	}
	if stats.PeakUsage != 3 {
		t.Errorf("peak: got %d, want 3", stats.PeakUsage)
	}
	if stats.ByKind[snapshot.KindEngine] != 2 {
		t.Errorf("engine allocations: got %d, want 2", stats.ByKind[snapshot.KindEngine])
	}

	p.Reset()
	if p.Stats().TotalAllocations != 0 {
		t.Error("reset should zero counters")
	}
}
