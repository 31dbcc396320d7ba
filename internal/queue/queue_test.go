package queue

import (
	"sync"
	"testing"

	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

func move(id core.EntityID, col int) core.Dispatch {
	return core.Dispatch{Entity: id, Kind: core.DispatchMove, Pos: core.GridPos{Col: col}}
}

func TestQueue_New(t *testing.T) {
	q := New[core.Dispatch]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
}

func TestQueue_PushPop(t *testing.T) {
	q := New[core.Dispatch]()

	if got := q.Pop(); got.Entity != 0 || got.Kind != core.DispatchReset {
		t.Errorf("expected zero value from empty queue, got %+v", got)
	}

	q.Push(move(1, 1), move(2, 2))
	q.Push(move(3, 3))
	if q.Len() != 3 {
		t.Fatalf("expected length 3, got %d", q.Len())
	}

	if first := q.Pop(); first.Entity != 1 {
		t.Errorf("expected entity 1 first, got %d", first.Entity)
	}
	if q.Len() != 2 {
		t.Errorf("expected length 2, got %d", q.Len())
	}
}

func TestQueue_Clear(t *testing.T) {
	q := New[core.Dispatch]()
	q.Push(move(1, 0), move(2, 0))

	q.Clear()

	if !q.Empty() {
		t.Error("expected empty queue after Clear")
	}
}

func TestQueue_DrainKeepsPushOrder(t *testing.T) {
	q := New[core.Dispatch]()
	for i := 0; i < 5; i++ {
		q.Push(move(core.EntityID(i), i))
	}

	got := q.Drain()

	if len(got) != 5 {
		t.Fatalf("expected 5 items, got %d", len(got))
	}
	for i, d := range got {
		if d.Entity != core.EntityID(i) {
			t.Errorf("item %d: expected entity %d, got %d", i, i, d.Entity)
		}
	}
	if !q.Empty() {
		t.Error("expected empty queue after Drain")
	}

	// drained slice must not be overwritten by later pushes
	q.Push(move(99, 99))
	if got[0].Entity != 0 {
		t.Errorf("drained slice changed: %+v", got[0])
	}
}

func TestQueue_RequeueGoesFirst(t *testing.T) {
	q := New[core.Dispatch]()
	q.Push(move(1, 1), move(2, 2))
	failed := q.Drain()
	q.Push(move(3, 3))

	q.Requeue(failed...)
	q.Requeue()

	got := q.Drain()
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got))
	}
	for i, want := range []core.EntityID{1, 2, 3} {
		if got[i].Entity != want {
			t.Errorf("item %d: expected entity %d, got %d", i, want, got[i].Entity)
		}
	}
}

func TestQueue_ConcurrentPushAndDrain(t *testing.T) {
	q := New[core.Dispatch]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(move(core.EntityID(id), id))
		}(i)
	}

	results := make(chan []core.Dispatch, 10)
	var dwg sync.WaitGroup
	for i := 0; i < 10; i++ {
		dwg.Add(1)
		go func() {
			defer dwg.Done()
			results <- q.Drain()
		}()
	}

	wg.Wait()
	dwg.Wait()
	close(results)

	total := q.Len()
	for r := range results {
		total += len(r)
	}
	if total != 100 {
		t.Errorf("expected 100 items across drains, got %d", total)
	}
}
