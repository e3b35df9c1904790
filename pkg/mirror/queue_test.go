package mirror

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/vanderheijden86/plmirror/pkg/metrics"
)

func TestChangeQueueSchedulesOncePerBatch(t *testing.T) {
	var kicks atomic.Int32
	q := NewChangeQueue(func() { kicks.Add(1) })

	q.Post(Removed{ID: 1})
	q.Post(Removed{ID: 2})
	q.Post(Removed{ID: 3})
	if got := kicks.Load(); got != 1 {
		t.Fatalf("scheduler called %d times for one batch, want 1", got)
	}

	var applied []Event
	n := q.DrainAll(nil, func(ev Event) { applied = append(applied, ev) })
	if n != 3 || len(applied) != 3 {
		t.Fatalf("drained %d events, want 3", n)
	}
	for i, ev := range applied {
		if ev.(Removed).ID != int64(i+1) {
			t.Errorf("event %d = %v, want post order", i, ev)
		}
	}

	q.Post(Removed{ID: 4})
	if got := kicks.Load(); got != 2 {
		t.Errorf("scheduler called %d times after second batch, want 2", got)
	}
}

func TestChangeQueueDrainsEventsPostedWhileDraining(t *testing.T) {
	q := NewChangeQueue(nil)
	q.Post(Removed{ID: 1})

	var seen []int64
	q.DrainAll(nil, func(ev Event) {
		id := ev.(Removed).ID
		seen = append(seen, id)
		if id < 3 {
			q.Post(Removed{ID: id + 1})
		}
	})
	if len(seen) != 3 {
		t.Errorf("seen = %v, want 3 events", seen)
	}
	if q.Len() != 0 {
		t.Errorf("queue still holds %d events", q.Len())
	}
}

func TestChangeQueueConcurrentProducers(t *testing.T) {
	q := NewChangeQueue(func() {})
	const producers, perProducer = 8, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Post(Appended{Parent: int64(p), Item: testLeaf(int64(i), "x")})
			}
		}(p)
	}
	wg.Wait()

	last := make(map[int64]int64)
	for p := int64(0); p < producers; p++ {
		last[p] = -1
	}
	n := q.DrainAll(nil, func(ev Event) {
		a := ev.(Appended)
		if a.Item.ID <= last[a.Parent] {
			t.Errorf("producer %d out of order: %d after %d", a.Parent, a.Item.ID, last[a.Parent])
		}
		last[a.Parent] = a.Item.ID
	})
	if n != producers*perProducer {
		t.Errorf("drained %d events, want %d", n, producers*perProducer)
	}
}

func TestChangeQueueClosedDropsPosts(t *testing.T) {
	q := NewChangeQueue(nil)
	q.Post(Removed{ID: 1})
	q.close()
	q.Post(Removed{ID: 2})
	if n := q.DrainAll(nil, func(Event) {}); n != 0 {
		t.Errorf("closed queue drained %d events", n)
	}
}

func TestApplyBatchFoldsIntoLaterRebuilds(t *testing.T) {
	// 10 contains 11, which contains 12. 20 is unrelated.
	under := map[int64][]int64{10: {10, 11, 12}, 11: {11, 12}, 12: {12}, 20: {20}}
	covers := func(x int64, ev Event) bool {
		var target int64
		switch ev := ev.(type) {
		case Appended:
			target = ev.Parent
		case Removed:
			if ev.ID == x {
				return false
			}
			target = ev.ID
		case SubtreeInvalidated:
			target = ev.ID
		default:
			return false
		}
		for _, id := range under[x] {
			if id == target {
				return true
			}
		}
		return false
	}

	tests := []struct {
		name    string
		batch   []Event
		want    []Event
		dropped int64
	}{
		{
			name:  "no rebuild",
			batch: []Event{Removed{ID: 11}, InputUpdated{Input: 3}},
			want:  []Event{Removed{ID: 11}, InputUpdated{Input: 3}},
		},
		{
			name:    "append before rebuild",
			batch:   []Event{Appended{Parent: 11, Item: testLeaf(30, "x")}, SubtreeInvalidated{ID: 10}},
			want:    []Event{SubtreeInvalidated{ID: 10}},
			dropped: 1,
		},
		{
			name:  "removal after rebuild still runs",
			batch: []Event{SubtreeInvalidated{ID: 10}, Removed{ID: 12}},
			want:  []Event{SubtreeInvalidated{ID: 10}, Removed{ID: 12}},
		},
		{
			name:  "removal of the rebuilt node survives",
			batch: []Event{Removed{ID: 11}, SubtreeInvalidated{ID: 11}},
			want:  []Event{Removed{ID: 11}, SubtreeInvalidated{ID: 11}},
		},
		{
			name:    "nested rebuild folds into later outer",
			batch:   []Event{SubtreeInvalidated{ID: 12}, SubtreeInvalidated{ID: 10}},
			want:    []Event{SubtreeInvalidated{ID: 10}},
			dropped: 1,
		},
		{
			name:  "nested rebuild after outer runs",
			batch: []Event{SubtreeInvalidated{ID: 10}, SubtreeInvalidated{ID: 12}},
			want:  []Event{SubtreeInvalidated{ID: 10}, SubtreeInvalidated{ID: 12}},
		},
		{
			name:    "duplicate rebuild keeps last",
			batch:   []Event{SubtreeInvalidated{ID: 20}, InputUpdated{Input: 1}, SubtreeInvalidated{ID: 20}},
			want:    []Event{InputUpdated{Input: 1}, SubtreeInvalidated{ID: 20}},
			dropped: 1,
		},
		{
			name:  "unrelated subtree untouched",
			batch: []Event{Appended{Parent: 11, Item: testLeaf(31, "x")}, SubtreeInvalidated{ID: 20}},
			want:  []Event{Appended{Parent: 11, Item: testLeaf(31, "x")}, SubtreeInvalidated{ID: 20}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics.CoalescedEvents.Reset()
			var got []Event
			n := applyBatch(tt.batch, covers, func(ev Event) { got = append(got, ev) })
			if n != len(got) || len(got) != len(tt.want) {
				t.Fatalf("applied %v (n=%d), want %v", got, n, tt.want)
			}
			for i := range got {
				if got[i].String() != tt.want[i].String() {
					t.Errorf("event %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
			if n := metrics.CoalescedEvents.Value(); n != tt.dropped {
				t.Errorf("coalesced counter = %d, want %d", n, tt.dropped)
			}
		})
	}
}

func TestApplyBatchChecksCoverageWhenTheEventComesUp(t *testing.T) {
	// 3 only becomes part of 10 once the first event has been applied.
	live := map[int64]bool{10: true}
	covers := func(x int64, ev Event) bool {
		if a, ok := ev.(Appended); ok {
			return x == 10 && live[a.Parent]
		}
		return false
	}
	batch := []Event{
		Appended{Parent: 99, Item: testLeaf(3, "c")},
		Appended{Parent: 3, Item: testLeaf(4, "x")},
		SubtreeInvalidated{ID: 10},
	}
	var got []Event
	applyBatch(batch, covers, func(ev Event) {
		got = append(got, ev)
		if a, ok := ev.(Appended); ok {
			live[a.Item.ID] = true
		}
	})
	if len(got) != 2 || got[0].String() != batch[0].String() || got[1].String() != batch[2].String() {
		t.Errorf("applied %v, want the first append and the rebuild", got)
	}
}
