package mirror

import (
	"sync"

	"github.com/vanderheijden86/plmirror/pkg/metrics"
)

// ChangeQueue is a multi-producer, single-consumer FIFO of events.
//
// Post never blocks on the consumer: it appends under a short mutex and,
// for the first event of a batch, invokes the scheduler so the owning
// goroutine knows to call DrainAll.
type ChangeQueue struct {
	mu        sync.Mutex
	pending   []Event
	scheduled bool
	closed    bool
	schedule  func()
}

// NewChangeQueue creates a queue. schedule may be nil when the owner polls.
func NewChangeQueue(schedule func()) *ChangeQueue {
	return &ChangeQueue{schedule: schedule}
}

// Post enqueues ev. Safe from any goroutine; a no-op once closed.
func (q *ChangeQueue) Post(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.pending = append(q.pending, ev)
	kick := !q.scheduled && q.schedule != nil
	q.scheduled = true
	q.mu.Unlock()

	if kick {
		q.schedule()
	}
}

// Len returns the number of events waiting.
func (q *ChangeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *ChangeQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.pending = nil
}

func (q *ChangeQueue) take() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	batch := q.pending
	q.pending = nil
	q.scheduled = false
	return batch
}

// DrainAll applies every waiting event in post order, including events
// posted while draining, and returns how many were applied. covers tells
// whether a rebuild of the first identity re-reads everything the event
// would change; an event covered by a rebuild later in the same batch is
// dropped. Must only run on the owning goroutine.
func (q *ChangeQueue) DrainAll(covers func(rebuild int64, ev Event) bool, apply func(Event)) int {
	applied := 0
	for {
		batch := q.take()
		if len(batch) == 0 {
			return applied
		}
		applied += applyBatch(batch, covers, apply)
	}
}

// applyBatch applies batch in order, skipping events that a later rebuild
// in the batch makes redundant. A rebuild reads the backend as it is when
// it runs, so only events before it may be folded into it; events after it
// still run. Coverage is checked against the tree as it stands when the
// event comes up.
func applyBatch(batch []Event, covers func(int64, Event) bool, apply func(Event)) int {
	var rebuilds []int
	if covers != nil {
		for i, ev := range batch {
			if _, ok := ev.(SubtreeInvalidated); ok {
				rebuilds = append(rebuilds, i)
			}
		}
	}
	applied := 0
	for i, ev := range batch {
		if coveredLater(batch, rebuilds, i, covers) {
			metrics.CoalescedEvents.Inc()
			continue
		}
		apply(ev)
		applied++
	}
	return applied
}

func coveredLater(batch []Event, rebuilds []int, i int, covers func(int64, Event) bool) bool {
	for _, r := range rebuilds {
		if r <= i {
			continue
		}
		if covers(batch[r].(SubtreeInvalidated).ID, batch[i]) {
			return true
		}
	}
	return false
}
