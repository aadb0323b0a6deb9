package dispatch

import (
	"container/heap"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/relief-dispatch/pkg/enums"
)

// QueueItem is one request waiting for allocation.
type QueueItem struct {
	RequestID  uuid.UUID
	Priority   enums.Priority
	OrderValue int
	EnqueuedAt time.Time
	ReadyAt    time.Time
	Attempts   int
}

// PushResult describes what an enqueue did.
type PushResult int

const (
	PushAdded PushResult = iota
	PushRaised
	PushKept
)

type entry struct {
	item    QueueItem
	seq     uint64
	index   int
	delayed bool
}

type entryHeap struct {
	entries []*entry
	less    func(a, b *entry) bool
}

func (h *entryHeap) Len() int           { return len(h.entries) }
func (h *entryHeap) Less(i, j int) bool { return h.less(h.entries[i], h.entries[j]) }
func (h *entryHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
	h.entries[i].index = i
	h.entries[j].index = j
}
func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(h.entries)
	h.entries = append(h.entries, e)
}
func (h *entryHeap) Pop() any {
	old := h.entries
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	h.entries = old[:n-1]
	return e
}

func byOrder(a, b *entry) bool {
	if a.item.OrderValue != b.item.OrderValue {
		return a.item.OrderValue > b.item.OrderValue
	}
	if !a.item.EnqueuedAt.Equal(b.item.EnqueuedAt) {
		return a.item.EnqueuedAt.Before(b.item.EnqueuedAt)
	}
	return a.seq < b.seq
}

func byReadyAt(a, b *entry) bool {
	if !a.item.ReadyAt.Equal(b.item.ReadyAt) {
		return a.item.ReadyAt.Before(b.item.ReadyAt)
	}
	return a.seq < b.seq
}

// Queue orders requests by order value, then enqueue time. Items whose
// ReadyAt is in the future wait in a separate heap until due. At most one
// entry exists per request.
type Queue struct {
	mu      sync.Mutex
	ready   *entryHeap
	delayed *entryHeap
	byID    map[uuid.UUID]*entry
	seq     uint64
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{
		ready:   &entryHeap{less: byOrder},
		delayed: &entryHeap{less: byReadyAt},
		byID:    map[uuid.UUID]*entry{},
	}
}

// Push adds item unless the request is already queued. An existing entry is
// kept, with its order value raised when item carries a higher one. A raise
// also pulls a backed-off entry forward to the new item's ReadyAt.
func (q *Queue) Push(item QueueItem, now time.Time) PushResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.byID[item.RequestID]; ok {
		if item.OrderValue <= existing.item.OrderValue {
			return PushKept
		}
		existing.item.OrderValue = item.OrderValue
		existing.item.Priority = item.Priority
		if !existing.delayed {
			heap.Fix(q.ready, existing.index)
			return PushRaised
		}
		if item.ReadyAt.Before(existing.item.ReadyAt) {
			existing.item.ReadyAt = item.ReadyAt
		}
		if existing.item.ReadyAt.After(now) {
			heap.Fix(q.delayed, existing.index)
			return PushRaised
		}
		heap.Remove(q.delayed, existing.index)
		existing.delayed = false
		heap.Push(q.ready, existing)
		return PushRaised
	}

	q.seq++
	e := &entry{item: item, seq: q.seq}
	q.byID[item.RequestID] = e
	if item.ReadyAt.After(now) {
		e.delayed = true
		heap.Push(q.delayed, e)
	} else {
		heap.Push(q.ready, e)
	}
	return PushAdded
}

// PopReady removes the highest ranked item that is due at now.
func (q *Queue) PopReady(now time.Time) (QueueItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.delayed.Len() > 0 && !q.delayed.entries[0].item.ReadyAt.After(now) {
		e := heap.Pop(q.delayed).(*entry)
		e.delayed = false
		heap.Push(q.ready, e)
	}
	if q.ready.Len() == 0 {
		return QueueItem{}, false
	}
	e := heap.Pop(q.ready).(*entry)
	delete(q.byID, e.item.RequestID)
	return e.item, true
}

// NextReadyAt reports when the earliest delayed item becomes due.
func (q *Queue) NextReadyAt() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.delayed.Len() == 0 {
		return time.Time{}, false
	}
	return q.delayed.entries[0].item.ReadyAt, true
}

// Remove drops a request from the queue.
func (q *Queue) Remove(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	if e.delayed {
		heap.Remove(q.delayed, e.index)
	} else {
		heap.Remove(q.ready, e.index)
	}
	delete(q.byID, id)
	return true
}

// Contains reports whether the request is queued.
func (q *Queue) Contains(id uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.byID[id]
	return ok
}

// Len counts ready and delayed items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byID)
}
