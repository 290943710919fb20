package events

import (
	"container/heap"
	"sync/atomic"

	"github.com/regimeflow/regimeflow/internal/common/pool"
)

// node links a pending Event onto the queue's atomic pending list. Producers
// exchange Queue.pending (a Treiber-stack-style atomic head-exchange, not
// the Michael-Scott list in common/mpsc) so a push never blocks and never
// fails; the consumer alone drains this list and feeds a reordering heap,
// so LIFO build order here doesn't matter — the heap re-sorts by
// (timestamp, priority, sequence) on drain.
type node struct {
	event Event
	next  *node
}

// heapSlice is a container/heap.Interface over pooled *node pointers,
// ordered by the Event total order.
type heapSlice []*node

func (h heapSlice) Len() int            { return len(h) }
func (h heapSlice) Less(i, j int) bool  { return Less(h[i].event, h[j].event) }
func (h heapSlice) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *heapSlice) Push(x interface{}) { *h = append(*h, x.(*node)) }
func (h *heapSlice) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Queue is the multi-producer/single-consumer priority queue described in
// §4.1. Push is lock-free and wait-free per producer; Pop/Peek/Empty/Size
// must only be called from the single consumer goroutine (they drain the
// pending list, which is not itself safe for concurrent draining).
type Queue struct {
	sequence atomic.Uint64
	pending  atomic.Pointer[node]
	heap     heapSlice
	pool     *pool.Pool[node]
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{pool: pool.New[node]()}
}

// Push assigns the next sequence number, fills in the default priority if
// the caller left Priority unset and the event carries a recognized Type,
// and links the event onto the pending list via an atomic head-exchange.
// Allocation never fails (the pool grows geometrically on exhaustion), so
// Push never reports "queue full" — push failure is not part of this
// queue's contract.
func (q *Queue) Push(e Event) {
	e.Sequence = q.sequence.Add(1) - 1
	if e.Priority == 0 && e.Type <= TypeUser {
		e.Priority = DefaultPriority(e.Type)
	}
	n := q.pool.Get()
	n.event = e
	for {
		old := q.pending.Load()
		n.next = old
		if q.pending.CompareAndSwap(old, n) {
			return
		}
	}
}

// drain moves every node currently on the pending list into the heap,
// oldest-push-order-agnostic (the heap re-sorts). Nodes go back to the pool
// when Pop or Clear removes them from the heap.
func (q *Queue) drain() {
	head := q.pending.Swap(nil)
	for cur := head; cur != nil; {
		next := cur.next
		heap.Push(&q.heap, cur)
		cur = next
	}
}

// Pop removes and returns the minimum event by the §4.1 total order,
// reporting false if the queue is empty.
func (q *Queue) Pop() (Event, bool) {
	q.drain()
	if len(q.heap) == 0 {
		return Event{}, false
	}
	n := heap.Pop(&q.heap).(*node)
	e := n.event
	q.pool.Put(n)
	return e, true
}

// Peek inspects the minimum event without removing it.
func (q *Queue) Peek() (Event, bool) {
	q.drain()
	if len(q.heap) == 0 {
		return Event{}, false
	}
	return q.heap[0].event, true
}

// Empty reports whether the queue currently holds no events.
func (q *Queue) Empty() bool {
	q.drain()
	return len(q.heap) == 0
}

// Size reports the number of events currently queued.
func (q *Queue) Size() int {
	q.drain()
	return len(q.heap)
}

// Clear drains and discards all pending and queued events.
func (q *Queue) Clear() {
	q.drain()
	for _, n := range q.heap {
		q.pool.Put(n)
	}
	q.heap = q.heap[:0]
}
