package reactor

import (
	"container/heap"
	"sync"
	"sync/atomic"
	"time"
)

type timerEntry struct {
	id       TimerID
	deadline time.Time
	cb       func()
	canceled bool
	index    int
}

// timerQueue is a container/heap.Interface min-heap ordered by deadline.
type timerQueue []*timerEntry

func (q timerQueue) Len() int            { return len(q) }
func (q timerQueue) Less(i, j int) bool  { return q[i].deadline.Before(q[j].deadline) }
func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *timerQueue) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*q)
	*q = append(*q, e)
}
func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return e
}

// timerHeap is a single-shot timer set, all methods safe for concurrent
// use (CancelTimer may be invoked during CLOSING cleanup while Run's
// goroutine is concurrently firing timers).
type timerHeap struct {
	mu      sync.Mutex
	q       timerQueue
	byID    map[TimerID]*timerEntry
	nextID  atomic.Uint64
}

func newTimerHeap() timerHeap {
	return timerHeap{byID: make(map[TimerID]*timerEntry)}
}

func (t *timerHeap) add(d time.Duration, cb func()) TimerID {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := TimerID(t.nextID.Add(1))
	e := &timerEntry{id: id, deadline: time.Now().Add(d), cb: cb}
	heap.Push(&t.q, e)
	t.byID[id] = e
	return id
}

// cancel is idempotent and safe on unknown/expired IDs.
func (t *timerHeap) cancel(id TimerID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.byID[id]
	if !ok {
		return
	}
	e.canceled = true
	delete(t.byID, id)
}

// fireDue pops and invokes every timer whose deadline has passed,
// outside the lock so a callback may itself create/cancel timers.
// Returns the wait until the next pending timer, or -1 if none remain.
func (t *timerHeap) fireDue() time.Duration {
	now := time.Now()
	var due []*timerEntry

	t.mu.Lock()
	for t.q.Len() > 0 {
		next := t.q[0]
		if next.canceled {
			heap.Pop(&t.q)
			continue
		}
		if next.deadline.After(now) {
			break
		}
		heap.Pop(&t.q)
		delete(t.byID, next.id)
		due = append(due, next)
	}
	var wait time.Duration = -1
	if t.q.Len() > 0 {
		wait = t.q[0].deadline.Sub(now)
		if wait < 0 {
			wait = 0
		}
	}
	t.mu.Unlock()

	for _, e := range due {
		if !e.canceled {
			e.cb()
		}
	}
	return wait
}
