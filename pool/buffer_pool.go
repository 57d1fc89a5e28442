package pool

import (
	"sync/atomic"

	"github.com/eapache/queue"
)

var poolIDs atomic.Uint64

// Pool is a per-worker, size-bucketed buffer pool. It is not safe for
// concurrent use: a Pool belongs to exactly one Worker and every
// Acquire/Release call must happen on that Worker's goroutine. Each bucket keeps
// its own free-list (a plain FIFO ring, not a lock) so Acquire/Release
// never block and never allocate once warmed up.
type Pool struct {
	id      uint64
	free    [5]*queue.Queue // indexed by Bucket
	warm    [5]int
	stats   Stats
	// Debug makes Release panic on a cross-pool return instead of
	// silently dropping the buffer. A double release is not detected in
	// either mode.
	Debug bool
}

// Stats tracks pool-local counters, useful for the buffer-conservation
// testable property (acquires == releases at idle).
type Stats struct {
	Acquires  uint64
	Releases  uint64
	Fallbacks uint64
}

// NewPool creates an empty buffer pool. Call Warm to pre-allocate a
// bucket's backing store before serving traffic.
func NewPool() *Pool {
	p := &Pool{id: poolIDs.Add(1)}
	for b := BucketTiny; b <= BucketLarge; b++ {
		p.free[b] = queue.New()
	}
	return p
}

// Warm pre-allocates n buffers into a bucket's free-list.
func (p *Pool) Warm(b Bucket, n int) {
	if b < BucketTiny || b > BucketLarge {
		return
	}
	for i := 0; i < n; i++ {
		p.free[b].Add(make([]byte, b.size()))
	}
	p.warm[b] += n
}

// Acquire returns a buffer able to hold at least n bytes. It never
// blocks: a bucket hit pops the free-list, a miss falls back to a fresh
// allocation tagged Fallback (surfaced via Stats.Fallbacks, the OOM
// signal in degenerate cases is a nil B on an allocator failure, which
// Go's allocator reports as a panic — callers at the Connection boundary
// recover from that and respond 503).
func (p *Pool) Acquire(n int) *Buffer {
	p.stats.Acquires++

	b := bucketFor(n)
	if b == BucketNone {
		p.stats.Fallbacks++
		return &Buffer{B: make([]byte, n), Bucket: BucketNone, Provenance: Fallback}
	}

	q := p.free[b]
	if q.Length() > 0 {
		buf := q.Remove().([]byte)
		return &Buffer{B: buf[:n], Bucket: b, Provenance: Pooled, ownerID: p.id}
	}

	p.stats.Fallbacks++
	return &Buffer{B: make([]byte, n, b.size()), Bucket: b, Provenance: Fallback}
}

// Release returns a buffer to its bucket's free-list. Fallback buffers
// are dropped for the GC. Releasing a Pooled buffer acquired from a
// different Pool is a programmer error: in Debug mode it panics, in
// release builds it is silently ignored (the buffer is abandoned to the
// GC rather than corrupting another worker's free-list).
func (p *Pool) Release(buf *Buffer) {
	if buf == nil || buf.B == nil {
		return
	}
	p.stats.Releases++

	if buf.Provenance == Fallback {
		return
	}

	if buf.ownerID != p.id {
		if p.Debug {
			panic(&errMismatchedPool{bucket: buf.Bucket, owner: buf.ownerID, got: p.id})
		}
		return
	}

	full := buf.B[:cap(buf.B)]
	p.free[buf.Bucket].Add(full)
}

// Occupancy returns the number of buffers currently resting in each
// bucket's free-list, for idle-baseline assertions in tests.
func (p *Pool) Occupancy(b Bucket) int {
	if b < BucketTiny || b > BucketLarge {
		return 0
	}
	return p.free[b].Length()
}

// StatsSnapshot returns a copy of the pool's counters.
func (p *Pool) StatsSnapshot() Stats { return p.stats }
