// Package arena implements the bump-pointer region allocator that backs all
// per-compilation data. Everything allocated from one Arena is released as a
// unit when the compilation finishes; nothing is freed individually.
package arena

import "sync"

const (
	// regionSize is the payload size of a single region. Large enough that a
	// typical method compiles out of one or two regions.
	regionSize = 64 * 1024

	// maxAlign is the worst alignment of any tracked type. Every allocation is
	// rounded up to it, which keeps the bump pointer trivially aligned.
	maxAlign = 8
)

type region struct {
	buf  []byte
	next *region
}

// Arena is a chained-region bump allocator. Not safe for concurrent use: one
// arena per compilation thread.
type Arena struct {
	head *region // current region being bumped
	pos  int     // bump offset into head.buf

	pool *RegionPool

	// bytesAllocated counts payload bytes handed out, for stats and for the
	// resource-exhaustion guard.
	bytesAllocated int
	limit          int
}

// New returns an arena drawing its regions from pool. A nil pool makes the
// arena allocate regions directly and drop them on Reset.
func New(pool *RegionPool) *Arena {
	return &Arena{pool: pool}
}

// SetLimit caps the total payload bytes the arena will hand out. Zero means no
// cap. Alloc panics with ErrExhausted semantics are not used here; callers
// check Exhausted at stage boundaries.
func (a *Arena) SetLimit(n int) { a.limit = n }

// Exhausted reports whether the arena has passed its byte limit.
func (a *Arena) Exhausted() bool {
	return a.limit != 0 && a.bytesAllocated > a.limit
}

// BytesAllocated returns the total payload bytes handed out since the last
// Reset.
func (a *Arena) BytesAllocated() int { return a.bytesAllocated }

// Alloc returns n bytes of zeroed storage aligned to the worst tracked
// alignment. Allocations larger than the region size get a dedicated region.
func (a *Arena) Alloc(n int) []byte {
	if n < 0 {
		panic("arena: negative allocation")
	}
	n = (n + maxAlign - 1) &^ (maxAlign - 1)
	a.bytesAllocated += n

	if n > regionSize {
		// Dedicated oversized region, linked behind the current one so the
		// current region keeps its remaining room.
		r := &region{buf: make([]byte, n)}
		if a.head != nil {
			r.next = a.head.next
			a.head.next = r
		} else {
			a.head = r
			a.pos = n
		}
		return r.buf
	}

	if a.head == nil || a.pos+n > len(a.head.buf) {
		a.grow()
	}
	b := a.head.buf[a.pos : a.pos+n : a.pos+n]
	a.pos += n
	return b
}

func (a *Arena) grow() {
	var r *region
	if a.pool != nil {
		r = a.pool.take()
	}
	if r == nil {
		r = &region{buf: make([]byte, regionSize)}
	}
	r.next = a.head
	a.head = r
	a.pos = 0
}

// Reset releases all regions back to the pool (or the garbage collector when
// the arena has no pool) and returns the arena to its initial state.
func (a *Arena) Reset() {
	for r := a.head; r != nil; {
		next := r.next
		r.next = nil
		if a.pool != nil && len(r.buf) == regionSize {
			a.pool.put(r)
		}
		r = next
	}
	a.head = nil
	a.pos = 0
	a.bytesAllocated = 0
}

// RegionPool recycles regions across compilations. Safe for concurrent use.
type RegionPool struct {
	mu   sync.Mutex
	free *region
}

// NewRegionPool returns an empty region pool.
func NewRegionPool() *RegionPool {
	return &RegionPool{}
}

func (p *RegionPool) take() *region {
	p.mu.Lock()
	r := p.free
	if r != nil {
		p.free = r.next
		r.next = nil
	}
	p.mu.Unlock()
	if r != nil {
		for i := range r.buf {
			r.buf[i] = 0
		}
	}
	return r
}

func (p *RegionPool) put(r *region) {
	p.mu.Lock()
	r.next = p.free
	p.free = r
	p.mu.Unlock()
}
