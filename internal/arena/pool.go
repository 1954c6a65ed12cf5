package arena

// poolChunkShift sizes Pool chunks at 128 entries: small methods stay in one
// chunk, big ones grow by whole chunks without moving earlier entries.
const poolChunkShift = 7

// Pool is a chunked allocator of T with stable indices: View(i) returns the
// i-th allocated object and stays valid for the lifetime of the pool. It
// backs the per-compilation node vectors (instructions, live intervals) so
// that cross-references can be 32-bit indices instead of pointers. Pool is
// the typed counterpart of Arena: same release-as-a-unit lifetime, but the
// storage is reused in place by Reset instead of going back to a region
// pool.
type Pool[T any] struct {
	chunks    [][]T
	allocated int
}

// NewPool returns an empty pool.
func NewPool[T any]() Pool[T] {
	return Pool[T]{}
}

// Allocated returns the number of live T in the pool.
func (p *Pool[T]) Allocated() int { return p.allocated }

// Allocate returns a new zeroed T; its index is Allocated()-1.
func (p *Pool[T]) Allocate() *T {
	i := p.allocated
	c, j := i>>poolChunkShift, i&(1<<poolChunkShift-1)
	if c == len(p.chunks) {
		p.chunks = append(p.chunks, make([]T, 1<<poolChunkShift))
	}
	p.allocated++
	return &p.chunks[c][j]
}

// View returns the pointer to the i-th allocated item.
func (p *Pool[T]) View(i int) *T {
	return &p.chunks[i>>poolChunkShift][i&(1<<poolChunkShift-1)]
}

// Reset reclaims every allocation while keeping the chunk storage, zeroed,
// for the next compilation.
func (p *Pool[T]) Reset() {
	for _, c := range p.chunks {
		clear(c)
	}
	p.allocated = 0
}
