package texcache

import (
	"sync"

	"github.com/gviegas/demandtex/driver"
)

const dflPinnedPoolCap = 8

// pinnedBufferPool is a bounded freelist of pinned host buffers,
// grounded on the original source's PinnedMemoryPool (linear scan for
// the smallest pooled buffer >= the requested size) and on
// djeday123-goml/backend/cuda/pool.go's Get/Put shape (pool hit avoids
// a driver allocation call on the hot path). It backs the request-ring
// and request-stats readback buffers, which are acquired and released
// every frame.
type pinnedBufferPool struct {
	mu  sync.Mutex
	gpu driver.GPU
	cap int
	free []pinnedEntry
}

type pinnedEntry struct {
	buf  driver.PinnedBuffer
	size int
}

// PinnedHandle is a single-owner handle to a pooled pinned buffer.
// Callers must call Release exactly once; there is no move semantics
// in Go, so a handle is released by convention rather than by the
// compiler enforcing single ownership, the way the original's
// move-only BufferHandle did.
type PinnedHandle struct {
	pool *pinnedBufferPool
	buf  driver.PinnedBuffer
	size int // requested size, for Bytes() slicing
	cap  int // true underlying buffer capacity, for pool reuse
}

func (h *PinnedHandle) Bytes() []byte { return h.buf.Bytes()[:h.size] }

func (h *PinnedHandle) Release() {
	if h.pool != nil {
		h.pool.release(h.buf, h.cap)
		h.pool, h.buf = nil, nil
	}
}

func newPinnedBufferPool(gpu driver.GPU, capacity int) *pinnedBufferPool {
	if capacity <= 0 {
		capacity = dflPinnedPoolCap
	}
	return &pinnedBufferPool{gpu: gpu, cap: capacity}
}

// acquire returns the smallest pooled buffer >= size, or a freshly
// allocated one if none qualifies.
func (p *pinnedBufferPool) acquire(size int) (*PinnedHandle, error) {
	p.mu.Lock()
	best := -1
	for i, e := range p.free {
		if e.size >= size && (best < 0 || e.size < p.free[best].size) {
			best = i
		}
	}
	if best >= 0 {
		e := p.free[best]
		p.free = append(p.free[:best], p.free[best+1:]...)
		p.mu.Unlock()
		return &PinnedHandle{pool: p, buf: e.buf, size: size, cap: e.size}, nil
	}
	p.mu.Unlock()

	buf, err := p.gpu.AllocPinned(size)
	if err != nil {
		return nil, err
	}
	return &PinnedHandle{pool: p, buf: buf, size: size, cap: size}, nil
}

func (p *pinnedBufferPool) release(buf driver.PinnedBuffer, size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) < p.cap {
		p.free = append(p.free, pinnedEntry{buf: buf, size: size})
		return
	}
	buf.Destroy()
}

// destroyAll frees every pooled buffer. Called during abort.
func (p *pinnedBufferPool) destroyAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.free {
		e.buf.Destroy()
	}
	p.free = nil
}
