package texcache

import "testing"

func TestPinnedBufferPoolAcquireRelease(t *testing.T) {
	gpu := newTestGPU(t)
	p := newPinnedBufferPool(gpu, 2)

	h1, err := p.acquire(128)
	if err != nil {
		t.Fatalf("pinnedBufferPool.acquire: unexpected error:\n%#v", err)
	}
	if len(h1.Bytes()) != 128 {
		t.Fatalf("PinnedHandle.Bytes: have len %d, want 128", len(h1.Bytes()))
	}
	buf1 := h1.buf // Release clears h1.buf
	h1.Release()

	// A second acquire for a smaller size must reuse the released
	// buffer rather than allocating fresh.
	h2, err := p.acquire(64)
	if err != nil {
		t.Fatalf("pinnedBufferPool.acquire: unexpected error:\n%#v", err)
	}
	if h2.buf != buf1 {
		t.Fatal("pinnedBufferPool.acquire: expected the pooled 128-byte buffer to be reused for a 64-byte request")
	}
	if len(h2.Bytes()) != 64 {
		t.Fatalf("PinnedHandle.Bytes: have len %d, want 64 (sliced to the requested size)", len(h2.Bytes()))
	}
	h2.Release()
}

func TestPinnedBufferPoolCapBound(t *testing.T) {
	gpu := newTestGPU(t)
	p := newPinnedBufferPool(gpu, 1)

	h1, _ := p.acquire(32)
	h2, _ := p.acquire(32)
	h1.Release()
	h2.Release() // pool is already at capacity 1; this one must be destroyed, not pooled

	p.mu.Lock()
	n := len(p.free)
	p.mu.Unlock()
	if n != 1 {
		t.Fatalf("pinnedBufferPool.release: have %d pooled buffers, want 1 (capacity bound)", n)
	}
}

func TestPinnedBufferPoolDestroyAll(t *testing.T) {
	gpu := newTestGPU(t)
	p := newPinnedBufferPool(gpu, 4)
	h, _ := p.acquire(16)
	h.Release()
	p.destroyAll()

	p.mu.Lock()
	n := len(p.free)
	p.mu.Unlock()
	if n != 0 {
		t.Fatalf("pinnedBufferPool.destroyAll: have %d pooled buffers, want 0", n)
	}
}
