package texcache

import "sync/atomic"

// requestRing is the host-visible mirror of the device request ring
// described in spec §4.3: a fixed-capacity array of ids, an atomic
// count, and an overflow flag. Kernel code would append through the
// device contract directly on GPU memory; this type plays that same
// role for the software/test harness (Engine.SimulateRequest). The
// process_requests readback does not use it: it reads the device ring
// buffers back into pinned host buffers directly.
//
// Append implements the documented fallback path ("plain per-thread
// atomic append with the same overflow semantics") since there is no
// warp/wave concept on the host.
type requestRing struct {
	ids      []uint32
	count    atomic.Uint32
	overflow atomic.Uint32
}

func newRequestRing(capacity int) *requestRing {
	return &requestRing{ids: make([]uint32, capacity)}
}

func (r *requestRing) capacity() int { return len(r.ids) }

// append implements the append contract for a single lane: checks
// overflow with a relaxed load, aborts if already set, otherwise
// claims a slot with fetch-add and either writes id or flips
// overflow via exchange.
func (r *requestRing) append(id uint32) {
	if r.overflow.Load() != 0 {
		return
	}
	idx := r.count.Add(1) - 1
	if int(idx) < len(r.ids) {
		r.ids[idx] = id
		return
	}
	r.overflow.Store(1)
}

// reset zeroes count and overflow. Called from launch_prepare.
func (r *requestRing) reset() {
	r.count.Store(0)
	r.overflow.Store(0)
}

// snapshot returns the ids observed so far (bounded by capacity),
// the raw count (which may exceed capacity when overflow is set),
// and the overflow flag. This is what process_requests reads back
// after its async copies.
func (r *requestRing) snapshot() (ids []uint32, count uint32, overflowed bool) {
	count = r.count.Load()
	overflowed = r.overflow.Load() != 0
	n := int(count)
	if n > len(r.ids) {
		n = len(r.ids)
	}
	ids = make([]uint32, n)
	copy(ids, r.ids[:n])
	return
}
