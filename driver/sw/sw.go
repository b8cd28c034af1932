// Package sw implements an in-process, deterministic reference
// driver.GPU. It has no external dependency and no hardware
// requirement; it exists so the cache and its tests have a
// predictable backend to run against, the way gviegas-neo3/driver/vk
// is the concrete backend behind the abstract driver.GPU interface.
//
// Every "device" allocation is carved out of a single growable byte
// arena tracked by a bitvec.V[uint32] free-space bitmap, one bit per
// fixed-size block; copies and events execute synchronously the
// moment they are enqueued, since there is no real asynchrony to
// model.
package sw

import (
	"fmt"
	"sync"

	"github.com/gviegas/demandtex/driver"
	"github.com/gviegas/demandtex/internal/bitvec"
)

const blockSize = 4096

func init() {
	driver.Register(&swDriver{})
}

type swDriver struct {
	mu   sync.Mutex
	gpu  *gpu
	open bool
}

func (d *swDriver) Name() string { return "software" }

func (d *swDriver) Open() (driver.GPU, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.open {
		d.gpu = newGPU()
		d.gpu.drv = d
		d.open = true
	}
	return d.gpu, nil
}

func (d *swDriver) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.gpu = nil
}

// gpu is the software GPU implementation.
type gpu struct {
	drv *swDriver

	mu    sync.Mutex
	arena []byte
	free  bitvec.V[uint32]
}

func newGPU() *gpu {
	g := &gpu{}
	g.free.Grow(1) // one uint32 word = 32 blocks, grown on demand.
	g.arena = make([]byte, 32*blockSize)
	return g
}

func (g *gpu) Driver() driver.Driver { return g.drv }

func (g *gpu) Limits() driver.Limits { return driver.Limits{MaxTextureSize: 16384} }

func (g *gpu) NewStream() (driver.Stream, error) { return &stream{gpu: g}, nil }

func (g *gpu) NewEvent() (driver.Event, error) { return &event{}, nil }

func (g *gpu) AllocPinned(size int) (driver.PinnedBuffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("sw: negative pinned buffer size")
	}
	return &pinnedBuffer{b: make([]byte, size)}, nil
}

func (g *gpu) AllocDevice(size int) (driver.DeviceBuffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("sw: negative device buffer size")
	}
	off, err := g.alloc(size)
	if err != nil {
		return nil, err
	}
	return &deviceBuffer{gpu: g, off: off, size: size}, nil
}

func (g *gpu) NewTexture2D(width, height int) (driver.Texture2D, error) {
	return g.newTexture(width, height, 1)
}

func (g *gpu) NewMipTexture2D(width, height, levels int) (driver.Texture2D, error) {
	if levels < 1 {
		return nil, fmt.Errorf("sw: levels must be >= 1")
	}
	return g.newTexture(width, height, levels)
}

func (g *gpu) newTexture(width, height, levels int) (driver.Texture2D, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("sw: invalid texture dimensions")
	}
	t := &texture2D{gpu: g, width: width, height: height}
	w, h := width, height
	for i := 0; i < levels; i++ {
		n := w * h * 4
		off, err := g.alloc(n)
		if err != nil {
			t.free(g)
			return nil, err
		}
		t.levels = append(t.levels, texLevel{off: off, size: n, w: w, h: h})
		if w > 1 {
			w /= 2
		}
		if h > 1 {
			h /= 2
		}
	}
	return t, nil
}

// alloc finds or grows enough contiguous blocks in the arena and
// returns the byte offset of the allocation.
func (g *gpu) alloc(size int) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	nblk := (size + blockSize - 1) / blockSize
	if nblk == 0 {
		nblk = 1
	}
	idx, ok := g.free.SearchRange(nblk)
	if !ok {
		words := (nblk + 31) / 32
		if words < 1 {
			words = 1
		}
		base := g.free.Grow(words)
		g.arena = append(g.arena, make([]byte, words*32*blockSize)...)
		idx = base
		for i := 0; i < nblk; i++ {
			g.free.Set(idx + i)
		}
		return idx * blockSize, nil
	}
	for i := 0; i < nblk; i++ {
		g.free.Set(idx + i)
	}
	return idx * blockSize, nil
}

func (g *gpu) freeRange(off, size int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	nblk := (size + blockSize - 1) / blockSize
	if nblk == 0 {
		nblk = 1
	}
	base := off / blockSize
	for i := 0; i < nblk; i++ {
		g.free.Unset(base + i)
	}
}

func (g *gpu) NewSampler(desc driver.SamplerDesc) (driver.Sampler, error) {
	if desc.Texture == nil {
		return nil, fmt.Errorf("sw: sampler requires a texture")
	}
	id := nextHandle()
	return &sampler{handle: id}, nil
}

var handleCounter struct {
	mu sync.Mutex
	n  uint64
}

func nextHandle() uint64 {
	handleCounter.mu.Lock()
	defer handleCounter.mu.Unlock()
	handleCounter.n++
	return handleCounter.n
}

type deviceBuffer struct {
	gpu  *gpu
	off  int
	size int
}

func (d *deviceBuffer) Addr() uintptr { return uintptr(d.off) }
func (d *deviceBuffer) Destroy()      { d.gpu.freeRange(d.off, d.size) }

type pinnedBuffer struct{ b []byte }

func (p *pinnedBuffer) Bytes() []byte { return p.b }
func (p *pinnedBuffer) Destroy()      { p.b = nil }

type texLevel struct {
	off, size int
	w, h      int
}

func (l *texLevel) Addr() uintptr { return uintptr(l.off) }

type texture2D struct {
	gpu    *gpu
	width  int
	height int
	levels []texLevel
}

func (t *texture2D) Width() int  { return t.width }
func (t *texture2D) Height() int { return t.height }
func (t *texture2D) Levels() int { return len(t.levels) }

func (t *texture2D) Level(level int) (driver.DeviceDst, error) {
	if level < 0 || level >= len(t.levels) {
		return nil, fmt.Errorf("sw: mip level %d out of range", level)
	}
	l := t.levels[level]
	return &l, nil
}

func (t *texture2D) Destroy() { t.free(t.gpu) }

func (t *texture2D) free(g *gpu) {
	for _, l := range t.levels {
		g.freeRange(l.off, l.size)
	}
	t.levels = nil
}

type sampler struct {
	handle uint64
}

func (s *sampler) Handle() uint64 { return s.handle }
func (s *sampler) Destroy()       {}

type event struct {
	mu     sync.Mutex
	signaled bool
}

func (e *event) Record(s driver.Stream) error {
	e.mu.Lock()
	e.signaled = true
	e.mu.Unlock()
	return nil
}

func (e *event) Synchronize() error { return nil }

func (e *event) Query() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.signaled, nil
}

func (e *event) Destroy() {}

type stream struct {
	gpu *gpu
}

func (s *stream) CopyHostToDevice(dst driver.DeviceDst, src driver.PinnedBuffer, size int) error {
	off := int(dst.Addr())
	copy(s.gpu.arena[off:off+size], src.Bytes()[:size])
	return nil
}

func (s *stream) CopyDeviceToHost(dst driver.PinnedBuffer, src driver.DeviceSrc, size int) error {
	off := int(src.Addr())
	copy(dst.Bytes()[:size], s.gpu.arena[off:off+size])
	return nil
}

func (s *stream) Wait(ev driver.Event) error { return ev.Synchronize() }

func (s *stream) Synchronize() error { return nil }

func (s *stream) Destroy() {}
