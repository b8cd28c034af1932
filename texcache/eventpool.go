package texcache

import (
	"sync"

	"github.com/gviegas/demandtex/driver"
)

const dflEventPoolCap = 16

// eventPool is a bounded freelist of driver.Event, grounded on the
// original source's HipEventPool: events are expensive to create but
// cheap to reset (a fresh Record call rearms one), so completed events
// are recycled instead of destroyed.
type eventPool struct {
	mu   sync.Mutex
	gpu  driver.GPU
	cap  int
	free []driver.Event
}

func newEventPool(gpu driver.GPU, capacity int) *eventPool {
	if capacity <= 0 {
		capacity = dflEventPoolCap
	}
	return &eventPool{gpu: gpu, cap: capacity}
}

func (p *eventPool) acquire() (driver.Event, error) {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		e := p.free[n-1]
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return e, nil
	}
	p.mu.Unlock()
	return p.gpu.NewEvent()
}

func (p *eventPool) release(e driver.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) < p.cap {
		p.free = append(p.free, e)
		return
	}
	e.Destroy()
}

func (p *eventPool) destroyAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.free {
		e.Destroy()
	}
	p.free = nil
}
