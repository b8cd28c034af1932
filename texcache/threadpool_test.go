package texcache

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestThreadPoolSubmit(t *testing.T) {
	p := newThreadPool(4)
	defer p.close()

	var n atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		p.submit(func() {
			defer wg.Done()
			n.Add(1)
		})
	}
	wg.Wait()

	if got := n.Load(); got != 100 {
		t.Fatalf("threadPool.submit: have %d completions, want 100", got)
	}
}

func TestThreadPoolCloseStopsAcceptingWork(t *testing.T) {
	p := newThreadPool(1)
	p.close()
	p.close() // must be idempotent

	// submit must not hang forever once the pool is closed: it sees the
	// closed flag and returns without sending on the work channel.
	done := make(chan struct{})
	go func() {
		p.submit(func() {})
		close(done)
	}()
	<-done
}
