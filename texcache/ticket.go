package texcache

import (
	"sync"

	"github.com/gviegas/demandtex/driver"
)

// Ticket is a one-shot async completion handle returned by
// ProcessRequestsAsync, grounded on the original source's TicketImpl:
// it tracks a task count that decrements as each load task finishes,
// and unblocks Wait callers once the count reaches zero.
type Ticket struct {
	mu        sync.Mutex
	remaining int
	err       error
	done      chan struct{}
}

// newTicket creates a ticket tracking count outstanding tasks. count
// may be 0, in which case the ticket starts already done.
func newTicket(count int) *Ticket {
	t := &Ticket{remaining: count, done: make(chan struct{})}
	if count == 0 {
		close(t.done)
	}
	return t
}

// complete records the outcome of one task. The first non-nil err
// passed to complete is retained as the ticket's overall error.
func (t *Ticket) complete(err error) {
	t.mu.Lock()
	if err != nil && t.err == nil {
		t.err = err
	}
	t.remaining--
	done := t.remaining <= 0
	t.mu.Unlock()

	if done {
		close(t.done)
	}
}

// Wait blocks the calling goroutine until every task tracked by this
// ticket has completed. If stream and event are both non-nil, Wait
// records event on stream immediately after completion, so the
// caller's subsequent work on stream depends on every newly-resident
// texture's upload — per spec §4.8's "Ticket.wait(event?)".
func (t *Ticket) Wait(stream driver.Stream, event driver.Event) error {
	<-t.done
	t.mu.Lock()
	err := t.err
	t.mu.Unlock()
	if err != nil {
		return err
	}
	if stream != nil && event != nil {
		return event.Record(stream)
	}
	return nil
}

// IsDone reports completion without blocking.
func (t *Ticket) IsDone() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}
