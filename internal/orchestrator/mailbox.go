package orchestrator

import (
	"sync"

	"github.com/eapache/queue"
)

// mailbox is the unbounded FIFO of events feeding the orchestrator's worker
// goroutine. It must never block the producer: completion callbacks post
// follow-up events from the worker goroutine itself, and a bounded channel
// would deadlock there.
type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	events *queue.Queue
	closed bool
}

func newMailbox() *mailbox {
	m := &mailbox{events: queue.New()}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// put enqueues an event. It reports false when the mailbox has been closed.
func (m *mailbox) put(f func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.events.Add(f)
	m.cond.Signal()
	return true
}

// get blocks until an event is available or the mailbox is closed and
// drained.
func (m *mailbox) get() (func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for m.events.Length() == 0 && !m.closed {
		m.cond.Wait()
	}
	if m.events.Length() == 0 {
		return nil, false
	}
	return m.events.Remove().(func()), true
}

// close stops accepting new events. Events already queued still run.
func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cond.Broadcast()
}
