package usecases

import (
	"sync"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// stateFanout hands session states to deliver on its own goroutine so a
// slow publisher or store never holds up the session. Only the newest
// undelivered state is kept; older ones are superseded.
type stateFanout struct {
	deliver func(domain.SessionState)

	mu      sync.Mutex
	pending *domain.SessionState

	wake     chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newStateFanout(deliver func(domain.SessionState)) *stateFanout {
	f := &stateFanout{
		deliver: deliver,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go f.run()
	return f
}

// offer queues st for delivery. It never blocks.
func (f *stateFanout) offer(st domain.SessionState) {
	f.mu.Lock()
	f.pending = &st
	f.mu.Unlock()

	select {
	case f.wake <- struct{}{}:
	default:
	}
}

// close waits for the delivery in flight, if any, and drops the rest.
func (f *stateFanout) close() {
	f.stopOnce.Do(func() { close(f.stop) })
	<-f.done
}

func (f *stateFanout) run() {
	defer close(f.done)
	for {
		select {
		case <-f.stop:
			return
		case <-f.wake:
		}

		f.mu.Lock()
		st := f.pending
		f.pending = nil
		f.mu.Unlock()

		if st != nil {
			f.deliver(*st)
		}
	}
}
