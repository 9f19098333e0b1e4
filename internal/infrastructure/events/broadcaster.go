package events

import (
	"context"
	"sync"

	"github.com/alexisbeaulieu97/buildgraph/internal/domain/build"
)

// Broadcaster keeps the complete event log of one run and fans it out to any
// number of subscribers. Every subscriber receives the whole log from the
// first event, in publication order, no matter when it subscribed; its
// channel closes after the final event once the broadcaster is closed.
type Broadcaster struct {
	mu      sync.Mutex
	cond    *sync.Cond
	history []build.Event
	closed  bool
}

// NewBroadcaster returns an open broadcaster.
func NewBroadcaster() *Broadcaster {
	b := &Broadcaster{}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish appends ev to the log. Publishing after Close is ignored.
func (b *Broadcaster) Publish(ev build.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.history = append(b.history, ev)
	b.cond.Broadcast()
}

// Close marks the log complete and wakes every subscriber.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// Subscribe streams the log to the returned channel until the log is complete
// or ctx ends. Slow subscribers never hold up publishers.
func (b *Broadcaster) Subscribe(ctx context.Context) <-chan build.Event {
	out := make(chan build.Event, 64)
	stop := context.AfterFunc(ctx, func() {
		b.mu.Lock()
		b.cond.Broadcast()
		b.mu.Unlock()
	})

	go func() {
		defer close(out)
		defer stop()
		next := 0
		for {
			b.mu.Lock()
			for next >= len(b.history) && !b.closed && ctx.Err() == nil {
				b.cond.Wait()
			}
			if ctx.Err() != nil || (next >= len(b.history) && b.closed) {
				b.mu.Unlock()
				return
			}
			batch := b.history[next:len(b.history):len(b.history)]
			next = len(b.history)
			b.mu.Unlock()

			for _, ev := range batch {
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// History returns a copy of every event published so far.
func (b *Broadcaster) History() []build.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]build.Event(nil), b.history...)
}

// Closed reports whether the log is complete.
func (b *Broadcaster) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
