package events

import (
	"context"
	"errors"
	"sync"
)

// ErrChannelClosed is returned by Send once the channel has been closed.
var ErrChannelClosed = errors.New("event channel closed")

// DefaultCapacity bounds the number of buffered events per run.
const DefaultCapacity = 256

// Channel is a bounded many-producer, single-consumer queue. Send blocks
// while the buffer is full, so nothing is ever dropped; each producer's
// values are received in the order it sent them.
type Channel[T any] struct {
	items     chan T
	closed    chan struct{}
	closeOnce sync.Once
}

// NewChannel creates a channel buffering up to capacity values. A
// non-positive capacity selects DefaultCapacity.
func NewChannel[T any](capacity int) *Channel[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel[T]{
		items:  make(chan T, capacity),
		closed: make(chan struct{}),
	}
}

// Send enqueues v, blocking while the buffer is full. It fails only when ctx
// ends or the channel is closed before space frees up.
func (c *Channel[T]) Send(ctx context.Context, v T) error {
	select {
	case <-c.closed:
		return ErrChannelClosed
	default:
	}
	select {
	case c.items <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return ErrChannelClosed
	}
}

// Receive exposes the consumer side.
func (c *Channel[T]) Receive() <-chan T {
	return c.items
}

// Len reports the number of buffered values.
func (c *Channel[T]) Len() int {
	return len(c.items)
}

// Cap reports the buffer capacity.
func (c *Channel[T]) Cap() int {
	return cap(c.items)
}

// Close releases blocked producers. Values already buffered stay readable.
func (c *Channel[T]) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}
