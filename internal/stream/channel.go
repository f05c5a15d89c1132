// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package stream provides the bounded hand-off between the sampler and the
// forwarder.
package stream

import (
	"context"
	"errors"
	"fmt"
)

// DefaultCapacity is the channel depth used when none is configured.
const DefaultCapacity = 10

// ErrInvalidCapacity is returned by NewChannel for capacities below 1.
var ErrInvalidCapacity = errors.New("stream: capacity must be at least 1")

// Channel is a bounded FIFO with blocking send and receive. It is meant for a
// single producer and a single consumer; Send blocks while the channel is
// full instead of dropping, which is how a slow consumer throttles the
// producer.
type Channel[T any] struct {
	ch chan T
}

// NewChannel returns an empty channel holding at most capacity items.
func NewChannel[T any](capacity int) (*Channel[T], error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	return &Channel[T]{ch: make(chan T, capacity)}, nil
}

// Send enqueues v, waiting for room. It returns ctx.Err() if ctx is done first,
// in which case v was not enqueued.
func (c *Channel[T]) Send(ctx context.Context, v T) error {
	// fast path so a cancelled ctx never races an available slot
	select {
	case c.ch <- v:
		return nil
	default:
	}
	select {
	case c.ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySend enqueues v only if there is room right now.
func (c *Channel[T]) TrySend(v T) bool {
	select {
	case c.ch <- v:
		return true
	default:
		return false
	}
}

// Receive dequeues the oldest item, waiting until one is available or ctx is done.
func (c *Channel[T]) Receive(ctx context.Context) (T, error) {
	select {
	case v := <-c.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Len returns the number of queued items.
func (c *Channel[T]) Len() int { return len(c.ch) }

// Cap returns the channel capacity.
func (c *Channel[T]) Cap() int { return cap(c.ch) }
