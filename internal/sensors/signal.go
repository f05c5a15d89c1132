// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"context"
	"time"

	"periph.io/x/conn/v3/gpio"
)

// Signal is an edge-triggered event for hosts without a GPIO interrupt.
// Notify may be called from any goroutine, typically a callback playing the
// role of an interrupt handler. Edges raised while nobody waits coalesce into
// one pending edge, like a latched interrupt line.
type Signal struct {
	ch chan struct{}
}

// NewSignal returns a Signal with no pending edge.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Notify raises an edge. It never blocks.
func (s *Signal) Notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// WaitForEdge consumes a pending edge or waits up to timeout for one.
func (s *Signal) WaitForEdge(timeout time.Duration) bool {
	if timeout < 0 {
		<-s.ch
		return true
	}
	select {
	case <-s.ch:
		return true
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.ch:
		return true
	case <-t.C:
		return false
	}
}

// Read reports High while an edge is pending.
func (s *Signal) Read() gpio.Level {
	if len(s.ch) > 0 {
		return gpio.High
	}
	return gpio.Low
}

// Pulse raises an edge every interval until ctx is done.
func (s *Signal) Pulse(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Notify()
		}
	}
}
