// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/motion_stream/internal/motion"
	"github.com/relabs-tech/motion_stream/internal/stream"
	"github.com/relabs-tech/motion_stream/internal/wire"
)

// Dialer opens the connection to the ingestion server. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Backoff is the wait between failed connection attempts.
type Backoff struct {
	Delay    time.Duration // first wait, 0 retries immediately
	MaxDelay time.Duration // when above Delay, waits double up to this cap
}

// Next returns the wait after the given number of consecutive failures (>= 1).
//
// Formula: Delay * 2^(failures-1), capped at MaxDelay.
func (b Backoff) Next(failures int) time.Duration {
	if b.Delay <= 0 || b.MaxDelay <= b.Delay || failures <= 1 {
		return max(b.Delay, 0)
	}
	delay := b.Delay
	for i := 1; i < failures; i++ {
		delay *= 2
		if delay >= b.MaxDelay {
			return b.MaxDelay
		}
	}
	return delay
}

// ForwarderStats is a snapshot of the forwarder counters.
type ForwarderStats struct {
	Sent        uint64 `json:"sent"`
	Connects    uint64 `json:"connects"`
	DialErrors  uint64 `json:"dial_errors"`
	WriteErrors uint64 `json:"write_errors"`
}

// Forwarder drains the sample queue into a TCP connection, one 12-byte frame
// per sample, reconnecting whenever the connection is lost. A sample whose
// write fails is dropped.
type Forwarder struct {
	Remote      string
	In          *stream.Channel[motion.Sample]
	Dialer      Dialer // nil uses net.Dialer with DialTimeout
	DialTimeout time.Duration
	Backoff     Backoff

	sent        atomic.Uint64
	connects    atomic.Uint64
	dialErrors  atomic.Uint64
	writeErrors atomic.Uint64
}

// Run forwards samples until ctx is cancelled.
func (f *Forwarder) Run(ctx context.Context) error {
	dialer := f.Dialer
	if dialer == nil {
		dialer = &net.Dialer{Timeout: f.DialTimeout}
	}

	failures := 0
	for ctx.Err() == nil {
		conn, err := dialer.DialContext(ctx, "tcp", f.Remote)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			failures++
			f.dialErrors.Add(1)
			wait := f.Backoff.Next(failures)
			log.Printf("forwarder: connect %s failed: %v (retry in %v)", f.Remote, err, wait)
			if !sleepCtx(ctx, wait) {
				break
			}
			continue
		}

		failures = 0
		f.connects.Add(1)
		log.Printf("forwarder: connected to %s, forwarding stream", f.Remote)

		if err := f.forward(ctx, conn); err != nil && ctx.Err() == nil {
			f.writeErrors.Add(1)
			log.Printf("forwarder: stream to %s lost: %v", f.Remote, err)
		}
	}
	log.Printf("forwarder: stopped after %d frames", f.sent.Load())
	return nil
}

// forward owns conn and closes it before returning.
func (f *Forwarder) forward(ctx context.Context, conn net.Conn) error {
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		if stop() {
			conn.Close()
		}
	}()

	for {
		s, err := f.In.Receive(ctx)
		if err != nil {
			return err
		}
		if err := wire.WriteFrame(conn, s); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		f.sent.Add(1)
	}
}

// Stats returns the current counters.
func (f *Forwarder) Stats() ForwarderStats {
	return ForwarderStats{
		Sent:        f.sent.Load(),
		Connects:    f.connects.Load(),
		DialErrors:  f.dialErrors.Load(),
		WriteErrors: f.writeErrors.Load(),
	}
}

// sleepCtx waits d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
