// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/motion_stream/internal/motion"
	"github.com/relabs-tech/motion_stream/internal/sensors"
	"github.com/relabs-tech/motion_stream/internal/stream"
)

const defaultIRQWaitTimeout = 500 * time.Millisecond

// SamplerStats is a snapshot of the sampler counters.
type SamplerStats struct {
	Samples     uint64 `json:"samples"`
	ReadErrors  uint64 `json:"read_errors"`
	IRQTimeouts uint64 `json:"irq_timeouts"`
	MissedEdges uint64 `json:"missed_edges"`
}

// Sampler waits for data-ready edges, reads the accelerometer, smooths the
// reading and queues it for the forwarder. Samples are queued in capture
// order; a full queue blocks the sampler rather than dropping.
//
// Data ready is a level: the line stays High until the output registers are
// read. An edge missed before the pin was armed, or while Send was blocked,
// is recovered by reading whenever a wait times out with the line High.
type Sampler struct {
	Accel  sensors.Accelerometer
	IRQ    sensors.EdgeWaiter
	Filter *motion.Filter
	Out    *stream.Channel[motion.Sample]

	// WaitTimeout bounds each edge wait so cancellation is noticed on a quiet
	// line. Zero uses 500ms.
	WaitTimeout time.Duration
	// StatsInterval enables a periodic counters log line when > 0.
	StatsInterval time.Duration

	samples     atomic.Uint64
	readErrors  atomic.Uint64
	irqTimeouts atomic.Uint64
	missedEdges atomic.Uint64
}

// Run samples until ctx is cancelled. Read errors are logged and the loop goes
// back to waiting for the next edge.
func (s *Sampler) Run(ctx context.Context) error {
	timeout := s.WaitTimeout
	if timeout <= 0 {
		timeout = defaultIRQWaitTimeout
	}

	if s.StatsInterval > 0 {
		go s.logStats(ctx)
	}

	log.Printf("sampler: running (alpha=%.3f, queue=%d)", s.Filter.Alpha(), s.Out.Cap())
	for ctx.Err() == nil {
		if !s.IRQ.WaitForEdge(timeout) {
			if s.IRQ.Read() != gpio.High {
				s.irqTimeouts.Add(1)
				continue
			}
			if s.missedEdges.Add(1) == 1 {
				log.Printf("sampler: data ready already high, edge missed")
			}
		}

		raw, err := s.Accel.ReadAccel()
		if err != nil {
			s.readErrors.Add(1)
			log.Printf("sampler: read error: %v", err)
			continue
		}

		if err := s.Out.Send(ctx, s.Filter.Apply(raw)); err != nil {
			break
		}
		s.samples.Add(1)
	}
	log.Printf("sampler: stopped after %d samples", s.samples.Load())
	return nil
}

// Stats returns the current counters.
func (s *Sampler) Stats() SamplerStats {
	return SamplerStats{
		Samples:     s.samples.Load(),
		ReadErrors:  s.readErrors.Load(),
		IRQTimeouts: s.irqTimeouts.Load(),
		MissedEdges: s.missedEdges.Load(),
	}
}

func (s *Sampler) logStats(ctx context.Context) {
	ticker := time.NewTicker(s.StatsInterval)
	defer ticker.Stop()

	var last SamplerStats
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := s.Stats()
			rate := float64(st.Samples-last.Samples) / s.StatsInterval.Seconds()
			log.Printf("sampler: %d samples (%.1f/s), %d read errors, %d irq timeouts, %d missed edges, queue %d/%d",
				st.Samples, rate, st.ReadErrors, st.IRQTimeouts, st.MissedEdges, s.Out.Len(), s.Out.Cap())
			last = st
		}
	}
}
