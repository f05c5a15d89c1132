// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/motion_stream/internal/ingest"
	"github.com/relabs-tech/motion_stream/internal/scene"
)

// Snapshotter is the consumer side of the client registry.
type Snapshotter interface {
	TrySnapshot() ([]ingest.Entry, bool)
}

// SceneSink receives every rendered frame.
type SceneSink interface {
	PublishScene(f scene.Frame) error
}

// RenderStats is a snapshot of the render loop counters.
type RenderStats struct {
	Rendered uint64 `json:"rendered"`
	Skipped  uint64 `json:"skipped"`
}

// RenderLoop lays out the registry on every tick and hands the frame to its
// sinks. It never waits for the registry: a tick that finds the lock taken is
// skipped and the previous frame stays current.
type RenderLoop struct {
	Source   Snapshotter
	Interval time.Duration
	Sinks    []SceneSink

	seq      uint64
	rendered atomic.Uint64
	skipped  atomic.Uint64
}

// Run renders until ctx is cancelled.
func (r *RenderLoop) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	log.Printf("render: running every %v with %d sinks", r.Interval, len(r.Sinks))
	for {
		select {
		case <-ctx.Done():
			log.Printf("render: stopped (%d rendered, %d skipped)", r.rendered.Load(), r.skipped.Load())
			return nil
		case t := <-ticker.C:
			r.Tick(t)
		}
	}
}

// Tick renders one frame at t. It reports false if the frame was skipped.
func (r *RenderLoop) Tick(t time.Time) bool {
	entries, ok := r.Source.TrySnapshot()
	if !ok {
		r.skipped.Add(1)
		return false
	}

	r.seq++
	frame := scene.Frame{
		Seq:       r.seq,
		Time:      t,
		Instances: scene.Layout(entries),
	}
	for _, sink := range r.Sinks {
		if err := sink.PublishScene(frame); err != nil {
			log.Printf("render: publish error: %v", err)
		}
	}
	r.rendered.Add(1)
	return true
}

// Stats returns the current counters.
func (r *RenderLoop) Stats() RenderStats {
	return RenderStats{Rendered: r.rendered.Load(), Skipped: r.skipped.Load()}
}
