// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package scene turns a registry snapshot into positioned shape instances.
package scene

import (
	"math"
	"net/netip"
	"time"

	"github.com/relabs-tech/motion_stream/internal/ingest"
)

const (
	// Spacing is the distance between grid cells.
	Spacing = 3.0
	// BaseScale is the instance scale for a single client.
	BaseScale = 5.0
	// MinScale bounds the shrink as clients are added.
	MinScale = 0.5
	// RowOffset shifts the first row along Z.
	RowOffset = -2.0
)

// Vec3 is a position or rotation in scene space.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Instance is one client's shape placed in the scene.
type Instance struct {
	ID       netip.Addr   `json:"id"`
	Shape    ingest.Shape `json:"shape"`
	Position Vec3         `json:"position"`
	Rotation Vec3         `json:"rotation"`
	Scale    float32      `json:"scale"`
	Active   bool         `json:"active"`
}

// Frame is one rendered scene.
type Frame struct {
	Seq       uint64     `json:"seq"`
	Time      time.Time  `json:"time"`
	Instances []Instance `json:"instances"`
}

// Layout places entries on a square-ish grid centred on X, in the order
// given (registry snapshots are sorted by identity, so a client keeps its
// cell while the set of clients is unchanged).
//
//	cols = ceil(sqrt(n)), row = i / cols, col = i % cols
//	x = (col - (cols-1)/2) * Spacing, z = row*Spacing + RowOffset
//	scale = clamp(BaseScale/sqrt(n), MinScale, BaseScale)
func Layout(entries []ingest.Entry) []Instance {
	n := len(entries)
	if n == 0 {
		return []Instance{}
	}

	scale := Scale(n)
	cols := int(math.Ceil(math.Sqrt(float64(n))))

	out := make([]Instance, n)
	for i, e := range entries {
		row := i / cols
		col := i % cols
		out[i] = Instance{
			ID:    e.ID,
			Shape: e.Shape,
			Position: Vec3{
				X: (float32(col) - float32(cols-1)/2) * Spacing,
				Z: float32(row)*Spacing + RowOffset,
			},
			Rotation: Vec3{X: e.Rotation.X, Y: e.Rotation.Y, Z: e.Rotation.Z},
			Scale:    scale,
			Active:   e.Active > 0,
		}
	}
	return out
}

// Scale returns the instance scale for n clients.
func Scale(n int) float32 {
	if n <= 0 {
		return BaseScale
	}
	s := BaseScale / math.Sqrt(float64(n))
	return float32(min(max(s, MinScale), BaseScale))
}
