// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import "math"

// Sample is a single 3-axis acceleration reading, normalized to g.
type Sample struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// IsFinite reports whether no axis is NaN or ±Inf.
func (s Sample) IsFinite() bool {
	return finite(s.X) && finite(s.Y) && finite(s.Z)
}

func finite(v float32) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
