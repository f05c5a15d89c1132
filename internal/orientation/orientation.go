// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package orientation derives tilt angles from a gravity vector.
package orientation

import (
	"math"

	"github.com/relabs-tech/motion_stream/internal/motion"
)

// Tilt is roll and pitch in degrees. Yaw is not observable from
// acceleration alone.
type Tilt struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
}

// FromGravity computes tilt from a (filtered) acceleration sample using the
// usual tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func FromGravity(s motion.Sample) Tilt {
	ax, ay, az := float64(s.X), float64(s.Y), float64(s.Z)

	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Tilt{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}
