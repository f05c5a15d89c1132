// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/motion_stream/internal/motion"
)

type mockAccel struct {
	start time.Time
	now   func() time.Time
}

// NewMockAccel creates a mock accelerometer that reports a 1g gravity vector
// slowly tumbling around the X and Y axes.
func NewMockAccel() Accelerometer {
	return &mockAccel{start: time.Now(), now: time.Now}
}

func (m *mockAccel) ReadAccel() (motion.Sample, error) {
	elapsed := m.now().Sub(m.start).Seconds()

	roll := 0.6 * math.Sin(elapsed)
	pitch := 0.4 * math.Cos(elapsed*0.7)

	return motion.Sample{
		X: float32(-math.Sin(pitch)),
		Y: float32(math.Sin(roll) * math.Cos(pitch)),
		Z: float32(math.Cos(roll) * math.Cos(pitch)),
	}, nil
}
