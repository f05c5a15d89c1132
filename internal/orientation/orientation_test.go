// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relabs-tech/motion_stream/internal/motion"
)

func TestFromGravity(t *testing.T) {
	half := float32(math.Sqrt2 / 2)
	tests := []struct {
		name  string
		in    motion.Sample
		roll  float64
		pitch float64
	}{
		{"flat", motion.Sample{Z: 1}, 0, 0},
		{"upside down", motion.Sample{Z: -1}, 180, 0},
		{"right side down", motion.Sample{Y: 1}, 90, 0},
		{"nose up", motion.Sample{X: -1}, 0, 90},
		{"rolled 45", motion.Sample{Y: half, Z: half}, 45, 0},
		{"pitched -45", motion.Sample{X: half, Z: half}, 0, -45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromGravity(tt.in)
			assert.InDelta(t, tt.roll, got.Roll, 1e-4)
			assert.InDelta(t, tt.pitch, got.Pitch, 1e-4)
		})
	}
}
