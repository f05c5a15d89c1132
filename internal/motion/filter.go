// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package motion

import (
	"errors"
	"fmt"
)

// ErrInvalidAlpha is returned by NewFilter when alpha is outside (0, 1].
var ErrInvalidAlpha = errors.New("filter alpha must be in (0, 1]")

// Filter is an exponential moving average over samples:
//
//	out = alpha*raw + (1-alpha)*previous
//
// The first sample passes through unchanged and seeds previous.
// A Filter is owned by a single goroutine and is not safe for concurrent use.
type Filter struct {
	alpha    float32
	previous Sample
	seeded   bool
}

// NewFilter returns a Filter with the given smoothing weight.
// alpha=1 disables smoothing; smaller values smooth harder.
func NewFilter(alpha float32) (*Filter, error) {
	// written so NaN fails too
	if !(alpha > 0 && alpha <= 1) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidAlpha, alpha)
	}
	return &Filter{alpha: alpha}, nil
}

// Alpha returns the smoothing weight.
func (f *Filter) Alpha() float32 { return f.alpha }

// Apply blends raw into the filter state and returns the filtered sample.
func (f *Filter) Apply(raw Sample) Sample {
	if !f.seeded {
		f.previous = raw
		f.seeded = true
		return raw
	}

	a := f.alpha
	b := 1 - a
	out := Sample{
		X: a*raw.X + b*f.previous.X,
		Y: a*raw.Y + b*f.previous.Y,
		Z: a*raw.Z + b*f.previous.Z,
	}
	f.previous = out
	return out
}

// Reset drops the filter state so the next sample passes through unchanged.
func (f *Filter) Reset() {
	f.previous = Sample{}
	f.seeded = false
}
