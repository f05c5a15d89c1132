// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/relabs-tech/motion_stream/internal/config"
	"github.com/relabs-tech/motion_stream/internal/motion"
	"github.com/relabs-tech/motion_stream/internal/orientation"
	"github.com/relabs-tech/motion_stream/internal/sensors"
)

// RunMockConsole prints raw and filtered samples from the mock accelerometer,
// for checking the filter without hardware or a network.
func RunMockConsole(ctx context.Context, cfg *config.Config, w io.Writer) error {
	filter, err := motion.NewFilter(cfg.FilterAlpha)
	if err != nil {
		return err
	}
	src := sensors.NewMockAccel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			raw, err := src.ReadAccel()
			if err != nil {
				return err
			}
			out := filter.Apply(raw)
			tilt := orientation.FromGravity(out)
			fmt.Fprintf(w,
				"RAW x=%6.3f y=%6.3f z=%6.3f  FILT x=%6.3f y=%6.3f z=%6.3f  ROLL=%6.2f  PITCH=%6.2f\n",
				raw.X, raw.Y, raw.Z,
				out.X, out.Y, out.Z,
				tilt.Roll, tilt.Pitch,
			)
		}
	}
}
