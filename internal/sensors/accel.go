// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/relabs-tech/motion_stream/internal/motion"
)

// Accelerometer performs one acceleration read transaction.
type Accelerometer interface {
	ReadAccel() (motion.Sample, error)
}

// EdgeWaiter blocks until a data-ready edge or the timeout. A negative
// timeout waits forever. Read reports the current line level, which stays
// High while a sample is waiting to be read even if its edge was missed.
// periph gpio.PinIn satisfies it.
type EdgeWaiter interface {
	WaitForEdge(timeout time.Duration) bool
	Read() gpio.Level
}
