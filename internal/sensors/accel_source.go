// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/motion_stream/internal/config"
)

// AccelSource is the sampler's hardware: a LIS3DH on I2C and the GPIO
// carrying its data-ready interrupt.
type AccelSource struct {
	XL  *LIS3DH
	IRQ gpio.PinIn
	bus i2c.BusCloser
}

// OpenAccelSource initializes periph, opens the configured I2C bus, sets up
// the LIS3DH and arms the interrupt pin for rising edges. One sample is read
// and discarded after arming so a data-ready raised before the pin was armed
// is released and the next edge is seen.
func OpenAccelSource(cfg *config.Config) (*AccelSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("accel: periph host init: %w", err)
	}

	opts, err := LIS3DHOptsFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("accel: %w", err)
	}

	bus, err := i2creg.Open(cfg.XLI2CBus)
	if err != nil {
		return nil, fmt.Errorf("accel: I2C open %q: %w", cfg.XLI2CBus, err)
	}

	xl, err := NewLIS3DH(bus, &opts)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("accel: device init: %w", err)
	}
	log.Printf("accel: %s ready (%d Hz, ±%dg)", xl, cfg.XLDataRate, cfg.XLRangeG)

	irq := gpioreg.ByName(cfg.XLIRQPin)
	if irq == nil {
		bus.Close()
		return nil, fmt.Errorf("accel: IRQ pin %q not found", cfg.XLIRQPin)
	}
	if err := irq.In(gpio.PullNoChange, gpio.RisingEdge); err != nil {
		bus.Close()
		return nil, fmt.Errorf("accel: IRQ pin %s: %w", irq, err)
	}
	if _, err := xl.ReadAccel(); err != nil {
		log.Printf("accel: initial read failed: %v", err)
	}
	log.Printf("accel: waiting for data-ready edges on %s", irq)

	return &AccelSource{XL: xl, IRQ: irq, bus: bus}, nil
}

// LIS3DHOptsFromConfig builds driver options from the accelerometer keys.
func LIS3DHOptsFromConfig(cfg *config.Config) (LIS3DHOpts, error) {
	rate, err := DataRateFromHz(cfg.XLDataRate)
	if err != nil {
		return LIS3DHOpts{}, err
	}
	rng, err := RangeFromG(cfg.XLRangeG)
	if err != nil {
		return LIS3DHOpts{}, err
	}
	return LIS3DHOpts{
		Addr:      cfg.XLI2CAddr,
		DataRate:  rate,
		Range:     rng,
		DataReady: true,
	}, nil
}

// Close powers the sensor down and releases the bus.
func (s *AccelSource) Close() error {
	if err := s.XL.Halt(); err != nil {
		log.Printf("accel: power down failed: %v", err)
	}
	if err := s.IRQ.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		log.Printf("accel: IRQ pin release failed: %v", err)
	}
	return s.bus.Close()
}
