// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"

	"github.com/relabs-tech/motion_stream/internal/motion"
)

// LIS3DH I2C addresses, selected by the SA0 pin.
const (
	LIS3DHAddr    uint16 = 0x18
	LIS3DHAltAddr uint16 = 0x19
)

const (
	regWhoAmI  = 0x0F
	regCtrl1   = 0x20
	regCtrl2   = 0x21
	regCtrl3   = 0x22
	regCtrl4   = 0x23
	regCtrl5   = 0x24
	regStatus  = 0x27
	regOutXL   = 0x28
	regInt1Cfg = 0x30

	whoAmIValue = 0x33

	autoIncrement = 0x80 // MSB of the sub-address enables multi-byte reads

	ctrl1XYZEn      = 0x07
	ctrl3I1ZYXDA    = 0x10 // data ready on INT1
	ctrl4BDU        = 0x80 // block data update
	ctrl4HighRes    = 0x08
	ctrl4RangeShift = 4
)

// ErrWhoAmI is returned when the device at the address is not a LIS3DH.
var ErrWhoAmI = errors.New("lis3dh: unexpected WHO_AM_I")

// DataRate is the CTRL_REG1 output data rate code.
type DataRate byte

const (
	DataRatePowerDown DataRate = 0
	DataRate1Hz       DataRate = 1
	DataRate10Hz      DataRate = 2
	DataRate25Hz      DataRate = 3
	DataRate50Hz      DataRate = 4
	DataRate100Hz     DataRate = 5
	DataRate200Hz     DataRate = 6
	DataRate400Hz     DataRate = 7
)

// DataRateFromHz maps an output rate in Hz to its register code.
func DataRateFromHz(hz int) (DataRate, error) {
	switch hz {
	case 1:
		return DataRate1Hz, nil
	case 10:
		return DataRate10Hz, nil
	case 25:
		return DataRate25Hz, nil
	case 50:
		return DataRate50Hz, nil
	case 100:
		return DataRate100Hz, nil
	case 200:
		return DataRate200Hz, nil
	case 400:
		return DataRate400Hz, nil
	}
	return 0, fmt.Errorf("lis3dh: unsupported data rate %d Hz", hz)
}

// Range is the CTRL_REG4 full scale selection.
type Range byte

const (
	Range2G  Range = 0
	Range4G  Range = 1
	Range8G  Range = 2
	Range16G Range = 3
)

// RangeFromG maps a full scale in g to its register code.
func RangeFromG(g int) (Range, error) {
	switch g {
	case 2:
		return Range2G, nil
	case 4:
		return Range4G, nil
	case 8:
		return Range8G, nil
	case 16:
		return Range16G, nil
	}
	return 0, fmt.Errorf("lis3dh: unsupported range ±%dg", g)
}

// mgPerDigit is the high resolution (12-bit) sensitivity per range.
func (r Range) mgPerDigit() float32 {
	switch r {
	case Range4G:
		return 2
	case Range8G:
		return 4
	case Range16G:
		return 12
	default:
		return 1
	}
}

// LIS3DHOpts configures NewLIS3DH.
type LIS3DHOpts struct {
	Addr      uint16
	DataRate  DataRate
	Range     Range
	DataReady bool // route data-ready to INT1
}

// DefaultLIS3DHOpts matches the sampler defaults: 400Hz, ±2g, data ready on INT1.
var DefaultLIS3DHOpts = LIS3DHOpts{
	Addr:      LIS3DHAddr,
	DataRate:  DataRate400Hz,
	Range:     Range2G,
	DataReady: true,
}

// LIS3DH is an ST LIS3DH 3-axis accelerometer on an I2C bus, running in
// high resolution mode.
type LIS3DH struct {
	mu   sync.Mutex
	dev  i2c.Dev
	opts LIS3DHOpts
	buf  [6]byte
}

// NewLIS3DH checks the device identity and configures rate, range and
// interrupt routing.
func NewLIS3DH(bus i2c.Bus, opts *LIS3DHOpts) (*LIS3DH, error) {
	if opts == nil {
		opts = &DefaultLIS3DHOpts
	}
	d := &LIS3DH{
		dev:  i2c.Dev{Bus: bus, Addr: opts.Addr},
		opts: *opts,
	}

	id, err := d.ReadRegister(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("lis3dh: read WHO_AM_I: %w", err)
	}
	if id != whoAmIValue {
		return nil, fmt.Errorf("%w: 0x%02X (want 0x%02X)", ErrWhoAmI, id, whoAmIValue)
	}

	if err := d.WriteRegister(regCtrl1, byte(opts.DataRate)<<4|ctrl1XYZEn); err != nil {
		return nil, fmt.Errorf("lis3dh: set data rate: %w", err)
	}
	if err := d.WriteRegister(regCtrl4, ctrl4BDU|ctrl4HighRes|byte(opts.Range)<<ctrl4RangeShift); err != nil {
		return nil, fmt.Errorf("lis3dh: set range: %w", err)
	}
	var ctrl3 byte
	if opts.DataReady {
		ctrl3 = ctrl3I1ZYXDA
	}
	if err := d.WriteRegister(regCtrl3, ctrl3); err != nil {
		return nil, fmt.Errorf("lis3dh: set interrupt routing: %w", err)
	}

	return d, nil
}

// ReadAccel reads the three output registers in one burst and returns
// acceleration in g.
func (d *LIS3DH) ReadAccel() (motion.Sample, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.dev.Tx([]byte{regOutXL | autoIncrement}, d.buf[:]); err != nil {
		return motion.Sample{}, fmt.Errorf("lis3dh: read OUT_X_L..OUT_Z_H: %w", err)
	}
	scale := d.opts.Range.mgPerDigit() / 1000
	return motion.Sample{
		X: axis(d.buf[0:2], scale),
		Y: axis(d.buf[2:4], scale),
		Z: axis(d.buf[4:6], scale),
	}, nil
}

// axis converts a left-justified 12-bit little-endian reading.
func axis(b []byte, scale float32) float32 {
	raw := int16(binary.LittleEndian.Uint16(b)) >> 4
	return float32(raw) * scale
}

// ReadRegister reads one register.
func (d *LIS3DH) ReadRegister(reg byte) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var v [1]byte
	if err := d.dev.Tx([]byte{reg}, v[:]); err != nil {
		return 0, err
	}
	return v[0], nil
}

// WriteRegister writes one register.
func (d *LIS3DH) WriteRegister(reg, value byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.dev.Tx([]byte{reg, value}, nil)
}

// Halt puts the sensor in power down mode.
func (d *LIS3DH) Halt() error {
	return d.WriteRegister(regCtrl1, byte(DataRatePowerDown)<<4)
}

func (d *LIS3DH) String() string {
	return fmt.Sprintf("LIS3DH{%s, 0x%02X}", d.dev.Bus, d.dev.Addr)
}
