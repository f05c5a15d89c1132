// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import "fmt"

// BitField describes one field of a register.
type BitField struct {
	Bits        string `json:"bits"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Values      string `json:"values,omitempty"`
}

// RegisterInfo describes one device register.
type RegisterInfo struct {
	Address     byte       `json:"-"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Access      string     `json:"access"` // "R", "RW"
	Default     string     `json:"default,omitempty"`
	BitFields   []BitField `json:"bit_fields,omitempty"`
}

// Hex returns the address as 0xNN.
func (r RegisterInfo) Hex() string { return fmt.Sprintf("0x%02X", r.Address) }

// LIS3DHRegisterMap returns metadata for the LIS3DH registers the sampler
// touches or that are useful when debugging it.
func LIS3DHRegisterMap() []RegisterInfo {
	return []RegisterInfo{
		{Address: 0x07, Name: "STATUS_REG_AUX", Description: "Auxiliary ADC status", Access: "R"},
		{Address: regWhoAmI, Name: "WHO_AM_I", Description: "Device identification", Access: "R", Default: "0x33"},
		{Address: 0x1F, Name: "TEMP_CFG_REG", Description: "ADC / temperature sensor enable", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "ADC_EN", Description: "Auxiliary ADC enable", Values: "0=Disabled, 1=Enabled"},
				{Bits: "6", Name: "TEMP_EN", Description: "Temperature sensor enable", Values: "0=Disabled, 1=Enabled"},
			}},
		{Address: regCtrl1, Name: "CTRL_REG1", Description: "Data rate and axis enable", Access: "RW", Default: "0x07",
			BitFields: []BitField{
				{Bits: "7:4", Name: "ODR", Description: "Output data rate", Values: "0=PowerDown, 1=1Hz, 2=10Hz, 3=25Hz, 4=50Hz, 5=100Hz, 6=200Hz, 7=400Hz"},
				{Bits: "3", Name: "LPen", Description: "Low power mode", Values: "0=Normal/HighRes, 1=LowPower"},
				{Bits: "2", Name: "Zen", Description: "Z axis enable"},
				{Bits: "1", Name: "Yen", Description: "Y axis enable"},
				{Bits: "0", Name: "Xen", Description: "X axis enable"},
			}},
		{Address: regCtrl2, Name: "CTRL_REG2", Description: "High-pass filter", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7:6", Name: "HPM", Description: "High-pass filter mode"},
				{Bits: "5:4", Name: "HPCF", Description: "High-pass cut-off"},
				{Bits: "3", Name: "FDS", Description: "Filtered data selection", Values: "0=Bypassed, 1=Filtered to output"},
				{Bits: "0", Name: "HP_IA1", Description: "High-pass on interrupt 1"},
			}},
		{Address: regCtrl3, Name: "CTRL_REG3", Description: "INT1 routing", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "6", Name: "I1_IA1", Description: "IA1 interrupt on INT1"},
				{Bits: "4", Name: "I1_ZYXDA", Description: "Data ready on INT1", Values: "0=Disabled, 1=Enabled"},
				{Bits: "1", Name: "I1_OVERRUN", Description: "FIFO overrun on INT1"},
			}},
		{Address: regCtrl4, Name: "CTRL_REG4", Description: "Scale and resolution", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "BDU", Description: "Block data update", Values: "0=Continuous, 1=Hold until both bytes read"},
				{Bits: "6", Name: "BLE", Description: "Endianness", Values: "0=Little endian, 1=Big endian"},
				{Bits: "5:4", Name: "FS", Description: "Full scale", Values: "0=±2g, 1=±4g, 2=±8g, 3=±16g"},
				{Bits: "3", Name: "HR", Description: "High resolution output", Values: "0=Disabled, 1=Enabled"},
				{Bits: "2:1", Name: "ST", Description: "Self test", Values: "0=Normal"},
			}},
		{Address: regCtrl5, Name: "CTRL_REG5", Description: "FIFO and interrupt latching", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "BOOT", Description: "Reboot memory content"},
				{Bits: "6", Name: "FIFO_EN", Description: "FIFO enable"},
				{Bits: "3", Name: "LIR_INT1", Description: "Latch interrupt 1", Values: "0=Pulsed, 1=Latched until INT1_SRC read"},
			}},
		{Address: 0x25, Name: "CTRL_REG6", Description: "INT2 routing", Access: "RW", Default: "0x00"},
		{Address: 0x26, Name: "REFERENCE", Description: "Interrupt reference value", Access: "R"},
		{Address: regStatus, Name: "STATUS_REG", Description: "Data status", Access: "R",
			BitFields: []BitField{
				{Bits: "7", Name: "ZYXOR", Description: "X, Y, Z overrun"},
				{Bits: "3", Name: "ZYXDA", Description: "X, Y, Z new data available"},
			}},
		{Address: regOutXL, Name: "OUT_X_L", Description: "X axis low byte", Access: "R"},
		{Address: 0x29, Name: "OUT_X_H", Description: "X axis high byte", Access: "R"},
		{Address: 0x2A, Name: "OUT_Y_L", Description: "Y axis low byte", Access: "R"},
		{Address: 0x2B, Name: "OUT_Y_H", Description: "Y axis high byte", Access: "R"},
		{Address: 0x2C, Name: "OUT_Z_L", Description: "Z axis low byte", Access: "R"},
		{Address: 0x2D, Name: "OUT_Z_H", Description: "Z axis high byte", Access: "R"},
		{Address: 0x2E, Name: "FIFO_CTRL_REG", Description: "FIFO mode", Access: "RW", Default: "0x00"},
		{Address: 0x2F, Name: "FIFO_SRC_REG", Description: "FIFO status", Access: "R"},
		{Address: regInt1Cfg, Name: "INT1_CFG", Description: "Interrupt 1 configuration", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "7", Name: "AOI", Description: "And/Or combination"},
				{Bits: "6", Name: "6D", Description: "6 direction detection"},
				{Bits: "5:0", Name: "ZHIE..XLIE", Description: "Per axis high/low event enable"},
			}},
		{Address: 0x31, Name: "INT1_SRC", Description: "Interrupt 1 source (read clears latch)", Access: "R"},
		{Address: 0x32, Name: "INT1_THS", Description: "Interrupt 1 threshold", Access: "RW", Default: "0x00",
			BitFields: []BitField{
				{Bits: "6:0", Name: "THS", Description: "Threshold, LSB = 16mg at ±2g"},
			}},
		{Address: 0x33, Name: "INT1_DURATION", Description: "Interrupt 1 minimum duration", Access: "RW", Default: "0x00"},
	}
}

// ReadAllRegisters reads every register in the map. OUT_* reads are
// included, so calling it consumes the current sample.
func (d *LIS3DH) ReadAllRegisters() (map[byte]byte, error) {
	regs := LIS3DHRegisterMap()
	out := make(map[byte]byte, len(regs))
	for _, r := range regs {
		v, err := d.ReadRegister(r.Address)
		if err != nil {
			return out, fmt.Errorf("lis3dh: read %s (%s): %w", r.Name, r.Hex(), err)
		}
		out[r.Address] = v
	}
	return out, nil
}
