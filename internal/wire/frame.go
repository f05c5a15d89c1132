// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package wire implements the sampler-to-server record format: a raw TCP
// byte stream of fixed 12-byte frames, each holding x, y and z as
// little-endian IEEE-754 float32 values, in that order. There is no header,
// length prefix, sequence number or acknowledgment.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/relabs-tech/motion_stream/internal/motion"
)

// FrameSize is the size of one encoded sample in bytes.
const FrameSize = 12

var (
	// ErrShortFrame is returned by Unmarshal for buffers under FrameSize bytes.
	ErrShortFrame = errors.New("wire: short frame")
	// ErrNonFinite marks a frame carrying NaN or ±Inf in any field.
	ErrNonFinite = errors.New("wire: non-finite value in frame")
)

// Frame is one encoded sample.
type Frame [FrameSize]byte

// Marshal encodes s as a 12-byte frame.
func Marshal(s motion.Sample) Frame {
	var f Frame
	binary.LittleEndian.PutUint32(f[0:4], math.Float32bits(s.X))
	binary.LittleEndian.PutUint32(f[4:8], math.Float32bits(s.Y))
	binary.LittleEndian.PutUint32(f[8:12], math.Float32bits(s.Z))
	return f
}

// Unmarshal decodes the first FrameSize bytes of b. The bit pattern of each
// field is preserved. A frame with non-finite fields is still decoded and
// returned together with ErrNonFinite so callers can log what they drop.
func Unmarshal(b []byte) (motion.Sample, error) {
	if len(b) < FrameSize {
		return motion.Sample{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(b))
	}
	s := motion.Sample{
		X: math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])),
		Y: math.Float32frombits(binary.LittleEndian.Uint32(b[4:8])),
		Z: math.Float32frombits(binary.LittleEndian.Uint32(b[8:12])),
	}
	if !s.IsFinite() {
		return s, ErrNonFinite
	}
	return s, nil
}

// ReadFrame reads exactly one frame from r into buf and decodes it.
// A clean close before the first byte yields io.EOF; a close mid-frame
// yields io.ErrUnexpectedEOF.
func ReadFrame(r io.Reader, buf *Frame) (motion.Sample, error) {
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return motion.Sample{}, err
	}
	return Unmarshal(buf[:])
}

// WriteFrame writes s to w as a single 12-byte write.
func WriteFrame(w io.Writer, s motion.Sample) error {
	f := Marshal(s)
	n, err := w.Write(f[:])
	if err != nil {
		return err
	}
	if n != FrameSize {
		return io.ErrShortWrite
	}
	return nil
}

// IsDisconnect reports whether err from ReadFrame means the peer went away,
// either cleanly or in the middle of a frame.
func IsDisconnect(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
