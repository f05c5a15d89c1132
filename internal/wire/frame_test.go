// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package wire

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_stream/internal/motion"
)

func TestMarshalLayout(t *testing.T) {
	f := Marshal(motion.Sample{X: 1.0, Y: 0.0, Z: -1.0})
	want := []byte{
		0x00, 0x00, 0x80, 0x3f, // 1.0
		0x00, 0x00, 0x00, 0x00, // 0.0
		0x00, 0x00, 0x80, 0xbf, // -1.0
	}
	assert.Equal(t, want, f[:])
}

func TestRoundTripPreservesBits(t *testing.T) {
	values := []float32{
		0, float32(math.Copysign(0, -1)), 1, -1, 0.02,
		math.MaxFloat32, -math.MaxFloat32, math.SmallestNonzeroFloat32,
		123.456, -9.80665,
	}
	for _, x := range values {
		for _, y := range values {
			s := motion.Sample{X: x, Y: y, Z: -x}
			f := Marshal(s)
			got, err := Unmarshal(f[:])
			require.NoError(t, err)
			assert.Equal(t, math.Float32bits(s.X), math.Float32bits(got.X))
			assert.Equal(t, math.Float32bits(s.Y), math.Float32bits(got.Y))
			assert.Equal(t, math.Float32bits(s.Z), math.Float32bits(got.Z))
		}
	}
}

func TestUnmarshalRejectsNonFinite(t *testing.T) {
	cases := map[string]motion.Sample{
		"nan x":  {X: float32(math.NaN()), Y: 1, Z: 1},
		"inf y":  {X: 1, Y: float32(math.Inf(1)), Z: 1},
		"-inf z": {X: 1, Y: 1, Z: float32(math.Inf(-1))},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			f := Marshal(s)
			_, err := Unmarshal(f[:])
			assert.ErrorIs(t, err, ErrNonFinite)
		})
	}
}

func TestUnmarshalShort(t *testing.T) {
	_, err := Unmarshal(make([]byte, 11))
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestReadFrameStream(t *testing.T) {
	var buf bytes.Buffer
	in := []motion.Sample{{X: 1, Y: 2, Z: 3}, {X: -0.5, Y: 0.25, Z: 0}}
	for _, s := range in {
		require.NoError(t, WriteFrame(&buf, s))
	}
	buf.Write([]byte{1, 2, 3, 4, 5, 6}) // truncated tail

	var f Frame
	for _, want := range in {
		got, err := ReadFrame(&buf, &f)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ReadFrame(&buf, &f)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.True(t, IsDisconnect(err))

	_, err = ReadFrame(&buf, &f)
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, IsDisconnect(err))
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) { return len(p) / 2, nil }

func TestWriteFrameShortWrite(t *testing.T) {
	assert.ErrorIs(t, WriteFrame(shortWriter{}, motion.Sample{}), io.ErrShortWrite)
}
