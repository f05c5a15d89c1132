// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package scene

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/motion_stream/internal/ingest"
	"github.com/relabs-tech/motion_stream/internal/motion"
)

func entries(n int) []ingest.Entry {
	out := make([]ingest.Entry, n)
	for i := range out {
		out[i] = ingest.Entry{ID: netip.MustParseAddr(fmt.Sprintf("10.0.0.%d", i+1))}
	}
	return out
}

func TestLayoutEmpty(t *testing.T) {
	out := Layout(nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
	assert.Equal(t, float32(5), Scale(0))
}

func TestLayoutSingleClient(t *testing.T) {
	in := entries(1)
	in[0].Shape = ingest.Pyramid
	in[0].Rotation = motion.Sample{X: 0.1, Y: -0.2, Z: 0.3}
	in[0].Active = 1

	out := Layout(in)
	require.Len(t, out, 1)
	assert.Equal(t, Instance{
		ID:       in[0].ID,
		Shape:    ingest.Pyramid,
		Position: Vec3{X: 0, Y: 0, Z: -2},
		Rotation: Vec3{X: 0.1, Y: -0.2, Z: 0.3},
		Scale:    5,
		Active:   true,
	}, out[0])
}

func TestLayoutGrid(t *testing.T) {
	// 5 clients: 3 columns, two rows
	out := Layout(entries(5))
	require.Len(t, out, 5)

	want := []Vec3{
		{X: -3, Z: -2}, {X: 0, Z: -2}, {X: 3, Z: -2},
		{X: -3, Z: 1}, {X: 0, Z: 1},
	}
	for i, w := range want {
		assert.Equal(t, w, out[i].Position, "instance %d", i)
		assert.InDelta(t, 5/2.2360679, out[i].Scale, 1e-4)
		assert.False(t, out[i].Active)
	}
}

func TestLayoutEvenColumnsCentred(t *testing.T) {
	out := Layout(entries(4))
	assert.Equal(t, Vec3{X: -1.5, Z: -2}, out[0].Position)
	assert.Equal(t, Vec3{X: 1.5, Z: -2}, out[1].Position)
	assert.Equal(t, Vec3{X: -1.5, Z: 1}, out[2].Position)
	assert.Equal(t, float32(2.5), out[3].Scale)
}

func TestScaleClamped(t *testing.T) {
	assert.Equal(t, float32(5), Scale(1))
	assert.Equal(t, float32(0.5), Scale(100))
	assert.Equal(t, float32(0.5), Scale(400))
}

func TestInstanceJSON(t *testing.T) {
	in := entries(1)
	in[0].Shape = ingest.Cylinder
	b, err := json.Marshal(Layout(in)[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"10.0.0.1","shape":"cylinder","position":{"x":0,"y":0,"z":-2},"rotation":{"x":0,"y":0,"z":0},"scale":5,"active":false}`, string(b))

	var back Instance
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, ingest.Cylinder, back.Shape)
	assert.Equal(t, in[0].ID, back.ID)
}
