// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package ingest

import (
	"fmt"
	"math/rand"
)

// Shape is the figure a client is drawn as. It is picked once per client and
// never changes.
type Shape uint8

const (
	Cube Shape = iota
	Pyramid
	Torus
	Cylinder
)

// Shapes lists every shape in declaration order.
var Shapes = []Shape{Cube, Pyramid, Torus, Cylinder}

var shapeNames = [...]string{
	Cube:     "cube",
	Pyramid:  "pyramid",
	Torus:    "torus",
	Cylinder: "cylinder",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return fmt.Sprintf("Shape(%d)", uint8(s))
}

// ParseShape is the inverse of String.
func ParseShape(name string) (Shape, error) {
	for i, n := range shapeNames {
		if n == name {
			return Shape(i), nil
		}
	}
	return 0, fmt.Errorf("ingest: unknown shape %q", name)
}

func (s Shape) MarshalText() ([]byte, error) {
	if int(s) >= len(shapeNames) {
		return nil, fmt.Errorf("ingest: invalid shape %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Shape) UnmarshalText(b []byte) error {
	v, err := ParseShape(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// RandomShape picks a shape uniformly at random.
func RandomShape() Shape {
	return Shapes[rand.Intn(len(Shapes))]
}
