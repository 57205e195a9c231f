// Package points turns a dense point attribute stream into Point3D
// records for the model codec. The mapping is direct and order-preserving:
// no deduplication, no spatial indexing, sequential 1-based ids.
package points

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/colmap.export/internal/colmap"
)

// DefaultColor is the grey assigned to samples that carry no color
// attribute.
var DefaultColor = [3]uint8{128, 128, 128}

// Sample is one point from the collaborator's attribute stream. Color is
// a normalized RGBA value in [0,1] per channel, meaningful only when
// HasColor is set.
type Sample struct {
	Position r3.Vec
	Color    [4]float64
	HasColor bool
}

// ToPoint3Ds maps a sample stream to Point3D records with ids 1..n in
// stream order, zero reprojection error and empty observation tracks (no
// feature matching happens here).
func ToPoint3Ds(samples []Sample) []*colmap.Point3D {
	pts := make([]*colmap.Point3D, 0, len(samples))
	for i, s := range samples {
		rgb := DefaultColor
		if s.HasColor {
			rgb = [3]uint8{
				QuantizeChannel(s.Color[0]),
				QuantizeChannel(s.Color[1]),
				QuantizeChannel(s.Color[2]),
			}
		}
		pts = append(pts, &colmap.Point3D{
			ID:  uint64(i + 1),
			XYZ: [3]float64{s.Position.X, s.Position.Y, s.Position.Z},
			RGB: rgb,
		})
	}
	return pts
}

// QuantizeChannel converts a normalized [0,1] color channel to an 8-bit
// value by floor(v*255), clamped to [0,255].
func QuantizeChannel(v float64) uint8 {
	q := math.Floor(v * 255)
	if q < 0 {
		return 0
	}
	if q > 255 {
		return 255
	}
	return uint8(q)
}

// ApplyTransform applies a row-major 4x4 object-to-world transform to a
// point.
func ApplyTransform(p r3.Vec, T [16]float64) r3.Vec {
	return r3.Vec{
		X: T[0]*p.X + T[1]*p.Y + T[2]*p.Z + T[3],
		Y: T[4]*p.X + T[5]*p.Y + T[6]*p.Z + T[7],
		Z: T[8]*p.X + T[9]*p.Y + T[10]*p.Z + T[11],
	}
}

// TransformSamples returns a copy of the stream with every position moved
// by the given object-to-world transform. Colors pass through untouched.
func TransformSamples(samples []Sample, T [16]float64) []Sample {
	out := make([]Sample, len(samples))
	for i, s := range samples {
		s.Position = ApplyTransform(s.Position, T)
		out[i] = s
	}
	return out
}
