package points

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestToPoint3Ds(t *testing.T) {
	t.Parallel()

	t.Run("sequential 1-based ids in stream order", func(t *testing.T) {
		t.Parallel()
		pts := ToPoint3Ds([]Sample{
			{Position: r3.Vec{X: 1}},
			{Position: r3.Vec{X: 2}},
			{Position: r3.Vec{X: 3}},
		})
		require.Len(t, pts, 3)
		for i, pt := range pts {
			assert.Equal(t, uint64(i+1), pt.ID)
			assert.Equal(t, float64(i+1), pt.XYZ[0])
		}
	})

	t.Run("position-only sample gets default grey", func(t *testing.T) {
		t.Parallel()
		pts := ToPoint3Ds([]Sample{{Position: r3.Vec{X: 1, Y: 2, Z: 3}}})
		require.Len(t, pts, 1)
		assert.Equal(t, [3]uint8{128, 128, 128}, pts[0].RGB)
	})

	t.Run("color sample is quantized", func(t *testing.T) {
		t.Parallel()
		pts := ToPoint3Ds([]Sample{{
			Position: r3.Vec{},
			Color:    [4]float64{1.0, 0.0, 0.0, 1.0},
			HasColor: true,
		}})
		require.Len(t, pts, 1)
		assert.Equal(t, [3]uint8{255, 0, 0}, pts[0].RGB)
	})

	t.Run("zero error and empty tracks", func(t *testing.T) {
		t.Parallel()
		pts := ToPoint3Ds([]Sample{{Position: r3.Vec{}}})
		require.Len(t, pts, 1)
		assert.Zero(t, pts[0].Error)
		assert.Empty(t, pts[0].ImageIDs)
		assert.Empty(t, pts[0].Point2DIdxs)
	})

	t.Run("empty stream yields empty slice", func(t *testing.T) {
		t.Parallel()
		assert.Empty(t, ToPoint3Ds(nil))
	})
}

func TestQuantizeChannel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   float64
		want uint8
	}{
		{0, 0},
		{1, 255},
		{0.5, 127},   // floor(127.5)
		{0.999, 254}, // floor(254.745)
		{0.25, 63},
		{-0.5, 0}, // clamped
		{1.5, 255},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, QuantizeChannel(tc.in), "quantize(%v)", tc.in)
	}
}

func TestApplyTransform(t *testing.T) {
	t.Parallel()

	t.Run("identity", func(t *testing.T) {
		t.Parallel()
		T := [16]float64{
			1, 0, 0, 0,
			0, 1, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		}
		p := ApplyTransform(r3.Vec{X: 1, Y: 2, Z: 3}, T)
		assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, p)
	})

	t.Run("translation", func(t *testing.T) {
		t.Parallel()
		T := [16]float64{
			1, 0, 0, 10,
			0, 1, 0, -5,
			0, 0, 1, 2,
			0, 0, 0, 1,
		}
		p := ApplyTransform(r3.Vec{X: 1, Y: 1, Z: 1}, T)
		assert.Equal(t, r3.Vec{X: 11, Y: -4, Z: 3}, p)
	})

	t.Run("rotation about Z", func(t *testing.T) {
		t.Parallel()
		// 90 degrees about Z: x -> y.
		T := [16]float64{
			0, -1, 0, 0,
			1, 0, 0, 0,
			0, 0, 1, 0,
			0, 0, 0, 1,
		}
		p := ApplyTransform(r3.Vec{X: 1}, T)
		assert.InDelta(t, 0, p.X, 1e-15)
		assert.InDelta(t, 1, p.Y, 1e-15)
	})
}

func TestTransformSamples(t *testing.T) {
	t.Parallel()

	T := [16]float64{
		1, 0, 0, 100,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	in := []Sample{
		{Position: r3.Vec{X: 1}, Color: [4]float64{1, 0, 0, 1}, HasColor: true},
		{Position: r3.Vec{X: 2}},
	}
	out := TransformSamples(in, T)

	require.Len(t, out, 2)
	assert.Equal(t, 101.0, out[0].Position.X)
	assert.Equal(t, 102.0, out[1].Position.X)
	assert.True(t, out[0].HasColor)
	// Input untouched.
	assert.Equal(t, 1.0, in[0].Position.X)
}
