package main

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/colmap.export/internal/colmap"
)

const sampleScene = `{
  "cameras": [
    {
      "name": "Camera",
      "model": "OPENCV",
      "width": 1920,
      "height": 1080,
      "lens_mm": 50,
      "sensor_width_mm": 36,
      "sensor_height_mm": 24,
      "frames": [
        {"frame": 1, "position": [0, -5, 2], "quaternion": [1, 0, 0, 0]},
        {"frame": 20, "position": [3, -4, 2], "euler_xyz": [1.2, 0, 0.5]}
      ]
    },
    {
      "name": "Detail",
      "model": "PINHOLE",
      "width": 640,
      "height": 480,
      "params": [500, 500, 320, 240],
      "frames": [
        {"frame": 1, "position": [1, 1, 1], "quaternion": [0.7071, 0.7071, 0, 0]}
      ]
    }
  ],
  "points": [
    {"position": [0, 0, 0]},
    {"position": [1, 2, 3], "color": [1, 0, 0, 1]}
  ]
}`

func TestBuildInputs(t *testing.T) {
	t.Parallel()

	var scene sceneFile
	require.NoError(t, json.Unmarshal([]byte(sampleScene), &scene))

	cams, samples, err := buildInputs(&scene)
	require.NoError(t, err)

	require.Len(t, cams, 2)
	assert.Equal(t, colmap.ModelOpenCV, cams[0].Model)
	assert.Equal(t, 50.0, cams[0].LensMM)
	require.Len(t, cams[0].Frames, 2)
	assert.Equal(t, -5.0, cams[0].Frames[0].Position.Y)
	assert.Equal(t, 1.0, cams[0].Frames[0].Rotation.W)

	// The euler frame resolves to a unit quaternion.
	q := cams[0].Frames[1].Rotation
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	assert.InDelta(t, 1.0, n, 1e-12)

	assert.Equal(t, []float64{500, 500, 320, 240}, cams[1].Params)

	require.Len(t, samples, 2)
	assert.False(t, samples[0].HasColor)
	assert.True(t, samples[1].HasColor)
	assert.Equal(t, 1.0, samples[1].Color[0])
}

func TestBuildInputsErrors(t *testing.T) {
	t.Parallel()

	t.Run("no cameras", func(t *testing.T) {
		t.Parallel()
		_, _, err := buildInputs(&sceneFile{})
		assert.Error(t, err)
	})

	t.Run("unknown model", func(t *testing.T) {
		t.Parallel()
		_, _, err := buildInputs(&sceneFile{Cameras: []sceneCamera{{Name: "X", Model: "FISHEYE"}}})
		assert.Error(t, err)
	})

	t.Run("frame without rotation", func(t *testing.T) {
		t.Parallel()
		_, _, err := buildInputs(&sceneFile{Cameras: []sceneCamera{{
			Name: "X", Model: "PINHOLE",
			Frames: []sceneFrame{{Frame: 1}},
		}}})
		assert.Error(t, err)
	})

	t.Run("frame with conflicting rotations", func(t *testing.T) {
		t.Parallel()
		q := [4]float64{1, 0, 0, 0}
		e := [3]float64{0, 0, 0}
		_, _, err := buildInputs(&sceneFile{Cameras: []sceneCamera{{
			Name: "X", Model: "PINHOLE",
			Frames: []sceneFrame{{Frame: 1, Quaternion: &q, EulerXYZ: &e}},
		}}})
		assert.Error(t, err)
	})
}
