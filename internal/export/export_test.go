package export

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/colmap.export/internal/colmap"
	"github.com/banshee-data/colmap.export/internal/fsutil"
	"github.com/banshee-data/colmap.export/internal/points"
	"github.com/banshee-data/colmap.export/internal/pose"
)

func TestIntrinsicParams(t *testing.T) {
	t.Parallel()

	t.Run("opencv", func(t *testing.T) {
		t.Parallel()
		// 50mm lens on a 36x24mm sensor at 1920x1080.
		params, err := IntrinsicParams(colmap.ModelOpenCV, 50, 36, 24, 1920, 1080)
		require.NoError(t, err)
		require.Len(t, params, 8)
		assert.InDelta(t, 50.0*1920/36, params[0], 1e-12) // fx
		assert.InDelta(t, 50.0*1080/24, params[1], 1e-12) // fy
		assert.Equal(t, 960.0, params[2])                 // cx
		assert.Equal(t, 540.0, params[3])                 // cy
		assert.Equal(t, []float64{0, 0, 0, 0}, params[4:])
	})

	t.Run("pinhole", func(t *testing.T) {
		t.Parallel()
		params, err := IntrinsicParams(colmap.ModelPinhole, 35, 36, 24, 640, 480)
		require.NoError(t, err)
		assert.Len(t, params, 4)
	})

	t.Run("rejects non-positive optics", func(t *testing.T) {
		t.Parallel()
		_, err := IntrinsicParams(colmap.ModelPinhole, 0, 36, 24, 640, 480)
		assert.Error(t, err)
	})
}

func TestImageName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Camera.png", ImageName("Camera", 12, false, "png"))
	assert.Equal(t, "Camera_frame_0012.png", ImageName("Camera", 12, true, "png"))
	assert.Equal(t, "Camera_frame_0250.exr", ImageName("Camera", 250, true, "exr"))
	assert.Equal(t, "Camera.png", ImageName("Camera", 1, false, ""))
}

func TestJobRun(t *testing.T) {
	t.Parallel()

	cams := []CameraSpec{
		{
			Name: "CamB", Model: colmap.ModelOpenCV,
			Width: 640, Height: 480,
			Params: []float64{500, 500, 320, 240, 0, 0, 0, 0},
			Frames: []FramePose{
				{Frame: 1, Position: r3.Vec{X: 1, Y: 2, Z: 3}, Rotation: pose.Identity()},
				{Frame: 10, Position: r3.Vec{X: 4, Y: 5, Z: 6}, Rotation: pose.Identity()},
			},
		},
		{
			Name: "CamA", Model: colmap.ModelPinhole,
			Width: 1920, Height: 1080,
			LensMM: 50, SensorWidthMM: 36, SensorHeightMM: 24,
			Frames: []FramePose{
				{Frame: 5, Position: r3.Vec{Z: 2}, Rotation: pose.Identity()},
			},
		},
	}
	samples := []points.Sample{
		{Position: r3.Vec{X: 1, Y: 2, Z: 3}},
		{Position: r3.Vec{X: -1}, Color: [4]float64{0, 1, 0, 1}, HasColor: true},
	}

	fs := fsutil.NewMemoryFileSystem()
	job := &Job{OutputDir: "dataset", Format: colmap.FormatBinary, FS: fs}
	model, err := job.Run(cams, samples)
	require.NoError(t, err)

	t.Run("ids assigned in name order", func(t *testing.T) {
		require.Len(t, model.Cameras, 2)
		assert.Equal(t, colmap.ModelPinhole, model.Cameras[1].Model, "CamA sorts first")
		assert.Equal(t, colmap.ModelOpenCV, model.Cameras[2].Model)
	})

	t.Run("derived intrinsics", func(t *testing.T) {
		assert.InDelta(t, 50.0*1920/36, model.Cameras[1].Params[0], 1e-12)
	})

	t.Run("image naming follows frame multiplicity", func(t *testing.T) {
		require.Len(t, model.Images, 3)
		names := make(map[string]bool)
		for _, img := range model.Images {
			names[img.Name] = true
		}
		assert.True(t, names["CamA.png"])
		assert.True(t, names["CamB_frame_0001.png"])
		assert.True(t, names["CamB_frame_0010.png"])
	})

	t.Run("poses converted to world-to-camera", func(t *testing.T) {
		for _, img := range model.Images {
			if img.Name != "CamB_frame_0001.png" {
				continue
			}
			center := pose.CameraCenter(img.QVec, img.TVec)
			assert.InDelta(t, 1, center.X, 1e-12)
			assert.InDelta(t, 2, center.Y, 1e-12)
			assert.InDelta(t, 3, center.Z, 1e-12)
		}
	})

	t.Run("points sampled with defaults and quantization", func(t *testing.T) {
		require.Len(t, model.Points3D, 2)
		assert.Equal(t, [3]uint8{128, 128, 128}, model.Points3D[1].RGB)
		assert.Equal(t, [3]uint8{0, 255, 0}, model.Points3D[2].RGB)
	})

	t.Run("dataset layout on disk", func(t *testing.T) {
		sparse := filepath.Join("dataset", "sparse", "0")
		for _, f := range []string{"cameras.bin", "images.bin", "points3D.bin"} {
			assert.True(t, fs.Exists(filepath.Join(sparse, f)), f)
		}
		assert.True(t, fs.Exists(filepath.Join("dataset", "images")))
	})

	t.Run("written model re-loads equal", func(t *testing.T) {
		got, err := colmap.ReadFS(fs, filepath.Join("dataset", "sparse", "0"), colmap.FormatBinary)
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(model, got, cmpopts.EquateEmpty()))
	})
}

func TestJobRunNoCameras(t *testing.T) {
	t.Parallel()

	job := &Job{OutputDir: "x", Format: colmap.FormatText, FS: fsutil.NewMemoryFileSystem()}
	_, err := job.Run(nil, nil)
	assert.Error(t, err)
}

func TestJobRunBadCamera(t *testing.T) {
	t.Parallel()

	fs := fsutil.NewMemoryFileSystem()
	job := &Job{OutputDir: "x", Format: colmap.FormatText, FS: fs}
	_, err := job.Run([]CameraSpec{{
		Name: "Bad", Model: colmap.ModelPinhole,
		Width: 10, Height: 10,
		Params: []float64{1, 2, 3}, // wrong arity
	}}, nil)
	require.Error(t, err)
	assert.Empty(t, fs.FilesUnder("x"), "failed export leaves no model files")
}

func TestJobPrepareGuard(t *testing.T) {
	t.Parallel()

	t.Run("restores collaborator state on success", func(t *testing.T) {
		t.Parallel()
		var order []string
		job := &Job{
			OutputDir: "d", Format: colmap.FormatText,
			FS: fsutil.NewMemoryFileSystem(),
			Prepare: func(g *Guard) error {
				g.Defer(func() { order = append(order, "first") })
				g.Defer(func() { order = append(order, "second") })
				return nil
			},
		}
		_, err := job.Run([]CameraSpec{{
			Name: "Cam", Model: colmap.ModelPinhole, Width: 10, Height: 10,
			Params: []float64{1, 1, 5, 5},
			Frames: []FramePose{{Frame: 1, Rotation: pose.Identity()}},
		}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"second", "first"}, order, "restores run in reverse order")
	})

	t.Run("restores on prepare failure", func(t *testing.T) {
		t.Parallel()
		restored := false
		job := &Job{
			OutputDir: "d", Format: colmap.FormatText,
			FS: fsutil.NewMemoryFileSystem(),
			Prepare: func(g *Guard) error {
				g.Defer(func() { restored = true })
				return errors.New("modifier not found")
			},
		}
		_, err := job.Run([]CameraSpec{{
			Name: "Cam", Model: colmap.ModelPinhole, Width: 10, Height: 10,
			Params: []float64{1, 1, 5, 5},
		}}, nil)
		require.Error(t, err)
		assert.True(t, restored)
	})
}

func TestGuard(t *testing.T) {
	t.Parallel()

	t.Run("restore is idempotent", func(t *testing.T) {
		t.Parallel()
		n := 0
		g := &Guard{}
		g.Defer(func() { n++ })
		g.Restore()
		g.Restore()
		assert.Equal(t, 1, n)
	})

	t.Run("empty guard restores cleanly", func(t *testing.T) {
		t.Parallel()
		(&Guard{}).Restore()
	})
}
