// Package export assembles a COLMAP dataset from collaborator-supplied
// camera intrinsics, per-frame poses and point samples, and writes it
// under the standard dataset layout:
//
//	<out>/sparse/0/cameras.{txt|bin}
//	<out>/sparse/0/images.{txt|bin}
//	<out>/sparse/0/points3D.{txt|bin}
//	<out>/images/<name>          (pixels written by the renderer, not here)
//
// Rendering itself is out of scope; this package only reserves the image
// names the renderer must use.
package export

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/colmap.export/internal/colmap"
	"github.com/banshee-data/colmap.export/internal/fsutil"
	"github.com/banshee-data/colmap.export/internal/points"
	"github.com/banshee-data/colmap.export/internal/pose"
)

// FramePose is one selected frame of a camera's animation: the camera's
// world position and rotation in the host convention at that frame.
type FramePose struct {
	Frame    int
	Position r3.Vec
	Rotation pose.Quaternion
}

// CameraSpec describes one host camera: its intrinsics and the frames to
// export. Either Params is given explicitly, or it is derived from the
// lens and sensor dimensions via IntrinsicParams.
type CameraSpec struct {
	Name   string
	Model  colmap.CameraModel
	Width  uint64
	Height uint64

	// Explicit parameter vector; wins over the lens fields when set.
	Params []float64

	// Lens and sensor dimensions in millimetres, used when Params is nil.
	LensMM         float64
	SensorWidthMM  float64
	SensorHeightMM float64

	// FileFormat is the rendered image extension without the dot
	// (default "png").
	FileFormat string

	Frames []FramePose
}

// IntrinsicParams derives the parameter vector for the model from lens
// focal length and sensor dimensions: fx = lens*width/sensorW,
// fy = lens*height/sensorH, principal point centered, distortion zero.
func IntrinsicParams(model colmap.CameraModel, lensMM, sensorWidthMM, sensorHeightMM float64, width, height uint64) ([]float64, error) {
	if lensMM <= 0 || sensorWidthMM <= 0 || sensorHeightMM <= 0 {
		return nil, fmt.Errorf("lens and sensor dimensions must be positive")
	}
	fx := lensMM * float64(width) / sensorWidthMM
	fy := lensMM * float64(height) / sensorHeightMM
	cx := float64(width) / 2
	cy := float64(height) / 2

	switch model {
	case colmap.ModelPinhole:
		return []float64{fx, fy, cx, cy}, nil
	case colmap.ModelOpenCV:
		return []float64{fx, fy, cx, cy, 0, 0, 0, 0}, nil
	}
	return nil, fmt.Errorf("cannot derive params for model %s", model)
}

// ImageName returns the rendered-image file name for a camera frame.
// Cameras exporting more than one frame get a frame-numbered name so the
// files stay distinct.
func ImageName(camera string, frame int, multiFrame bool, fileFormat string) string {
	if fileFormat == "" {
		fileFormat = "png"
	}
	if multiFrame {
		return fmt.Sprintf("%s_frame_%04d.%s", camera, frame, fileFormat)
	}
	return fmt.Sprintf("%s.%s", camera, fileFormat)
}

// Job writes one dataset. OutputDir is the dataset root; the model triple
// goes under OutputDir/sparse/0. Runs for the same directory must not
// overlap; the job itself is single-threaded.
type Job struct {
	OutputDir string
	Format    colmap.Format
	FS        fsutil.FileSystem

	// Prepare, when set, runs before the model is assembled so the
	// caller can toggle collaborator state (enable point-generation
	// modifiers, switch preview modes off) for the duration of the
	// export. Restore actions registered on the guard run on every
	// exit path, including failures.
	Prepare func(*Guard) error
}

// Run assembles the model from the camera specs and point samples and
// writes it. Camera ids are assigned in name order, image ids in frame
// order within each camera, both 1-based and monotonically increasing.
// The returned model is the exact in-memory form of what was written.
func (j *Job) Run(cams []CameraSpec, samples []points.Sample) (*colmap.Model, error) {
	if len(cams) == 0 {
		return nil, fmt.Errorf("no cameras to export")
	}
	fs := j.FS
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}

	runID := uuid.New().String()
	log.Printf("export %s: %d cameras, %d point samples, format %s",
		runID, len(cams), len(samples), j.Format)

	guard := &Guard{}
	defer guard.Restore()
	if j.Prepare != nil {
		if err := j.Prepare(guard); err != nil {
			return nil, fmt.Errorf("prepare export: %w", err)
		}
	}

	sorted := make([]CameraSpec, len(cams))
	copy(sorted, cams)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].Name < sorted[b].Name })

	model := colmap.NewModel()
	imageID := uint64(1)
	for i, spec := range sorted {
		camID := uint64(i + 1)

		params := spec.Params
		if params == nil {
			var err error
			params, err = IntrinsicParams(spec.Model, spec.LensMM, spec.SensorWidthMM, spec.SensorHeightMM, spec.Width, spec.Height)
			if err != nil {
				return nil, fmt.Errorf("camera %q: %w", spec.Name, err)
			}
		}
		cam, err := colmap.NewCamera(camID, spec.Model, spec.Width, spec.Height, params)
		if err != nil {
			return nil, fmt.Errorf("camera %q: %w", spec.Name, err)
		}
		model.Cameras[camID] = cam

		multi := len(spec.Frames) > 1
		for _, fp := range spec.Frames {
			qvec, tvec := pose.Convert(fp.Rotation, fp.Position)
			name := ImageName(spec.Name, fp.Frame, multi, spec.FileFormat)
			img, err := colmap.NewImage(imageID, qvec, tvec, camID, name, nil, nil)
			if err != nil {
				return nil, fmt.Errorf("camera %q frame %d: %w", spec.Name, fp.Frame, err)
			}
			model.Images[imageID] = img
			imageID++
		}
	}

	for _, pt := range points.ToPoint3Ds(samples) {
		model.Points3D[pt.ID] = pt
	}

	if err := fs.MkdirAll(filepath.Join(j.OutputDir, "images"), 0755); err != nil {
		return nil, fmt.Errorf("create images directory: %w", err)
	}
	sparseDir := filepath.Join(j.OutputDir, "sparse", "0")
	if err := colmap.WriteFS(fs, model, sparseDir, j.Format); err != nil {
		return nil, err
	}

	log.Printf("export %s: wrote %d cameras, %d images, %d points to %s",
		runID, len(model.Cameras), len(model.Images), len(model.Points3D), sparseDir)
	return model, nil
}
