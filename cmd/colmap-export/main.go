// Command colmap-export converts a scene description JSON into a COLMAP
// dataset (sparse model triple plus reserved image names).
//
// The scene file carries what the host application would supply live: per
// camera the intrinsics (either an explicit parameter vector or lens and
// sensor dimensions) and the world pose at each exported frame, plus an
// optional point stream with normalized colors.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/colmap.export/internal/colmap"
	"github.com/banshee-data/colmap.export/internal/export"
	"github.com/banshee-data/colmap.export/internal/points"
	"github.com/banshee-data/colmap.export/internal/pose"
)

// sceneFile is the on-disk scene description.
type sceneFile struct {
	Cameras []sceneCamera `json:"cameras"`
	Points  []scenePoint  `json:"points"`
}

type sceneCamera struct {
	Name           string       `json:"name"`
	Model          string       `json:"model"`
	Width          uint64       `json:"width"`
	Height         uint64       `json:"height"`
	Params         []float64    `json:"params,omitempty"`
	LensMM         float64      `json:"lens_mm,omitempty"`
	SensorWidthMM  float64      `json:"sensor_width_mm,omitempty"`
	SensorHeightMM float64      `json:"sensor_height_mm,omitempty"`
	FileFormat     string       `json:"file_format,omitempty"`
	Frames         []sceneFrame `json:"frames"`
}

type sceneFrame struct {
	Frame    int        `json:"frame"`
	Position [3]float64 `json:"position"`
	// Exactly one of quaternion (scalar-first, host convention) or
	// euler_xyz (radians) describes the rotation.
	Quaternion *[4]float64 `json:"quaternion,omitempty"`
	EulerXYZ   *[3]float64 `json:"euler_xyz,omitempty"`
}

type scenePoint struct {
	Position [3]float64  `json:"position"`
	Color    *[4]float64 `json:"color,omitempty"`
}

func main() {
	scenePath := flag.String("scene", "", "scene description JSON (required)")
	outDir := flag.String("out", "", "dataset output directory (required)")
	formatName := flag.String("format", "bin", "model encoding: txt or bin")
	flag.Parse()

	if *scenePath == "" || *outDir == "" {
		flag.Usage()
		os.Exit(2)
	}

	format, err := colmap.ParseFormat(*formatName)
	if err != nil {
		log.Fatal(err)
	}

	data, err := os.ReadFile(*scenePath)
	if err != nil {
		log.Fatalf("read scene: %v", err)
	}
	var scene sceneFile
	if err := json.Unmarshal(data, &scene); err != nil {
		log.Fatalf("parse scene: %v", err)
	}

	cams, samples, err := buildInputs(&scene)
	if err != nil {
		log.Fatal(err)
	}

	job := &export.Job{OutputDir: *outDir, Format: format}
	model, err := job.Run(cams, samples)
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}

	log.Printf("✓ Wrote %d cameras, %d images, %d points to %s",
		len(model.Cameras), len(model.Images), len(model.Points3D), *outDir)
}

// buildInputs maps the scene description to export inputs.
func buildInputs(scene *sceneFile) ([]export.CameraSpec, []points.Sample, error) {
	if len(scene.Cameras) == 0 {
		return nil, nil, fmt.Errorf("scene has no cameras")
	}

	cams := make([]export.CameraSpec, 0, len(scene.Cameras))
	for _, sc := range scene.Cameras {
		model, err := colmap.ParseCameraModel(sc.Model)
		if err != nil {
			return nil, nil, fmt.Errorf("camera %q: %w", sc.Name, err)
		}

		frames := make([]export.FramePose, 0, len(sc.Frames))
		for _, sf := range sc.Frames {
			rot, err := frameRotation(sf)
			if err != nil {
				return nil, nil, fmt.Errorf("camera %q frame %d: %w", sc.Name, sf.Frame, err)
			}
			frames = append(frames, export.FramePose{
				Frame:    sf.Frame,
				Position: r3.Vec{X: sf.Position[0], Y: sf.Position[1], Z: sf.Position[2]},
				Rotation: rot,
			})
		}

		cams = append(cams, export.CameraSpec{
			Name:           sc.Name,
			Model:          model,
			Width:          sc.Width,
			Height:         sc.Height,
			Params:         sc.Params,
			LensMM:         sc.LensMM,
			SensorWidthMM:  sc.SensorWidthMM,
			SensorHeightMM: sc.SensorHeightMM,
			FileFormat:     sc.FileFormat,
			Frames:         frames,
		})
	}

	samples := make([]points.Sample, 0, len(scene.Points))
	for _, sp := range scene.Points {
		s := points.Sample{
			Position: r3.Vec{X: sp.Position[0], Y: sp.Position[1], Z: sp.Position[2]},
		}
		if sp.Color != nil {
			s.Color = *sp.Color
			s.HasColor = true
		}
		samples = append(samples, s)
	}

	return cams, samples, nil
}

// frameRotation resolves the frame's rotation representation to a host
// quaternion.
func frameRotation(sf sceneFrame) (pose.Quaternion, error) {
	switch {
	case sf.Quaternion != nil && sf.EulerXYZ != nil:
		return pose.Quaternion{}, fmt.Errorf("both quaternion and euler_xyz given")
	case sf.Quaternion != nil:
		q := *sf.Quaternion
		return pose.Quaternion{W: q[0], X: q[1], Y: q[2], Z: q[3]}, nil
	case sf.EulerXYZ != nil:
		e := *sf.EulerXYZ
		return pose.FromEulerXYZ(e[0], e[1], e[2]), nil
	}
	return pose.Quaternion{}, fmt.Errorf("no rotation given (want quaternion or euler_xyz)")
}
