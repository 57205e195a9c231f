// Package colmap implements the COLMAP sparse-model data model and its
// on-disk text and binary encodings.
//
// A model is three collections - cameras, posed images and 3D points -
// serialized as the cameras/images/points3D file triple that COLMAP and
// downstream MVS tools consume. Both encodings round-trip exactly: reading
// a written directory reproduces every field of the original collections.
package colmap

import "fmt"

// CameraModel identifies the intrinsic model of a camera and fixes the
// arity and meaning of its parameter vector. The integer value doubles as
// the model code in the binary encoding and must never be renumbered.
type CameraModel int32

const (
	// ModelPinhole is the distortion-free model: params = fx, fy, cx, cy.
	ModelPinhole CameraModel = 0
	// ModelOpenCV adds radial and tangential distortion:
	// params = fx, fy, cx, cy, k1, k2, p1, p2.
	ModelOpenCV CameraModel = 1
)

// modelNames maps model codes to their COLMAP names. Extending the model
// set means appending here and to modelArities with the next free code.
var modelNames = map[CameraModel]string{
	ModelPinhole: "PINHOLE",
	ModelOpenCV:  "OPENCV",
}

var modelArities = map[CameraModel]int{
	ModelPinhole: 4,
	ModelOpenCV:  8,
}

// String returns the COLMAP model name (e.g. "PINHOLE").
func (m CameraModel) String() string {
	if name, ok := modelNames[m]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int32(m))
}

// Valid reports whether m is a known camera model.
func (m CameraModel) Valid() bool {
	_, ok := modelNames[m]
	return ok
}

// Arity returns the required parameter count for the model.
func (m CameraModel) Arity() int {
	return modelArities[m]
}

// ParseCameraModel maps a COLMAP model name to its CameraModel.
func ParseCameraModel(name string) (CameraModel, error) {
	for m, n := range modelNames {
		if n == name {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown camera model %q", name)
}

// Camera holds the intrinsic calibration of one physical or virtual camera.
type Camera struct {
	ID     uint64
	Model  CameraModel
	Width  uint64
	Height uint64
	Params []float64
}

// NewCamera constructs a Camera, enforcing that the parameter vector length
// matches the model's arity. A mismatch is a construction error: the record
// would be unreadable by any consumer, so it is never allowed to exist.
func NewCamera(id uint64, model CameraModel, width, height uint64, params []float64) (*Camera, error) {
	if !model.Valid() {
		return nil, fmt.Errorf("camera %d: unknown model code %d", id, int32(model))
	}
	if len(params) != model.Arity() {
		return nil, fmt.Errorf("camera %d: model %s requires %d params, got %d",
			id, model, model.Arity(), len(params))
	}
	return &Camera{ID: id, Model: model, Width: width, Height: height, Params: params}, nil
}

// InvalidPoint3D is the sentinel marking a 2D observation with no
// associated 3D point.
const InvalidPoint3D int64 = -1

// Image is a posed image: the world-to-camera transform of one rendered or
// captured view, plus its 2D observations. QVec is a unit quaternion in
// scalar-first (w, x, y, z) order and TVec the translation such that
// x_cam = R(QVec)*x_world + TVec. Name joins the record to the pixel file
// under the dataset's images directory.
type Image struct {
	ID       uint64
	QVec     [4]float64
	TVec     [3]float64
	CameraID uint64
	Name     string

	// XYs holds pixel observations; Point3DIDs is parallel to it, with
	// InvalidPoint3D where an observation has no triangulated point.
	XYs        [][2]float64
	Point3DIDs []int64
}

// NewImage constructs an Image, enforcing that XYs and Point3DIDs are
// parallel sequences.
func NewImage(id uint64, qvec [4]float64, tvec [3]float64, cameraID uint64, name string, xys [][2]float64, point3DIDs []int64) (*Image, error) {
	if len(xys) != len(point3DIDs) {
		return nil, fmt.Errorf("image %d: %d observations but %d point3D ids",
			id, len(xys), len(point3DIDs))
	}
	return &Image{
		ID:         id,
		QVec:       qvec,
		TVec:       tvec,
		CameraID:   cameraID,
		Name:       name,
		XYs:        xys,
		Point3DIDs: point3DIDs,
	}, nil
}

// Point3D is one world-space point with its color and observation track.
// ImageIDs and Point2DIdxs are parallel: each pair names an image and the
// index into that image's XYs that observes this point.
type Point3D struct {
	ID          uint64
	XYZ         [3]float64
	RGB         [3]uint8
	Error       float64
	ImageIDs    []uint64
	Point2DIdxs []int64
}

// Model is one complete sparse reconstruction held in memory.
type Model struct {
	Cameras  map[uint64]*Camera
	Images   map[uint64]*Image
	Points3D map[uint64]*Point3D
}

// NewModel returns an empty model with allocated collections.
func NewModel() *Model {
	return &Model{
		Cameras:  make(map[uint64]*Camera),
		Images:   make(map[uint64]*Image),
		Points3D: make(map[uint64]*Point3D),
	}
}

// Validate checks referential integrity across the three collections:
// every image references an existing camera, every non-sentinel
// observation references an existing point, and every point track entry
// references an existing image. Returns a *ReferentialError on the first
// violation found.
func (m *Model) Validate() error {
	for id, img := range m.Images {
		if _, ok := m.Cameras[img.CameraID]; !ok {
			return &ReferentialError{
				Entity: "image", EntityID: id,
				Field: "camera_id", TargetID: img.CameraID,
			}
		}
		if len(img.XYs) != len(img.Point3DIDs) {
			return &ReferentialError{
				Entity: "image", EntityID: id,
				Field:  "point3D_ids",
				Reason: fmt.Sprintf("%d observations but %d point3D ids", len(img.XYs), len(img.Point3DIDs)),
			}
		}
		for _, p3d := range img.Point3DIDs {
			if p3d == InvalidPoint3D {
				continue
			}
			if _, ok := m.Points3D[uint64(p3d)]; !ok {
				return &ReferentialError{
					Entity: "image", EntityID: id,
					Field: "point3D_ids", TargetID: uint64(p3d),
				}
			}
		}
	}
	for id, pt := range m.Points3D {
		if len(pt.ImageIDs) != len(pt.Point2DIdxs) {
			return &ReferentialError{
				Entity: "point3D", EntityID: id,
				Field:  "track",
				Reason: fmt.Sprintf("%d image ids but %d point2D indices", len(pt.ImageIDs), len(pt.Point2DIdxs)),
			}
		}
		for _, imgID := range pt.ImageIDs {
			if _, ok := m.Images[imgID]; !ok {
				return &ReferentialError{
					Entity: "point3D", EntityID: id,
					Field: "image_ids", TargetID: imgID,
				}
			}
		}
	}
	return nil
}
