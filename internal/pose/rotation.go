package pose

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// OrthonormalTolerance is the tolerance on the rotation-part determinant
// when extracting a quaternion from a matrix.
const OrthonormalTolerance = 1e-6

// FromMatrix extracts a unit quaternion from a 3x3 rotation matrix using
// Shepperd's method, branching on the largest diagonal combination so the
// extraction stays numerically stable for every orientation. The input
// must be a proper rotation (orthonormal, det = +1): conversion never
// introduces a degeneration the matrix did not already have.
func FromMatrix(m mat.Matrix) (Quaternion, error) {
	r, c := m.Dims()
	if r != 3 || c != 3 {
		return Quaternion{}, fmt.Errorf("rotation matrix must be 3x3, got %dx%d", r, c)
	}

	m00, m01, m02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m10, m11, m12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	m20, m21, m22 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	det := m00*(m11*m22-m12*m21) - m01*(m10*m22-m12*m20) + m02*(m10*m21-m11*m20)
	if math.Abs(det-1.0) > OrthonormalTolerance {
		return Quaternion{}, fmt.Errorf("matrix is not a proper rotation (det = %g)", det)
	}

	trace := m00 + m11 + m22
	var q Quaternion
	switch {
	case trace > 0:
		s := 2 * math.Sqrt(trace+1)
		q = Quaternion{
			W: s / 4,
			X: (m21 - m12) / s,
			Y: (m02 - m20) / s,
			Z: (m10 - m01) / s,
		}
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		q = Quaternion{
			W: (m21 - m12) / s,
			X: s / 4,
			Y: (m01 + m10) / s,
			Z: (m02 + m20) / s,
		}
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		q = Quaternion{
			W: (m02 - m20) / s,
			X: (m01 + m10) / s,
			Y: s / 4,
			Z: (m12 + m21) / s,
		}
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		q = Quaternion{
			W: (m10 - m01) / s,
			X: (m02 + m20) / s,
			Y: (m12 + m21) / s,
			Z: s / 4,
		}
	}
	return q.normalized(), nil
}

// FromEulerXYZ builds the rotation for the host's default XYZ rotation
// order: X applied first, then Y, then Z (R = Rz*Ry*Rx). Angles are in
// radians. The order is fixed so the quaternion obtained for a given
// Euler triple is deterministic.
func FromEulerXYZ(rx, ry, rz float64) Quaternion {
	qx := Quaternion{W: math.Cos(rx / 2), X: math.Sin(rx / 2)}
	qy := Quaternion{W: math.Cos(ry / 2), Y: math.Sin(ry / 2)}
	qz := Quaternion{W: math.Cos(rz / 2), Z: math.Sin(rz / 2)}
	return qz.Mul(qy).Mul(qx)
}

func (q Quaternion) normalized() Quaternion {
	n := math.Sqrt(q.W*q.W + q.X*q.X + q.Y*q.Y + q.Z*q.Z)
	if n == 0 {
		return Identity()
	}
	return Quaternion{W: q.W / n, X: q.X / n, Y: q.Y / n, Z: q.Z / n}
}
