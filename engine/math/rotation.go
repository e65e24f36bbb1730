package math

import (
	m "math"
)

/** @brief Default epsilon used for small angle fallbacks in the exp/log maps. */
const K_ROTATION_EPSILON float32 = 1e-8

/**
 * @brief Exponential map. Builds the unit quaternion whose log is v,
 * ie. a rotation of 2*|v| radians around v.
 *
 * @param v The half-angle scaled axis.
 * @param eps Below this length the first order approximation is used.
 * @return A unit quaternion.
 */
func QuatExp(v Vec3, eps float32) Quaternion {
	halfAngle := v.Length()
	if halfAngle < eps {
		return Quaternion{v.X, v.Y, v.Z, 1.0}.Normalize()
	}
	c := kcos(halfAngle)
	s := ksin(halfAngle) / halfAngle
	return Quaternion{s * v.X, s * v.Y, s * v.Z, c}
}

/**
 * @brief Logarithm map, the inverse of QuatExp.
 *
 * @param q A unit quaternion.
 * @param eps Below this vector length the imaginary part is returned as is.
 * @return The half-angle scaled axis.
 */
func QuatLog(q Quaternion, eps float32) Vec3 {
	// computed in float64, acos(w) loses most of its precision near w = 1
	x, y, z, w := float64(q.X), float64(q.Y), float64(q.Z), float64(q.W)
	length := m.Sqrt(x*x + y*y + z*z)
	if length < float64(eps) {
		return Vec3{q.X, q.Y, q.Z}
	}
	halfAngle := m.Atan2(length, w)
	s := halfAngle / length
	return Vec3{float32(x * s), float32(y * s), float32(z * s)}
}

// QuatAbs returns q or -q, whichever has a non negative W: the same rotation
// taken along the shortest arc.
func QuatAbs(q Quaternion) Quaternion {
	if q.W < 0 {
		return q.Negate()
	}
	return q
}

/**
 * @brief Converts a quaternion into its scaled angle axis form: the rotation
 * axis multiplied by the rotation angle in radians.
 */
func QuatToScaledAngleAxis(q Quaternion) Vec3 {
	return QuatLog(q, K_ROTATION_EPSILON).MulScalar(2.0)
}

/**
 * @brief Converts a scaled angle axis back into a unit quaternion.
 */
func QuatFromScaledAngleAxis(v Vec3) Quaternion {
	return QuatExp(v.MulScalar(0.5), K_ROTATION_EPSILON)
}

/**
 * @brief Returns the three columns of the rotation matrix of q, which are
 * the images of the x, y and z axes.
 */
func ColumnsFromQuat(q Quaternion) (Vec3, Vec3, Vec3) {
	xx, yy, zz := q.X*q.X, q.Y*q.Y, q.Z*q.Z
	xy, xz, yz := q.X*q.Y, q.X*q.Z, q.Y*q.Z
	wx, wy, wz := q.W*q.X, q.W*q.Y, q.W*q.Z

	c0 := Vec3{1.0 - 2.0*(yy+zz), 2.0 * (xy + wz), 2.0 * (xz - wy)}
	c1 := Vec3{2.0 * (xy - wz), 1.0 - 2.0*(xx+zz), 2.0 * (yz + wx)}
	c2 := Vec3{2.0 * (xz + wy), 2.0 * (yz - wx), 1.0 - 2.0*(xx+yy)}
	return c0, c1, c2
}

/**
 * @brief Builds a quaternion from the columns of an orthonormal rotation matrix.
 * Picks the numerically largest of the four components as pivot.
 */
func QuatFromColumns(c0, c1, c2 Vec3) Quaternion {
	m00, m10, m20 := c0.X, c0.Y, c0.Z
	m01, m11, m21 := c1.X, c1.Y, c1.Z
	m02, m12, m22 := c2.X, c2.Y, c2.Z

	var q Quaternion
	var t float32
	if m22 < 0 {
		if m00 > m11 {
			t = 1.0 + m00 - m11 - m22
			q = Quaternion{t, m10 + m01, m02 + m20, m21 - m12}
		} else {
			t = 1.0 - m00 + m11 - m22
			q = Quaternion{m10 + m01, t, m21 + m12, m02 - m20}
		}
	} else {
		if m00 < -m11 {
			t = 1.0 - m00 - m11 + m22
			q = Quaternion{m02 + m20, m21 + m12, t, m10 - m01}
		} else {
			t = 1.0 + m00 + m11 + m22
			q = Quaternion{m21 - m12, m02 - m20, m10 - m01, t}
		}
	}

	s := 0.5 / ksqrt(t)
	return Quaternion{q.X * s, q.Y * s, q.Z * s, q.W * s}
}

/**
 * @brief Encodes the rotation as its first two matrix columns (6 floats).
 */
func XformXYFromQuat(q Quaternion) (Vec3, Vec3) {
	c0, c1, _ := ColumnsFromQuat(q)
	return c0, c1
}

/**
 * @brief Decodes a two column rotation. The inputs do not need to be
 * orthonormal, they are re-orthogonalised before the third column is rebuilt.
 */
func QuatFromXformXY(x, y Vec3) Quaternion {
	c0 := x.Normalize()
	c1 := y.Sub(c0.MulScalar(c0.Dot(y))).Normalize()
	c2 := c0.Cross(c1)
	if c2.LengthSquared() < K_FLOAT_EPSILON {
		// parallel or zero axes carry no rotation
		return NewQuatIdentity()
	}
	return QuatFromColumns(c0, c1, c2).Normalize()
}
