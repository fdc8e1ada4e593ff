package kinematics

import (
	. "math"

	"gonum.org/v1/gonum/spatial/r3"
)

// EulerMatrix creates the 3D rotation matrix for the z-x-z Euler angles
// alpha, beta, and gamma: a rotation of the coordinate axes by alpha about
// z, then by beta about the new x axis, then by gamma about the new z axis.
//
// EulerMatrix(-gamma, -beta, -alpha) is the inverse of
// EulerMatrix(alpha, beta, gamma).
func EulerMatrix(alpha, beta, gamma float64) *r3.Mat {
	s1, c1 := Sincos(alpha)
	s2, c2 := Sincos(beta)
	s3, c3 := Sincos(gamma)

	return r3.NewMat([]float64{
		c3*c1 - s3*c2*s1, c3*s1 + s3*c2*c1, s3 * s2,
		-s3*c1 - c3*c2*s1, -s3*s1 + c3*c2*c1, c3 * s2,
		s2 * s1, -s2 * c1, c2,
	})
}

// RotateEuler rotates the spatial part of p by EulerMatrix(alpha, beta,
// gamma). The energy is unchanged.
func RotateEuler(p FourMomentum, alpha, beta, gamma float64) FourMomentum {
	q := EulerMatrix(alpha, beta, gamma).MulVec(p.P())
	return FourMomentum{p[0], q.X, q.Y, q.Z}
}

// AlignAngles returns the Euler angles alpha and beta for which
// EulerMatrix(alpha, beta, 0) takes p onto the +z axis.
func AlignAngles(p r3.Vec) (alpha, beta float64) {
	alpha = Atan2(p.Y, p.X) + Pi/2
	beta = Atan2(Hypot(p.X, p.Y), p.Z)
	return alpha, beta
}
