package kinematics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// FourMomentum is (E, px, py, pz) in natural units.
type FourMomentum [4]float64

// OnShell returns the four-momentum of a particle with mass m and
// three-momentum p.
func OnShell(m float64, p r3.Vec) FourMomentum {
	return FourMomentum{math.Sqrt(m*m + r3.Norm2(p)), p.X, p.Y, p.Z}
}

// E returns the energy component.
func (p FourMomentum) E() float64 { return p[0] }

// P returns the spatial components.
func (p FourMomentum) P() r3.Vec { return r3.Vec{X: p[1], Y: p[2], Z: p[3]} }

// Mass2 returns the invariant E^2 - |p|^2.
func (p FourMomentum) Mass2() float64 {
	return p[0]*p[0] - p[1]*p[1] - p[2]*p[2] - p[3]*p[3]
}

// Add returns p + q.
func (p FourMomentum) Add(q FourMomentum) FourMomentum {
	return FourMomentum{p[0] + q[0], p[1] + q[1], p[2] + q[2], p[3] + q[3]}
}

// Velocity returns p/E, the velocity of a frame moving with p.
func (p FourMomentum) Velocity() r3.Vec {
	return r3.Scale(1/p[0], p.P())
}

// OnMassShell reports whether |E^2 - p^2 - m^2| < tol*m^2.
func (p FourMomentum) OnMassShell(m, tol float64) bool {
	return math.Abs(p.Mass2()-m*m) < tol*m*m
}

func (p FourMomentum) String() string {
	return fmt.Sprintf("(%.6g, %.6g, %.6g, %.6g)", p[0], p[1], p[2], p[3])
}

// Boost returns p as seen from a frame moving with velocity v relative to
// the frame p is expressed in. Boosting by v and then by -v returns p.
//
// Boost panics if |v| >= 1.
func Boost(p FourMomentum, v r3.Vec) FourMomentum {
	v2 := r3.Norm2(v)
	if v2 == 0 {
		return p
	} else if v2 >= 1 {
		panic(fmt.Sprintf("Boost velocity %v has |v| >= 1.", v))
	}

	gamma := 1 / math.Sqrt(1-v2)
	pv := r3.Dot(p.P(), v)
	k := (gamma-1)*pv/v2 - gamma*p[0]
	q := r3.Add(p.P(), r3.Scale(k, v))

	return FourMomentum{gamma * (p[0] - pv), q.X, q.Y, q.Z}
}
