package rates

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/hqmc/integrate"
	"github.com/phil-mansfield/hqmc/kinematics"
)

const (
	// xMax is the upper limit of the partner energy integral, in units of T.
	xMax = 5.0

	outerTol, outerPanels = 1e-2, 2000
	innerTol, innerPanels = 1e-3, 10000

	// chiSqBand is the accepted distance of VEGAS's chi^2/dof from 1.
	chiSqBand = 0.5
)

// norm is 4/(16 pi^2), the phase space normalization of binary rates.
var norm = 4 / (16 * math.Pi * math.Pi)

// Calculate computes the rate at a single grid point directly, without
// the table. For TwoToTwo and TwoToThree engines it evaluates
//
//	R = C T^3 int_0^5 dx x^2 f0(x) int_-1^1 dy (1 - v1 y) sigma(s, T[, dt'])
//
// with s = M^2 + 2 E1 T x (1 - v1 y) and C = degeneracy / (4 pi^2). For
// TwoToThree, dt' is dt transformed into the rest frame of the colliding
// pair. ThreeToTwo engines integrate over the five-dimensional phase space
// of two thermal partners with VEGAS and use rng; the other kinds ignore
// it, so it may be nil for them.
func (e *Engine) Calculate(
	rng *rand.Rand, e1, temp, dt float64,
) (float64, error) {
	if !(e1 > e.m) {
		return 0, &ConfigError{e.Name, fmt.Errorf(
			"energy %g is not above the probe mass %g", e1, e.m,
		)}
	} else if !(temp > 0) {
		return 0, &ConfigError{e.Name, fmt.Errorf(
			"temperature %g is not positive", temp,
		)}
	}

	switch e.kind {
	case TwoToTwo, TwoToThree:
		return e.calculateBinary(e1, temp, dt)
	case ThreeToTwo:
		if rng == nil {
			panic("Calculate on a ThreeToTwo engine needs a random source.")
		}
		return e.calculateThreeBody(rng, e1, temp, dt)
	}
	panic(fmt.Sprintf("Unknown Kind %d.", e.kind))
}

func (e *Engine) calculateBinary(e1, temp, dt float64) (float64, error) {
	m2 := e.m * e.m
	p1 := math.Sqrt(e1*e1 - m2)
	v1 := p1 / e1
	args := make([]float64, e.kind.Dims())
	args[1] = temp

	var innerErr error
	outer := func(x float64) float64 {
		e2, coeff := x*temp, 2*e1*temp*x
		inner := func(y float64) float64 {
			s := m2 + coeff*(1-v1*y)
			args[0] = s
			if e.kind == TwoToThree {
				args[2] = comTimeStep(m2, e1, p1, e2, s, dt)
			}
			return (1 - v1*y) * e.xs.Eval(args)
		}

		val, _, err := integrate.Adaptive(inner, -1, 1, innerTol, innerPanels)
		if err != nil && innerErr == nil {
			innerErr = err
		}
		return x * x * integrate.Occupation(x, e.Statistics) * val
	}

	val, _, err := integrate.Adaptive(outer, 0, xMax, outerTol, outerPanels)
	if innerErr != nil {
		err = innerErr
	}
	if err != nil {
		return 0, &ConfigError{e.Name, fmt.Errorf(
			"rate at E1 = %g, T = %g, dt = %g: %w", e1, temp, dt, err,
		)}
	}

	return val * temp * temp * temp * norm * e.Degeneracy, nil
}

// comTimeStep converts the cell frame time step dt into the rest frame of
// a probe (e1, p1 along z) and a massless partner of energy e2 with pair
// invariant s.
func comTimeStep(m2, e1, p1, e2, s, dt float64) float64 {
	cosTheta2 := (m2 + 2*e1*e2 - s) / (2 * p1 * e2)
	vz := (p1 + e2*cosTheta2) / (e1 + e2)
	gamma := (e1 + e2) / math.Sqrt(s)
	return gamma * (1 - vz*p1/e1) * dt
}

// calculateThreeBody integrates over the momenta of a thermal partner p2
// and a thermal emitted parton k, both massless, which are absorbed by the
// probe. The cross section is evaluated in the rest frame of the three
// incoming particles with arguments
//
//	(s, T, w2 + wk, (w2 - wk)/(1 - w2 - wk), dt')
//
// where w2 and wk are the energy fractions of p2 and k in that frame and
// dt' is dt transformed into it.
func (e *Engine) calculateThreeBody(
	rng *rand.Rand, e1, temp, dt float64,
) (float64, error) {
	m2 := e.m * e.m
	p1 := math.Sqrt(e1*e1 - m2)
	probe := kinematics.FourMomentum{e1, 0, 0, p1}
	args := make([]float64, 5)
	args[1] = temp

	f := func(x []float64) float64 {
		x2, cosTheta2, xk, cosThetak, phik := x[0], x[1], x[2], x[3], x[4]
		sinTheta2 := math.Sqrt(1 - cosTheta2*cosTheta2)
		sinThetak := math.Sqrt(1 - cosThetak*cosThetak)
		sinPhik, cosPhik := math.Sincos(phik)
		e2, k := x2*temp, xk*temp

		p2 := kinematics.FourMomentum{e2, sinTheta2 * e2, 0, cosTheta2 * e2}
		pk := kinematics.FourMomentum{
			k, k * sinThetak * cosPhik, k * sinThetak * sinPhik, k * cosThetak,
		}
		tot := probe.Add(p2).Add(pk)
		v := tot.Velocity()
		gamma := 1 / math.Sqrt(1-r3.Norm2(v)+1e-32)

		e1p := kinematics.Boost(probe, v)[0]
		e2p := kinematics.Boost(p2, v)[0]
		kp := kinematics.Boost(pk, v)[0]
		p1p := math.Sqrt(math.Max(e1p*e1p-m2, 0))
		w2, wk := e2p/(e2p+p1p+kp), kp/(e2p+p1p+kp)

		args[0] = tot.Mass2()
		args[2] = w2 + wk
		args[3] = (w2 - wk) / (1 - w2 - wk)
		args[4] = gamma * (1 - v.Z*p1/e1) * dt

		// Both incoming partners are Boltzmann whatever the channel's
		// Statistics.
		f2 := integrate.Occupation(x2, integrate.MaxwellBoltzmann)
		fk := integrate.Occupation(xk, integrate.MaxwellBoltzmann)
		return f2 * fk * x2 * xk * e.xs.Eval(args)
	}

	lo := []float64{0, -1, 0, -1, 0}
	hi := []float64{3, 1, 3, 1, math.Pi}
	v := integrate.NewVegas(lo, hi, rng)
	est, err := v.Converge(f, chiSqBand, e.VegasTries)
	if err != nil {
		return 0, &ConfigError{e.Name, fmt.Errorf(
			"rate at E1 = %g, T = %g, dt = %g: %w", e1, temp, dt, err,
		)}
	}

	t4 := temp * temp * temp * temp
	return 2 * est.Val / 256 / math.Pow(math.Pi, 5) / e1 * t4, nil
}
