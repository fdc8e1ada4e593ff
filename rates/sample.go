package rates

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/phil-mansfield/hqmc/integrate"
)

const (
	// xCut truncates proposals of the partner energy, in units of T.
	xCut = 20.0
	// boundGrowth is the factor the acceptance bound is raised to above an
	// offending proposal.
	boundGrowth = 1.25
)

// Sample draws the energy e2 of a thermal partner and the pair invariant s
// of a collision with a probe of energy e1 at temperature temp, from the
// density
//
//	P(x, y) ~ x^2 f0(x) (1 - v1 y) sigma(s(x, y), T[, dt])
//
// where x = e2/temp and y is the cosine of the angle between the two. The
// sampler proposes x from a Gamma distribution (a Gamma mixture for
// Bose-Einstein partners) and y uniformly, then rejects against a bound
// found from the cross section at the extremes of s. Proposals above the
// bound raise it and are counted by BoundViolations.
//
// Sample returns ErrNoSampler for ThreeToTwo engines and an error wrapping
// ErrSamplingExhausted if MaxSampleTries proposals are rejected.
func (e *Engine) Sample(
	rng *rand.Rand, e1, temp, dt float64,
) (e2, s float64, err error) {
	if e.kind == ThreeToTwo {
		return 0, 0, fmt.Errorf("%w: '%s' is %s", ErrNoSampler, e.Name, e.kind)
	}

	m2 := e.m * e.m
	v1 := math.Sqrt(math.Max(e1*e1-m2, 0)) / e1
	coeff := 2 * e1 * temp

	args := make([]float64, e.kind.Dims())
	args[1] = temp
	if e.kind == TwoToThree {
		args[2] = dt
	}
	sigma := func(s float64) float64 {
		args[0] = s
		return e.xs.Eval(args)
	}

	sLow := m2 + coeff*xCut*(1-v1)
	if sLow < 2*m2 {
		sLow = 2 * m2
	}
	sHigh := m2 + coeff*xCut*(1+v1)
	bound := e.BoundMargin * (1 + v1) * math.Max(sigma(sLow), sigma(sHigh))

	prop := newProposal(rng, e.Statistics)
	uy := distuv.Uniform{Min: -1, Max: 1, Src: rng}

	for try := 0; try < e.MaxSampleTries; try++ {
		x := prop.x()
		y := uy.Rand()
		s = m2 + coeff*x*(1-v1*y)

		target := (1 - v1*y) * sigma(s) * prop.weight(x)
		if target > bound {
			e.violations.Add(1)
			if e.log {
				log.Printf(
					"Sampler bound %.4g of '%s' exceeded by %.4g at "+
						"E1 = %g, T = %g, s = %g.",
					bound, e.Name, target, e1, temp, s,
				)
			}
			bound = boundGrowth * target
		}

		if target > bound*rng.Float64() {
			return x * temp, s, nil
		}
	}

	return 0, 0, fmt.Errorf(
		"%w: no proposal for '%s' accepted in %d tries at E1 = %g, T = %g",
		ErrSamplingExhausted, e.Name, e.MaxSampleTries, e1, temp,
	)
}

// proposal draws x = E2/T and gives the acceptance weight, at most 1, that
// corrects the draw to x^2 f0(x).
type proposal struct {
	stats          integrate.Statistics
	rng            *rand.Rand
	gamma2, gamma3 distuv.Gamma
}

func newProposal(rng *rand.Rand, stats integrate.Statistics) *proposal {
	return &proposal{
		stats:  stats,
		rng:    rng,
		gamma2: distuv.Gamma{Alpha: 2, Beta: 1, Src: rng},
		gamma3: distuv.Gamma{Alpha: 3, Beta: 1, Src: rng},
	}
}

// x returns a draw from Gamma(3, 1), or for Bose-Einstein statistics from
// the mixture 1/3 Gamma(2, 1) + 2/3 Gamma(3, 1), truncated to x < xCut.
func (p *proposal) x() float64 {
	for {
		var x float64
		if p.stats == integrate.BoseEinstein && p.rng.Float64() < 1.0/3 {
			x = p.gamma2.Rand()
		} else {
			x = p.gamma3.Rand()
		}
		if x < xCut {
			return x
		}
	}
}

func (p *proposal) weight(x float64) float64 {
	switch p.stats {
	case integrate.FermiDirac:
		return 1 / (1 + math.Exp(-x))
	case integrate.BoseEinstein:
		if x <= 0 {
			return 1
		}
		return x / ((1 + x) * -math.Expm1(-x))
	}
	return 1
}
