package integrate

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultBins is the number of importance-sampling bins per dimension.
	DefaultBins = 50
	// DefaultAlpha controls how quickly the grid adapts.
	DefaultAlpha = 1.5
)

// Vegas integrates functions over a hyper-rectangle using the VEGAS
// algorithm: samples are drawn from a separable piecewise-constant density
// which is refined between iterations to follow the integrand.
//
// A Vegas is not safe for concurrent use. Each goroutine should own one,
// along with its own random source.
type Vegas struct {
	Lo, Hi []float64
	// Calls is the number of function evaluations per iteration.
	Calls int
	// Iterations is the number of refinement iterations per Integrate call.
	Iterations int
	Bins       int
	Alpha      float64

	rng  *rand.Rand
	grid [][]float64
	d    [][]float64
	hits [][]int
}

// Estimate is the result of a Vegas integration. ChiSq is the chi-squared
// per degree of freedom of the per-iteration estimates about their weighted
// mean; values near 1 indicate consistent iterations.
type Estimate struct {
	Val, Sigma, ChiSq float64
}

// NewVegas creates an integrator over the box [lo, hi] with GSL-like
// defaults: 5 iterations of 10000 calls.
func NewVegas(lo, hi []float64, rng *rand.Rand) *Vegas {
	if len(lo) != len(hi) {
		panic(fmt.Sprintf(
			"len(lo) = %d, but len(hi) = %d.", len(lo), len(hi),
		))
	} else if len(lo) == 0 {
		panic("NewVegas given zero dimensions.")
	}
	for i := range lo {
		if !(lo[i] < hi[i]) {
			panic(fmt.Sprintf(
				"Dimension %d has empty range [%g, %g].", i, lo[i], hi[i],
			))
		}
	}

	return &Vegas{
		Lo: lo, Hi: hi,
		Calls: 10000, Iterations: 5,
		Bins: DefaultBins, Alpha: DefaultAlpha,
		rng: rng,
	}
}

func (v *Vegas) reset() {
	dim := len(v.Lo)
	v.grid = make([][]float64, dim)
	v.d = make([][]float64, dim)
	v.hits = make([][]int, dim)
	for j := range v.grid {
		v.grid[j] = make([]float64, v.Bins+1)
		v.d[j] = make([]float64, v.Bins)
		v.hits[j] = make([]int, v.Bins)
		for k := range v.grid[j] {
			v.grid[j][k] = float64(k) / float64(v.Bins)
		}
	}
}

// Integrate runs Iterations iterations starting from a uniform grid and
// combines them into a single inverse-variance weighted estimate. The grid
// stays uniform until an iteration sees a nonzero variance, so a flat
// integrand is returned exactly with Sigma = 0 and ChiSq = 1.
func (v *Vegas) Integrate(f func(x []float64) float64) Estimate {
	if v.Calls < 2 {
		panic(fmt.Sprintf("Vegas.Calls = %d, must be at least 2.", v.Calls))
	} else if v.Iterations < 1 {
		panic(fmt.Sprintf("Vegas.Iterations = %d.", v.Iterations))
	} else if v.Bins < 2 {
		panic(fmt.Sprintf("Vegas.Bins = %d, must be at least 2.", v.Bins))
	}
	v.reset()

	vals := make([]float64, v.Iterations)
	vars := make([]float64, v.Iterations)
	exact := true
	for it := range vals {
		vals[it], vars[it] = v.iterate(f)
		if vars[it] > 0 {
			exact = false
		}
		if !exact {
			v.refine()
		}
	}

	if exact {
		return Estimate{Val: floats.Sum(vals) / float64(len(vals)), ChiSq: 1}
	}

	sumW, sumWI, sumWI2 := 0.0, 0.0, 0.0
	for it := range vals {
		if vars[it] <= 0 {
			continue
		}
		w := 1 / vars[it]
		sumW += w
		sumWI += w * vals[it]
		sumWI2 += w * vals[it] * vals[it]
	}
	mean := sumWI / sumW

	est := Estimate{Val: mean, Sigma: math.Sqrt(1 / sumW)}
	if len(vals) > 1 {
		chi2 := sumWI2 - mean*mean*sumW
		if chi2 < 0 {
			chi2 = 0
		}
		est.ChiSq = chi2 / float64(len(vals)-1)
	}
	return est
}

// iterate draws Calls samples from the current grid and returns the
// integral estimate and its variance. The mean squared weight of each bin
// is stored in d for the next refinement.
func (v *Vegas) iterate(f func(x []float64) float64) (val, variance float64) {
	dim, nb := len(v.Lo), float64(v.Bins)
	x := make([]float64, dim)
	bins := make([]int, dim)

	vol := 1.0
	for j := range v.Lo {
		vol *= v.Hi[j] - v.Lo[j]
	}
	for j := range v.d {
		for k := range v.d[j] {
			v.d[j][k], v.hits[j][k] = 0, 0
		}
	}

	sum, sum2 := 0.0, 0.0
	for c := 0; c < v.Calls; c++ {
		jac := vol
		for j := 0; j < dim; j++ {
			u := v.rng.Float64() * nb
			k := int(u)
			if k >= v.Bins {
				k = v.Bins - 1
			}
			g := v.grid[j]
			w := g[k+1] - g[k]
			x[j] = v.Lo[j] + (g[k]+(u-float64(k))*w)*(v.Hi[j]-v.Lo[j])
			jac *= w * nb
			bins[j] = k
		}

		fv := f(x) * jac
		sum += fv
		sum2 += fv * fv
		for j, k := range bins {
			v.d[j][k] += fv * fv
			v.hits[j][k]++
		}
	}

	for j := range v.d {
		for k, h := range v.hits[j] {
			if h > 0 {
				v.d[j][k] /= float64(h)
			}
		}
	}

	n := float64(v.Calls)
	val = sum / n
	raw := sum2/n - val*val
	// Anything this small is cancellation noise from a flat integrand.
	if raw <= 1e-12*val*val {
		return val, 0
	}
	return val, raw / (n - 1)
}

// refine moves the bin edges of every dimension so that each bin carries
// an equal share of the smoothed, damped squared integrand.
func (v *Vegas) refine() {
	nb := v.Bins
	sm := make([]float64, nb)
	r := make([]float64, nb)
	edges := make([]float64, nb+1)

	for j := range v.grid {
		d := v.d[j]
		sm[0] = (d[0] + d[1]) / 2
		sm[nb-1] = (d[nb-2] + d[nb-1]) / 2
		for k := 1; k < nb-1; k++ {
			sm[k] = (d[k-1] + d[k] + d[k+1]) / 3
		}

		total := floats.Sum(sm)
		if total <= 0 {
			continue
		}
		for k := range sm {
			r[k] = 0
			if frac := sm[k] / total; frac >= 1 {
				r[k] = 1
			} else if frac > 0 {
				r[k] = math.Pow((frac-1)/math.Log(frac), v.Alpha)
			}
		}

		rebin(v.grid[j], r, edges)
	}
}

// rebin places new edges so that every bin of grid holds an equal amount of
// the weight r, interpolating linearly inside the old bins.
func rebin(grid, r, edges []float64) {
	nb := len(r)
	per := floats.Sum(r) / float64(nb)

	k := 0
	acc, xo, xn := 0.0, 0.0, 0.0
	edges[0], edges[nb] = 0, 1
	for i := 1; i < nb; i++ {
		for acc < per && k < nb {
			acc += r[k]
			xo, xn = grid[k], grid[k+1]
			k++
		}
		acc -= per
		edges[i] = xn
		if r[k-1] > 0 {
			edges[i] -= (xn - xo) * acc / r[k-1]
		}
		if edges[i] > 1 {
			edges[i] = 1
		}
	}
	copy(grid, edges)
}

// Converge repeats Integrate until the chi-squared per degree of freedom is
// within band of 1, giving up after maxTries attempts.
func (v *Vegas) Converge(
	f func(x []float64) float64, band float64, maxTries int,
) (Estimate, error) {
	var est Estimate
	for try := 0; try < maxTries; try++ {
		est = v.Integrate(f)
		if math.Abs(est.ChiSq-1) <= band {
			return est, nil
		}
	}
	return est, fmt.Errorf(
		"%w: VEGAS chi2/dof = %.3g after %d attempts (estimate %.6g +/- %.3g)",
		ErrNoConvergence, est.ChiSq, maxTries, est.Val, est.Sigma,
	)
}
