/*package integrate contains the numerical integration routines used to turn
cross sections into thermal rates: an adaptive one-dimensional quadrature
and a VEGAS Monte Carlo integrator for higher dimensional phase space.
*/
package integrate

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/integrate/quad"
)

// ErrNoConvergence is returned when an integral does not reach its error
// target within the allowed amount of refinement.
var ErrNoConvergence = errors.New("integrate: no convergence")

const (
	coarseOrder = 10
	fineOrder   = 21
	roundoff    = 1e-13
)

// rule is a Gauss-Legendre rule on [-1, 1].
type rule struct {
	xs, ws []float64
}

func newRule(n int) rule {
	r := rule{make([]float64, n), make([]float64, n)}
	quad.Legendre{}.FixedLocations(r.xs, r.ws, -1, 1)
	return r
}

var coarse, fine = newRule(coarseOrder), newRule(fineOrder)

// panel is a subinterval along with its integral and error estimates.
type panel struct {
	lo, hi        float64
	val, err, mag float64
}

func newPanel(f func(float64) float64, lo, hi float64) panel {
	mid, half := (hi+lo)/2, (hi-lo)/2

	c := 0.0
	for i, x := range coarse.xs {
		c += coarse.ws[i] * f(mid+half*x)
	}
	v, m := 0.0, 0.0
	for i, x := range fine.xs {
		y := f(mid + half*x)
		v += fine.ws[i] * y
		m += fine.ws[i] * math.Abs(y)
	}
	c, v, m = c*half, v*half, m*half

	return panel{lo: lo, hi: hi, val: v, err: math.Abs(v - c), mag: m}
}

// panels is a max-heap of panels ordered by error.
type panels []panel

func (ps panels) Len() int            { return len(ps) }
func (ps panels) Less(i, j int) bool  { return ps[i].err > ps[j].err }
func (ps panels) Swap(i, j int)       { ps[i], ps[j] = ps[j], ps[i] }
func (ps *panels) Push(x interface{}) { *ps = append(*ps, x.(panel)) }
func (ps *panels) Pop() interface{} {
	old := *ps
	p := old[len(old)-1]
	*ps = old[:len(old)-1]
	return p
}

// Adaptive integrates f from lo to hi, bisecting the panel with the largest
// error estimate until the total estimated error falls below relTol times
// the magnitude of the integral. At most maxPanels panels are used. If the
// target is not reached, the best estimate is returned along with an error
// wrapping ErrNoConvergence.
func Adaptive(
	f func(float64) float64, lo, hi, relTol float64, maxPanels int,
) (val, absErr float64, err error) {
	if hi < lo {
		panic(fmt.Sprintf("Adaptive given lo = %g > hi = %g.", lo, hi))
	} else if maxPanels < 1 {
		panic(fmt.Sprintf("Adaptive given maxPanels = %d.", maxPanels))
	}
	if lo == hi {
		return 0, 0, nil
	}

	ps := &panels{newPanel(f, lo, hi)}
	val, absErr = (*ps)[0].val, (*ps)[0].err
	mag := (*ps)[0].mag

	for !converged(val, absErr, mag, relTol) {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return val, absErr, fmt.Errorf(
				"%w: integral over [%g, %g] is %g", ErrNoConvergence, lo, hi, val,
			)
		} else if ps.Len() >= maxPanels {
			return val, absErr, fmt.Errorf(
				"%w: error %.3g on integral %.6g over [%g, %g] after %d panels",
				ErrNoConvergence, absErr, val, lo, hi, ps.Len(),
			)
		}

		p := heap.Pop(ps).(panel)
		mid := (p.lo + p.hi) / 2
		left, right := newPanel(f, p.lo, mid), newPanel(f, mid, p.hi)
		heap.Push(ps, left)
		heap.Push(ps, right)

		val += left.val + right.val - p.val
		absErr += left.err + right.err - p.err
		mag += left.mag + right.mag - p.mag
	}

	// The running sums drift; report a clean total.
	val, absErr = 0, 0
	for _, p := range *ps {
		val += p.val
		absErr += p.err
	}
	return val, absErr, nil
}

// converged also accepts errors at the roundoff level of the integrand's
// magnitude so that integrals which cancel to zero terminate.
func converged(val, absErr, mag, relTol float64) bool {
	if math.IsNaN(val) || math.IsNaN(absErr) {
		return false
	}
	return absErr <= relTol*math.Abs(val) || absErr <= roundoff*mag
}
