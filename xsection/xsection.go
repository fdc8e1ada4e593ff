/*package xsection provides simple cross section models and final state
samplers. They stand in for real matrix elements in tests and in the demo
command: the rate and transport code only ever sees them through the
Mass/Eval and SampleFinalState methods.
*/
package xsection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/phil-mansfield/hqmc/kinematics"
)

// Model is a cross section (or reduced matrix element) as a function of an
// argument vector whose first element is the Mandelstam s.
type Model interface {
	Mass() float64
	Eval(args []float64) float64
}

// Constant has the value Sigma everywhere.
type Constant struct {
	M, Sigma float64
}

func (c Constant) Mass() float64               { return c.M }
func (c Constant) Eval(args []float64) float64 { return c.Sigma }

// PowerLaw falls off as Sigma * (M^2 / s)^Power above threshold.
type PowerLaw struct {
	M, Sigma, Power float64
}

func (pl PowerLaw) Mass() float64 { return pl.M }

func (pl PowerLaw) Eval(args []float64) float64 {
	s, m2 := args[0], pl.M*pl.M
	if s <= m2 {
		return pl.Sigma
	}
	return pl.Sigma * math.Pow(m2/s, pl.Power)
}

// New returns the model with the given name. Recognized names are
// "Constant" and "PowerLaw", compared case-insensitively.
func New(name string, m, sigma, power float64) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "constant", "":
		return Constant{M: m, Sigma: sigma}, nil
	case "powerlaw":
		return PowerLaw{M: m, Sigma: sigma, Power: power}, nil
	}
	return nil, fmt.Errorf("unrecognized cross section model '%s'", name)
}

// Isotropic samples 2 -> 2 elastic final states of a probe with mass M and
// a massless partner, with the outgoing direction uniform over the sphere.
type Isotropic struct {
	M float64
}

// SampleFinalState returns {probe, partner} in the center-of-momentum frame
// of a collision with invariant s. The temperature is not used.
func (iso Isotropic) SampleFinalState(
	rng *rand.Rand, s, temp float64,
) ([]kinematics.FourMomentum, error) {
	m2 := iso.M * iso.M
	if !(s > m2) {
		return nil, fmt.Errorf(
			"s = %g is below the threshold M^2 = %g", s, m2,
		)
	}

	rs := math.Sqrt(s)
	p := (s - m2) / (2 * rs)

	u := distuv.Uniform{Min: -1, Max: 1, Src: rng}
	cosTheta := u.Rand()
	sinTheta := math.Sqrt(1 - cosTheta*cosTheta)
	sinPhi, cosPhi := math.Sincos(2 * math.Pi * rng.Float64())

	dir := r3.Vec{X: sinTheta * cosPhi, Y: sinTheta * sinPhi, Z: cosTheta}
	probe := kinematics.OnShell(iso.M, r3.Scale(p, dir))
	partner := kinematics.OnShell(0, r3.Scale(-p, dir))

	return []kinematics.FourMomentum{probe, partner}, nil
}
