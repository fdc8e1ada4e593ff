/*package transport moves a heavy probe through a thermal medium one time
step at a time. Each step decides from tabulated rates whether the probe
scatters and, if it does, samples the collision and carries the outgoing
momentum back to the lab frame through the cell and center-of-momentum
frames.
*/
package transport

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"sync/atomic"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/hqmc/kinematics"
	"github.com/phil-mansfield/hqmc/rates"
)

const (
	// DefaultProbabilityWarning is the per-step interaction probability
	// above which the time step is reported as too coarse.
	DefaultProbabilityWarning = 0.15
	// massShellTol is the relative tolerance on E^2 - p^2 = M^2.
	massShellTol = 1e-6
)

// ErrInvariantViolation is returned when an outgoing momentum is off the
// mass shell. It indicates a bug in the frame transformations or in a
// final state sampler.
var ErrInvariantViolation = errors.New("transport: mass shell violated")

// FinalState samples the outgoing momenta of a collision with invariant s
// in its center-of-momentum frame, with the incoming probe along +z. The
// probe must be the first element.
type FinalState interface {
	SampleFinalState(
		rng *rand.Rand, s, temp float64,
	) ([]kinematics.FourMomentum, error)
}

// Channel is one reaction the probe can undergo.
type Channel struct {
	Engine     *rates.Engine
	FinalState FinalState
}

// Cell is the state of the medium at the probe's position.
type Cell struct {
	Temp float64
	// V is the cell's velocity in the lab frame.
	V r3.Vec
}

// Result is the outcome of a step.
type Result struct {
	P kinematics.FourMomentum
	// State is NoInteraction or LabFrameResult.
	State State
	// Channel is the index of the channel that fired, or -1.
	Channel int
	// Prob is the interaction probability of the step.
	Prob float64
}

// Stepper advances probes by fixed time steps. A Stepper may be shared by
// goroutines as long as Trace is safe for concurrent use.
type Stepper struct {
	Dt float64
	// ProbabilityWarning is the interaction probability above which steps
	// are counted as too coarse and logged.
	ProbabilityWarning float64
	// Trace, if non-nil, is called with each state a step enters and the
	// probe momentum in that state's frame.
	Trace func(State, kinematics.FourMomentum)
	// Log enables a log line for every coarse step rather than only the
	// first.
	Log bool

	channels []Channel
	m        float64
	warnings atomic.Int64
}

// NewStepper creates a Stepper over the given channels. Every channel needs
// a built rate table, a kinematic sampler, and a final state sampler, and
// all channels must describe the same probe.
func NewStepper(channels []Channel, dt float64) (*Stepper, error) {
	if len(channels) == 0 {
		return nil, fmt.Errorf("transport: no channels given")
	} else if !(dt > 0) {
		return nil, fmt.Errorf("transport: time step %g is not positive", dt)
	}

	m := 0.0
	for i, ch := range channels {
		switch {
		case ch.Engine == nil:
			return nil, fmt.Errorf("transport: channel %d has no engine", i)
		case ch.FinalState == nil:
			return nil, fmt.Errorf(
				"transport: channel '%s' has no final state sampler",
				ch.Engine.Name,
			)
		case ch.Engine.Kind() == rates.ThreeToTwo:
			return nil, fmt.Errorf(
				"transport: channel '%s': %w", ch.Engine.Name, rates.ErrNoSampler,
			)
		case !ch.Engine.Built():
			return nil, fmt.Errorf(
				"transport: channel '%s' has no rate table", ch.Engine.Name,
			)
		}

		if i == 0 {
			m = ch.Engine.Mass()
		} else if math.Abs(ch.Engine.Mass()-m) > 1e-12*m {
			return nil, fmt.Errorf(
				"transport: channel '%s' has probe mass %g, but channel "+
					"'%s' has %g", ch.Engine.Name, ch.Engine.Mass(),
				channels[0].Engine.Name, m,
			)
		}
	}

	return &Stepper{
		Dt:                 dt,
		ProbabilityWarning: DefaultProbabilityWarning,
		channels:           append([]Channel(nil), channels...),
		m:                  m,
	}, nil
}

// Mass returns the probe's rest mass.
func (st *Stepper) Mass() float64 { return st.m }

// Channels returns the channels of the Stepper.
func (st *Stepper) Channels() []Channel { return st.channels }

// Warnings returns the number of steps whose interaction probability was
// above ProbabilityWarning.
func (st *Stepper) Warnings() int64 { return st.warnings.Load() }

func (st *Stepper) trace(s State, p kinematics.FourMomentum) {
	if st.Trace != nil {
		st.Trace(s, p)
	}
}

// TotalRate returns the summed rate of all channels for a probe with cell
// frame energy e1, and writes the individual rates to rs if it is non-nil.
func (st *Stepper) TotalRate(e1, temp float64, rs []float64) float64 {
	tot := 0.0
	for i, ch := range st.channels {
		r := ch.Engine.Rate(e1, temp, st.Dt)
		if rs != nil {
			rs[i] = r
		}
		tot += r
	}
	return tot
}

// Step advances the lab frame momentum p by one time step in the given
// cell. If no scattering happens, the returned momentum is p itself.
//
// Errors leave the momentum unchanged. Sampling failures wrap
// rates.ErrSamplingExhausted and may be treated as a step without a
// scattering; ErrInvariantViolation indicates a bug.
func (st *Stepper) Step(
	rng *rand.Rand, p kinematics.FourMomentum, cell Cell,
) (Result, error) {
	res := Result{P: p, State: NoInteraction, Channel: -1}
	st.trace(AtRestInLab, p)

	pCell := kinematics.Boost(p, cell.V)
	st.trace(BoostedToCell, pCell)

	rs := make([]float64, len(st.channels))
	tot := st.TotalRate(pCell[0], cell.Temp, rs)
	prob := st.Dt * tot
	res.Prob = prob
	st.trace(RateEvaluated, pCell)

	if prob > st.ProbabilityWarning {
		if n := st.warnings.Add(1); n == 1 || st.Log {
			log.Printf(
				"Interaction probability %.4g above %.4g at E = %.4g, "+
					"T = %.4g: the time step %g is too coarse.",
				prob, st.ProbabilityWarning, pCell[0], cell.Temp, st.Dt,
			)
		}
	}

	r := rng.Float64()
	if prob == 0 || r > prob {
		st.trace(NoInteraction, p)
		return res, nil
	}

	idx := selectChannel(rs, tot, r/prob)
	ch := st.channels[idx]
	st.trace(ChannelSelected, pCell)

	e1 := pCell[0]
	e2, s, err := ch.Engine.Sample(rng, e1, cell.Temp, st.Dt)
	if err != nil {
		return res, fmt.Errorf("transport: channel '%s': %w", ch.Engine.Name, err)
	}
	st.trace(PartnerSampled, pCell)

	// The probe moves along +z; the partner's polar angle follows from s.
	m2 := st.m * st.m
	p1 := math.Sqrt(math.Max(e1*e1-m2, 0))
	cosTheta2 := 0.0
	if p1 > 0 && e2 > 0 {
		cosTheta2 = (m2 + 2*e1*e2 - s) / (2 * p1 * e2)
		cosTheta2 = math.Max(-1, math.Min(1, cosTheta2))
	}
	sinTheta2 := math.Sqrt(1 - cosTheta2*cosTheta2)
	sinPhi, cosPhi := math.Sincos(2 * math.Pi * rng.Float64())

	pQ := kinematics.FourMomentum{e1, 0, 0, p1}
	p2 := kinematics.FourMomentum{
		e2, e2 * sinTheta2 * cosPhi, e2 * sinTheta2 * sinPhi, e2 * cosTheta2,
	}
	vCom := pQ.Add(p2).Velocity()
	pQCom := kinematics.Boost(pQ, vCom)
	st.trace(ComMomentum, pQCom)

	fs, err := ch.FinalState.SampleFinalState(rng, s, cell.Temp)
	if err != nil {
		return res, fmt.Errorf(
			"transport: final state of '%s': %w", ch.Engine.Name, err,
		)
	} else if len(fs) == 0 {
		return res, fmt.Errorf(
			"transport: final state of '%s' is empty", ch.Engine.Name,
		)
	}
	st.trace(CanonicalFrame, fs[0])

	alpha1, beta1 := kinematics.AlignAngles(pQCom.P())
	pNewCom := kinematics.RotateEuler(fs[0], 0, -beta1, -alpha1)
	st.trace(RotatedBack, pNewCom)

	pNewCellZ := kinematics.Boost(pNewCom, r3.Scale(-1, vCom))
	alpha, beta := kinematics.AlignAngles(pCell.P())
	pNewCell := kinematics.RotateEuler(pNewCellZ, 0, -beta, -alpha)
	st.trace(CellFrameResult, pNewCell)

	pLab := kinematics.Boost(pNewCell, r3.Scale(-1, cell.V))
	if !pLab.OnMassShell(st.m, massShellTol) {
		return res, fmt.Errorf(
			"%w: outgoing %v has m^2 = %.10g, expected %.10g",
			ErrInvariantViolation, pLab, pLab.Mass2(), m2,
		)
	}
	st.trace(LabFrameResult, pLab)

	return Result{P: pLab, State: LabFrameResult, Channel: idx, Prob: prob}, nil
}

// selectChannel returns the first channel whose cumulative share of the
// total rate reaches u, which lies in [0, 1].
func selectChannel(rs []float64, tot, u float64) int {
	acc := 0.0
	for i, r := range rs {
		acc += r / tot
		if u <= acc {
			return i
		}
	}
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] > 0 {
			return i
		}
	}
	return len(rs) - 1
}
