/*package rates tabulates thermal scattering rates of a heavy probe and
samples the kinematics of the scatterings behind them.

An Engine is built once for a single reaction channel: New binds the cross
section and grid, Build (or ReadFile) fills the rate table, and from then on
the Engine is read-only and Rate and Sample may be called from any number of
goroutines.
*/
package rates

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"github.com/phil-mansfield/hqmc/integrate"
	"github.com/phil-mansfield/hqmc/interpolate"
)

const (
	// DefaultMaxSampleTries bounds the number of rejection sampling proposals
	// made by a single call to Sample.
	DefaultMaxSampleTries = 100000
	// DefaultVegasTries bounds the number of VEGAS runs made for a single
	// three-body grid point.
	DefaultVegasTries = 50
)

var (
	// ErrConfiguration marks invalid grids and integrals that do not
	// converge. It is fatal to table construction.
	ErrConfiguration = errors.New("rates: configuration error")
	// ErrSamplingExhausted is returned when the rejection sampler does not
	// accept a proposal within MaxSampleTries attempts.
	ErrSamplingExhausted = errors.New("rates: sampling exhausted")
	// ErrNoSampler is returned by Sample for channels without a sampler.
	ErrNoSampler = errors.New("rates: channel has no kinematic sampler")
)

// ConfigError describes a configuration problem with a named engine.
// errors.Is(err, ErrConfiguration) holds for every ConfigError.
type ConfigError struct {
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rates: engine '%s': %s", e.Name, e.Err.Error())
}

func (e *ConfigError) Unwrap() error { return e.Err }

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

// CrossSection is the interface to the physics of a reaction channel.
// The first element of args is always the Mandelstam s; the rest depend on
// Kind:
//
//	TwoToTwo:   (s, T)
//	TwoToThree: (s, T, dt) with dt in the two-body rest frame
//	ThreeToTwo: (s, T, a, b, dt), see Engine.Calculate
type CrossSection interface {
	Mass() float64
	Eval(args []float64) float64
}

// Kind is the type of reaction a channel describes.
type Kind int

const (
	TwoToTwo Kind = iota
	TwoToThree
	ThreeToTwo
	EndKind
)

var kindNames = []string{"TwoToTwo", "TwoToThree", "ThreeToTwo"}

func (k Kind) String() string {
	if k < 0 || k >= EndKind {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Dims returns the number of axes of the kind's rate table.
func (k Kind) Dims() int {
	if k == TwoToTwo {
		return 2
	}
	return 3
}

// ParseKind converts a name like "TwoToThree" or "2to3" into a Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "twototwo", "2to2":
		return TwoToTwo, nil
	case "twotothree", "2to3":
		return TwoToThree, nil
	case "threetotwo", "3to2":
		return ThreeToTwo, nil
	}
	return 0, fmt.Errorf("unrecognized reaction kind '%s'", name)
}

// DefaultAxes returns the default energy, temperature, and time-step axes
// of a kind for a probe of mass m. dt is the zero Axis for TwoToTwo.
func DefaultAxes(kind Kind, m float64) (e, t, dt interpolate.Axis) {
	switch kind {
	case TwoToTwo:
		return interpolate.Axis{Low: 1.01 * m, High: 100 * m, Count: 100},
			interpolate.Axis{Low: 0.13, High: 0.75, Count: 16},
			interpolate.Axis{}
	case TwoToThree:
		return interpolate.Axis{Low: 1.01 * m, High: 100 * m, Count: 100},
			interpolate.Axis{Low: 0.13, High: 0.75, Count: 8},
			interpolate.Axis{Low: 0.1, High: 5, Count: 10}
	case ThreeToTwo:
		return interpolate.Axis{Low: 1.01 * m, High: 50 * m, Count: 50},
			interpolate.Axis{Low: 0.13, High: 0.75, Count: 8},
			interpolate.Axis{Low: 0.1, High: 5, Count: 10}
	}
	panic(fmt.Sprintf("Unknown Kind %d.", kind))
}

// Options are the optional parameters of an Engine. Zero values select
// defaults.
type Options struct {
	// Name identifies the channel in errors and logs, and names its table
	// file.
	Name       string
	Statistics integrate.Statistics
	// Axes left as the zero Axis take the kind's default.
	E, T, Dt interpolate.Axis

	// BoundMargin scales the sampler's initial acceptance bound.
	BoundMargin    float64
	MaxSampleTries int
	VegasTries     int
	// Seed seeds the random streams used for three-body integrals.
	Seed uint64
	Log  bool
}

// Engine holds the rate table of one reaction channel.
type Engine struct {
	Name       string
	Degeneracy float64
	Statistics integrate.Statistics

	BoundMargin    float64
	MaxSampleTries int
	VegasTries     int
	Seed           uint64

	kind                 Kind
	eAxis, tAxis, dtAxis interpolate.Axis

	m    float64
	xs   CrossSection
	grid *interpolate.Grid
	log  bool

	violations atomic.Int64
}

// New creates an Engine for the given channel. The table is empty until
// Build or Load is called. opt may be nil.
func New(
	kind Kind, xs CrossSection, degeneracy float64, opt *Options,
) (*Engine, error) {
	if opt == nil {
		opt = &Options{}
	}
	e := &Engine{
		Name:           opt.Name,
		Degeneracy:     degeneracy,
		Statistics:     opt.Statistics,
		BoundMargin:    opt.BoundMargin,
		MaxSampleTries: opt.MaxSampleTries,
		VegasTries:     opt.VegasTries,
		Seed:           opt.Seed,
		kind:           kind,
		eAxis:          opt.E,
		tAxis:          opt.T,
		dtAxis:         opt.Dt,
		xs:             xs,
		log:            opt.Log,
	}
	if e.Name == "" {
		e.Name = kind.String()
	}

	if kind < 0 || kind >= EndKind {
		return nil, &ConfigError{e.Name, fmt.Errorf("unknown kind %d", kind)}
	} else if xs == nil {
		return nil, &ConfigError{e.Name, fmt.Errorf("no cross section given")}
	}

	e.m = xs.Mass()
	if !(e.m > 0) {
		return nil, &ConfigError{
			e.Name, fmt.Errorf("probe mass %g is not positive", e.m),
		}
	} else if !(degeneracy > 0) {
		return nil, &ConfigError{
			e.Name, fmt.Errorf("degeneracy %g is not positive", degeneracy),
		}
	}

	defE, defT, defDt := DefaultAxes(kind, e.m)
	if e.eAxis == (interpolate.Axis{}) {
		e.eAxis = defE
	}
	if e.tAxis == (interpolate.Axis{}) {
		e.tAxis = defT
	}
	if kind == TwoToTwo {
		e.dtAxis = interpolate.Axis{}
	} else if e.dtAxis == (interpolate.Axis{}) {
		e.dtAxis = defDt
	}

	if err := e.eAxis.Check(); err != nil {
		return nil, &ConfigError{e.Name, fmt.Errorf("energy %w", err)}
	} else if err := e.tAxis.Check(); err != nil {
		return nil, &ConfigError{e.Name, fmt.Errorf("temperature %w", err)}
	} else if kind != TwoToTwo {
		if err := e.dtAxis.Check(); err != nil {
			return nil, &ConfigError{e.Name, fmt.Errorf("time step %w", err)}
		}
	}
	if e.eAxis.Low <= e.m {
		return nil, &ConfigError{e.Name, fmt.Errorf(
			"energy axis starts at %g, at or below the probe mass %g",
			e.eAxis.Low, e.m,
		)}
	} else if e.tAxis.Low <= 0 {
		return nil, &ConfigError{e.Name, fmt.Errorf(
			"temperature axis starts at non-positive %g", e.tAxis.Low,
		)}
	}

	if e.BoundMargin <= 0 {
		e.BoundMargin = 1
	}
	if e.MaxSampleTries <= 0 {
		e.MaxSampleTries = DefaultMaxSampleTries
	}
	if e.VegasTries <= 0 {
		e.VegasTries = DefaultVegasTries
	}

	return e, nil
}

// Mass returns the probe's rest mass.
func (e *Engine) Mass() float64 { return e.m }

// Kind returns the reaction kind of the channel.
func (e *Engine) Kind() Kind { return e.kind }

// EnergyAxis, TempAxis and DtAxis return the axes of the rate table. The
// time step axis is empty for TwoToTwo engines. The axes are fixed by New.
func (e *Engine) EnergyAxis() interpolate.Axis { return e.eAxis }
func (e *Engine) TempAxis() interpolate.Axis { return e.tAxis }
func (e *Engine) DtAxis() interpolate.Axis { return e.dtAxis }

// Dims returns the number of points along each axis of the rate table.
func (e *Engine) Dims() []int {
	if e.kind == TwoToTwo {
		return []int{e.eAxis.Count, e.tAxis.Count}
	}
	return []int{e.eAxis.Count, e.tAxis.Count, e.dtAxis.Count}
}

// Built reports whether the rate table has been filled.
func (e *Engine) Built() bool { return e.grid != nil }

// Table returns the rate table, or nil if it has not been built.
func (e *Engine) Table() *interpolate.Grid { return e.grid }

// BoundViolations returns the number of times the sampler found a proposal
// above its acceptance bound and had to raise the bound.
func (e *Engine) BoundViolations() int64 { return e.violations.Load() }

// Load installs a flat, row-major rate table (energy, then temperature,
// then time step). The Engine keeps vals.
func (e *Engine) Load(vals []float64) error {
	dims := e.Dims()
	n := 1
	for _, d := range dims {
		n *= d
	}
	if len(vals) != n {
		return &ConfigError{e.Name, fmt.Errorf(
			"table has %d values, but the grid %v needs %d", len(vals), dims, n,
		)}
	}
	for i, v := range vals {
		if math.IsNaN(v) || v < 0 {
			return &ConfigError{e.Name, fmt.Errorf(
				"table value %d is %g, but rates must be non-negative", i, v,
			)}
		}
	}

	e.grid = interpolate.NewGridFrom(vals, dims...)
	return nil
}

// Rate returns the interpolated rate at the given energy, temperature, and
// time step. Coordinates outside the grid are clamped to it, and dt is
// ignored by TwoToTwo engines.
//
// Rate panics if the table has not been built.
func (e *Engine) Rate(e1, temp, dt float64) float64 {
	if e.grid == nil {
		panic(fmt.Sprintf("Rate called on engine '%s' before Build.", e.Name))
	}
	u, v := e.eAxis.Locate(e1), e.tAxis.Locate(temp)
	if e.kind == TwoToTwo {
		return e.grid.Interpolate(u, v)
	}
	return e.grid.Interpolate(u, v, e.dtAxis.Locate(dt))
}
