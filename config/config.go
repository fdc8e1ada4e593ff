/*package config reads the INI configuration files of the hqmc command. A
file holds one [Rates] section with settings shared by every rate table,
any number of [Channel "name"] sections, and one [Transport] section
describing the medium cell and the probe ensemble.
*/
package config

import (
	"fmt"
	"path"
	"sort"

	"gopkg.in/gcfg.v1"

	"github.com/phil-mansfield/hqmc/integrate"
	"github.com/phil-mansfield/hqmc/interpolate"
	"github.com/phil-mansfield/hqmc/rates"
	"github.com/phil-mansfield/hqmc/transport"
	"github.com/phil-mansfield/hqmc/xsection"
)

const (
	ExampleConfigFile = `[Rates]

#######################
# Required Parameters #
#######################

# Rest mass of the heavy probe in GeV.
Mass = 1.3

#######################
# Optional Parameters #
#######################

# Rate tables are written to TableDir after they are built, and read back
# from it on later runs instead of being rebuilt. Each table is named after
# its channel (e.g. tables/Qq2Qq.dat).
# TableDir = path/to/table/dir

# Scales the initial acceptance bound of the kinematic sampler. The sampler
# raises the bound on its own when it finds it too low, so there is rarely a
# reason to change this.
# BoundMargin = 1

# Proposals tried by the kinematic sampler before a step is skipped.
# MaxSampleTries = 100000

# Attempts at a VEGAS integral with an acceptable chi^2 per degree of
# freedom before a three-body rate is reported as unconverged.
# VegasTries = 50

# Seeds the random streams of the three-body integrals.
# Seed = 0

# Log = true

[Channel "Qq2Qq"]
# Each channel is one reaction the probe can undergo. The channel name
# labels log lines and names the channel's table file.

# One of [ 2to2 | 2to3 | 3to2 ]. 3to2 channels are tabulated, but cannot be
# sampled during transport.
Kind = 2to2
# Spin and color degeneracy of the thermal partner.
Degeneracy = 36
# One of [ Bose | Boltzmann | Fermi ].
Statistics = Fermi

# Cross section model, one of [ Constant | PowerLaw ]. PowerLaw falls off
# as Sigma * (M^2/s)^Power.
Model = Constant
Sigma = 0.1
# Power = 1

# Grid overrides. Axes left unset use the defaults of the channel's kind.
# ELow = 1.313
# EHigh = 130
# ECount = 100
# TLow = 0.13
# THigh = 0.75
# TCount = 16
# DtLow = 0.1
# DtHigh = 5
# DtCount = 10

[Channel "Qg2Qg"]
Kind = 2to2
Degeneracy = 16
Statistics = Bose
Model = PowerLaw
Sigma = 0.5
Power = 1

[Transport]

#######################
# Required Parameters #
#######################

# Temperature of the medium cell in GeV.
Temperature = 0.3
# Velocity of the medium cell in the lab frame, in units of c.
VX = 0.7
VY = 0
VZ = 0

# Time step in GeV^-1 and the number of steps taken.
StepSize = 0.203
Steps = 1500

# Number of probes and their initial lab frame energy. Probes start moving
# along +z.
Particles = 10000
InitialEnergy = 10

# File that the final lab frame momenta are written to, one probe per line.
Output = path/to/output.txt

#######################
# Optional Parameters #
#######################

# Interaction probability above which a time step is reported as too
# coarse.
# ProbabilityWarning = 0.15

# Seeds the per-probe random streams. Runs with the same seed give the same
# output regardless of -Threads.
# Seed = 0

# Writes a plot of the final energy spectrum.
# PlotFile = spectrum.png

# Output files which are useful for profiling and debugging.
# ProfileFile = prof.out
# LogFile = log.out`
)

// RatesConfig holds the settings shared by every channel's rate table.
type RatesConfig struct {
	// Required
	Mass float64

	// Optional
	TableDir       string
	BoundMargin    float64
	MaxSampleTries int
	VegasTries     int
	Seed           int64
	Log            bool
}

func (con *RatesConfig) ValidMass() bool {
	return con.Mass > 0
}
func (con *RatesConfig) ValidTableDir() bool {
	return con.TableDir != ""
}
func (con *RatesConfig) ValidBoundMargin() bool {
	return con.BoundMargin > 0
}
func (con *RatesConfig) ValidMaxSampleTries() bool {
	return con.MaxSampleTries > 0
}
func (con *RatesConfig) ValidVegasTries() bool {
	return con.VegasTries > 0
}

// ChannelConfig describes one reaction channel.
type ChannelConfig struct {
	// Required
	Kind       string
	Degeneracy float64
	Sigma      float64

	// Optional
	Statistics string
	Model      string
	Power      float64

	ELow, EHigh   float64
	ECount        int
	TLow, THigh   float64
	TCount        int
	DtLow, DtHigh float64
	DtCount       int

	// Optional, "undocumented"
	Name string
}

// CheckInit validates the channel and records its name.
func (ch *ChannelConfig) CheckInit(name string) error {
	if _, err := rates.ParseKind(ch.Kind); err != nil {
		return fmt.Errorf(
			"Channel '%s' needs a Kind of [2to2 | 2to3 | 3to2]: %s", name, err,
		)
	} else if ch.Degeneracy <= 0 {
		return fmt.Errorf(
			"Need to specify a positive Degeneracy for Channel '%s'.", name,
		)
	} else if ch.Sigma < 0 {
		return fmt.Errorf(
			"Channel '%s' given a negative Sigma, %g.", name, ch.Sigma,
		)
	}

	if _, err := integrate.ParseStatistics(ch.Statistics); err != nil {
		return fmt.Errorf("Channel '%s': %s", name, err)
	} else if _, err := xsection.New(ch.Model, 1, ch.Sigma, ch.Power); err != nil {
		return fmt.Errorf("Channel '%s': %s", name, err)
	}

	if ch.ECount < 0 || ch.TCount < 0 || ch.DtCount < 0 {
		return fmt.Errorf("Channel '%s' given a negative axis count.", name)
	}

	ch.Name = name
	return nil
}

func axis(low, high float64, count int) interpolate.Axis {
	if count == 0 {
		return interpolate.Axis{}
	}
	return interpolate.Axis{Low: low, High: high, Count: count}
}

// Engine creates the channel's rate engine for a probe of the given mass.
// The table is left empty.
func (ch *ChannelConfig) Engine(rc *RatesConfig) (*rates.Engine, error) {
	kind, err := rates.ParseKind(ch.Kind)
	if err != nil {
		return nil, err
	}
	stats, err := integrate.ParseStatistics(ch.Statistics)
	if err != nil {
		return nil, err
	}
	xs, err := xsection.New(ch.Model, rc.Mass, ch.Sigma, ch.Power)
	if err != nil {
		return nil, err
	}

	return rates.New(kind, xs, ch.Degeneracy, &rates.Options{
		Name:           ch.Name,
		Statistics:     stats,
		E:              axis(ch.ELow, ch.EHigh, ch.ECount),
		T:              axis(ch.TLow, ch.THigh, ch.TCount),
		Dt:             axis(ch.DtLow, ch.DtHigh, ch.DtCount),
		BoundMargin:    rc.BoundMargin,
		MaxSampleTries: rc.MaxSampleTries,
		VegasTries:     rc.VegasTries,
		Seed:           uint64(rc.Seed),
		Log:            rc.Log,
	})
}

// TableFile returns the file the channel's rate table is stored in.
func (ch *ChannelConfig) TableFile(rc *RatesConfig) string {
	return path.Join(rc.TableDir, ch.Name+".dat")
}

// TransportConfig describes the medium cell and the probe ensemble.
type TransportConfig struct {
	// Required
	Temperature   float64
	VX, VY, VZ    float64
	StepSize      float64
	Steps         int
	Particles     int
	InitialEnergy float64
	Output        string

	// Optional
	ProbabilityWarning float64
	Seed               int64
	PlotFile           string
	LogFile            string
	ProfileFile        string
}

func (con *TransportConfig) ValidTemperature() bool {
	return con.Temperature > 0
}
func (con *TransportConfig) ValidVelocity() bool {
	return con.VX*con.VX+con.VY*con.VY+con.VZ*con.VZ < 1
}
func (con *TransportConfig) ValidStepSize() bool {
	return con.StepSize > 0
}
func (con *TransportConfig) ValidSteps() bool {
	return con.Steps > 0
}
func (con *TransportConfig) ValidParticles() bool {
	return con.Particles > 0
}
func (con *TransportConfig) ValidOutput() bool {
	return con.Output != ""
}
func (con *TransportConfig) ValidProbabilityWarning() bool {
	return con.ProbabilityWarning > 0
}
func (con *TransportConfig) ValidPlotFile() bool {
	return con.PlotFile != ""
}
func (con *TransportConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *TransportConfig) ValidProfileFile() bool {
	return con.ProfileFile != ""
}

// ValidInitialEnergy reports whether probes of mass m can start with the
// configured energy.
func (con *TransportConfig) ValidInitialEnergy(m float64) bool {
	return con.InitialEnergy >= m
}

// Wrapper is the layout of a configuration file.
type Wrapper struct {
	Rates     RatesConfig
	Channel   map[string]*ChannelConfig
	Transport TransportConfig
}

// DefaultWrapper returns a Wrapper holding the defaults of every optional
// parameter.
func DefaultWrapper() *Wrapper {
	wrap := &Wrapper{}
	wrap.Rates.BoundMargin = 1
	wrap.Rates.MaxSampleTries = rates.DefaultMaxSampleTries
	wrap.Rates.VegasTries = rates.DefaultVegasTries
	wrap.Transport.ProbabilityWarning = transport.DefaultProbabilityWarning
	return wrap
}

// ReadFile reads and checks the configuration file fname for [Transport]
// mode.
func ReadFile(fname string) (*Wrapper, error) {
	return readFile(fname, (*Wrapper).Check)
}

// ReadString reads and checks a [Transport] mode configuration held in str.
func ReadString(str string) (*Wrapper, error) {
	return readString(str, (*Wrapper).Check)
}

// ReadRatesFile reads the configuration file fname for [Rates] mode. Only
// the [Rates] and [Channel] sections are checked, so [Transport] may be
// left out.
func ReadRatesFile(fname string) (*Wrapper, error) {
	return readFile(fname, (*Wrapper).CheckRates)
}

// ReadRatesString is ReadRatesFile for a configuration held in str.
func ReadRatesString(str string) (*Wrapper, error) {
	return readString(str, (*Wrapper).CheckRates)
}

func readFile(fname string, check func(*Wrapper) error) (*Wrapper, error) {
	wrap := DefaultWrapper()
	if err := gcfg.ReadFileInto(wrap, fname); err != nil {
		return nil, err
	}
	if err := check(wrap); err != nil {
		return nil, err
	}
	return wrap, nil
}

func readString(str string, check func(*Wrapper) error) (*Wrapper, error) {
	wrap := DefaultWrapper()
	if err := gcfg.ReadStringInto(wrap, str); err != nil {
		return nil, err
	}
	if err := check(wrap); err != nil {
		return nil, err
	}
	return wrap, nil
}

// CheckRates validates the [Rates] section and names the channels.
func (wrap *Wrapper) CheckRates() error {
	rc := &wrap.Rates

	if !rc.ValidMass() {
		return fmt.Errorf("Invalid/non-existent 'Mass' value.")
	} else if !rc.ValidBoundMargin() {
		return fmt.Errorf("Invalid 'BoundMargin' value.")
	} else if !rc.ValidMaxSampleTries() {
		return fmt.Errorf("Invalid 'MaxSampleTries' value.")
	} else if !rc.ValidVegasTries() {
		return fmt.Errorf("Invalid 'VegasTries' value.")
	}

	if len(wrap.Channel) == 0 {
		return fmt.Errorf("Need to specify at least one Channel.")
	}
	for name, ch := range wrap.Channel {
		if err := ch.CheckInit(name); err != nil {
			return err
		}
	}
	return nil
}

// Check validates every section and names the channels.
func (wrap *Wrapper) Check() error {
	if err := wrap.CheckRates(); err != nil {
		return err
	}
	rc, tc := &wrap.Rates, &wrap.Transport

	if !tc.ValidTemperature() {
		return fmt.Errorf("Invalid/non-existent 'Temperature' value.")
	} else if !tc.ValidVelocity() {
		return fmt.Errorf(
			"Cell velocity (%g, %g, %g) is not below the speed of light.",
			tc.VX, tc.VY, tc.VZ,
		)
	} else if !tc.ValidStepSize() {
		return fmt.Errorf("Invalid/non-existent 'StepSize' value.")
	} else if !tc.ValidSteps() {
		return fmt.Errorf("Invalid/non-existent 'Steps' value.")
	} else if !tc.ValidParticles() {
		return fmt.Errorf("Invalid/non-existent 'Particles' value.")
	} else if !tc.ValidInitialEnergy(rc.Mass) {
		return fmt.Errorf(
			"'InitialEnergy' of %g is below the probe mass %g.",
			tc.InitialEnergy, rc.Mass,
		)
	} else if !tc.ValidOutput() {
		return fmt.Errorf("Invalid/non-existent 'Output' value.")
	} else if !tc.ValidProbabilityWarning() {
		return fmt.Errorf("Invalid 'ProbabilityWarning' value.")
	}

	return nil
}

// Channels returns the channels sorted by name.
func (wrap *Wrapper) Channels() []*ChannelConfig {
	names := make([]string, 0, len(wrap.Channel))
	for name := range wrap.Channel {
		names = append(names, name)
	}
	sort.Strings(names)

	chs := make([]*ChannelConfig, len(names))
	for i, name := range names {
		chs[i] = wrap.Channel[name]
	}
	return chs
}

// Transportable reports whether a channel can be sampled during transport.
func (ch *ChannelConfig) Transportable() bool {
	kind, err := rates.ParseKind(ch.Kind)
	return err == nil && kind != rates.ThreeToTwo
}
