package integrate

import (
	"fmt"
	"math"
	"strings"
)

// Statistics selects the thermal occupation function of a scattering
// partner. Its value is the xi in f0(x) = 1 / (e^x + xi).
type Statistics int

const (
	BoseEinstein     Statistics = -1
	MaxwellBoltzmann Statistics = 0
	FermiDirac       Statistics = 1
)

// minX keeps f0 finite for Bose-Einstein statistics at x = 0.
const minX = 1e-9

// Occupation returns the thermal occupation of a partner with energy x
// in units of the temperature.
func Occupation(x float64, xi Statistics) float64 {
	if x < minX {
		x = minX
	}
	return 1 / (math.Exp(x) + float64(xi))
}

func (xi Statistics) String() string {
	switch xi {
	case BoseEinstein:
		return "BoseEinstein"
	case MaxwellBoltzmann:
		return "MaxwellBoltzmann"
	case FermiDirac:
		return "FermiDirac"
	}
	return fmt.Sprintf("Statistics(%d)", int(xi))
}

// ParseStatistics reads the statistics names used in configuration files.
// Matching is case insensitive and accepts the short names "Bose",
// "Boltzmann", and "Fermi".
func ParseStatistics(name string) (Statistics, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "bose", "boseeinstein":
		return BoseEinstein, nil
	case "boltzmann", "maxwellboltzmann", "":
		return MaxwellBoltzmann, nil
	case "fermi", "fermidirac":
		return FermiDirac, nil
	}
	return 0, fmt.Errorf(
		"statistics '%s' not recognized; use one of [Bose | Boltzmann | Fermi]",
		name,
	)
}
