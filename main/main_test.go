package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/hqmc/config"
	"github.com/phil-mansfield/hqmc/kinematics"
)

func TestGetModeName(t *testing.T) {
	a, b := "x", ""
	name, err := getModeName(map[string]*string{"A": &a, "B": &b})
	require.NoError(t, err)
	assert.Equal(t, "A", name)

	_, err = getModeName(map[string]*string{"A": &b, "B": &b})
	assert.Error(t, err)
	_, err = getModeName(map[string]*string{"A": &a, "B": &a})
	assert.Error(t, err)
}

func TestSpectrum(t *testing.T) {
	ps := []kinematics.FourMomentum{
		kinematics.OnShell(1, r3.Vec{}),
		kinematics.OnShell(1, r3.Vec{Z: 1}),
		kinematics.OnShell(1, r3.Vec{X: 3}),
		kinematics.OnShell(1, r3.Vec{X: 3}),
	}
	es, ns := spectrum(1, ps, 4)
	require.Len(t, es, 4)

	dE := (ps[2][0] - 1) / 4
	assert.InDelta(t, 1+dE/2, es[0], 1e-12)
	total := 0.0
	for _, n := range ns {
		total += n * dE
	}
	assert.InDelta(t, 1, total, 1e-12)
	assert.InDelta(t, 0.5/dE, ns[3], 1e-12)
}

const runConfig = `[Rates]
Mass = 1.3
TableDir = %s

[Channel "Qq2Qq"]
Kind = 2to2
Degeneracy = 36
Statistics = Fermi
Sigma = 0.1
ECount = 6
EHigh = 20
ELow = 1.4
TCount = 3
TLow = 0.2
THigh = 0.4

[Transport]
Temperature = 0.3
VX = 0.7
StepSize = 0.2
Steps = 20
Particles = 30
InitialEnergy = 10
Output = %s
`

const ratesConfig = `[Rates]
Mass = 1.3
TableDir = %s

[Channel "Qq2Qq"]
Kind = 2to2
Degeneracy = 36
Sigma = 0.1
ECount = 4
EHigh = 20
ELow = 1.4
TCount = 2
TLow = 0.2
THigh = 0.4
`

func TestRatesMain(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a rate table")
	}

	tables := filepath.Join(t.TempDir(), "tables")
	wrap, err := config.ReadRatesString(
		strings.Replace(ratesConfig, "%s", tables, 1),
	)
	require.NoError(t, err)
	require.NoError(t, ratesMain(wrap, 2))
	_, err = os.Stat(filepath.Join(tables, "Qq2Qq.dat"))
	require.NoError(t, err)

	wrap, err = config.ReadRatesString(
		strings.Replace(ratesConfig, "TableDir = %s\n", "", 1),
	)
	require.NoError(t, err)
	assert.Error(t, ratesMain(wrap, 2))
}

func TestTransportMain(t *testing.T) {
	if testing.Short() {
		t.Skip("builds a rate table")
	}

	dir := t.TempDir()
	tables, out := filepath.Join(dir, "tables"), filepath.Join(dir, "out.txt")
	str := strings.Replace(runConfig, "TableDir = %s", "TableDir = "+tables, 1)
	str = strings.Replace(str, "Output = %s", "Output = "+out, 1)
	wrap, err := config.ReadString(str)
	require.NoError(t, err)

	require.NoError(t, transportMain(wrap, 2))
	first, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(first)), "\n")
	assert.Len(t, lines, 30)
	assert.Len(t, strings.Fields(lines[0]), 4)

	_, err = os.Stat(filepath.Join(tables, "Qq2Qq.dat"))
	require.NoError(t, err)

	// The second run reads the table back and gives the same output.
	require.NoError(t, transportMain(wrap, 3))
	second, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}
