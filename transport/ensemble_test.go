package transport

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/hqmc/kinematics"
	"github.com/phil-mansfield/hqmc/rates"
	"github.com/phil-mansfield/hqmc/xsection"
)

func initialProbes(n int, e float64) []kinematics.FourMomentum {
	rng := rand.New(rand.NewPCG(42, 0))
	p := math.Sqrt(e*e - mass*mass)
	ps := make([]kinematics.FourMomentum, n)
	for i := range ps {
		dir := r3.Unit(r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()})
		ps[i] = kinematics.OnShell(mass, r3.Scale(p, dir))
	}
	return ps
}

func TestEnsembleWorkers(t *testing.T) {
	st, err := NewStepper([]Channel{
		{constEngine(t, rates.TwoToTwo, "Qq2Qq", 1), xsection.Isotropic{M: mass}},
	}, 0.1)
	require.NoError(t, err)

	initial := initialProbes(37, 10*mass)
	orig := append([]kinematics.FourMomentum(nil), initial...)
	cell := Cell{Temp: 0.3, V: r3.Vec{Y: 0.4}}

	var sums []*Summary
	for _, workers := range []int{1, 3, 8, 100} {
		en := &Ensemble{Stepper: st, Cell: cell, Steps: 50, Workers: workers, Seed: 7}
		sum, err := en.Run(initial)
		require.NoError(t, err)
		require.Len(t, sum.Final, len(initial))
		require.Len(t, sum.Interactions, 50)
		sums = append(sums, sum)
	}

	assert.Equal(t, orig, initial)
	for _, sum := range sums[1:] {
		assert.Equal(t, sums[0].Final, sum.Final)
		assert.Equal(t, sums[0].Interactions, sum.Interactions)
	}

	total := 0
	for _, n := range sums[0].Interactions {
		total += n
	}
	assert.InDelta(t, 0.1*37*50, total, 60)
	assert.Equal(t, 0, sums[0].Skipped)
	for _, p := range sums[0].Final {
		assert.True(t, p.OnMassShell(mass, 1e-6))
	}

	en := &Ensemble{Stepper: st, Cell: cell, Steps: 50, Workers: 2, Seed: 8}
	other, err := en.Run(initial)
	require.NoError(t, err)
	assert.NotEqual(t, sums[0].Final, other.Final)
}

func TestEnsembleNearZeroRate(t *testing.T) {
	st, err := NewStepper([]Channel{
		{constEngine(t, rates.TwoToTwo, "Qq2Qq", 1e-9), xsection.Isotropic{M: mass}},
	}, 0.01)
	require.NoError(t, err)

	e0 := 10 * mass
	initial := initialProbes(16, e0)
	en := &Ensemble{Stepper: st, Cell: Cell{Temp: 0.3}, Steps: 10000, Seed: 1}
	sum, err := en.Run(initial)
	require.NoError(t, err)

	mean := 0.0
	for _, p := range sum.Final {
		mean += p.E() / float64(len(sum.Final))
	}
	assert.InDelta(t, e0, mean, 1e-3*e0)
	assert.Equal(t, int64(0), st.Warnings())
}

func TestEnsembleErrors(t *testing.T) {
	zero := xsection.Constant{M: mass, Sigma: 0}
	e, err := rates.New(rates.TwoToTwo, zero, 1, &rates.Options{MaxSampleTries: 5})
	require.NoError(t, err)
	vals := make([]float64, 100*16)
	for i := range vals {
		vals[i] = 5
	}
	require.NoError(t, e.Load(vals))

	st, err := NewStepper([]Channel{{e, xsection.Isotropic{M: mass}}}, 0.2)
	require.NoError(t, err)
	initial := initialProbes(4, 3*mass)
	en := &Ensemble{Stepper: st, Cell: Cell{Temp: 0.3}, Steps: 3, Workers: 2}
	sum, err := en.Run(initial)
	require.NoError(t, err)
	assert.Equal(t, 12, sum.Skipped)
	assert.Equal(t, initial, sum.Final)

	st, err = NewStepper([]Channel{
		{constEngine(t, rates.TwoToTwo, "Qq2Qq", 5), offShell{}},
	}, 0.2)
	require.NoError(t, err)
	en.Stepper = st
	_, err = en.Run(initial)
	assert.True(t, errors.Is(err, ErrInvariantViolation))

	sum, err = en.Run(nil)
	require.NoError(t, err)
	assert.Len(t, sum.Final, 0)
}
