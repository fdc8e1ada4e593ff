package xsection

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestModels(t *testing.T) {
	c := Constant{M: 1.3, Sigma: 2.5}
	assert.Equal(t, 1.3, c.Mass())
	assert.Equal(t, 2.5, c.Eval([]float64{100, 0.3}))

	pl := PowerLaw{M: 2, Sigma: 3, Power: 1}
	assert.Equal(t, 3.0, pl.Eval([]float64{4, 0.3}))
	assert.InDelta(t, 1.5, pl.Eval([]float64{8, 0.3}), 1e-12)
	assert.InDelta(t, 0.75, pl.Eval([]float64{16, 0.3, 1}), 1e-12)

	m, err := New("PowerLaw", 2, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, PowerLaw{M: 2, Sigma: 3, Power: 2}, m)
	m, err = New(" constant ", 2, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, Constant{M: 2, Sigma: 3}, m)
	_, err = New("Breit-Wigner", 2, 3, 0)
	assert.Error(t, err)
}

func TestIsotropic(t *testing.T) {
	rng := rand.New(rand.NewPCG(21, 22))
	iso := Isotropic{M: 1.3}
	s := 9.0

	sum := r3.Vec{}
	n := 20000
	for i := 0; i < n; i++ {
		fs, err := iso.SampleFinalState(rng, s, 0.3)
		require.NoError(t, err)
		require.Len(t, fs, 2)

		probe, partner := fs[0], fs[1]
		assert.InDelta(t, 1.69, probe.Mass2(), 1e-12)
		assert.InDelta(t, 0, partner.Mass2(), 1e-12)

		tot := probe.Add(partner)
		assert.InDelta(t, 3, tot[0], 1e-12)
		assert.InDelta(t, 0, r3.Norm(tot.P()), 1e-12)
		sum = r3.Add(sum, r3.Unit(probe.P()))
	}

	// Directions average to zero.
	mean := r3.Scale(1/float64(n), sum)
	assert.True(t, r3.Norm(mean) < 0.03, "mean direction %v", mean)

	_, err := iso.SampleFinalState(rng, 1.0, 0.3)
	assert.Error(t, err)
	_, err = iso.SampleFinalState(rng, math.NaN(), 0.3)
	assert.Error(t, err)
}
