package rates

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phil-mansfield/hqmc/interpolate"
	"github.com/phil-mansfield/hqmc/xsection"
)

func TestPartition(t *testing.T) {
	table := []struct {
		n, workers int
		exp        []Chunk
	}{
		{16, 4, []Chunk{{0, 4}, {4, 4}, {8, 4}, {12, 4}}},
		{8, 3, []Chunk{{0, 3}, {3, 3}, {6, 2}}},
		{5, 2, []Chunk{{0, 3}, {3, 2}}},
		{16, 6, []Chunk{{0, 3}, {3, 3}, {6, 3}, {9, 3}, {12, 3}, {15, 1}}},
		{3, 8, []Chunk{{0, 1}, {1, 1}, {2, 1}}},
		{8, 7, []Chunk{{0, 2}, {2, 2}, {4, 2}, {6, 2}}},
		{7, 0, []Chunk{{0, 7}}},
		{0, 4, nil},
	}

	for i, test := range table {
		chunks := Partition(test.n, test.workers)
		assert.Equal(t, test.exp, chunks, "%d) Partition(%d, %d)",
			i+1, test.n, test.workers)

		total := 0
		for _, c := range chunks {
			assert.True(t, c.Len > 0)
			assert.Equal(t, total, c.Start)
			total += c.Len
		}
		assert.Equal(t, test.n, total)
	}
}

func TestBuild(t *testing.T) {
	xs := xsection.Constant{M: 1, Sigma: 1}
	e, err := New(TwoToTwo, xs, 1, smallGrid())
	require.NoError(t, err)
	require.NoError(t, e.Build(3))
	require.True(t, e.Built())

	for i := 0; i < e.eAxis.Count; i++ {
		for j := 0; j < e.tAxis.Count; j++ {
			exp, err := e.Calculate(nil, e.eAxis.Value(i), e.tAxis.Value(j), 0)
			require.NoError(t, err)
			assert.Equal(t, exp, e.Table().Get(i, j))

			// The table reproduces the grid points themselves.
			r := e.Rate(e.eAxis.Value(i), e.tAxis.Value(j), 0)
			if i < e.eAxis.Count-1 && j < e.tAxis.Count-1 {
				assert.InDelta(t, exp, r, 1e-12*exp)
			}
		}
	}

	// More workers than temperatures.
	serial, err := New(TwoToTwo, xs, 1, smallGrid())
	require.NoError(t, err)
	require.NoError(t, serial.Build(64))
	assert.Equal(t, e.Table().Values(), serial.Table().Values())
}

func TestBuildNonNegative(t *testing.T) {
	opt := smallGrid()
	opt.Dt = interpolate.Axis{Low: 0.1, High: 5, Count: 3}
	xs := xsection.PowerLaw{M: 1, Sigma: 3, Power: 1.5}
	e, err := New(TwoToThree, xs, 6, opt)
	require.NoError(t, err)
	require.NoError(t, e.Build(0))

	for _, v := range e.Table().Values() {
		assert.True(t, v > 0)
	}
	for _, e1 := range []float64{0, 1.01, 2.7, 6, 10, 30} {
		for _, temp := range []float64{0, 0.13, 0.3, 0.75, 2} {
			for _, dt := range []float64{0, 0.5, 4, 9} {
				assert.True(t, e.Rate(e1, temp, dt) >= 0)
			}
		}
	}
}

func TestBuildConvergence(t *testing.T) {
	// Finer grids approach the exact rate between grid points.
	xs := xsection.PowerLaw{M: 1, Sigma: 3, Power: 2}
	e1, temp := 2.3, 0.41

	exact, err := New(TwoToTwo, xs, 1, smallGrid())
	require.NoError(t, err)
	r, err := exact.Calculate(nil, e1, temp, 0)
	require.NoError(t, err)

	prevErr := math.Inf(1)
	for _, n := range []int{3, 9, 33} {
		e, err := New(TwoToTwo, xs, 1, &Options{
			E: interpolate.Axis{Low: 1.01, High: 10, Count: n},
			T: interpolate.Axis{Low: 0.13, High: 0.75, Count: n},
		})
		require.NoError(t, err)
		require.NoError(t, e.Build(0))

		diff := math.Abs(e.Rate(e1, temp, 0) - r)
		assert.True(t, diff < prevErr, "%d points: error %g", n, diff)
		prevErr = diff
	}
	assert.True(t, prevErr < 2e-2*r)
}

func TestBuildError(t *testing.T) {
	opt := smallGrid()
	opt.Name = "broken"
	xs := funcXS{1, func(s float64) float64 {
		if s > 10 {
			return math.NaN()
		}
		return 1
	}}
	e, err := New(TwoToTwo, xs, 1, opt)
	require.NoError(t, err)

	err = e.Build(2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConfiguration))
	assert.False(t, e.Built())

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "broken", ce.Name)
}

func TestBuildThreeToTwo(t *testing.T) {
	if testing.Short() {
		t.Skip("VEGAS table build is slow")
	}

	opt := &Options{
		E:    interpolate.Axis{Low: 1.5, High: 10, Count: 2},
		T:    interpolate.Axis{Low: 0.2, High: 0.6, Count: 2},
		Dt:   interpolate.Axis{Low: 0.1, High: 5, Count: 2},
		Seed: 42,
	}
	xs := xsection.Constant{M: 1.3, Sigma: 1}

	a, err := New(ThreeToTwo, xs, 1, opt)
	require.NoError(t, err)
	require.NoError(t, a.Build(1))
	b, err := New(ThreeToTwo, xs, 1, opt)
	require.NoError(t, err)
	require.NoError(t, b.Build(2))

	// Each grid point owns its random stream.
	assert.Equal(t, a.Table().Values(), b.Table().Values())
	for _, v := range a.Table().Values() {
		assert.True(t, v > 0)
	}
}
