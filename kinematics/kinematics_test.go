package kinematics

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"
)

func momEpsEq(p, q FourMomentum, eps float64) bool {
	for i := 0; i < 4; i++ {
		diff := p[i] - q[i]
		if diff > eps || diff < -eps {
			return false
		}
	}
	return true
}

func TestRotateEuler(t *testing.T) {
	eps := 1e-12
	table := []struct {
		alpha, beta, gamma float64
		start, end         FourMomentum
	}{
		{0, 0, 0, FourMomentum{5, 1, 2, 3}, FourMomentum{5, 1, 2, 3}},
		{math.Pi / 2, 0, 0, FourMomentum{1, 1, 0, 0}, FourMomentum{1, 0, -1, 0}},
		{0, math.Pi / 2, 0, FourMomentum{1, 0, 1, 0}, FourMomentum{1, 0, 0, -1}},
		{0, 0, math.Pi / 2, FourMomentum{1, 0, 1, 0}, FourMomentum{1, 1, 0, 0}},
		{math.Pi, math.Pi, 0, FourMomentum{2, 0, 0, 1}, FourMomentum{2, 0, 0, -1}},
	}

	for i, test := range table {
		p := RotateEuler(test.start, test.alpha, test.beta, test.gamma)
		if !momEpsEq(p, test.end, eps) {
			t.Errorf(
				"%d) %v.RotateEuler(%.4g %.4g %.4g) -> %v instead of %v",
				i+1, test.start, test.alpha, test.beta, test.gamma, p, test.end,
			)
		}
	}
}

func TestAlignAngles(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for i := 0; i < 200; i++ {
		p := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		mom := OnShell(1.3, p)

		alpha, beta := AlignAngles(p)
		aligned := RotateEuler(mom, alpha, beta, 0)
		n := r3.Norm(p)
		assert.InDelta(t, 0, aligned[1], 1e-12*n)
		assert.InDelta(t, 0, aligned[2], 1e-12*n)
		assert.InDelta(t, n, aligned[3], 1e-12*n)

		back := RotateEuler(aligned, 0, -beta, -alpha)
		assert.True(t, momEpsEq(mom, back, 1e-12*mom[0]), "%v != %v", mom, back)
	}

	// Momenta already on the axes.
	for _, p := range []r3.Vec{{Z: 2}, {Z: -2}, {X: 1}, {}} {
		alpha, beta := AlignAngles(p)
		q := EulerMatrix(alpha, beta, 0).MulVec(p)
		assert.InDelta(t, r3.Norm(p), q.Z, 1e-12)
	}
}

func TestEulerInverse(t *testing.T) {
	a, b, c := 0.3, 1.1, -2.4
	m := EulerMatrix(a, b, c)
	inv := EulerMatrix(-c, -b, -a)
	v := r3.Vec{X: 0.2, Y: -1.5, Z: 3}
	w := inv.MulVec(m.MulVec(v))
	assert.InDelta(t, 0, r3.Norm(r3.Sub(v, w)), 1e-12)
	assert.InDelta(t, r3.Norm(v), r3.Norm(m.MulVec(v)), 1e-12)
}

func TestBoost(t *testing.T) {
	m := 1.3
	p := OnShell(m, r3.Vec{X: 0.5, Y: -2, Z: 9.8})

	// At rest in the frame moving with it.
	rest := Boost(p, p.Velocity())
	assert.InDelta(t, m, rest[0], 1e-12)
	assert.InDelta(t, 0, r3.Norm(rest.P()), 1e-11)

	// Along z with a known rapidity.
	q := FourMomentum{m, 0, 0, 0}
	v := r3.Vec{Z: -0.6}
	b := Boost(q, v)
	assert.InDelta(t, 1.25*m, b[0], 1e-12)
	assert.InDelta(t, 0.75*m, b[3], 1e-12)

	assert.Equal(t, p, Boost(p, r3.Vec{}))
	assert.Panics(t, func() { Boost(p, r3.Vec{X: 1}) })
}

func TestBoostRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(13, 17))
	m := 1.3
	for i := 0; i < 500; i++ {
		p := OnShell(m, r3.Vec{
			X: 10 * rng.NormFloat64(), Y: 10 * rng.NormFloat64(), Z: 10 * rng.NormFloat64(),
		})
		dir := r3.Unit(r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()})
		v := r3.Scale(0.999*rng.Float64(), dir)
		neg := r3.Scale(-1, v)

		q := Boost(p, v)
		assert.True(t, q.OnMassShell(m, 1e-9), "boosted mass^2 %g", q.Mass2())

		back := Boost(q, neg)
		assert.True(t, momEpsEq(p, back, 1e-9*(p[0]+q[0])), "%v -> %v -> %v", p, q, back)
	}
}

func TestBoostFmom(t *testing.T) {
	// fmom.Boost moves the particle by the given velocity rather than the
	// frame, so it agrees with Boost at -v.
	rng := rand.New(rand.NewPCG(19, 23))
	m := 1.3
	for i := 0; i < 200; i++ {
		p := OnShell(m, r3.Vec{
			X: 5 * rng.NormFloat64(), Y: 5 * rng.NormFloat64(), Z: 5 * rng.NormFloat64(),
		})
		dir := r3.Unit(r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()})
		v := r3.Scale(0.95*rng.Float64(), dir)

		fp := fmom.NewPxPyPzE(p[1], p[2], p[3], p[0])
		ref := fmom.Boost(&fp, r3.Scale(-1, v))
		q := Boost(p, v)

		exp := FourMomentum{ref.E(), ref.Px(), ref.Py(), ref.Pz()}
		assert.True(t, momEpsEq(exp, q, 1e-10*(p[0]+q[0])), "%v vs %v", q, exp)
		assert.InDelta(t, ref.M2(), q.Mass2(), 1e-9)
	}
}

func TestMomentum(t *testing.T) {
	p := FourMomentum{5, 3, 0, 4}
	q := FourMomentum{2, -1, 1, 0}

	assert.Equal(t, 0.0, p.Mass2())
	assert.Equal(t, FourMomentum{7, 2, 1, 4}, p.Add(q))
	v := p.Velocity()
	assert.InDelta(t, 0.6, v.X, 1e-15)
	assert.InDelta(t, 0.8, v.Z, 1e-15)
	assert.True(t, FourMomentum{2, 0, 0, 0}.OnMassShell(2, 1e-12))
	assert.False(t, FourMomentum{2, 0, 0, 1}.OnMassShell(2, 1e-6))
}
