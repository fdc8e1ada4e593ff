package interpolate

import (
	"fmt"
	"math"
)

//////////////////////////
// Axis Implementation //
//////////////////////////

// Axis is a uniformly spaced sequence of Count points running from Low to
// High, inclusive.
type Axis struct {
	Low, High float64
	Count     int
}

// NewAxis creates an axis and checks that it describes a usable grid.
func NewAxis(low, high float64, count int) (Axis, error) {
	a := Axis{Low: low, High: high, Count: count}
	return a, a.Check()
}

// Check returns an error if the axis has fewer than two points or an empty
// range.
func (a Axis) Check() error {
	if a.Count < 2 {
		return fmt.Errorf("axis has %d points, but needs at least 2", a.Count)
	} else if !(a.Low < a.High) {
		return fmt.Errorf(
			"axis range [%g, %g] is empty or inverted", a.Low, a.High,
		)
	}
	return nil
}

// Spacing returns the distance between adjacent points.
func (a Axis) Spacing() float64 {
	return (a.High - a.Low) / float64(a.Count-1)
}

// Value returns the location of the i-th point.
func (a Axis) Value(i int) float64 {
	return a.Low + float64(i)*a.Spacing()
}

// Clamp moves x into [Low, High - Spacing()]. Values at or above High are
// moved to the start of the last cell so that lookups never read past the
// final point.
func (a Axis) Clamp(x float64) float64 {
	if x < a.Low {
		return a.Low
	} else if x >= a.High {
		return a.High - a.Spacing()
	}
	return x
}

// Locate clamps x and converts it to grid units: the returned value's
// integer part is the cell index and its fractional part the offset within
// the cell.
func (a Axis) Locate(x float64) float64 {
	return (a.Clamp(x) - a.Low) / a.Spacing()
}

//////////////////////////
// Grid Implementation //
//////////////////////////

// Grid is a dense, row-major table of values over two or three axes. The
// first axis varies slowest.
type Grid struct {
	dims, strides []int
	vals          []float64
}

// NewGrid allocates a zeroed grid with the given number of points along
// each axis.
func NewGrid(dims ...int) *Grid {
	if len(dims) != 2 && len(dims) != 3 {
		panic(fmt.Sprintf("Grid must have 2 or 3 axes, but got %d.", len(dims)))
	}

	g := &Grid{
		dims:    append([]int(nil), dims...),
		strides: make([]int, len(dims)),
	}

	n := 1
	for i := len(dims) - 1; i >= 0; i-- {
		if dims[i] < 2 {
			panic(fmt.Sprintf("Axis %d of Grid has only %d points.", i, dims[i]))
		}
		g.strides[i] = n
		n *= dims[i]
	}
	g.vals = make([]float64, n)

	return g
}

// NewGridFrom wraps an existing flat, row-major buffer. len(vals) must
// equal the product of dims.
func NewGridFrom(vals []float64, dims ...int) *Grid {
	g := NewGrid(dims...)
	if len(vals) != len(g.vals) {
		panic(fmt.Sprintf(
			"len(vals) = %d, but the grid dimensions %v require %d.",
			len(vals), dims, len(g.vals),
		))
	}
	g.vals = vals
	return g
}

// Dims returns the number of points along each axis.
func (g *Grid) Dims() []int { return g.dims }

// Values returns the underlying flat buffer in row-major order.
func (g *Grid) Values() []float64 { return g.vals }

func (g *Grid) index(idx []int) int {
	if len(idx) != len(g.dims) {
		panic(fmt.Sprintf(
			"Grid has %d axes, but %d indices were given.", len(g.dims), len(idx),
		))
	}
	j := 0
	for i, k := range idx {
		if k < 0 || k >= g.dims[i] {
			panic(fmt.Sprintf(
				"Index %d out of range [0, %d) on axis %d.", k, g.dims[i], i,
			))
		}
		j += k * g.strides[i]
	}
	return j
}

// Set assigns v to the point at idx.
func (g *Grid) Set(v float64, idx ...int) { g.vals[g.index(idx)] = v }

// Get returns the value at idx.
func (g *Grid) Get(idx ...int) float64 { return g.vals[g.index(idx)] }

// Interpolate returns the multilinear blend of the 2^d points surrounding
// the given grid-unit coordinates. Coordinates are not clamped: every
// coordinate must lie in [0, n-1] for its axis, with the upper point of the
// enclosing cell in range.
func (g *Grid) Interpolate(coords ...float64) float64 {
	switch len(coords) {
	case 2:
		return g.bilinear(coords[0], coords[1])
	case 3:
		return g.trilinear(coords[0], coords[1], coords[2])
	}
	panic(fmt.Sprintf("Interpolate given %d coordinates.", len(coords)))
}

// split separates a grid-unit coordinate into a cell index and an offset.
// A coordinate sitting exactly on the last point uses the last cell.
func split(u float64, n int) (int, float64) {
	fi := math.Floor(u)
	i := int(fi)
	if i >= n-1 {
		i = n - 2
	}
	return i, u - float64(i)
}

func (g *Grid) bilinear(u, v float64) float64 {
	if len(g.dims) != 2 {
		panic("bilinear interpolation on a grid without 2 axes.")
	}
	ix, rx := split(u, g.dims[0])
	iy, ry := split(v, g.dims[1])
	sx, sy := g.strides[0], g.strides[1]

	i00 := ix*sx + iy*sy
	v00, v01 := g.vals[i00], g.vals[i00+sy]
	v10, v11 := g.vals[i00+sx], g.vals[i00+sx+sy]

	return (1-rx)*((1-ry)*v00+ry*v01) + rx*((1-ry)*v10+ry*v11)
}

func (g *Grid) trilinear(u, v, w float64) float64 {
	if len(g.dims) != 3 {
		panic("trilinear interpolation on a grid without 3 axes.")
	}
	ix, rx := split(u, g.dims[0])
	iy, ry := split(v, g.dims[1])
	iz, rz := split(w, g.dims[2])
	sx, sy, sz := g.strides[0], g.strides[1], g.strides[2]

	i000 := ix*sx + iy*sy + iz*sz

	sum := 0.0
	for dx := 0; dx < 2; dx++ {
		wx := 1 - rx
		if dx == 1 {
			wx = rx
		}
		for dy := 0; dy < 2; dy++ {
			wy := 1 - ry
			if dy == 1 {
				wy = ry
			}
			for dz := 0; dz < 2; dz++ {
				wz := 1 - rz
				if dz == 1 {
					wz = rz
				}
				sum += wx * wy * wz * g.vals[i000+dx*sx+dy*sy+dz*sz]
			}
		}
	}
	return sum
}
