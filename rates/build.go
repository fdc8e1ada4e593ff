package rates

import (
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/phil-mansfield/hqmc/interpolate"
)

// Chunk is a contiguous range of temperature indices [Start, Start+Len).
type Chunk struct {
	Start, Len int
}

// Partition splits n temperature points into contiguous chunks for the
// given number of workers. Every chunk but the last has ceil(n/workers)
// points and the last takes the remainder. The number of chunks never
// exceeds n, and no chunk is empty.
func Partition(n, workers int) []Chunk {
	if n <= 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	} else if workers > n {
		workers = n
	}

	per := (n + workers - 1) / workers
	chunks := make([]Chunk, 0, workers)
	for start := 0; start < n; start += per {
		size := per
		if start+size > n {
			size = n - start
		}
		chunks = append(chunks, Chunk{start, size})
	}
	return chunks
}

// tabulator is the shared state of one Build call.
type tabulator struct {
	grid   *interpolate.Grid
	errs   []error
	failed atomic.Bool
}

// Build fills the rate table by calling Calculate at every grid point. The
// temperature axis is split across workers goroutines (runtime.NumCPU()
// if workers < 1), each of which covers the full energy and time step
// ranges of its chunk. Build blocks until all workers are done. The first
// error stops the remaining work and is returned; the table is then left
// unbuilt.
func (e *Engine) Build(workers int) error {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	chunks := Partition(e.tAxis.Count, workers)

	start := time.Now()
	tab := &tabulator{
		grid: interpolate.NewGrid(e.Dims()...),
		errs: make([]error, len(chunks)),
	}

	out := make(chan int, len(chunks))
	for id := 0; id < len(chunks)-1; id++ {
		go e.chanTabulate(id, chunks[id], tab, out)
	}
	e.chanTabulate(len(chunks)-1, chunks[len(chunks)-1], tab, out)

	for range chunks {
		<-out
	}

	for _, err := range tab.errs {
		if err != nil {
			return err
		}
	}
	e.grid = tab.grid

	if e.log {
		log.Printf(
			"Built %s table '%s' %v with %d workers in %s.",
			e.kind, e.Name, e.Dims(), len(chunks), time.Since(start),
		)
	}
	return nil
}

// chanTabulate fills the temperature chunk c and sends id on out when done.
func (e *Engine) chanTabulate(id int, c Chunk, tab *tabulator, out chan<- int) {
	tab.errs[id] = e.tabulate(c, tab)
	if tab.errs[id] != nil {
		tab.failed.Store(true)
	}
	out <- id
}

func (e *Engine) tabulate(c Chunk, tab *tabulator) error {
	nDt := 1
	if e.kind != TwoToTwo {
		nDt = e.dtAxis.Count
	}

	for i := 0; i < e.eAxis.Count; i++ {
		e1 := e.eAxis.Value(i)
		for j := c.Start; j < c.Start+c.Len; j++ {
			temp := e.tAxis.Value(j)
			for k := 0; k < nDt; k++ {
				if tab.failed.Load() {
					return nil
				}

				var (
					dt  float64
					rng *rand.Rand
				)
				if e.kind != TwoToTwo {
					dt = e.dtAxis.Value(k)
				}
				if e.kind == ThreeToTwo {
					idx := (i*e.tAxis.Count+j)*nDt + k
					rng = rand.New(rand.NewPCG(e.Seed, uint64(idx)))
				}

				r, err := e.Calculate(rng, e1, temp, dt)
				if err != nil {
					return err
				} else if math.IsNaN(r) || r < 0 {
					return &ConfigError{e.Name, fmt.Errorf(
						"rate at E1 = %g, T = %g, dt = %g is %g",
						e1, temp, dt, r,
					)}
				}

				if e.kind == TwoToTwo {
					tab.grid.Set(r, i, j)
				} else {
					tab.grid.Set(r, i, j, k)
				}
			}
		}
	}
	return nil
}
