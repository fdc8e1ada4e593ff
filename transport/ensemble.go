package transport

import (
	"errors"
	"log"
	"math/rand/v2"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/phil-mansfield/hqmc/kinematics"
	"github.com/phil-mansfield/hqmc/rates"
)

// Ensemble steps many independent probes through a single cell.
type Ensemble struct {
	Stepper *Stepper
	Cell    Cell
	Steps   int
	// Workers is the number of goroutines used. Values below 1 use
	// runtime.NumCPU().
	Workers int
	// Seed seeds the per-probe random streams. Probe i uses
	// PCG(Seed, i), so results do not depend on Workers.
	Seed uint64
	Log  bool
}

// Summary is the outcome of Ensemble.Run.
type Summary struct {
	Final []kinematics.FourMomentum
	// Interactions[i] is the number of probes that scattered in step i.
	Interactions []int
	// Skipped counts steps abandoned because the kinematic sampler gave up.
	Skipped int
}

type ensembleWorkspace struct {
	interactions []int
	skipped      int
	err          error
}

// Run steps every probe of initial through en.Steps time steps. initial is
// not modified. A step whose sampler is exhausted leaves its probe
// unchanged and is counted in Summary.Skipped; any other error stops the
// run.
func (en *Ensemble) Run(initial []kinematics.FourMomentum) (*Summary, error) {
	workers := en.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	if workers > len(initial) {
		workers = len(initial)
	}

	sum := &Summary{
		Final:        append([]kinematics.FourMomentum(nil), initial...),
		Interactions: make([]int, en.Steps),
	}
	if workers == 0 {
		return sum, nil
	}

	start := time.Now()
	ws := make([]ensembleWorkspace, workers)
	var failed atomic.Bool
	out := make(chan int, workers)
	for id := 0; id < workers-1; id++ {
		go en.chanRun(id, workers, sum.Final, &ws[id], &failed, out)
	}
	en.chanRun(workers-1, workers, sum.Final, &ws[workers-1], &failed, out)
	for i := 0; i < workers; i++ {
		<-out
	}

	for i := range ws {
		if ws[i].err != nil {
			return nil, ws[i].err
		}
		sum.Skipped += ws[i].skipped
		for step, n := range ws[i].interactions {
			sum.Interactions[step] += n
		}
	}

	if en.Log {
		total := 0
		for _, n := range sum.Interactions {
			total += n
		}
		log.Printf(
			"Stepped %d probes %d times with %d workers in %s: "+
				"%d scatterings, %d skipped steps.",
			len(initial), en.Steps, workers, time.Since(start),
			total, sum.Skipped,
		)
	}
	return sum, nil
}

// chanRun steps the probes id, id + workers, id + 2*workers, ... and sends
// id on out when done.
func (en *Ensemble) chanRun(
	id, workers int, ps []kinematics.FourMomentum,
	w *ensembleWorkspace, failed *atomic.Bool, out chan<- int,
) {
	w.interactions = make([]int, en.Steps)

	for i := id; i < len(ps) && !failed.Load(); i += workers {
		rng := rand.New(rand.NewPCG(en.Seed, uint64(i)))
		p := ps[i]
		for step := 0; step < en.Steps; step++ {
			res, err := en.Stepper.Step(rng, p, en.Cell)
			if errors.Is(err, rates.ErrSamplingExhausted) {
				w.skipped++
				continue
			} else if err != nil {
				w.err = err
				failed.Store(true)
				break
			}

			if res.State == LabFrameResult {
				w.interactions[step]++
			}
			p = res.P
		}
		ps[i] = p
	}

	out <- id
}
