package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"math"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"

	plt "github.com/phil-mansfield/pyplot"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/hqmc/config"
	"github.com/phil-mansfield/hqmc/kinematics"
	"github.com/phil-mansfield/hqmc/rates"
	"github.com/phil-mansfield/hqmc/transport"
	"github.com/phil-mansfield/hqmc/xsection"
)

const (
	spectrumBins = 60
)

// FileGroup contains utility files for logging and writing profiles to.
type FileGroup struct {
	log, prof *os.File
}

// Close closes the files inside FileGroup.
func (fg *FileGroup) Close() {
	if fg.log != nil {
		err := fg.log.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}

	if fg.prof != nil {
		pprof.StopCPUProfile()
		err := fg.prof.Close()
		if err != nil {
			log.Fatal(err.Error())
		}
	}
}

func main() {
	var (
		ratesStr, transportStr string
		exampleConfig          string
		threads                int
	)
	vars := map[string]*string{
		"Rates":         &ratesStr,
		"Transport":     &transportStr,
		"ExampleConfig": &exampleConfig,
	}

	flag.IntVar(
		&threads, "Threads", runtime.NumCPU(),
		"Number of threads used. Default is the number of logical cores.",
	)
	flag.StringVar(
		&ratesStr, "Rates", "",
		"Configuration file for [Rates] mode, which only builds and writes "+
			"the rate tables.",
	)
	flag.StringVar(
		&transportStr, "Transport", "",
		"Configuration file for [Transport] mode, which builds or reads the "+
			"rate tables and then steps the probe ensemble.",
	)
	flag.StringVar(
		&exampleConfig, "ExampleConfig", "",
		"Prints an example configuration file to stdout. The only accepted "+
			"argument is 'Config'.",
	)

	flag.Parse()

	modeName, err := getModeName(vars)
	if err != nil {
		log.Fatal(err.Error())
	}

	switch modeName {
	case "Rates":
		wrap, err := config.ReadRatesFile(ratesStr)
		if err != nil {
			log.Fatal(err.Error())
		}
		fg := setupIO(&wrap.Transport)
		defer fg.Close()

		if err := ratesMain(wrap, threads); err != nil {
			log.Fatal(err.Error())
		}

	case "Transport":
		wrap, err := config.ReadFile(transportStr)
		if err != nil {
			log.Fatal(err.Error())
		}
		fg := setupIO(&wrap.Transport)
		defer fg.Close()

		if err := transportMain(wrap, threads); err != nil {
			log.Fatal(err.Error())
		}

	case "ExampleConfig":
		switch exampleConfig {
		case "Config":
			fmt.Println(config.ExampleConfigFile)
		default:
			log.Fatal(
				"Unrecognized 'ExampleConfig' argument. The only recognized " +
					"argument is 'Config'.",
			)
		}
	default:
		panic("Impossible")
	}
}

// getModeName returns the name of the mode and fails with a descriptive error
// if the user provided less or more than one mode flag.
func getModeName(vars map[string]*string) (string, error) {
	setNames := []string{}

	for name, varPtr := range vars {
		if *varPtr != "" {
			setNames = append(setNames, name)
		}
	}

	if len(setNames) == 0 {
		return "", fmt.Errorf("No flags have been set.")
	}

	if len(setNames) > 1 {
		return "", fmt.Errorf(
			"The following flags were set: %s, but hqmc "+
				"only accepts one flag at a time.",
			strings.Join(setNames, ", "),
		)
	}

	return setNames[0], nil
}

func setupIO(con *config.TransportConfig) *FileGroup {
	fg := &FileGroup{}
	var err error

	if con.ValidLogFile() {
		fg.log, err = os.Create(con.LogFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		log.SetOutput(fg.log)
	}

	if con.ValidProfileFile() {
		fg.prof, err = os.Create(con.ProfileFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		err = pprof.StartCPUProfile(fg.prof)
		if err != nil {
			log.Fatal(err.Error())
		}
	}

	return fg
}

// engines returns the rate engines of every channel. Tables found in
// TableDir are read, and the rest are built and, if TableDir is set,
// written there.
func engines(wrap *config.Wrapper, threads int) ([]*rates.Engine, error) {
	rc := &wrap.Rates
	if rc.ValidTableDir() {
		if err := os.MkdirAll(rc.TableDir, 0777); err != nil {
			return nil, err
		}
	}

	chs := wrap.Channels()
	es := make([]*rates.Engine, len(chs))
	for i, ch := range chs {
		e, err := ch.Engine(rc)
		if err != nil {
			return nil, err
		}
		es[i] = e

		if rc.ValidTableDir() {
			fname := ch.TableFile(rc)
			_, err := os.Stat(fname)
			if err == nil {
				if err := e.ReadFile(fname); err != nil {
					return nil, err
				}
				log.Printf("Read the '%s' rate table from %s.", e.Name, fname)
				continue
			} else if !errors.Is(err, fs.ErrNotExist) {
				return nil, err
			}
		}

		log.Printf(
			"Building the %v rate table of '%s' on a %v grid.",
			e.Kind(), e.Name, e.Dims(),
		)
		if err := e.Build(threads); err != nil {
			return nil, err
		}

		if rc.ValidTableDir() {
			fname := ch.TableFile(rc)
			if err := e.WriteFile(fname); err != nil {
				return nil, err
			}
			log.Printf("Wrote the '%s' rate table to %s.", e.Name, fname)
		}
	}

	return es, nil
}

// ratesMain builds every channel's table and writes it to TableDir.
func ratesMain(wrap *config.Wrapper, threads int) error {
	if !wrap.Rates.ValidTableDir() {
		return fmt.Errorf("[Rates] mode needs a valid 'TableDir' value.")
	}
	_, err := engines(wrap, threads)
	return err
}

func transportMain(wrap *config.Wrapper, threads int) error {
	tc := &wrap.Transport

	es, err := engines(wrap, threads)
	if err != nil {
		return err
	}

	chCons := wrap.Channels()
	chs := []transport.Channel{}
	for i, e := range es {
		if !chCons[i].Transportable() {
			log.Printf(
				"Channel '%s' is %v and is left out of transport.",
				e.Name, e.Kind(),
			)
			continue
		}
		chs = append(chs, transport.Channel{
			Engine: e, FinalState: xsection.Isotropic{M: e.Mass()},
		})
	}

	st, err := transport.NewStepper(chs, tc.StepSize)
	if err != nil {
		return err
	}
	st.ProbabilityWarning = tc.ProbabilityWarning
	st.Log = wrap.Rates.Log

	m := wrap.Rates.Mass
	pz := math.Sqrt(tc.InitialEnergy*tc.InitialEnergy - m*m)
	initial := make([]kinematics.FourMomentum, tc.Particles)
	for i := range initial {
		initial[i] = kinematics.OnShell(m, r3.Vec{Z: pz})
	}

	en := &transport.Ensemble{
		Stepper: st,
		Cell: transport.Cell{
			Temp: tc.Temperature, V: r3.Vec{X: tc.VX, Y: tc.VY, Z: tc.VZ},
		},
		Steps:   tc.Steps,
		Workers: threads,
		Seed:    uint64(tc.Seed),
		Log:     true,
	}
	sum, err := en.Run(initial)
	if err != nil {
		return err
	}

	if n := st.Warnings(); n > 0 {
		log.Printf(
			"%d steps had an interaction probability above %g.",
			n, st.ProbabilityWarning,
		)
	}
	for _, e := range es {
		if n := e.BoundViolations(); n > 0 {
			log.Printf("The sampler bound of '%s' was raised %d times.", e.Name, n)
		}
	}

	if err := writeMomenta(tc.Output, sum.Final); err != nil {
		return err
	}
	log.Printf("Wrote %d momenta to %s.", len(sum.Final), tc.Output)

	if tc.ValidPlotFile() {
		plotSpectrum(tc, m, sum.Final)
	}
	return nil
}

// writeMomenta writes one "E px py pz" line per probe.
func writeMomenta(fname string, ps []kinematics.FourMomentum) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, p := range ps {
		_, err := fmt.Fprintf(w, "%.10g %.10g %.10g %.10g\n", p[0], p[1], p[2], p[3])
		if err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

// spectrum bins the probe energies between m and the largest energy.
func spectrum(m float64, ps []kinematics.FourMomentum, bins int) (es, ns []float64) {
	eMax := m
	for _, p := range ps {
		eMax = math.Max(eMax, p[0])
	}
	dE := (eMax - m) / float64(bins)
	if dE == 0 {
		dE = 1
	}

	es, ns = make([]float64, bins), make([]float64, bins)
	for i := range es {
		es[i] = m + (float64(i)+0.5)*dE
	}
	for _, p := range ps {
		i := int((p[0] - m) / dE)
		if i >= bins {
			i = bins - 1
		} else if i < 0 {
			i = 0
		}
		ns[i]++
	}
	for i := range ns {
		ns[i] /= float64(len(ps)) * dE
	}
	return es, ns
}

func plotSpectrum(tc *config.TransportConfig, m float64, ps []kinematics.FourMomentum) {
	es, ns := spectrum(m, ps, spectrumBins)

	plt.Figure()
	plt.Plot(es, ns, "k", plt.LW(2))
	plt.Title(fmt.Sprintf(
		"$T$ = %.3g GeV, %d steps of %.3g GeV$^{-1}$",
		tc.Temperature, tc.Steps, tc.StepSize,
	))
	plt.XLabel(`$E$ [GeV]`, plt.FontSize(16))
	plt.YLabel(`$dN/dE$`, plt.FontSize(16))
	plt.YScale("log")
	plt.Grid(plt.Axis("y"))
	plt.SaveFig(tc.PlotFile)
	plt.Execute()

	log.Printf("Plotted the energy spectrum to %s.", tc.PlotFile)
}
