package rates

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/phil-mansfield/table"
)

// Save writes the rate table to w as one value per line in row-major order
// (energy, then temperature, then time step), with no header. The axes are
// not written: a reader must construct its Engine with the same ones.
func (e *Engine) Save(w io.Writer) error {
	if e.grid == nil {
		return fmt.Errorf("rates: engine '%s' has no table to save", e.Name)
	}

	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32)
	for _, v := range e.grid.Values() {
		buf = strconv.AppendFloat(buf[:0], v, 'g', -1, 64)
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteFile saves the rate table to the named file.
func (e *Engine) WriteFile(fname string) error {
	f, err := os.Create(fname)
	if err != nil {
		return err
	}

	if err := e.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile loads a rate table written by WriteFile. The number of values
// must match the Engine's grid.
func (e *Engine) ReadFile(fname string) error {
	cols, err := table.ReadTable(fname, []int{0}, nil)
	if err != nil {
		return fmt.Errorf("rates: reading table of '%s': %w", e.Name, err)
	}
	return e.Load(cols[0])
}
