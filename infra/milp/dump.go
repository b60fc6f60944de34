package milp

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/kilianp07/pvopt/core/solver"
)

// Dump writes a readable listing of the model: objective, rows, fixes and
// non-default bounds.
func (e *Engine) Dump(w io.Writer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.freed {
		return solver.ErrFreed
	}
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "/* %d columns, %d rows */\n", e.ncols, len(e.rows))

	dir := "min"
	if e.direction == solver.Max {
		dir = "max"
	}
	objCols := make([]int, 0, len(e.obj))
	for j := range e.obj {
		objCols = append(objCols, j)
	}
	sort.Ints(objCols)
	objVals := make([]float64, len(objCols))
	for i, j := range objCols {
		objVals[i] = e.obj[j]
	}
	fmt.Fprintf(bw, "%s: %s;\n", dir, linear(objCols, objVals))

	for i, r := range e.rows {
		fmt.Fprintf(bw, "R%d: %s %s %s;\n", i+1, linear(r.idx, r.val), r.sense, num(r.rhs))
	}

	fixed := make([]int, 0, len(e.fixed))
	for j := range e.fixed {
		fixed = append(fixed, j)
	}
	sort.Ints(fixed)
	for _, j := range fixed {
		fmt.Fprintf(bw, "C%d = %s;\n", j+1, num(e.fixed[j]))
	}

	var bins []string
	for j := 0; j < e.ncols; j++ {
		if e.binary[j] {
			bins = append(bins, "C"+strconv.Itoa(j+1))
			if e.lb[j] != 0 || e.ub[j] != 1 {
				fmt.Fprintf(bw, "%s <= C%d <= %s;\n", num(e.lb[j]), j+1, num(e.ub[j]))
			}
			continue
		}
		if e.lb[j] != 0 || !math.IsInf(e.ub[j], 1) {
			fmt.Fprintf(bw, "%s <= C%d <= %s;\n", num(e.lb[j]), j+1, num(e.ub[j]))
		}
	}
	if len(bins) > 0 {
		fmt.Fprint(bw, "bin ")
		for i, b := range bins {
			if i > 0 {
				fmt.Fprint(bw, ",")
			}
			fmt.Fprint(bw, b)
		}
		fmt.Fprintln(bw, ";")
	}
	return bw.Flush()
}

func linear(cols []int, vals []float64) string {
	if len(cols) == 0 {
		return "0"
	}
	var out []byte
	for i, j := range cols {
		v := vals[i]
		switch {
		case i == 0 && v < 0:
			out = append(out, '-')
		case i > 0 && v < 0:
			out = append(out, " - "...)
		case i > 0:
			out = append(out, " + "...)
		}
		if a := math.Abs(v); a != 1 {
			out = append(out, num(a)...)
			out = append(out, ' ')
		}
		out = append(out, 'C')
		out = strconv.AppendInt(out, int64(j+1), 10)
	}
	return string(out)
}

func num(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
