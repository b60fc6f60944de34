package milp

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// relaxation is the standard form of one node LP together with the data
// needed to map its solution back onto the engine columns.
type relaxation struct {
	lp       standardLP
	base     []float64 // value of every column when its shifted variable is 0
	cols     []int     // engine column of each structural standard-form column
	objConst float64
}

// relax builds the LP relaxation for the given column bounds. Fixed columns
// are substituted, the remaining ones shifted to a zero lower bound with
// their width as upper bound, and inequality rows receive slack columns.
func (e *Engine) relax(c, lb, ub []float64) (*relaxation, error) {
	tol := e.cfg.Tolerance
	n := e.ncols
	base := make([]float64, n)
	pos := make([]int, n)
	var cols []int
	for j := 0; j < n; j++ {
		lo, hi := lb[j], ub[j]
		if v, ok := e.fixed[j]; ok {
			if v < lo-tol || v > hi+tol {
				return nil, errInfeasible
			}
			lo, hi = v, v
		}
		if lo > hi+tol {
			return nil, errInfeasible
		}
		base[j] = lo
		if hi-lo <= tol {
			pos[j] = -1
			continue
		}
		pos[j] = len(cols)
		cols = append(cols, j)
	}

	type denseRow struct {
		coef  map[int]float64
		sense sense
		rhs   float64
	}
	var rows []denseRow
	for _, r := range e.rows {
		rhs := r.rhs
		coef := make(map[int]float64, len(r.idx))
		for k, j := range r.idx {
			a := r.val[k]
			rhs -= a * base[j]
			if p := pos[j]; p >= 0 && a != 0 {
				coef[p] += a
			}
		}
		if len(coef) == 0 {
			slack := tol * (1 + math.Abs(r.rhs))
			if !r.sense.holds(0, rhs, slack) {
				return nil, errInfeasible
			}
			continue
		}
		rows = append(rows, denseRow{coef: coef, sense: r.sense, rhs: rhs})
	}

	k := len(cols)
	width := k
	for _, r := range rows {
		if r.sense != equal {
			width++
		}
	}
	rel := &relaxation{base: base, cols: cols}
	obj := make([]float64, width)
	for j := 0; j < n; j++ {
		rel.objConst += c[j] * base[j]
		if p := pos[j]; p >= 0 {
			obj[p] = c[j]
		}
	}
	u := make([]float64, width)
	for j := range u {
		u[j] = math.Inf(1)
	}
	for p, j := range cols {
		u[p] = ub[j] - base[j]
	}
	rel.lp = standardLP{c: obj, u: u, b: make([]float64, len(rows)), start: make([]int, len(rows))}
	if len(rows) == 0 {
		return rel, nil
	}
	a := mat.NewDense(len(rows), width, nil)
	slack := k
	for i, r := range rows {
		for p, v := range r.coef {
			a.Set(i, p, v)
		}
		rel.lp.start[i] = -1
		switch r.sense {
		case lessEq:
			a.Set(i, slack, 1)
			if r.rhs >= 0 {
				rel.lp.start[i] = slack
			}
			slack++
		case greaterEq:
			a.Set(i, slack, -1)
			if r.rhs <= 0 {
				rel.lp.start[i] = slack
			}
			slack++
		}
		rel.lp.b[i] = r.rhs
	}
	rel.lp.a = a
	return rel, nil
}

// expand maps a standard-form solution back onto all engine columns.
func (r *relaxation) expand(y []float64) []float64 {
	x := make([]float64, len(r.base))
	copy(x, r.base)
	for p, j := range r.cols {
		x[j] += y[p]
	}
	return x
}
