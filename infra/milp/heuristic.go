package milp

import "math"

// rounder turns a fractional relaxation into a candidate assignment of the
// binary columns.
type rounder struct {
	rows   []row
	binary []bool
	// uses lists, for each binary column, the rows it appears in and its
	// coefficient there.
	uses map[int][]use
	// choose lists rows over binary columns only with unit coefficients and
	// right-hand side 1: at most one (lessEq) or exactly one (equal) member
	// may be set.
	choose []int
	tol    float64
}

type use struct {
	row  int
	coef float64
}

func newRounder(rows []row, binary []bool, tol float64) *rounder {
	r := &rounder{rows: rows, binary: binary, uses: make(map[int][]use), tol: tol}
	for i, rw := range rows {
		allUnit := rw.sense != greaterEq && rw.rhs == 1
		for k, j := range rw.idx {
			if binary[j] {
				r.uses[j] = append(r.uses[j], use{row: i, coef: rw.val[k]})
			}
			if !binary[j] || rw.val[k] != 1 {
				allUnit = false
			}
		}
		if allUnit && len(rw.idx) > 0 {
			r.choose = append(r.choose, i)
		}
	}
	return r
}

// round picks a 0/1 value for every binary column of x. A fractional column
// takes the value that keeps each of its rows satisfied with every other
// column left at its relaxed value, the nearest one when both or neither
// do. Choice rows then keep only their largest member.
func (r *rounder) round(x []float64) []float64 {
	act := make([]float64, len(r.rows))
	for i, rw := range r.rows {
		for k, j := range rw.idx {
			act[i] += rw.val[k] * x[j]
		}
	}
	out := make([]float64, len(x))
	for j, bin := range r.binary {
		if !bin {
			continue
		}
		near := math.Round(x[j])
		if math.Abs(x[j]-near) <= r.tol {
			out[j] = near
			continue
		}
		far := 1 - near
		nearOK, farOK := r.fits(j, x[j], near, act), r.fits(j, x[j], far, act)
		if farOK && !nearOK {
			out[j] = far
		} else {
			out[j] = near
		}
	}
	for _, i := range r.choose {
		rw := r.rows[i]
		best, set := -1, 0
		for _, j := range rw.idx {
			if best < 0 || x[j] > x[best] {
				best = j
			}
			if out[j] == 1 {
				set++
			}
		}
		if set == 1 || (set == 0 && rw.sense == lessEq) {
			continue
		}
		for _, j := range rw.idx {
			out[j] = 0
		}
		out[best] = 1
	}
	return out
}

// fits reports whether moving column j from its relaxed value to v keeps
// every row it appears in satisfied.
func (r *rounder) fits(j int, from, v float64, act []float64) bool {
	for _, u := range r.uses[j] {
		rw := r.rows[u.row]
		lhs := act[u.row] + u.coef*(v-from)
		if !rw.sense.holds(lhs, rw.rhs, 1e-7*(1+math.Abs(rw.rhs))) {
			return false
		}
	}
	return true
}
