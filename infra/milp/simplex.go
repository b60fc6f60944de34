package milp

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	errInfeasible = errors.New("milp: linear relaxation is infeasible")
	errUnbounded  = errors.New("milp: linear relaxation is unbounded")
	errIterations = errors.New("milp: simplex iteration limit reached")
)

// standardLP is min c'x subject to Ax = b, 0 <= x <= u. a is nil when the
// problem has no rows. start[i] is a column with a single nonzero entry in
// row i that can open the basis for that row, or -1.
type standardLP struct {
	c     []float64
	u     []float64
	a     *mat.Dense
	b     []float64
	start []int
}

func (p standardLP) dims() (m, n int) { return len(p.b), len(p.c) }

// degenerateRun is the number of consecutive zero-length steps after which
// pricing falls back to Bland's rule until progress is made again.
const degenerateRun = 50

// tableau is a dense bounded-variable simplex tableau. Row 0 holds the
// reduced costs; rows 1..m hold B^-1 A. The last column holds the current
// value of each basic variable rather than B^-1 b, so nonbasic columns
// resting at their upper bound need no extra bookkeeping in the pivots.
type tableau struct {
	t      *mat.Dense
	m, n   int // constraint rows and structural columns
	nart   int // artificial columns, placed after the structural ones
	u      []float64
	basis  []int
	upper  []bool // nonbasic column sits at its upper bound
	inBase []bool
	tol    float64
	maxItr int
}

// solveStandard runs a two-phase bounded primal simplex on p and returns
// the optimal objective and the structural solution.
func solveStandard(p standardLP, tol float64) (float64, []float64, error) {
	m, n := p.dims()
	if m == 0 {
		x := make([]float64, n)
		for j, cj := range p.c {
			if cj < -tol {
				if math.IsInf(p.u[j], 1) {
					return 0, nil, errUnbounded
				}
				x[j] = p.u[j]
			}
		}
		return floats.Dot(p.c, x), x, nil
	}

	tb := newTableau(p, tol)
	if err := tb.phaseOne(); err != nil {
		return 0, nil, err
	}
	if err := tb.phaseTwo(p.c); err != nil {
		return 0, nil, err
	}
	x := tb.values()
	return floats.Dot(p.c, x), x, nil
}

func newTableau(p standardLP, tol float64) *tableau {
	m, n := p.dims()
	tb := &tableau{m: m, n: n, nart: m, basis: make([]int, m), tol: tol}
	tb.maxItr = 50 * (m + n + m)
	if tb.maxItr < 1000 {
		tb.maxItr = 1000
	}
	width := n + m
	tb.u = make([]float64, width)
	copy(tb.u, p.u)
	for j := n; j < width; j++ {
		tb.u[j] = math.Inf(1)
	}
	tb.upper = make([]bool, width)
	tb.inBase = make([]bool, width)
	tb.t = mat.NewDense(m+1, width+1, nil)
	for i := 0; i < m; i++ {
		row := tb.t.RawRowView(i + 1)
		sign := 1.0
		if p.b[i] < 0 {
			sign = -1
		}
		for j := 0; j < n; j++ {
			row[j] = sign * p.a.At(i, j)
		}
		row[width] = sign * p.b[i]
		if s := startColumn(p, i); s >= 0 && row[s] == 1 {
			tb.basis[i] = s
		} else {
			row[n+i] = 1
			tb.basis[i] = n + i
		}
		tb.inBase[tb.basis[i]] = true
	}
	return tb
}

func startColumn(p standardLP, i int) int {
	if p.start == nil {
		return -1
	}
	return p.start[i]
}

func (tb *tableau) cols() int { return tb.n + tb.nart + 1 }

// values returns the structural solution.
func (tb *tableau) values() []float64 {
	x := make([]float64, tb.n)
	for j := range x {
		if tb.upper[j] {
			x[j] = tb.u[j]
		}
	}
	last := tb.cols() - 1
	for i, j := range tb.basis {
		if j < tb.n {
			v := tb.t.At(i+1, last)
			if v < 0 && v > -tb.tol {
				v = 0
			}
			x[j] = v
		}
	}
	return x
}

// phaseOne minimizes the sum of artificials, then drives the remaining
// artificials out of the basis and drops redundant rows. Artificials never
// re-enter once they have left.
func (tb *tableau) phaseOne() error {
	obj := tb.t.RawRowView(0)
	for j := range obj {
		obj[j] = 0
	}
	last := tb.cols() - 1
	artificial := false
	for i, j := range tb.basis {
		if j < tb.n {
			continue
		}
		artificial = true
		obj[j] = 1
		floats.AddScaled(obj[:last], -1, tb.t.RawRowView(i + 1)[:last])
	}
	if artificial {
		if err := tb.iterate(tb.n); err != nil {
			return err
		}
	}

	var rhsNorm, infeasibility float64
	for i, j := range tb.basis {
		v := tb.t.At(i+1, last)
		rhsNorm = math.Max(rhsNorm, math.Abs(v))
		if j >= tb.n {
			infeasibility += v
		}
	}
	if infeasibility > tb.tol*(1+rhsNorm) {
		return errInfeasible
	}

	keep := make([]int, 0, tb.m)
	for i := 0; i < tb.m; i++ {
		if tb.basis[i] < tb.n {
			keep = append(keep, i)
			continue
		}
		row := tb.t.RawRowView(i + 1)
		enter := -1
		for j := 0; j < tb.n; j++ {
			if !tb.inBase[j] && math.Abs(row[j]) > tb.tol {
				enter = j
				break
			}
		}
		if enter < 0 {
			continue
		}
		tb.pivot(i, enter)
		row[last] = tb.nonbasicValue(enter)
		tb.upper[enter] = false
		keep = append(keep, i)
	}
	tb.compact(keep)
	return nil
}

func (tb *tableau) nonbasicValue(j int) float64 {
	if tb.upper[j] {
		return tb.u[j]
	}
	return 0
}

// compact removes dropped rows and the artificial columns.
func (tb *tableau) compact(keep []int) {
	width := tb.n + 1
	t := mat.NewDense(len(keep)+1, width, nil)
	copyRow := func(dst, src int) {
		from := tb.t.RawRowView(src)
		to := t.RawRowView(dst)
		copy(to[:tb.n], from[:tb.n])
		to[tb.n] = from[len(from)-1]
	}
	copyRow(0, 0)
	basis := make([]int, len(keep))
	for k, i := range keep {
		copyRow(k+1, i+1)
		basis[k] = tb.basis[i]
	}
	tb.t = t
	tb.basis = basis
	tb.m = len(keep)
	tb.nart = 0
	tb.u = tb.u[:tb.n]
	tb.upper = tb.upper[:tb.n]
	tb.inBase = tb.inBase[:tb.n]
}

// phaseTwo prices out the basis against c and iterates to optimality.
func (tb *tableau) phaseTwo(c []float64) error {
	obj := tb.t.RawRowView(0)
	for j := range obj {
		obj[j] = 0
	}
	copy(obj, c)
	last := tb.cols() - 1
	for i, j := range tb.basis {
		if cj := obj[j]; cj != 0 {
			floats.AddScaled(obj[:last], -cj, tb.t.RawRowView(i + 1)[:last])
		}
	}
	return tb.iterate(tb.n)
}

// price returns the entering column among the first ncols and the
// direction it moves in: +1 up from its lower bound, -1 down from its upper
// bound. Dantzig pricing is used unless bland is set.
func (tb *tableau) price(ncols int, bland bool) (int, float64) {
	obj := tb.t.RawRowView(0)
	enter, dir, best := -1, 0.0, tb.tol
	for j := 0; j < ncols; j++ {
		if tb.inBase[j] {
			continue
		}
		d := obj[j]
		var score, s float64
		switch {
		case !tb.upper[j] && d < -tb.tol:
			score, s = -d, 1
		case tb.upper[j] && d > tb.tol:
			score, s = d, -1
		default:
			continue
		}
		if bland {
			return j, s
		}
		if score > best {
			enter, dir, best = j, s, score
		}
	}
	return enter, dir
}

// iterate runs simplex steps over the first ncols columns until no column
// prices out.
func (tb *tableau) iterate(ncols int) error {
	last := tb.cols() - 1
	degenerate := 0
	for itr := 0; ; itr++ {
		if itr > tb.maxItr {
			return errIterations
		}
		bland := degenerate >= degenerateRun
		enter, dir := tb.price(ncols, bland)
		if enter < 0 {
			return nil
		}

		// Longest step before a basic column or the entering column itself
		// hits a bound.
		step := tb.u[enter]
		leave := -1
		leaveUpper := false
		var pivotSize float64
		for i := 0; i < tb.m; i++ {
			a := tb.t.At(i+1, enter)
			if math.Abs(a) <= tb.tol {
				continue
			}
			rate := -dir * a
			v := tb.t.At(i+1, last)
			var limit float64
			var toUpper bool
			if rate < 0 {
				limit = math.Max(v, 0) / -rate
			} else {
				hi := tb.u[tb.basis[i]]
				if math.IsInf(hi, 1) {
					continue
				}
				limit = math.Max(hi-v, 0) / rate
				toUpper = true
			}
			switch {
			case limit < step-tb.tol:
			case limit <= step+tb.tol && leave >= 0:
				if bland {
					if tb.basis[i] > tb.basis[leave] {
						continue
					}
				} else if math.Abs(a) <= pivotSize {
					continue
				}
			default:
				continue
			}
			step, leave, leaveUpper, pivotSize = limit, i, toUpper, math.Abs(a)
		}
		if math.IsInf(step, 1) {
			return errUnbounded
		}
		if step > tb.tol {
			degenerate = 0
		} else {
			degenerate++
		}

		if step != 0 {
			for i := 0; i < tb.m; i++ {
				if a := tb.t.At(i+1, enter); a != 0 {
					tb.t.Set(i+1, last, tb.t.At(i+1, last)-dir*a*step)
				}
			}
		}
		entering := tb.nonbasicValue(enter) + dir*step
		if leave < 0 {
			tb.upper[enter] = !tb.upper[enter]
			continue
		}
		out := tb.basis[leave]
		tb.pivot(leave, enter)
		tb.t.Set(leave+1, last, entering)
		tb.upper[enter] = false
		tb.upper[out] = leaveUpper
	}
}

// pivot makes column c basic in row r. The value column is left to the
// caller.
func (tb *tableau) pivot(r, c int) {
	last := tb.cols() - 1
	prow := tb.t.RawRowView(r + 1)[:last]
	floats.Scale(1/prow[c], prow)
	prow[c] = 1
	rows, _ := tb.t.Dims()
	for i := 0; i < rows; i++ {
		if i == r+1 {
			continue
		}
		row := tb.t.RawRowView(i)[:last]
		if f := row[c]; f != 0 {
			floats.AddScaled(row, -f, prow)
			row[c] = 0
		}
	}
	tb.inBase[tb.basis[r]] = false
	tb.inBase[c] = true
	tb.basis[r] = c
}
