// Package milp provides the reference mixed-integer engine behind the
// solver.Solver contract: a branch and bound over binary columns whose LP
// relaxations are solved with a dense bounded-variable simplex, helped by a
// rounding heuristic at every fractional node.
package milp

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kilianp07/pvopt/core/factory"
	"github.com/kilianp07/pvopt/core/solver"
)

// Config tunes the engine.
type Config struct {
	// MaxNodes bounds the number of explored branch and bound nodes.
	// Reaching it behaves like a timeout.
	MaxNodes int `json:"max_nodes"`
	// Tolerance is the simplex pivot and feasibility tolerance.
	Tolerance float64 `json:"tolerance"`
	// IntegralityTolerance is the distance to 0 or 1 under which a binary
	// column counts as integral.
	IntegralityTolerance float64 `json:"integrality_tolerance"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MaxNodes <= 0 {
		c.MaxNodes = 100000
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 1e-9
	}
	if c.IntegralityTolerance <= 0 {
		c.IntegralityTolerance = 1e-6
	}
}

func init() {
	_ = solver.RegisterEngine("milp", func(conf map[string]any) (solver.Factory, error) {
		var c Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewFactory(c), nil
	})
}

// NewFactory returns a solver.Factory producing engines configured with cfg.
func NewFactory(cfg Config) solver.Factory {
	return func() (solver.Solver, error) { return New(cfg), nil }
}

type sense int

const (
	equal sense = iota
	lessEq
	greaterEq
)

func (s sense) String() string {
	switch s {
	case lessEq:
		return "<="
	case greaterEq:
		return ">="
	default:
		return "="
	}
}

// holds reports whether lhs satisfies the row against rhs within tol.
func (s sense) holds(lhs, rhs, tol float64) bool {
	switch s {
	case lessEq:
		return lhs <= rhs+tol
	case greaterEq:
		return lhs >= rhs-tol
	default:
		return math.Abs(lhs-rhs) <= tol
	}
}

type row struct {
	idx   []int // zero-based columns in ascending order
	val   []float64
	sense sense
	rhs   float64
}

// Engine is a single-use MILP model. It is safe for concurrent use but a
// model is meant to be built and solved by one goroutine.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	ncols  int
	binary []bool
	lb     []float64
	ub     []float64
	fixed  map[int]float64
	rows   []row
	obj    map[int]float64

	direction solver.Direction
	gap       float64
	timeout   int64

	status   solver.Status
	solved   bool
	solution []float64
	value    float64
	achieved float64
	elapsed  float64
	nodes    int

	freed bool
}

var _ solver.Solver = (*Engine)(nil)

// New returns an empty model.
func New(cfg Config) *Engine {
	cfg.SetDefaults()
	return &Engine{
		cfg:    cfg,
		fixed:  make(map[int]float64),
		obj:    make(map[int]float64),
		status: solver.Error,
	}
}

func (e *Engine) addColumns(n int, binary bool) (solver.Index, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.freed {
		return 0, solver.ErrFreed
	}
	if n < 0 {
		return 0, fmt.Errorf("milp: cannot add %d columns", n)
	}
	first := solver.Index(e.ncols + 1)
	hi := math.Inf(1)
	if binary {
		hi = 1
	}
	for i := 0; i < n; i++ {
		e.binary = append(e.binary, binary)
		e.lb = append(e.lb, 0)
		e.ub = append(e.ub, hi)
	}
	e.ncols += n
	e.invalidate()
	return first, nil
}

// AddVariables appends n non-negative continuous columns.
func (e *Engine) AddVariables(n int) (solver.Index, error) { return e.addColumns(n, false) }

// AddBinaryVariables appends n 0/1 columns.
func (e *Engine) AddBinaryVariables(n int) (solver.Index, error) { return e.addColumns(n, true) }

// check validates every index against the column count and returns them
// converted to zero-based columns in ascending order. Callers hold mu.
func (e *Engine) check(idx []solver.Index) ([]int, error) {
	if e.freed {
		return nil, solver.ErrFreed
	}
	out := make([]int, len(idx))
	for i, ix := range idx {
		if ix < 1 || int(ix) > e.ncols {
			return nil, fmt.Errorf("%w: constraint index %d, columns %d", solver.ErrIndexOutOfRange, ix, e.ncols)
		}
		out[i] = int(ix) - 1
	}
	return out, nil
}

func (e *Engine) checkMap(m map[solver.Index]float64) ([]int, []float64, error) {
	keys := make([]solver.Index, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	cols, err := e.check(keys)
	if err != nil {
		return nil, nil, err
	}
	vals := make([]float64, len(keys))
	for i, k := range keys {
		v := m[k]
		if math.IsNaN(v) {
			return nil, nil, fmt.Errorf("milp: NaN value for index %d", k)
		}
		vals[i] = v
	}
	return cols, vals, nil
}

// FixVariables constrains each listed column to equal its value. A fix
// takes precedence over bounds and cannot be widened by them.
func (e *Engine) FixVariables(values map[solver.Index]float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cols, vals, err := e.checkMap(values)
	if err != nil {
		return err
	}
	for i, j := range cols {
		e.fixed[j] = vals[i]
	}
	e.invalidate()
	return nil
}

func (e *Engine) addRow(w map[solver.Index]float64, s sense, rhs float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cols, vals, err := e.checkMap(w)
	if err != nil {
		return err
	}
	e.rows = append(e.rows, row{idx: cols, val: vals, sense: s, rhs: rhs})
	e.invalidate()
	return nil
}

func unitWeights(idx []solver.Index) map[solver.Index]float64 {
	w := make(map[solver.Index]float64, len(idx))
	for _, i := range idx {
		w[i] += 1
	}
	return w
}

func (e *Engine) AddEqWeightedSumConstraint(w map[solver.Index]float64, rhs float64) error {
	return e.addRow(w, equal, rhs)
}

func (e *Engine) AddLeqWeightedSumConstraint(w map[solver.Index]float64, rhs float64) error {
	return e.addRow(w, lessEq, rhs)
}

func (e *Engine) AddGeqWeightedSumConstraint(w map[solver.Index]float64, rhs float64) error {
	return e.addRow(w, greaterEq, rhs)
}

func (e *Engine) AddEqSumConstraint(idx []solver.Index, rhs float64) error {
	return e.addRow(unitWeights(idx), equal, rhs)
}

func (e *Engine) AddLeqSumConstraint(idx []solver.Index, rhs float64) error {
	return e.addRow(unitWeights(idx), lessEq, rhs)
}

func (e *Engine) AddGeqSumConstraint(idx []solver.Index, rhs float64) error {
	return e.addRow(unitWeights(idx), greaterEq, rhs)
}

// AddLowerBounds replaces the lower bound of each listed column. Infinite
// lower bounds are not supported.
func (e *Engine) AddLowerBounds(b map[solver.Index]float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cols, vals, err := e.checkMap(b)
	if err != nil {
		return err
	}
	for i, v := range vals {
		if math.IsInf(v, 0) {
			return fmt.Errorf("milp: infinite lower bound for index %d", cols[i]+1)
		}
	}
	for i, j := range cols {
		e.lb[j] = vals[i]
	}
	e.invalidate()
	return nil
}

// AddUpperBounds replaces the upper bound of each listed column.
func (e *Engine) AddUpperBounds(b map[solver.Index]float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cols, vals, err := e.checkMap(b)
	if err != nil {
		return err
	}
	for i, j := range cols {
		e.ub[j] = vals[i]
	}
	e.invalidate()
	return nil
}

// SetObjectiveFunction replaces the objective. Unlisted columns get 0.
func (e *Engine) SetObjectiveFunction(c map[solver.Index]float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cols, vals, err := e.checkMap(c)
	if err != nil {
		return err
	}
	e.obj = make(map[int]float64, len(cols))
	for i, j := range cols {
		e.obj[j] = vals[i]
	}
	e.invalidate()
	return nil
}

func (e *Engine) SetObjectiveDirection(d solver.Direction) {
	e.mu.Lock()
	e.direction = d
	e.mu.Unlock()
}

func (e *Engine) ObjectiveDirection() solver.Direction {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.direction
}

func (e *Engine) SetRelativeGap(g float64) {
	e.mu.Lock()
	if g < 0 {
		g = 0
	}
	e.gap = g
	e.mu.Unlock()
}

func (e *Engine) SetTimeout(seconds int64) {
	e.mu.Lock()
	if seconds < 0 {
		seconds = 0
	}
	e.timeout = seconds
	e.mu.Unlock()
}

// invalidate drops a previous solution after the model changed. Callers hold mu.
func (e *Engine) invalidate() {
	e.solved = false
	e.solution = nil
}

func (e *Engine) result() error {
	if e.freed {
		return solver.ErrFreed
	}
	if !e.solved || !e.status.HasSolution() {
		return solver.ErrNoSolution
	}
	return nil
}

func (e *Engine) ObjectiveValue() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.result(); err != nil {
		return 0, err
	}
	return e.value, nil
}

// Solution returns every column value keyed by its 1-based index.
func (e *Engine) Solution() (map[solver.Index]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.result(); err != nil {
		return nil, err
	}
	out := make(map[solver.Index]float64, len(e.solution))
	for j, v := range e.solution {
		out[solver.Index(j+1)] = v
	}
	return out, nil
}

func (e *Engine) SolutionRelativeGap() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.result(); err != nil {
		return 0, err
	}
	return e.achieved, nil
}

func (e *Engine) SolutionElapsedTime() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.result(); err != nil {
		return 0, err
	}
	return e.elapsed, nil
}

// Nodes returns the number of branch and bound nodes explored by the last solve.
func (e *Engine) Nodes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nodes
}

// Columns returns the number of allocated columns.
func (e *Engine) Columns() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ncols
}

// Rows returns the number of registered constraint rows.
func (e *Engine) Rows() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.rows)
}

// Free releases the model. A second call returns solver.ErrFreed.
func (e *Engine) Free() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.freed {
		return solver.ErrFreed
	}
	e.freed = true
	e.rows = nil
	e.obj = nil
	e.fixed = nil
	e.solution = nil
	e.lb, e.ub, e.binary = nil, nil, nil
	return nil
}
