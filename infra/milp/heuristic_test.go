package milp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pvopt/core/solver"
)

func TestRoundingKeepsIndicatorRowsSatisfied(t *testing.T) {
	// Columns: charge, discharge, mode, then three start indicators.
	rows := []row{
		{idx: []int{0, 2}, val: []float64{1, -500}, sense: lessEq, rhs: 0},
		{idx: []int{1, 2}, val: []float64{1, 500}, sense: lessEq, rhs: 500},
		{idx: []int{3, 4, 5}, val: []float64{1, 1, 1}, sense: equal, rhs: 1},
	}
	r := newRounder(rows, []bool{false, false, true, true, true, true}, 1e-6)
	require.Equal(t, []int{2}, r.choose)

	cases := []struct {
		name string
		x    []float64
		want []float64
	}{
		{"charging rounds the mode up", []float64{2, 0, 0.004, 0.2, 0.5, 0.3}, []float64{1, 0, 1, 0}},
		{"discharging rounds the mode down", []float64{0, 3, 0.994, 0.4, 0.4, 0.2}, []float64{0, 1, 0, 0}},
		{"integral values are kept", []float64{0, 0, 1, 0, 0, 1}, []float64{1, 0, 0, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out := r.round(tc.x)
			assert.Equal(t, tc.want, out[2:])
		})
	}
}

// arbitrage builds a battery trading against a two-level tariff with a small
// cycling cost, so the relaxation never charges and discharges at once.
func arbitrage(t *testing.T, periods int) *Engine {
	t.Helper()
	e := newEngine(t)
	const bigM = 500
	buy, _ := e.AddVariables(periods)
	sell, _ := e.AddVariables(periods)
	charge, _ := e.AddVariables(periods)
	discharge, _ := e.AddVariables(periods)
	energy, _ := e.AddVariables(periods)
	mode, _ := e.AddBinaryVariables(periods)

	obj := make(map[solver.Index]float64)
	upper := make(map[solver.Index]float64)
	for i := 0; i < periods; i++ {
		at := solver.Index(i)
		price := 0.1
		if i%8 >= 4 {
			price = 0.4
		}
		obj[buy+at] = price
		obj[sell+at] = -0.05
		obj[charge+at] = 0.001
		obj[discharge+at] = 0.001
		upper[charge+at] = 5
		upper[discharge+at] = 5
		upper[energy+at] = 20

		require.NoError(t, e.AddEqWeightedSumConstraint(map[solver.Index]float64{
			buy + at: 1, sell + at: -1, charge + at: -1, discharge + at: 1,
		}, 1))
		balance := map[solver.Index]float64{energy + at: 1, charge + at: -1, discharge + at: 1}
		if i > 0 {
			balance[energy+at-1] = -1
		}
		require.NoError(t, e.AddEqWeightedSumConstraint(balance, 0))
		require.NoError(t, solver.AddImplication(e, charge+at, mode+at, bigM))
		require.NoError(t, e.AddLeqWeightedSumConstraint(map[solver.Index]float64{discharge + at: 1, mode + at: bigM}, bigM))
	}
	require.NoError(t, e.AddUpperBounds(upper))
	require.NoError(t, e.SetObjectiveFunction(obj))
	e.SetRelativeGap(1e-6)
	return e
}

func TestTightRelaxationClosesWithoutBranching(t *testing.T) {
	e := arbitrage(t, 96)
	st, err := e.Solve(context.Background())
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, st)
	assert.LessOrEqual(t, e.Nodes(), 3)
	gap, err := e.SolutionRelativeGap()
	require.NoError(t, err)
	assert.LessOrEqual(t, gap, 1e-6)

	sol, err := e.Solution()
	require.NoError(t, err)
	for i := 0; i < 96; i++ {
		c, d, m := sol[solver.Index(2*96+1+i)], sol[solver.Index(3*96+1+i)], sol[solver.Index(5*96+1+i)]
		assert.Contains(t, []float64{0, 1}, m, "mode %d", i)
		if c > 1e-6 {
			assert.Equal(t, 1.0, m, "charging at %d", i)
		}
		if d > 1e-6 {
			assert.Equal(t, 0.0, m, "discharging at %d", i)
		}
	}
}

func TestBoundFlipWithoutRows(t *testing.T) {
	// Upper bounds are carried by the columns, so a box-constrained LP is
	// solved by flipping columns to their bounds.
	e := newEngine(t)
	x, _ := e.AddVariables(3)
	require.NoError(t, e.AddUpperBounds(map[solver.Index]float64{x: 2, x + 1: 3, x + 2: 4}))
	require.NoError(t, e.AddLeqSumConstraint(solver.Range(x, 3), 6))
	require.NoError(t, e.SetObjectiveFunction(map[solver.Index]float64{x: 3, x + 1: 2, x + 2: 1}))
	e.SetObjectiveDirection(solver.Max)

	st, err := e.Solve(context.Background())
	require.NoError(t, err)
	require.Equal(t, solver.Optimal, st)
	obj, _ := e.ObjectiveValue()
	assert.InDelta(t, 13, obj, 1e-9)
	sol, _ := e.Solution()
	assert.InDelta(t, 2, sol[x], 1e-9)
	assert.InDelta(t, 3, sol[x+1], 1e-9)
	assert.InDelta(t, 1, sol[x+2], 1e-9)
}
