package optimizer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/pvopt/core/model"
)

// mixedTask exercises every entity kind on a non-uniform horizon.
func mixedTask(t *testing.T) *model.Task {
	return task(t, model.TaskParams{
		ID:         7,
		Intervals:  model.NewProfile(1, 0.5, 0.5, 1, 2),
		Production: fixed(1, "pv", 0, 6, 8, 3, 0),
		Demand:     fixed(2, "home", 2, 2, 3, 4, 3),
		Contracts: []*model.Contract{
			contract(t, model.ContractParams{ID: 1, Name: "buy", Direction: model.Purchase, UnitPrice: model.NewProfile(4, 2, 2, 5, 6)}),
			contract(t, model.ContractParams{ID: 2, Name: "sell", Direction: model.Sell, UnitPrice: model.NewOffsetProfile(1, []float64{1, 1, 3})}),
		},
		Storages: []*model.Storage{storage(t, model.StorageParams{
			ID: 1, Name: "battery", MaxCharge: 4, MaxDischarge: 3, MaxCapacity: 6, InitialEnergy: 1,
		})},
		MovableDemands: []*model.MovableDemand{movable(t, 1, []float64{1, 2}, 0, 1, 4)},
	})
}

func TestPowerBalanceHolds(t *testing.T) {
	tk := mixedTask(t)
	res := solve(t, tk)
	require.Equal(t, model.SolutionFound, res.Status, res.ErrorMessage)

	md, _ := res.MovableDemand(1)
	profile := tk.MovableDemands()[0].Profile()
	for i := 0; i < tk.HorizonLength(); i++ {
		var sum float64
		for _, c := range res.ContractResults {
			v, _ := c.Power.ValueAtInterval(i)
			if c.ID == 2 {
				v = -v
			}
			sum += v
		}
		for _, s := range res.StorageResults {
			sum += s.Discharge.Values[i] - s.Charge.Values[i]
		}
		if k := i - md.StartInterval; k >= 0 && k < len(profile) {
			sum -= profile[k]
		}
		assert.InDelta(t, tk.NetDemand(i), sum, tol, "interval %d", i)
	}
}

func TestStorageEnergyRecursion(t *testing.T) {
	tk := mixedTask(t)
	res := solve(t, tk)
	require.Equal(t, model.SolutionFound, res.Status, res.ErrorMessage)

	st := tk.Storages()[0]
	s, _ := res.Storage(st.ID())
	prev := st.InitialEnergy()
	for i := 0; i < tk.HorizonLength(); i++ {
		want := prev + (s.Charge.Values[i]-s.Discharge.Values[i])*tk.Duration(i)
		assert.InDelta(t, want, s.Energy.Values[i], tol, "interval %d", i)
		assert.GreaterOrEqual(t, s.Energy.Values[i], -tol)
		assert.LessOrEqual(t, s.Energy.Values[i], st.MaxCapacity()+tol)
		prev = s.Energy.Values[i]
	}
}

func TestMovableDemandStartIsAllowed(t *testing.T) {
	tk := mixedTask(t)
	res := solve(t, tk)
	require.Equal(t, model.SolutionFound, res.Status, res.ErrorMessage)
	for _, d := range tk.MovableDemands() {
		r, ok := res.MovableDemand(d.ID())
		require.True(t, ok)
		assert.True(t, d.CanStartAt(r.StartInterval), "start %d", r.StartInterval)
	}
}

func TestSolveIsIdempotent(t *testing.T) {
	tk := mixedTask(t)
	opt := newOptimizer()
	first := opt.Solve(context.Background(), tk)
	second := opt.Solve(context.Background(), tk)
	require.Equal(t, model.SolutionFound, first.Status, first.ErrorMessage)
	assert.Equal(t, first.Status, second.Status)
	assert.InDelta(t, first.ObjectiveValue, second.ObjectiveValue, tol)
	assert.Equal(t, first.MovableDemandResults, second.MovableDemandResults)
	for i := range first.ContractResults {
		assert.Equal(t, first.ContractResults[i].Power.StartInterval, second.ContractResults[i].Power.StartInterval)
		assert.InDeltaSlice(t, first.ContractResults[i].Power.Values, second.ContractResults[i].Power.Values, tol)
	}
}

func TestSolveConcurrently(t *testing.T) {
	tk := mixedTask(t)
	opt := newOptimizer()
	want := opt.Solve(context.Background(), tk)
	require.Equal(t, model.SolutionFound, want.Status, want.ErrorMessage)

	results := make(chan *model.Result, 4)
	for i := 0; i < cap(results); i++ {
		go func() { results <- opt.Solve(context.Background(), tk) }()
	}
	for i := 0; i < cap(results); i++ {
		got := <-results
		assert.Equal(t, model.SolutionFound, got.Status)
		assert.InDelta(t, want.ObjectiveValue, got.ObjectiveValue, tol)
	}
}

// Variants starting near the end of the horizon keep only the columns that fit.
func TestMovableDemandClippedAtHorizon(t *testing.T) {
	tk := task(t, model.TaskParams{
		Intervals:  model.ConstantProfile(3, 1),
		Production: fixed(1, "pv", 0, 0, 4),
		Demand:     fixed(1, "home", 0, 0, 0),
		MovableDemands: []*model.MovableDemand{
			movable(t, 1, []float64{4, 4}, 0, 2),
		},
	})
	res := solve(t, tk)
	require.Equal(t, model.SolutionFound, res.Status, res.ErrorMessage)
	md, _ := res.MovableDemand(1)
	assert.Equal(t, 2, md.StartInterval)
}
