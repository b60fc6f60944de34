package dto

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilianp07/pvopt/core/model"
)

const taskJSON = `{
  "key": "req-1",
  "task": {
    "id": 5,
    "timeout_seconds": 20,
    "relative_gap": 0.01,
    "intervals": [1, 1, 0.5],
    "production": {"id": 1, "name": "pv", "profile": [0, 4, 4]},
    "demand": {"id": 1, "name": "home", "profile": [2, 2, 2]},
    "contracts": [{
      "id": 1, "name": "grid", "direction": "PURCHASE",
      "start_interval": 0, "unit_price": [3, 2, 1],
      "max_power": {"0": 10},
      "min_energy": [{"start_interval": 0, "end_interval": 1, "sum": 2}]
    }, {
      "id": 2, "name": "export", "direction": "sell",
      "start_interval": 1, "unit_price": [0.5, 0.5]
    }],
    "storages": [{
      "id": 1, "name": "battery", "max_charge": 5, "max_discharge": 5,
      "max_capacity": 10, "initial_energy": 2,
      "max_energy": {"2": 8}, "forbidden_charge": [0]
    }],
    "movable_demands": [{"id": 1, "name": "washer", "profile": [1, 1], "start_intervals": [1, 0]}]
  }
}`

func TestTaskMessageToModel(t *testing.T) {
	var msg TaskMessage
	require.NoError(t, json.Unmarshal([]byte(taskJSON), &msg))
	assert.Equal(t, "req-1", msg.Key)

	tk, err := msg.Task.ToModel()
	require.NoError(t, err)
	assert.Equal(t, int64(5), tk.ID())
	assert.Equal(t, int64(20), tk.TimeoutSeconds())
	assert.Equal(t, 3, tk.HorizonLength())
	assert.InDelta(t, 0.5, tk.Duration(2), 1e-12)
	assert.InDelta(t, 2.0, tk.NetDemand(0), 1e-12)
	assert.InDelta(t, -2.0, tk.NetDemand(1), 1e-12)

	cs := tk.Contracts()
	require.Len(t, cs, 2)
	assert.Equal(t, model.Purchase, cs[0].Direction())
	hi, ok := cs[0].MaxPower(0)
	assert.True(t, ok)
	assert.Equal(t, 10.0, hi)
	require.Len(t, cs[0].MinEnergy(), 1)
	assert.Equal(t, model.Sell, cs[1].Direction())
	assert.Equal(t, 1, cs[1].StartInterval())

	st := tk.Storages()[0]
	assert.True(t, st.ChargeForbidden(0))
	_, maxE := st.EnergyBounds(2)
	assert.Equal(t, 8.0, maxE)

	md := tk.MovableDemands()[0]
	assert.Equal(t, []int{0, 1}, md.StartIntervals())
}

func TestTaskFromYAML(t *testing.T) {
	data := `
id: 9
intervals: [1, 1]
demand: {id: 1, name: home, profile: [1, 1]}
contracts:
  - id: 1
    name: grid
    direction: PURCHASE
    unit_price: [1, 1]
    min_power: {1: 0.5}
`
	var dt Task
	require.NoError(t, yaml.Unmarshal([]byte(data), &dt))
	tk, err := dt.ToModel()
	require.NoError(t, err)
	lo, ok := tk.Contracts()[0].MinPower(1)
	assert.True(t, ok)
	assert.Equal(t, 0.5, lo)
}

func TestTaskToModelErrors(t *testing.T) {
	base := func() Task {
		return Task{ID: 1, Intervals: []float64{1, 1}}
	}
	cases := []struct {
		name   string
		mutate func(*Task)
		want   error
	}{
		{"unknown direction", func(d *Task) {
			d.Contracts = []Contract{{ID: 1, Direction: "LEASE", UnitPrice: []float64{1}}}
		}, model.ErrInvalidContract},
		{"reversed sum constraint", func(d *Task) {
			d.Contracts = []Contract{{ID: 1, Direction: "PURCHASE", UnitPrice: []float64{1, 1},
				MinEnergy: []SumConstraint{{StartInterval: 1, EndInterval: 0, Sum: 1}}}}
		}, model.ErrInvalidSumConstraint},
		{"storage over capacity", func(d *Task) {
			d.Storages = []Storage{{ID: 1, MaxCapacity: 1, InitialEnergy: 2}}
		}, model.ErrInvalidStorage},
		{"movable without starts", func(d *Task) {
			d.MovableDemands = []MovableDemand{{ID: 1, Profile: []float64{1}}}
		}, model.ErrInvalidMovableDemand},
		{"empty horizon", func(d *Task) { d.Intervals = nil }, model.ErrInvalidTask},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := base()
			tc.mutate(&d)
			_, err := d.ToModel()
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}
}

func TestFromResult(t *testing.T) {
	r := &model.Result{
		ID:             3,
		Status:         model.SolutionFound,
		ObjectiveValue: 12.5,
		ContractResults: []model.ContractResult{{
			ID: 1, Name: "grid",
			Power:  model.NewOffsetProfile(1, []float64{2, 3}),
			Energy: model.NewOffsetProfile(1, []float64{2, 3}),
			Cost:   model.NewOffsetProfile(1, []float64{4, 6}),
		}},
		StorageResults: []model.StorageResult{{
			ID: 1, Name: "battery",
			Charge:    model.NewProfile(1, 0),
			Discharge: model.NewProfile(0, 1),
			Energy:    model.NewProfile(1, 0),
			Mode:      []model.StorageMode{model.Charging, model.Discharging},
		}},
		MovableDemandResults: []model.MovableDemandResult{{ID: 1, Name: "washer", StartInterval: 2}},
	}
	out := FromResult(r)
	assert.Equal(t, "SOLUTION_FOUND", out.Status)
	assert.Equal(t, 1, out.ContractResults[0].Power.StartInterval)
	assert.Equal(t, []string{"CHARGING", "DISCHARGING"}, out.StorageResults[0].Mode)
	assert.Equal(t, 2, out.MovableDemandResults[0].StartInterval)

	data, err := json.Marshal(ResultMessage{Key: "k", Result: out})
	require.NoError(t, err)
	var back ResultMessage
	require.NoError(t, json.Unmarshal(data, &back))
	got, err := back.Result.ToModel()
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestFromResultNotFoundHasEmptyLists(t *testing.T) {
	out := FromResult(model.NotFound(4, "solver status INFEASIBLE"))
	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": 4, "status": "SOLUTION_NOT_FOUND", "objective_value": 0, "relative_gap": 0,
		"elapsed_time": 0, "error_message": "solver status INFEASIBLE",
		"contract_results": [], "storage_results": [], "movable_demand_results": []
	}`, string(data))
}

func TestResultToModelRejectsUnknownMode(t *testing.T) {
	r := Result{ID: 1, Status: "SOLUTION_FOUND", StorageResults: []StorageResult{{ID: 1, Mode: []string{"IDLE"}}}}
	_, err := r.ToModel()
	assert.Error(t, err)
}
