package optimizer

import (
	"fmt"
	"math"

	"github.com/kilianp07/pvopt/core/model"
	"github.com/kilianp07/pvopt/core/solver"
)

// decode maps solved column values back onto per-entity results.
func (b *builder) decode(sol map[solver.Index]float64, zero float64) (*model.Result, error) {
	res := &model.Result{ID: b.task.ID(), Status: model.SolutionFound}

	for _, cv := range b.vars.contracts {
		c := cv.contract
		power := cv.power.values(sol)
		energy := make([]float64, len(power))
		cost := make([]float64, len(power))
		price := c.UnitPrice()
		for i, p := range power {
			energy[i] = p * b.task.Duration(cv.interval(i))
			unit, _ := price.ValueAtIndex(i)
			cost[i] = unit * energy[i]
		}
		res.ContractResults = append(res.ContractResults, model.ContractResult{
			ID:     c.ID(),
			Name:   c.Name(),
			Power:  model.NewOffsetProfile(c.StartInterval(), power),
			Energy: model.NewOffsetProfile(c.StartInterval(), energy),
			Cost:   model.NewOffsetProfile(c.StartInterval(), cost),
		})
	}

	for _, sv := range b.vars.storages {
		charge := sv.charge.values(sol)
		discharge := sv.discharge.values(sol)
		modes := make([]model.StorageMode, b.horizon)
		for t := range modes {
			switch {
			case charge[t] > zero:
				modes[t] = model.Charging
			case discharge[t] > zero:
				modes[t] = model.Discharging
			default:
				modes[t] = model.Disabled
			}
		}
		res.StorageResults = append(res.StorageResults, model.StorageResult{
			ID:        sv.storage.ID(),
			Name:      sv.storage.Name(),
			Charge:    model.NewProfile(charge...),
			Discharge: model.NewProfile(discharge...),
			Energy:    model.NewProfile(sv.energy.values(sol)...),
			Mode:      modes,
		})
	}

	for _, dv := range b.vars.demands {
		start := -1
		for _, v := range dv.variants {
			if math.Abs(sol[v.indicator]-1) <= zero {
				start = v.start
				break
			}
		}
		if start < 0 {
			return nil, fmt.Errorf("movable demand %d: no start interval selected", dv.demand.ID())
		}
		res.MovableDemandResults = append(res.MovableDemandResults, model.MovableDemandResult{
			ID:            dv.demand.ID(),
			Name:          dv.demand.Name(),
			StartInterval: start,
		})
	}
	return res, nil
}
