package optimizer

import (
	"fmt"

	"github.com/kilianp07/pvopt/core/model"
	"github.com/kilianp07/pvopt/core/solver"
)

func (b *builder) eq(w map[solver.Index]float64, rhs float64) error {
	b.rows++
	return b.s.AddEqWeightedSumConstraint(w, rhs)
}

func (b *builder) leq(w map[solver.Index]float64, rhs float64) error {
	b.rows++
	return b.s.AddLeqWeightedSumConstraint(w, rhs)
}

func (b *builder) geq(w map[solver.Index]float64, rhs float64) error {
	b.rows++
	return b.s.AddGeqWeightedSumConstraint(w, rhs)
}

// constrain emits every row and bound of the model.
func (b *builder) constrain() error {
	if err := b.powerBalance(); err != nil {
		return fmt.Errorf("power balance: %w", err)
	}
	for _, sv := range b.vars.storages {
		if err := b.storage(sv); err != nil {
			return fmt.Errorf("storage %d: %w", sv.storage.ID(), err)
		}
	}
	for _, cv := range b.vars.contracts {
		if err := b.contract(cv); err != nil {
			return fmt.Errorf("contract %d: %w", cv.contract.ID(), err)
		}
	}
	for _, dv := range b.vars.demands {
		if err := b.movableDemand(dv); err != nil {
			return fmt.Errorf("movable demand %d: %w", dv.demand.ID(), err)
		}
	}
	return nil
}

// powerBalance requires, at every interval, that purchases minus sales
// minus charge plus discharge minus shifted load equal demand minus production.
func (b *builder) powerBalance() error {
	for t := 0; t < b.horizon; t++ {
		w := make(map[solver.Index]float64)
		for _, cv := range b.vars.contracts {
			if i, ok := cv.local(t); ok {
				w[cv.power.at(i)] = cv.contract.Direction().Sign()
			}
		}
		for _, sv := range b.vars.storages {
			w[sv.charge.at(t)] = -1
			w[sv.discharge.at(t)] = 1
		}
		for _, dv := range b.vars.demands {
			for _, v := range dv.variants {
				if i, ok := v.local(t); ok {
					w[v.power.at(i)] = -1
				}
			}
		}
		if err := b.eq(w, b.task.NetDemand(t)); err != nil {
			return fmt.Errorf("interval %d: %w", t, err)
		}
	}
	return nil
}

func (b *builder) storage(sv storageVars) error {
	s := sv.storage

	// energy(t) = energy(t-1) + (charge(t) - discharge(t)) * duration(t)
	for t := 0; t < b.horizon; t++ {
		d := b.task.Duration(t)
		w := map[solver.Index]float64{
			sv.energy.at(t):    1,
			sv.charge.at(t):    -d,
			sv.discharge.at(t): d,
		}
		rhs := 0.0
		if t == 0 {
			rhs = s.InitialEnergy()
		} else {
			w[sv.energy.at(t-1)] = -1
		}
		if err := b.eq(w, rhs); err != nil {
			return fmt.Errorf("energy balance at %d: %w", t, err)
		}
	}

	m := s.BigM()
	for t := 0; t < b.horizon; t++ {
		if err := b.leq(map[solver.Index]float64{sv.charge.at(t): 1, sv.mode.at(t): -m}, 0); err != nil {
			return fmt.Errorf("charge mode at %d: %w", t, err)
		}
		if err := b.leq(map[solver.Index]float64{sv.discharge.at(t): 1, sv.mode.at(t): m}, m); err != nil {
			return fmt.Errorf("discharge mode at %d: %w", t, err)
		}
	}

	lower := make(map[solver.Index]float64)
	upper := make(map[solver.Index]float64)
	for t := 0; t < b.horizon; t++ {
		lower[sv.charge.at(t)], upper[sv.charge.at(t)] = s.ChargeBounds(t)
		lower[sv.discharge.at(t)], upper[sv.discharge.at(t)] = s.DischargeBounds(t)
		lower[sv.energy.at(t)], upper[sv.energy.at(t)] = s.EnergyBounds(t)
	}
	if err := b.s.AddLowerBounds(lower); err != nil {
		return fmt.Errorf("lower bounds: %w", err)
	}
	if err := b.s.AddUpperBounds(upper); err != nil {
		return fmt.Errorf("upper bounds: %w", err)
	}

	fixed := make(map[solver.Index]float64)
	for _, t := range s.ForbiddenCharge() {
		if sv.charge.contains(t) {
			fixed[sv.charge.at(t)] = 0
		}
	}
	for _, t := range s.ForbiddenDischarge() {
		if sv.discharge.contains(t) {
			fixed[sv.discharge.at(t)] = 0
		}
	}
	if len(fixed) > 0 {
		if err := b.s.FixVariables(fixed); err != nil {
			return fmt.Errorf("forbidden intervals: %w", err)
		}
	}
	return nil
}

func (b *builder) contract(cv contractVars) error {
	c := cv.contract
	lower := make(map[solver.Index]float64)
	for _, t := range c.MinPowerIntervals() {
		if i, ok := cv.local(t); ok {
			lower[cv.power.at(i)], _ = c.MinPower(t)
		}
	}
	upper := make(map[solver.Index]float64)
	for _, t := range c.MaxPowerIntervals() {
		if i, ok := cv.local(t); ok {
			upper[cv.power.at(i)], _ = c.MaxPower(t)
		}
	}
	if len(lower) > 0 {
		if err := b.s.AddLowerBounds(lower); err != nil {
			return fmt.Errorf("lower bounds: %w", err)
		}
	}
	if len(upper) > 0 {
		if err := b.s.AddUpperBounds(upper); err != nil {
			return fmt.Errorf("upper bounds: %w", err)
		}
	}

	for _, sc := range c.MinEnergy() {
		if err := b.geq(b.energySum(cv, sc), sc.Sum); err != nil {
			return fmt.Errorf("minimal energy [%d, %d]: %w", sc.StartInterval, sc.EndInterval, err)
		}
	}
	for _, sc := range c.MaxEnergy() {
		if err := b.leq(b.energySum(cv, sc), sc.Sum); err != nil {
			return fmt.Errorf("maximal energy [%d, %d]: %w", sc.StartInterval, sc.EndInterval, err)
		}
	}
	return nil
}

// energySum weights each power column in the inclusive range by its duration.
// Intervals past the horizon carry no column and are skipped.
func (b *builder) energySum(cv contractVars, sc model.SumConstraint) map[solver.Index]float64 {
	w := make(map[solver.Index]float64)
	for t := sc.StartInterval; t <= sc.EndInterval; t++ {
		if i, ok := cv.local(t); ok {
			w[cv.power.at(i)] = b.task.Duration(t)
		}
	}
	return w
}

// movableDemand ties each variant power trace to the load shape scaled by
// its indicator and requires exactly one indicator to be set.
func (b *builder) movableDemand(dv demandVars) error {
	profile := dv.demand.Profile()
	indicators := make(map[solver.Index]float64, len(dv.variants))
	for _, v := range dv.variants {
		for i := 0; i < v.power.length; i++ {
			w := map[solver.Index]float64{v.power.at(i): 1, v.indicator: -profile[i]}
			if err := b.eq(w, 0); err != nil {
				return fmt.Errorf("start %d position %d: %w", v.start, i, err)
			}
		}
		indicators[v.indicator] = 1
	}
	return b.eq(indicators, 1)
}
