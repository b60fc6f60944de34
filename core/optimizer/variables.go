package optimizer

import (
	"fmt"

	"github.com/kilianp07/pvopt/core/model"
	"github.com/kilianp07/pvopt/core/solver"
)

// builder emits one task into one solver model.
type builder struct {
	task    *model.Task
	s       solver.Solver
	horizon int
	vars    layout
	columns int
	rows    int
}

func newBuilder(task *model.Task, s solver.Solver) *builder {
	return &builder{task: task, s: s, horizon: task.HorizonLength()}
}

func (b *builder) continuous(n int) (block, error) {
	if n <= 0 {
		return block{}, nil
	}
	first, err := b.s.AddVariables(n)
	if err != nil {
		return block{}, err
	}
	b.columns += n
	return block{first: first, length: n}, nil
}

func (b *builder) binary(n int) (block, error) {
	if n <= 0 {
		return block{}, nil
	}
	first, err := b.s.AddBinaryVariables(n)
	if err != nil {
		return block{}, err
	}
	b.columns += n
	return block{first: first, length: n}, nil
}

// clip returns how many of length positions starting at start fit in the horizon.
func (b *builder) clip(start, length int) int {
	n := b.horizon - start
	if length < n {
		n = length
	}
	if n < 0 {
		return 0
	}
	return n
}

// allocate reserves columns for contracts, then storages, then movable
// demand variants.
func (b *builder) allocate() error {
	for _, c := range b.task.Contracts() {
		power, err := b.continuous(b.clip(c.StartInterval(), c.Length()))
		if err != nil {
			return fmt.Errorf("contract %d: %w", c.ID(), err)
		}
		b.vars.contracts = append(b.vars.contracts, contractVars{contract: c, power: power})
	}

	for _, s := range b.task.Storages() {
		sv := storageVars{storage: s}
		var err error
		if sv.charge, err = b.continuous(b.horizon); err != nil {
			return fmt.Errorf("storage %d: %w", s.ID(), err)
		}
		if sv.discharge, err = b.continuous(b.horizon); err != nil {
			return fmt.Errorf("storage %d: %w", s.ID(), err)
		}
		if sv.mode, err = b.binary(b.horizon); err != nil {
			return fmt.Errorf("storage %d: %w", s.ID(), err)
		}
		if sv.energy, err = b.continuous(b.horizon); err != nil {
			return fmt.Errorf("storage %d: %w", s.ID(), err)
		}
		b.vars.storages = append(b.vars.storages, sv)
	}

	for _, d := range b.task.MovableDemands() {
		dv := demandVars{demand: d}
		length := len(d.Profile())
		for _, start := range d.StartIntervals() {
			power, err := b.continuous(b.clip(start, length))
			if err != nil {
				return fmt.Errorf("movable demand %d: %w", d.ID(), err)
			}
			ind, err := b.binary(1)
			if err != nil {
				return fmt.Errorf("movable demand %d: %w", d.ID(), err)
			}
			dv.variants = append(dv.variants, variantVars{start: start, indicator: ind.at(0), power: power})
		}
		b.vars.demands = append(b.vars.demands, dv)
	}
	return nil
}
