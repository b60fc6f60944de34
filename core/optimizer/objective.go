package optimizer

import "github.com/kilianp07/pvopt/core/solver"

// objective minimizes the net contract cost: purchases add price times
// energy, sales subtract it. Storages and movable demands carry no cost.
func (b *builder) objective() error {
	c := make(map[solver.Index]float64)
	for _, cv := range b.vars.contracts {
		sign := cv.contract.Direction().Sign()
		price := cv.contract.UnitPrice()
		for i := 0; i < cv.power.length; i++ {
			p, _ := price.ValueAtIndex(i)
			c[cv.power.at(i)] = sign * p * b.task.Duration(cv.interval(i))
		}
	}
	if err := b.s.SetObjectiveFunction(c); err != nil {
		return err
	}
	b.s.SetObjectiveDirection(solver.Min)
	return nil
}
