package optimizer

import (
	"fmt"

	"github.com/kilianp07/pvopt/core/model"
	"github.com/kilianp07/pvopt/core/solver"
)

// block is a run of consecutive solver columns owned by one entity.
// at is the only way to turn a local position into a solver index.
type block struct {
	first  solver.Index
	length int
}

func (b block) at(i int) solver.Index {
	if i < 0 || i >= b.length {
		panic(fmt.Sprintf("optimizer: block position %d outside [0, %d)", i, b.length))
	}
	return b.first + solver.Index(i)
}

func (b block) contains(i int) bool { return i >= 0 && i < b.length }

// values reads the block from a solved column map.
func (b block) values(sol map[solver.Index]float64) []float64 {
	out := make([]float64, b.length)
	for i := range out {
		out[i] = sol[b.at(i)]
	}
	return out
}

// contractVars holds the power columns of a contract. Position i is the
// absolute interval contract.StartInterval()+i.
type contractVars struct {
	contract *model.Contract
	power    block
}

// interval returns the absolute interval of local position i.
func (v contractVars) interval(i int) int { return v.contract.StartInterval() + i }

// local returns the block position of absolute interval t.
func (v contractVars) local(t int) (int, bool) {
	i := t - v.contract.StartInterval()
	return i, v.power.contains(i)
}

// storageVars holds the four horizon-long blocks of a storage.
type storageVars struct {
	storage   *model.Storage
	charge    block
	discharge block
	mode      block
	energy    block
}

// variantVars holds one candidate start of a movable demand.
type variantVars struct {
	start     int
	indicator solver.Index
	power     block
}

// local returns the block position of absolute interval t.
func (v variantVars) local(t int) (int, bool) {
	i := t - v.start
	return i, v.power.contains(i)
}

type demandVars struct {
	demand   *model.MovableDemand
	variants []variantVars
}

// layout records every allocation made for one task.
type layout struct {
	contracts []contractVars
	storages  []storageVars
	demands   []demandVars
}
