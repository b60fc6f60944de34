// Package solver defines the mixed-integer programming boundary used by the
// optimizer. Any engine satisfying Solver is interchangeable.
package solver

import (
	"context"
	"errors"
)

// Index addresses a solver column. Indices are 1-based and never reused.
type Index int

// Status is the outcome of a Solve call.
type Status int

const (
	// Optimal means the relative gap target was met.
	Optimal Status = iota
	// Suboptimal means an integer solution was found before the deadline
	// but the gap target was not reached.
	Suboptimal
	// Timeout means no integer solution was found before the deadline.
	Timeout
	Infeasible
	Unbounded
	Error
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "OPTIMAL"
	case Suboptimal:
		return "SUBOPTIMAL"
	case Timeout:
		return "TIMEOUT"
	case Infeasible:
		return "INFEASIBLE"
	case Unbounded:
		return "UNBOUNDED"
	case Error:
		return "ERROR"
	default:
		return "unknown"
	}
}

// HasSolution reports whether result getters are valid after this status.
func (s Status) HasSolution() bool { return s == Optimal || s == Suboptimal }

// Direction selects minimization or maximization of the objective.
type Direction int

const (
	Min Direction = iota
	Max
)

func (d Direction) String() string {
	if d == Max {
		return "MAX"
	}
	return "MIN"
}

var (
	// ErrIndexOutOfRange is returned when a call references an unallocated column.
	ErrIndexOutOfRange = errors.New("solver: index out of range")
	// ErrNoSolution is returned by result getters when the last solve produced no solution.
	ErrNoSolution = errors.New("solver: no solution available")
	// ErrFreed is returned by any call made after Free.
	ErrFreed = errors.New("solver: model already freed")
)

// Solver is a mixed-integer linear program under construction.
//
// New columns are non-negative and unbounded above. Bounds set through
// AddLowerBounds and AddUpperBounds replace earlier values per index.
type Solver interface {
	AddVariables(n int) (Index, error)
	AddBinaryVariables(n int) (Index, error)
	FixVariables(values map[Index]float64) error

	AddEqWeightedSumConstraint(w map[Index]float64, rhs float64) error
	AddLeqWeightedSumConstraint(w map[Index]float64, rhs float64) error
	AddGeqWeightedSumConstraint(w map[Index]float64, rhs float64) error
	AddEqSumConstraint(idx []Index, rhs float64) error
	AddLeqSumConstraint(idx []Index, rhs float64) error
	AddGeqSumConstraint(idx []Index, rhs float64) error

	AddLowerBounds(b map[Index]float64) error
	AddUpperBounds(b map[Index]float64) error

	SetObjectiveFunction(c map[Index]float64) error
	SetObjectiveDirection(d Direction)
	ObjectiveDirection() Direction
	SetRelativeGap(g float64)
	// SetTimeout limits Solve to the given number of seconds. 0 disables the limit.
	SetTimeout(seconds int64)

	Solve(ctx context.Context) (Status, error)
	ObjectiveValue() (float64, error)
	// Solution returns the value of every allocated column.
	Solution() (map[Index]float64, error)
	SolutionRelativeGap() (float64, error)
	// SolutionElapsedTime is the solve duration in seconds.
	SolutionElapsedTime() (float64, error)

	// Free releases the model. It must be the last call on the instance.
	Free() error
}

// Factory creates a fresh Solver for one task.
type Factory func() (Solver, error)
