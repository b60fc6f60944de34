package model

import (
	"fmt"
	"strings"
)

// OptimizationStatus is the outcome reported to the caller.
type OptimizationStatus int

const (
	SolutionNotFound OptimizationStatus = iota
	SolutionFound
)

func (s OptimizationStatus) String() string {
	switch s {
	case SolutionFound:
		return "SOLUTION_FOUND"
	case SolutionNotFound:
		return "SOLUTION_NOT_FOUND"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s OptimizationStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *OptimizationStatus) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "SOLUTION_FOUND":
		*s = SolutionFound
	case "SOLUTION_NOT_FOUND":
		*s = SolutionNotFound
	default:
		return fmt.Errorf("unknown optimization status %q", string(b))
	}
	return nil
}

// StorageMode is the decoded operating state of a battery at one interval.
type StorageMode int

const (
	Disabled StorageMode = iota
	Charging
	Discharging
)

func (m StorageMode) String() string {
	switch m {
	case Disabled:
		return "DISABLED"
	case Charging:
		return "CHARGING"
	case Discharging:
		return "DISCHARGING"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m StorageMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *StorageMode) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "DISABLED":
		*m = Disabled
	case "CHARGING":
		*m = Charging
	case "DISCHARGING":
		*m = Discharging
	default:
		return fmt.Errorf("unknown storage mode %q", string(b))
	}
	return nil
}

// ContractResult carries the decoded operation of one contract.
type ContractResult struct {
	ID     int
	Name   string
	Power  Profile
	Energy Profile
	Cost   Profile
}

// StorageResult carries the decoded operation of one storage.
type StorageResult struct {
	ID        int
	Name      string
	Charge    Profile
	Discharge Profile
	Energy    Profile
	Mode      []StorageMode
}

// MovableDemandResult carries the chosen start of one movable demand.
type MovableDemandResult struct {
	ID            int
	Name          string
	StartInterval int
}

// Result is the answer to one Task. It is built once by the optimizer.
type Result struct {
	ID                   int64
	Status               OptimizationStatus
	ObjectiveValue       float64
	RelativeGap          float64
	ElapsedTime          float64
	ErrorMessage         string
	ContractResults      []ContractResult
	StorageResults       []StorageResult
	MovableDemandResults []MovableDemandResult
}

// NotFound builds a SolutionNotFound result carrying msg.
func NotFound(id int64, msg string) *Result {
	return &Result{ID: id, Status: SolutionNotFound, ErrorMessage: msg}
}

// Contract returns the result for contract id.
func (r *Result) Contract(id int) (ContractResult, bool) {
	for _, c := range r.ContractResults {
		if c.ID == id {
			return c, true
		}
	}
	return ContractResult{}, false
}

// Storage returns the result for storage id.
func (r *Result) Storage(id int) (StorageResult, bool) {
	for _, s := range r.StorageResults {
		if s.ID == id {
			return s, true
		}
	}
	return StorageResult{}, false
}

// MovableDemand returns the result for movable demand id.
func (r *Result) MovableDemand(id int) (MovableDemandResult, bool) {
	for _, m := range r.MovableDemandResults {
		if m.ID == id {
			return m, true
		}
	}
	return MovableDemandResult{}, false
}
