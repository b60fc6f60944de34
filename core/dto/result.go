package dto

import (
	"fmt"

	"github.com/kilianp07/pvopt/core/model"
)

// Profile is a time series anchored at StartInterval.
type Profile struct {
	StartInterval int       `json:"start_interval" yaml:"start_interval"`
	Values        []float64 `json:"values" yaml:"values"`
}

// ContractResult is the wire form of a contract schedule.
type ContractResult struct {
	ID     int     `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	Power  Profile `json:"power" yaml:"power"`
	Energy Profile `json:"energy" yaml:"energy"`
	Cost   Profile `json:"cost" yaml:"cost"`
}

// StorageResult is the wire form of a battery schedule. Modes are
// DISABLED, CHARGING or DISCHARGING.
type StorageResult struct {
	ID        int      `json:"id" yaml:"id"`
	Name      string   `json:"name" yaml:"name"`
	Charge    Profile  `json:"charge" yaml:"charge"`
	Discharge Profile  `json:"discharge" yaml:"discharge"`
	Energy    Profile  `json:"energy" yaml:"energy"`
	Mode      []string `json:"mode" yaml:"mode"`
}

// MovableDemandResult reports the chosen start of a movable demand.
type MovableDemandResult struct {
	ID            int    `json:"id" yaml:"id"`
	Name          string `json:"name" yaml:"name"`
	StartInterval int    `json:"start_interval" yaml:"start_interval"`
}

// Result is the wire form of an optimization outcome.
type Result struct {
	ID                   int64                 `json:"id" yaml:"id"`
	Status               string                `json:"status" yaml:"status"`
	ObjectiveValue       float64               `json:"objective_value" yaml:"objective_value"`
	RelativeGap          float64               `json:"relative_gap" yaml:"relative_gap"`
	ElapsedTime          float64               `json:"elapsed_time" yaml:"elapsed_time"`
	ErrorMessage         string                `json:"error_message" yaml:"error_message"`
	ContractResults      []ContractResult      `json:"contract_results" yaml:"contract_results"`
	StorageResults       []StorageResult       `json:"storage_results" yaml:"storage_results"`
	MovableDemandResults []MovableDemandResult `json:"movable_demand_results" yaml:"movable_demand_results"`
}

// ResultMessage is the payload published on the result topic.
type ResultMessage struct {
	Key    string `json:"key"`
	Result Result `json:"result"`
}

func profileFrom(p model.Profile) Profile {
	return Profile{StartInterval: p.StartInterval, Values: append([]float64{}, p.Values...)}
}

func (p Profile) toModel() model.Profile { return model.NewOffsetProfile(p.StartInterval, p.Values) }

// FromResult maps a model result to its wire form. Lists are never nil.
func FromResult(r *model.Result) Result {
	out := Result{
		ID:                   r.ID,
		Status:               r.Status.String(),
		ObjectiveValue:       r.ObjectiveValue,
		RelativeGap:          r.RelativeGap,
		ElapsedTime:          r.ElapsedTime,
		ErrorMessage:         r.ErrorMessage,
		ContractResults:      make([]ContractResult, 0, len(r.ContractResults)),
		StorageResults:       make([]StorageResult, 0, len(r.StorageResults)),
		MovableDemandResults: make([]MovableDemandResult, 0, len(r.MovableDemandResults)),
	}
	for _, c := range r.ContractResults {
		out.ContractResults = append(out.ContractResults, ContractResult{
			ID:     c.ID,
			Name:   c.Name,
			Power:  profileFrom(c.Power),
			Energy: profileFrom(c.Energy),
			Cost:   profileFrom(c.Cost),
		})
	}
	for _, s := range r.StorageResults {
		modes := make([]string, len(s.Mode))
		for i, m := range s.Mode {
			modes[i] = m.String()
		}
		out.StorageResults = append(out.StorageResults, StorageResult{
			ID:        s.ID,
			Name:      s.Name,
			Charge:    profileFrom(s.Charge),
			Discharge: profileFrom(s.Discharge),
			Energy:    profileFrom(s.Energy),
			Mode:      modes,
		})
	}
	for _, m := range r.MovableDemandResults {
		out.MovableDemandResults = append(out.MovableDemandResults, MovableDemandResult(m))
	}
	return out
}

// ToModel parses the wire form back into a model result.
func (r Result) ToModel() (*model.Result, error) {
	var status model.OptimizationStatus
	if err := status.UnmarshalText([]byte(r.Status)); err != nil {
		return nil, fmt.Errorf("result %d: %w", r.ID, err)
	}
	out := &model.Result{
		ID:             r.ID,
		Status:         status,
		ObjectiveValue: r.ObjectiveValue,
		RelativeGap:    r.RelativeGap,
		ElapsedTime:    r.ElapsedTime,
		ErrorMessage:   r.ErrorMessage,
	}
	for _, c := range r.ContractResults {
		out.ContractResults = append(out.ContractResults, model.ContractResult{
			ID:     c.ID,
			Name:   c.Name,
			Power:  c.Power.toModel(),
			Energy: c.Energy.toModel(),
			Cost:   c.Cost.toModel(),
		})
	}
	for _, s := range r.StorageResults {
		modes := make([]model.StorageMode, len(s.Mode))
		for i, m := range s.Mode {
			if err := modes[i].UnmarshalText([]byte(m)); err != nil {
				return nil, fmt.Errorf("result %d storage %d: %w", r.ID, s.ID, err)
			}
		}
		out.StorageResults = append(out.StorageResults, model.StorageResult{
			ID:        s.ID,
			Name:      s.Name,
			Charge:    s.Charge.toModel(),
			Discharge: s.Discharge.toModel(),
			Energy:    s.Energy.toModel(),
			Mode:      modes,
		})
	}
	for _, m := range r.MovableDemandResults {
		out.MovableDemandResults = append(out.MovableDemandResults, model.MovableDemandResult(m))
	}
	return out, nil
}
