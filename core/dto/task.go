// Package dto holds the wire representation of tasks and results and the
// mappers between them and core/model.
package dto

import (
	"fmt"

	"github.com/kilianp07/pvopt/core/model"
)

// Task is the wire form of an optimization request.
type Task struct {
	ID             int64           `json:"id" yaml:"id"`
	TimeoutSeconds int64           `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
	RelativeGap    float64         `json:"relative_gap,omitempty" yaml:"relative_gap,omitempty"`
	Intervals      []float64       `json:"intervals" yaml:"intervals"`
	Production     *FixedProfile   `json:"production,omitempty" yaml:"production,omitempty"`
	Demand         *FixedProfile   `json:"demand,omitempty" yaml:"demand,omitempty"`
	Contracts      []Contract      `json:"contracts,omitempty" yaml:"contracts,omitempty"`
	Storages       []Storage       `json:"storages,omitempty" yaml:"storages,omitempty"`
	MovableDemands []MovableDemand `json:"movable_demands,omitempty" yaml:"movable_demands,omitempty"`
}

// FixedProfile is a production or demand curve starting at interval 0.
type FixedProfile struct {
	ID      int       `json:"id" yaml:"id"`
	Name    string    `json:"name" yaml:"name"`
	Profile []float64 `json:"profile" yaml:"profile"`
}

// SumConstraint bounds a duration-weighted sum over an inclusive range.
type SumConstraint struct {
	StartInterval int     `json:"start_interval" yaml:"start_interval"`
	EndInterval   int     `json:"end_interval" yaml:"end_interval"`
	Sum           float64 `json:"sum" yaml:"sum"`
}

// Contract is the wire form of a purchase or sell contract. Power bound
// maps are keyed by absolute interval.
type Contract struct {
	ID            int             `json:"id" yaml:"id"`
	Name          string          `json:"name" yaml:"name"`
	Direction     string          `json:"direction" yaml:"direction"`
	StartInterval int             `json:"start_interval" yaml:"start_interval"`
	UnitPrice     []float64       `json:"unit_price" yaml:"unit_price"`
	MinPower      map[int]float64 `json:"min_power,omitempty" yaml:"min_power,omitempty"`
	MaxPower      map[int]float64 `json:"max_power,omitempty" yaml:"max_power,omitempty"`
	MinEnergy     []SumConstraint `json:"min_energy,omitempty" yaml:"min_energy,omitempty"`
	MaxEnergy     []SumConstraint `json:"max_energy,omitempty" yaml:"max_energy,omitempty"`
}

// Storage is the wire form of a battery.
type Storage struct {
	ID                 int             `json:"id" yaml:"id"`
	Name               string          `json:"name" yaml:"name"`
	MaxCharge          float64         `json:"max_charge" yaml:"max_charge"`
	MaxDischarge       float64         `json:"max_discharge" yaml:"max_discharge"`
	MaxCapacity        float64         `json:"max_capacity" yaml:"max_capacity"`
	InitialEnergy      float64         `json:"initial_energy" yaml:"initial_energy"`
	MinCharge          map[int]float64 `json:"min_charge,omitempty" yaml:"min_charge,omitempty"`
	MaxChargeAt        map[int]float64 `json:"max_charge_at,omitempty" yaml:"max_charge_at,omitempty"`
	MinDischarge       map[int]float64 `json:"min_discharge,omitempty" yaml:"min_discharge,omitempty"`
	MaxDischargeAt     map[int]float64 `json:"max_discharge_at,omitempty" yaml:"max_discharge_at,omitempty"`
	MinEnergy          map[int]float64 `json:"min_energy,omitempty" yaml:"min_energy,omitempty"`
	MaxEnergy          map[int]float64 `json:"max_energy,omitempty" yaml:"max_energy,omitempty"`
	ForbiddenCharge    []int           `json:"forbidden_charge,omitempty" yaml:"forbidden_charge,omitempty"`
	ForbiddenDischarge []int           `json:"forbidden_discharge,omitempty" yaml:"forbidden_discharge,omitempty"`
}

// MovableDemand is the wire form of a time-shiftable load.
type MovableDemand struct {
	ID             int       `json:"id" yaml:"id"`
	Name           string    `json:"name" yaml:"name"`
	Profile        []float64 `json:"profile" yaml:"profile"`
	StartIntervals []int     `json:"start_intervals" yaml:"start_intervals"`
}

// TaskMessage is the payload received on the task topic.
type TaskMessage struct {
	Key  string `json:"key,omitempty"`
	Task Task   `json:"task"`
}

// ToModel validates the DTO and builds an immutable task.
func (t Task) ToModel() (*model.Task, error) {
	p := model.TaskParams{
		ID:             t.ID,
		TimeoutSeconds: t.TimeoutSeconds,
		RelativeGap:    t.RelativeGap,
		Intervals:      model.NewProfile(t.Intervals...),
		Production:     t.Production.toModel(),
		Demand:         t.Demand.toModel(),
	}
	for _, c := range t.Contracts {
		mc, err := c.toModel()
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", t.ID, err)
		}
		p.Contracts = append(p.Contracts, mc)
	}
	for _, s := range t.Storages {
		ms, err := s.toModel()
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", t.ID, err)
		}
		p.Storages = append(p.Storages, ms)
	}
	for _, m := range t.MovableDemands {
		mm, err := model.NewMovableDemand(m.ID, m.Name, m.Profile, m.StartIntervals)
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", t.ID, err)
		}
		p.MovableDemands = append(p.MovableDemands, mm)
	}
	return model.NewTask(p)
}

func (f *FixedProfile) toModel() *model.FixedProfile {
	if f == nil {
		return nil
	}
	return &model.FixedProfile{ID: f.ID, Name: f.Name, Profile: model.NewProfile(f.Profile...)}
}

func (c Contract) toModel() (*model.Contract, error) {
	dir, err := model.ParseDirection(c.Direction)
	if err != nil {
		return nil, fmt.Errorf("%w: contract %d: %v", model.ErrInvalidContract, c.ID, err)
	}
	minEnergy, err := sumConstraints(c.MinEnergy)
	if err != nil {
		return nil, fmt.Errorf("contract %d min energy: %w", c.ID, err)
	}
	maxEnergy, err := sumConstraints(c.MaxEnergy)
	if err != nil {
		return nil, fmt.Errorf("contract %d max energy: %w", c.ID, err)
	}
	return model.NewContract(model.ContractParams{
		ID:        c.ID,
		Name:      c.Name,
		Direction: dir,
		UnitPrice: model.NewOffsetProfile(c.StartInterval, c.UnitPrice),
		MinPower:  c.MinPower,
		MaxPower:  c.MaxPower,
		MinEnergy: minEnergy,
		MaxEnergy: maxEnergy,
	})
}

func sumConstraints(in []SumConstraint) ([]model.SumConstraint, error) {
	out := make([]model.SumConstraint, 0, len(in))
	for _, sc := range in {
		c, err := model.NewSumConstraint(sc.StartInterval, sc.EndInterval, sc.Sum)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s Storage) toModel() (*model.Storage, error) {
	return model.NewStorage(model.StorageParams{
		ID:                 s.ID,
		Name:               s.Name,
		MaxCharge:          s.MaxCharge,
		MaxDischarge:       s.MaxDischarge,
		MaxCapacity:        s.MaxCapacity,
		InitialEnergy:      s.InitialEnergy,
		MinCharge:          s.MinCharge,
		MaxChargeAt:        s.MaxChargeAt,
		MinDischarge:       s.MinDischarge,
		MaxDischargeAt:     s.MaxDischargeAt,
		MinEnergy:          s.MinEnergy,
		MaxEnergy:          s.MaxEnergy,
		ForbiddenCharge:    s.ForbiddenCharge,
		ForbiddenDischarge: s.ForbiddenDischarge,
	})
}
