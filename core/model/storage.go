package model

import (
	"fmt"
	"sort"
)

// StorageParams holds the raw battery definition passed to NewStorage.
type StorageParams struct {
	ID                 int
	Name               string
	MaxCharge          float64
	MaxDischarge       float64
	MaxCapacity        float64
	InitialEnergy      float64
	MinCharge          map[int]float64
	MaxChargeAt        map[int]float64
	MinDischarge       map[int]float64
	MaxDischargeAt     map[int]float64
	MinEnergy          map[int]float64
	MaxEnergy          map[int]float64
	ForbiddenCharge    []int
	ForbiddenDischarge []int
}

// Storage is a battery with physical charge, discharge and capacity limits.
type Storage struct {
	id            int
	name          string
	maxCharge     float64
	maxDischarge  float64
	maxCapacity   float64
	initialEnergy float64

	minCharge      map[int]float64
	maxChargeAt    map[int]float64
	minDischarge   map[int]float64
	maxDischargeAt map[int]float64
	minEnergy      map[int]float64
	maxEnergy      map[int]float64

	forbiddenCharge    map[int]struct{}
	forbiddenDischarge map[int]struct{}
}

// NewStorage validates p and returns an immutable Storage.
func NewStorage(p StorageParams) (*Storage, error) {
	switch {
	case p.MaxCharge < 0:
		return nil, fmt.Errorf("%w: storage %d: negative maximal charge %v", ErrInvalidStorage, p.ID, p.MaxCharge)
	case p.MaxDischarge < 0:
		return nil, fmt.Errorf("%w: storage %d: negative maximal discharge %v", ErrInvalidStorage, p.ID, p.MaxDischarge)
	case p.MaxCapacity < 0:
		return nil, fmt.Errorf("%w: storage %d: negative maximal capacity %v", ErrInvalidStorage, p.ID, p.MaxCapacity)
	case p.InitialEnergy < 0 || p.InitialEnergy > p.MaxCapacity:
		return nil, fmt.Errorf("%w: storage %d: initial energy %v not in [0, %v]",
			ErrInvalidStorage, p.ID, p.InitialEnergy, p.MaxCapacity)
	}
	checks := []struct {
		kind   string
		bounds map[int]float64
		limit  float64
	}{
		{"minimal charge", p.MinCharge, p.MaxCharge},
		{"maximal charge", p.MaxChargeAt, p.MaxCharge},
		{"minimal discharge", p.MinDischarge, p.MaxDischarge},
		{"maximal discharge", p.MaxDischargeAt, p.MaxDischarge},
		{"minimal energy", p.MinEnergy, p.MaxCapacity},
		{"maximal energy", p.MaxEnergy, p.MaxCapacity},
	}
	for _, c := range checks {
		for interval, v := range c.bounds {
			if interval < 0 {
				return nil, fmt.Errorf("%w: storage %d: %s constraint at negative interval %d",
					ErrInvalidStorage, p.ID, c.kind, interval)
			}
			if v > c.limit {
				return nil, fmt.Errorf("%w: storage %d: %s constraint %v at interval %d exceeds %v",
					ErrInvalidStorage, p.ID, c.kind, v, interval, c.limit)
			}
		}
	}
	return &Storage{
		id:                 p.ID,
		name:               p.Name,
		maxCharge:          p.MaxCharge,
		maxDischarge:       p.MaxDischarge,
		maxCapacity:        p.MaxCapacity,
		initialEnergy:      p.InitialEnergy,
		minCharge:          copyBounds(p.MinCharge),
		maxChargeAt:        copyBounds(p.MaxChargeAt),
		minDischarge:       copyBounds(p.MinDischarge),
		maxDischargeAt:     copyBounds(p.MaxDischargeAt),
		minEnergy:          copyBounds(p.MinEnergy),
		maxEnergy:          copyBounds(p.MaxEnergy),
		forbiddenCharge:    toSet(p.ForbiddenCharge),
		forbiddenDischarge: toSet(p.ForbiddenDischarge),
	}, nil
}

func (s *Storage) ID() int                { return s.id }
func (s *Storage) Name() string           { return s.name }
func (s *Storage) MaxCharge() float64     { return s.maxCharge }
func (s *Storage) MaxDischarge() float64  { return s.maxDischarge }
func (s *Storage) MaxCapacity() float64   { return s.maxCapacity }
func (s *Storage) InitialEnergy() float64 { return s.initialEnergy }

// ChargeBounds returns the lower and upper charge bound at interval.
// Without an explicit bound the range is [0, MaxCharge].
func (s *Storage) ChargeBounds(interval int) (lo, hi float64) {
	return bound(s.minCharge, interval, 0), bound(s.maxChargeAt, interval, s.maxCharge)
}

// DischargeBounds returns the lower and upper discharge bound at interval.
func (s *Storage) DischargeBounds(interval int) (lo, hi float64) {
	return bound(s.minDischarge, interval, 0), bound(s.maxDischargeAt, interval, s.maxDischarge)
}

// EnergyBounds returns the lower and upper stored energy bound at interval.
func (s *Storage) EnergyBounds(interval int) (lo, hi float64) {
	return bound(s.minEnergy, interval, 0), bound(s.maxEnergy, interval, s.maxCapacity)
}

// ChargeForbidden reports whether charging is disallowed at interval.
func (s *Storage) ChargeForbidden(interval int) bool {
	_, ok := s.forbiddenCharge[interval]
	return ok
}

// DischargeForbidden reports whether discharging is disallowed at interval.
func (s *Storage) DischargeForbidden(interval int) bool {
	_, ok := s.forbiddenDischarge[interval]
	return ok
}

// ForbiddenCharge lists forbidden charge intervals in ascending order.
func (s *Storage) ForbiddenCharge() []int { return sortedSet(s.forbiddenCharge) }

// ForbiddenDischarge lists forbidden discharge intervals in ascending order.
func (s *Storage) ForbiddenDischarge() []int { return sortedSet(s.forbiddenDischarge) }

// BigM is the mode linking constant: 100 times the larger power limit.
func (s *Storage) BigM() float64 {
	m := s.maxCharge
	if s.maxDischarge > m {
		m = s.maxDischarge
	}
	return 100 * m
}

// Bounds exposes a copy of the explicit bound maps, keyed by kind.
func (s *Storage) Bounds() StorageBounds {
	return StorageBounds{
		MinCharge:    copyBounds(s.minCharge),
		MaxCharge:    copyBounds(s.maxChargeAt),
		MinDischarge: copyBounds(s.minDischarge),
		MaxDischarge: copyBounds(s.maxDischargeAt),
		MinEnergy:    copyBounds(s.minEnergy),
		MaxEnergy:    copyBounds(s.maxEnergy),
	}
}

// StorageBounds groups the sparse per-interval bounds of a Storage.
type StorageBounds struct {
	MinCharge    map[int]float64
	MaxCharge    map[int]float64
	MinDischarge map[int]float64
	MaxDischarge map[int]float64
	MinEnergy    map[int]float64
	MaxEnergy    map[int]float64
}

func bound(m map[int]float64, interval int, def float64) float64 {
	if v, ok := m[interval]; ok {
		return v
	}
	return def
}

func toSet(xs []int) map[int]struct{} {
	if len(xs) == 0 {
		return nil
	}
	out := make(map[int]struct{}, len(xs))
	for _, x := range xs {
		out[x] = struct{}{}
	}
	return out
}

func sortedSet(m map[int]struct{}) []int {
	out := make([]int, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
