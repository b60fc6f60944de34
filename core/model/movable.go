package model

import "fmt"

// MovableDemand is a load with a fixed power shape that may start at any of
// a set of candidate intervals.
type MovableDemand struct {
	id             int
	name           string
	profile        []float64
	startIntervals map[int]struct{}
}

// NewMovableDemand validates the candidate start set and returns an immutable
// MovableDemand.
func NewMovableDemand(id int, name string, profile []float64, startIntervals []int) (*MovableDemand, error) {
	if len(startIntervals) == 0 {
		return nil, fmt.Errorf("%w: movable demand %d: no start interval", ErrInvalidMovableDemand, id)
	}
	for _, s := range startIntervals {
		if s < 0 {
			return nil, fmt.Errorf("%w: movable demand %d: negative start interval %d", ErrInvalidMovableDemand, id, s)
		}
	}
	return &MovableDemand{
		id:             id,
		name:           name,
		profile:        append([]float64(nil), profile...),
		startIntervals: toSet(startIntervals),
	}, nil
}

func (m *MovableDemand) ID() int      { return m.id }
func (m *MovableDemand) Name() string { return m.name }

// Profile returns a copy of the power shape.
func (m *MovableDemand) Profile() []float64 { return append([]float64(nil), m.profile...) }

// StartIntervals lists candidate starts in ascending order.
func (m *MovableDemand) StartIntervals() []int { return sortedSet(m.startIntervals) }

// CanStartAt reports whether s is a candidate start.
func (m *MovableDemand) CanStartAt(s int) bool {
	_, ok := m.startIntervals[s]
	return ok
}

// FixedProfile is a named production or demand curve that cannot be shifted.
type FixedProfile struct {
	ID      int     `json:"id"`
	Name    string  `json:"name"`
	Profile Profile `json:"profile"`
}

// ValueOr returns the power at interval, or 0 outside the profile.
func (f FixedProfile) ValueOr(interval int) float64 { return f.Profile.ValueOr(interval, 0) }
