package model

import "fmt"

// TaskParams holds the raw optimization request passed to NewTask.
type TaskParams struct {
	ID             int64
	TimeoutSeconds int64
	RelativeGap    float64
	// Intervals holds the duration of every interval; its length is the horizon.
	Intervals      Profile
	Production     *FixedProfile
	Demand         *FixedProfile
	Contracts      []*Contract
	Storages       []*Storage
	MovableDemands []*MovableDemand
}

// Task describes one micro-grid optimization request.
type Task struct {
	id             int64
	timeoutSeconds int64
	relativeGap    float64
	intervals      Profile
	production     *FixedProfile
	demand         *FixedProfile
	contracts      []*Contract
	storages       []*Storage
	movableDemands []*MovableDemand
}

// NewTask validates p and returns an immutable Task.
func NewTask(p TaskParams) (*Task, error) {
	if p.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("%w: task %d: negative timeout %d", ErrInvalidTask, p.ID, p.TimeoutSeconds)
	}
	if p.RelativeGap < 0 {
		return nil, fmt.Errorf("%w: task %d: negative relative gap %v", ErrInvalidTask, p.ID, p.RelativeGap)
	}
	if p.Intervals.Length() == 0 {
		return nil, fmt.Errorf("%w: task %d: empty optimization horizon", ErrInvalidTask, p.ID)
	}
	for i, d := range p.Intervals.Values {
		if d <= 0 {
			return nil, fmt.Errorf("%w: task %d: interval %d has non-positive duration %v", ErrInvalidTask, p.ID, i, d)
		}
	}

	seen := make(map[int]struct{}, len(p.Contracts))
	for _, c := range p.Contracts {
		if c == nil {
			return nil, fmt.Errorf("%w: task %d: nil contract", ErrInvalidTask, p.ID)
		}
		if _, dup := seen[c.ID()]; dup {
			return nil, fmt.Errorf("%w: task %d: duplicate contract id %d", ErrInvalidTask, p.ID, c.ID())
		}
		seen[c.ID()] = struct{}{}
	}
	seen = make(map[int]struct{}, len(p.Storages))
	for _, s := range p.Storages {
		if s == nil {
			return nil, fmt.Errorf("%w: task %d: nil storage", ErrInvalidTask, p.ID)
		}
		if _, dup := seen[s.ID()]; dup {
			return nil, fmt.Errorf("%w: task %d: duplicate storage id %d", ErrInvalidTask, p.ID, s.ID())
		}
		seen[s.ID()] = struct{}{}
	}
	seen = make(map[int]struct{}, len(p.MovableDemands))
	for _, m := range p.MovableDemands {
		if m == nil {
			return nil, fmt.Errorf("%w: task %d: nil movable demand", ErrInvalidTask, p.ID)
		}
		if _, dup := seen[m.ID()]; dup {
			return nil, fmt.Errorf("%w: task %d: duplicate movable demand id %d", ErrInvalidTask, p.ID, m.ID())
		}
		seen[m.ID()] = struct{}{}
	}

	t := &Task{
		id:             p.ID,
		timeoutSeconds: p.TimeoutSeconds,
		relativeGap:    p.RelativeGap,
		intervals:      p.Intervals.clone(),
		production:     cloneFixed(p.Production),
		demand:         cloneFixed(p.Demand),
		contracts:      append([]*Contract(nil), p.Contracts...),
		storages:       append([]*Storage(nil), p.Storages...),
		movableDemands: append([]*MovableDemand(nil), p.MovableDemands...),
	}
	return t, nil
}

func cloneFixed(f *FixedProfile) *FixedProfile {
	if f == nil {
		return nil
	}
	return &FixedProfile{ID: f.ID, Name: f.Name, Profile: f.Profile.clone()}
}

func (t *Task) ID() int64                 { return t.id }
func (t *Task) TimeoutSeconds() int64     { return t.timeoutSeconds }
func (t *Task) RelativeGap() float64      { return t.relativeGap }
func (t *Task) Intervals() Profile        { return t.intervals.clone() }
func (t *Task) HorizonLength() int        { return t.intervals.Length() }
func (t *Task) Production() *FixedProfile { return cloneFixed(t.production) }
func (t *Task) Demand() *FixedProfile     { return cloneFixed(t.demand) }

// Duration returns the length of the interval in hours, or 0 outside the horizon.
func (t *Task) Duration(interval int) float64 { return t.intervals.ValueOr(interval, 0) }

// NetDemand is demand minus production at interval; absent values count as 0.
func (t *Task) NetDemand(interval int) float64 {
	var d, p float64
	if t.demand != nil {
		d = t.demand.ValueOr(interval)
	}
	if t.production != nil {
		p = t.production.ValueOr(interval)
	}
	return d - p
}

func (t *Task) Contracts() []*Contract { return append([]*Contract(nil), t.contracts...) }
func (t *Task) Storages() []*Storage   { return append([]*Storage(nil), t.storages...) }
func (t *Task) MovableDemands() []*MovableDemand {
	return append([]*MovableDemand(nil), t.movableDemands...)
}
