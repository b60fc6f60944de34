package model

// Profile is a time series of values anchored at StartInterval.
// Value i belongs to the absolute interval StartInterval+i.
type Profile struct {
	StartInterval int       `json:"start_interval"`
	Values        []float64 `json:"values"`
}

// NewProfile returns a profile starting at interval 0.
func NewProfile(values ...float64) Profile {
	return Profile{Values: append([]float64(nil), values...)}
}

// NewOffsetProfile returns a profile starting at the given interval.
func NewOffsetProfile(start int, values []float64) Profile {
	return Profile{StartInterval: start, Values: append([]float64(nil), values...)}
}

// ConstantProfile returns a profile of length values all equal to value.
func ConstantProfile(length int, value float64) Profile {
	return ConstantOffsetProfile(0, length, value)
}

// ConstantOffsetProfile returns a constant profile starting at start.
func ConstantOffsetProfile(start, length int, value float64) Profile {
	if length < 0 {
		length = 0
	}
	vals := make([]float64, length)
	for i := range vals {
		vals[i] = value
	}
	return Profile{StartInterval: start, Values: vals}
}

// Length returns the number of values.
func (p Profile) Length() int { return len(p.Values) }

// LastInterval returns the first interval after the profile.
func (p Profile) LastInterval() int { return p.StartInterval + len(p.Values) }

// Covers reports whether the absolute interval lies inside the profile.
func (p Profile) Covers(interval int) bool {
	return interval >= p.StartInterval && interval < p.LastInterval()
}

// ValueAtIndex returns the value stored at the local index.
func (p Profile) ValueAtIndex(index int) (float64, bool) {
	if index < 0 || index >= len(p.Values) {
		return 0, false
	}
	return p.Values[index], true
}

// ValueAtInterval returns the value for the absolute interval.
func (p Profile) ValueAtInterval(interval int) (float64, bool) {
	return p.ValueAtIndex(interval - p.StartInterval)
}

// ValueOr returns the value at the absolute interval or def when absent.
func (p Profile) ValueOr(interval int, def float64) float64 {
	if v, ok := p.ValueAtInterval(interval); ok {
		return v
	}
	return def
}

// Sum returns the sum of all values.
func (p Profile) Sum() float64 {
	var s float64
	for _, v := range p.Values {
		s += v
	}
	return s
}

func (p Profile) clone() Profile {
	return Profile{StartInterval: p.StartInterval, Values: append([]float64(nil), p.Values...)}
}
