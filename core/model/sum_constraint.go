package model

import "fmt"

// SumConstraint bounds the duration weighted total of a quantity over the
// inclusive interval range [StartInterval, EndInterval].
type SumConstraint struct {
	StartInterval int     `json:"start_interval"`
	EndInterval   int     `json:"end_interval"`
	Sum           float64 `json:"sum"`
}

// NewSumConstraint validates that start does not exceed end.
func NewSumConstraint(start, end int, sum float64) (SumConstraint, error) {
	sc := SumConstraint{StartInterval: start, EndInterval: end, Sum: sum}
	if err := sc.Validate(); err != nil {
		return SumConstraint{}, err
	}
	return sc, nil
}

// Validate checks the interval range.
func (c SumConstraint) Validate() error {
	if c.StartInterval > c.EndInterval {
		return fmt.Errorf("%w: start interval %d is greater than end interval %d",
			ErrInvalidSumConstraint, c.StartInterval, c.EndInterval)
	}
	return nil
}

// Contains reports whether interval lies in the inclusive range.
func (c SumConstraint) Contains(interval int) bool {
	return interval >= c.StartInterval && interval <= c.EndInterval
}
