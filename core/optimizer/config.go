package optimizer

import "fmt"

// Config holds the limits applied to every task.
type Config struct {
	// MaxTimeoutSeconds caps the timeout a task may request. A task without
	// a timeout gets the cap. 0 selects the default; a negative value
	// disables the cap.
	MaxTimeoutSeconds int64 `json:"max_timeout_seconds"`
	// NumericalZero floors the task relative gap and is the threshold used
	// to decode storage modes and movable demand starts.
	NumericalZero float64 `json:"numerical_zero"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.MaxTimeoutSeconds == 0 {
		c.MaxTimeoutSeconds = 60
	}
	if c.NumericalZero == 0 {
		c.NumericalZero = 1e-6
	}
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.NumericalZero <= 0 || c.NumericalZero >= 1 {
		return fmt.Errorf("optimizer.numerical_zero must be in (0, 1)")
	}
	return nil
}

// timeout returns the solver timeout for a task requesting requested seconds.
func (c Config) timeout(requested int64) int64 {
	switch {
	case c.MaxTimeoutSeconds <= 0:
		return requested
	case requested <= 0:
		return c.MaxTimeoutSeconds
	case requested < c.MaxTimeoutSeconds:
		return requested
	default:
		return c.MaxTimeoutSeconds
	}
}

// relativeGap returns the solver gap target for a task requesting gap.
func (c Config) relativeGap(gap float64) float64 {
	if gap < c.NumericalZero {
		return c.NumericalZero
	}
	return gap
}
