package resilience

import "time"

const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 5 * time.Minute
	DefaultHalfOpenSuccesses = 1
)

// Config sizes a breaker. The defaults suit a capture that takes tens of seconds:
// five straight failures pause capturing for five minutes.
type Config struct {
	Name              string        // appears in logs and status
	Threshold         int           // consecutive failures that open the breaker
	ResetTimeout      time.Duration // how long it stays open before a trial call
	HalfOpenSuccesses int           // trial successes needed to close again
}

// DefaultConfig returns the defaults for a breaker named name.
func DefaultConfig(name string) Config {
	return Config{
		Name:              name,
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig(c.Name)
	if d.Name == "" {
		d.Name = "default"
	}
	if c.Threshold > 0 {
		d.Threshold = c.Threshold
	}
	if c.ResetTimeout > 0 {
		d.ResetTimeout = c.ResetTimeout
	}
	if c.HalfOpenSuccesses > 0 {
		d.HalfOpenSuccesses = c.HalfOpenSuccesses
	}
	return d
}
