package upload

import "time"

// DelayConfig bounds the interval between upload cycles.
type DelayConfig struct {
	// Min is the floor the delay shrinks toward on success.
	Min time.Duration
	// Max is the ceiling the delay grows toward on failure or inactivity.
	Max time.Duration
	// Default is the starting point.
	Default time.Duration
	// Factor is the multiplicative step, greater than 1.
	Factor float64
}

// Delay is the adaptive interval between upload cycles: it shrinks while
// data is flowing and grows under sustained failure or inactivity. It is
// owned by a single worker goroutine and is not safe for concurrent use.
type Delay struct {
	cfg     DelayConfig
	current time.Duration
}

// NewDelay creates a delay at the config's default point.
func NewDelay(cfg DelayConfig) *Delay {
	return &Delay{cfg: cfg, current: cfg.Default}
}

// Current returns the interval to wait before the next cycle.
func (d *Delay) Current() time.Duration {
	return d.current
}

// Decrease moves the delay toward Min after a successful cycle.
func (d *Delay) Decrease() {
	next := time.Duration(float64(d.current) / d.cfg.Factor)
	if next < d.cfg.Min {
		next = d.cfg.Min
	}
	d.current = next
}

// Increase moves the delay toward Max after a failed or skipped cycle.
func (d *Delay) Increase() {
	next := time.Duration(float64(d.current) * d.cfg.Factor)
	if next > d.cfg.Max {
		next = d.cfg.Max
	}
	d.current = next
}
