// Package scheduler runs upload tasks with bounded retries and an
// adaptive number of in-flight calls, and estimates time to completion.
package scheduler

import (
	"fmt"
	"time"
)

type Config struct {
	Initial int // starting concurrency
	Min     int
	Max     int

	MaxRetries int // retries after the first attempt
	BaseDelay  time.Duration
	MaxJitter  time.Duration

	// A batch is unstable when either limit is exceeded.
	UnstableRetryRate float64
	UnstableLatency   time.Duration
	// A batch is stable when both are below these limits.
	StableRetryRate float64
	StableLatency   time.Duration

	CooldownBatches int     // batches to wait after backing off before probing again
	ProbeBatches    int     // batches run at a probed level before it is judged
	MinGain         float64 // relative throughput gain needed to keep a probed level
	Alpha           float64 // EWMA smoothing factor
}

func DefaultConfig() Config {
	return Config{
		Initial:           3,
		Min:               1,
		Max:               6,
		MaxRetries:        5,
		BaseDelay:         500 * time.Millisecond,
		MaxJitter:         250 * time.Millisecond,
		UnstableRetryRate: 0.35,
		UnstableLatency:   15 * time.Second,
		StableRetryRate:   0.08,
		StableLatency:     9 * time.Second,
		CooldownBatches:   3,
		ProbeBatches:      2,
		MinGain:           0.12,
		Alpha:             0.25,
	}
}

func (c Config) Validate() error {
	if c.Min < 1 {
		return fmt.Errorf("min concurrency must be at least 1, got %d", c.Min)
	}
	if c.Max < c.Min {
		return fmt.Errorf("max concurrency %d is below min %d", c.Max, c.Min)
	}
	if c.Initial < c.Min || c.Initial > c.Max {
		return fmt.Errorf("initial concurrency %d is outside [%d, %d]", c.Initial, c.Min, c.Max)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.Alpha <= 0 || c.Alpha > 1 {
		return fmt.Errorf("alpha must be in (0, 1], got %g", c.Alpha)
	}
	return nil
}

// normalized clamps out-of-range values so a Scheduler can always run.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Min < 1 {
		c.Min = 1
	}
	if c.Max < c.Min {
		c.Max = c.Min
	}
	c.Initial = min(max(c.Initial, c.Min), c.Max)
	if c.Alpha <= 0 || c.Alpha > 1 {
		c.Alpha = d.Alpha
	}
	if c.ProbeBatches < 1 {
		c.ProbeBatches = 1
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	return c
}
