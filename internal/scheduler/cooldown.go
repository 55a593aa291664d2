// Package scheduler decides when the agent's periodic steps are due.
package scheduler

import "time"

// DefaultFailureDelay is the retry delay after a failed step.
const DefaultFailureDelay = 15 * time.Minute

// Gate tells the loop whether a step should run and records the outcome.
type Gate interface {
	Ready(now time.Time) bool
	Done(now time.Time)
	Failed(now time.Time)
}

// Cooldown runs a step every Interval, or FailureDelay after a failure. A new
// Cooldown is ready immediately.
type Cooldown struct {
	Interval     time.Duration
	FailureDelay time.Duration
	next         time.Time
}

// NewCooldown creates a cooldown; a non-positive failureDelay uses DefaultFailureDelay.
func NewCooldown(interval, failureDelay time.Duration) *Cooldown {
	if failureDelay <= 0 {
		failureDelay = DefaultFailureDelay
	}
	return &Cooldown{Interval: interval, FailureDelay: failureDelay}
}

// Ready reports whether the step may run at now.
func (c *Cooldown) Ready(now time.Time) bool {
	return !now.Before(c.next)
}

// Done schedules the next run one Interval after now.
func (c *Cooldown) Done(now time.Time) {
	c.next = now.Add(c.Interval)
}

// Failed schedules a retry FailureDelay after now.
func (c *Cooldown) Failed(now time.Time) {
	c.next = now.Add(c.FailureDelay)
}

// Next returns the earliest time the step runs again.
func (c *Cooldown) Next() time.Time { return c.next }
