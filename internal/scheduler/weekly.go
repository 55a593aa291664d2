package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Weekly fires when the cron schedule has a tick between the last run and now.
type Weekly struct {
	schedule     cron.Schedule
	loc          *time.Location
	last         time.Time
	retryAt      time.Time
	failureDelay time.Duration
}

// NewWeekly parses a standard five-field cron spec evaluated in timezone. The
// first run is the first schedule tick after start.
func NewWeekly(spec, timezone string, start time.Time) (*Weekly, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse cron %q: %w", spec, err)
	}
	return &Weekly{
		schedule:     schedule,
		loc:          loc,
		last:         start,
		failureDelay: DefaultFailureDelay,
	}, nil
}

// Next returns the next scheduled run after the last completed one.
func (w *Weekly) Next() time.Time {
	return w.schedule.Next(w.last.In(w.loc))
}

// Ready reports whether a scheduled run is due and no retry delay is pending.
func (w *Weekly) Ready(now time.Time) bool {
	if now.Before(w.retryAt) {
		return false
	}
	return !w.Next().After(now)
}

// Done records a completed run at now.
func (w *Weekly) Done(now time.Time) {
	w.last = now
	w.retryAt = time.Time{}
}

// Failed keeps the run due but delays the retry.
func (w *Weekly) Failed(now time.Time) {
	w.retryAt = now.Add(w.failureDelay)
}
