package automation

import "time"

// Clock supplies "now" to jobs so date thresholds can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in the configured automation timezone.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
