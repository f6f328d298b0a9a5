package cache

import (
	"github.com/benbjohnson/clock"
)

const (
	// DefaultWindowHours is how long a cached entry stays fresh.
	DefaultWindowHours = 3

	msPerHour = 3_600_000
)

// IsValid reports whether an entry written at timestamp is still fresh at now.
// Both instants are milliseconds since epoch. An age equal to the window is
// stale; a negative age (clock skew) is fresh.
func IsValid(now, timestamp int64, maxAgeHours float64) bool {
	return float64(now-timestamp) < maxAgeHours*msPerHour
}

// Policy applies IsValid against a clock.
type Policy struct {
	clock       clock.Clock
	windowHours float64
}

// NewPolicy returns a Policy. A non-positive window falls back to DefaultWindowHours.
func NewPolicy(c clock.Clock, windowHours float64) Policy {
	if c == nil {
		c = clock.New()
	}
	if windowHours <= 0 {
		windowHours = DefaultWindowHours
	}
	return Policy{clock: c, windowHours: windowHours}
}

// Now returns the policy clock's current time in milliseconds since epoch.
func (p Policy) Now() int64 {
	return p.clock.Now().UnixMilli()
}

// IsValid reports whether timestamp is inside the window.
func (p Policy) IsValid(timestamp int64) bool {
	return IsValid(p.Now(), timestamp, p.windowHours)
}
