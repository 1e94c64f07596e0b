package domain

import "github.com/jonboulle/clockwork"

// clock is a package-level time source so tests can freeze time via SetClock.
// Production code uses the real clock; tests inject a fake for deterministic
// pipeline-run and crosswalk timestamps.
var clock = clockwork.NewRealClock()

// SetClock swaps the time source used for timestamps assigned by this
// package. Pass nil to reset to the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Clock exposes the current time source, for packages that need to share it
// (e.g. the poller stamping FetchedAt, the unifier stamping CreatedAt).
func Clock() clockwork.Clock {
	return clock
}
