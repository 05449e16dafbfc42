package domain

import "github.com/jonboulle/clockwork"

// clock stamps Report.ProcessedAt.
var clock = clockwork.NewRealClock()

// SetClock replaces the clock used to stamp analysis reports. Pass nil to
// restore the real clock.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}
