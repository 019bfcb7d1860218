package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// clock supplies the run's reference time: the upper bound of the TF rule and
// the timestamp printed on reports. Tests freeze it with SetClock.
var clock = clockwork.NewRealClock()

// SetClock swaps the reference time source. Pass nil to go back to real time.
func SetClock(c clockwork.Clock) {
	if c == nil {
		clock = clockwork.NewRealClock()
		return
	}
	clock = c
}

// Now returns the current reference time in UTC.
func Now() time.Time {
	return clock.Now().UTC()
}
