package taskloop

import "time"

// Clock abstracts time for the poll loops so tests can simulate elapsed
// time without real delays.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock is the wall-clock implementation used outside of tests.
var SystemClock Clock = systemClock{}
