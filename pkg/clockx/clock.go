// Package clockx abstracts wall-clock access so that timeout-driven
// behavior (queue admission, stuck-request cleanup) is deterministically
// testable without real sleeps.
package clockx

import "time"

// Clock provides the time operations the library needs. The zero
// dependency surface is deliberate: production code uses Real, tests
// substitute Fake.
type Clock interface {
	Now() time.Time
	// After behaves like time.After. Timers created through the clock are
	// the only way the library waits on wall time.
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }
