package token

import "time"

// Clock abstracts the time source so debounce and retention behavior
// can be driven deterministically in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by the OS wall clock
func SystemClock() Clock { return systemClock{} }
