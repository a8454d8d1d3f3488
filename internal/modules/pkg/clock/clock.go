package clock

import "time"

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// Func adapts a plain function to Clock. Tests use it to pin time.
type Func func() time.Time

func (f Func) Now() time.Time {
	return f()
}

// Fixed returns a Clock that always reports t
func Fixed(t time.Time) Clock {
	return Func(func() time.Time { return t })
}

// Ticker is implemented by clocks that also drive periodic work. The
// returned stop func releases the ticker.
type Ticker interface {
	NewTicker(d time.Duration) (<-chan time.Time, func())
}

func (SystemClock) NewTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}
