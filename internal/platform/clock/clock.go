package clock

import "time"

// Clock abstracts time to keep usecases deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// Frame measures the elapsed seconds between consecutive frames of a host loop.
type Frame struct {
	clock Clock
	last  time.Time
}

func NewFrame(c Clock) *Frame {
	return &Frame{clock: c}
}

// Delta returns the seconds since the previous call. The first call returns 0.
func (f *Frame) Delta() float64 {
	now := f.clock.Now()
	if f.last.IsZero() {
		f.last = now
		return 0
	}
	dt := now.Sub(f.last).Seconds()
	f.last = now
	if dt < 0 {
		return 0
	}
	return dt
}
