package bus

import (
	"time"
)

// Clock provides the engine's microsecond timebase.
type Clock interface {
	NowUs() uint64
}

// SystemClock counts microseconds from its creation on the monotonic
// system clock.
type SystemClock struct {
	base time.Time
}

// NewSystemClock creates a SystemClock anchored at now.
func NewSystemClock() *SystemClock {
	return &SystemClock{base: time.Now()}
}

// NowUs implements Clock.
func (c *SystemClock) NowUs() uint64 {
	return uint64(time.Since(c.base) / time.Microsecond)
}
