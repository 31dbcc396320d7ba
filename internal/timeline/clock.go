package timeline

import (
	"math"

	"github.com/matthewharwood/arenic-bevy-sub009/pkg/core"
)

// Clock is an arena's cycle clock. It has a single writer, the arena tick.
type Clock struct {
	now    core.TimeStamp
	length core.TimeStamp
	cycle  uint64
}

// NewClock creates a clock at zero that wraps every length seconds. A
// non-positive length means core.CycleLength.
func NewClock(length core.TimeStamp) *Clock {
	if length <= 0 || math.IsInf(float64(length), 0) || math.IsNaN(float64(length)) {
		length = core.CycleLength
	}
	return &Clock{length: length}
}

// Advance moves the clock by dt and returns the resulting frame. The clock
// stays in [0, length). A negative or non-finite dt leaves it where it is,
// and dt is capped at one cycle so a frame wraps at most once.
func (c *Clock) Advance(dt core.TimeStamp) core.Frame {
	switch {
	case dt < 0 || math.IsNaN(float64(dt)):
		dt = 0
	case dt > c.length:
		dt = c.length
	}
	c.now += dt
	wrapped := false
	if c.now >= c.length {
		c.now = core.TimeStamp(math.Mod(float64(c.now), float64(c.length)))
		c.cycle++
		wrapped = true
	}
	return core.Frame{Now: c.now, Delta: dt, Wrapped: wrapped, Cycle: c.cycle}
}

func (c *Clock) Now() core.TimeStamp { return c.now }

func (c *Clock) Cycle() uint64 { return c.cycle }

func (c *Clock) Length() core.TimeStamp { return c.length }
