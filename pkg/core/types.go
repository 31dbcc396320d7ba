// pkg/core/types.go
package core

import (
	"fmt"
	"math"
)

// CycleLength is the default length of one recording/playback cycle in seconds.
const CycleLength TimeStamp = 120.0

// CountdownLength is the default pre-roll before a ghost starts (or resumes) playback.
const CountdownLength TimeStamp = 3.0

// TimeStamp is an offset in seconds from the start of a cycle.
type TimeStamp float64

// Seconds returns the timestamp as a plain float64.
func (t TimeStamp) Seconds() float64 {
	return float64(t)
}

// InRange reports whether t lies in the closed interval [0, limit].
// NaN is never in range.
func (t TimeStamp) InRange(limit TimeStamp) bool {
	if math.IsNaN(float64(t)) {
		return false
	}
	return t >= 0 && t <= limit
}

func (t TimeStamp) String() string {
	return fmt.Sprintf("%.3fs", float64(t))
}

// EntityID identifies an entity owned by the external ECS.
type EntityID uint64

// AbilityKind names an ability understood by the ability subsystem.
type AbilityKind string

// GridPos is a discrete tile coordinate.
type GridPos struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

func (p GridPos) String() string {
	return fmt.Sprintf("(%d,%d)", p.Col, p.Row)
}
