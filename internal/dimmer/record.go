package dimmer

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Direction of a brightness ramp.
type Direction int

const (
	DirectionRaising Direction = iota
	DirectionLowering
)

func (d Direction) String() string {
	switch d {
	case DirectionRaising:
		return "raising"
	case DirectionLowering:
		return "lowering"
	default:
		return "unknown"
	}
}

// TransitionRecord tracks one in-flight brightness ramp. At most one exists
// per entity at any instant; it is owned by the entity's state record and
// only ever touched under that entity's lock.
type TransitionRecord struct {
	Token     uuid.UUID
	Direction Direction
	Start     float64 // percent at StartedAt
	StartedAt time.Time
	Rate      float64 // percent per second (100 / sweep seconds)
	Limit     float64 // percent the ramp ends at
}

// BrightnessAt interpolates the ramp's brightness at time t, clamped to the
// span between start and limit.
func (r *TransitionRecord) BrightnessAt(t time.Time) float64 {
	elapsed := t.Sub(r.StartedAt).Seconds()

	var b float64
	if r.Direction == DirectionRaising {
		b = r.Start + r.Rate*elapsed
	} else {
		b = r.Start - r.Rate*elapsed
	}

	lo := math.Min(r.Start, r.Limit)
	hi := math.Max(r.Start, r.Limit)
	return math.Max(lo, math.Min(hi, b))
}
