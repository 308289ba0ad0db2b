package location

import (
	"time"

	"github.com/daniil11ru/fieldnav/cli/tracker/types"
)

const (
	DefaultMinInterval = 2 * time.Second
	DefaultMinDistance = 5.0
)

// Throttle пропускает фиксацию, только если с последней принятой прошло
// не меньше MinInterval и устройство сместилось не меньше чем на MinDistance метров.
type Throttle struct {
	MinInterval time.Duration
	MinDistance float64

	last *types.Location
}

func NewThrottle(minInterval time.Duration, minDistance float64) *Throttle {
	return &Throttle{MinInterval: minInterval, MinDistance: minDistance}
}

func (t *Throttle) Accept(loc types.Location) bool {
	if t.last != nil {
		if loc.Timestamp-t.last.Timestamp < t.MinInterval.Milliseconds() {
			return false
		}
		if t.last.DistanceTo(loc) < t.MinDistance {
			return false
		}
	}
	l := loc
	t.last = &l
	return true
}

func (t *Throttle) Reset() {
	t.last = nil
}
