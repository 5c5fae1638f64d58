// Package tag implements the (time, microstep) total order the scheduler
// advances through, and saturating arithmetic over it.
package tag

import (
	"math"
	"time"
)

// Tag is a logical instant: a physical time in nanoseconds since the
// runtime epoch, paired with a microstep that orders same-instant events.
type Tag struct {
	Time      int64
	Microstep uint32
}

// Never is the tag before which nothing can be scheduled; it is the zero
// value of LastTriggeredTag for a trigger that has never fired.
var Never = Tag{Time: math.MinInt64, Microstep: 0}

// Forever is the tag after which the runtime never advances; used as the
// default StopTag of a keepalive runtime with no configured timeout.
var Forever = Tag{Time: math.MaxInt64, Microstep: math.MaxUint32}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than b.
func Compare(a, b Tag) int {
	switch {
	case a.Time < b.Time:
		return -1
	case a.Time > b.Time:
		return 1
	case a.Microstep < b.Microstep:
		return -1
	case a.Microstep > b.Microstep:
		return 1
	default:
		return 0
	}
}

// Before reports whether a strictly precedes b.
func Before(a, b Tag) bool { return Compare(a, b) < 0 }

// AfterOrEqual reports whether a is not strictly before b.
func AfterOrEqual(a, b Tag) bool { return Compare(a, b) >= 0 }

// Delay returns the tag reached by waiting d from t: a strictly later
// physical time with microstep reset to 0 when d > 0, or the same physical
// time with the microstep incremented when d == 0 (the "zero delay" case).
// d < 0 is treated as d == 0. On overflow the time saturates at
// Forever.Time with microstep 0.
func Delay(t Tag, d time.Duration) Tag {
	if d <= 0 {
		return bumpMicrostep(t)
	}
	return AddInterval(t, d)
}

// AddInterval returns t advanced by d with the microstep reset to 0 when
// d > 0, saturating at Forever.Time on overflow; when d <= 0 it returns
// the same time with the microstep incremented. Used for MinDelay/period
// math.
func AddInterval(t Tag, d time.Duration) Tag {
	if d <= 0 {
		return bumpMicrostep(t)
	}
	sum := t.Time + int64(d)
	if sum < t.Time { // overflow
		sum = math.MaxInt64
	}
	return Tag{Time: sum, Microstep: 0}
}

func bumpMicrostep(t Tag) Tag {
	if t.Microstep == math.MaxUint32 {
		// Saturate by moving to the next nanosecond instead of wrapping.
		next := t.Time + 1
		if next < t.Time {
			return Forever
		}
		return Tag{Time: next, Microstep: 0}
	}
	return Tag{Time: t.Time, Microstep: t.Microstep + 1}
}

// AsTime converts a tag's physical time component to a time.Time relative
// to the given epoch, for deadline-lag computation against a Clock.
func (t Tag) AsTime(epoch time.Time) time.Time {
	return epoch.Add(time.Duration(t.Time))
}
