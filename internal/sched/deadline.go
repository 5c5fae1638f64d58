package sched

import (
	"time"

	"github.com/behrlich/reactor-rt/internal/trigger"
)

// CheckDeadline reports whether reaction r has missed its physical
// deadline: the lag between the current tag's physical time and the wall
// clock exceeds r.Deadline. When invokeHandler is true and a
// DeadlineHandler is set, it is invoked before returning.
func (rt *Runtime) CheckDeadline(r *trigger.Reaction, invokeHandler bool) bool {
	if r.Deadline <= 0 {
		return false
	}

	currentTag := rt.CurrentTag()
	tagAsTime := rt.epoch.Add(time.Duration(currentTag.Time))
	lag := rt.clock.Now().Sub(tagAsTime)

	if lag <= r.Deadline {
		return false
	}

	if invokeHandler && r.DeadlineHandler != nil {
		r.DeadlineHandler(rt)
	}
	if rt.tracer != nil {
		rt.tracer.ReactionDeadlineMissed(r, currentTag, lag)
	}
	return true
}
