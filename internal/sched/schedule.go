package sched

import (
	"time"

	"github.com/behrlich/reactor-rt/internal/tag"
	"github.com/behrlich/reactor-rt/internal/token"
	"github.com/behrlich/reactor-rt/internal/trigger"
)

// errNilTrigger is what every Schedule* call returns for a nil trigger. It
// is a plain error, not the root package's *Error.
type schedError struct{ msg string }

func (e *schedError) Error() string { return e.msg }

var errNilTrigger = &schedError{msg: "schedule: nil trigger"}

// Schedule inserts a future event for trig with no payload.
func (rt *Runtime) Schedule(trig *trigger.Trigger, offset time.Duration) (int64, error) {
	return rt.ScheduleToken(trig, offset, nil)
}

// ScheduleInt schedules trig carrying an int value.
func (rt *Runtime) ScheduleInt(trig *trigger.Trigger, extraDelay time.Duration, value int) (int64, error) {
	return rt.ScheduleValue(trig, extraDelay, value)
}

// ScheduleValue schedules trig carrying an arbitrary value, wrapping it in
// a freshly pooled token.
func (rt *Runtime) ScheduleValue(trig *trigger.Trigger, extraDelay time.Duration, value any) (int64, error) {
	if trig == nil {
		return 0, errNilTrigger
	}
	tok := token.InitializeWithValue(nil, value, trig.ElementSize)
	return rt.ScheduleToken(trig, extraDelay, tok)
}

// ScheduleCopy schedules trig carrying a defensive copy of data.
func (rt *Runtime) ScheduleCopy(trig *trigger.Trigger, offset time.Duration, data []byte) (int64, error) {
	if trig == nil {
		return 0, errNilTrigger
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	tok := token.InitializeWithValue(nil, cp, len(cp))
	return rt.ScheduleToken(trig, offset, tok)
}

// ScheduleToken is the primitive all other schedule_* calls funnel into.
// On success it returns a positive monotonic handle and takes ownership
// of one reference on tok (the event queue becomes that reference's
// holder). On an intentional drop it releases that reference via
// token.DecRef and returns (0, nil). tok may be nil for signal-only
// triggers.
func (rt *Runtime) ScheduleToken(trig *trigger.Trigger, extraDelay time.Duration, tok *token.Token) (int64, error) {
	if trig == nil {
		if tok != nil {
			token.DecRef(tok)
		}
		return 0, errNilTrigger
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	eventTag := rt.computeEventTagLocked(trig, extraDelay)

	if dropped := rt.checkStopDropLocked(eventTag, trig.MinDelay+extraDelay); dropped {
		rt.dropLocked(tok, false)
		return 0, nil
	}

	if trig.MinSpacing > 0 {
		earliest := tag.AddInterval(trig.LastTriggeredTag, trig.MinSpacing)
		if tag.Before(eventTag, earliest) {
			switch trig.SpacingPolicy {
			case trigger.Drop:
				rt.dropLocked(tok, true)
				return 0, nil
			case trigger.Defer:
				eventTag = earliest
			case trigger.Replace:
				removed := rt.eventQueue.RemoveMatching(func(ev trigger.Event) bool {
					return ev.Trigger == trig && tag.AfterOrEqual(ev.Tag, rt.currentTag)
				})
				for _, ev := range removed {
					token.DecRef(ev.Token)
				}
				if tag.Before(eventTag, earliest) {
					eventTag = earliest
				}
			}
		}
	}

	for rt.eventQueue.HasEventFor(trig, eventTag) {
		eventTag = tag.Delay(eventTag, 0)
	}

	rt.eventQueue.Push(trigger.Event{Tag: eventTag, Trigger: trig, Token: tok})
	trig.LastTriggeredTag = eventTag
	rt.observeScheduled()
	if rt.tracer != nil {
		rt.tracer.ScheduleCalled(trig, eventTag)
	}
	rt.eventQCond.Broadcast()

	return rt.scheduleCounter.Add(1), nil
}

func (rt *Runtime) dropLocked(tok *token.Token, byMIT bool) {
	if tok != nil {
		token.DecRef(tok)
	}
	rt.observeDropped(byMIT)
}

// checkStopDropLocked reports whether this schedule call must be dropped
// because a stop is in progress: any call with a positive effective delay
// is refused once stop is requested, and any call whose resulting tag
// would exceed StopTag is refused unconditionally.
func (rt *Runtime) checkStopDropLocked(eventTag tag.Tag, delay time.Duration) bool {
	if rt.stopRequested && delay > 0 {
		return true
	}
	if tag.Compare(eventTag, rt.stopTag) > 0 {
		return true
	}
	return false
}

func (rt *Runtime) computeEventTagLocked(trig *trigger.Trigger, extraDelay time.Duration) tag.Tag {
	switch trig.Kind {
	case trigger.PhysicalAction:
		physTime := rt.clock.Now().Sub(rt.epoch).Nanoseconds()
		earliest := rt.currentTag.Time + int64(trig.MinDelay) + int64(extraDelay)
		if physTime < earliest {
			physTime = earliest
		}
		return tag.Tag{Time: physTime, Microstep: 0}
	case trigger.Timer:
		return tag.AddInterval(trig.LastTriggeredTag, trig.Period)
	default: // LogicalAction, Startup, Shutdown
		return tag.Delay(rt.currentTag, trig.MinDelay+extraDelay)
	}
}
