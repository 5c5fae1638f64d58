package sched

import (
	"time"

	"github.com/behrlich/reactor-rt/internal/tag"
	"github.com/behrlich/reactor-rt/internal/token"
	"github.com/behrlich/reactor-rt/internal/trigger"
)

// maxPaceChunk bounds how long tryAdvanceLocked sleeps in one stretch while
// pacing logical time to the wall clock (FastMode disabled): a request to
// stop, or a newly scheduled earlier event, is noticed within one chunk
// instead of only after the full wait.
const maxPaceChunk = 50 * time.Millisecond

// tryAdvanceLocked implements nextTag() + advancement from §6.5. It must
// only be called when the reaction queue is empty and no reaction is
// running (invariant 2: the reaction queue is empty whenever the
// scheduler advances). It returns true when the runtime should terminate.
// mu is held throughout except while blocked on eventQCond, while waiting
// on the federation adapter, or while sleeping to pace against the wall
// clock.
func (rt *Runtime) tryAdvanceLocked() (terminate bool) {
	// finish fires the shutdown reactions once, the first time termination
	// is decided, and reports false while they still have to run.
	finish := func() bool {
		if !rt.shutdownFired {
			rt.shutdownFired = true
			rt.fireShutdownLocked()
			if rt.reactionQueue.Len() > 0 {
				rt.reactionQCond.Broadcast()
				return false
			}
		}
		return true
	}
	for {
		if rt.stopRequested && tag.AfterOrEqual(rt.currentTag, rt.stopTag) {
			return finish()
		}

		headTag, ok := rt.eventQueue.PeekHeadTag()
		if !ok {
			switch {
			case rt.federation != nil:
				rt.mu.Unlock()
				granted, err := rt.federation.WaitForTag(rt.currentTag)
				rt.mu.Lock()
				if err != nil {
					rt.logError("federation adapter error, requesting stop", "error", err)
					rt.requestStopLocked()
					continue
				}
				headTag, ok = granted, true
			case rt.config.Keepalive:
				rt.eventQCond.Wait()
				continue
			default:
				return finish()
			}
		}

		if tag.Compare(headTag, rt.stopTag) > 0 {
			return finish()
		}

		if !rt.config.FastMode {
			target := headTag.AsTime(rt.epoch)
			if now := rt.clock.Now(); now.Before(target) {
				wait := target.Sub(now)
				if wait > maxPaceChunk {
					wait = maxPaceChunk
				}
				rt.mu.Unlock()
				time.Sleep(wait)
				rt.mu.Lock()
				continue
			}
		}

		if rt.tracer != nil {
			rt.tracer.SchedulerAdvancingTimeStarts(headTag)
		}
		rt.doAdvanceLocked(headTag)
		if rt.tracer != nil {
			rt.tracer.SchedulerAdvancingTimeEnds(headTag)
		}
		return false
	}
}

// doAdvanceLocked moves current_tag to next, pops and dispatches every
// event queued at that tag, and re-arms periodic timers.
func (rt *Runtime) doAdvanceLocked(next tag.Tag) {
	rt.currentTag = next

	if rt.federation != nil {
		rt.federation.NotifyNextEvent(next)
	}

	events := rt.eventQueue.PopAllAtTag(next)
	for _, ev := range events {
		if !ev.IsDummy {
			for _, r := range ev.Trigger.Reactions {
				if r.MarkEnqueued() {
					rt.reactionQueue.Push(r)
				}
			}
			if ev.Trigger.Kind == trigger.Timer && ev.Trigger.Period > 0 {
				rt.rearmTimerLocked(ev.Trigger)
			}
		}
		token.DecRef(ev.Token)
	}

	rt.observeQueueDepth(uint32(rt.reactionQueue.Len()))
	if rt.reactionQueue.Len() > 0 {
		rt.reactionQCond.Broadcast()
	}
}

// fireShutdownLocked enqueues every registered Shutdown-kind trigger's
// reactions at the final tag, run once termination is otherwise decided.
func (rt *Runtime) fireShutdownLocked() {
	for _, reactor := range rt.reactors {
		for _, trig := range reactor.Triggers {
			if trig.Kind != trigger.Shutdown {
				continue
			}
			for _, r := range trig.Reactions {
				if r.MarkEnqueued() {
					rt.reactionQueue.Push(r)
				}
			}
		}
	}
	rt.observeQueueDepth(uint32(rt.reactionQueue.Len()))
}

func (rt *Runtime) rearmTimerLocked(trig *trigger.Trigger) {
	next := tag.AddInterval(trig.LastTriggeredTag, trig.Period)
	rt.eventQueue.Push(trigger.Event{Tag: next, Trigger: trig})
	trig.LastTriggeredTag = next
}
