package sched

import "github.com/behrlich/reactor-rt/internal/tag"

// RequestStop begins cooperative shutdown. With no federation adapter
// configured, the stop tag is the current tag: reactions already running
// or queued at the current tag still complete, but no event past it will
// be dispatched. With a federation adapter, the request is forwarded and
// the actual stop tag is whatever the federation later grants.
func (rt *Runtime) RequestStop() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.requestStopLocked()
}

func (rt *Runtime) requestStopLocked() {
	if rt.stopRequested {
		return
	}
	rt.stopRequested = true

	if rt.federation == nil {
		rt.stopTag = rt.currentTag
	} else {
		if err := rt.federation.SendStopRequest(); err != nil {
			rt.logError("federation stop request failed", "error", err)
			rt.stopTag = rt.currentTag
		} else {
			go rt.awaitFederatedStopTag()
		}
	}

	rt.eventQCond.Broadcast()
	rt.reactionQCond.Broadcast()
}

// awaitFederatedStopTag blocks on the federation adapter's coordinated
// stop tag and installs it once granted; run on its own goroutine since
// AwaitStopGranted may block on network I/O and must not hold the
// scheduler's critical section while doing so.
func (rt *Runtime) awaitFederatedStopTag() {
	granted, err := rt.federation.AwaitStopGranted()

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err != nil {
		rt.logError("federation stop grant failed, stopping at current tag", "error", err)
		granted = rt.currentTag
	}
	if tag.Before(granted, rt.stopTag) || rt.stopTag == tag.Forever {
		rt.stopTag = granted
	}
	rt.eventQCond.Broadcast()
	rt.reactionQCond.Broadcast()
}
