package sched

import (
	"context"
	"runtime"
	"time"

	"github.com/behrlich/reactor-rt/internal/trigger"
	"golang.org/x/sys/unix"
)

// workerLoop is the body of one worker goroutine: it repeatedly acquires a
// runnable reaction under the level-barrier/chain-mask discipline, runs it
// outside the critical section, and — when the reaction queue drains and
// no peer is running — advances the tag.
func (rt *Runtime) workerLoop(ctx context.Context, id int) error {
	if len(rt.config.WorkerCPUAffinity) == rt.effectiveWorkerCountUnlocked() {
		pinToCPU(rt.config.WorkerCPUAffinity[id])
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	for {
		if rt.terminated {
			return nil
		}
		select {
		case <-ctx.Done():
			rt.terminated = true
			rt.reactionQCond.Broadcast()
			return ctx.Err()
		default:
		}

		if r, ok := rt.acquireRunnableLocked(); ok {
			rt.mu.Unlock()
			rt.runReaction(r)
			rt.mu.Lock()
			rt.releaseRunningLocked(r)
			continue
		}

		if rt.reactionQueue.Len() == 0 && rt.runningCount == 0 {
			if rt.tracer != nil {
				rt.tracer.WorkerWaitStarts(id)
			}
			terminate := rt.tryAdvanceLocked()
			if rt.tracer != nil {
				rt.tracer.WorkerWaitEnds(id)
			}
			if terminate {
				rt.terminated = true
				rt.reactionQCond.Broadcast()
				return nil
			}
			continue
		}

		rt.reactionQCond.Wait()
	}
}

func (rt *Runtime) effectiveWorkerCountUnlocked() int {
	workers := rt.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return workers
}

// acquireRunnableLocked implements the level-barrier + EDF + chain-mask
// dispatch rule: only reactions at the current minimum queued level may
// begin, and among those, only ones whose ChainMask doesn't overlap any
// already-running reaction at that level.
func (rt *Runtime) acquireRunnableLocked() (*trigger.Reaction, bool) {
	head, ok := rt.reactionQueue.Peek()
	if !ok {
		return nil, false
	}

	if rt.runningCount > 0 && head.Level > rt.runningLevel {
		// A lower level is still draining; higher levels must wait at
		// the barrier.
		return nil, false
	}

	r, ok := rt.reactionQueue.PopMatching(func(r *trigger.Reaction) bool {
		if rt.runningCount > 0 && r.Level != rt.runningLevel {
			return false
		}
		if rt.runningCount > 0 && r.ChainMask&rt.runningChainMask != 0 {
			return false
		}
		return true
	})
	if !ok {
		return nil, false
	}

	if rt.runningCount == 0 {
		rt.runningLevel = r.Level
		rt.runningChainMask = 0
	}
	rt.runningCount++
	rt.runningChainMask |= r.ChainMask
	r.MarkRunning()
	return r, true
}

func (rt *Runtime) releaseRunningLocked(r *trigger.Reaction) {
	r.MarkDone()
	rt.runningCount--
	if rt.runningCount == 0 {
		rt.runningChainMask = 0
		rt.reactionQCond.Broadcast()
	}
}

// runReaction executes a reaction's body outside the critical section,
// timing it for the latency histogram and checking its deadline.
func (rt *Runtime) runReaction(r *trigger.Reaction) {
	if rt.tracer != nil {
		rt.tracer.ReactionStarts(r, rt.CurrentTag())
	}
	start := time.Now()

	missed := rt.CheckDeadline(r, true)

	if r.Func != nil {
		if err := r.Func(rt); err != nil {
			rt.logError("reaction returned error", "reaction", r.Name, "error", err)
		}
	}

	latency := uint64(time.Since(start).Nanoseconds())
	rt.observeReaction(r.Level, latency, missed)
	if rt.tracer != nil {
		rt.tracer.ReactionEnds(r, rt.CurrentTag())
	}
}

// pinToCPU pins the calling goroutine's OS thread to the given CPU,
// mirroring the teacher's queue-to-CPU round-robin assignment in
// runner.go: runtime.LockOSThread followed by SchedSetaffinity.
func pinToCPU(cpu int) {
	if cpu < 0 {
		return
	}
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	_ = unix.SchedSetaffinity(0, &set)
}
