// Package sched implements the tag-ordered scheduler: the schedule
// primitives, tag advancement, the level-barrier/EDF/chain-mask worker
// pool, deadline checking, and cooperative stop — the core runtime
// described by the system's data model.
package sched

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/behrlich/reactor-rt/internal/interfaces"
	"github.com/behrlich/reactor-rt/internal/queue"
	"github.com/behrlich/reactor-rt/internal/tag"
	"github.com/behrlich/reactor-rt/internal/token"
	"github.com/behrlich/reactor-rt/internal/trigger"
	"golang.org/x/sync/errgroup"
)

// Options bundles the optional collaborators a Runtime is built with,
// following the teacher's Options{Context, Logger, Observer} pattern.
type Options struct {
	Clock      interfaces.Clock
	Logger     interfaces.Logger
	Observer   interfaces.Observer
	Tracer     interfaces.Tracer
	Federation interfaces.FederationAdapter
}

// Runtime is the scheduler's single critical section plus the queues and
// worker pool it guards.
type Runtime struct {
	mu            sync.Mutex
	eventQCond    *sync.Cond
	reactionQCond *sync.Cond

	eventQueue    *queue.EventQueue
	reactionQueue *queue.ReactionQueue

	currentTag    tag.Tag
	stopRequested bool
	stopTag       tag.Tag
	terminated    bool
	shutdownFired bool

	// Level-barrier + chain-mask bookkeeping for in-flight reactions.
	runningCount     int
	runningLevel     uint32
	runningChainMask uint64

	scheduleCounter atomic.Int64

	epoch      time.Time
	clock      interfaces.Clock
	logger     interfaces.Logger
	observer   interfaces.Observer
	tracer     interfaces.Tracer
	federation interfaces.FederationAdapter

	config Config

	reactors []*trigger.Reactor
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now() }

// NewRuntime constructs a Runtime from the given config (nil uses
// DefaultConfig) and collaborators.
func NewRuntime(cfg *Config, opts Options) *Runtime {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rt := &Runtime{
		eventQueue:    queue.NewEventQueue(),
		reactionQueue: queue.NewReactionQueue(),
		config:        *cfg,
		clock:         opts.Clock,
		logger:        opts.Logger,
		observer:      opts.Observer,
		tracer:        opts.Tracer,
		federation:    opts.Federation,
		epoch:         time.Now(),
	}
	if rt.clock == nil {
		rt.clock = wallClock{}
	}
	rt.eventQCond = sync.NewCond(&rt.mu)
	rt.reactionQCond = sync.NewCond(&rt.mu)

	// stopTag defaults to Forever: with no configured Timeout, the runtime
	// keeps advancing until the event queue drains (or, with Keepalive,
	// indefinitely). A positive Timeout bounds it regardless of Keepalive.
	rt.stopTag = tag.Forever
	if cfg.Timeout > 0 {
		rt.stopTag = tag.AddInterval(tag.Tag{}, cfg.Timeout)
	}

	return rt
}

// AddReactor registers a reactor's triggers and reactions with the
// runtime. It only records the reactor; InitializeTriggerObjects arms its
// timers and queues its startup events.
func (rt *Runtime) AddReactor(r *trigger.Reactor) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.reactors = append(rt.reactors, r)
}

// InitializeTriggerObjects populates the event queue with every armed
// timer and the startup reactions for every registered reactor, mirroring
// the code generator's graph-initialization call-out.
func (rt *Runtime) InitializeTriggerObjects() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	for _, r := range rt.reactors {
		for _, trig := range r.Triggers {
			switch trig.Kind {
			case trigger.Timer:
				t := tag.AddInterval(tag.Tag{}, trig.MinDelay)
				rt.eventQueue.Push(trigger.Event{Tag: t, Trigger: trig})
				trig.LastTriggeredTag = t
			case trigger.Startup:
				rt.eventQueue.Push(trigger.Event{Tag: tag.Tag{}, Trigger: trig})
			}
		}
	}
}

// Logger returns the configured logger, or nil.
func (rt *Runtime) Logger() interfaces.Logger { return rt.logger }

// Metrics-adjacent helpers used by schedule.go/advance.go/worker.go.

func (rt *Runtime) observeReaction(level uint32, latencyNs uint64, missed bool) {
	if rt.observer != nil {
		rt.observer.ObserveReaction(level, latencyNs, missed)
	}
}

func (rt *Runtime) observeScheduled() {
	if rt.observer != nil {
		rt.observer.ObserveScheduled()
	}
}

func (rt *Runtime) observeDropped(byMIT bool) {
	if rt.observer != nil {
		rt.observer.ObserveScheduleDropped(byMIT)
	}
}

func (rt *Runtime) observeQueueDepth(depth uint32) {
	if rt.observer != nil {
		rt.observer.ObserveQueueDepth(depth)
	}
}

func (rt *Runtime) observeTick(latencyNs uint64) {
	if rt.observer != nil {
		rt.observer.ObserveTick(latencyNs)
	}
}

func (rt *Runtime) logDebug(msg string, args ...any) {
	if rt.logger != nil {
		rt.logger.Debug(msg, args...)
	}
}

func (rt *Runtime) logError(msg string, args ...any) {
	if rt.logger != nil {
		rt.logger.Error(msg, args...)
	}
}

// CurrentTag returns the scheduler's current logical tag.
func (rt *Runtime) CurrentTag() tag.Tag {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.currentTag
}

// STPOffset returns the configured safe-to-process offset.
func (rt *Runtime) STPOffset() time.Duration {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.config.STPOffset
}

// SetSTPOffset updates the safe-to-process offset.
func (rt *Runtime) SetSTPOffset(d time.Duration) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.config.STPOffset = d
}

var _ trigger.ReactionCtx = (*Runtime)(nil)

// Run drives the scheduler to completion: it initializes the graph,
// starts the worker pool, and blocks until every worker has terminated
// (event queue drained past StopTag, or a fatal worker error). Workers
// are supervised with an errgroup, collecting the first fatal error and
// cancelling ctx for the rest, the same "spawn N, wait, propagate first
// error" shape the teacher expresses by hand in StopAndDelete.
func (rt *Runtime) Run(ctx context.Context) error {
	rt.InitializeTriggerObjects()

	workers := rt.config.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			return rt.workerLoop(gctx, i)
		})
	}

	// A watcher goroutine requests a stop on context cancellation so
	// blocked workers (including one parked in a Keepalive wait with no
	// queued event) observe the cancellation promptly and unwind through
	// the same stop-tag machinery RequestStop uses, mirroring the
	// teacher's ioLoop ctx.Done() select pattern.
	done := make(chan struct{})
	go func() {
		select {
		case <-gctx.Done():
			rt.mu.Lock()
			rt.requestStopLocked()
			rt.mu.Unlock()
		case <-done:
		}
	}()

	err := g.Wait()
	close(done)
	return err
}
