// Package reactor is the public surface of a deterministic, reactor-style
// discrete-event execution engine: a graph of triggers and reactions
// advanced through a strictly ordered sequence of logical (time,
// microstep) tags by a level-barrier worker pool.
package reactor

import (
	"context"
	"time"

	"github.com/behrlich/reactor-rt/internal/interfaces"
	"github.com/behrlich/reactor-rt/internal/sched"
	"github.com/behrlich/reactor-rt/internal/tag"
	"github.com/behrlich/reactor-rt/internal/token"
	"github.com/behrlich/reactor-rt/internal/trace"
	"github.com/behrlich/reactor-rt/internal/trigger"
)

// Public re-exports of the graph data model, which lives in internal/trigger
// because Trigger and Reaction reference each other; this package is the
// one place callers (and the code generator) are meant to import from.
type (
	Reactor     = trigger.Reactor
	Trigger     = trigger.Trigger
	Reaction    = trigger.Reaction
	Port        = trigger.Port
	Event       = trigger.Event
	Kind        = trigger.Kind
	ReactionCtx = trigger.ReactionCtx
	Token       = token.Token
	Tag         = tag.Tag
)

const (
	LogicalAction  = trigger.LogicalAction
	PhysicalAction = trigger.PhysicalAction
	Timer          = trigger.Timer
	Startup        = trigger.Startup
	Shutdown       = trigger.Shutdown
)

const (
	Drop    = trigger.Drop
	Defer   = trigger.Defer
	Replace = trigger.Replace
)

var (
	NewTrigger      = trigger.NewTrigger
	NewDummySpacer  = trigger.NewDummySpacer
	NewToken        = token.NewToken
	InitializeToken = token.InitializeWithValue
)

// RuntimeConfig configures a Runtime, mirroring the teacher's
// DeviceParams/Options split: fixed shape (timeout, worker count) plus
// optional collaborators passed separately to CreateAndRun.
type RuntimeConfig struct {
	// Timeout bounds logical-time execution; zero means run until the
	// event queue drains (or, with Keepalive, run indefinitely).
	Timeout time.Duration
	// FastMode runs the clock as fast as events allow. When false (the
	// default), the scheduler paces logical-time advancement to the wall
	// clock instead of racing ahead of it.
	FastMode bool
	// Workers is the number of worker goroutines; <=0 means
	// runtime.NumCPU().
	Workers int
	// Keepalive keeps the runtime alive with an empty event queue,
	// waiting for an external physical action instead of terminating.
	Keepalive bool
	// STPOffset is the safe-to-process offset, readable and settable from
	// reactions; the scheduler does not apply it to event timestamps.
	STPOffset time.Duration
	// WorkerCPUAffinity pins worker i to WorkerCPUAffinity[i] when
	// non-empty and len(WorkerCPUAffinity) == Workers.
	WorkerCPUAffinity []int
}

// DefaultRuntimeConfig returns a sensible default configuration.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{}
}

func (c RuntimeConfig) toSchedConfig() *sched.Config {
	return &sched.Config{
		Timeout:           c.Timeout,
		FastMode:          c.FastMode,
		Workers:           c.Workers,
		Keepalive:         c.Keepalive,
		STPOffset:         c.STPOffset,
		WorkerCPUAffinity: c.WorkerCPUAffinity,
	}
}

// Clock abstracts physical time, letting tests substitute a MockClock for
// wall-clock time in physical-action and deadline computations.
type Clock interface {
	Now() time.Time
}

// Logger is the subset of logging.Logger's API Options accepts.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Tracer is the opaque tracing call-out surface described in the tracing
// section of this module's design; pass nil to disable tracing entirely.
type Tracer = interfaces.Tracer

// FederationAdapter is the opaque collaborator for federated execution
// across independently scheduled runtimes.
type FederationAdapter = interfaces.FederationAdapter

// Options contains the optional collaborators a Runtime is built with.
type Options struct {
	// Context is the fallback Run uses when called with a nil context (if
	// Context is also nil, Run falls back further to context.Background()).
	Context context.Context

	// Clock substitutes physical time; nil uses the wall clock.
	Clock Clock

	// Logger for debug/info/warn/error messages (if nil, no logging).
	Logger Logger

	// Observer for metrics collection (if nil, uses no-op observer).
	Observer Observer

	// Tracer records the scheduler's lifecycle call-outs (if nil,
	// tracing is disabled).
	Tracer Tracer

	// Federation coordinates tag advancement with remote runtimes (if
	// nil, this runtime executes standalone).
	Federation FederationAdapter
}

// Runtime wraps the internal scheduler, exposing only the public data
// model and the lifecycle entry points a generated main() calls.
type Runtime struct {
	inner       *sched.Runtime
	fallbackCtx context.Context
}

// NewRuntime constructs a Runtime from the given config and collaborators
// without starting it; callers add reactors with AddReactor, then call Run
// (directly, or via CreateAndRun).
func NewRuntime(cfg RuntimeConfig, opts Options) *Runtime {
	var clock interfaces.Clock
	if opts.Clock != nil {
		clock = opts.Clock
	}
	var logger interfaces.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	}
	var observer interfaces.Observer
	if opts.Observer != nil {
		observer = opts.Observer
	}

	inner := sched.NewRuntime(cfg.toSchedConfig(), sched.Options{
		Clock:      clock,
		Logger:     logger,
		Observer:   observer,
		Tracer:     opts.Tracer,
		Federation: opts.Federation,
	})
	return &Runtime{inner: inner, fallbackCtx: opts.Context}
}

// AddReactor registers a reactor's triggers and reactions with the
// runtime.
func (rt *Runtime) AddReactor(r *Reactor) { rt.inner.AddReactor(r) }

// CurrentTag returns the scheduler's current logical tag.
func (rt *Runtime) CurrentTag() Tag { return rt.inner.CurrentTag() }

// RequestStop begins cooperative shutdown.
func (rt *Runtime) RequestStop() { rt.inner.RequestStop() }

// Run drives the scheduler to completion, blocking until the event queue
// drains past the configured stop tag, the context is cancelled, or a
// fatal worker error occurs.
func (rt *Runtime) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = rt.fallbackCtx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return rt.inner.Run(ctx)
}

// CreateAndRun builds a Runtime from cfg and opts, registers every reactor,
// and runs it to completion — the main entry point for a generated
// program's main(), mirroring the teacher's CreateAndServe.
func CreateAndRun(ctx context.Context, cfg RuntimeConfig, opts Options, reactors ...*Reactor) error {
	rt := NewRuntime(cfg, opts)
	for _, r := range reactors {
		rt.AddReactor(r)
	}
	return rt.Run(ctx)
}

// StopAndWait requests a cooperative stop and blocks until runErr (the
// channel a caller's Run goroutine reports on) resolves or ctx expires,
// mirroring the teacher's StopAndDelete shutdown sequencing.
func StopAndWait(ctx context.Context, rt *Runtime, runErr <-chan error) error {
	rt.RequestStop()
	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NewTracer constructs a binary-trace-writing Tracer over sink, using
// epoch as the reference point for physical timestamps; pass the result as
// Options.Tracer.
func NewTracer(sink trace.Sink, epoch time.Time) Tracer {
	return trace.NewTracer(sink, epoch)
}

// NewTraceWriter constructs a Sink that marshals trace records to the
// module's documented binary layout.
func NewTraceWriter(w interface {
	Write(p []byte) (int, error)
}, startTimeNs int64, descriptions map[uintptr]string) trace.Sink {
	return trace.NewWriter(w, startTimeNs, descriptions)
}
