// Package trigger defines the reactor graph's static data model: triggers
// (actions and timers), the events they produce on the event queue, ports,
// and reactions. Kept in one package because Trigger and Reaction reference
// each other; the root package re-exports these as its public surface.
package trigger

import (
	"sync/atomic"
	"time"

	"github.com/behrlich/reactor-rt/internal/tag"
	"github.com/behrlich/reactor-rt/internal/token"
)

// Kind identifies what kind of schedulable source a Trigger represents.
type Kind int

const (
	LogicalAction Kind = iota
	PhysicalAction
	Timer
	Startup
	Shutdown
)

func (k Kind) String() string {
	switch k {
	case LogicalAction:
		return "logical_action"
	case PhysicalAction:
		return "physical_action"
	case Timer:
		return "timer"
	case Startup:
		return "startup"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// SpacingPolicy controls what happens when a schedule call would violate a
// trigger's MinSpacing (minimum interarrival time, MIT).
type SpacingPolicy int

const (
	Drop SpacingPolicy = iota
	Defer
	Replace
)

// Reactor is a named owner of triggers and reactions. The runtime treats it
// as an opaque grouping for trace annotations and error context; the code
// generator is responsible for populating its Triggers/Reactions.
type Reactor struct {
	Name      string
	Triggers  []*Trigger
	Reactions []*Reaction
}

// Trigger describes a schedulable source: a logical or physical action, a
// timer, or a startup/shutdown pseudo-trigger.
type Trigger struct {
	Name             string
	Kind             Kind
	MinDelay         time.Duration
	MinSpacing       time.Duration // MIT; zero disables spacing enforcement
	SpacingPolicy    SpacingPolicy
	ElementSize      int
	LastTriggeredTag tag.Tag
	Reactions        []*Reaction
	Owner            *Reactor

	// Period is the re-arm interval for Kind == Timer; zero means one-shot.
	Period time.Duration
}

// NewTrigger constructs a trigger with LastTriggeredTag initialized to
// tag.Never, as required by the MIT bookkeeping in the scheduling
// primitives.
func NewTrigger(name string, kind Kind) *Trigger {
	return &Trigger{
		Name:             name,
		Kind:             kind,
		LastTriggeredTag: tag.Never,
	}
}

// ReactionStatus tracks where a reaction sits in the current tag's
// dispatch lifecycle.
type ReactionStatus int32

const (
	Inactive ReactionStatus = iota
	Queued
	Running
)

// ReactionCtx is the interface a reaction body uses to call back into the
// scheduler. Defined here (rather than imported from internal/sched) so
// that Trigger/Reaction do not need to import the scheduler package that
// in turn depends on them.
type ReactionCtx interface {
	Schedule(trig *Trigger, offset time.Duration) (int64, error)
	ScheduleInt(trig *Trigger, extraDelay time.Duration, value int) (int64, error)
	ScheduleToken(trig *Trigger, extraDelay time.Duration, tok *token.Token) (int64, error)
	ScheduleCopy(trig *Trigger, offset time.Duration, data []byte) (int64, error)
	ScheduleValue(trig *Trigger, extraDelay time.Duration, value any) (int64, error)
	CheckDeadline(r *Reaction, invokeHandler bool) bool
	RequestStop()
	STPOffset() time.Duration
	SetSTPOffset(d time.Duration)
	CurrentTag() tag.Tag
}

// Reaction is a statically known unit of work at a fixed topological Level.
type Reaction struct {
	Name    string
	Self    any
	Func    func(ctx ReactionCtx) error
	Level   uint32
	Deadline time.Duration
	// DeadlineHandler, if set, runs when CheckDeadline observes the
	// reaction's lag exceeding Deadline.
	DeadlineHandler func(ctx ReactionCtx)
	// ChainMask marks which independent reaction chains this reaction
	// belongs to; two same-level reactions may run concurrently only if
	// their masks are disjoint.
	ChainMask uint64

	TriggersItMaySchedule []*Trigger
	PortsItMaySet         []*Port

	isEnqueued atomic.Bool
	status     atomic.Int32
}

// IsEnqueued reports whether this reaction is currently sitting on the
// reaction queue for the current tag.
func (r *Reaction) IsEnqueued() bool { return r.isEnqueued.Load() }

// MarkEnqueued transitions the reaction into the queued state. Returns
// false if it was already enqueued (callers use this to enforce invariant 6:
// a reaction executes at most once per tag unless re-triggered).
func (r *Reaction) MarkEnqueued() bool {
	if r.isEnqueued.CompareAndSwap(false, true) {
		r.status.Store(int32(Queued))
		return true
	}
	return false
}

// MarkRunning transitions the reaction to Running.
func (r *Reaction) MarkRunning() { r.status.Store(int32(Running)) }

// MarkDone clears the enqueued flag and resets status to Inactive, making
// the reaction eligible to be queued again at a later tag.
func (r *Reaction) MarkDone() {
	r.status.Store(int32(Inactive))
	r.isEnqueued.Store(false)
}

// Status returns the reaction's current lifecycle status.
func (r *Reaction) Status() ReactionStatus { return ReactionStatus(r.status.Load()) }

// Port is an input or output port, present only during the tag in which it
// was set; it is reset at tag advance.
type Port struct {
	Name            string
	Value           any
	IsPresent       bool
	Token           *token.Token
	NumDestinations int
	Destructor      func(any)
	CopyCtor        func(any) any
}

// Reset clears presence state at tag advance, dropping this port's
// reference on its token if one was held.
func (p *Port) Reset() {
	if p.Token != nil {
		token.DecRef(p.Token)
	}
	p.Value = nil
	p.IsPresent = false
	p.Token = nil
}

// SetPresent marks the port present at the current tag without a payload,
// used for pure "signal" ports.
func (p *Port) SetPresent() {
	p.IsPresent = true
}

// Set publishes a plain value on the port.
func (p *Port) Set(value any) {
	p.Value = value
	p.IsPresent = true
}

// SetToken forwards a token to this port, taking a reference on behalf of
// each of its NumDestinations readers.
func (p *Port) SetToken(tok *token.Token) {
	if p.Token != nil {
		token.DecRef(p.Token)
	}
	p.Token = tok
	p.Value = tok.Value
	p.IsPresent = true
	for i := 0; i < p.NumDestinations; i++ {
		token.IncRef(tok)
	}
}

// SetDestructor installs the function used to free this port's value when a
// token it was set with is recycled with OkToFree == TokenAndValue. Every
// token allocated through SetNew/SetArray carries it forward.
func (p *Port) SetDestructor(fn func(any)) {
	p.Destructor = fn
}

// SetCopyConstructor installs the function SetArray uses to deep-copy an
// array-typed value into a port's backing token instead of aliasing the
// caller's buffer.
func (p *Port) SetCopyConstructor(fn func(any) any) {
	p.CopyCtor = fn
}

// SetNew publishes value on the port through a freshly allocated token,
// rather than one drawn from the size-bucketed pool, and marks it
// TokenAndValue so the Destructor runs when the last reader releases it.
func (p *Port) SetNew(value any, length int) *token.Token {
	tok := token.NewToken(length)
	tok.Value = value
	tok.OkToFree = token.TokenAndValue
	tok.Destructor = p.Destructor
	tok.CopyCtor = p.CopyCtor
	p.SetToken(tok)
	return tok
}

// SetArray publishes an array-typed value on the port, running the port's
// CopyCtor (if set) to deep-copy it into the new token rather than aliasing
// the caller's backing array; length is the element count backing the
// token's size-bucket choice.
func (p *Port) SetArray(value any, length int) *token.Token {
	tok := token.NewToken(length)
	if p.CopyCtor != nil {
		tok.Value = p.CopyCtor(value)
	} else {
		tok.Value = value
	}
	tok.OkToFree = token.TokenAndValue
	tok.Destructor = p.Destructor
	tok.CopyCtor = p.CopyCtor
	p.SetToken(tok)
	return tok
}

// Event is a record on the event queue.
type Event struct {
	Tag     tag.Tag
	Trigger *Trigger
	Token   *token.Token
	IsDummy bool
}

// NewDummySpacer constructs a placeholder event reserving an MIT slot; it
// carries no token and triggers no reactions on advance.
func NewDummySpacer(t tag.Tag, trig *Trigger) Event {
	return Event{Tag: t, Trigger: trig, IsDummy: true}
}
