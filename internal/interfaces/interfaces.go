// Package interfaces holds the scheduler-internal Logger/Observer/Clock/
// Tracer/FederationAdapter contracts, kept separate from their public
// counterparts in the root package to avoid a circular import (the root
// package depends on internal/sched, so internal/sched cannot depend back
// on the root package's concrete types).
package interfaces

import (
	"time"

	"github.com/behrlich/reactor-rt/internal/tag"
	"github.com/behrlich/reactor-rt/internal/trigger"
)

// Logger is the subset of logging.Logger's API the scheduler depends on.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Observer is the subset of the public Observer the scheduler depends on.
type Observer interface {
	ObserveReaction(level uint32, latencyNs uint64, missedDeadline bool)
	ObserveScheduleDropped(byMIT bool)
	ObserveScheduled()
	ObserveQueueDepth(depth uint32)
	ObserveTick(latencyNs uint64)
}

// Clock abstracts physical time for physical actions and deadline checks.
type Clock interface {
	Now() time.Time
}

// Tracer is the opaque tracing call-out surface; a nil Tracer means
// tracing is disabled for that Runtime.
type Tracer interface {
	ReactionStarts(r *trigger.Reaction, t tag.Tag)
	ReactionEnds(r *trigger.Reaction, t tag.Tag)
	ReactionDeadlineMissed(r *trigger.Reaction, t tag.Tag, lag time.Duration)
	ScheduleCalled(trig *trigger.Trigger, t tag.Tag)
	UserEvent(name string)
	UserValue(name string, value float64)
	WorkerWaitStarts(workerID int)
	WorkerWaitEnds(workerID int)
	SchedulerAdvancingTimeStarts(t tag.Tag)
	SchedulerAdvancingTimeEnds(t tag.Tag)
}

// FederationAdapter is the opaque collaborator for federated execution.
type FederationAdapter interface {
	NotifyNextEvent(t tag.Tag)
	WaitForTag(t tag.Tag) (tag.Tag, error)
	SendStopRequest() error
	AwaitStopGranted() (tag.Tag, error)
}
