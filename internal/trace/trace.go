// Package trace implements the scheduler's opaque tracing call-outs and a
// binary trace-file writer, grounded on the teacher's explicit
// struct-to-wire marshaling in internal/uapi/marshal.go.
package trace

import (
	"sync"
	"time"
	"unsafe"

	"github.com/behrlich/reactor-rt/internal/tag"
	"github.com/behrlich/reactor-rt/internal/trigger"
)

// EventType identifies the kind of trace record, mirroring the teacher's
// small closed enum of wire command types.
type EventType int32

const (
	EventReactionStarts EventType = iota
	EventReactionEnds
	EventReactionDeadlineMissed
	EventScheduleCalled
	EventUserEvent
	EventUserValue
	EventWorkerWaitStarts
	EventWorkerWaitEnds
	EventSchedulerAdvancingTimeStarts
	EventSchedulerAdvancingTimeEnds
	EventFederatedSend
	EventFederatedReceive
)

// Record is one trace frame's decoded form, the in-memory counterpart of
// the wire layout documented in binary.go.
type Record struct {
	EventType    EventType
	Pointer      uintptr
	SrcID        int32
	DstID        int32
	LogicalTime  int64
	Microstep    uint32
	PhysicalTime int64
	Trigger      uintptr
	ExtraDelay   int64
}

// Tracer accumulates Records and hands them to a Sink as they occur. A nil
// *Tracer is not valid; callers that want tracing disabled should leave the
// Runtime's Tracer option nil entirely, which short-circuits every call-out
// before it reaches this package.
type Tracer struct {
	mu    sync.Mutex
	sink  Sink
	epoch time.Time
	descs map[uintptr]string

	internMu    sync.Mutex
	internTable map[string]int32
	internNext  int32
}

// Sink receives completed Records, typically a *Writer wrapping an
// io.Writer, or a test double that just appends to a slice.
type Sink interface {
	Write(Record)
}

// NewTracer constructs a Tracer that forwards every record to sink, using
// epoch as the reference point for PhysicalTime.
func NewTracer(sink Sink, epoch time.Time) *Tracer {
	return &Tracer{
		sink:        sink,
		epoch:       epoch,
		descs:       make(map[uintptr]string),
		internTable: make(map[string]int32),
	}
}

// Describe registers a human-readable label for a pointer identity (a
// trigger or reaction address), emitted once in the trace file's header
// table rather than repeated per frame.
func (tr *Tracer) Describe(ptr uintptr, description string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.descs[ptr] = description
}

// Descriptions returns a copy of the accumulated pointer->description
// table, which a caller can pass to NewWriter as its header table.
func (tr *Tracer) Descriptions() map[uintptr]string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	out := make(map[uintptr]string, len(tr.descs))
	for k, v := range tr.descs {
		out[k] = v
	}
	return out
}

func (tr *Tracer) emit(r Record) {
	if tr.sink == nil {
		return
	}
	r.PhysicalTime = time.Since(tr.epoch).Nanoseconds()
	tr.mu.Lock()
	tr.sink.Write(r)
	tr.mu.Unlock()
}

func reactionPtr(r *trigger.Reaction) uintptr {
	return uintptr(unsafe.Pointer(r))
}

func triggerPtr(t *trigger.Trigger) uintptr {
	return uintptr(unsafe.Pointer(t))
}

func (tr *Tracer) ReactionStarts(r *trigger.Reaction, t tag.Tag) {
	tr.emit(Record{EventType: EventReactionStarts, Pointer: reactionPtr(r), LogicalTime: t.Time, Microstep: t.Microstep})
}

func (tr *Tracer) ReactionEnds(r *trigger.Reaction, t tag.Tag) {
	tr.emit(Record{EventType: EventReactionEnds, Pointer: reactionPtr(r), LogicalTime: t.Time, Microstep: t.Microstep})
}

func (tr *Tracer) ReactionDeadlineMissed(r *trigger.Reaction, t tag.Tag, lag time.Duration) {
	tr.emit(Record{
		EventType:   EventReactionDeadlineMissed,
		Pointer:     reactionPtr(r),
		LogicalTime: t.Time,
		Microstep:   t.Microstep,
		ExtraDelay:  int64(lag),
	})
}

func (tr *Tracer) ScheduleCalled(trig *trigger.Trigger, t tag.Tag) {
	tr.emit(Record{EventType: EventScheduleCalled, Pointer: triggerPtr(trig), Trigger: triggerPtr(trig), LogicalTime: t.Time, Microstep: t.Microstep})
}

func (tr *Tracer) UserEvent(name string) {
	tr.emit(Record{EventType: EventUserEvent, SrcID: tr.internString(name)})
}

func (tr *Tracer) UserValue(name string, value float64) {
	tr.emit(Record{EventType: EventUserValue, SrcID: tr.internString(name), ExtraDelay: int64(value)})
}

func (tr *Tracer) WorkerWaitStarts(workerID int) {
	tr.emit(Record{EventType: EventWorkerWaitStarts, SrcID: int32(workerID)})
}

func (tr *Tracer) WorkerWaitEnds(workerID int) {
	tr.emit(Record{EventType: EventWorkerWaitEnds, SrcID: int32(workerID)})
}

func (tr *Tracer) SchedulerAdvancingTimeStarts(t tag.Tag) {
	tr.emit(Record{EventType: EventSchedulerAdvancingTimeStarts, LogicalTime: t.Time, Microstep: t.Microstep})
}

func (tr *Tracer) SchedulerAdvancingTimeEnds(t tag.Tag) {
	tr.emit(Record{EventType: EventSchedulerAdvancingTimeEnds, LogicalTime: t.Time, Microstep: t.Microstep})
}

// FederatedSend records a federation send event, srcID/dstID identifying
// the local and remote federate.
func (tr *Tracer) FederatedSend(srcID, dstID int32, t tag.Tag) {
	tr.emit(Record{EventType: EventFederatedSend, SrcID: srcID, DstID: dstID, LogicalTime: t.Time, Microstep: t.Microstep})
}

// FederatedReceive records a federation receive event.
func (tr *Tracer) FederatedReceive(srcID, dstID int32, t tag.Tag) {
	tr.emit(Record{EventType: EventFederatedReceive, SrcID: srcID, DstID: dstID, LogicalTime: t.Time, Microstep: t.Microstep})
}

// internString assigns each distinct user-event/value name a small stable
// integer, interned per Tracer instance rather than globally so that
// concurrent test Tracers never share state.
func (tr *Tracer) internString(name string) int32 {
	tr.internMu.Lock()
	defer tr.internMu.Unlock()
	if id, ok := tr.internTable[name]; ok {
		return id
	}
	id := tr.internNext
	tr.internNext++
	tr.internTable[name] = id
	return id
}
