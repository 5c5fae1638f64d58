// Package queue implements the event queue and reaction queue as
// container/heap min-heaps, following the []T-implements-heap.Interface
// shape used for the runner-up teacher's timer heap.
package queue

import (
	"container/heap"
	"unsafe"

	"github.com/behrlich/reactor-rt/internal/tag"
	"github.com/behrlich/reactor-rt/internal/trigger"
)

// eventHeap orders events by Tag, breaking ties by trigger pointer identity
// for a deterministic total order among same-tag events from different
// triggers.
type eventHeap []trigger.Event

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if c := tag.Compare(h[i].Tag, h[j].Tag); c != 0 {
		return c < 0
	}
	return uintptr(unsafe.Pointer(h[i].Trigger)) < uintptr(unsafe.Pointer(h[j].Trigger))
}

func (h eventHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *eventHeap) Push(x any) { *h = append(*h, x.(trigger.Event)) }

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// EventQueue is a tag-ordered min-heap of scheduled events.
type EventQueue struct {
	items eventHeap
}

// NewEventQueue returns an empty event queue.
func NewEventQueue() *EventQueue {
	return &EventQueue{}
}

// Len returns the number of queued events.
func (q *EventQueue) Len() int { return q.items.Len() }

// Push inserts an event in tag order.
func (q *EventQueue) Push(ev trigger.Event) {
	heap.Push(&q.items, ev)
}

// Pop removes and returns the earliest-tagged event.
func (q *EventQueue) Pop() (trigger.Event, bool) {
	if q.items.Len() == 0 {
		return trigger.Event{}, false
	}
	return heap.Pop(&q.items).(trigger.Event), true
}

// PeekHeadTag returns the tag of the earliest-queued event without
// removing it. Used by tag advancement (invariant 1: head tag >=
// current_tag at all times).
func (q *EventQueue) PeekHeadTag() (tag.Tag, bool) {
	if q.items.Len() == 0 {
		return tag.Tag{}, false
	}
	return q.items[0].Tag, true
}

// PopAllAtTag removes and returns every queued event whose tag equals t.
func (q *EventQueue) PopAllAtTag(t tag.Tag) []trigger.Event {
	var result []trigger.Event
	for q.items.Len() > 0 && tag.Compare(q.items[0].Tag, t) == 0 {
		result = append(result, heap.Pop(&q.items).(trigger.Event))
	}
	return result
}

// HasEventFor reports whether an event for trig is already queued at tag t,
// used by the schedule primitives' same-tag coexistence check.
func (q *EventQueue) HasEventFor(trig *trigger.Trigger, t tag.Tag) bool {
	for _, ev := range q.items {
		if ev.Trigger == trig && tag.Compare(ev.Tag, t) == 0 {
			return true
		}
	}
	return false
}

// RemoveMatching removes and returns every queued event for which pred
// returns true, re-heapifying the remainder. Used by the Replace spacing
// policy to cancel a trigger's previously queued event before inserting
// its replacement.
func (q *EventQueue) RemoveMatching(pred func(trigger.Event) bool) []trigger.Event {
	var removed []trigger.Event
	var kept eventHeap
	for _, ev := range q.items {
		if pred(ev) {
			removed = append(removed, ev)
		} else {
			kept = append(kept, ev)
		}
	}
	q.items = kept
	heap.Init(&q.items)
	return removed
}

// reactionHeap orders reactions by Level primary, Deadline secondary
// (earliest-deadline-first among same-level reactions).
type reactionHeap []*trigger.Reaction

func (h reactionHeap) Len() int { return len(h) }

func (h reactionHeap) Less(i, j int) bool {
	if h[i].Level != h[j].Level {
		return h[i].Level < h[j].Level
	}
	return h[i].Deadline < h[j].Deadline
}

func (h reactionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *reactionHeap) Push(x any) { *h = append(*h, x.(*trigger.Reaction)) }

func (h *reactionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ReactionQueue is a level-then-deadline-ordered min-heap of runnable
// reactions for the current tag.
type ReactionQueue struct {
	items reactionHeap
}

// NewReactionQueue returns an empty reaction queue.
func NewReactionQueue() *ReactionQueue {
	return &ReactionQueue{}
}

// Len returns the number of queued reactions.
func (q *ReactionQueue) Len() int { return q.items.Len() }

// Push inserts a reaction in level/deadline order.
func (q *ReactionQueue) Push(r *trigger.Reaction) {
	heap.Push(&q.items, r)
}

// Pop removes and returns the highest-priority reaction (lowest level,
// earliest deadline).
func (q *ReactionQueue) Pop() (*trigger.Reaction, bool) {
	if q.items.Len() == 0 {
		return nil, false
	}
	return heap.Pop(&q.items).(*trigger.Reaction), true
}

// Peek returns the highest-priority reaction without removing it.
func (q *ReactionQueue) Peek() (*trigger.Reaction, bool) {
	if q.items.Len() == 0 {
		return nil, false
	}
	return q.items[0], true
}

// PopMatching pops reactions in level/deadline priority order, returning
// the first one for which pred holds and pushing every reaction it
// skipped back onto the queue. Used by the worker scheduler's level-barrier
// and chain-mask dispatch: among same-level candidates, the first whose
// chain doesn't overlap a currently running reaction is runnable; the rest
// stay queued for retry.
func (q *ReactionQueue) PopMatching(pred func(*trigger.Reaction) bool) (*trigger.Reaction, bool) {
	var held []*trigger.Reaction
	var found *trigger.Reaction
	for q.items.Len() > 0 {
		r := heap.Pop(&q.items).(*trigger.Reaction)
		if pred(r) {
			found = r
			break
		}
		held = append(held, r)
	}
	for _, r := range held {
		heap.Push(&q.items, r)
	}
	return found, found != nil
}

// RemoveMatching removes and returns every queued reaction for which pred
// returns true, re-heapifying the remainder. Used for mode-switch
// cancellation.
func (q *ReactionQueue) RemoveMatching(pred func(*trigger.Reaction) bool) []*trigger.Reaction {
	var removed []*trigger.Reaction
	var kept reactionHeap
	for _, r := range q.items {
		if pred(r) {
			removed = append(removed, r)
		} else {
			kept = append(kept, r)
		}
	}
	q.items = kept
	heap.Init(&q.items)
	return removed
}
