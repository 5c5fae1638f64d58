package queue

import (
	"testing"

	"github.com/behrlich/reactor-rt/internal/tag"
	"github.com/behrlich/reactor-rt/internal/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueueOrdersByTag(t *testing.T) {
	q := NewEventQueue()
	t3 := trigger.NewTrigger("t3", trigger.LogicalAction)
	t1 := trigger.NewTrigger("t1", trigger.LogicalAction)
	t2 := trigger.NewTrigger("t2", trigger.LogicalAction)

	q.Push(trigger.Event{Tag: tag.Tag{Time: 300}, Trigger: t3})
	q.Push(trigger.Event{Tag: tag.Tag{Time: 100}, Trigger: t1})
	q.Push(trigger.Event{Tag: tag.Tag{Time: 200}, Trigger: t2})

	headTag, ok := q.PeekHeadTag()
	require.True(t, ok)
	assert.Equal(t, int64(100), headTag.Time)

	ev, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, int64(100), ev.Tag.Time)

	ev, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, int64(200), ev.Tag.Time)

	ev, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, int64(300), ev.Tag.Time)

	_, ok = q.Pop()
	assert.False(t, ok)
}

func TestEventQueuePopAllAtTag(t *testing.T) {
	q := NewEventQueue()
	trig := trigger.NewTrigger("t", trigger.LogicalAction)
	same := tag.Tag{Time: 100, Microstep: 0}

	q.Push(trigger.Event{Tag: same, Trigger: trig})
	q.Push(trigger.Event{Tag: tag.Tag{Time: 100, Microstep: 1}, Trigger: trig})
	q.Push(trigger.Event{Tag: tag.Tag{Time: 200}, Trigger: trig})

	batch := q.PopAllAtTag(same)
	assert.Len(t, batch, 1)
	assert.Equal(t, 1, q.Len())
}

func TestEventQueueRemoveMatching(t *testing.T) {
	q := NewEventQueue()
	target := trigger.NewTrigger("target", trigger.LogicalAction)
	other := trigger.NewTrigger("other", trigger.LogicalAction)

	q.Push(trigger.Event{Tag: tag.Tag{Time: 100}, Trigger: target})
	q.Push(trigger.Event{Tag: tag.Tag{Time: 150}, Trigger: other})
	q.Push(trigger.Event{Tag: tag.Tag{Time: 200}, Trigger: target})

	removed := q.RemoveMatching(func(ev trigger.Event) bool { return ev.Trigger == target })
	assert.Len(t, removed, 2)
	assert.Equal(t, 1, q.Len())

	headTag, ok := q.PeekHeadTag()
	require.True(t, ok)
	assert.Equal(t, int64(150), headTag.Time)
}

func TestReactionQueueOrdersByLevelThenDeadline(t *testing.T) {
	q := NewReactionQueue()
	high := &trigger.Reaction{Name: "high-level", Level: 2, Deadline: 1}
	lowSlow := &trigger.Reaction{Name: "low-slow", Level: 1, Deadline: 100}
	lowFast := &trigger.Reaction{Name: "low-fast", Level: 1, Deadline: 10}

	q.Push(high)
	q.Push(lowSlow)
	q.Push(lowFast)

	r, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "low-fast", r.Name)

	r, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "low-slow", r.Name)

	r, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "high-level", r.Name)
}

func TestReactionQueuePopMatchingSkipsNonMatching(t *testing.T) {
	q := NewReactionQueue()
	overlapping := &trigger.Reaction{Name: "overlap", Level: 1, Deadline: 1, ChainMask: 0b01}
	disjoint := &trigger.Reaction{Name: "disjoint", Level: 1, Deadline: 2, ChainMask: 0b10}

	q.Push(overlapping)
	q.Push(disjoint)

	runningMask := uint64(0b01)
	r, ok := q.PopMatching(func(r *trigger.Reaction) bool {
		return r.ChainMask&runningMask == 0
	})
	require.True(t, ok)
	assert.Equal(t, "disjoint", r.Name)

	// The skipped, overlapping reaction must still be queued.
	assert.Equal(t, 1, q.Len())
	peek, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "overlap", peek.Name)
}

func TestReactionQueueRemoveMatching(t *testing.T) {
	q := NewReactionQueue()
	a := &trigger.Reaction{Name: "a", Level: 1}
	b := &trigger.Reaction{Name: "b", Level: 1}
	q.Push(a)
	q.Push(b)

	removed := q.RemoveMatching(func(r *trigger.Reaction) bool { return r.Name == "a" })
	assert.Len(t, removed, 1)
	assert.Equal(t, 1, q.Len())
}
