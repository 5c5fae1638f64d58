package trigger

import (
	"testing"

	"github.com/behrlich/reactor-rt/internal/tag"
	"github.com/behrlich/reactor-rt/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTriggerInitializesLastTriggeredTagToNever(t *testing.T) {
	trig := NewTrigger("toggle", LogicalAction)
	assert.Equal(t, tag.Never, trig.LastTriggeredTag)
	assert.Equal(t, LogicalAction, trig.Kind)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "logical_action", LogicalAction.String())
	assert.Equal(t, "physical_action", PhysicalAction.String())
	assert.Equal(t, "timer", Timer.String())
	assert.Equal(t, "startup", Startup.String())
	assert.Equal(t, "shutdown", Shutdown.String())
}

func TestReactionMarkEnqueuedOnce(t *testing.T) {
	r := &Reaction{Name: "r1"}

	require.True(t, r.MarkEnqueued())
	assert.True(t, r.IsEnqueued())
	assert.Equal(t, Queued, r.Status())

	// Marking again before MarkDone must fail: invariant 6, at most once per tag.
	assert.False(t, r.MarkEnqueued())
}

func TestReactionLifecycle(t *testing.T) {
	r := &Reaction{Name: "r1"}
	require.True(t, r.MarkEnqueued())

	r.MarkRunning()
	assert.Equal(t, Running, r.Status())

	r.MarkDone()
	assert.Equal(t, Inactive, r.Status())
	assert.False(t, r.IsEnqueued())

	// Can be re-enqueued for the next tag.
	assert.True(t, r.MarkEnqueued())
}

func TestPortSetAndReset(t *testing.T) {
	p := &Port{Name: "out"}
	p.Set(42)

	assert.True(t, p.IsPresent)
	assert.Equal(t, 42, p.Value)

	p.Reset()
	assert.False(t, p.IsPresent)
	assert.Nil(t, p.Value)
}

func TestPortSetTokenIncrementsRefPerDestination(t *testing.T) {
	p := &Port{Name: "out", NumDestinations: 2}
	tok := token.InitializeWithValue(nil, "payload", 8)

	p.SetToken(tok)
	assert.Equal(t, int32(3), tok.RefCount()) // 1 original + 2 destinations

	p.Reset()
	assert.Equal(t, int32(2), tok.RefCount())
}

func TestPortSetNewAllocatesTokenMarkedTokenAndValue(t *testing.T) {
	p := &Port{Name: "out"}
	freed := false
	p.SetDestructor(func(v any) { freed = true })

	tok := p.SetNew(7, 8)
	require.NotNil(t, tok)
	assert.Equal(t, 7, p.Value)
	assert.True(t, p.IsPresent)
	assert.Equal(t, token.TokenAndValue, tok.OkToFree)

	p.Reset()
	assert.True(t, freed)
}

func TestPortSetArrayDeepCopiesThroughCopyConstructor(t *testing.T) {
	p := &Port{Name: "out"}
	p.SetCopyConstructor(func(v any) any {
		src := v.([]int)
		cp := make([]int, len(src))
		copy(cp, src)
		return cp
	})

	src := []int{1, 2, 3}
	tok := p.SetArray(src, len(src))
	require.NotNil(t, tok)

	src[0] = 99
	assert.Equal(t, []int{1, 2, 3}, p.Value)
}

func TestPortSetArrayWithoutCopyConstructorAliasesValue(t *testing.T) {
	p := &Port{Name: "out"}
	src := []int{1, 2, 3}

	p.SetArray(src, len(src))
	src[0] = 99
	// With no CopyCtor installed, SetArray stores the caller's slice as-is;
	// mutating the backing array through src is visible through the port.
	assert.Equal(t, 99, p.Value.([]int)[0])
}

func TestNewDummySpacerCarriesNoToken(t *testing.T) {
	trig := NewTrigger("t", Timer)
	ev := NewDummySpacer(tag.Tag{Time: 10}, trig)

	assert.True(t, ev.IsDummy)
	assert.Nil(t, ev.Token)
	assert.Same(t, trig, ev.Trigger)
}
