package federation

import (
	"errors"
	"testing"

	"github.com/behrlich/reactor-rt/internal/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoOpAdapterNeverBlocksOrFails(t *testing.T) {
	var a NoOpAdapter

	granted, err := a.WaitForTag(tag.Tag{Time: 10})
	require.NoError(t, err)
	assert.Equal(t, tag.Forever, granted)

	assert.NoError(t, a.SendStopRequest())

	grant, err := a.AwaitStopGranted()
	require.NoError(t, err)
	assert.Equal(t, tag.Forever, grant)

	a.NotifyNextEvent(tag.Tag{Time: 5}) // must not panic
}

func TestMockAdapterWaitForTagReturnsQueuedGrants(t *testing.T) {
	m := NewMockAdapter()
	m.PushGrant(tag.Tag{Time: 10})
	m.PushGrant(tag.Tag{Time: 20})

	g1, err := m.WaitForTag(tag.Tag{})
	require.NoError(t, err)
	assert.Equal(t, tag.Tag{Time: 10}, g1)

	g2, err := m.WaitForTag(tag.Tag{})
	require.NoError(t, err)
	assert.Equal(t, tag.Tag{Time: 20}, g2)

	// With nothing queued, WaitForTag reports "nothing available yet".
	g3, err := m.WaitForTag(tag.Tag{})
	require.NoError(t, err)
	assert.Equal(t, tag.Forever, g3)
}

func TestMockAdapterWaitForTagPropagatesGrantErr(t *testing.T) {
	m := NewMockAdapter()
	m.SetGrantErr(errors.New("disconnected"))

	_, err := m.WaitForTag(tag.Tag{})
	assert.Error(t, err)
}

func TestMockAdapterSendStopRequestRecordsCallAndErr(t *testing.T) {
	m := NewMockAdapter()
	assert.False(t, m.SendStopCalled())

	assert.NoError(t, m.SendStopRequest())
	assert.True(t, m.SendStopCalled())

	m.SetSendStopErr(errors.New("link down"))
	assert.Error(t, m.SendStopRequest())
}

func TestMockAdapterAwaitStopGrantedReturnsConfiguredTag(t *testing.T) {
	m := NewMockAdapter()
	m.SetStopGrant(tag.Tag{Time: 99})

	granted, err := m.AwaitStopGranted()
	require.NoError(t, err)
	assert.Equal(t, tag.Tag{Time: 99}, granted)
}

func TestMockAdapterNotifiedTagsRecordsInOrder(t *testing.T) {
	m := NewMockAdapter()
	m.NotifyNextEvent(tag.Tag{Time: 1})
	m.NotifyNextEvent(tag.Tag{Time: 2})

	assert.Equal(t, []tag.Tag{{Time: 1}, {Time: 2}}, m.NotifiedTags())
}
