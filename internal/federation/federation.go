// Package federation implements the FederationAdapter collaborator used to
// coordinate a distributed reactor graph's tag advancement across
// independently scheduled runtimes, grounded on the teacher's
// NoOpObserver/MetricsObserver pairing in metrics.go: a no-op default that
// costs nothing when federation is disabled, and a concrete implementation
// callers opt into explicitly.
package federation

import (
	"sync"

	"github.com/behrlich/reactor-rt/internal/interfaces"
	"github.com/behrlich/reactor-rt/internal/tag"
)

var (
	_ interfaces.FederationAdapter = NoOpAdapter{}
	_ interfaces.FederationAdapter = (*MockAdapter)(nil)
)

// NoOpAdapter is the zero-cost default: every call grants immediately and
// no stop coordination ever blocks, matching a Runtime with federation
// disabled.
type NoOpAdapter struct{}

func (NoOpAdapter) NotifyNextEvent(t tag.Tag) {}

func (NoOpAdapter) WaitForTag(t tag.Tag) (tag.Tag, error) { return tag.Forever, nil }

func (NoOpAdapter) SendStopRequest() error { return nil }

func (NoOpAdapter) AwaitStopGranted() (tag.Tag, error) { return tag.Forever, nil }

// MockAdapter is a deterministic test double: a caller pushes tags onto
// Grants to control what WaitForTag returns, and calls SetStopGrant to
// control AwaitStopGranted, without any real federate on the other end.
type MockAdapter struct {
	mu sync.Mutex

	notified []tag.Tag

	grants    []tag.Tag
	grantErr  error
	stopGrant tag.Tag
	stopErr   error

	sendStopCalled  bool
	sendStopErr     error
	awaitStopCalled chan struct{}
}

// NewMockAdapter returns a MockAdapter with StopGrant defaulting to
// tag.Forever (never grants a stop until the caller sets it).
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		stopGrant:       tag.Forever,
		awaitStopCalled: make(chan struct{}, 1),
	}
}

// PushGrant queues a tag to be returned by the next WaitForTag call.
func (m *MockAdapter) PushGrant(t tag.Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants = append(m.grants, t)
}

// SetGrantErr makes every subsequent WaitForTag call return err.
func (m *MockAdapter) SetGrantErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grantErr = err
}

// SetStopGrant configures what AwaitStopGranted eventually returns.
func (m *MockAdapter) SetStopGrant(t tag.Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopGrant = t
}

// SetSendStopErr makes SendStopRequest return err.
func (m *MockAdapter) SetSendStopErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendStopErr = err
}

// NotifiedTags returns every tag passed to NotifyNextEvent, in order.
func (m *MockAdapter) NotifiedTags() []tag.Tag {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tag.Tag, len(m.notified))
	copy(out, m.notified)
	return out
}

func (m *MockAdapter) NotifyNextEvent(t tag.Tag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, t)
}

// WaitForTag pops the next queued grant, or returns tag.Forever when none
// is queued.
func (m *MockAdapter) WaitForTag(t tag.Tag) (tag.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grantErr != nil {
		return tag.Tag{}, m.grantErr
	}
	if len(m.grants) == 0 {
		return tag.Forever, nil
	}
	granted := m.grants[0]
	m.grants = m.grants[1:]
	return granted, nil
}

func (m *MockAdapter) SendStopRequest() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendStopCalled = true
	select {
	case m.awaitStopCalled <- struct{}{}:
	default:
	}
	return m.sendStopErr
}

// SendStopCalled reports whether SendStopRequest has been invoked.
func (m *MockAdapter) SendStopCalled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendStopCalled
}

func (m *MockAdapter) AwaitStopGranted() (tag.Tag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopGrant, m.stopErr
}
