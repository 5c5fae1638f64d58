package reactor

import (
	"sync"
	"time"

	"github.com/behrlich/reactor-rt/internal/federation"
	"github.com/behrlich/reactor-rt/internal/tag"
	"github.com/behrlich/reactor-rt/internal/trigger"
)

// MockClock is a deterministic Clock double: Now returns whatever time was
// last set or advanced, never the wall clock. Tests drive physical actions
// and deadline checks by calling Advance explicitly instead of sleeping.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock returns a MockClock starting at t.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now implements Clock.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set pins the clock to an absolute time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var _ Clock = (*MockClock)(nil)

// MockFederationAdapter is a deterministic FederationAdapter test double,
// re-exporting internal/federation's mock so callers outside this module
// never need to import an internal package. See internal/federation's
// MockAdapter for the full method set: PushGrant, SetGrantErr,
// SetStopGrant, SetSendStopErr, NotifiedTags, SendStopCalled.
type MockFederationAdapter = federation.MockAdapter

// NewMockFederationAdapter returns a MockFederationAdapter with no queued
// grants and a stop grant of tag.Forever, which AwaitStopGranted returns
// at once until SetStopGrant is called.
func NewMockFederationAdapter() *MockFederationAdapter {
	return federation.NewMockAdapter()
}

// NoOpFederationAdapter is the zero-cost default used when federation is
// disabled.
type NoOpFederationAdapter = federation.NoOpAdapter

var _ FederationAdapter = (*MockFederationAdapter)(nil)
var _ FederationAdapter = NoOpFederationAdapter{}

// StubTracer is a Tracer test double that just counts and records calls,
// for asserting a reaction graph's tracing behavior without standing up a
// binary trace file.
type StubTracer struct {
	mu sync.Mutex

	ReactionStartCount int
	ReactionEndCount   int
	DeadlineMisses     []*Reaction
	ScheduleCalls      []*Trigger
	UserEvents         []string
	UserValues         map[string]float64
	WorkerWaits        int
	AdvanceCount       int
}

// NewStubTracer returns an empty StubTracer.
func NewStubTracer() *StubTracer {
	return &StubTracer{UserValues: make(map[string]float64)}
}

func (s *StubTracer) ReactionStarts(r *trigger.Reaction, t tag.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReactionStartCount++
}

func (s *StubTracer) ReactionEnds(r *trigger.Reaction, t tag.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ReactionEndCount++
}

func (s *StubTracer) ReactionDeadlineMissed(r *trigger.Reaction, t tag.Tag, lag time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.DeadlineMisses = append(s.DeadlineMisses, r)
}

func (s *StubTracer) ScheduleCalled(trig *trigger.Trigger, t tag.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ScheduleCalls = append(s.ScheduleCalls, trig)
}

func (s *StubTracer) UserEvent(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UserEvents = append(s.UserEvents, name)
}

func (s *StubTracer) UserValue(name string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.UserValues[name] = value
}

func (s *StubTracer) WorkerWaitStarts(workerID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.WorkerWaits++
}

func (s *StubTracer) WorkerWaitEnds(workerID int) {}

func (s *StubTracer) SchedulerAdvancingTimeStarts(t tag.Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.AdvanceCount++
}

func (s *StubTracer) SchedulerAdvancingTimeEnds(t tag.Tag) {}

var _ Tracer = (*StubTracer)(nil)
