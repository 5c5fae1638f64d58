package reactor

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets defines the latency histogram buckets in nanoseconds.
// Buckets cover from 1us to 10s with logarithmic spacing.
var LatencyBuckets = []uint64{
	1_000,          // 1us
	10_000,         // 10us
	100_000,        // 100us
	1_000_000,      // 1ms
	10_000_000,     // 10ms
	100_000_000,    // 100ms
	1_000_000_000,  // 1s
	10_000_000_000, // 10s
}

const numLatencyBuckets = 8

// Metrics tracks operational statistics for a running Runtime.
type Metrics struct {
	// Reaction execution counters
	ReactionsExecuted atomic.Uint64 // Total reactions run to completion
	DeadlinesMissed   atomic.Uint64 // Reactions whose CheckDeadline fired

	// Scheduling counters
	EventsScheduled atomic.Uint64 // schedule_* calls that resulted in an enqueued event
	EventsDroppedMIT atomic.Uint64 // schedule_* calls dropped by a MIT Drop policy
	EventsDroppedStop atomic.Uint64 // schedule_* calls dropped by the stop check (stop requested, or tag past the stop tag)

	// Token lifecycle counters
	TokensAllocated atomic.Uint64 // Tokens allocated fresh (pool miss)
	TokensRecycled  atomic.Uint64 // Tokens returned to the pool at refCount==0
	TokensLeaked    atomic.Uint64 // Tokens whose refcount underflowed (fatal path taken)

	// Reaction queue depth statistics
	QueueDepthTotal atomic.Uint64 // Cumulative reaction-queue depth samples
	QueueDepthCount atomic.Uint64 // Number of depth measurements
	MaxQueueDepth   atomic.Uint32 // Maximum observed reaction-queue depth

	// Reaction latency (wall time spent inside a reaction body)
	TotalReactionLatencyNs atomic.Uint64
	ReactionLatencyBuckets [numLatencyBuckets]atomic.Uint64

	// Scheduler tick latency (time from tag-pop to reaction-queue-drained)
	TotalTickLatencyNs atomic.Uint64
	TickCount          atomic.Uint64
	TickLatencyBuckets [numLatencyBuckets]atomic.Uint64

	// Runtime lifecycle
	StartTime atomic.Int64 // Runtime start timestamp (UnixNano)
	StopTime  atomic.Int64 // Runtime stop timestamp (UnixNano)
}

// NewMetrics creates a new metrics instance.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordReaction records completion of a reaction.
func (m *Metrics) RecordReaction(latencyNs uint64, missedDeadline bool) {
	m.ReactionsExecuted.Add(1)
	if missedDeadline {
		m.DeadlinesMissed.Add(1)
	}
	m.TotalReactionLatencyNs.Add(latencyNs)
	recordBucket(&m.ReactionLatencyBuckets, latencyNs)
}

// RecordScheduleDropped records a schedule_* call dropped by MIT or stop.
func (m *Metrics) RecordScheduleDropped(byMIT bool) {
	if byMIT {
		m.EventsDroppedMIT.Add(1)
	} else {
		m.EventsDroppedStop.Add(1)
	}
}

// RecordScheduled records a successful schedule_* call.
func (m *Metrics) RecordScheduled() {
	m.EventsScheduled.Add(1)
}

// RecordTokenAllocated records a pool-miss token allocation.
func (m *Metrics) RecordTokenAllocated() {
	m.TokensAllocated.Add(1)
}

// RecordTokenRecycled records a token returned to the pool.
func (m *Metrics) RecordTokenRecycled() {
	m.TokensRecycled.Add(1)
}

// RecordTokenLeaked records a refcount underflow on a token.
func (m *Metrics) RecordTokenLeaked() {
	m.TokensLeaked.Add(1)
}

// RecordQueueDepth records the current reaction-queue depth for statistics.
func (m *Metrics) RecordQueueDepth(depth uint32) {
	m.QueueDepthTotal.Add(uint64(depth))
	m.QueueDepthCount.Add(1)

	for {
		current := m.MaxQueueDepth.Load()
		if depth <= current {
			break
		}
		if m.MaxQueueDepth.CompareAndSwap(current, depth) {
			break
		}
	}
}

// RecordTick records the duration of one scheduler advance-and-drain cycle.
func (m *Metrics) RecordTick(latencyNs uint64) {
	m.TotalTickLatencyNs.Add(latencyNs)
	m.TickCount.Add(1)
	recordBucket(&m.TickLatencyBuckets, latencyNs)
}

func recordBucket(buckets *[numLatencyBuckets]atomic.Uint64, latencyNs uint64) {
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			buckets[i].Add(1)
		}
	}
}

// Stop marks the runtime as stopped.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time snapshot of metrics.
type MetricsSnapshot struct {
	ReactionsExecuted uint64
	DeadlinesMissed   uint64

	EventsScheduled   uint64
	EventsDroppedMIT  uint64
	EventsDroppedStop uint64

	TokensAllocated uint64
	TokensRecycled  uint64
	TokensLeaked    uint64

	AvgQueueDepth float64
	MaxQueueDepth uint32

	AvgReactionLatencyNs uint64
	ReactionLatencyP50Ns  uint64
	ReactionLatencyP99Ns  uint64
	ReactionLatencyP999Ns uint64
	ReactionLatencyHistogram [numLatencyBuckets]uint64

	AvgTickLatencyNs uint64

	UptimeNs  uint64
	ErrorRate float64 // deadlines missed as a percentage of reactions executed
}

// Snapshot creates a point-in-time snapshot of metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		ReactionsExecuted: m.ReactionsExecuted.Load(),
		DeadlinesMissed:   m.DeadlinesMissed.Load(),
		EventsScheduled:   m.EventsScheduled.Load(),
		EventsDroppedMIT:  m.EventsDroppedMIT.Load(),
		EventsDroppedStop: m.EventsDroppedStop.Load(),
		TokensAllocated:   m.TokensAllocated.Load(),
		TokensRecycled:    m.TokensRecycled.Load(),
		TokensLeaked:      m.TokensLeaked.Load(),
		MaxQueueDepth:     m.MaxQueueDepth.Load(),
	}

	queueDepthTotal := m.QueueDepthTotal.Load()
	queueDepthCount := m.QueueDepthCount.Load()
	if queueDepthCount > 0 {
		snap.AvgQueueDepth = float64(queueDepthTotal) / float64(queueDepthCount)
	}

	reactionCount := m.ReactionsExecuted.Load()
	if reactionCount > 0 {
		snap.AvgReactionLatencyNs = m.TotalReactionLatencyNs.Load() / reactionCount
		snap.ErrorRate = float64(snap.DeadlinesMissed) / float64(reactionCount) * 100.0
	}

	tickCount := m.TickCount.Load()
	if tickCount > 0 {
		snap.AvgTickLatencyNs = m.TotalTickLatencyNs.Load() / tickCount
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.ReactionLatencyHistogram[i] = m.ReactionLatencyBuckets[i].Load()
	}

	if reactionCount > 0 {
		snap.ReactionLatencyP50Ns = m.calculatePercentile(&m.ReactionLatencyBuckets, reactionCount, 0.50)
		snap.ReactionLatencyP99Ns = m.calculatePercentile(&m.ReactionLatencyBuckets, reactionCount, 0.99)
		snap.ReactionLatencyP999Ns = m.calculatePercentile(&m.ReactionLatencyBuckets, reactionCount, 0.999)
	}

	return snap
}

// calculatePercentile estimates the latency at the given percentile (0.0-1.0)
// using linear interpolation between histogram buckets.
func (m *Metrics) calculatePercentile(buckets *[numLatencyBuckets]atomic.Uint64, totalOps uint64, percentile float64) uint64 {
	if totalOps == 0 {
		return 0
	}

	targetCount := uint64(float64(totalOps) * percentile)

	prevBucket := uint64(0)
	for i, bucket := range LatencyBuckets {
		bucketCount := buckets[i].Load()
		if bucketCount >= targetCount {
			prevCount := uint64(0)
			if i > 0 {
				prevCount = buckets[i-1].Load()
			}
			if bucketCount == prevCount {
				return bucket
			}
			fraction := float64(targetCount-prevCount) / float64(bucketCount-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
	}

	return LatencyBuckets[numLatencyBuckets-1]
}

// Reset resets all metrics counters (useful for testing).
func (m *Metrics) Reset() {
	m.ReactionsExecuted.Store(0)
	m.DeadlinesMissed.Store(0)
	m.EventsScheduled.Store(0)
	m.EventsDroppedMIT.Store(0)
	m.EventsDroppedStop.Store(0)
	m.TokensAllocated.Store(0)
	m.TokensRecycled.Store(0)
	m.TokensLeaked.Store(0)
	m.QueueDepthTotal.Store(0)
	m.QueueDepthCount.Store(0)
	m.MaxQueueDepth.Store(0)
	m.TotalReactionLatencyNs.Store(0)
	m.TotalTickLatencyNs.Store(0)
	m.TickCount.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.ReactionLatencyBuckets[i].Store(0)
		m.TickLatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable metrics collection, mirrored to both the
// built-in Metrics and any external system a caller wants to feed.
type Observer interface {
	ObserveReaction(level uint32, latencyNs uint64, missedDeadline bool)
	ObserveScheduleDropped(byMIT bool)
	ObserveScheduled()
	ObserveQueueDepth(depth uint32)
	ObserveTick(latencyNs uint64)
}

// NoOpObserver is a no-op implementation of Observer.
type NoOpObserver struct{}

func (NoOpObserver) ObserveReaction(uint32, uint64, bool) {}
func (NoOpObserver) ObserveScheduleDropped(bool)          {}
func (NoOpObserver) ObserveScheduled()                    {}
func (NoOpObserver) ObserveQueueDepth(uint32)             {}
func (NoOpObserver) ObserveTick(uint64)                   {}

// MetricsObserver implements Observer using the built-in Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver creates an observer that records to the given metrics.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveReaction(_ uint32, latencyNs uint64, missedDeadline bool) {
	o.metrics.RecordReaction(latencyNs, missedDeadline)
}

func (o *MetricsObserver) ObserveScheduleDropped(byMIT bool) {
	o.metrics.RecordScheduleDropped(byMIT)
}

func (o *MetricsObserver) ObserveScheduled() {
	o.metrics.RecordScheduled()
}

func (o *MetricsObserver) ObserveQueueDepth(depth uint32) {
	o.metrics.RecordQueueDepth(depth)
}

func (o *MetricsObserver) ObserveTick(latencyNs uint64) {
	o.metrics.RecordTick(latencyNs)
}

// Compile-time interface checks
var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
