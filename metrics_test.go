package reactor

import (
	"testing"
)

func TestMetricsInitialState(t *testing.T) {
	m := NewMetrics()

	snap := m.Snapshot()
	if snap.ReactionsExecuted != 0 {
		t.Errorf("Expected 0 initial reactions, got %d", snap.ReactionsExecuted)
	}
}

func TestMetricsRecordReaction(t *testing.T) {
	m := NewMetrics()

	m.RecordReaction(1_000_000, false) // 1ms, met deadline
	m.RecordReaction(2_000_000, true)  // 2ms, missed deadline
	m.RecordReaction(500_000, false)   // 0.5ms, met deadline

	snap := m.Snapshot()

	if snap.ReactionsExecuted != 3 {
		t.Errorf("Expected 3 reactions executed, got %d", snap.ReactionsExecuted)
	}
	if snap.DeadlinesMissed != 1 {
		t.Errorf("Expected 1 deadline missed, got %d", snap.DeadlinesMissed)
	}

	expectedErrorRate := float64(1) / float64(3) * 100.0
	if snap.ErrorRate < expectedErrorRate-0.1 || snap.ErrorRate > expectedErrorRate+0.1 {
		t.Errorf("Expected error rate ~%.2f%%, got %.2f%%", expectedErrorRate, snap.ErrorRate)
	}
}

func TestMetricsScheduling(t *testing.T) {
	m := NewMetrics()

	m.RecordScheduled()
	m.RecordScheduled()
	m.RecordScheduleDropped(true)  // dropped by MIT
	m.RecordScheduleDropped(false) // dropped by stop

	snap := m.Snapshot()
	if snap.EventsScheduled != 2 {
		t.Errorf("Expected 2 events scheduled, got %d", snap.EventsScheduled)
	}
	if snap.EventsDroppedMIT != 1 {
		t.Errorf("Expected 1 event dropped by MIT, got %d", snap.EventsDroppedMIT)
	}
	if snap.EventsDroppedStop != 1 {
		t.Errorf("Expected 1 event dropped by stop, got %d", snap.EventsDroppedStop)
	}
}

func TestMetricsTokenLifecycle(t *testing.T) {
	m := NewMetrics()

	m.RecordTokenAllocated()
	m.RecordTokenAllocated()
	m.RecordTokenRecycled()
	m.RecordTokenLeaked()

	snap := m.Snapshot()
	if snap.TokensAllocated != 2 {
		t.Errorf("Expected 2 tokens allocated, got %d", snap.TokensAllocated)
	}
	if snap.TokensRecycled != 1 {
		t.Errorf("Expected 1 token recycled, got %d", snap.TokensRecycled)
	}
	if snap.TokensLeaked != 1 {
		t.Errorf("Expected 1 token leaked, got %d", snap.TokensLeaked)
	}
}

func TestMetricsQueueDepth(t *testing.T) {
	m := NewMetrics()

	m.RecordQueueDepth(10)
	m.RecordQueueDepth(20)
	m.RecordQueueDepth(5)

	snap := m.Snapshot()

	expectedAvg := float64(10+20+5) / 3.0
	if snap.AvgQueueDepth != expectedAvg {
		t.Errorf("Expected avg queue depth %.2f, got %.2f", expectedAvg, snap.AvgQueueDepth)
	}
	if snap.MaxQueueDepth != 20 {
		t.Errorf("Expected max queue depth 20, got %d", snap.MaxQueueDepth)
	}
}

func TestMetricsLatencyPercentiles(t *testing.T) {
	m := NewMetrics()

	for i := 0; i < 100; i++ {
		m.RecordReaction(500_000, false) // 0.5ms, falls in the 1ms bucket
	}

	snap := m.Snapshot()
	if snap.ReactionLatencyP50Ns == 0 {
		t.Error("Expected non-zero p50 latency")
	}
	if snap.ReactionLatencyP50Ns > 1_000_000 {
		t.Errorf("Expected p50 latency within the 1ms bucket, got %d", snap.ReactionLatencyP50Ns)
	}
}

func TestMetricsTick(t *testing.T) {
	m := NewMetrics()

	m.RecordTick(100_000)
	m.RecordTick(300_000)

	snap := m.Snapshot()
	if snap.AvgTickLatencyNs != 200_000 {
		t.Errorf("Expected avg tick latency 200000ns, got %d", snap.AvgTickLatencyNs)
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordReaction(1_000_000, true)
	m.RecordScheduled()
	m.Reset()

	snap := m.Snapshot()
	if snap.ReactionsExecuted != 0 || snap.EventsScheduled != 0 {
		t.Error("Expected counters to be zero after Reset")
	}
}

func TestNoOpObserver(t *testing.T) {
	var o Observer = NoOpObserver{}
	o.ObserveReaction(0, 1000, false)
	o.ObserveScheduleDropped(true)
	o.ObserveScheduled()
	o.ObserveQueueDepth(1)
	o.ObserveTick(1000)
}

func TestMetricsObserver(t *testing.T) {
	m := NewMetrics()
	o := NewMetricsObserver(m)

	o.ObserveReaction(2, 1_000_000, false)
	o.ObserveScheduled()
	o.ObserveQueueDepth(3)
	o.ObserveTick(500_000)

	snap := m.Snapshot()
	if snap.ReactionsExecuted != 1 {
		t.Errorf("Expected 1 reaction executed via observer, got %d", snap.ReactionsExecuted)
	}
	if snap.EventsScheduled != 1 {
		t.Errorf("Expected 1 event scheduled via observer, got %d", snap.EventsScheduled)
	}
}
