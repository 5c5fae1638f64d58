package reactor

import "github.com/prometheus/client_golang/prometheus"

// PrometheusObserver feeds the same events MetricsObserver records into
// Prometheus collectors, so a runtime can expose both the built-in
// MetricsSnapshot and a standard /metrics endpoint from one Observer.
type PrometheusObserver struct {
	reactionsTotal  prometheus.Counter
	deadlinesMissed prometheus.Counter
	scheduledTotal  prometheus.Counter
	droppedMIT      prometheus.Counter
	droppedStop     prometheus.Counter
	queueDepth      prometheus.Gauge
	reactionLatency prometheus.Histogram
	tickLatency     prometheus.Histogram
}

// NewPrometheusObserver constructs a PrometheusObserver and registers its
// collectors with reg.
func NewPrometheusObserver(reg prometheus.Registerer) *PrometheusObserver {
	o := &PrometheusObserver{
		reactionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor",
			Name:      "reactions_executed_total",
			Help:      "Total reactions run to completion.",
		}),
		deadlinesMissed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor",
			Name:      "deadlines_missed_total",
			Help:      "Reactions whose CheckDeadline fired.",
		}),
		scheduledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor",
			Name:      "events_scheduled_total",
			Help:      "schedule_* calls that resulted in an enqueued event.",
		}),
		droppedMIT: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor",
			Name:      "events_dropped_mit_total",
			Help:      "schedule_* calls dropped by a minimum-spacing Drop policy.",
		}),
		droppedStop: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor",
			Name:      "events_dropped_stop_total",
			Help:      "schedule_* calls dropped by the stop check (stop requested, or tag past the stop tag).",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reactor",
			Name:      "reaction_queue_depth",
			Help:      "Most recently observed reaction-queue depth.",
		}),
		reactionLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reactor",
			Name:      "reaction_latency_seconds",
			Help:      "Wall time spent inside a reaction body.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, len(LatencyBuckets)),
		}),
		tickLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "reactor",
			Name:      "tick_latency_seconds",
			Help:      "Duration of one scheduler advance-and-drain cycle.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 10, len(LatencyBuckets)),
		}),
	}

	reg.MustRegister(
		o.reactionsTotal,
		o.deadlinesMissed,
		o.scheduledTotal,
		o.droppedMIT,
		o.droppedStop,
		o.queueDepth,
		o.reactionLatency,
		o.tickLatency,
	)

	return o
}

func (o *PrometheusObserver) ObserveReaction(_ uint32, latencyNs uint64, missedDeadline bool) {
	o.reactionsTotal.Inc()
	if missedDeadline {
		o.deadlinesMissed.Inc()
	}
	o.reactionLatency.Observe(float64(latencyNs) / 1e9)
}

func (o *PrometheusObserver) ObserveScheduleDropped(byMIT bool) {
	if byMIT {
		o.droppedMIT.Inc()
	} else {
		o.droppedStop.Inc()
	}
}

func (o *PrometheusObserver) ObserveScheduled() {
	o.scheduledTotal.Inc()
}

func (o *PrometheusObserver) ObserveQueueDepth(depth uint32) {
	o.queueDepth.Set(float64(depth))
}

func (o *PrometheusObserver) ObserveTick(latencyNs uint64) {
	o.tickLatency.Observe(float64(latencyNs) / 1e9)
}

var _ Observer = (*PrometheusObserver)(nil)
