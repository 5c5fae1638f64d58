package sched

import "time"

// Config configures a Runtime, following the teacher's Config-struct-with-
// Default-constructor convention.
type Config struct {
	// Timeout bounds logical-time execution; zero means run until the event
	// queue drains with no federation adapter and Keepalive is false.
	Timeout time.Duration
	// FastMode runs the clock as fast as events allow. When false (the
	// default), tryAdvanceLocked paces advancement so current_tag's physical
	// component never runs ahead of Clock.Now() relative to the runtime's
	// epoch, sleeping in bounded chunks until the wall clock catches up.
	FastMode bool
	// Workers is the number of worker goroutines; <=0 means
	// runtime.NumCPU().
	Workers int
	// Keepalive keeps the runtime alive with an empty event queue,
	// waiting for an external physical action instead of terminating.
	Keepalive bool
	// STPOffset is the safe-to-process offset, readable and settable from
	// reactions; the scheduler does not apply it to event timestamps.
	STPOffset time.Duration
	// WorkerCPUAffinity pins worker i to WorkerCPUAffinity[i] when
	// non-empty and len(WorkerCPUAffinity) == Workers.
	WorkerCPUAffinity []int
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timeout:   0,
		FastMode:  false,
		Workers:   0,
		Keepalive: false,
	}
}
