// Command reactor-sim runs a small demonstration reactor graph: a periodic
// timer chained into a zero-delay reaction pair and a shutdown reaction,
// the way a generated program built on this module's runtime would be
// wired by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/behrlich/reactor-rt"
	"github.com/behrlich/reactor-rt/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/automaxprocs/maxprocs"
)

// fileConfig is the shape of an optional TOML config file, overlaid on the
// flag defaults before RuntimeConfig is built.
type fileConfig struct {
	Timeout   string `toml:"timeout"`
	Workers   int    `toml:"workers"`
	Keepalive bool   `toml:"keepalive"`
	FastMode  bool   `toml:"fast_mode"`
}

func main() {
	var (
		configPath = flag.String("config", "", "Optional TOML config file overlaying the flag defaults")
		timeoutStr = flag.String("timeout", "0", "Logical-time bound for the run (e.g. 500ms, 2s); 0 runs until the graph drains")
		workers    = flag.Int("workers", 0, "Worker goroutine count; 0 uses runtime.NumCPU()")
		keepalive  = flag.Bool("keepalive", true, "Keep the runtime alive on an empty event queue, waiting for the periodic timer")
		verbose    = flag.Bool("v", false, "Verbose output")
		metricsAddr = flag.String("metrics-addr", "", "Address to serve Prometheus /metrics on (e.g. :9090); empty disables it")
		period     = flag.Duration("period", 100*time.Millisecond, "Period of the demo timer trigger")
	)
	flag.Parse()

	if _, err := maxprocs.Set(maxprocs.Logger(log.Printf)); err != nil {
		log.Printf("maxprocs: failed to set GOMAXPROCS: %v", err)
	}

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	cfg := fileConfig{Timeout: *timeoutStr, Workers: *workers, Keepalive: *keepalive}
	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, &cfg); err != nil {
			logger.Error("failed to read config file", "path", *configPath, "error", err)
			os.Exit(1)
		}
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		logger.Error("invalid timeout", "value", cfg.Timeout, "error", err)
		os.Exit(1)
	}

	runtimeCfg := reactor.RuntimeConfig{
		Timeout:   timeout,
		Workers:   cfg.Workers,
		Keepalive: cfg.Keepalive,
		FastMode:  cfg.FastMode,
	}

	opts := reactor.Options{}
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		opts.Observer = reactor.NewPrometheusObserver(reg)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			logger.Info("serving prometheus metrics", "addr", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	react := buildDemoReactor(logger, *period)

	rt := reactor.NewRuntime(runtimeCfg, opts)
	rt.AddReactor(react)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- rt.Run(ctx) }()

	logger.Info("reactor-sim running", "period", period.String(), "keepalive", cfg.Keepalive)
	fmt.Printf("reactor-sim running (period=%s, keepalive=%v); press Ctrl+C to stop\n", period, cfg.Keepalive)
	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())

	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go func() {
		for range stackDumpCh {
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			fmt.Fprintf(os.Stderr, "\n=== GOROUTINE STACK DUMP ===\n%s\n", buf[:n])
			pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("received shutdown signal")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()

	if err := reactor.StopAndWait(shutdownCtx, rt, runErr); err != nil {
		logger.Error("error stopping runtime", "error", err)
		os.Exit(1)
	}
	logger.Info("runtime stopped cleanly", "final_tag", rt.CurrentTag().Time)
}

// buildDemoReactor wires a periodic timer into a two-level reaction chain
// (first bumps a counter and schedules a zero-delay logical action, second
// logs the tick) plus a shutdown reaction that reports the final count.
func buildDemoReactor(logger *logging.Logger, period time.Duration) *reactor.Reactor {
	count := 0
	reactorLog := logger.WithReactor("demo")

	tick := reactor.NewTrigger("tick", reactor.Timer)
	tick.Period = period
	tick.MinDelay = period
	tickLog := reactorLog.WithTrigger(tick.Name)

	echo := reactor.NewTrigger("echo", reactor.LogicalAction)

	bump := &reactor.Reaction{
		Name:  "bump",
		Level: 0,
		Func: func(ctx reactor.ReactionCtx) error {
			count++
			_, err := ctx.ScheduleInt(echo, 0, count)
			if err != nil {
				tickLog.WithError(err).Warn("failed to schedule echo")
			}
			return err
		},
		TriggersItMaySchedule: []*reactor.Trigger{echo},
	}

	report := &reactor.Reaction{
		Name:  "report",
		Level: 1,
		Func: func(ctx reactor.ReactionCtx) error {
			tickLog.Debug("tick", "count", count, "tag", ctx.CurrentTag().Time)
			return nil
		},
	}

	shutdown := &reactor.Reaction{
		Name:  "report-final-count",
		Level: 0,
		Func: func(ctx reactor.ReactionCtx) error {
			reactorLog.Info("shutting down", "total_ticks", count)
			return nil
		},
	}

	shutdownTrigger := reactor.NewTrigger("shutdown", reactor.Shutdown)
	shutdownTrigger.Reactions = []*reactor.Reaction{shutdown}

	tick.Reactions = []*reactor.Reaction{bump}
	echo.Reactions = []*reactor.Reaction{report}

	return &reactor.Reactor{
		Name:      "demo",
		Triggers:  []*reactor.Trigger{tick, echo, shutdownTrigger},
		Reactions: []*reactor.Reaction{bump, report, shutdown},
	}
}
