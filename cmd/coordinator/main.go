// Command coordinator runs the multi-agent ticket orchestration
// server: a SQLite-backed store, per-stage FIFO queues, and a periodic
// recovery sweep. It does not spawn worker subprocesses: the worker
// binary, worker count and worker timeout flags are stored in the
// orchestrator's Config, but nothing here launches a worker.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arctek/conductor/orchestration"
)

func main() {
	var (
		dbPath       = flag.String("db", "coordinator.db", "path to the SQLite database")
		claudeBinary = flag.String("claude-binary", "claude", "worker subprocess binary to invoke")
		permMode     = flag.String("permission-mode", "file", "worker permission mode: bypass, inherit, file")
		maxWorkers   = flag.Int("max-workers", 4, "maximum parallel worker subprocesses")
		timeout      = flag.Duration("worker-timeout", 15*time.Minute, "per-worker wall-clock timeout")
		stallTimeout = flag.Duration("stall-timeout", 5*time.Minute, "claimed-ticket stall threshold")
		onHoldAge    = flag.Duration("on-hold-recovery-age", 30*time.Minute, "on_hold ticket recovery threshold")
		interval     = flag.Duration("recovery-interval", time.Minute, "recovery sweep interval")
		verbose      = flag.Bool("verbose", false, "enable debug-level logging")
		version      = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *version {
		fmt.Println("coordinator 0.1.0")
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	cfg := orchestration.Config{
		DBPath:             *dbPath,
		ClaudeBinary:       *claudeBinary,
		PermissionMode:     *permMode,
		MaxParallelWorkers: *maxWorkers,
		WorkerTimeout:      *timeout,
		StallTimeout:       *stallTimeout,
		OnHoldRecoveryAge:  *onHoldAge,
		RecoveryInterval:   *interval,
		Verbose:            *verbose,
	}

	orch, err := orchestration.New(cfg, logger)
	if err != nil {
		logger.Error("failed to start orchestrator", "error", err)
		os.Exit(1)
	}
	defer orch.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	orch.Start(ctx)
	logger.Info("coordinator running", "db", *dbPath)
	<-ctx.Done()
	logger.Info("coordinator stopped")
}
