/*
 * Substrate - secure execution layer for command interception
 * License: MIT
 */
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/substrate-run/substrate/config"
	"github.com/substrate-run/substrate/internal/policy"
	"github.com/substrate-run/substrate/internal/shell"
	"github.com/substrate-run/substrate/internal/trace"
	"github.com/substrate-run/substrate/internal/world"
	"github.com/substrate-run/substrate/metrics"
	"github.com/substrate-run/substrate/utils"
	"github.com/substrate-run/substrate/version"
)

func main() {
	// Must run before anything else: when re-exec'd by the world backend
	// to install a seccomp filter, this never returns.
	world.RunSeccompReexecChild()

	var (
		wrapCmd       = flag.String("c", "", "execute a single command and exit")
		scriptPath    = flag.String("f", "", "execute a script file")
		ci            = flag.Bool("ci", false, "CI-strict mode: first failure aborts")
		noExitOnError = flag.Bool("no-exit-on-error", false, "in CI mode, continue past failures")
		shellOverride = flag.String("shell", "", "override the downstream shell")
		versionJSON   = flag.Bool("version-json", false, "emit a structured version descriptor and exit")
	)
	flag.Parse()

	if *versionJSON {
		out, err := version.GetCurrentVersion().MarshalJSONString()
		if err != nil {
			fmt.Fprintln(os.Stderr, "substrate:", err)
			os.Exit(1)
		}
		fmt.Println(out)
		return
	}

	logger, err := utils.InitializeLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "substrate: logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg := config.New(logger)
	cfg.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handleGracefulShutdown(cancel, logger)

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	policyDir := resolveUnderHome(home, cfg.GetString("SUBSTRATE_POLICY_DIR"))
	approvalCache := resolveUnderHome(home, cfg.GetString("SUBSTRATE_APPROVAL_CACHE"))
	broker, err := policy.New(logger, policyDir, approvalCache)
	if err != nil {
		logger.Fatal("policy broker init failed", zap.Error(err))
	}
	broker.SetMetrics(metrics.NewBrokerMetrics())
	if err := broker.Watch(); err != nil {
		logger.Warn("policy hot-reload watcher unavailable", zap.Error(err))
	}
	defer broker.Stop()

	tracePath := resolveUnderHome(home, cfg.GetString("SUBSTRATE_TRACE_LOG"))
	maxBytes, err := utils.ParseSize(cfg.GetString("SUBSTRATE_TRACE_LOG_MAX_SIZE"))
	if err != nil {
		logger.Warn("invalid trace log max size, rotation disabled", zap.Error(err))
		maxBytes = 0
	}
	writer, err := trace.NewWriter(tracePath, maxBytes, false, false)
	if err != nil {
		logger.Warn("trace log unavailable, continuing without recording spans", zap.Error(err))
		writer = nil
	} else {
		writer.SetMetrics(metrics.NewTraceMetrics())
		defer writer.Close()
	}

	var backend world.Backend
	var worldName world.Name
	if cfg.GetString("SUBSTRATE_WORLD_BACKEND") != "disabled" {
		backend, worldName, err = world.Select(world.Options{Logger: logger, Metrics: metrics.NewWorldMetrics()})
		if err != nil {
			logger.Warn("world backend unavailable, commands will run on the host", zap.Error(err))
			backend = nil
		}
	}

	if metricsPort := cfg.GetInt("SUBSTRATE_METRICS_PORT", 0); metricsPort > 0 {
		srv := metrics.NewServer(metricsPort, logger)
		srv.Start()
		defer srv.Stop()
	}

	shimDir := resolveUnderHome(home, cfg.GetString("SUBSTRATE_SHIM_DIR"))

	sh := shell.New(shell.Options{
		Logger:        logger,
		Writer:        writer,
		Broker:        broker,
		Backend:       backend,
		World:         worldName,
		Shell:         *shellOverride,
		ShimDir:       shimDir,
		TraceLogPath:  tracePath,
		CI:            *ci,
		NoExitOnError: *noExitOnError,
	})
	defer sh.Close()

	var exit int
	switch {
	case *wrapCmd != "":
		exit = sh.RunWrap(ctx, *wrapCmd)
	case *scriptPath != "":
		exit, err = sh.RunScript(ctx, *scriptPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "substrate:", err)
		}
	case hasStdinData():
		exit = sh.RunPipe(ctx, os.Stdin)
	default:
		exit = sh.RunInteractive(ctx)
	}

	os.Exit(exit)
}

func resolveUnderHome(home, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(home, path)
}

// hasStdinData reports whether stdin is a pipe or redirected file rather
// than a terminal.
func hasStdinData() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) == 0
}

func handleGracefulShutdown(cancelFunc context.CancelFunc, logger *zap.Logger) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-signals
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancelFunc()
	}()
}
