package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/pageaudit/api"
	"github.com/use-agent/pageaudit/audit"
	"github.com/use-agent/pageaudit/browser"
	"github.com/use-agent/pageaudit/config"
	"github.com/use-agent/pageaudit/metrics"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("pageaudit starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
	)

	// Signals are captured before launch so a shutdown requested during
	// startup still releases whatever was acquired.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// ── 3. Launch the shared browser ────────────────────────────────
	mgr, ok := launchBrowser(cfg.Browser, quit)
	if !ok {
		return
	}

	// ── 4. Wire the orchestrator, metrics and router ────────────────
	orch := audit.New(mgr, cfg.Audit)
	metrics.Init(mgr.ActiveSessions)

	startTime := time.Now()
	router := api.NewRouter(orch, mgr, cfg, startTime)

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			_ = mgr.Close()
			os.Exit(1)
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	if err := mgr.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	slog.Info("pageaudit stopped")
}

// launchBrowser starts the browser, racing it against a shutdown signal.
// A launch failure is fatal. On an early signal the launch is cancelled,
// whatever was acquired is released, and ok is false.
func launchBrowser(cfg config.BrowserConfig, quit <-chan os.Signal) (mgr *browser.Manager, ok bool) {
	type launchResult struct {
		mgr *browser.Manager
		err error
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	launched := make(chan launchResult, 1)
	go func() {
		m, err := browser.Launch(ctx, cfg)
		launched <- launchResult{mgr: m, err: err}
	}()

	select {
	case res := <-launched:
		if res.err != nil {
			slog.Error("failed to launch browser", "error", res.err)
			os.Exit(1)
		}
		return res.mgr, true
	case sig := <-quit:
		slog.Info("shutdown signal received during startup", "signal", sig.String())
		cancel()
		res := <-launched
		if err := res.mgr.Close(); err != nil {
			slog.Warn("browser close failed", "error", err)
		}
		return nil, false
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
