package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"prime/internal/app"
	"prime/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.NewLogger(config.Config{}, os.Stderr).Error("load config failed", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg, os.Stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	prime, err := app.New(ctx, cfg, reg, logger)
	if err != nil {
		logger.Error("assemble prime failed", "error", err)
		os.Exit(1)
	}
	if err := prime.Start(ctx); err != nil {
		logger.Error("start prime failed", "error", err)
		_ = prime.Close(context.Background())
		os.Exit(1)
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		prime.Service.Run(loopCtx, cfg.TickInterval)
	}()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(prime.Service, prime.Queue, prime.Memory, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("prime server started", "addr", cfg.HTTPAddr, "tick_interval", cfg.TickInterval)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	stopLoop()
	select {
	case <-loopDone:
	case <-shutdownCtx.Done():
		logger.Warn("tick still in flight at shutdown")
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	if err := prime.Close(shutdownCtx); err != nil {
		logger.Error("close prime failed", "error", err)
	}
	cancel()
}
