// Command prime-run drives the presence loop without the HTTP surface.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"prime/internal/app"
	"prime/internal/config"
)

func main() {
	ticks := flag.Int("ticks", 0, "stop after this many ticks (0 runs until interrupted)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		config.NewLogger(config.Config{}, os.Stderr).Error("load config failed", "error", err)
		os.Exit(1)
	}
	logger := config.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prime, err := app.New(ctx, cfg, prometheus.NewRegistry(), logger)
	if err != nil {
		logger.Error("assemble prime failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := prime.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Error("close prime failed", "error", err)
		}
	}()
	if err := prime.Start(ctx); err != nil {
		logger.Error("start prime failed", "error", err)
		return
	}

	logger.Info("prime running standalone", "tick_interval", cfg.TickInterval)
	if *ticks <= 0 {
		prime.Service.Run(ctx, cfg.TickInterval)
		return
	}

	// bounded runs tick back to back, useful for smoke checks
	for i := 0; i < *ticks && ctx.Err() == nil; i++ {
		d := prime.Service.Tick(context.WithoutCancel(ctx))
		logger.Info("tick", "n", i+1, "decision", d.Kind, "intensity", d.Intensity, "rationale", d.Rationale)
	}
}
