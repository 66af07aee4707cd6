// Package main is the entry point of the autonomous trading agent.
//
// By default it runs one PERCEIVE → REASON → ACT → REFLECT invocation and
// exits. With --schedule it stays up and runs invocations on a cron schedule,
// optionally serving the status API (--serve).
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/di"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/scheduler"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/server"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/pkg/logger"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "Simulate transfers and swaps without touching the chain")
	schedule := flag.String("schedule", "", `Run as a daemon on this cron schedule (seconds field first, e.g. "0 */15 * * * *")`)
	serve := flag.Bool("serve", false, "Serve the status API while running as a daemon")
	envFile := flag.String("env", "", "Load environment variables from this file instead of .env")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Bool("dry_run", *dryRun).
		Str("network", string(cfg.Solana.Network())).
		Str("state_file", cfg.StateFile).
		Msg("Starting agent")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	container, err := di.Wire(ctx, cfg, di.Options{DryRun: *dryRun}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Positions start from the chain, not from whatever the document last held
	container.Agent.SyncPositions(ctx)

	jobs := di.NewJobs(container, cfg, log)

	if *schedule == "" {
		if err := jobs.Cycle.Run(); err != nil {
			log.Error().Err(err).Msg("Cycle failed")
		}
		return
	}

	sched := scheduler.New(log)
	if err := di.RegisterJobs(sched, jobs, cfg, *schedule); err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()

	var srv *server.Server
	if *serve {
		srv = server.New(server.Config{
			Log:      log,
			Port:     cfg.StatusPort,
			Store:    container.Store,
			Audit:    container.Audit,
			AuditDB:  container.AuditDB,
			Bus:      container.Bus,
			Events:   container.Events,
			Trigger:  jobs.Cycle,
			Wallet:   container.Wallet,
			DryRun:   *dryRun,
			Network:  string(cfg.Solana.Network()),
			Schedule: *schedule,
		})
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Failed to start server")
			}
		}()
	}

	log.Info().Str("schedule", *schedule).Bool("serve", *serve).Msg("Agent running")
	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		shutdownCancel()
	}

	// Waits for an in-flight cycle to finish
	sched.Stop()
	log.Info().Msg("Agent stopped")
}
