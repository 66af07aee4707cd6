package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/events"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/metrics"
)

// Wire initializes all dependencies and returns a fully configured container
// Order of operations:
// 1. Event bus and metrics
// 2. State store, ledger and audit database
// 3. External clients
// 4. Services and the agent loop
// 5. Backups (optional)
func Wire(ctx context.Context, cfg *config.Config, opts Options, log zerolog.Logger) (*Container, error) {
	bus := events.NewBus()
	container := &Container{
		Config:  cfg,
		Bus:     bus,
		Events:  events.NewManager(bus, log),
		Metrics: metrics.GetPrometheusMetrics(),
	}

	if err := InitializeStorage(container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := InitializeClients(container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	if err := InitializeServices(container, cfg, opts, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := InitializeBackups(ctx, container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize backups: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")
	return container, nil
}
