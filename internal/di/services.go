package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/agent"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/audit"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/history"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/perception"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/planning"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/policy"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/portfolio"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/sandbox"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/trading"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/reliability"
)

// InitializeStorage opens the state document store and the audit database
func InitializeStorage(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Store = memory.NewStore(cfg.StateFile, log,
		memory.WithCaps(memory.Caps{
			MaxReflections: cfg.Memory.MaxReflections,
			MaxTrades:      cfg.Memory.MaxTrades,
			MaxSwapHistory: cfg.Memory.MaxSwapHistory,
		}),
		memory.WithResetOnCorrupt(cfg.ResetOnCorrupt),
	)

	// Surface a corrupt document before any cycle runs
	if _, err := container.Store.Load(); err != nil {
		return fmt.Errorf("failed to load state document: %w", err)
	}

	container.Ledger = portfolio.NewLedger(container.Store, log)
	container.History = history.NewReviewer(container.Store, log)

	auditDB, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		return fmt.Errorf("failed to open audit database: %w", err)
	}
	container.AuditDB = auditDB
	container.Audit = audit.NewRepository(auditDB.Conn(), log)
	return nil
}

// InitializeServices builds the PERCEIVE, REASON and ACT collaborators and
// the agent loop on top of them
func InitializeServices(container *Container, cfg *config.Config, opts Options, log zerolog.Logger) error {
	network := cfg.Solana.Network()

	observerCfg := perception.DefaultObserverConfig()
	observerCfg.TrackedAddresses = cfg.Monitor.TrackedAddresses
	if cfg.Monitor.LookbackHours > 0 {
		observerCfg.LookbackHours = cfg.Monitor.LookbackHours
	}
	container.Observer = perception.NewObserver(observerCfg, perception.Sources{
		Scraper:   container.Scraper,
		Market:    perception.NewMarketAnalyzer(container.Binance, 0, log),
		Funding:   perception.NewFundingRates(container.Binance, log),
		Activity:  container.Activity,
		Sentiment: perception.NeutralSentiment{},
	}, log)

	container.Policy = policy.NewEngine(cfg.Policy, container.Store, cfg.Git.RepoDir, log)
	container.Sandbox = sandbox.New(cfg.Git, container.Policy, nil, log)

	container.Planner = planning.NewPlanner(
		container.LLM,
		container.Store,
		container.Ledger,
		container.History,
		container.Wallet,
		cfg.ConfidenceThreshold,
		log,
	)

	container.Executor = trading.NewExecutor(trading.Config{
		ConfidenceThreshold: cfg.ConfidenceThreshold,
		DryRun:              opts.DryRun,
		Network:             network,
	}, trading.Deps{
		Policy:  container.Policy,
		Store:   container.Store,
		Ledger:  container.Ledger,
		History: container.History,
		Wallet:  container.Wallet,
		Swapper: container.Swapper,
		Scraper: container.Scraper,
		Market:  perception.NewMarketAnalyzer(container.Binance, 0, log),
		Sandbox: container.Sandbox,
		Events:  container.Events,
		Metrics: container.Metrics,
	}, log)

	container.Agent = agent.New(agent.Config{DryRun: opts.DryRun}, agent.Deps{
		Observer: container.Observer,
		Planner:  container.Planner,
		Executor: container.Executor,
		Store:    container.Store,
		Ledger:   container.Ledger,
		Wallet:   container.Wallet,
		Audit:    container.Audit,
		Events:   container.Events,
		Metrics:  container.Metrics,
	}, log)

	log.Info().
		Bool("dry_run", opts.DryRun).
		Str("network", string(network)).
		Float64("confidence_threshold", cfg.ConfidenceThreshold).
		Msg("Services initialized")
	return nil
}

// InitializeBackups creates the off-site backup service when enabled
func InitializeBackups(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if !cfg.Backup.Enabled {
		return nil
	}
	store, err := reliability.NewR2Client(ctx, cfg.Backup, log)
	if err != nil {
		return fmt.Errorf("failed to create backup client: %w", err)
	}
	container.Backups = reliability.NewBackupService(
		store,
		cfg.StateFile,
		container.AuditDB,
		cfg.Backup.Prefix,
		container.Events,
		log,
	)
	return nil
}
