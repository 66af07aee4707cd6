// Package di wires configuration, clients and services into a runnable agent.
package di

import (
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/agent"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/clients/binance"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/clients/jupiter"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/clients/llm"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/clients/solanarpc"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/database"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/events"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/metrics"
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

// Options are per-process overrides of the loaded configuration
type Options struct {
	DryRun bool
}

// Container holds every dependency of one agent process. It is created by
// Wire and owns the audit database connection.
type Container struct {
	Config *config.Config

	// Observability
	Bus     *events.Bus
	Events  *events.Manager
	Metrics *metrics.PrometheusMetrics

	// Persistence
	Store   *memory.Store
	Ledger  *portfolio.Ledger
	History *history.Reviewer
	AuditDB *database.DB
	Audit   *audit.Repository

	// Clients
	LLM      *llm.Client
	Binance  *binance.Client
	Wallet   *solanarpc.Wallet
	Activity *solanarpc.ActivityMonitor
	Swapper  *jupiter.Client
	Scraper  *perception.Scraper

	// Services
	Observer *perception.Observer
	Policy   *policy.Engine
	Sandbox  *sandbox.Sandbox
	Planner  *planning.Planner
	Executor *trading.Executor
	Agent    *agent.Agent

	// Backups is nil unless BACKUP_ENABLED is set
	Backups *reliability.BackupService
}

// Close releases the audit database
func (c *Container) Close() error {
	if c.AuditDB == nil {
		return nil
	}
	return c.AuditDB.Close()
}
