package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/database"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/events"
)

// StatusMonitor periodically probes the wallet RPC and the audit database
// and emits an error event whenever one of them turns unhealthy
type StatusMonitor struct {
	eventManager *events.Manager
	wallet       SOLBalanceReader
	auditDB      *database.DB
	log          zerolog.Logger

	mu        sync.Mutex
	rpcOK     bool
	auditOK   bool
	stop      chan struct{}
	stopOnce  sync.Once
	startOnce sync.Once
}

// NewStatusMonitor creates a new status monitor. wallet and auditDB may be nil.
func NewStatusMonitor(eventManager *events.Manager, wallet SOLBalanceReader, auditDB *database.DB, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		eventManager: eventManager,
		wallet:       wallet,
		auditDB:      auditDB,
		log:          log.With().Str("component", "status_monitor").Logger(),
		rpcOK:        true,
		auditOK:      true,
		stop:         make(chan struct{}),
	}
}

// Start begins periodic status monitoring
func (m *StatusMonitor) Start(interval time.Duration) {
	m.startOnce.Do(func() { go m.monitor(interval) })
}

// Stop ends monitoring; safe to call more than once
func (m *StatusMonitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *StatusMonitor) monitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.checkStatuses(context.Background())
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.checkStatuses(context.Background())
		}
	}
}

// Healthy reports the last observed RPC and audit database health
func (m *StatusMonitor) Healthy() (rpc bool, audit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rpcOK, m.auditOK
}

func (m *StatusMonitor) checkStatuses(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	if m.wallet != nil {
		// BalanceSOL also refreshes the balance gauge
		_, err := m.wallet.BalanceSOL(ctx)
		m.transition("rpc", &m.rpcOK, err)
	}
	if m.auditDB != nil {
		err := m.auditDB.Conn().PingContext(ctx)
		m.transition("audit_db", &m.auditOK, err)
	}
}

// transition records the probe result and emits only on healthy → unhealthy
func (m *StatusMonitor) transition(name string, state *bool, err error) {
	m.mu.Lock()
	was := *state
	*state = err == nil
	m.mu.Unlock()

	switch {
	case err != nil && was:
		m.log.Warn().Err(err).Str("probe", name).Msg("Status probe failed")
		m.eventManager.EmitError("status_monitor", err, map[string]interface{}{"probe": name})
	case err == nil && !was:
		m.log.Info().Str("probe", name).Msg("Status probe recovered")
	}
}
