// Package metrics exposes the agent's Prometheus instruments.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Decision loop
	cycleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_agent_cycle_total",
			Help: "Total number of decision cycles by final action",
		},
		[]string{"last_action"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trading_agent_cycle_duration_seconds",
			Help:    "Decision cycle duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	actionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_agent_action_total",
			Help: "Total number of ACT outcomes",
		},
		[]string{"action", "outcome"}, // outcome: executed, skipped, failed, invalid
	)

	policyDenialTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_agent_policy_denial_total",
			Help: "Total number of actions rejected by a policy rule",
		},
		[]string{"rule"},
	)

	// Language model
	llmCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trading_agent_llm_call_duration_seconds",
			Help:    "Language model call duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"model", "status"},
	)

	planParseFailureTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "trading_agent_plan_parse_failure_total",
			Help: "Total number of model answers without a usable plan",
		},
	)

	// Funds
	solSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_agent_sol_sent_total",
			Help: "Total SOL sent by wallet_send",
		},
		[]string{"mode"}, // mode: real, dry_run
	)

	swapNotionalTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_agent_swap_notional_usd_total",
			Help: "Total approximate USD notional of swaps",
		},
		[]string{"from", "to", "mode"}, // mode: real, dry_run, mock
	)

	solBalance = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_agent_sol_balance",
			Help: "Last observed on-chain SOL balance",
		},
	)

	positionAmount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "trading_agent_position_amount",
			Help: "Tracked position amount in native units",
		},
		[]string{"token"},
	)

	positionDrift = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_agent_position_drift_sol",
			Help: "Absolute difference between on-chain and tracked SOL",
		},
	)

	// Collectors
	collectorFailureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_agent_collector_failure_total",
			Help: "Total number of PERCEIVE collector failures",
		},
		[]string{"source"},
	)

	apiCallTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_agent_api_call_total",
			Help: "Total number of external API calls",
		},
		[]string{"service", "endpoint", "status"},
	)

	apiCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "trading_agent_api_call_duration_seconds",
			Help:    "External API call duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"service", "endpoint"},
	)

	// Maintenance
	backupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trading_agent_backup_total",
			Help: "Total number of state backups",
		},
		[]string{"status"},
	)

	lastBackupTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "trading_agent_last_backup_timestamp_seconds",
			Help: "Unix time of the last successful backup",
		},
	)
)

// PrometheusMetrics records into the package-level instruments
type PrometheusMetrics struct{}

// NewPrometheusMetrics creates a recorder
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{}
}

// RecordCycle records a completed decision cycle
func (pm *PrometheusMetrics) RecordCycle(lastAction string, duration time.Duration) {
	cycleTotal.WithLabelValues(lastAction).Inc()
	cycleDuration.Observe(duration.Seconds())
}

// RecordAction records one ACT outcome
func (pm *PrometheusMetrics) RecordAction(action, outcome string) {
	actionTotal.WithLabelValues(action, outcome).Inc()
}

// RecordPolicyDenial records a rejected action
func (pm *PrometheusMetrics) RecordPolicyDenial(rule string) {
	policyDenialTotal.WithLabelValues(rule).Inc()
}

// RecordLLMCall records a language model round trip
func (pm *PrometheusMetrics) RecordLLMCall(model string, err error, duration time.Duration) {
	llmCallDuration.WithLabelValues(model, statusLabel(err)).Observe(duration.Seconds())
}

// RecordPlanParseFailure records a model answer that held no plan
func (pm *PrometheusMetrics) RecordPlanParseFailure() {
	planParseFailureTotal.Inc()
}

// RecordTransfer records a SOL transfer
func (pm *PrometheusMetrics) RecordTransfer(amountSOL float64, dryRun bool) {
	mode := "real"
	if dryRun {
		mode = "dry_run"
	}
	solSentTotal.WithLabelValues(mode).Add(amountSOL)
}

// RecordSwap records a swap notional. mode is real, dry_run or mock.
func (pm *PrometheusMetrics) RecordSwap(from, to, mode string, amountUSD float64) {
	swapNotionalTotal.WithLabelValues(from, to, mode).Add(amountUSD)
}

// SetSOLBalance sets the last observed on-chain balance
func (pm *PrometheusMetrics) SetSOLBalance(balance float64) {
	solBalance.Set(balance)
}

// SetPosition sets a tracked position amount
func (pm *PrometheusMetrics) SetPosition(token string, amount float64) {
	positionAmount.WithLabelValues(token).Set(amount)
}

// SetDrift sets the last measured SOL drift
func (pm *PrometheusMetrics) SetDrift(drift float64) {
	positionDrift.Set(drift)
}

// RecordCollectorFailure records a PERCEIVE source failure
func (pm *PrometheusMetrics) RecordCollectorFailure(source string) {
	collectorFailureTotal.WithLabelValues(source).Inc()
}

// RecordAPICall records an external API call
func (pm *PrometheusMetrics) RecordAPICall(service, endpoint string, err error, duration time.Duration) {
	apiCallTotal.WithLabelValues(service, endpoint, statusLabel(err)).Inc()
	apiCallDuration.WithLabelValues(service, endpoint).Observe(duration.Seconds())
}

// RecordBackup records a backup attempt
func (pm *PrometheusMetrics) RecordBackup(err error) {
	backupTotal.WithLabelValues(statusLabel(err)).Inc()
	if err == nil {
		lastBackupTimestamp.SetToCurrentTime()
	}
}

// WriteTextfile dumps the default registry in the node_exporter textfile
// format, for one-shot runs that exit before anything can scrape them
func (pm *PrometheusMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

var globalPrometheusMetrics *PrometheusMetrics

// GetPrometheusMetrics returns the process-wide recorder
func GetPrometheusMetrics() *PrometheusMetrics {
	once.Do(func() {
		globalPrometheusMetrics = NewPrometheusMetrics()
	})
	return globalPrometheusMetrics
}
