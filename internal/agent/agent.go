// Package agent runs the PERCEIVE → REASON → ACT → REFLECT control loop.
package agent

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/events"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/metrics"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/audit"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/perception"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/planning"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/portfolio"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/trading"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Drift thresholds between the live SOL balance and the tracked SOL position
const (
	DriftReportThreshold    = 0.001
	DriftReconcileThreshold = 0.01
)

// Observer is the PERCEIVE collaborator
type Observer interface {
	Observe(ctx context.Context) (string, perception.Report)
}

// Planner is the REASON collaborator
type Planner interface {
	Plan(ctx context.Context, req planning.Request) *domain.Plan
}

// Executor is the ACT collaborator
type Executor interface {
	Execute(ctx context.Context, plan *domain.Plan) trading.Outcome
}

// Recorder persists the audit trail
type Recorder interface {
	RecordAction(ctx context.Context, a audit.Action) error
	RecordCycle(ctx context.Context, c audit.Cycle) error
}

// Config holds the loop settings
type Config struct {
	DryRun bool
}

// Deps are the collaborators of the loop. Audit and Events may be nil.
type Deps struct {
	Observer Observer
	Planner  Planner
	Executor Executor
	Store    *memory.Store
	Ledger   *portfolio.Ledger
	Wallet   domain.Wallet
	Audit    Recorder
	Events   *events.Manager
	Metrics  *metrics.PrometheusMetrics
}

// Agent drives one cycle per Run call
type Agent struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger
	now  func() time.Time
}

// New creates an agent
func New(cfg Config, deps Deps, log zerolog.Logger) *Agent {
	if deps.Metrics == nil {
		deps.Metrics = metrics.GetPrometheusMetrics()
	}
	return &Agent{
		cfg:  cfg,
		deps: deps,
		log:  log.With().Str("service", "agent").Logger(),
		now:  time.Now,
	}
}

// Run executes one full cycle and returns the final state. It always
// terminates in DONE: collaborator failures degrade the cycle, never abort it.
func (a *Agent) Run(ctx context.Context) RunState {
	start := a.now()
	state := RunState{RunID: uuid.New().String()}
	log := a.log.With().Str("run_id", state.RunID).Logger()

	log.Info().Bool("dry_run", a.cfg.DryRun).Msg("Cycle started")
	a.deps.Events.EmitTyped("agent", &events.CycleStartedData{RunID: state.RunID, DryRun: a.cfg.DryRun})

	failures := 0
	phase := PhasePerceive
	for phase != PhaseDone {
		switch phase {
		case PhasePerceive:
			failures = a.perceive(ctx, &state, log)
			phase = PhaseReason
		case PhaseReason:
			a.reason(ctx, &state, log)
			phase = PhaseAct
		case PhaseAct:
			a.act(ctx, &state, log)
			phase = nextAfterAct(state)
			log.Debug().Int("step", state.Step).Str("next", string(phase)).Msg("Routed after act")
		case PhaseReflect:
			a.reflect(ctx, &state, log)
			phase = PhaseDone
		}
	}

	elapsed := a.now().Sub(start)
	a.deps.Metrics.RecordCycle(state.LastAction(), elapsed)
	a.deps.Events.EmitTyped("agent", &events.CycleCompletedData{
		RunID:      state.RunID,
		Steps:      state.Step,
		LastAction: state.LastAction(),
		Duration:   elapsed.Seconds(),
	})
	if a.deps.Audit != nil {
		err := a.deps.Audit.RecordCycle(ctx, audit.Cycle{
			RunID:               state.RunID,
			StartedAt:           start,
			Duration:            elapsed,
			Steps:               state.Step,
			LastAction:          state.LastAction(),
			DryRun:              a.cfg.DryRun,
			ObservationFailures: failures,
			Reflection:          state.Reflection,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Failed to record cycle")
		}
	}

	log.Info().
		Int("steps", state.Step).
		Str("last_action", state.LastAction()).
		Dur("duration", elapsed).
		Msg("Cycle complete")
	return state
}

func (a *Agent) perceive(ctx context.Context, state *RunState, log zerolog.Logger) int {
	log.Info().Msg("PERCEIVE")
	observations, report := a.deps.Observer.Observe(ctx)

	state.Observations = observations
	state.Step = 0
	state.LastActionType = ""

	if err := a.deps.Store.SetObservationPrices(observations); err != nil {
		log.Warn().Err(err).Msg("Failed to persist price cache")
	}

	log.Info().Int("chars", len(observations)).Int("failures", report.Failures).Msg("Observations collected")
	a.deps.Events.EmitTyped("agent", &events.ObservationsCollectedData{
		RunID:    state.RunID,
		Chars:    len(observations),
		Failures: report.Failures,
	})
	return report.Failures
}

func (a *Agent) reason(ctx context.Context, state *RunState, log zerolog.Logger) {
	log.Info().Int("step", state.Step).Msg("REASON")
	plan := a.deps.Planner.Plan(ctx, planning.Request{
		Observations: state.Observations,
		Step:         state.Step,
		PriorResult:  state.ActionResult,
	})
	state.Plan = plan

	data := &events.PlanProducedData{RunID: state.RunID, Step: state.Step, Valid: plan != nil}
	if plan != nil {
		data.ActionType = plan.RecordedActionType()
		data.Target = plan.Target
		data.Confidence = plan.Confidence
	}
	a.deps.Events.EmitTyped("agent", data)
}

func (a *Agent) act(ctx context.Context, state *RunState, log zerolog.Logger) {
	log.Info().Int("step", state.Step).Msg("ACT")
	outcome := a.deps.Executor.Execute(ctx, state.Plan)

	state.ActionResult = outcome.Result
	state.ActionFailed = outcome.Failed
	state.ActionSkipped = outcome.Skipped
	state.LastActionType = ""
	if state.Plan != nil {
		state.LastActionType = state.Plan.ActionType
	}

	if a.deps.Audit != nil {
		record := audit.Action{
			RunID:      state.RunID,
			Step:       state.Step,
			ActionType: state.Plan.RecordedActionType(),
			Result:     outcome.Result,
			Failed:     outcome.Failed,
			Skipped:    outcome.Skipped,
			CreatedAt:  a.now(),
		}
		if state.Plan != nil {
			record.Target = state.Plan.Target
			record.Confidence = state.Plan.Confidence
		}
		if err := a.deps.Audit.RecordAction(ctx, record); err != nil {
			log.Warn().Err(err).Msg("Failed to record action")
		}
	}

	state.Step++
}

// reflect records the outcome, then compares the live SOL balance with the
// tracked position. A failed balance or position lookup ends the cycle
// without reconciliation.
func (a *Agent) reflect(ctx context.Context, state *RunState, log zerolog.Logger) {
	log.Info().Msg("REFLECT")
	defer func() { state.Done = true }()

	if err := a.deps.Store.AppendTrade(state.Plan, state.ActionResult); err != nil {
		log.Error().Err(err).Msg("Failed to save trade record")
	}

	state.Reflection = fmt.Sprintf("plan=%s | result=%s", state.Plan.String(), state.ActionResult)
	if err := a.deps.Store.AppendReflection(state.Reflection); err != nil {
		log.Error().Err(err).Msg("Failed to save reflection")
	}

	before, err := a.deps.Wallet.BalanceSOL(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("On-chain balance check failed during reflect")
		return
	}
	position, err := a.deps.Ledger.GetPosition("SOL")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load tracked SOL position during reflect")
		return
	}

	a.reconcile(before, position.Amount, log)

	if state.LastActionType == domain.ActionSwap {
		after, err := a.deps.Wallet.BalanceSOL(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Post-swap balance check failed")
			return
		}
		log.Info().Float64("before", before).Float64("after", after).Msg("Post-swap balance check")
		a.appendReflection(fmt.Sprintf("POST-SWAP BALANCE: before=%.6f after=%.6f delta=%.6f",
			before, after, after-before), log)
	}
}

func (a *Agent) reconcile(onchain, tracked float64, log zerolog.Logger) {
	drift := math.Abs(onchain - tracked)
	a.deps.Metrics.SetDrift(drift)
	if drift <= DriftReportThreshold {
		return
	}

	log.Warn().
		Float64("onchain", onchain).
		Float64("tracked", tracked).
		Float64("drift", drift).
		Msg("Position drift detected")
	a.appendReflection(fmt.Sprintf("DRIFT DETECTED: on-chain SOL balance=%.6f vs tracked SOL position=%.6f",
		onchain, tracked), log)

	reconciled := false
	if drift > DriftReconcileThreshold {
		price := a.solPrice(log)
		if price > 0 {
			delta := onchain - tracked
			if err := a.deps.Ledger.UpdatePosition("SOL", delta, math.Abs(delta)*price); err != nil {
				log.Error().Err(err).Msg("Failed to reconcile SOL position")
			} else {
				reconciled = true
				a.deps.Metrics.SetPosition("SOL", onchain)
				a.appendReflection(fmt.Sprintf("DRIFT RECONCILED: adjusted SOL by %+.6f at price %.2f", delta, price), log)
			}
		} else {
			log.Warn().Msg("Unable to reconcile drift, SOL price not available")
		}
	}

	a.deps.Events.EmitTyped("agent", &events.DriftDetectedData{
		OnchainSOL: onchain,
		TrackedSOL: tracked,
		Reconciled: reconciled,
	})
}

func (a *Agent) solPrice(log zerolog.Logger) float64 {
	cache, err := a.deps.Store.LatestPrices()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read price cache")
		return 0
	}
	return portfolio.TokenPrices(cache)["SOL"]
}

func (a *Agent) appendReflection(text string, log zerolog.Logger) {
	if err := a.deps.Store.AppendReflection(text); err != nil {
		log.Error().Err(err).Msg("Failed to save reflection")
	}
}

// SyncPositions seeds tracked positions from live balances. Run once at
// startup; failures are logged and the cycle proceeds.
func (a *Agent) SyncPositions(ctx context.Context) {
	prices := map[string]float64{"SOL": 0, "USDC": 1}
	if err := a.deps.Ledger.SyncFromOnchain(ctx, a.deps.Wallet, prices); err != nil {
		a.log.Warn().Err(err).Msg("Startup position sync failed")
	}
}
