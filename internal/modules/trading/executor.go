// Package trading executes approved plans: SOL transfers, token swaps,
// research actions and self-modification.
package trading

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/events"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/metrics"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/history"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/policy"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// Fixed result texts. Summaries and routing match on these.
const (
	ResultNoPlan     = "no valid plan produced"
	ResultNoop       = "noop"
	FailurePrefix    = "action blocked/failed: "
	DryRunSignature  = "DRY-RUN"
	swapSkippedLabel = "swap skipped: "
)

// Config holds the executor settings
type Config struct {
	ConfidenceThreshold float64
	DryRun              bool
	Network             domain.Network
}

// Deps are the collaborators the executor dispatches to
type Deps struct {
	Policy  *policy.Engine
	Store   *memory.Store
	Ledger  *portfolio.Ledger
	History *history.Reviewer
	Wallet  domain.Wallet
	Swapper domain.Swapper
	Scraper domain.Scraper
	Market  domain.MarketData
	Sandbox domain.Sandbox
	Events  *events.Manager
	Metrics *metrics.PrometheusMetrics
}

// Outcome is the result of one ACT step
type Outcome struct {
	Result string
	// Failed is set when the action was attempted and did not complete
	Failed bool
	// Skipped is set when the confidence gate stopped the action
	Skipped bool
}

// Executor is the ACT step. Execute never returns an error: every failure is
// folded into the outcome text.
type Executor struct {
	cfg  Config
	deps Deps
	log  zerolog.Logger
}

// NewExecutor creates an executor
func NewExecutor(cfg Config, deps Deps, log zerolog.Logger) *Executor {
	if deps.Metrics == nil {
		deps.Metrics = metrics.GetPrometheusMetrics()
	}
	return &Executor{
		cfg:  cfg,
		deps: deps,
		log:  log.With().Str("service", "executor").Logger(),
	}
}

// Execute gates and dispatches the plan
func (e *Executor) Execute(ctx context.Context, plan *domain.Plan) Outcome {
	if plan == nil {
		e.log.Info().Msg("No valid plan, skipping")
		e.deps.Metrics.RecordAction("none", "invalid")
		return Outcome{Result: ResultNoPlan, Failed: true}
	}

	action := plan.ActionType
	e.log.Info().
		Str("action", plan.RecordedActionType()).
		Float64("confidence", plan.Confidence).
		Float64("threshold", e.cfg.ConfidenceThreshold).
		Msg("Executing plan")

	if plan.Confidence < e.cfg.ConfidenceThreshold {
		e.log.Info().Msg("Confidence below threshold, skipped")
		e.deps.Metrics.RecordAction(action.String(), "skipped")
		outcome := Outcome{
			Result:  fmt.Sprintf("confidence %v below threshold — skipped", plan.Confidence),
			Skipped: true,
		}
		e.emit(plan, outcome)
		return outcome
	}

	result, err := e.dispatch(ctx, plan)
	var outcome Outcome
	switch {
	case err != nil:
		e.log.Warn().Err(err).Str("action", action.String()).Msg("Action blocked or failed")
		var pv *domain.PolicyViolation
		if errors.As(err, &pv) {
			e.deps.Metrics.RecordPolicyDenial(pv.Rule)
			e.deps.Events.EmitTyped("executor", &events.PolicyDeniedData{Rule: pv.Rule, Reason: pv.Reason})
		}
		outcome = Outcome{Result: FailurePrefix + err.Error(), Failed: true}
	case strings.HasPrefix(result, swapSkippedLabel):
		outcome = Outcome{Result: result, Failed: true}
	default:
		outcome = Outcome{Result: result}
	}

	e.deps.Metrics.RecordAction(action.String(), outcomeLabel(outcome))
	e.emit(plan, outcome)
	return outcome
}

func (e *Executor) dispatch(ctx context.Context, plan *domain.Plan) (string, error) {
	switch plan.ActionType {
	case domain.ActionWalletSend:
		return e.walletSend(ctx, plan)
	case domain.ActionSwap:
		return e.swap(ctx, plan)
	case domain.ActionScrape:
		return e.scrape(ctx, plan.Target)
	case domain.ActionAnalyze:
		p := plan.Analyze()
		e.log.Info().Str("symbol", p.Symbol).Str("interval", p.Interval).Int("limit", p.Limit).Msg("Analyzing market")
		return e.deps.Market.Analyze(ctx, p.Symbol, p.Interval, p.Limit)
	case domain.ActionReviewHistory:
		n := plan.ReviewHistoryCount(history.MaxReview)
		e.log.Info().Int("count", n).Msg("Reviewing history")
		return e.deps.History.Recent(n)
	case domain.ActionExtendCode:
		p, err := plan.ExtendCode()
		if err != nil {
			return "", err
		}
		e.log.Info().Str("path", p.Path).Int("chars", len(p.Code)).Msg("Applying code change")
		return e.deps.Sandbox.Apply(ctx, p.Path, p.Code, p.CommitMessage)
	default:
		e.log.Info().Msg("Noop")
		return ResultNoop, nil
	}
}

func (e *Executor) walletSend(ctx context.Context, plan *domain.Plan) (string, error) {
	p, err := plan.WalletSend()
	if err != nil {
		return "", err
	}
	e.log.Info().Float64("amount_sol", p.AmountSOL).Str("destination", p.Destination).Msg("Sending SOL")

	if err := e.deps.Policy.CheckWalletSend(p.AmountSOL, p.Destination); err != nil {
		return "", err
	}

	var result, sig string
	if e.cfg.DryRun {
		sig = DryRunSignature
		result = fmt.Sprintf("DRY-RUN: would send %v SOL → %s", p.AmountSOL, p.Destination)
		e.log.Info().Msg("Dry-run, transfer not submitted")
	} else {
		sig, err = e.deps.Wallet.Send(ctx, p.Destination, p.AmountSOL)
		if err != nil {
			return "", fmt.Errorf("failed to send SOL: %w", err)
		}
		result = fmt.Sprintf("sent %v SOL → %s, sig=%s", p.AmountSOL, p.Destination, sig)
		e.log.Info().Str("signature", sig).Msg("Transfer submitted")
	}

	if err := e.deps.Store.AddSpend(p.AmountSOL); err != nil {
		e.log.Error().Err(err).Msg("Failed to record daily spend")
	}
	e.deps.Metrics.RecordTransfer(p.AmountSOL, e.cfg.DryRun)
	e.deps.Events.EmitTyped("executor", &events.TransferSentData{
		Destination: p.Destination,
		AmountSOL:   p.AmountSOL,
		Signature:   sig,
		DryRun:      e.cfg.DryRun,
	})
	return result, nil
}

func (e *Executor) scrape(ctx context.Context, url string) (string, error) {
	if err := e.deps.Policy.CheckBrowserURL(url); err != nil {
		return "", err
	}
	e.log.Info().Str("url", url).Msg("Scraping")
	text, err := e.deps.Scraper.Scrape(ctx, url)
	if err != nil {
		return "", fmt.Errorf("failed to scrape %s: %w", url, err)
	}
	e.log.Info().Int("chars", len(text)).Msg("Scrape complete")
	return fmt.Sprintf("[scraped %s]\n%s", url, text), nil
}

func (e *Executor) emit(plan *domain.Plan, outcome Outcome) {
	e.deps.Events.EmitTyped("executor", &events.ActionExecutedData{
		ActionType: plan.RecordedActionType(),
		Result:     outcome.Result,
		Failed:     outcome.Failed,
		Skipped:    outcome.Skipped,
	})
}

func outcomeLabel(o Outcome) string {
	switch {
	case o.Skipped:
		return "skipped"
	case o.Failed:
		return "failed"
	}
	return "executed"
}

// IsFailure reports whether a recorded result text describes a failed action
func IsFailure(result string) bool {
	return strings.HasPrefix(result, FailurePrefix) || result == ResultNoPlan
}
