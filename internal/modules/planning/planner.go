// Package planning builds the model context and turns the model's answer into
// a structured plan.
package planning

import (
	"context"
	"time"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/history"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// BalanceUnknown is shown to the model when the wallet lookup failed
const BalanceUnknown = -1.0

// SOLBalanceReader returns the live native SOL balance
type SOLBalanceReader interface {
	BalanceSOL(ctx context.Context) (float64, error)
}

// Request is the per-step input of the planner
type Request struct {
	Observations string
	Step         int
	PriorResult  string
}

// Planner is the REASON step: it gathers status, prompts the model and parses
// the answer. It never returns an error; every failure yields a nil plan.
type Planner struct {
	llm       domain.LLM
	store     *memory.Store
	ledger    *portfolio.Ledger
	history   *history.Reviewer
	wallet    SOLBalanceReader
	threshold float64
	log       zerolog.Logger
}

// NewPlanner creates a planner
func NewPlanner(
	llm domain.LLM,
	store *memory.Store,
	ledger *portfolio.Ledger,
	history *history.Reviewer,
	wallet SOLBalanceReader,
	threshold float64,
	log zerolog.Logger,
) *Planner {
	return &Planner{
		llm:       llm,
		store:     store,
		ledger:    ledger,
		history:   history,
		wallet:    wallet,
		threshold: threshold,
		log:       log.With().Str("service", "planner").Logger(),
	}
}

// Plan produces the next plan, or nil when the model call or parse fails
func (p *Planner) Plan(ctx context.Context, req Request) *domain.Plan {
	userPrompt := p.BuildPrompt(ctx, req)

	p.log.Info().Str("model", p.llm.Model()).Int("step", req.Step).Msg("Calling language model")
	start := time.Now()
	raw, err := p.llm.Complete(ctx, SystemPrompt(p.threshold), userPrompt)
	if err != nil {
		p.log.Error().Err(err).Msg("Language model call failed")
		return nil
	}
	p.log.Debug().
		Dur("latency", time.Since(start)).
		Str("raw", truncate(raw, 500)).
		Msg("Language model responded")

	plan, err := ParsePlan(raw)
	if err != nil {
		p.log.Warn().Err(err).Msg("No valid plan in model output")
		return nil
	}

	p.log.Info().
		Str("action", plan.RecordedActionType()).
		Str("target", plan.Target).
		Float64("confidence", plan.Confidence).
		Msg("Plan produced")
	return plan
}

// BuildPrompt gathers balance, spend, history and benchmark context into the
// user prompt. Lookup failures degrade individual fields only.
func (p *Planner) BuildPrompt(ctx context.Context, req Request) string {
	balance, err := p.wallet.BalanceSOL(ctx)
	if err != nil {
		p.log.Warn().Err(err).Msg("Balance check failed")
		balance = BalanceUnknown
	}

	spent := 0.0
	if doc, err := p.store.Load(); err != nil {
		p.log.Warn().Err(err).Msg("Failed to load state document")
	} else {
		spent = doc.DailySpendSOL
	}

	lastTwo, err := p.history.Recent(2)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to load recent actions")
		lastTwo = "[history] unavailable"
	}

	benchmark, positions := p.benchmark(balance)

	return BuildUserPrompt(PromptInput{
		BalanceSOL:   balance,
		SpentToday:   spent,
		Benchmark:    benchmark,
		Portfolio:    positions,
		LastActions:  lastTwo,
		Observations: req.Observations,
		Step:         req.Step,
		PriorResult:  req.PriorResult,
	})
}

// benchmark anchors the benchmark lazily and returns the comparison line plus
// the tracked-positions summary
func (p *Planner) benchmark(balance float64) (string, string) {
	cache, err := p.store.LatestPrices()
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to read price cache")
		return BenchmarkUnavailable, ""
	}
	prices := portfolio.TokenPrices(cache)

	summary, err := p.ledger.Summary(prices)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to summarize positions")
		summary = ""
	}

	solPrice, ok := prices["SOL"]
	if !ok || solPrice <= 0 {
		return BenchmarkUnavailable, summary
	}

	value, err := p.portfolioValue(balance, prices)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to value portfolio")
		return BenchmarkUnavailable, summary
	}

	doc, err := p.store.EnsureBenchmark(value, prices)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to anchor benchmark")
		return BenchmarkUnavailable, summary
	}

	perf, ok := ComparePerformance(doc.Benchmark, value, solPrice)
	if !ok {
		return BenchmarkUnavailable, summary
	}
	return perf.String(), summary
}

// portfolioValue values tracked positions, substituting the live wallet SOL
// balance for the tracked SOL amount when the lookup succeeded
func (p *Planner) portfolioValue(balance float64, prices map[string]float64) (float64, error) {
	positions, err := p.ledger.Positions()
	if err != nil {
		return 0, err
	}

	total := 0.0
	for symbol, pos := range positions {
		if symbol == "SOL" && balance > 0 {
			continue
		}
		total += pos.Amount * prices[symbol]
	}
	if balance > 0 {
		total += balance * prices["SOL"]
	}
	return total, nil
}

// truncate cuts s to at most max runes
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
