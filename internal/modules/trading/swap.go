package trading

import (
	"context"
	"errors"
	"fmt"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/events"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/policy"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/portfolio"
)

// Swap execution modes
const (
	swapModeReal   = "real"
	swapModeDryRun = "dry_run"
	swapModeMock   = "mock"
)

func (e *Executor) swap(ctx context.Context, plan *domain.Plan) (string, error) {
	p, err := plan.Swap()
	if err != nil {
		return "", err
	}
	e.log.Info().
		Float64("amount", p.AmountSOL).
		Str("from", p.FromToken).
		Str("to", p.ToToken).
		Int("slippage_bps", p.SlippageBps).
		Msg("Swapping")

	if p.AmountSOL <= 0 {
		return "", fmt.Errorf("amount_sol must be positive for swap")
	}

	// Insufficient or missing source balance is a skip, not an error
	if err := e.deps.Policy.CheckSwapBalance(ctx, e.deps.Wallet, p.FromToken, p.AmountSOL); err != nil {
		var pv *domain.PolicyViolation
		if errors.As(err, &pv) {
			e.log.Info().Str("reason", pv.Reason).Msg("Swap skipped")
			return swapSkippedLabel + pv.Reason, nil
		}
		return "", err
	}

	prices := e.cachedPrices()
	amountUSD, priced := notionalUSD(prices, p.FromToken, p.AmountSOL)
	if !priced {
		e.log.Warn().Str("token", p.FromToken).Msg("No cached price, using raw amount as USD notional")
	}

	if err := e.deps.Policy.CheckSwap(policy.SwapCheck{
		From:         p.FromToken,
		To:           p.ToToken,
		AmountUSD:    amountUSD,
		AmountNative: p.AmountSOL,
		Network:      e.cfg.Network,
	}); err != nil {
		return "", err
	}

	sig, mode, err := e.submitSwap(ctx, p)
	if err != nil {
		return "", err
	}

	if mode == swapModeReal {
		if err := e.applyFill(p, amountUSD, prices); err != nil {
			e.log.Error().Err(err).Msg("Failed to update positions after swap")
		}
	}

	if err := e.deps.Ledger.AppendSwap(memory.SwapRecord{
		FromToken:   p.FromToken,
		ToToken:     p.ToToken,
		AmountSOL:   p.AmountSOL,
		AmountUSD:   amountUSD,
		SlippageBps: p.SlippageBps,
		Signature:   sig,
		Prices:      recordPrices(prices),
		Mock:        mode == swapModeMock,
		DryRun:      mode == swapModeDryRun,
	}); err != nil {
		e.log.Error().Err(err).Msg("Failed to append swap record")
	}
	if err := e.deps.Store.AddSwapUSD(amountUSD); err != nil {
		e.log.Error().Err(err).Msg("Failed to record daily swap volume")
	}

	e.deps.Metrics.RecordSwap(p.FromToken, p.ToToken, mode, amountUSD)
	e.deps.Events.EmitTyped("executor", &events.SwapExecutedData{
		FromToken: p.FromToken,
		ToToken:   p.ToToken,
		Amount:    p.AmountSOL,
		AmountUSD: amountUSD,
		Signature: sig,
		Mock:      mode == swapModeMock,
		DryRun:    mode == swapModeDryRun,
	})
	e.log.Info().Str("signature", sig).Str("mode", mode).Msg("Swap complete")

	if mode == swapModeMock {
		return fmt.Sprintf("DEVNET MOCK SWAP (no position update): %v %s → %s, approx $%.2f, sig=%s",
			p.AmountSOL, p.FromToken, p.ToToken, amountUSD, sig), nil
	}
	return fmt.Sprintf("swapped %v %s → %s, approx $%.2f, sig=%s",
		p.AmountSOL, p.FromToken, p.ToToken, amountUSD, sig), nil
}

// submitSwap runs the swap, or simulates it in dry-run mode or when a test
// network has no route for the pair
func (e *Executor) submitSwap(ctx context.Context, p domain.SwapParams) (string, string, error) {
	amount := domain.ToSmallestUnit(p.FromToken, p.AmountSOL)

	if e.cfg.DryRun {
		e.log.Info().Msg("Dry-run, swap not submitted")
		return DryRunSignature, swapModeDryRun, nil
	}

	sig, err := e.deps.Swapper.Swap(ctx, p.FromToken, p.ToToken, amount, p.SlippageBps)
	if err == nil {
		if domain.IsMockSwapSignature(sig) {
			return sig, swapModeMock, nil
		}
		return sig, swapModeReal, nil
	}

	if !errors.Is(err, domain.ErrNoLiquidity) || e.cfg.Network == domain.Mainnet {
		return "", "", fmt.Errorf("failed to execute swap: %w", err)
	}

	tokens := domain.TokensFor(e.cfg.Network)
	fromMint, mintErr := tokens.MintFor(p.FromToken)
	if mintErr != nil {
		return "", "", mintErr
	}
	toMint, mintErr := tokens.MintFor(p.ToToken)
	if mintErr != nil {
		return "", "", mintErr
	}
	e.log.Warn().Err(err).Str("network", string(e.cfg.Network)).Msg("No liquidity, recording mock swap")
	return domain.MockSwapSignature(fromMint, toMint, amount, p.SlippageBps), swapModeMock, nil
}

// applyFill moves the notional out of the source position and into the target
func (e *Executor) applyFill(p domain.SwapParams, amountUSD float64, prices map[string]float64) error {
	if err := e.deps.Ledger.UpdatePosition(p.FromToken, -p.AmountSOL, amountUSD); err != nil {
		return err
	}

	received := p.AmountSOL
	if price := prices[p.ToToken]; price > 0 {
		received = amountUSD / price
	} else {
		e.log.Warn().Str("token", p.ToToken).Msg("No cached price, crediting raw amount")
	}
	return e.deps.Ledger.UpdatePosition(p.ToToken, received, amountUSD)
}

func (e *Executor) cachedPrices() map[string]float64 {
	cache, err := e.deps.Store.LatestPrices()
	if err != nil {
		e.log.Warn().Err(err).Msg("Failed to read price cache")
		cache = nil
	}
	return portfolio.TokenPrices(cache)
}

// notionalUSD values amount of token at the cached price. Without a price the
// raw amount stands in and priced is false.
func notionalUSD(prices map[string]float64, token string, amount float64) (float64, bool) {
	price, ok := prices[token]
	if !ok || price <= 0 {
		return amount, false
	}
	return amount * price, true
}

func recordPrices(prices map[string]float64) map[string]float64 {
	return map[string]float64{
		"SOL":  prices["SOL"],
		"USDC": 1.0,
	}
}
