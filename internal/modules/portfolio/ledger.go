// Package portfolio tracks token positions and their approximate cost basis.
package portfolio

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
	"github.com/rs/zerolog"
)

// SourceOnchainSync marks positions seeded from live balances
const SourceOnchainSync = "onchain_sync"

// Ledger is the position accessor over the state document.
// It never queries the chain itself except in SyncFromOnchain; swaps and
// reconciliation are the only writers.
type Ledger struct {
	store *memory.Store
	log   zerolog.Logger
}

// NewLedger creates a ledger backed by store
func NewLedger(store *memory.Store, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: store,
		log:   log.With().Str("service", "portfolio_ledger").Logger(),
	}
}

// UpdatePosition applies amountDelta to token. Buys add usdValue to cost basis;
// sells scale cost basis down by the sold fraction. A non-positive result
// resets both amount and cost basis to zero.
func (l *Ledger) UpdatePosition(token string, amountDelta, usdValue float64) error {
	symbol := strings.ToUpper(token)

	err := l.store.Update(func(doc *memory.Document) error {
		pos := doc.Positions[symbol]
		amount := pos.Amount + amountDelta
		costBasis := pos.CostBasisUSD

		if amountDelta > 0 && usdValue > 0 {
			costBasis += usdValue
		} else if amountDelta < 0 && amount > 0 && costBasis > 0 {
			sold := math.Abs(amountDelta)
			soldFraction := math.Min(1, sold/(amount+sold))
			costBasis *= 1 - soldFraction
		}
		if amount <= 0 {
			amount = 0
			costBasis = 0
		}

		doc.Positions[symbol] = memory.Position{
			Amount:       amount,
			CostBasisUSD: costBasis,
			LastUpdated:  l.store.Today(),
			Source:       pos.Source,
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update %s position: %w", symbol, err)
	}

	l.log.Debug().
		Str("token", symbol).
		Float64("delta", amountDelta).
		Float64("usd_value", usdValue).
		Msg("Position updated")
	return nil
}

// GetPosition returns the tracked position of token (zero value when untracked)
func (l *Ledger) GetPosition(token string) (memory.Position, error) {
	doc, err := l.store.Load()
	if err != nil {
		return memory.Position{}, err
	}
	return doc.Positions[strings.ToUpper(token)], nil
}

// Positions returns every tracked position
func (l *Ledger) Positions() (map[string]memory.Position, error) {
	doc, err := l.store.Load()
	if err != nil {
		return nil, err
	}
	return doc.Positions, nil
}

// PortfolioValueUSD sums amount × price over tracked tokens. Unpriced tokens
// contribute zero.
func (l *Ledger) PortfolioValueUSD(prices map[string]float64) (float64, error) {
	doc, err := l.store.Load()
	if err != nil {
		return 0, err
	}

	total := 0.0
	for symbol, pos := range doc.Positions {
		total += pos.Amount * prices[strings.ToUpper(symbol)]
	}
	return total, nil
}

// AppendSwap records a swap in the rotation-managed history
func (l *Ledger) AppendSwap(record memory.SwapRecord) error {
	if record.Date == "" {
		record.Date = l.store.Today()
	}
	return l.store.Update(func(doc *memory.Document) error {
		doc.SwapHistory = append(doc.SwapHistory, record)
		return nil
	})
}

// SyncFromOnchain seeds positions for tokens that hold a live balance but have
// no positive tracked amount. Positive tracked positions are never overwritten.
func (l *Ledger) SyncFromOnchain(ctx context.Context, balances domain.BalanceProvider, prices map[string]float64) error {
	live, err := balances.AllBalances(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch on-chain balances: %w", err)
	}

	var seeded []string
	err = l.store.Update(func(doc *memory.Document) error {
		seeded = seeded[:0]
		for token, balance := range live {
			symbol := strings.ToUpper(token)
			if balance <= 0 || doc.Positions[symbol].Amount > 0 {
				continue
			}
			doc.Positions[symbol] = memory.Position{
				Amount:       balance,
				CostBasisUSD: balance * prices[symbol],
				LastUpdated:  l.store.Today(),
				Source:       SourceOnchainSync,
			}
			seeded = append(seeded, symbol)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to persist synced positions: %w", err)
	}

	if len(seeded) > 0 {
		sort.Strings(seeded)
		l.log.Info().Strs("tokens", seeded).Msg("Seeded positions from on-chain balances")
	}
	return nil
}

// Summary renders a compact portfolio line for the model
func (l *Ledger) Summary(prices map[string]float64) (string, error) {
	doc, err := l.store.Load()
	if err != nil {
		return "", err
	}
	if len(doc.Positions) == 0 {
		return "no tracked positions yet", nil
	}

	symbols := make([]string, 0, len(doc.Positions))
	for symbol := range doc.Positions {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	total := 0.0
	parts := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		amount := doc.Positions[symbol].Amount
		value := amount * prices[strings.ToUpper(symbol)]
		total += value
		parts = append(parts, fmt.Sprintf("%s: %.6f (~$%.2f)", symbol, amount, value))
	}
	return fmt.Sprintf("total ≈ $%.2f; %s", total, strings.Join(parts, ", ")), nil
}

// TokenPrices maps the market price cache (keyed by Binance pair) to token
// symbols. USDC is pinned to 1.
func TokenPrices(cache map[string]float64) map[string]float64 {
	prices := map[string]float64{"USDC": 1}
	if p, ok := cache["SOLUSDT"]; ok {
		prices["SOL"] = p
	}
	if p, ok := cache["BTCUSDT"]; ok {
		prices["WBTC"] = p
	}
	for pair, p := range cache {
		if base := strings.TrimSuffix(pair, "USDT"); base != pair && base != "" {
			if _, exists := prices[base]; !exists {
				prices[base] = p
			}
		}
	}
	return prices
}
