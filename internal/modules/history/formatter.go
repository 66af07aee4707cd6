// Package history formats the agent's own past actions for the model.
package history

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
	"github.com/rs/zerolog"
)

// MaxReview caps how many past actions one review may return
const MaxReview = 50

// TradeSource returns the most recent trades, newest first
type TradeSource interface {
	RecentTrades(n int) ([]memory.Trade, error)
}

// Reviewer renders past trades as text
type Reviewer struct {
	trades TradeSource
	log    zerolog.Logger
}

// NewReviewer creates a history reviewer
func NewReviewer(trades TradeSource, log zerolog.Logger) *Reviewer {
	return &Reviewer{
		trades: trades,
		log:    log.With().Str("service", "history").Logger(),
	}
}

// Recent formats the last n trades, newest first
func (r *Reviewer) Recent(n int) (string, error) {
	if n > MaxReview {
		n = MaxReview
	}
	trades, err := r.trades.RecentTrades(n)
	if err != nil {
		return "", fmt.Errorf("failed to load trade history: %w", err)
	}
	if len(trades) == 0 {
		return "[history] no past actions recorded yet", nil
	}

	r.log.Debug().Int("count", len(trades)).Msg("Returning trade history")

	blocks := make([]string, len(trades))
	for i, t := range trades {
		blocks[i] = FormatTrade(i+1, t)
	}
	return strings.Join(blocks, "\n\n"), nil
}

// FormatTrade renders one trade block
func FormatTrade(idx int, t memory.Trade) string {
	date := t.Date
	if date == "" {
		date = "?"
	}
	reason := t.Reason
	if reason == "" {
		reason = "(none)"
	}
	result := t.Result
	if result == "" {
		result = "(none)"
	}

	lines := []string{
		fmt.Sprintf("--- past action #%d (%s) ---", idx, date),
		fmt.Sprintf("  action   : %s", t.ActionType),
		fmt.Sprintf("  target   : %s", t.Target),
	}
	if len(t.Params) > 0 {
		params, err := json.Marshal(t.Params)
		if err != nil {
			params = []byte(fmt.Sprint(t.Params))
		}
		lines = append(lines, fmt.Sprintf("  params   : %s", params))
	}
	lines = append(lines,
		fmt.Sprintf("  confidence: %g", t.Confidence),
		fmt.Sprintf("  why      : %s", reason),
		fmt.Sprintf("  result   : %s", result),
	)
	return strings.Join(lines, "\n")
}
