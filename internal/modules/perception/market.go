package perception

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/pkg/formulas"
	"github.com/rs/zerolog"
)

// Timeframes summarized for every watched symbol
const (
	IntervalShort = "1h"
	IntervalLong  = "4h"
)

// hoursPerYear annualizes hourly volatility; crypto trades around the clock
const hoursPerYear = 24 * 365

// KlineSource returns OHLCV candles, oldest first
type KlineSource interface {
	Klines(ctx context.Context, symbol, interval string, limit int) (formulas.Candles, error)
}

// MarketAnalyzer turns klines into the indicator summaries the planner reads
type MarketAnalyzer struct {
	klines KlineSource
	limit  int
	log    zerolog.Logger
}

// NewMarketAnalyzer creates an analyzer fetching limit candles per timeframe
func NewMarketAnalyzer(klines KlineSource, limit int, log zerolog.Logger) *MarketAnalyzer {
	if limit <= 0 {
		limit = 100
	}
	return &MarketAnalyzer{
		klines: klines,
		limit:  limit,
		log:    log.With().Str("component", "market_analyzer").Logger(),
	}
}

// Analyze summarizes one symbol on one timeframe
func (m *MarketAnalyzer) Analyze(ctx context.Context, symbol, interval string, limit int) (string, error) {
	symbol = strings.ToUpper(symbol)
	candles, err := m.klines.Klines(ctx, symbol, interval, limit)
	if err != nil {
		return "", err
	}
	m.log.Debug().Str("symbol", symbol).Str("interval", interval).Int("candles", candles.Len()).Msg("Analyzed")
	return Summarize(symbol, candles), nil
}

// Summaries returns the 1h summary, the 4h summary and a trend alignment line.
// When the 4h fetch fails the 1h summary is still returned with the error.
func (m *MarketAnalyzer) Summaries(ctx context.Context, symbol string) ([]string, error) {
	symbol = strings.ToUpper(symbol)

	short, err := m.klines.Klines(ctx, symbol, IntervalShort, m.limit)
	if err != nil {
		return nil, err
	}
	out := []string{Summarize(symbol, short)}

	long, err := m.klines.Klines(ctx, symbol, IntervalLong, m.limit)
	if err != nil {
		return out, err
	}
	out = append(out, Summarize(symbol+"-"+IntervalLong, long))

	shortSnap := formulas.ComputeSnapshot(short)
	longSnap := formulas.ComputeSnapshot(long)
	out = append(out, TrendAlignment(symbol, shortSnap.TrendTag(), longSnap.TrendTag()))

	m.log.Debug().Str("symbol", symbol).Int("candles_1h", short.Len()).Int("candles_4h", long.Len()).Msg("Multi-timeframe summary")
	return out, nil
}

// Summarize formats the latest indicator values of a series. The first line
// is "[LABEL] close=P", which the price cache parses.
func Summarize(label string, c formulas.Candles) string {
	if c.Len() == 0 {
		return fmt.Sprintf("[%s] no data", label)
	}

	s := formulas.ComputeSnapshot(c)
	lines := []string{
		fmt.Sprintf("[%s] close=%s", label, strconv.FormatFloat(s.Close, 'f', -1, 64)),
		fmt.Sprintf("  SMA20=%s  SMA50=%s", num(s.SMAFast), num(s.SMASlow)),
		fmt.Sprintf("  EMA20=%s  MACD=%s", num(s.EMA), num(s.MACD)),
		fmt.Sprintf("  MACD_signal=%s  MACD_hist=%s", num(s.MACDSignal), num(s.MACDHist)),
		fmt.Sprintf("  RSI=%s  Stoch_K=%s", num(s.RSI), num(s.StochK)),
		fmt.Sprintf("  Stoch_D=%s", num(s.StochD)),
		fmt.Sprintf("  BB_upper=%s  BB_lower=%s", num(s.BBUpper), num(s.BBLower)),
		fmt.Sprintf("  ATR=%s", num(s.ATR)),
		fmt.Sprintf("  OBV=%s  VWAP=%s", num(s.OBV), num(s.VWAP)),
		fmt.Sprintf("  change=%.2f%%  volatility=%.2f", formulas.PercentChange(c.Close), formulas.RealizedVolatility(c.Close, hoursPerYear)),
		fmt.Sprintf("  max_drawdown=%.2f%%", formulas.MaxDrawdownPct(c.Close)),
		fmt.Sprintf("  trend_tag=%s  momentum_tag=%s", s.TrendTag(), s.MomentumTag()),
	}
	return strings.Join(lines, "\n")
}

// TrendAlignment compares the short and long timeframe trend tags
func TrendAlignment(symbol, short, long string) string {
	var verdict string
	switch {
	case short == "unknown" || long == "unknown":
		verdict = "insufficient data"
	case short == long && short == "uptrend":
		verdict = "aligned bullish"
	case short == long && short == "downtrend":
		verdict = "aligned bearish"
	case short == long:
		verdict = "aligned sideways"
	default:
		verdict = "mixed"
	}
	return fmt.Sprintf("[%s] trend alignment: 1h=%s 4h=%s → %s", symbol, short, long, verdict)
}

func num(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "N/A"
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// FundingSource returns the funding rate of one perpetual
type FundingSource interface {
	FundingRate(ctx context.Context, symbol string) (float64, error)
}

// OpenInterestSource returns the open interest of one perpetual in base units
type OpenInterestSource interface {
	OpenInterest(ctx context.Context, symbol string) (float64, error)
}

// FundingRates queries each perpetual independently
type FundingRates struct {
	source FundingSource
	oi     OpenInterestSource
	log    zerolog.Logger
}

// NewFundingRates creates a funding provider. When source also reports open
// interest, OpenInterest is served from it.
func NewFundingRates(source FundingSource, log zerolog.Logger) *FundingRates {
	f := &FundingRates{
		source: source,
		log:    log.With().Str("component", "funding").Logger(),
	}
	if oi, ok := source.(OpenInterestSource); ok {
		f.oi = oi
	}
	return f
}

// OpenInterest returns the open interest of every symbol that could be
// fetched. Failures are logged and skipped.
func (f *FundingRates) OpenInterest(ctx context.Context, symbols []string) map[string]float64 {
	out := make(map[string]float64, len(symbols))
	if f.oi == nil {
		return out
	}
	for _, symbol := range symbols {
		value, err := f.oi.OpenInterest(ctx, symbol)
		if err != nil {
			f.log.Debug().Err(err).Str("symbol", symbol).Msg("Failed to fetch open interest")
			continue
		}
		out[symbol] = value
	}
	return out
}

// FundingRates returns the rates that could be fetched. A symbol that fails is
// skipped; only when every symbol fails is an error returned.
func (f *FundingRates) FundingRates(ctx context.Context, symbols []string) (map[string]float64, error) {
	rates := make(map[string]float64, len(symbols))
	var errs []error
	for _, symbol := range symbols {
		rate, err := f.source.FundingRate(ctx, symbol)
		if err != nil {
			f.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to fetch funding rate")
			errs = append(errs, err)
			continue
		}
		rates[symbol] = rate
	}
	if len(symbols) > 0 && len(rates) == 0 {
		return nil, errors.Join(errs...)
	}
	return rates, nil
}

// NeutralSentiment reports low social volume and a neutral mood for every
// symbol until a real provider is configured
type NeutralSentiment struct{}

// Summarize returns "sentiment: SYM: volume=0.10, mood=neutral; ..."
func (NeutralSentiment) Summarize(ctx context.Context, symbols []string) (string, error) {
	if len(symbols) == 0 {
		return "sentiment: no symbols provided", nil
	}
	parts := make([]string, 0, len(symbols))
	for _, sym := range symbols {
		parts = append(parts, fmt.Sprintf("%s: volume=%.2f, mood=%s", sym, 0.1, moodFor(0)))
	}
	return "sentiment: " + strings.Join(parts, "; "), nil
}

func moodFor(score float64) string {
	switch {
	case score > 0.2:
		return "bullish"
	case score < -0.2:
		return "bearish"
	}
	return "neutral"
}
