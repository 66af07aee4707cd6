package memory

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
)

// ResultTruncate is the maximum number of characters of a result kept per trade
const ResultTruncate = 300

// closeLine matches the headline of a single-timeframe TA summary
var closeLine = regexp.MustCompile(`(?m)^\[([A-Z0-9]+)\] close=([0-9]*\.?[0-9]+(?:[eE][-+]?[0-9]+)?)`)

// AddSpend increments today's SOL spend
func (s *Store) AddSpend(amountSOL float64) error {
	return s.Update(func(doc *Document) error {
		doc.DailySpendSOL += amountSOL
		doc.DailySpendDate = s.Today()
		return nil
	})
}

// AddSwapUSD increments today's swap notional
func (s *Store) AddSwapUSD(amountUSD float64) error {
	return s.Update(func(doc *Document) error {
		doc.DailySwapUSD += amountUSD
		doc.DailySwapDate = s.Today()
		return nil
	})
}

// AppendReflection records a dated free-text note
func (s *Store) AppendReflection(text string) error {
	return s.Update(func(doc *Document) error {
		doc.Reflections = append(doc.Reflections, Reflection{Date: s.Today(), Text: text})
		return nil
	})
}

// AppendTrade records the executed plan and its (truncated) result.
// A nil plan is recorded as an "unknown" action.
func (s *Store) AppendTrade(plan *domain.Plan, result string) error {
	trade := Trade{
		Date:       s.Today(),
		ActionType: plan.RecordedActionType(),
		Params:     map[string]interface{}{},
		Result:     truncateRunes(result, ResultTruncate),
	}
	if plan != nil {
		trade.Target = plan.Target
		trade.Confidence = plan.Confidence
		trade.Reason = plan.Reason
		for k, v := range plan.Params {
			trade.Params[k] = v
		}
	}

	return s.Update(func(doc *Document) error {
		doc.Trades = append(doc.Trades, trade)
		return nil
	})
}

// RecentTrades returns the n most recent trades, newest first
func (s *Store) RecentTrades(n int) ([]Trade, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []Trade{}, nil
	}

	trades := doc.Trades
	if len(trades) > n {
		trades = trades[len(trades)-n:]
	}
	out := make([]Trade, 0, len(trades))
	for i := len(trades) - 1; i >= 0; i-- {
		out = append(out, trades[i])
	}
	return out, nil
}

// EnsureBenchmark records the benchmark anchor on first call and leaves it
// untouched afterwards. Returns the document holding the anchor.
func (s *Store) EnsureBenchmark(portfolioUSD float64, prices map[string]float64) (*Document, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	if doc.Benchmark.IsSet() {
		return doc, nil
	}

	var out *Document
	err = s.Update(func(d *Document) error {
		out = d
		if d.Benchmark.IsSet() {
			return nil
		}
		anchor := Benchmark{
			StartDate:         s.Today(),
			StartPortfolioUSD: portfolioUSD,
			StartPrices:       make(map[string]float64, len(prices)),
		}
		for k, v := range prices {
			anchor.StartPrices[k] = v
		}
		d.Benchmark = anchor
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetObservationPrices replaces the compact price cache with the close prices
// found in the observation text ("[SYMBOL] close=P" lines)
func (s *Store) SetObservationPrices(observations string) error {
	compact := CompactPrices(observations)
	return s.Update(func(doc *Document) error {
		doc.LastObservationsPrices = compact
		return nil
	})
}

// LatestPrices parses the compact price cache into symbol -> price
func (s *Store) LatestPrices() (map[string]float64, error) {
	doc, err := s.Load()
	if err != nil {
		return nil, err
	}
	return ParsePriceCache(doc.LastObservationsPrices), nil
}

// CompactPrices extracts "[SYMBOL] P" entries from observation text
func CompactPrices(observations string) []string {
	out := []string{}
	seen := map[string]bool{}
	for _, m := range closeLine.FindAllStringSubmatch(observations, -1) {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		out = append(out, "["+m[1]+"] "+m[2])
	}
	return out
}

// ParsePriceCache turns "[SYMBOL] P" lines into a price map, skipping
// malformed entries
func ParsePriceCache(lines []string) map[string]float64 {
	prices := make(map[string]float64, len(lines))
	for _, line := range lines {
		parts := strings.Fields(line)
		if len(parts) != 2 {
			continue
		}
		symbol := strings.ToUpper(strings.Trim(parts[0], "[]"))
		price, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || symbol == "" {
			continue
		}
		prices[symbol] = price
	}
	return prices
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
