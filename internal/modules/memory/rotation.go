package memory

import (
	"fmt"
	"strings"
)

// Result prefixes that classify a trade outcome in summaries
const (
	failedResultPrefix  = "action blocked/failed"
	swapSkippedPrefix   = "swap skipped:"
	noPlanResult        = "no valid plan produced"
	skippedResultMarker = "below threshold"
)

// keepAfterRotation is how many entries survive when a summarized list
// overflows: three quarters of the cap, at least one.
func keepAfterRotation(limit int) int {
	keep := limit - limit/4
	if keep < 1 {
		keep = 1
	}
	return keep
}

// rotate enforces every list cap. Trades and swaps are compressed into exactly
// one summary per rotation event; reflections are pruned without a summary.
func (s *Store) rotate(doc *Document) {
	caps := s.caps

	if caps.MaxReflections > 0 && len(doc.Reflections) > caps.MaxReflections {
		over := len(doc.Reflections) - caps.MaxReflections
		doc.Reflections = append([]Reflection{}, doc.Reflections[over:]...)
	}

	if caps.MaxTrades > 0 && len(doc.Trades) > caps.MaxTrades {
		over := len(doc.Trades) - keepAfterRotation(caps.MaxTrades)
		doc.TradeSummaries = append(doc.TradeSummaries, summarizeTrades(doc.Trades[:over]))
		doc.Trades = append([]Trade{}, doc.Trades[over:]...)
	}

	if caps.MaxSwapHistory > 0 && len(doc.SwapHistory) > caps.MaxSwapHistory {
		over := len(doc.SwapHistory) - keepAfterRotation(caps.MaxSwapHistory)
		doc.SwapSummaries = append(doc.SwapSummaries, summarizeSwaps(doc.SwapHistory[:over]))
		doc.SwapHistory = append([]SwapRecord{}, doc.SwapHistory[over:]...)
	}

	doc.TradeSummaries = compactSummaries(doc.TradeSummaries, caps.MaxSummaries)
	doc.SwapSummaries = compactSummaries(doc.SwapSummaries, caps.MaxSummaries)
}

func summarizeTrades(trades []Trade) Summary {
	sum := Summary{
		Count:        len(trades),
		ActionCounts: map[string]int{},
	}
	for i, t := range trades {
		if i == 0 {
			sum.PeriodStart = t.Date
		}
		sum.PeriodEnd = t.Date
		sum.ActionCounts[t.ActionType]++

		switch {
		case strings.HasPrefix(t.Result, failedResultPrefix),
			strings.HasPrefix(t.Result, swapSkippedPrefix),
			t.Result == noPlanResult:
			sum.Failures++
		case strings.Contains(t.Result, skippedResultMarker):
			sum.Skipped++
		default:
			sum.Successes++
		}
	}
	sum.SuccessRate = successRate(sum.Successes, sum.Count)
	return sum
}

func summarizeSwaps(swaps []SwapRecord) Summary {
	sum := Summary{
		Count:        len(swaps),
		ActionCounts: map[string]int{},
	}
	for i, sw := range swaps {
		if i == 0 {
			sum.PeriodStart = sw.Date
		}
		sum.PeriodEnd = sw.Date
		sum.ActionCounts[fmt.Sprintf("%s->%s", sw.FromToken, sw.ToToken)]++
		sum.TotalUSD += sw.AmountUSD

		if sw.Mock || sw.DryRun {
			sum.Simulated++
		} else {
			sum.Successes++
		}
	}
	sum.SuccessRate = successRate(sum.Successes, sum.Count)
	return sum
}

// compactSummaries merges the two oldest summaries until the list fits
func compactSummaries(list []Summary, limit int) []Summary {
	if limit <= 0 {
		return list
	}
	for len(list) > limit && len(list) >= 2 {
		merged := mergeSummaries(list[0], list[1])
		list = append([]Summary{merged}, list[2:]...)
	}
	return list
}

func mergeSummaries(a, b Summary) Summary {
	out := Summary{
		PeriodStart:  a.PeriodStart,
		PeriodEnd:    b.PeriodEnd,
		Count:        a.Count + b.Count,
		ActionCounts: map[string]int{},
		Successes:    a.Successes + b.Successes,
		Failures:     a.Failures + b.Failures,
		Skipped:      a.Skipped + b.Skipped,
		Simulated:    a.Simulated + b.Simulated,
		TotalUSD:     a.TotalUSD + b.TotalUSD,
	}
	for k, v := range a.ActionCounts {
		out.ActionCounts[k] += v
	}
	for k, v := range b.ActionCounts {
		out.ActionCounts[k] += v
	}
	out.SuccessRate = successRate(out.Successes, out.Count)
	return out
}

func successRate(successes, count int) float64 {
	if count == 0 {
		return 0
	}
	return float64(successes) / float64(count)
}
