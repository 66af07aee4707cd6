package planning

import (
	"fmt"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
)

// BenchmarkUnavailable is reported when no SOL price or anchor is known
const BenchmarkUnavailable = "unavailable"

// Performance compares the portfolio against holding SOL since the anchor
type Performance struct {
	Since        string
	PortfolioPct float64
	SOLHoldPct   float64
}

// String renders the comparison line shown to the model
func (p Performance) String() string {
	return fmt.Sprintf("Since %s, your portfolio is %+.2f%% vs SOL buy-and-hold %+.2f%% (USD terms).",
		p.Since, p.PortfolioPct, p.SOLHoldPct)
}

// ComparePerformance computes portfolio and SOL-hold returns since the anchor.
// ok is false when the anchor lacks a positive starting value.
func ComparePerformance(anchor memory.Benchmark, portfolioUSD, solPrice float64) (Performance, bool) {
	startUSD := anchor.StartPortfolioUSD
	if startUSD <= 0 || solPrice <= 0 {
		return Performance{}, false
	}
	startSOL := anchor.StartPrices["SOL"]
	if startSOL <= 0 {
		startSOL = solPrice
	}

	solHoldUSD := startUSD * (solPrice / startSOL)
	return Performance{
		Since:        anchor.StartDate,
		PortfolioPct: (portfolioUSD/startUSD - 1) * 100,
		SOLHoldPct:   (solHoldUSD/startUSD - 1) * 100,
	}, true
}
