package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// StdDev calculates the standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// CalculateReturns converts prices to fractional bar-to-bar returns
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// RealizedVolatility is the standard deviation of bar returns scaled by sqrt(barsPerYear).
// Crypto trades around the clock, so 1h bars use 24*365.
func RealizedVolatility(prices []float64, barsPerYear float64) float64 {
	returns := CalculateReturns(prices)
	if len(returns) < 2 || barsPerYear <= 0 {
		return 0
	}
	return StdDev(returns) * math.Sqrt(barsPerYear)
}

// PercentChange returns (last/first - 1) * 100 over the series
func PercentChange(prices []float64) float64 {
	if len(prices) < 2 || prices[0] == 0 {
		return 0
	}
	return (prices[len(prices)-1]/prices[0] - 1) * 100
}

// MaxDrawdownPct is the deepest fall from a running high, in percent of that
// high. Series shorter than two bars report 0.
func MaxDrawdownPct(prices []float64) float64 {
	if len(prices) < 2 {
		return 0
	}
	var high, worst float64
	for _, p := range prices {
		high = math.Max(high, p)
		if high <= 0 {
			continue
		}
		worst = math.Max(worst, (high-p)/high)
	}
	return worst * 100
}
