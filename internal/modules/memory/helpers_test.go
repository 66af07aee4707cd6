package memory

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSpend_Accumulates(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AddSpend(0.05))
	require.NoError(t, store.AddSpend(0.1))

	doc, err := store.Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.15, doc.DailySpendSOL, 1e-9)
}

func TestAppendTrade(t *testing.T) {
	store, _ := newTestStore(t)

	var plan domain.Plan
	require.NoError(t, json.Unmarshal([]byte(`{"action_type":"make_coffee","target":"x","params":{"k":1},"confidence":0.7,"reason":"why"}`), &plan))

	long := strings.Repeat("é", 400)
	require.NoError(t, store.AppendTrade(&plan, long))
	require.NoError(t, store.AppendTrade(nil, "no valid plan produced"))

	trades, err := store.RecentTrades(5)
	require.NoError(t, err)
	require.Len(t, trades, 2)

	assert.Equal(t, "unknown", trades[0].ActionType, "newest first")
	assert.Equal(t, "make_coffee", trades[1].ActionType)
	assert.Equal(t, "x", trades[1].Target)
	assert.Equal(t, 0.7, trades[1].Confidence)
	assert.Len(t, []rune(trades[1].Result), ResultTruncate)
}

func TestRecentTrades_Bounds(t *testing.T) {
	store, _ := newTestStore(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.AppendTrade(&domain.Plan{ActionType: domain.ActionNoop, Target: string(rune('a' + i))}, "noop"))
	}

	trades, err := store.RecentTrades(2)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "c", trades[0].Target)
	assert.Equal(t, "b", trades[1].Target)

	trades, err = store.RecentTrades(0)
	require.NoError(t, err)
	assert.Empty(t, trades)
}

func TestEnsureBenchmark_WriteOnce(t *testing.T) {
	store, clock := newTestStore(t)

	doc, err := store.EnsureBenchmark(100, map[string]float64{"SOL": 90})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", doc.Benchmark.StartDate)
	assert.Equal(t, 100.0, doc.Benchmark.StartPortfolioUSD)

	clock.t = clock.t.AddDate(0, 0, 3)
	doc, err = store.EnsureBenchmark(500, map[string]float64{"SOL": 200})
	require.NoError(t, err)
	assert.Equal(t, "2026-03-14", doc.Benchmark.StartDate)
	assert.Equal(t, 100.0, doc.Benchmark.StartPortfolioUSD)
	assert.Equal(t, 90.0, doc.Benchmark.StartPrices["SOL"])
}

func TestObservationPrices(t *testing.T) {
	store, _ := newTestStore(t)
	obs := strings.Join([]string{
		"[https://dexscreener.com] some text",
		"[SOLUSDT] close=90.19",
		"  RSI=55.2",
		"[SOLUSDT-4h] close=91.00",
		"[BTCUSDT] close=65000.5",
		"[SOLUSDT] close=1.0",
	}, "\n")

	require.NoError(t, store.SetObservationPrices(obs))

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"[SOLUSDT] 90.19", "[BTCUSDT] 65000.5"}, doc.LastObservationsPrices)

	prices, err := store.LatestPrices()
	require.NoError(t, err)
	assert.Equal(t, 90.19, prices["SOLUSDT"])
	assert.Equal(t, 65000.5, prices["BTCUSDT"])
}

func TestParsePriceCache_SkipsMalformed(t *testing.T) {
	prices := ParsePriceCache([]string{"[SOLUSDT] 90", "garbage", "[ETHUSDT] abc", "[btcusdt] 1.5"})

	assert.Equal(t, map[string]float64{"SOLUSDT": 90, "BTCUSDT": 1.5}, prices)
}

func TestSummarizeTrades_Classification(t *testing.T) {
	trades := []Trade{
		{Date: "2026-01-01", ActionType: "swap", Result: "swap succeeded: abc"},
		{Date: "2026-01-02", ActionType: "swap", Result: "swap skipped: insufficient SOL balance"},
		{Date: "2026-01-03", ActionType: "wallet_send", Result: "action blocked/failed: daily cap"},
		{Date: "2026-01-04", ActionType: "noop", Result: "confidence 0.40 below threshold 0.60"},
		{Date: "2026-01-05", ActionType: "noop", Result: "no valid plan produced"},
	}

	sum := summarizeTrades(trades)

	assert.Equal(t, 5, sum.Count)
	assert.Equal(t, 1, sum.Successes)
	assert.Equal(t, 3, sum.Failures)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, "2026-01-01", sum.PeriodStart)
	assert.Equal(t, "2026-01-05", sum.PeriodEnd)
	assert.Equal(t, 2, sum.ActionCounts["swap"])
}
