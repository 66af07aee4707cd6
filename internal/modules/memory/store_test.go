package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func newTestStore(t *testing.T, opts ...Option) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
	path := filepath.Join(t.TempDir(), "agent_memory.json")
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewStore(path, zerolog.Nop(), opts...), clock
}

func readRaw(t *testing.T, path string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	store, _ := newTestStore(t)

	doc, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, 0.0, doc.DailySpendSOL)
	assert.Equal(t, "2026-03-14", doc.DailySpendDate)
	assert.NotNil(t, doc.Positions)
	assert.NotNil(t, doc.Trades)
	assert.False(t, doc.Benchmark.IsSet())
}

func TestLoad_DailyResetIsPersisted(t *testing.T) {
	store, clock := newTestStore(t)

	require.NoError(t, store.AddSpend(0.3))
	require.NoError(t, store.AddSwapUSD(40))

	doc, err := store.Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.3, doc.DailySpendSOL, 1e-9)
	assert.InDelta(t, 40.0, doc.DailySwapUSD, 1e-9)

	clock.t = clock.t.Add(24 * time.Hour)

	doc, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, 0.0, doc.DailySpendSOL)
	assert.Equal(t, 0.0, doc.DailySwapUSD)
	assert.Equal(t, "2026-03-15", doc.DailySpendDate)

	raw := readRaw(t, store.Path())
	assert.Equal(t, "2026-03-15", raw["daily_spend_date"], "reset must be written back on read")
	assert.Equal(t, "2026-03-15", raw["daily_swap_date"])
	assert.Equal(t, 0.0, raw["daily_spend_sol"])
}

func TestLoad_ForwardCompatibleWithMissingKeys(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte(`{"daily_spend_sol": 0.2, "daily_spend_date": "2026-03-14"}`), 0644))

	doc, err := store.Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.2, doc.DailySpendSOL, 1e-9)
	assert.NotNil(t, doc.SwapHistory)
	assert.NotNil(t, doc.Benchmark.StartPrices)
}

func TestLoad_CorruptDocument(t *testing.T) {
	t.Run("fails loudly by default", func(t *testing.T) {
		store, _ := newTestStore(t)
		require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0644))

		_, err := store.Load()
		require.Error(t, err)
		assert.True(t, errors.Is(err, domain.ErrCorruptDocument))

		data, err := os.ReadFile(store.Path())
		require.NoError(t, err)
		assert.Equal(t, "{not json", string(data), "corrupt file is left in place")

		matches, _ := filepath.Glob(store.Path() + ".corrupt-*")
		assert.Len(t, matches, 1)
	})

	t.Run("resets when configured", func(t *testing.T) {
		store, _ := newTestStore(t, WithResetOnCorrupt(true))
		require.NoError(t, os.WriteFile(store.Path(), []byte("garbage"), 0644))

		doc, err := store.Load()
		require.NoError(t, err)
		assert.Equal(t, 0.0, doc.DailySpendSOL)

		matches, _ := filepath.Glob(store.Path() + ".corrupt-*")
		assert.Len(t, matches, 1)
	})
}

func TestSave_AtomicLeavesNoTempFiles(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AppendReflection("first"))
	require.NoError(t, store.AppendReflection("second"))

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(store.Path()), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, matches)

	doc, err := store.Load()
	require.NoError(t, err)
	require.Len(t, doc.Reflections, 2)
	assert.Equal(t, "second", doc.Reflections[1].Text)
}

func TestSave_FailureKeepsOriginal(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.AddSpend(0.1))
	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	doc, err := store.Load()
	require.NoError(t, err)
	doc.DailySpendSOL = math.NaN()

	err = store.Save(doc)
	require.Error(t, err)

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)

	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(store.Path()), "*.tmp"))
	assert.Empty(t, matches, "partial temp file must be removed")
}

func TestSave_IsHumanReadable(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.AddSpend(0.05))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"daily_spend_sol\": 0.05")
}

func TestSave_RotationCaps(t *testing.T) {
	store, _ := newTestStore(t, WithCaps(Caps{MaxReflections: 3, MaxTrades: 4, MaxSwapHistory: 4}))

	doc, err := store.Load()
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		doc.Reflections = append(doc.Reflections, Reflection{Date: "2026-03-14", Text: fmt.Sprintf("r%d", i)})
	}
	doc.Trades = []Trade{
		{Date: "2026-03-01", ActionType: "analyze", Result: "[BTCUSDT] close=1"},
		{Date: "2026-03-02", ActionType: "wallet_send", Result: "action blocked/failed: daily spend"},
		{Date: "2026-03-03", ActionType: "swap", Result: "confidence 0.40 below threshold — skipped"},
		{Date: "2026-03-04", ActionType: "noop", Result: "noop"},
		{Date: "2026-03-05", ActionType: "scrape", Result: "[scraped x]"},
	}
	require.NoError(t, store.Save(doc))

	doc, err = store.Load()
	require.NoError(t, err)

	require.Len(t, doc.Reflections, 3)
	assert.Equal(t, "r2", doc.Reflections[0].Text)

	assert.LessOrEqual(t, len(doc.Trades), 4)
	require.Len(t, doc.TradeSummaries, 1, "exactly one summary per rotation event")
	sum := doc.TradeSummaries[0]
	assert.Equal(t, len(doc.Trades)+sum.Count, 5)
	assert.Equal(t, "2026-03-01", sum.PeriodStart)
	assert.Equal(t, 1, sum.ActionCounts["analyze"])
	assert.Equal(t, 1, sum.Failures)
	assert.Equal(t, "2026-03-03", doc.Trades[0].Date)
}

func TestSave_SwapHistorySummarized(t *testing.T) {
	store, _ := newTestStore(t, WithCaps(Caps{MaxReflections: 10, MaxTrades: 10, MaxSwapHistory: 4}))

	doc, err := store.Load()
	require.NoError(t, err)
	doc.SwapHistory = []SwapRecord{
		{Date: "2026-03-01", FromToken: "SOL", ToToken: "USDC", AmountUSD: 10},
		{Date: "2026-03-02", FromToken: "SOL", ToToken: "USDC", AmountUSD: 5, Mock: true},
		{Date: "2026-03-03", FromToken: "USDC", ToToken: "SOL", AmountUSD: 7},
		{Date: "2026-03-04", FromToken: "USDC", ToToken: "SOL", AmountUSD: 7},
		{Date: "2026-03-05", FromToken: "SOL", ToToken: "USDC", AmountUSD: 3},
	}
	require.NoError(t, store.Save(doc))

	doc, err = store.Load()
	require.NoError(t, err)
	require.Len(t, doc.SwapHistory, 3)
	require.Len(t, doc.SwapSummaries, 1)
	assert.Equal(t, "2026-03-03", doc.SwapHistory[0].Date)

	sum := doc.SwapSummaries[0]
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, 2, sum.ActionCounts["SOL->USDC"])
	assert.Equal(t, 1, sum.Simulated)
	assert.Equal(t, 1, sum.Successes)
	assert.InDelta(t, 15.0, sum.TotalUSD, 1e-9)
}

func TestCompactSummaries(t *testing.T) {
	list := []Summary{
		{PeriodStart: "a", PeriodEnd: "b", Count: 2, Successes: 2, ActionCounts: map[string]int{"noop": 2}},
		{PeriodStart: "c", PeriodEnd: "d", Count: 2, Failures: 2, ActionCounts: map[string]int{"swap": 2}},
		{PeriodStart: "e", PeriodEnd: "f", Count: 1, Successes: 1, ActionCounts: map[string]int{"noop": 1}},
	}

	out := compactSummaries(list, 2)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].PeriodStart)
	assert.Equal(t, "d", out[0].PeriodEnd)
	assert.Equal(t, 4, out[0].Count)
	assert.Equal(t, 0.5, out[0].SuccessRate)
}

func TestSaveIfVersion_Conflict(t *testing.T) {
	store, _ := newTestStore(t)

	first, err := store.Load()
	require.NoError(t, err)
	second, err := store.Load()
	require.NoError(t, err)

	first.DailySpendSOL = 0.1
	require.NoError(t, store.SaveIfVersion(first))

	second.DailySpendSOL = 0.2
	err = store.SaveIfVersion(second)
	assert.True(t, errors.Is(err, domain.ErrVersionConflict))

	doc, err := store.Load()
	require.NoError(t, err)
	assert.InDelta(t, 0.1, doc.DailySpendSOL, 1e-9)
}

func TestUpdate_VersionIncreases(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.AddSpend(0.05))
	v1 := readRaw(t, store.Path())["version"].(float64)
	require.NoError(t, store.AddSpend(0.05))
	v2 := readRaw(t, store.Path())["version"].(float64)

	assert.Greater(t, v2, v1)
}
