package portfolio

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBalances struct {
	mock.Mock
}

func (m *mockBalances) BalanceToken(ctx context.Context, token string) (float64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockBalances) AllBalances(ctx context.Context) (map[string]float64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]float64), args.Error(1)
}

func setupLedger(t *testing.T) (*Ledger, *memory.Store) {
	t.Helper()
	store := memory.NewStore(filepath.Join(t.TempDir(), "agent_memory.json"), zerolog.Nop())
	return NewLedger(store, zerolog.Nop()), store
}

func TestLedger_BuyThenValue(t *testing.T) {
	ledger, _ := setupLedger(t)

	require.NoError(t, ledger.UpdatePosition("sol", 1.0, 100.0))

	value, err := ledger.PortfolioValueUSD(map[string]float64{"SOL": 120.0})
	require.NoError(t, err)
	assert.Equal(t, 120.0, value)

	pos, err := ledger.GetPosition("SOL")
	require.NoError(t, err)
	assert.Equal(t, 1.0, pos.Amount)
	assert.Equal(t, 100.0, pos.CostBasisUSD)
	assert.NotEmpty(t, pos.LastUpdated)
}

func TestLedger_PartialSellScalesCostBasis(t *testing.T) {
	ledger, _ := setupLedger(t)

	require.NoError(t, ledger.UpdatePosition("SOL", 2.0, 200.0))
	require.NoError(t, ledger.UpdatePosition("SOL", -0.5, 0))

	pos, err := ledger.GetPosition("SOL")
	require.NoError(t, err)
	assert.InDelta(t, 1.5, pos.Amount, 1e-9)
	// sold fraction = 0.5 / (1.5 + 0.5) = 0.25
	assert.InDelta(t, 150.0, pos.CostBasisUSD, 1e-9)
}

func TestLedger_OversellClampsToZero(t *testing.T) {
	ledger, _ := setupLedger(t)

	require.NoError(t, ledger.UpdatePosition("USDC", 10, 10))
	require.NoError(t, ledger.UpdatePosition("USDC", -25, 0))

	pos, err := ledger.GetPosition("USDC")
	require.NoError(t, err)
	assert.Equal(t, 0.0, pos.Amount)
	assert.Equal(t, 0.0, pos.CostBasisUSD)

	require.NoError(t, ledger.UpdatePosition("WBTC", -1, 0))
	pos, err = ledger.GetPosition("WBTC")
	require.NoError(t, err)
	assert.Equal(t, 0.0, pos.Amount, "selling an untracked token never goes negative")
}

func TestLedger_UnpricedTokenContributesZero(t *testing.T) {
	ledger, _ := setupLedger(t)
	require.NoError(t, ledger.UpdatePosition("SOL", 1, 100))
	require.NoError(t, ledger.UpdatePosition("BONK", 1000, 5))

	value, err := ledger.PortfolioValueUSD(map[string]float64{"SOL": 90})
	require.NoError(t, err)
	assert.Equal(t, 90.0, value)
}

func TestLedger_SyncFromOnchain(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.UpdatePosition("SOL", 0.5, 45))

	balances := new(mockBalances)
	balances.On("AllBalances", ctx).Return(map[string]float64{"SOL": 2.0, "USDC": 12.5, "WBTC": 0}, nil)

	require.NoError(t, ledger.SyncFromOnchain(ctx, balances, map[string]float64{"SOL": 0, "USDC": 1}))

	sol, err := ledger.GetPosition("SOL")
	require.NoError(t, err)
	assert.Equal(t, 0.5, sol.Amount, "positive tracked positions are never overwritten")
	assert.Empty(t, sol.Source)

	usdc, err := ledger.GetPosition("USDC")
	require.NoError(t, err)
	assert.Equal(t, 12.5, usdc.Amount)
	assert.Equal(t, 12.5, usdc.CostBasisUSD)
	assert.Equal(t, SourceOnchainSync, usdc.Source)

	positions, err := ledger.Positions()
	require.NoError(t, err)
	assert.NotContains(t, positions, "WBTC")

	balances.AssertExpectations(t)
}

func TestLedger_SyncFromOnchainError(t *testing.T) {
	ledger, _ := setupLedger(t)
	ctx := context.Background()

	balances := new(mockBalances)
	balances.On("AllBalances", ctx).Return(nil, errors.New("rpc timeout"))

	err := ledger.SyncFromOnchain(ctx, balances, nil)
	assert.Error(t, err)
}

func TestLedger_AppendSwap(t *testing.T) {
	ledger, store := setupLedger(t)

	require.NoError(t, ledger.AppendSwap(memory.SwapRecord{FromToken: "SOL", ToToken: "USDC", AmountSOL: 0.1, Signature: "sig"}))

	doc, err := store.Load()
	require.NoError(t, err)
	require.Len(t, doc.SwapHistory, 1)
	assert.Equal(t, "sig", doc.SwapHistory[0].Signature)
	assert.Equal(t, store.Today(), doc.SwapHistory[0].Date)
}

func TestLedger_Summary(t *testing.T) {
	ledger, _ := setupLedger(t)

	summary, err := ledger.Summary(nil)
	require.NoError(t, err)
	assert.Equal(t, "no tracked positions yet", summary)

	require.NoError(t, ledger.UpdatePosition("SOL", 1.5, 150))
	require.NoError(t, ledger.UpdatePosition("USDC", 10, 10))

	summary, err = ledger.Summary(map[string]float64{"SOL": 100, "USDC": 1})
	require.NoError(t, err)
	assert.Equal(t, "total ≈ $160.00; SOL: 1.500000 (~$150.00), USDC: 10.000000 (~$10.00)", summary)
}

func TestTokenPrices(t *testing.T) {
	prices := TokenPrices(map[string]float64{"SOLUSDT": 90, "BTCUSDT": 65000, "ETHUSDT": 3000})

	assert.Equal(t, 90.0, prices["SOL"])
	assert.Equal(t, 65000.0, prices["WBTC"])
	assert.Equal(t, 65000.0, prices["BTC"])
	assert.Equal(t, 3000.0, prices["ETH"])
	assert.Equal(t, 1.0, prices["USDC"])
}
