package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const validAddress = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

type mockBalances struct {
	mock.Mock
}

func (m *mockBalances) BalanceToken(ctx context.Context, token string) (float64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockBalances) AllBalances(ctx context.Context) (map[string]float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]float64), args.Error(1)
}

func defaultPolicy() config.PolicyConfig {
	return config.PolicyConfig{
		MaxSOLPerTx:        0.1,
		DailySpendCapSOL:   0.5,
		MaxLOCDelta:        200,
		MaxSwapUSDPerTx:    50,
		DailySwapCapUSD:    200,
		MainnetMinBalance:  0.1,
		AllowedTokens:      []string{"SOL", "USDC", "WBTC"},
		BrowserMode:        config.BrowserModeOpen,
		AllowedGitPrefixes: []string{"tools/", "experiments/"},
	}
}

func setupEngine(t *testing.T, cfg config.PolicyConfig) (*Engine, *memory.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := memory.NewStore(filepath.Join(dir, "agent_memory.json"), zerolog.Nop())
	return NewEngine(cfg, store, dir, zerolog.Nop()), store, dir
}

func requireViolation(t *testing.T, err error, contains string) {
	t.Helper()
	require.Error(t, err)
	var pv *domain.PolicyViolation
	require.True(t, errors.As(err, &pv), "expected PolicyViolation, got %T", err)
	assert.Contains(t, pv.Reason, contains)
}

func TestCheckWalletSend_DailySpendScenario(t *testing.T) {
	engine, store, _ := setupEngine(t, defaultPolicy())

	require.NoError(t, engine.CheckWalletSend(0.05, validAddress))
	require.NoError(t, store.AddSpend(0.05))

	err := engine.CheckWalletSend(0.46, validAddress)
	requireViolation(t, err, "daily spend")
}

func TestCheckWalletSend_CapEqualityPasses(t *testing.T) {
	engine, store, _ := setupEngine(t, defaultPolicy())

	doc, err := store.Load()
	require.NoError(t, err)
	doc.DailySpendSOL = 0.4
	require.NoError(t, store.Save(doc))

	assert.NoError(t, engine.CheckWalletSend(0.1, validAddress), "projected == cap passes")
}

func TestCheckWalletSend_Rules(t *testing.T) {
	tests := []struct {
		name        string
		amount      float64
		destination string
		contains    string
	}{
		{"zero amount", 0, validAddress, "must be positive"},
		{"negative amount", -1, validAddress, "must be positive"},
		{"per tx cap", 0.2, validAddress, "MAX_SOL_PER_TX"},
		{"short destination", 0.05, "abc", "valid Solana address"},
		{"empty destination", 0.05, "", "valid Solana address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _, _ := setupEngine(t, defaultPolicy())
			requireViolation(t, engine.CheckWalletSend(tt.amount, tt.destination), tt.contains)
		})
	}
}

func TestCheckWalletSend_RereadsStore(t *testing.T) {
	engine, store, _ := setupEngine(t, defaultPolicy())

	for i := 0; i < 5; i++ {
		require.NoError(t, engine.CheckWalletSend(0.1, validAddress))
		require.NoError(t, store.AddSpend(0.1))
	}
	requireViolation(t, engine.CheckWalletSend(0.01, validAddress), "daily spend")
}

func TestCheckSwap_MainnetReserve(t *testing.T) {
	engine, store, _ := setupEngine(t, defaultPolicy())

	doc, err := store.Load()
	require.NoError(t, err)
	doc.Positions["SOL"] = memory.Position{Amount: 0.5}
	require.NoError(t, store.Save(doc))

	check := SwapCheck{From: "SOL", To: "USDC", AmountUSD: 30, AmountNative: 0.35, Network: domain.Mainnet}
	assert.NoError(t, engine.CheckSwap(check), "0.5 - 0.35 leaves 0.15")

	check.AmountNative = 0.45
	requireViolation(t, engine.CheckSwap(check), "Mainnet safety")

	check.Network = domain.Devnet
	assert.NoError(t, engine.CheckSwap(check), "reserve only applies on mainnet")

	check = SwapCheck{From: "USDC", To: "SOL", AmountUSD: 30, AmountNative: 30, Network: domain.Mainnet}
	assert.NoError(t, engine.CheckSwap(check), "reserve only applies when selling SOL")
}

func TestCheckSwap_Rules(t *testing.T) {
	tests := []struct {
		name     string
		check    SwapCheck
		contains string
	}{
		{"same token", SwapCheck{From: "SOL", To: "sol", AmountUSD: 10}, "must differ"},
		{"token not allowed", SwapCheck{From: "SOL", To: "BONK", AmountUSD: 10}, "not in the allowed"},
		{"zero notional", SwapCheck{From: "SOL", To: "USDC"}, "must be positive"},
		{"per tx cap", SwapCheck{From: "SOL", To: "USDC", AmountUSD: 51}, "MAX_SWAP_USD_PER_TX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _, _ := setupEngine(t, defaultPolicy())
			requireViolation(t, engine.CheckSwap(tt.check), tt.contains)
		})
	}
}

func TestCheckSwap_DailyCap(t *testing.T) {
	engine, store, _ := setupEngine(t, defaultPolicy())
	require.NoError(t, store.AddSwapUSD(160))

	check := SwapCheck{From: "SOL", To: "USDC", AmountUSD: 40, Network: domain.Devnet}
	assert.NoError(t, engine.CheckSwap(check), "projected == cap passes")

	check.AmountUSD = 40.01
	requireViolation(t, engine.CheckSwap(check), "daily swap volume")
}

func TestCheckSwapBalance(t *testing.T) {
	engine, _, _ := setupEngine(t, defaultPolicy())
	ctx := context.Background()

	balances := new(mockBalances)
	balances.On("BalanceToken", ctx, "SOL").Return(0.2, nil)
	balances.On("BalanceToken", ctx, "USDC").Return(0.0, errors.New("rpc down"))

	assert.NoError(t, engine.CheckSwapBalance(ctx, balances, "SOL", 0.2))
	requireViolation(t, engine.CheckSwapBalance(ctx, balances, "SOL", 0.3), "Insufficient SOL")
	requireViolation(t, engine.CheckSwapBalance(ctx, balances, "SOL", 0), "must be positive")

	err := engine.CheckSwapBalance(ctx, balances, "USDC", 1)
	require.Error(t, err)
	assert.False(t, domain.IsPolicyViolation(err), "lookup failures are not violations")

	balances.AssertExpectations(t)
}

func TestCheckBrowserURL(t *testing.T) {
	open, _, _ := setupEngine(t, defaultPolicy())
	assert.NoError(t, open.CheckBrowserURL("https://anything.example.org/path"))
	requireViolation(t, open.CheckBrowserURL("not a url"), "not a valid")
	requireViolation(t, open.CheckBrowserURL("ftp://coingecko.com"), "not a valid")

	cfg := defaultPolicy()
	cfg.BrowserMode = config.BrowserModeAllowlist
	cfg.AllowedDomains = []string{"coingecko.com", "dexscreener.com"}
	strict, _, _ := setupEngine(t, cfg)

	tests := []struct {
		url     string
		allowed bool
	}{
		{"https://coingecko.com/en", true},
		{"https://COINGECKO.com:443/x", true},
		{"https://api.coingecko.com/", false},
		{"https://evil.com/coingecko.com", false},
		{"https://coingecko.com.evil.com/", false},
		{"http://dexscreener.com", true},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := strict.CheckBrowserURL(tt.url)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				requireViolation(t, err, "not in the allowed scrape list")
			}
		})
	}
}

func TestCheckGitPaths(t *testing.T) {
	engine, _, root := setupEngine(t, defaultPolicy())

	assert.NoError(t, engine.CheckGitPaths([]string{"tools/new_tool.py", "experiments/a/b.py"}))
	assert.NoError(t, engine.CheckGitPaths([]string{filepath.Join(root, "tools", "abs.py")}))
	assert.NoError(t, engine.CheckGitPaths([]string{"tools/../experiments/x.py"}))

	requireViolation(t, engine.CheckGitPaths([]string{"core/agent.go"}), "outside allowed directories")
	requireViolation(t, engine.CheckGitPaths([]string{"tools/../core/agent.go"}), "outside allowed directories")
	requireViolation(t, engine.CheckGitPaths([]string{"../outside/tools/x.py"}), "outside the repository")
	requireViolation(t, engine.CheckGitPaths([]string{"/etc/passwd"}), "outside the repository")
	requireViolation(t, engine.CheckGitPaths([]string{"toolsx/evil.py"}), "outside allowed directories")
	requireViolation(t, engine.CheckGitPaths([]string{"tools/ok.py", "main.go"}), "main.go")
}

func TestCheckLOCDelta(t *testing.T) {
	engine, _, _ := setupEngine(t, defaultPolicy())

	assert.NoError(t, engine.CheckLOCDelta(200))
	assert.NoError(t, engine.CheckLOCDelta(-200))
	requireViolation(t, engine.CheckLOCDelta(201), "MAX_LOC_DELTA")
	requireViolation(t, engine.CheckLOCDelta(-201), "MAX_LOC_DELTA")
}

func TestEngine_CorruptStateIsAnError(t *testing.T) {
	engine, store, _ := setupEngine(t, defaultPolicy())
	require.NoError(t, os.WriteFile(store.Path(), []byte("{"), 0644))

	err := engine.CheckWalletSend(0.05, validAddress)
	require.Error(t, err)
	assert.False(t, domain.IsPolicyViolation(err))
}
