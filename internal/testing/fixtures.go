package testing

import (
	"path/filepath"
	"testing"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
	"github.com/rs/zerolog"
)

// ValidAddress is a syntactically valid Solana address
const ValidAddress = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

// NewTestStore creates a state store backed by a file in a temporary directory
func NewTestStore(t *testing.T, opts ...memory.Option) *memory.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent_memory.json")
	return memory.NewStore(path, zerolog.Nop(), opts...)
}

// NewPolicyFixture returns the default policy limits
func NewPolicyFixture() config.PolicyConfig {
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

// NewPlanFixture builds a plan the way the model would propose it
func NewPlanFixture(action domain.ActionType, target string, params map[string]interface{}, confidence float64) *domain.Plan {
	if params == nil {
		params = make(map[string]interface{})
	}
	return &domain.Plan{
		ActionType: action,
		Target:     target,
		Params:     params,
		Confidence: confidence,
		Reason:     "fixture",
	}
}

// ObservationFixture is a PERCEIVE text carrying SOL and BTC closes
const ObservationFixture = "[SOLUSDT] close=150\n[BTCUSDT] close=60000"
