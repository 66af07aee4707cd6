package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/scheduler"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	dir := t.TempDir()
	return &config.Config{
		StateDir:            dir,
		StateFile:           filepath.Join(dir, "agent_memory.json"),
		ConfidenceThreshold: 0.6,
		LLM: config.LLMConfig{
			APIKey:  "test",
			BaseURL: "http://127.0.0.1:1",
			Model:   "test-model",
		},
		Solana: config.SolanaConfig{
			PrivateKey: key.String(),
			RPCURL:     "https://api.devnet.solana.com",
		},
		Policy: config.PolicyConfig{
			MaxSOLPerTx:      0.1,
			DailySpendCapSOL: 0.5,
			MaxLOCDelta:      200,
			MaxSwapUSDPerTx:  50,
			DailySwapCapUSD:  200,
			AllowedTokens:    []string{"SOL", "USDC"},
			BrowserMode:      config.BrowserModeOpen,
		},
		Memory: config.MemoryConfig{MaxReflections: 50, MaxTrades: 100, MaxSwapHistory: 50},
		Git:    config.GitConfig{RepoDir: dir, Branch: "main"},
		Backup: config.BackupConfig{Schedule: "0 0 3 * * *", RetentionDays: 30},

		AuditDBPath: filepath.Join(dir, "audit.db"),
	}
}

func TestWire(t *testing.T) {
	cfg := testConfig(t)

	container, err := Wire(context.Background(), cfg, Options{DryRun: true}, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	assert.NotNil(t, container.Store)
	assert.NotNil(t, container.Ledger)
	assert.NotNil(t, container.Audit)
	assert.NotNil(t, container.Wallet)
	assert.NotNil(t, container.Swapper)
	assert.NotNil(t, container.Observer)
	assert.NotNil(t, container.Planner)
	assert.NotNil(t, container.Executor)
	assert.NotNil(t, container.Agent)
	assert.Nil(t, container.Backups)

	require.NoError(t, container.AuditDB.HealthCheck(context.Background()))
}

func TestWire_CorruptStateFails(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.StateFile, []byte("{not json"), 0o600))

	_, err := Wire(context.Background(), cfg, Options{}, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to initialize storage")
}

func TestWire_InvalidKeyFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Solana.PrivateKey = "not-base58!"

	_, err := Wire(context.Background(), cfg, Options{}, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to initialize clients")
}

func TestWire_BackupWithoutBucketFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Backup.Enabled = true

	_, err := Wire(context.Background(), cfg, Options{}, zerolog.Nop())
	assert.ErrorContains(t, err, "failed to initialize backups")
}

func TestRegisterJobs(t *testing.T) {
	cfg := testConfig(t)
	container, err := Wire(context.Background(), cfg, Options{DryRun: true}, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	jobs := NewJobs(container, cfg, zerolog.Nop())
	sched := scheduler.New(zerolog.Nop())

	require.NoError(t, RegisterJobs(sched, jobs, cfg, "0 */15 * * * *"))
	assert.Equal(t, 2, sched.JobCount())

	assert.Error(t, RegisterJobs(scheduler.New(zerolog.Nop()), jobs, cfg, "bogus"))
}

func TestWriteTextfile(t *testing.T) {
	cfg := testConfig(t)
	container, err := Wire(context.Background(), cfg, Options{DryRun: true}, zerolog.Nop())
	require.NoError(t, err)
	defer container.Close()

	cfg.MetricsTextfile = filepath.Join(t.TempDir(), "agent.prom")
	writeTextfile(container, cfg, zerolog.Nop())

	data, err := os.ReadFile(cfg.MetricsTextfile)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
