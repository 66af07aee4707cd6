// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/joho/godotenv"
)

// Browser modes for the scrape policy
const (
	BrowserModeOpen      = "open"
	BrowserModeAllowlist = "allowlist"
)

// Config holds application configuration
type Config struct {
	StateDir            string // Directory holding agent_memory.json (always absolute)
	StateFile           string
	ResetOnCorrupt      bool // Replace an unparsable state document with defaults instead of failing
	LogLevel            string
	LogPretty           bool
	ConfidenceThreshold float64

	LLM     LLMConfig
	Solana  SolanaConfig
	Policy  PolicyConfig
	Memory  MemoryConfig
	Git     GitConfig
	Backup  BackupConfig
	Monitor MonitorConfig

	AuditDBPath      string
	MetricsTextfile  string // Prometheus textfile written after each cycle (empty disables)
	StatusPort       int
	ScrapeRatePerSec float64
	PolicyFile       string
}

// LLMConfig holds the OpenAI-compatible chat endpoint settings
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Referer     string
	Title       string
}

// SolanaConfig holds wallet and RPC settings
type SolanaConfig struct {
	PrivateKey        string // base58-encoded 64-byte keypair
	RPCURL            string
	JupiterAPIKey     string
	MainnetMinBalance float64
}

// Network derives the cluster from the RPC URL
func (s SolanaConfig) Network() domain.Network {
	return domain.DetectNetwork(s.RPCURL)
}

// PolicyConfig holds the guard-rail limits
type PolicyConfig struct {
	MaxSOLPerTx        float64
	DailySpendCapSOL   float64
	MaxLOCDelta        int
	MaxSwapUSDPerTx    float64
	DailySwapCapUSD    float64
	MainnetMinBalance  float64
	AllowedTokens      []string
	BrowserMode        string
	AllowedDomains     []string
	AllowedGitPrefixes []string
}

// MemoryConfig holds the state document list caps
type MemoryConfig struct {
	MaxReflections int
	MaxTrades      int
	MaxSwapHistory int
}

// GitConfig holds the self-modification push target and the checks a change
// must pass before it is committed
type GitConfig struct {
	Token       string
	Repo        string // owner/repo
	Branch      string
	RepoDir     string
	TestCommand string
	LintCommand string // {path} is replaced by the changed file
}

// BackupConfig holds S3-compatible off-site backup settings
type BackupConfig struct {
	Enabled         bool
	Endpoint        string // Custom endpoint for R2/MinIO, empty for AWS
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	Schedule        string
	RetentionDays   int
}

// MonitorConfig holds on-chain watch lists
type MonitorConfig struct {
	WhaleWallets     []string
	TrackedAddresses []string
	LookbackHours    int
}

// LoadSolana reads only the wallet settings, for tools that never run a
// cycle. It loads envFile the same way Load does.
func LoadSolana(envFile string) (SolanaConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return SolanaConfig{}, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg := solanaFromEnv()
	if cfg.PrivateKey == "" {
		return SolanaConfig{}, fmt.Errorf("required environment variable SOLANA_PRIVATE_KEY is not set")
	}
	return cfg, nil
}

func solanaFromEnv() SolanaConfig {
	return SolanaConfig{
		PrivateKey:        getEnv("SOLANA_PRIVATE_KEY", ""),
		RPCURL:            getEnv("SOLANA_RPC_URL", "https://api.devnet.solana.com"),
		JupiterAPIKey:     getEnv("JUPITER_API_KEY", ""),
		MainnetMinBalance: getEnvAsFloat("SOLANA_MAINNET_MIN_BALANCE", 0.1),
	}
}

// Load reads configuration from environment variables, after loading envFile
// (or .env when envFile is empty) if it exists.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	stateDir, err := filepath.Abs(getEnv("STATE_DIR", "."))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve state directory path: %w", err)
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	minBalance := getEnvAsFloat("SOLANA_MAINNET_MIN_BALANCE", 0.1)

	cfg := &Config{
		StateDir:            stateDir,
		StateFile:           filepath.Join(stateDir, "agent_memory.json"),
		ResetOnCorrupt:      getEnvAsBool("STATE_RESET_ON_CORRUPT", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogPretty:           getEnvAsBool("LOG_PRETTY", false),
		ConfidenceThreshold: getEnvAsFloat("CONFIDENCE_THRESHOLD", 0.6),
		LLM: LLMConfig{
			APIKey:      getEnv("OPENROUTER_API_KEY", ""),
			BaseURL:     getEnv("LLM_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:       getEnv("LLM_MODEL", "deepseek/deepseek-v3.2"),
			Temperature: getEnvAsFloat("LLM_TEMPERATURE", 0.3),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 2048),
			Timeout:     time.Duration(getEnvAsInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
			Referer:     getEnv("LLM_REFERER", "https://github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent"),
			Title:       getEnv("LLM_TITLE", "autonomous-trading-agent"),
		},
		Solana: solanaFromEnv(),
		Policy: PolicyConfig{
			MaxSOLPerTx:        getEnvAsFloat("MAX_SOL_PER_TX", 0.1),
			DailySpendCapSOL:   getEnvAsFloat("DAILY_SPEND_CAP_SOL", 0.5),
			MaxLOCDelta:        getEnvAsInt("MAX_LOC_DELTA", 200),
			MaxSwapUSDPerTx:    getEnvAsFloat("MAX_SWAP_USD_PER_TX", 50),
			DailySwapCapUSD:    getEnvAsFloat("DAILY_SWAP_CAP_USD", 200),
			MainnetMinBalance:  minBalance,
			AllowedTokens:      getEnvAsList("ALLOWED_TOKENS", []string{"SOL", "USDC", "WBTC"}),
			BrowserMode:        strings.ToLower(getEnv("BROWSER_MODE", BrowserModeOpen)),
			AllowedDomains:     getEnvAsList("ALLOWED_DOMAINS", nil),
			AllowedGitPrefixes: getEnvAsList("ALLOWED_GIT_PREFIXES", []string{"tools/", "experiments/"}),
		},
		Memory: MemoryConfig{
			MaxReflections: getEnvAsInt("MAX_REFLECTIONS", 50),
			MaxTrades:      getEnvAsInt("MAX_TRADES", 100),
			MaxSwapHistory: getEnvAsInt("MAX_SWAP_HISTORY", 50),
		},
		Git: GitConfig{
			Token:   getEnv("GITHUB_TOKEN", ""),
			Repo:    getEnv("GITHUB_REPO", ""),
			Branch:  getEnv("GITHUB_BRANCH", "main"),
			RepoDir: getEnv("REPO_DIR", "."),

			TestCommand: getEnv("SANDBOX_TEST_CMD", "go test ./..."),
			LintCommand: getEnv("SANDBOX_LINT_CMD", "go vet ./..."),
		},
		Backup: BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("BACKUP_PREFIX", "agent-backups"),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
		Monitor: MonitorConfig{
			WhaleWallets:     getEnvAsList("WHALE_WALLETS", nil),
			TrackedAddresses: getEnvAsList("TRACKED_ADDRESSES", nil),
			LookbackHours:    getEnvAsInt("MONITOR_LOOKBACK_HOURS", 24),
		},
		AuditDBPath:      getEnv("AUDIT_DB_PATH", filepath.Join(stateDir, "audit.db")),
		MetricsTextfile:  getEnv("METRICS_TEXTFILE", ""),
		StatusPort:       getEnvAsInt("STATUS_PORT", 8080),
		ScrapeRatePerSec: getEnvAsFloat("SCRAPE_RATE_PER_SEC", 1),
		PolicyFile:       getEnv("POLICY_FILE", ""),
	}

	if cfg.PolicyFile != "" {
		pf, err := LoadPolicyFile(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		pf.Apply(&cfg.Policy)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	required := map[string]string{
		"OPENROUTER_API_KEY": c.LLM.APIKey,
		"SOLANA_PRIVATE_KEY": c.Solana.PrivateKey,
		"GITHUB_TOKEN":       c.Git.Token,
		"GITHUB_REPO":        c.Git.Repo,
	}
	// Stable order so the first missing key is deterministic
	for _, key := range []string{"OPENROUTER_API_KEY", "SOLANA_PRIVATE_KEY", "GITHUB_TOKEN", "GITHUB_REPO"} {
		if required[key] == "" {
			return fmt.Errorf("required environment variable %s is not set", key)
		}
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,1], got %v", c.ConfidenceThreshold)
	}
	if c.Policy.MaxSOLPerTx <= 0 || c.Policy.DailySpendCapSOL <= 0 {
		return fmt.Errorf("SOL spend limits must be positive")
	}
	if c.Policy.MaxSwapUSDPerTx <= 0 || c.Policy.DailySwapCapUSD <= 0 {
		return fmt.Errorf("swap limits must be positive")
	}
	if c.Policy.MaxLOCDelta <= 0 {
		return fmt.Errorf("MAX_LOC_DELTA must be positive")
	}
	switch c.Policy.BrowserMode {
	case BrowserModeOpen:
	case BrowserModeAllowlist:
		if len(c.Policy.AllowedDomains) == 0 {
			return fmt.Errorf("BROWSER_MODE=allowlist requires ALLOWED_DOMAINS")
		}
	default:
		return fmt.Errorf("unknown BROWSER_MODE %q", c.Policy.BrowserMode)
	}
	if c.Memory.MaxReflections <= 0 || c.Memory.MaxTrades <= 0 || c.Memory.MaxSwapHistory <= 0 {
		return fmt.Errorf("memory caps must be positive")
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_BUCKET is required when backups are enabled")
	}

	return nil
}

// Helper functions

// getEnv returns the variable with any inline " #" comment removed
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if idx := strings.Index(value, " #"); idx >= 0 {
		value = value[:idx]
	}
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := getEnv(key, ""); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := getEnv(key, ""); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := getEnv(key, ""); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated variable, dropping empty entries
func getEnvAsList(key string, defaultValue []string) []string {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
