// Package policy implements the guard rails that gate every money-moving,
// browsing and self-modifying action.
package policy

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/memory"
	"github.com/rs/zerolog"
)

// Rule names carried by PolicyViolation
const (
	RuleWalletSend  = "wallet_send"
	RuleSwap        = "swap"
	RuleSwapBalance = "swap_balance"
	RuleBrowser     = "browser_scrape"
	RuleGitPaths    = "git_paths"
	RuleLOCDelta    = "loc_delta"
)

const minAddressLength = 32

// StateReader loads the current state document
type StateReader interface {
	Load() (*memory.Document, error)
}

// SwapCheck describes a proposed swap. AmountNative is denominated in
// FromToken and is what the mainnet reserve check uses.
type SwapCheck struct {
	From         string
	To           string
	AmountUSD    float64
	AmountNative float64
	Network      domain.Network
}

// Engine validates proposed actions. It holds no state of its own and reloads
// the document on every check.
type Engine struct {
	cfg      config.PolicyConfig
	state    StateReader
	repoRoot string
	log      zerolog.Logger
}

// NewEngine creates a policy engine. repoRoot anchors relative git paths.
func NewEngine(cfg config.PolicyConfig, state StateReader, repoRoot string, log zerolog.Logger) *Engine {
	root, err := filepath.Abs(repoRoot)
	if err != nil {
		root = filepath.Clean(repoRoot)
	}
	return &Engine{
		cfg:      cfg,
		state:    state,
		repoRoot: root,
		log:      log.With().Str("service", "policy").Logger(),
	}
}

// CheckWalletSend validates a SOL transfer. The daily cap is evaluated before
// the per-transaction cap so an over-budget send always reports the budget.
func (e *Engine) CheckWalletSend(amountSOL float64, destination string) error {
	if amountSOL <= 0 {
		return e.deny(domain.NewPolicyViolation(RuleWalletSend, "amount_sol must be positive"))
	}

	doc, err := e.state.Load()
	if err != nil {
		return fmt.Errorf("failed to load state for spend check: %w", err)
	}
	projected := doc.DailySpendSOL + amountSOL
	if projected > e.cfg.DailySpendCapSOL {
		return e.deny(domain.NewPolicyViolation(RuleWalletSend,
			"Projected daily spend %v SOL exceeds cap %v", projected, e.cfg.DailySpendCapSOL))
	}

	if amountSOL > e.cfg.MaxSOLPerTx {
		return e.deny(domain.NewPolicyViolation(RuleWalletSend,
			"amount_sol %v exceeds MAX_SOL_PER_TX %v", amountSOL, e.cfg.MaxSOLPerTx))
	}

	if len(strings.TrimSpace(destination)) < minAddressLength {
		return e.deny(domain.NewPolicyViolation(RuleWalletSend, "destination does not look like a valid Solana address"))
	}
	return nil
}

// CheckSwap validates a swap against pair, notional and reserve limits
func (e *Engine) CheckSwap(c SwapCheck) error {
	from := strings.ToUpper(c.From)
	to := strings.ToUpper(c.To)

	if from == to {
		return e.deny(domain.NewPolicyViolation(RuleSwap, "swap from_token and to_token must differ"))
	}
	for _, token := range []string{from, to} {
		if !e.tokenAllowed(token) {
			return e.deny(domain.NewPolicyViolation(RuleSwap, "token %s is not in the allowed swap set %v", token, e.cfg.AllowedTokens))
		}
	}
	if c.AmountUSD <= 0 {
		return e.deny(domain.NewPolicyViolation(RuleSwap, "swap amount_usd must be positive"))
	}
	if c.AmountUSD > e.cfg.MaxSwapUSDPerTx {
		return e.deny(domain.NewPolicyViolation(RuleSwap,
			"swap notional %v exceeds MAX_SWAP_USD_PER_TX %v", c.AmountUSD, e.cfg.MaxSwapUSDPerTx))
	}

	doc, err := e.state.Load()
	if err != nil {
		return fmt.Errorf("failed to load state for swap check: %w", err)
	}
	projected := doc.DailySwapUSD + c.AmountUSD
	if projected > e.cfg.DailySwapCapUSD {
		return e.deny(domain.NewPolicyViolation(RuleSwap,
			"Projected daily swap volume %v exceeds cap %v", projected, e.cfg.DailySwapCapUSD))
	}

	if c.Network == domain.Mainnet && from == "SOL" {
		current := doc.Positions["SOL"].Amount
		if current-c.AmountNative < e.cfg.MainnetMinBalance {
			return e.deny(domain.NewPolicyViolation(RuleSwap,
				"Mainnet safety: swap would leave SOL balance below minimum (%v SOL). Current: %.3f, requested: %.3f",
				e.cfg.MainnetMinBalance, current, c.AmountNative))
		}
	}
	return nil
}

// CheckSwapBalance verifies the live balance covers the swap. A failed balance
// lookup is returned as an ordinary error, not a violation.
func (e *Engine) CheckSwapBalance(ctx context.Context, balances domain.BalanceProvider, token string, amount float64) error {
	if amount <= 0 {
		return e.deny(domain.NewPolicyViolation(RuleSwapBalance, "swap amount must be positive"))
	}
	available, err := balances.BalanceToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to fetch %s balance: %w", token, err)
	}
	if available < amount {
		return e.deny(domain.NewPolicyViolation(RuleSwapBalance,
			"Insufficient %s balance for swap: have %v, need %v", token, available, amount))
	}
	return nil
}

// CheckBrowserURL validates a scrape target. Only the host is inspected.
func (e *Engine) CheckBrowserURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return e.deny(domain.NewPolicyViolation(RuleBrowser, "URL %q is not a valid http(s) URL", rawURL))
	}

	if e.cfg.BrowserMode != config.BrowserModeAllowlist {
		return nil
	}

	host := strings.ToLower(u.Hostname())
	for _, allowed := range e.cfg.AllowedDomains {
		if host == strings.ToLower(allowed) {
			return nil
		}
	}
	return e.deny(domain.NewPolicyViolation(RuleBrowser, "Domain '%s' is not in the allowed scrape list", host))
}

// CheckGitPaths requires every path to resolve under an allowed prefix of the
// repository root
func (e *Engine) CheckGitPaths(paths []string) error {
	for _, p := range paths {
		resolved := p
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(e.repoRoot, resolved)
		}
		resolved = filepath.Clean(resolved)

		rel, err := filepath.Rel(e.repoRoot, resolved)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return e.deny(domain.NewPolicyViolation(RuleGitPaths, "Path '%s' resolves outside the repository", p))
		}
		rel = filepath.ToSlash(rel)

		if !e.pathAllowed(rel) {
			return e.deny(domain.NewPolicyViolation(RuleGitPaths,
				"Path '%s' (resolved: '%s') is outside allowed directories", p, rel))
		}
	}
	return nil
}

// CheckLOCDelta bounds the size of a self-modification
func (e *Engine) CheckLOCDelta(delta int) error {
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	if abs > e.cfg.MaxLOCDelta {
		return e.deny(domain.NewPolicyViolation(RuleLOCDelta,
			"LOC delta %d exceeds MAX_LOC_DELTA %d", delta, e.cfg.MaxLOCDelta))
	}
	return nil
}

// RepoRoot returns the absolute repository root used for path checks
func (e *Engine) RepoRoot() string {
	return e.repoRoot
}

func (e *Engine) tokenAllowed(token string) bool {
	if len(e.cfg.AllowedTokens) == 0 {
		return true
	}
	for _, t := range e.cfg.AllowedTokens {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}

func (e *Engine) pathAllowed(rel string) bool {
	for _, prefix := range e.cfg.AllowedGitPrefixes {
		prefix = strings.TrimPrefix(filepath.ToSlash(prefix), "./")
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		if strings.HasPrefix(rel, prefix) {
			return true
		}
	}
	return false
}

func (e *Engine) deny(v *domain.PolicyViolation) error {
	e.log.Warn().Str("rule", v.Rule).Str("reason", v.Reason).Msg("Policy violation")
	return v
}
