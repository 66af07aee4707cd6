package domain

import "context"

// LLM turns a system prompt and a user context into free text
type LLM interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Model() string
}

// BalanceProvider exposes live wallet balances.
// Used by the policy engine and the position ledger, which must not depend on
// the full wallet.
type BalanceProvider interface {
	// BalanceToken returns the live balance of a symbol in native units
	BalanceToken(ctx context.Context, token string) (float64, error)

	// AllBalances returns every supported symbol's live balance
	AllBalances(ctx context.Context) (map[string]float64, error)
}

// Wallet is the on-chain account the agent controls
type Wallet interface {
	BalanceProvider

	// BalanceSOL returns the native SOL balance
	BalanceSOL(ctx context.Context) (float64, error)

	// Send transfers SOL and returns the transaction signature
	Send(ctx context.Context, destination string, amountSOL float64) (string, error)
}

// Swapper exchanges one token for another.
// Implementations return an error wrapping ErrNoLiquidity when the pair has no
// route, so callers can distinguish it without inspecting messages.
type Swapper interface {
	Swap(ctx context.Context, fromToken, toToken string, amountSmallestUnit uint64, slippageBps int) (string, error)
}

// Scraper fetches a URL and returns its visible text, bounded in length
type Scraper interface {
	Scrape(ctx context.Context, url string) (string, error)
}

// MarketData provides kline-derived technical summaries
type MarketData interface {
	// Analyze returns a single-timeframe summary for one symbol
	Analyze(ctx context.Context, symbol, interval string, limit int) (string, error)

	// Summaries returns multi-timeframe summaries plus a trend-alignment line for
	// one symbol. Partial results are returned alongside the error.
	Summaries(ctx context.Context, symbol string) ([]string, error)
}

// FundingProvider returns perpetual funding rates keyed by symbol
type FundingProvider interface {
	FundingRates(ctx context.Context, symbols []string) (map[string]float64, error)
}

// ActivityMonitor summarizes on-chain activity of watched wallets
type ActivityMonitor interface {
	WhaleActivity(ctx context.Context, hours int) (string, error)
	LargeTransfers(ctx context.Context, addresses []string, hours int) (string, error)
}

// SentimentProvider summarizes social sentiment for symbols
type SentimentProvider interface {
	Summarize(ctx context.Context, symbols []string) (string, error)
}

// Sandbox applies a self-modification with full rollback on failure.
// On failure the returned error is a *SandboxError (or a *PolicyViolation for
// rejected paths and oversized changes) and the file is unchanged.
type Sandbox interface {
	Apply(ctx context.Context, path, content, commitMessage string) (string, error)
}
