package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
)

// MockWallet is a mock implementation of domain.Wallet for testing
type MockWallet struct {
	mu         sync.RWMutex
	balances   map[string]float64
	balanceErr error
	sendErr    error
	sendSig    string
	sends      []SendCall
	solReads   int
}

// SendCall records one Send invocation
type SendCall struct {
	Destination string
	AmountSOL   float64
}

// NewMockWallet creates a new mock wallet holding the given balances
func NewMockWallet(balances map[string]float64) *MockWallet {
	b := make(map[string]float64, len(balances))
	for k, v := range balances {
		b[k] = v
	}
	return &MockWallet{balances: b, sendSig: "mock-transfer-signature"}
}

// SetBalance sets the live balance of a token
func (m *MockWallet) SetBalance(token string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[token] = amount
}

// SetBalanceError makes every balance lookup fail
func (m *MockWallet) SetBalanceError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceErr = err
}

// SetSendError makes Send fail
func (m *MockWallet) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Sends returns the recorded transfers
func (m *MockWallet) Sends() []SendCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SendCall, len(m.sends))
	copy(out, m.sends)
	return out
}

// SOLReads returns how many times BalanceSOL was called
func (m *MockWallet) SOLReads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.solReads
}

// BalanceSOL returns the SOL balance
func (m *MockWallet) BalanceSOL(ctx context.Context) (float64, error) {
	m.mu.Lock()
	m.solReads++
	m.mu.Unlock()
	return m.BalanceToken(ctx, "SOL")
}

// BalanceToken returns the balance of a token, zero when unknown
func (m *MockWallet) BalanceToken(ctx context.Context, token string) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.balanceErr != nil {
		return 0, m.balanceErr
	}
	return m.balances[token], nil
}

// AllBalances returns a copy of every balance
func (m *MockWallet) AllBalances(ctx context.Context) (map[string]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.balanceErr != nil {
		return nil, m.balanceErr
	}
	out := make(map[string]float64, len(m.balances))
	for k, v := range m.balances {
		out[k] = v
	}
	return out, nil
}

// Send records the transfer and debits the SOL balance
func (m *MockWallet) Send(ctx context.Context, destination string, amountSOL float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sends = append(m.sends, SendCall{Destination: destination, AmountSOL: amountSOL})
	m.balances["SOL"] -= amountSOL
	return m.sendSig, nil
}

// SwapCall records one Swap invocation
type SwapCall struct {
	From        string
	To          string
	Amount      uint64
	SlippageBps int
}

// MockSwapper is a mock implementation of domain.Swapper for testing
type MockSwapper struct {
	mu    sync.RWMutex
	sig   string
	err   error
	calls []SwapCall
}

// NewMockSwapper creates a mock swapper returning sig
func NewMockSwapper(sig string) *MockSwapper {
	return &MockSwapper{sig: sig}
}

// SetError sets the error to return
func (m *MockSwapper) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns the recorded swaps
func (m *MockSwapper) Calls() []SwapCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SwapCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Swap records the call and returns the configured result
func (m *MockSwapper) Swap(ctx context.Context, from, to string, amount uint64, slippageBps int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SwapCall{From: from, To: to, Amount: amount, SlippageBps: slippageBps})
	if m.err != nil {
		return "", m.err
	}
	return m.sig, nil
}

// MockScraper is a mock implementation of domain.Scraper for testing
type MockScraper struct {
	mu    sync.RWMutex
	pages map[string]string
	err   error
}

// NewMockScraper creates a mock scraper serving pages by URL
func NewMockScraper(pages map[string]string) *MockScraper {
	if pages == nil {
		pages = make(map[string]string)
	}
	return &MockScraper{pages: pages}
}

// SetError sets the error to return
func (m *MockScraper) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Scrape returns the configured page text
func (m *MockScraper) Scrape(ctx context.Context, url string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return "", m.err
	}
	text, ok := m.pages[url]
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return text, nil
}

// MockMarketData is a mock implementation of domain.MarketData for testing.
// Summaries returns "[SYM] close=<price>" for symbols with a configured price.
type MockMarketData struct {
	mu     sync.RWMutex
	prices map[string]float64
	err    error
}

// NewMockMarketData creates mock market data with closing prices per symbol
func NewMockMarketData(prices map[string]float64) *MockMarketData {
	if prices == nil {
		prices = make(map[string]float64)
	}
	return &MockMarketData{prices: prices}
}

// SetError sets the error to return
func (m *MockMarketData) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Analyze returns a one-line summary for the symbol
func (m *MockMarketData) Analyze(ctx context.Context, symbol, interval string, limit int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return "", m.err
	}
	price, ok := m.prices[symbol]
	if !ok {
		return "", fmt.Errorf("unknown symbol %s", symbol)
	}
	return fmt.Sprintf("[%s] close=%g interval=%s bars=%d", symbol, price, interval, limit), nil
}

// Summaries returns the 1h close line for the symbol
func (m *MockMarketData) Summaries(ctx context.Context, symbol string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	price, ok := m.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return []string{fmt.Sprintf("[%s] close=%g", symbol, price)}, nil
}

// MockSandbox is a mock implementation of domain.Sandbox for testing
type MockSandbox struct {
	mu     sync.RWMutex
	result string
	err    error
	paths  []string
}

// NewMockSandbox creates a mock sandbox returning result
func NewMockSandbox(result string) *MockSandbox {
	return &MockSandbox{result: result}
}

// SetError sets the error to return
func (m *MockSandbox) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Paths returns the paths Apply was called with
func (m *MockSandbox) Paths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.paths))
	copy(out, m.paths)
	return out
}

// Apply records the path and returns the configured result
func (m *MockSandbox) Apply(ctx context.Context, path, content, commitMessage string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paths = append(m.paths, path)
	if m.err != nil {
		return "", m.err
	}
	return m.result, nil
}

// MockLLM is a mock implementation of domain.LLM that replays answers in order.
// Once the script is exhausted the last answer repeats.
type MockLLM struct {
	mu      sync.Mutex
	answers []string
	err     error
	prompts []string
}

// NewMockLLM creates a mock model with scripted answers
func NewMockLLM(answers ...string) *MockLLM {
	return &MockLLM{answers: answers}
}

// SetError sets the error to return
func (m *MockLLM) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Prompts returns every user prompt received
func (m *MockLLM) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Complete returns the next scripted answer
func (m *MockLLM) Complete(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, user)
	if m.err != nil {
		return "", m.err
	}
	if len(m.answers) == 0 {
		return "", nil
	}
	idx := len(m.prompts) - 1
	if idx >= len(m.answers) {
		idx = len(m.answers) - 1
	}
	return m.answers[idx], nil
}

// Model returns a fixed model name
func (m *MockLLM) Model() string {
	return "mock-model"
}

// MockFunding is a mock implementation of domain.FundingProvider for testing
type MockFunding struct {
	Rates map[string]float64
	Err   error
}

// FundingRates returns the configured rates
func (m *MockFunding) FundingRates(ctx context.Context, symbols []string) (map[string]float64, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Rates, nil
}

// MockActivity is a mock implementation of domain.ActivityMonitor for testing
type MockActivity struct {
	Whales    string
	Transfers string
	Err       error
}

// WhaleActivity returns the configured summary
func (m *MockActivity) WhaleActivity(ctx context.Context, hours int) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Whales, nil
}

// LargeTransfers returns the configured summary
func (m *MockActivity) LargeTransfers(ctx context.Context, addresses []string, hours int) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Transfers, nil
}

// MockSentiment is a mock implementation of domain.SentimentProvider for testing
type MockSentiment struct {
	Summary string
	Err     error
}

// Summarize returns the configured summary
func (m *MockSentiment) Summarize(ctx context.Context, symbols []string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Summary, nil
}

// Compile-time checks
var (
	_ domain.Wallet            = (*MockWallet)(nil)
	_ domain.Swapper           = (*MockSwapper)(nil)
	_ domain.Scraper           = (*MockScraper)(nil)
	_ domain.MarketData        = (*MockMarketData)(nil)
	_ domain.Sandbox           = (*MockSandbox)(nil)
	_ domain.LLM               = (*MockLLM)(nil)
	_ domain.FundingProvider   = (*MockFunding)(nil)
	_ domain.ActivityMonitor   = (*MockActivity)(nil)
	_ domain.SentimentProvider = (*MockSentiment)(nil)
)
