// Package memory provides the durable JSON state document of the agent.
package memory

// DateLayout is the ISO date format used for every date field in the document
const DateLayout = "2006-01-02"

// Document is the persisted agent state. Missing keys decode to defaults so
// older documents stay readable.
type Document struct {
	DailySpendSOL  float64 `json:"daily_spend_sol"`
	DailySpendDate string  `json:"daily_spend_date"`
	DailySwapUSD   float64 `json:"daily_swap_usd"`
	DailySwapDate  string  `json:"daily_swap_date"`

	Reflections    []Reflection `json:"reflections"`
	Trades         []Trade      `json:"trades"`
	TradeSummaries []Summary    `json:"trade_summaries"`

	Positions     map[string]Position `json:"positions"`
	SwapHistory   []SwapRecord        `json:"swap_history"`
	SwapSummaries []Summary           `json:"swap_summaries"`

	Benchmark              Benchmark `json:"benchmark"`
	LastObservationsPrices []string  `json:"last_observations_prices"`

	Version int64 `json:"version"`
}

// Reflection is a free-text note written at the end of a cycle
type Reflection struct {
	Date string `json:"date"`
	Text string `json:"text"`
}

// Trade is the structured record of one executed plan
type Trade struct {
	Date       string                 `json:"date"`
	ActionType string                 `json:"action_type"`
	Target     string                 `json:"target"`
	Params     map[string]interface{} `json:"params"`
	Confidence float64                `json:"confidence"`
	Reason     string                 `json:"reason"`
	Result     string                 `json:"result"`
}

// Position is a tracked token holding with approximate cost basis
type Position struct {
	Amount       float64 `json:"amount"`
	CostBasisUSD float64 `json:"cost_basis_usd"`
	LastUpdated  string  `json:"last_updated"`
	Source       string  `json:"source,omitempty"`
}

// SwapRecord is one executed (or simulated) swap
type SwapRecord struct {
	Date        string             `json:"date"`
	FromToken   string             `json:"from_token"`
	ToToken     string             `json:"to_token"`
	AmountSOL   float64            `json:"amount_sol"` // native amount of FromToken
	AmountUSD   float64            `json:"amount_usd"`
	SlippageBps int                `json:"slippage_bps"`
	Signature   string             `json:"signature"`
	Prices      map[string]float64 `json:"prices"`
	Mock        bool               `json:"mock"`
	DryRun      bool               `json:"dry_run,omitempty"`
}

// Summary aggregates entries pruned from a capped list. For trades the counts
// are keyed by action type, for swaps by "FROM->TO" pair.
type Summary struct {
	PeriodStart  string         `json:"period_start"`
	PeriodEnd    string         `json:"period_end"`
	Count        int            `json:"count"`
	ActionCounts map[string]int `json:"action_counts"`
	Successes    int            `json:"successes"`
	Failures     int            `json:"failures"`
	Skipped      int            `json:"skipped,omitempty"`
	Simulated    int            `json:"simulated,omitempty"`
	TotalUSD     float64        `json:"total_usd,omitempty"`
	SuccessRate  float64        `json:"success_rate"`
}

// Benchmark is the write-once anchor for buy-and-hold comparison
type Benchmark struct {
	StartDate         string             `json:"start_date"`
	StartPortfolioUSD float64            `json:"start_portfolio_usd"`
	StartPrices       map[string]float64 `json:"start_prices"`
}

// IsSet reports whether the anchor has been recorded
func (b Benchmark) IsSet() bool {
	return b.StartDate != ""
}

// NewDocument returns a structurally complete default document
func NewDocument() *Document {
	doc := &Document{}
	doc.normalize()
	return doc
}

// normalize fills nil collections so callers never see a nil map or slice
func (d *Document) normalize() {
	if d.Reflections == nil {
		d.Reflections = []Reflection{}
	}
	if d.Trades == nil {
		d.Trades = []Trade{}
	}
	if d.TradeSummaries == nil {
		d.TradeSummaries = []Summary{}
	}
	if d.Positions == nil {
		d.Positions = map[string]Position{}
	}
	if d.SwapHistory == nil {
		d.SwapHistory = []SwapRecord{}
	}
	if d.SwapSummaries == nil {
		d.SwapSummaries = []Summary{}
	}
	if d.Benchmark.StartPrices == nil {
		d.Benchmark.StartPrices = map[string]float64{}
	}
	if d.LastObservationsPrices == nil {
		d.LastObservationsPrices = []string{}
	}
	for i := range d.Trades {
		if d.Trades[i].Params == nil {
			d.Trades[i].Params = map[string]interface{}{}
		}
	}
}
