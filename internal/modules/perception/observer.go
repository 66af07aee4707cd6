package perception

import (
	"context"
	"fmt"
	"strings"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/metrics"
	"github.com/rs/zerolog"
)

// Default watch lists
var (
	DefaultScrapeURLs = []string{
		"https://dexscreener.com",
		"https://www.coingecko.com",
		"https://www.coingecko.com/en/crypto-gainers-losers",
		"https://www.coinmarketcap.com",
	}
	DefaultSymbols        = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "PEPEUSDT", "SHIBUSDT", "BONKUSDT", "DOGEUSDT"}
	DefaultFundingSymbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
)

// ObserverConfig lists what one PERCEIVE pass looks at
type ObserverConfig struct {
	ScrapeURLs       []string
	Symbols          []string
	FundingSymbols   []string
	TrackedAddresses []string
	LookbackHours    int
}

// DefaultObserverConfig returns the built-in watch lists with a 24h lookback
func DefaultObserverConfig() ObserverConfig {
	return ObserverConfig{
		ScrapeURLs:     DefaultScrapeURLs,
		Symbols:        DefaultSymbols,
		FundingSymbols: DefaultFundingSymbols,
		LookbackHours:  24,
	}
}

// Sources are the collaborators consulted during PERCEIVE
type Sources struct {
	Scraper   domain.Scraper
	Market    domain.MarketData
	Funding   domain.FundingProvider
	Activity  domain.ActivityMonitor
	Sentiment domain.SentimentProvider
}

// Report describes one observation pass
type Report struct {
	Chunks   int
	Failures int
}

// Observer assembles the observation text. A failing source is recorded as an
// inline annotation and never aborts the pass.
type Observer struct {
	cfg     ObserverConfig
	src     Sources
	metrics *metrics.PrometheusMetrics
	log     zerolog.Logger
}

// NewObserver creates an observer
func NewObserver(cfg ObserverConfig, src Sources, log zerolog.Logger) *Observer {
	if cfg.LookbackHours <= 0 {
		cfg.LookbackHours = 24
	}
	return &Observer{
		cfg:     cfg,
		src:     src,
		metrics: metrics.GetPrometheusMetrics(),
		log:     log.With().Str("service", "observer").Logger(),
	}
}

// Observe runs every source in order and joins the chunks with blank lines
func (o *Observer) Observe(ctx context.Context) (string, Report) {
	var (
		chunks []string
		report Report
	)
	fail := func(source, annotation string, err error) {
		report.Failures++
		o.metrics.RecordCollectorFailure(source)
		o.log.Warn().Err(err).Str("source", source).Msg("Observation source failed")
		chunks = append(chunks, annotation)
	}

	for _, url := range o.cfg.ScrapeURLs {
		text, err := o.src.Scraper.Scrape(ctx, url)
		if err != nil {
			fail("scrape", fmt.Sprintf("[%s] scrape failed: %v", url, err), err)
			continue
		}
		o.log.Info().Str("url", url).Int("chars", len(text)).Msg("Scraped")
		chunks = append(chunks, fmt.Sprintf("[%s]\n%s", url, text))
	}

	for _, symbol := range o.cfg.Symbols {
		summaries, err := o.src.Market.Summaries(ctx, symbol)
		chunks = append(chunks, summaries...)
		if err != nil {
			fail("market", fmt.Sprintf("[%s] binance/TA multi-timeframe failed: %v", symbol, err), err)
		}
	}

	if len(o.cfg.FundingSymbols) > 0 {
		rates, err := o.src.Funding.FundingRates(ctx, o.cfg.FundingSymbols)
		if err != nil {
			fail("funding", fmt.Sprintf("[funding] failed to fetch funding rates: %v", err), err)
		} else if line := fundingLines(o.cfg.FundingSymbols, rates); line != "" {
			chunks = append(chunks, line)
		}
		if oi, ok := o.src.Funding.(openInterestProvider); ok {
			if line := openInterestLines(o.cfg.FundingSymbols, oi.OpenInterest(ctx, o.cfg.FundingSymbols)); line != "" {
				chunks = append(chunks, line)
			}
		}
	}

	if whales, err := o.src.Activity.WhaleActivity(ctx, o.cfg.LookbackHours); err != nil {
		fail("whales", fmt.Sprintf("[whales] failed to summarize whale activity: %v", err), err)
	} else {
		chunks = append(chunks, whales)
	}

	if transfers, err := o.src.Activity.LargeTransfers(ctx, o.cfg.TrackedAddresses, o.cfg.LookbackHours); err != nil {
		fail("onchain", fmt.Sprintf("[onchain] failed to summarize large transfers: %v", err), err)
	} else {
		chunks = append(chunks, transfers)
	}

	if sentiment, err := o.src.Sentiment.Summarize(ctx, o.cfg.Symbols); err != nil {
		fail("sentiment", fmt.Sprintf("[sentiment] failed to summarize sentiment: %v", err), err)
	} else {
		chunks = append(chunks, sentiment)
	}

	report.Chunks = len(chunks)
	o.log.Info().Int("chunks", report.Chunks).Int("failures", report.Failures).Msg("Perceive complete")
	return strings.Join(chunks, "\n\n"), report
}

// openInterestProvider is implemented by funding providers that also report
// open interest
type openInterestProvider interface {
	OpenInterest(ctx context.Context, symbols []string) map[string]float64
}

func openInterestLines(symbols []string, values map[string]float64) string {
	lines := []string{"[open_interest] perpetual open interest:"}
	for _, sym := range symbols {
		if v, ok := values[sym]; ok {
			lines = append(lines, fmt.Sprintf("  %s: %.2f", sym, v))
		}
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}

func fundingLines(symbols []string, rates map[string]float64) string {
	lines := []string{"[funding] current funding rates:"}
	for _, sym := range symbols {
		rate, ok := rates[sym]
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s: %.6f", sym, rate))
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}
