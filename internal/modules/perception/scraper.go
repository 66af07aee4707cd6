// Package perception gathers the observation text the planner reasons over:
// scraped pages, technical summaries, funding rates, on-chain activity and
// sentiment.
package perception

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// MaxScrapeChars bounds the text returned for one page
	MaxScrapeChars = 8000

	maxBodyBytes  = 5 << 20
	scrapeTimeout = 30 * time.Second
	userAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
)

// Scraper fetches pages over HTTP and returns their visible text.
// Requests share one rate limiter.
type Scraper struct {
	client   *http.Client
	limiter  *rate.Limiter
	maxChars int
	metrics  *metrics.PrometheusMetrics
	log      zerolog.Logger
}

// NewScraper creates a scraper allowing ratePerSec requests per second.
// A non-positive rate disables limiting.
func NewScraper(ratePerSec float64, log zerolog.Logger) *Scraper {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &Scraper{
		client:   &http.Client{Timeout: scrapeTimeout},
		limiter:  rate.NewLimiter(limit, 1),
		maxChars: MaxScrapeChars,
		metrics:  metrics.GetPrometheusMetrics(),
		log:      log.With().Str("component", "scraper").Logger(),
	}
}

// Scrape returns the visible text of url, truncated to MaxScrapeChars
func (s *Scraper) Scrape(ctx context.Context, rawURL string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	start := time.Now()
	text, err := s.fetch(ctx, rawURL)
	s.metrics.RecordAPICall("scraper", hostOf(rawURL), err, time.Since(start))
	if err != nil {
		return "", err
	}

	truncated := truncateRunes(text, s.maxChars)
	s.log.Debug().
		Str("url", rawURL).
		Int("chars", len(text)).
		Bool("truncated", len(truncated) < len(text)).
		Msg("Scraped page")
	return truncated, nil
}

func (s *Scraper) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("page load failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("page load failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}

	if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
		return visibleText(string(body)), nil
	}
	return collapseWhitespace(string(body)), nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Hostname()
}
