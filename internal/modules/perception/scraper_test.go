package perception

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!doctype html>
<html>
<head><title>Markets</title><style>body { color: red }</style></head>
<body>
  <script>var tracking = "ignore me";</script>
  <h1>Top Gainers</h1>
  <ul><li>BONK   +12%</li><li>PEPE +8%</li></ul>
  <noscript>enable javascript</noscript>
  <p>Volume is   rising.</p>
</body>
</html>`

func TestVisibleText(t *testing.T) {
	text := visibleText(page)

	assert.Equal(t, "Top Gainers\nBONK +12%\nPEPE +8%\nVolume is rising.", text)
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "color")
	assert.NotContains(t, text, "javascript")
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héllo", truncateRunes("héllo wörld", 5))
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "", truncateRunes("abc", 0))
}

func TestScrape_HTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(page))
	}))
	defer server.Close()

	text, err := NewScraper(0, zerolog.Nop()).Scrape(context.Background(), server.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "Top Gainers"))
}

func TestScrape_TruncatesLongPages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(strings.Repeat("a", MaxScrapeChars+500)))
	}))
	defer server.Close()

	text, err := NewScraper(0, zerolog.Nop()).Scrape(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, text, MaxScrapeChars)
}

func TestScrape_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := NewScraper(0, zerolog.Nop()).Scrape(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestScrape_CanceledWhileRateLimited(t *testing.T) {
	scraper := NewScraper(0.001, zerolog.Nop())
	// First token is available immediately; the second would take ~1000s.
	require.True(t, scraper.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scraper.Scrape(ctx, "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter")
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "www.coingecko.com", hostOf("https://www.coingecko.com/en/crypto-gainers-losers"))
	assert.Equal(t, "127.0.0.1", hostOf("http://127.0.0.1:8080/x"))
	assert.Equal(t, "invalid", hostOf("not a url"))
}
