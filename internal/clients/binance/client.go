// Package binance wraps the public Binance spot and USDⓈ-M futures endpoints
// used for market perception. No API key is required.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/metrics"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/pkg/formulas"
	gobinance "github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog"
)

// DefaultKlineLimit is the number of candles fetched when none is given
const DefaultKlineLimit = 100

// Client fetches klines and funding data
type Client struct {
	spot    *gobinance.Client
	futures *futures.Client
	metrics *metrics.PrometheusMetrics
	log     zerolog.Logger
}

// NewClient creates a client against the public production endpoints
func NewClient(timeout time.Duration, log zerolog.Logger) *Client {
	spot := gobinance.NewClient("", "")
	spot.HTTPClient = &http.Client{Timeout: timeout}
	fut := futures.NewClient("", "")
	fut.HTTPClient = &http.Client{Timeout: timeout}

	return &Client{
		spot:    spot,
		futures: fut,
		metrics: metrics.GetPrometheusMetrics(),
		log:     log.With().Str("client", "binance").Logger(),
	}
}

// SetBaseURLs points both clients at other hosts
func (c *Client) SetBaseURLs(spotURL, futuresURL string) {
	c.spot.BaseURL = spotURL
	c.futures.BaseURL = futuresURL
}

// Klines returns the last limit candles for symbol, oldest first
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) (formulas.Candles, error) {
	if limit <= 0 {
		limit = DefaultKlineLimit
	}

	start := time.Now()
	klines, err := c.spot.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	c.metrics.RecordAPICall("binance", "klines", err, time.Since(start))
	if err != nil {
		return formulas.Candles{}, fmt.Errorf("failed to fetch klines for %s: %w", symbol, err)
	}

	candles := formulas.Candles{
		Open:   make([]float64, 0, len(klines)),
		High:   make([]float64, 0, len(klines)),
		Low:    make([]float64, 0, len(klines)),
		Close:  make([]float64, 0, len(klines)),
		Volume: make([]float64, 0, len(klines)),
	}
	for _, k := range klines {
		open, _ := strconv.ParseFloat(k.Open, 64)
		high, _ := strconv.ParseFloat(k.High, 64)
		low, _ := strconv.ParseFloat(k.Low, 64)
		closePrice, _ := strconv.ParseFloat(k.Close, 64)
		volume, _ := strconv.ParseFloat(k.Volume, 64)

		candles.Open = append(candles.Open, open)
		candles.High = append(candles.High, high)
		candles.Low = append(candles.Low, low)
		candles.Close = append(candles.Close, closePrice)
		candles.Volume = append(candles.Volume, volume)
	}

	c.log.Debug().Str("symbol", symbol).Str("interval", interval).Int("candles", candles.Len()).Msg("Fetched klines")
	return candles, nil
}

// FundingRate returns the last funding rate of a perpetual as a fraction per 8h
func (c *Client) FundingRate(ctx context.Context, symbol string) (float64, error) {
	start := time.Now()
	list, err := c.futures.NewPremiumIndexService().Symbol(symbol).Do(ctx)
	c.metrics.RecordAPICall("binance", "premium_index", err, time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch funding rate for %s: %w", symbol, err)
	}
	if len(list) == 0 {
		return 0, fmt.Errorf("no premium index for %s", symbol)
	}

	rate, err := strconv.ParseFloat(list[0].LastFundingRate, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse funding rate for %s: %w", symbol, err)
	}
	return rate, nil
}

// OpenInterest returns the open interest of a perpetual in base-asset units
func (c *Client) OpenInterest(ctx context.Context, symbol string) (float64, error) {
	start := time.Now()
	oi, err := c.futures.NewGetOpenInterestService().Symbol(symbol).Do(ctx)
	c.metrics.RecordAPICall("binance", "open_interest", err, time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch open interest for %s: %w", symbol, err)
	}

	value, err := strconv.ParseFloat(oi.OpenInterest, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse open interest for %s: %w", symbol, err)
	}
	return value, nil
}
