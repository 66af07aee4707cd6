// Package jupiter executes token swaps through the Jupiter aggregator.
// Mainnet uses the Ultra order/execute flow; devnet uses the quote/swap API
// and submits the signed transaction through the wallet's RPC.
package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/metrics"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
)

const (
	defaultBaseURL = "https://api.jup.ag"
	maxErrorBody   = 500
)

// Signer signs and submits transactions for the swapping wallet
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(tx *solana.Transaction) error
	SendTransaction(ctx context.Context, tx *solana.Transaction) (string, error)
}

// Client is a network-aware domain.Swapper
type Client struct {
	baseURL    string
	apiKey     string
	network    domain.Network
	tokens     domain.TokenTable
	signer     Signer
	httpClient *http.Client
	retry      RetryPolicy
	sleep      sleepFunc
	metrics    *metrics.PrometheusMetrics
	log        zerolog.Logger
}

// NewClient creates a swapper for the network. Mainnet requires an API key.
func NewClient(network domain.Network, apiKey string, signer Signer, log zerolog.Logger) (*Client, error) {
	if network == domain.Mainnet && apiKey == "" {
		return nil, fmt.Errorf("JUPITER_API_KEY required for mainnet swaps")
	}
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		network:    network,
		tokens:     domain.TokensFor(network),
		signer:     signer,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		retry:      UltraExecuteRetry,
		sleep:      sleepContext,
		metrics:    metrics.GetPrometheusMetrics(),
		log:        log.With().Str("client", "jupiter").Str("network", string(network)).Logger(),
	}, nil
}

// Swap exchanges amount (smallest units of fromToken) for toToken and returns
// the transaction signature. On devnet a missing pool is reported as
// domain.ErrNoLiquidity.
func (c *Client) Swap(ctx context.Context, fromToken, toToken string, amount uint64, slippageBps int) (string, error) {
	if amount == 0 {
		return "", fmt.Errorf("swap amount must be positive")
	}
	fromMint, err := c.tokens.MintFor(fromToken)
	if err != nil {
		return "", err
	}
	toMint, err := c.tokens.MintFor(toToken)
	if err != nil {
		return "", err
	}

	c.log.Info().
		Str("input_mint", fromMint).
		Str("output_mint", toMint).
		Uint64("amount", amount).
		Int("slippage_bps", slippageBps).
		Msg("Requesting swap")

	if c.network == domain.Mainnet {
		return c.ultraSwap(ctx, fromMint, toMint, amount, slippageBps)
	}
	return c.devnetSwap(ctx, fromMint, toMint, amount, slippageBps)
}

type ultraOrderResponse struct {
	Transaction     string `json:"transaction"`
	SwapTransaction string `json:"swapTransaction"`
	RequestID       string `json:"requestId"`
	ErrorCode       any    `json:"errorCode"`
	ErrorMessage    string `json:"errorMessage"`
	Error           string `json:"error"`
}

type ultraExecuteResponse struct {
	Status    string `json:"status"`
	Signature string `json:"signature"`
	TxID      string `json:"txid"`
	Error     string `json:"error"`
}

func (c *Client) ultraSwap(ctx context.Context, fromMint, toMint string, amount uint64, slippageBps int) (string, error) {
	params := url.Values{
		"inputMint":   {fromMint},
		"outputMint":  {toMint},
		"amount":      {strconv.FormatUint(amount, 10)},
		"slippageBps": {strconv.Itoa(slippageBps)},
		"taker":       {c.signer.PublicKey().String()},
	}

	var order ultraOrderResponse
	if err := c.getJSON(ctx, "ultra_order", "/ultra/v1/order?"+params.Encode(), &order); err != nil {
		return "", err
	}
	if order.RequestID == "" {
		return "", fmt.Errorf("ultra order response missing requestId")
	}
	unsigned := order.Transaction
	if unsigned == "" {
		unsigned = order.SwapTransaction
	}
	if unsigned == "" {
		msg := order.ErrorMessage
		if msg == "" {
			msg = order.Error
		}
		if msg != "" {
			return "", fmt.Errorf("ultra order failed: %s", msg)
		}
		return "", fmt.Errorf("ultra order returned no transaction (errorCode=%v)", order.ErrorCode)
	}

	tx, err := c.signEncoded(unsigned)
	if err != nil {
		return "", err
	}
	signed, err := encodeTransaction(tx)
	if err != nil {
		return "", err
	}

	var exec ultraExecuteResponse
	err = c.retry.run(ctx, c.sleep, c.log, "ultra execute", func() error {
		return c.postJSON(ctx, "ultra_execute", "/ultra/v1/execute", map[string]string{
			"requestId":         order.RequestID,
			"signedTransaction": signed,
		}, &exec)
	})
	if err != nil {
		return "", err
	}

	sig := exec.Signature
	if sig == "" {
		sig = exec.TxID
	}
	if sig == "" {
		return "", fmt.Errorf("ultra execute response missing signature (status=%s error=%s)", exec.Status, exec.Error)
	}
	c.log.Info().Str("signature", sig).Msg("Ultra swap executed")
	return sig, nil
}

type devnetSwapResponse struct {
	SwapTransaction string `json:"swapTransaction"`
}

func (c *Client) devnetSwap(ctx context.Context, fromMint, toMint string, amount uint64, slippageBps int) (string, error) {
	params := url.Values{
		"inputMint":   {fromMint},
		"outputMint":  {toMint},
		"amount":      {strconv.FormatUint(amount, 10)},
		"slippageBps": {strconv.Itoa(slippageBps)},
	}

	var quote json.RawMessage
	err := c.getJSON(ctx, "quote", "/swap/v1/quote?"+params.Encode(), &quote)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.status == http.StatusNotFound {
			return "", fmt.Errorf("no liquidity pool found on devnet for this token pair: %w", domain.ErrNoLiquidity)
		}
		return "", err
	}

	var swap devnetSwapResponse
	err = c.postJSON(ctx, "swap", "/swap/v1/swap", map[string]any{
		"quoteResponse":    quote,
		"userPublicKey":    c.signer.PublicKey().String(),
		"wrapAndUnwrapSol": true,
	}, &swap)
	if err != nil {
		return "", err
	}
	if swap.SwapTransaction == "" {
		return "", fmt.Errorf("swap response missing swapTransaction")
	}

	tx, err := c.signEncoded(swap.SwapTransaction)
	if err != nil {
		return "", err
	}
	return c.signer.SendTransaction(ctx, tx)
}

func (c *Client) signEncoded(encoded string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode swap transaction: %w", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse swap transaction: %w", err)
	}
	if err := c.signer.SignTransaction(tx); err != nil {
		return nil, err
	}
	return tx, nil
}

func encodeTransaction(tx *solana.Transaction) (string, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("failed to encode signed transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// statusError is a non-200 response
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.status, e.body)
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, endpoint, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordAPICall("jupiter", endpoint, err, time.Since(start))
	}()

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("jupiter %s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("jupiter %s error: %w", endpoint, &statusError{
			status: resp.StatusCode,
			body:   strings.TrimSpace(string(snippet)),
		})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode jupiter %s response: %w", endpoint, err)
	}
	return nil
}
