// Package solanarpc talks to a Solana cluster over JSON-RPC: wallet balances,
// SOL transfers, transaction signing and signature-based activity summaries.
package solanarpc

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
)

// LamportsPerSOL is the number of lamports in one SOL
const LamportsPerSOL = 1_000_000_000

// Wallet is the agent's keypair bound to an RPC endpoint
type Wallet struct {
	rpc     *rpc.Client
	key     solana.PrivateKey
	network domain.Network
	tokens  domain.TokenTable
	metrics *metrics.PrometheusMetrics
	log     zerolog.Logger
}

// NewWallet decodes the base58 keypair and connects to the configured RPC
func NewWallet(cfg config.SolanaConfig, log zerolog.Logger) (*Wallet, error) {
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(cfg.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to decode SOLANA_PRIVATE_KEY: %w", err)
	}
	return NewWalletWithClient(rpc.New(cfg.RPCURL), key, cfg.Network(), log), nil
}

// NewWalletWithClient creates a wallet over an existing RPC client
func NewWalletWithClient(client *rpc.Client, key solana.PrivateKey, network domain.Network, log zerolog.Logger) *Wallet {
	return &Wallet{
		rpc:     client,
		key:     key,
		network: network,
		tokens:  domain.TokensFor(network),
		metrics: metrics.GetPrometheusMetrics(),
		log:     log.With().Str("client", "solana_wallet").Str("network", string(network)).Logger(),
	}
}

// RPC returns the underlying RPC client
func (w *Wallet) RPC() *rpc.Client {
	return w.rpc
}

// PublicKey returns the wallet address
func (w *Wallet) PublicKey() solana.PublicKey {
	return w.key.PublicKey()
}

// Network returns the cluster the wallet is connected to
func (w *Wallet) Network() domain.Network {
	return w.network
}

// BalanceSOL returns the native balance in SOL
func (w *Wallet) BalanceSOL(ctx context.Context) (float64, error) {
	start := time.Now()
	res, err := w.rpc.GetBalance(ctx, w.PublicKey(), rpc.CommitmentConfirmed)
	w.metrics.RecordAPICall("solana", "getBalance", err, time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("failed to fetch SOL balance: %w", err)
	}

	sol := float64(res.Value) / LamportsPerSOL
	w.metrics.SetSOLBalance(sol)
	w.log.Debug().Uint64("lamports", res.Value).Float64("sol", sol).Msg("Fetched balance")
	return sol, nil
}

// BalanceToken returns the balance of a supported symbol. SOL is the native
// balance; SPL tokens are summed across every token account for the mint.
func (w *Wallet) BalanceToken(ctx context.Context, token string) (float64, error) {
	symbol := strings.ToUpper(token)
	if symbol == "SOL" {
		return w.BalanceSOL(ctx)
	}

	mint, err := w.tokens.MintFor(symbol)
	if err != nil {
		return 0, err
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint for %s: %w", symbol, err)
	}

	start := time.Now()
	accounts, err := w.rpc.GetTokenAccountsByOwner(ctx, w.PublicKey(),
		&rpc.GetTokenAccountsConfig{Mint: &mintKey},
		&rpc.GetTokenAccountsOpts{Commitment: rpc.CommitmentConfirmed, Encoding: solana.EncodingBase64},
	)
	w.metrics.RecordAPICall("solana", "getTokenAccountsByOwner", err, time.Since(start))
	if err != nil {
		return 0, fmt.Errorf("failed to list %s token accounts: %w", symbol, err)
	}

	var total float64
	for _, acct := range accounts.Value {
		bal, err := w.rpc.GetTokenAccountBalance(ctx, acct.Pubkey, rpc.CommitmentConfirmed)
		if err != nil {
			return 0, fmt.Errorf("failed to fetch %s token account balance: %w", symbol, err)
		}
		if bal.Value == nil {
			continue
		}
		amount, err := uiAmount(bal.Value)
		if err != nil {
			return 0, fmt.Errorf("failed to parse %s balance: %w", symbol, err)
		}
		total += amount
	}
	return total, nil
}

// AllBalances returns the balance of every symbol available on the network
func (w *Wallet) AllBalances(ctx context.Context) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, symbol := range w.tokens.Symbols() {
		bal, err := w.BalanceToken(ctx, symbol)
		if err != nil {
			return nil, err
		}
		out[symbol] = bal
	}
	return out, nil
}

// Send transfers amountSOL to destination with a system transfer instruction
func (w *Wallet) Send(ctx context.Context, destination string, amountSOL float64) (string, error) {
	to, err := solana.PublicKeyFromBase58(destination)
	if err != nil {
		return "", fmt.Errorf("invalid destination address: %w", err)
	}
	lamports := uint64(math.Round(amountSOL * LamportsPerSOL))
	if lamports == 0 {
		return "", fmt.Errorf("transfer amount rounds to zero lamports")
	}

	from := w.PublicKey()
	w.log.Info().Uint64("lamports", lamports).Str("destination", destination).Msg("Building transfer")

	recent, err := w.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("failed to fetch latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(lamports, from, to).Build()},
		recent.Value.Blockhash,
		solana.TransactionPayer(from),
	)
	if err != nil {
		return "", fmt.Errorf("failed to build transfer: %w", err)
	}
	if err := w.SignTransaction(tx); err != nil {
		return "", err
	}

	return w.SendTransaction(ctx, tx)
}

// SignTransaction places the wallet signature in its required-signer slot,
// leaving any other signatures untouched
func (w *Wallet) SignTransaction(tx *solana.Transaction) error {
	content, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	sig, err := w.key.Sign(content)
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}

	required := int(tx.Message.Header.NumRequiredSignatures)
	for len(tx.Signatures) < required {
		tx.Signatures = append(tx.Signatures, solana.Signature{})
	}
	self := w.PublicKey()
	for i := 0; i < required && i < len(tx.Message.AccountKeys); i++ {
		if tx.Message.AccountKeys[i].Equals(self) {
			tx.Signatures[i] = sig
			return nil
		}
	}
	return fmt.Errorf("wallet %s is not a required signer", self)
}

// SendTransaction submits a signed transaction
func (w *Wallet) SendTransaction(ctx context.Context, tx *solana.Transaction) (string, error) {
	start := time.Now()
	sig, err := w.rpc.SendTransaction(ctx, tx)
	w.metrics.RecordAPICall("solana", "sendTransaction", err, time.Since(start))
	if err != nil {
		return "", fmt.Errorf("failed to send transaction: %w", err)
	}
	w.log.Info().Str("signature", sig.String()).Msg("Transaction submitted")
	return sig.String(), nil
}

func uiAmount(amount *rpc.UiTokenAmount) (float64, error) {
	if amount.UiAmountString != "" {
		return strconv.ParseFloat(amount.UiAmountString, 64)
	}
	raw, err := strconv.ParseUint(amount.Amount, 10, 64)
	if err != nil {
		return 0, err
	}
	return float64(raw) / math.Pow10(int(amount.Decimals)), nil
}
