package domain

import (
	"fmt"
	"math"
	"strings"
)

// Network is the Solana cluster the agent operates on
type Network string

const (
	Mainnet Network = "mainnet"
	Devnet  Network = "devnet"
)

// DetectNetwork infers the cluster from the RPC URL
func DetectNetwork(rpcURL string) Network {
	if strings.Contains(strings.ToLower(rpcURL), "devnet") {
		return Devnet
	}
	return Mainnet
}

// Well-known mint addresses
const (
	WrappedSOLMint  = "So11111111111111111111111111111111111111112"
	USDCMainnetMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	USDCDevnetMint  = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"
	WBTCMainnetMint = "3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh"
)

// TokenTable maps logical symbols to mints for one network
type TokenTable struct {
	SOL  string
	USDC string
	WBTC string // empty when unavailable on the network
}

// TokensFor returns the mint table for the network
func TokensFor(n Network) TokenTable {
	if n == Devnet {
		return TokenTable{SOL: WrappedSOLMint, USDC: USDCDevnetMint}
	}
	return TokenTable{SOL: WrappedSOLMint, USDC: USDCMainnetMint, WBTC: WBTCMainnetMint}
}

// MintFor resolves a symbol to its mint address
func (t TokenTable) MintFor(symbol string) (string, error) {
	switch strings.ToUpper(symbol) {
	case "SOL":
		return t.SOL, nil
	case "USDC":
		return t.USDC, nil
	case "WBTC", "BTC":
		if t.WBTC == "" {
			return "", fmt.Errorf("token %s is not configured for this network", strings.ToUpper(symbol))
		}
		return t.WBTC, nil
	}
	return "", fmt.Errorf("unsupported token symbol for swap: %s", symbol)
}

// Symbols lists the symbols available on the network
func (t TokenTable) Symbols() []string {
	out := []string{"SOL", "USDC"}
	if t.WBTC != "" {
		out = append(out, "WBTC")
	}
	return out
}

// Decimals returns the smallest-unit exponent of a supported token
func Decimals(symbol string) int {
	switch strings.ToUpper(symbol) {
	case "USDC":
		return 6
	case "WBTC", "BTC":
		return 8
	}
	return 9
}

// MockSwapPrefix marks synthetic swap signatures produced when a test network
// has no route for a pair
const MockSwapPrefix = "DEVNET-MOCK-SWAP-"

// MockSwapSignature builds the deterministic synthetic signature for a swap
func MockSwapSignature(fromMint, toMint string, amount uint64, slippageBps int) string {
	return fmt.Sprintf("%s%s-%s-%d-%d", MockSwapPrefix, fromMint, toMint, amount, slippageBps)
}

// IsMockSwapSignature reports whether sig was produced by MockSwapSignature
func IsMockSwapSignature(sig string) bool {
	return strings.HasPrefix(sig, MockSwapPrefix)
}

// ToSmallestUnit converts a native token amount into its integer base unit
func ToSmallestUnit(symbol string, amount float64) uint64 {
	if amount <= 0 {
		return 0
	}
	return uint64(math.Round(amount * math.Pow10(Decimals(symbol))))
}
