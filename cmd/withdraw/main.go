// Package main is the emergency withdraw tool. It moves nearly the whole
// mainnet SOL balance of the agent wallet to a recovery address. It is never
// run by the agent itself.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/clients/solanarpc"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/pkg/logger"
)

// reserveSOL stays behind for rent and fees
const reserveSOL = 0.001

var errCancelled = errors.New("withdrawal cancelled")

// withdrawWallet is the part of the wallet the tool needs
type withdrawWallet interface {
	BalanceSOL(ctx context.Context) (float64, error)
	Send(ctx context.Context, destination string, amountSOL float64) (string, error)
}

func main() {
	to := flag.String("to", os.Getenv("RECOVERY_ADDRESS"), "Recovery wallet address (defaults to RECOVERY_ADDRESS)")
	envFile := flag.String("env", "", "Load environment variables from this file instead of .env")
	flag.Parse()

	log := logger.New(logger.Config{Level: "warn", Pretty: true, Output: os.Stderr})

	cfg, err := config.LoadSolana(*envFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	wallet, err := solanarpc.NewWallet(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open wallet")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := run(ctx, wallet, cfg.Network(), cfg.RPCURL, *to, os.Stdin, os.Stdout); err != nil {
		if errors.Is(err, errCancelled) {
			fmt.Println("Cancelled.")
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, wallet withdrawWallet, network domain.Network, rpcURL, to string, in io.Reader, out io.Writer) error {
	if network != domain.Mainnet {
		return fmt.Errorf("not connected to mainnet (SOLANA_RPC_URL=%q)", rpcURL)
	}
	if _, err := solana.PublicKeyFromBase58(strings.TrimSpace(to)); err != nil {
		return fmt.Errorf("invalid recovery address %q: %w", to, err)
	}

	balance, err := wallet.BalanceSOL(ctx)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}

	rule := strings.Repeat("=", 60)
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "EMERGENCY WITHDRAWAL")
	fmt.Fprintln(out, rule)
	fmt.Fprintf(out, "Current balance: %.6f SOL\n", balance)
	fmt.Fprintf(out, "Recovery address: %s\n", to)
	fmt.Fprintf(out, "RPC URL: %s\n", rpcURL)
	fmt.Fprintln(out, rule)

	amount, ok := withdrawAmount(balance)
	if !ok {
		fmt.Fprintf(out, "Balance too low to withdraw (< %.3f SOL). Nothing to do.\n", reserveSOL)
		return nil
	}

	fmt.Fprintf(out, "\nWithdraw %.6f SOL to the recovery wallet?\nType 'YES' to confirm: ", amount)
	answer, _ := bufio.NewReader(in).ReadString('\n')
	if strings.TrimSpace(answer) != "YES" {
		return errCancelled
	}

	fmt.Fprintln(out, "\nSending transaction...")
	sig, err := wallet.Send(ctx, strings.TrimSpace(to), amount)
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	fmt.Fprintf(out, "Withdrawn %.6f SOL\n", amount)
	fmt.Fprintf(out, "Signature: %s\n", sig)
	fmt.Fprintf(out, "View on Solscan: https://solscan.io/tx/%s\n", sig)
	return nil
}

// withdrawAmount leaves reserveSOL behind; false when nothing can be moved
func withdrawAmount(balance float64) (float64, bool) {
	if balance < reserveSOL {
		return 0, false
	}
	amount := balance - reserveSOL
	return amount, amount > 0
}

