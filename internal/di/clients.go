package di

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/clients/binance"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/clients/jupiter"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/clients/llm"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/clients/solanarpc"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/config"
	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/modules/perception"
)

const binanceTimeout = 15 * time.Second

// InitializeClients creates the external API clients. Nothing here touches
// the network.
func InitializeClients(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.LLM = llm.NewClient(cfg.LLM, log)
	container.Binance = binance.NewClient(binanceTimeout, log)
	container.Scraper = perception.NewScraper(cfg.ScrapeRatePerSec, log)

	wallet, err := solanarpc.NewWallet(cfg.Solana, log)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	container.Wallet = wallet
	container.Activity = solanarpc.NewActivityMonitor(wallet.RPC(), cfg.Monitor.WhaleWallets, log)

	swapper, err := jupiter.NewClient(wallet.Network(), cfg.Solana.JupiterAPIKey, wallet, log)
	if err != nil {
		return fmt.Errorf("failed to create swapper: %w", err)
	}
	container.Swapper = swapper

	log.Info().
		Str("network", string(wallet.Network())).
		Str("wallet", wallet.PublicKey().String()).
		Str("model", container.LLM.Model()).
		Msg("Clients initialized")
	return nil
}
