package solanarpc

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
)

// signatureLimit bounds the signatures inspected per address
const signatureLimit = 50

// ActivityMonitor summarizes recent transaction activity of watched addresses.
// Amounts are not decoded; the count of recent signatures is the signal.
type ActivityMonitor struct {
	rpc    *rpc.Client
	whales []string
	now    func() time.Time
	log    zerolog.Logger
}

// NewActivityMonitor creates a monitor for the given whale wallets
func NewActivityMonitor(client *rpc.Client, whales []string, log zerolog.Logger) *ActivityMonitor {
	var nonEmpty []string
	for _, w := range whales {
		if w != "" {
			nonEmpty = append(nonEmpty, w)
		}
	}
	return &ActivityMonitor{
		rpc:    client,
		whales: nonEmpty,
		now:    time.Now,
		log:    log.With().Str("client", "solana_activity").Logger(),
	}
}

type activity struct {
	address   string
	signature string
	slot      uint64
	at        time.Time
}

// WhaleActivity summarizes whale wallet transactions within the last hours
func (m *ActivityMonitor) WhaleActivity(ctx context.Context, hours int) (string, error) {
	if len(m.whales) == 0 {
		return "whale activity: no whale wallets configured yet", nil
	}

	events := m.recent(ctx, m.whales, hours)
	if len(events) == 0 {
		return fmt.Sprintf("whale activity: no recent large transfers in last %dh", hours), nil
	}
	return fmt.Sprintf("whale activity: %d large transfers across %d tracked wallets in last %dh",
		len(events), uniqueAddresses(events), hours), nil
}

// LargeTransfers summarizes transactions of the tracked addresses within the last hours
func (m *ActivityMonitor) LargeTransfers(ctx context.Context, addresses []string, hours int) (string, error) {
	if len(addresses) == 0 {
		return "onchain: no tracked addresses configured for large transfer monitoring", nil
	}

	events := m.recent(ctx, addresses, hours)
	if len(events) == 0 {
		return fmt.Sprintf("onchain: no recent large transfers in last %dh", hours), nil
	}
	return fmt.Sprintf("onchain: %d recent transfers across %d tracked addresses in last %dh",
		len(events), uniqueAddresses(events), hours), nil
}

// recent collects signatures newer than the cutoff. A failing address is
// logged and skipped.
func (m *ActivityMonitor) recent(ctx context.Context, addresses []string, hours int) []activity {
	cutoff := m.now().Add(-time.Duration(hours) * time.Hour)
	limit := signatureLimit

	var events []activity
	for _, addr := range addresses {
		key, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			m.log.Warn().Err(err).Str("address", addr).Msg("Invalid watched address")
			continue
		}

		sigs, err := m.rpc.GetSignaturesForAddressWithOpts(ctx, key, &rpc.GetSignaturesForAddressOpts{
			Limit:      &limit,
			Commitment: rpc.CommitmentConfirmed,
		})
		if err != nil {
			m.log.Warn().Err(err).Str("address", addr).Msg("Failed to inspect address")
			continue
		}

		for _, s := range sigs {
			if s.BlockTime == nil {
				continue
			}
			at := s.BlockTime.Time()
			if at.Before(cutoff) {
				continue
			}
			events = append(events, activity{
				address:   addr,
				signature: s.Signature.String(),
				slot:      s.Slot,
				at:        at,
			})
		}
	}

	for _, e := range events {
		m.log.Debug().Str("address", e.address).Str("signature", e.signature).Uint64("slot", e.slot).Time("at", e.at).Msg("Activity")
	}
	return events
}

func uniqueAddresses(events []activity) int {
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		seen[e.address] = struct{}{}
	}
	return len(seen)
}
