/**
 * @description
 * New-Wallet Insider: flags large trades from wallets whose first-ever
 * trade in the store was less than 24h before the trade in question.
 */

package detect

import (
	"time"

	"github.com/polysleuth/forensics/internal/models"
)

const newWalletInsiderAgeWindow = 24 * time.Hour
const newWalletInsiderSizeMultiple = 5.0
const marketMeanWindow = 1000

// ScanNewWalletInsider implements detector 4.4.1.
func ScanNewWalletInsider(window, full []models.Trade) []models.Evidence {
	earliestSeen := earliestSeenByTrader(full)

	var out []models.Evidence
	for _, t := range window {
		roles := []string{t.Taker}
		if t.Maker != t.Taker {
			roles = append(roles, t.Maker)
		}

		for _, trader := range roles {
			first, ok := earliestSeen[trader]
			if !ok {
				continue
			}
			accountAge := t.Timestamp.Sub(first)
			if accountAge >= newWalletInsiderAgeWindow {
				continue
			}

			meanSize := marketMeanSizeBefore(full, t)
			if meanSize <= 0 || t.Size <= newWalletInsiderSizeMultiple*meanSize {
				continue
			}

			ratio := t.Size / meanSize
			confidence := ratio / 10.0
			if confidence > 1.0 {
				confidence = 1.0
			}

			out = append(out, newEvidence(
				models.EvidenceNewWalletInsider,
				confidence,
				t.Timestamp,
				[]string{trader},
				[]string{t.TxHash},
				t.TokenID,
				t.Volume,
				models.JSONMap{
					"account_age_seconds": accountAge.Seconds(),
					"market_mean_size":    meanSize,
					"trade_size":          t.Size,
				},
			))
		}
	}
	return out
}

func earliestSeenByTrader(trades []models.Trade) map[string]time.Time {
	out := make(map[string]time.Time)
	for _, t := range trades {
		for _, addr := range []string{t.Maker, t.Taker} {
			if existing, ok := out[addr]; !ok || t.Timestamp.Before(existing) {
				out[addr] = t.Timestamp
			}
		}
	}
	return out
}

// marketMeanSizeBefore computes the mean size over the trigger trade's
// market across up to the preceding marketMeanWindow trades (strictly
// before the trigger trade, by (block, log-index) order).
func marketMeanSizeBefore(full []models.Trade, trigger models.Trade) float64 {
	var sizes []float64
	for _, t := range full {
		if t.TokenID != trigger.TokenID {
			continue
		}
		if !precedes(t, trigger) {
			continue
		}
		sizes = append(sizes, t.Size)
	}
	if len(sizes) == 0 {
		return 0
	}
	if len(sizes) > marketMeanWindow {
		sizes = sizes[len(sizes)-marketMeanWindow:]
	}

	sum := 0.0
	for _, s := range sizes {
		sum += s
	}
	return sum / float64(len(sizes))
}

func precedes(a, b models.Trade) bool {
	if a.BlockNumber != b.BlockNumber {
		return a.BlockNumber < b.BlockNumber
	}
	if a.LogIndex != b.LogIndex {
		return a.LogIndex < b.LogIndex
	}
	return a.TxHash < b.TxHash
}
