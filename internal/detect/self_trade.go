/**
 * @description
 * Self-Trade: flags direct self-trades (maker == taker) and coordinated
 * self-trades (near-identical trades within a short time bucket whose
 * maker/taker sets overlap).
 */

package detect

import (
	"math"

	"github.com/polysleuth/forensics/internal/models"
)

const selfTradeTimeBucketSeconds = 60

// ScanSelfTrade implements detector 4.4.4.
func ScanSelfTrade(window, full []models.Trade) []models.Evidence {
	var items []evidenceTrigger

	for _, t := range window {
		if t.Maker == t.Taker {
			items = append(items, evidenceTrigger{
				evidence: newEvidence(
					models.EvidenceSelfTrade,
					1.0,
					t.Timestamp,
					[]string{t.Maker},
					[]string{t.TxHash},
					t.TokenID,
					t.Volume,
					models.JSONMap{"variant": "direct"},
				),
				trigger: t,
			})
		}
	}

	items = append(items, scanCoordinatedSelfTrade(window)...)
	return sortEvidenceByTrigger(items)
}

type selfTradeGroupKey struct {
	tokenID string
	size    float64
	price   float64
	bucket  int64
}

func scanCoordinatedSelfTrade(window []models.Trade) []evidenceTrigger {
	groups := make(map[selfTradeGroupKey][]models.Trade)
	for _, t := range window {
		key := selfTradeGroupKey{
			tokenID: t.TokenID,
			size:    roundTo(t.Size, 6),
			price:   roundTo(t.Price, 4),
			bucket:  t.Timestamp.Unix() / selfTradeTimeBucketSeconds,
		}
		groups[key] = append(groups[key], t)
	}

	var out []evidenceTrigger
	for _, trades := range groups {
		if len(trades) < 2 {
			continue
		}
		if !addressSetsOverlap(trades) {
			continue
		}

		var addrs, txs []string
		var volume float64
		latest := trades[0].Timestamp
		for _, t := range trades {
			addrs = append(addrs, t.Maker, t.Taker)
			txs = append(txs, t.TxHash)
			volume += t.Volume
			if t.Timestamp.After(latest) {
				latest = t.Timestamp
			}
		}

		out = append(out, evidenceTrigger{
			evidence: newEvidence(
				models.EvidenceSelfTrade,
				0.9,
				latest,
				addrs,
				txs,
				trades[0].TokenID,
				volume,
				models.JSONMap{"variant": "coordinated", "group_size": len(trades)},
			),
			trigger: trades[0],
		})
	}
	return out
}

// addressSetsOverlap reports whether any address appears across more than
// one trade's {maker, taker} pair within the group.
func addressSetsOverlap(trades []models.Trade) bool {
	counts := make(map[string]int)
	for _, t := range trades {
		seen := map[string]struct{}{t.Maker: {}, t.Taker: {}}
		for addr := range seen {
			counts[addr]++
		}
	}
	for _, c := range counts {
		if c >= 2 {
			return true
		}
	}
	return false
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}
