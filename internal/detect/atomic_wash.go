/**
 * @description
 * Atomic Wash: flags a single transaction that splits collateral into
 * outcome shares, trades them against a counterparty, and merges the
 * shares back to collateral in one atomic call, plus the looser
 * same-block/same-address buy-sell balance variant.
 */

package detect

import (
	"time"

	"github.com/polysleuth/forensics/internal/models"
)

const atomicWashBalanceThreshold = 0.2

// ScanAtomicWash implements detector 4.4.6.
func ScanAtomicWash(window, full []models.Trade) []models.Evidence {
	var items []evidenceTrigger
	items = append(items, scanAtomicWashByTx(window)...)
	items = append(items, scanAtomicWashByBlockAddress(window)...)
	return sortEvidenceByTrigger(items)
}

// scanAtomicWashByTx flags transactions that contain a split, a fill, and a
// merge. The store only persists OrderFilled as trades, so a split/merge
// pair is recognized via the HasSplitInTx/HasMergeInTx flags the Stream
// Controller sets on each trade at ingestion time.
func scanAtomicWashByTx(window []models.Trade) []evidenceTrigger {
	byTx := groupByTx(window)

	var out []evidenceTrigger
	for txHash, trades := range byTx {
		hasSplit, hasMerge := false, false
		for _, t := range trades {
			if t.HasSplitInTx {
				hasSplit = true
			}
			if t.HasMergeInTx {
				hasMerge = true
			}
		}
		if !hasSplit || !hasMerge || len(trades) == 0 {
			continue
		}

		var addrs []string
		var volume float64
		latest := trades[0].Timestamp
		for _, t := range trades {
			addrs = append(addrs, t.Maker, t.Taker)
			volume += t.Volume
			if t.Timestamp.After(latest) {
				latest = t.Timestamp
			}
		}

		out = append(out, evidenceTrigger{
			evidence: newEvidence(
				models.EvidenceAtomicWash,
				0.98,
				latest,
				addrs,
				[]string{txHash},
				trades[0].TokenID,
				volume,
				models.JSONMap{"variant": "split_fill_merge"},
			),
			trigger: trades[0],
		})
	}
	return out
}

type blockAddressMarketKey struct {
	block   int64
	address string
	tokenID string
}

// scanAtomicWashByBlockAddress flags addresses whose buy and sell volume
// within a single block and market are nearly balanced.
func scanAtomicWashByBlockAddress(window []models.Trade) []evidenceTrigger {
	type sides struct {
		buy, sell float64
		txs       []string
		latest    time.Time
		trigger   models.Trade
	}
	groups := make(map[blockAddressMarketKey]*sides)

	addVolume := func(key blockAddressMarketKey, t models.Trade) {
		s, ok := groups[key]
		if !ok {
			s = &sides{trigger: t}
			groups[key] = s
		}
		if t.Side == models.SideBuy {
			s.buy += t.Volume
		} else {
			s.sell += t.Volume
		}
		s.txs = append(s.txs, t.TxHash)
		if t.Timestamp.After(s.latest) {
			s.latest = t.Timestamp
		}
	}

	for _, t := range window {
		key := blockAddressMarketKey{block: t.BlockNumber, tokenID: t.TokenID}
		key.address = t.Maker
		addVolume(key, t)
	}

	var out []evidenceTrigger
	for key, s := range groups {
		maxVol := s.buy
		if s.sell > maxVol {
			maxVol = s.sell
		}
		if maxVol <= 0 {
			continue
		}
		diff := s.buy - s.sell
		if diff < 0 {
			diff = -diff
		}
		ratio := diff / maxVol
		if ratio >= atomicWashBalanceThreshold {
			continue
		}

		// closer to perfectly balanced (ratio -> 0) maps to higher confidence
		confidence := 0.98 - (ratio/atomicWashBalanceThreshold)*0.08
		if confidence < 0.90 {
			confidence = 0.90
		}
		if confidence > 0.98 {
			confidence = 0.98
		}

		out = append(out, evidenceTrigger{
			evidence: newEvidence(
				models.EvidenceAtomicWash,
				confidence,
				s.latest,
				[]string{key.address},
				dedupStrings(s.txs),
				key.tokenID,
				s.buy+s.sell,
				models.JSONMap{"variant": "block_balance", "buy_volume": s.buy, "sell_volume": s.sell, "block": key.block},
			),
			trigger: s.trigger,
		})
	}
	return out
}
