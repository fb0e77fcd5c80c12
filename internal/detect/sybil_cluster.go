/**
 * @description
 * Sybil Cluster: within a sliding 10-second window per market per side,
 * flags groups of >=3 distinct addresses trading sizes clustered tightly
 * around the group mean.
 */

package detect

import (
	"sort"
	"time"

	"github.com/polysleuth/forensics/internal/models"
)

const (
	sybilWindow         = 10 * time.Second
	sybilMinAddresses   = 3
	sybilSizeBandRatio  = 0.20
	sybilMinMemberShare = 0.60
)

type sybilKey struct {
	tokenID string
	side    models.Side
}

// ScanSybilCluster implements detector 4.4.8.
func ScanSybilCluster(window, full []models.Trade) []models.Evidence {
	groups := make(map[sybilKey][]models.Trade)
	for _, t := range window {
		key := sybilKey{tokenID: t.TokenID, side: t.Side}
		groups[key] = append(groups[key], t)
	}

	var items []evidenceTrigger
	for key, trades := range groups {
		sort.Slice(trades, func(i, j int) bool { return trades[i].Timestamp.Before(trades[j].Timestamp) })
		items = append(items, scanSybilForGroup(key, trades)...)
	}
	return sortEvidenceByTrigger(items)
}

func scanSybilForGroup(key sybilKey, trades []models.Trade) []evidenceTrigger {
	var out []evidenceTrigger

	for i := range trades {
		windowEnd := trades[i].Timestamp.Add(sybilWindow)
		var slice []models.Trade
		for j := i; j < len(trades) && !trades[j].Timestamp.After(windowEnd); j++ {
			slice = append(slice, trades[j])
		}

		addrs := distinctTakers(slice)
		if len(addrs) < sybilMinAddresses {
			continue
		}

		mean := meanSize(slice)
		if mean <= 0 {
			continue
		}

		withinBand := 0
		for _, t := range slice {
			deviation := (t.Size - mean) / mean
			if deviation < 0 {
				deviation = -deviation
			}
			if deviation <= sybilSizeBandRatio {
				withinBand++
			}
		}
		share := float64(withinBand) / float64(len(slice))
		if share < sybilMinMemberShare {
			continue
		}

		clusterSize := len(addrs)
		confidence := 0.6 + 0.1*float64(clusterSize-3)
		if confidence > 0.9 {
			confidence = 0.9
		}

		var txs []string
		var volume float64
		latest := slice[0].Timestamp
		for _, t := range slice {
			txs = append(txs, t.TxHash)
			volume += t.Volume
			if t.Timestamp.After(latest) {
				latest = t.Timestamp
			}
		}

		out = append(out, evidenceTrigger{
			evidence: newEvidence(
				models.EvidenceSybilCluster,
				confidence,
				latest,
				addrs,
				txs,
				key.tokenID,
				volume,
				models.JSONMap{"side": key.side, "cluster_size": clusterSize, "member_share": share},
			),
			trigger: slice[0],
		})
	}

	return out
}

func distinctTakers(trades []models.Trade) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, t := range trades {
		if _, ok := seen[t.Taker]; ok {
			continue
		}
		seen[t.Taker] = struct{}{}
		out = append(out, t.Taker)
	}
	return out
}

func meanSize(trades []models.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	var sum float64
	for _, t := range trades {
		sum += t.Size
	}
	return sum / float64(len(trades))
}
