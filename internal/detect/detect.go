/**
 * @description
 * The detector suite is modeled as a tagged set of {kind, scan} pairs
 * rather than an inheritance hierarchy, per the design notes this system
 * follows. Each Scan runs as a pure function over trades already ordered
 * ascending (block, log-index), ties broken lexicographically by tx-hash —
 * the ordering Store.Snapshot guarantees — so two runs over the same
 * snapshot produce the same evidence in the same order. Each Evidence gets
 * a fresh random ID, so the IDs differ between runs.
 *
 * Detectors that need context beyond the incremental scan window (account
 * age, market baselines, preceding-block gas medians) are given the full
 * ring alongside the window; they only emit evidence for trades in window.
 */

package detect

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/polysleuth/forensics/internal/models"
)

// ScanFunc scans window (the incremental slice being re-evaluated) with
// full (the entire available ring) as context, and returns evidence.
type ScanFunc func(window, full []models.Trade) []models.Evidence

// Spec pairs an evidence kind with the function that detects it.
type Spec struct {
	Kind models.EvidenceType
	Scan ScanFunc
}

// All lists the eight detectors in a fixed order so multi-detector runs
// (e.g. "full" analysis) are themselves deterministic.
var All = []Spec{
	{Kind: models.EvidenceNewWalletInsider, Scan: ScanNewWalletInsider},
	{Kind: models.EvidenceHighWinRate, Scan: ScanHighWinRate},
	{Kind: models.EvidenceGasAnomaly, Scan: ScanGasAnomaly},
	{Kind: models.EvidenceSelfTrade, Scan: ScanSelfTrade},
	{Kind: models.EvidenceCircularTrade, Scan: ScanCircularTrade},
	{Kind: models.EvidenceAtomicWash, Scan: ScanAtomicWash},
	{Kind: models.EvidenceVolumeSpike, Scan: ScanVolumeSpike},
	{Kind: models.EvidenceSybilCluster, Scan: ScanSybilCluster},
}

func newEvidence(kind models.EvidenceType, confidence float64, ts time.Time, addresses, txs []string, tokenID string, volume float64, details models.JSONMap) models.Evidence {
	return models.Evidence{
		ID:           uuid.New(),
		Type:         kind,
		Confidence:   clamp01(confidence),
		Timestamp:    ts,
		Addresses:    dedupStrings(addresses),
		Transactions: dedupStrings(txs),
		TokenID:      tokenID,
		Volume:       volume,
		Details:      details,
	}
}

// evidenceTrigger pairs a candidate Evidence with the trade that triggered
// it, so detectors that group trades by a map key (token, tx-hash, block +
// address, ...) can still return evidence in a fixed order: map iteration
// order is randomized per run, so every detector that ranges over such a
// group must sort its output before returning.
type evidenceTrigger struct {
	evidence models.Evidence
	trigger  models.Trade
}

// sortEvidenceByTrigger orders evidence ascending by its triggering trade's
// (block, log-index), ties broken by tx-hash — the same ordering
// Store.Snapshot guarantees for trades — so two runs over an unordered map
// always return evidence in the same order.
func sortEvidenceByTrigger(items []evidenceTrigger) []models.Evidence {
	sort.Slice(items, func(i, j int) bool { return precedes(items[i].trigger, items[j].trigger) })
	out := make([]models.Evidence, len(items))
	for i, it := range items {
		out[i] = it.evidence
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func dedupStrings(in []string) models.StringSet {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func groupByToken(trades []models.Trade) map[string][]models.Trade {
	out := make(map[string][]models.Trade)
	for _, t := range trades {
		out[t.TokenID] = append(out[t.TokenID], t)
	}
	return out
}

func groupByTx(trades []models.Trade) map[string][]models.Trade {
	out := make(map[string][]models.Trade)
	for _, t := range trades {
		out[t.TxHash] = append(out[t.TxHash], t)
	}
	return out
}
