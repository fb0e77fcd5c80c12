/**
 * @description
 * Market-Health Aggregator: composes detector evidence into a per-market
 * score with diminishing returns for repeated evidence of the same type,
 * a risk-level bucket, and a suspicious-address ranking. Also surfaces
 * trader-diversity and suspicious-address-ratio as informational fields,
 * a signal the Python ancestor tracked independently of the penalized
 * score.
 *
 * @dependencies
 * - standard "math", "sort"
 */

package health

import (
	"math"
	"sort"

	"github.com/polysleuth/forensics/internal/models"
)

// MinTrades is the minimum trade count a market needs before a health
// score is computed for it.
const MinTrades = 20

var baseWeight = map[models.EvidenceType]float64{
	models.EvidenceSelfTrade:        15,
	models.EvidenceCircularTrade:    12,
	models.EvidenceAtomicWash:       12,
	models.EvidenceSybilCluster:     10,
	models.EvidenceNewWalletInsider: 8,
	models.EvidenceVolumeSpike:      5,
	models.EvidenceHighWinRate:      6,
	models.EvidenceGasAnomaly:       3,
}

// RiskLevel is the market's health bucket.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

func riskLevelFor(score float64) RiskLevel {
	switch {
	case score >= 80:
		return RiskLow
	case score >= 60:
		return RiskMedium
	case score >= 40:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// AddressRisk is one entry in the suspicious-address ranking.
type AddressRisk struct {
	Address       string  `json:"address"`
	RiskScore     float64 `json:"risk_score"`
	EvidenceCount int     `json:"evidence_count"`
}

// MarketHealth is the per-market rollup. It is recomputed on demand and
// never persisted as source of truth.
type MarketHealth struct {
	TokenID                string             `json:"token_id"`
	HealthScore            float64            `json:"health_score"`
	RiskLevel              RiskLevel          `json:"risk_level"`
	EvidenceCountByType    map[string]int     `json:"evidence_count_by_type"`
	TopSuspiciousAddresses []AddressRisk      `json:"top_suspicious_addresses"`

	// Informational, not mixed into HealthScore.
	UniqueTraders    int     `json:"unique_traders"`
	SuspiciousRatio  float64 `json:"suspicious_address_ratio"`
}

const maxSuspiciousAddresses = 50

// Compute derives the health of the market identified by tokenID from its
// trades and evidence. evidence must be passed in a fixed order (the REST
// handler passes it by ascending timestamp) since the diminishing-returns
// penalty depends on occurrence order. ok is false when the market has
// fewer than MinTrades trades.
func Compute(tokenID string, trades []models.Trade, evidence []models.Evidence) (MarketHealth, bool) {
	if len(trades) < MinTrades {
		return MarketHealth{}, false
	}

	traders := make(map[string]struct{})
	for _, t := range trades {
		traders[t.Maker] = struct{}{}
		traders[t.Taker] = struct{}{}
	}

	occurrences := make(map[models.EvidenceType]int)
	evidenceCountByType := make(map[string]int)
	addressRisk := make(map[string]float64)
	addressEvidenceCount := make(map[string]int)
	suspicious := make(map[string]struct{})

	score := 100.0

	for _, e := range evidence {
		weight, known := baseWeight[e.Type]
		if !known {
			continue
		}

		occurrences[e.Type]++
		n := occurrences[e.Type]
		penalty := weight * e.Confidence / math.Sqrt(float64(n))

		score -= penalty
		evidenceCountByType[string(e.Type)]++

		for _, addr := range e.Addresses {
			addressRisk[addr] += penalty
			addressEvidenceCount[addr]++
			suspicious[addr] = struct{}{}
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	ranked := make([]AddressRisk, 0, len(addressRisk))
	for addr, risk := range addressRisk {
		ranked = append(ranked, AddressRisk{Address: addr, RiskScore: risk, EvidenceCount: addressEvidenceCount[addr]})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].RiskScore != ranked[j].RiskScore {
			return ranked[i].RiskScore > ranked[j].RiskScore
		}
		return ranked[i].Address < ranked[j].Address
	})
	if len(ranked) > maxSuspiciousAddresses {
		ranked = ranked[:maxSuspiciousAddresses]
	}

	suspiciousRatio := 0.0
	if len(traders) > 0 {
		suspiciousRatio = float64(len(suspicious)) / float64(len(traders))
	}

	return MarketHealth{
		TokenID:                tokenID,
		HealthScore:            score,
		RiskLevel:              riskLevelFor(score),
		EvidenceCountByType:    evidenceCountByType,
		TopSuspiciousAddresses: ranked,
		UniqueTraders:          len(traders),
		SuspiciousRatio:        suspiciousRatio,
	}, true
}
