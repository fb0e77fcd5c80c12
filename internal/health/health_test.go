package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysleuth/forensics/internal/models"
)

func trades(n int) []models.Trade {
	out := make([]models.Trade, n)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out[i] = models.Trade{
			TxHash:      "0xtx",
			LogIndex:    uint(i),
			BlockNumber: int64(i),
			Timestamp:   base.Add(time.Duration(i) * time.Second),
			Maker:       "0xmaker",
			Taker:       "0xtaker",
			TokenID:     "tok",
			Side:        models.SideBuy,
			Price:       0.5,
			Size:        10,
			Volume:      5,
		}
	}
	return out
}

func selfTradeEvidence(n int, confidence float64) []models.Evidence {
	out := make([]models.Evidence, n)
	for i := 0; i < n; i++ {
		out[i] = models.Evidence{
			Type:       models.EvidenceSelfTrade,
			Confidence: confidence,
			Addresses:  []string{"0xsuspect"},
		}
	}
	return out
}

func TestCompute_BelowMinTradesReturnsNotOk(t *testing.T) {
	_, ok := Compute("tok", trades(MinTrades-1), nil)
	assert.False(t, ok, "market with fewer than MinTrades trades must not get a health score")
}

func TestCompute_NoEvidenceIsPerfectScore(t *testing.T) {
	result, ok := Compute("tok", trades(MinTrades), nil)
	require.True(t, ok)
	assert.Equal(t, 100.0, result.HealthScore)
	assert.Equal(t, RiskLow, result.RiskLevel)
	assert.Equal(t, 2, result.UniqueTraders)
	assert.Equal(t, 0.0, result.SuspiciousRatio)
}

func TestCompute_ScoreMonotonicallyNonIncreasingWithMoreEvidence(t *testing.T) {
	tr := trades(MinTrades)

	var prev = 100.0
	for n := 1; n <= 5; n++ {
		result, ok := Compute("tok", tr, selfTradeEvidence(n, 1.0))
		require.True(t, ok)
		assert.LessOrEqual(t, result.HealthScore, prev, "adding more evidence of the same type must not raise the health score")
		prev = result.HealthScore
	}
}

func TestCompute_DiminishingReturnsPerOccurrence(t *testing.T) {
	tr := trades(MinTrades)

	one, ok := Compute("tok", tr, selfTradeEvidence(1, 1.0))
	require.True(t, ok)
	two, ok := Compute("tok", tr, selfTradeEvidence(2, 1.0))
	require.True(t, ok)
	three, ok := Compute("tok", tr, selfTradeEvidence(3, 1.0))
	require.True(t, ok)

	firstDrop := one.HealthScore - two.HealthScore
	secondDrop := two.HealthScore - three.HealthScore
	assert.Greater(t, firstDrop, secondDrop, "the marginal penalty of repeated evidence must shrink as occurrences grow")
}

func TestCompute_ScoreClampedToZero(t *testing.T) {
	result, ok := Compute("tok", trades(MinTrades), selfTradeEvidence(50, 1.0))
	require.True(t, ok)
	assert.Equal(t, 0.0, result.HealthScore)
	assert.Equal(t, RiskCritical, result.RiskLevel)
}

func TestCompute_UnknownEvidenceTypeIgnored(t *testing.T) {
	tr := trades(MinTrades)
	baseline, ok := Compute("tok", tr, nil)
	require.True(t, ok)

	withUnknown, ok := Compute("tok", tr, []models.Evidence{
		{Type: models.EvidenceType("not_a_real_type"), Confidence: 1.0, Addresses: []string{"0xsuspect"}},
	})
	require.True(t, ok)
	assert.Equal(t, baseline.HealthScore, withUnknown.HealthScore, "evidence of an unrecognized type must not affect the score")
	assert.Empty(t, withUnknown.EvidenceCountByType)
}

func TestCompute_SuspiciousAddressesRankedByRiskDescending(t *testing.T) {
	tr := trades(MinTrades)
	evidence := []models.Evidence{
		{Type: models.EvidenceSelfTrade, Confidence: 1.0, Addresses: []string{"0xhigh"}},
		{Type: models.EvidenceGasAnomaly, Confidence: 1.0, Addresses: []string{"0xlow"}},
	}

	result, ok := Compute("tok", tr, evidence)
	require.True(t, ok)
	require.Len(t, result.TopSuspiciousAddresses, 2)
	assert.Equal(t, "0xhigh", result.TopSuspiciousAddresses[0].Address, "self-trade weight is higher than gas-anomaly weight")
	assert.Greater(t, result.TopSuspiciousAddresses[0].RiskScore, result.TopSuspiciousAddresses[1].RiskScore)
}

func TestCompute_SuspiciousRatioReflectsFlaggedFraction(t *testing.T) {
	tr := trades(MinTrades)
	evidence := []models.Evidence{
		{Type: models.EvidenceSelfTrade, Confidence: 1.0, Addresses: []string{"0xmaker"}},
	}

	result, ok := Compute("tok", tr, evidence)
	require.True(t, ok)
	assert.Equal(t, 2, result.UniqueTraders)
	assert.InDelta(t, 0.5, result.SuspiciousRatio, 1e-9)
}
