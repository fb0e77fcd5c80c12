package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysleuth/forensics/internal/models"
)

func trade(txHash string, block int64, ts time.Time, maker, taker, tokenID string, side models.Side, price, size, volume float64) models.Trade {
	return models.Trade{
		TxHash:      txHash,
		LogIndex:    0,
		BlockNumber: block,
		Timestamp:   ts,
		Maker:       maker,
		Taker:       taker,
		TokenID:     tokenID,
		Side:        side,
		Price:       price,
		Size:        size,
		Volume:      volume,
	}
}

func TestScanSelfTrade_DirectSelfTrade(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	window := []models.Trade{
		trade("0x1", 1, now, "0xsame", "0xsame", "tok", models.SideBuy, 0.5, 100, 50),
	}

	evidence := ScanSelfTrade(window, window)
	require.Len(t, evidence, 1)
	assert.Equal(t, models.EvidenceSelfTrade, evidence[0].Type)
	assert.Equal(t, 1.0, evidence[0].Confidence)
	assert.Equal(t, "direct", evidence[0].Details["variant"])
}

func TestScanSelfTrade_CoordinatedRequiresOverlapAndSimilarity(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	window := []models.Trade{
		trade("0x1", 1, now, "0xa", "0xb", "tok", models.SideBuy, 0.5, 100, 50),
		trade("0x2", 1, now.Add(5*time.Second), "0xb", "0xa", "tok", models.SideSell, 0.5, 100, 50),
	}

	evidence := ScanSelfTrade(window, window)
	require.Len(t, evidence, 1)
	assert.Equal(t, "coordinated", evidence[0].Details["variant"])
	assert.InDelta(t, 0.9, evidence[0].Confidence, 1e-9)
}

func TestScanSelfTrade_NoOverlapNoFinding(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	window := []models.Trade{
		trade("0x1", 1, now, "0xa", "0xb", "tok", models.SideBuy, 0.5, 100, 50),
		trade("0x2", 1, now.Add(5*time.Second), "0xc", "0xd", "tok", models.SideSell, 0.5, 100, 50),
	}

	evidence := ScanSelfTrade(window, window)
	assert.Empty(t, evidence)
}

func TestScanAtomicWash_SplitFillMergeInSameTx(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tr := trade("0xtx1", 1, now, "0xa", "0xb", "tok", models.SideBuy, 0.5, 100, 50)
	tr.HasSplitInTx = true
	tr.HasMergeInTx = true
	window := []models.Trade{tr}

	evidence := ScanAtomicWash(window, window)
	require.Len(t, evidence, 1)
	assert.Equal(t, 0.98, evidence[0].Confidence)
	assert.Equal(t, "split_fill_merge", evidence[0].Details["variant"])
}

func TestScanAtomicWash_BlockBalanceVariant(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	window := []models.Trade{
		trade("0x1", 10, now, "0xflip", "0xa", "tok", models.SideBuy, 0.5, 100, 100),
		trade("0x2", 10, now.Add(time.Second), "0xflip", "0xb", "tok", models.SideSell, 0.5, 100, 100),
	}

	evidence := ScanAtomicWash(window, window)
	require.Len(t, evidence, 1)
	assert.Equal(t, "block_balance", evidence[0].Details["variant"])
	assert.InDelta(t, 0.98, evidence[0].Confidence, 1e-9)
	assert.Equal(t, []string{"0xflip"}, []string(evidence[0].Addresses))
}

func TestScanAtomicWash_ImbalancedBuySellNotFlagged(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	window := []models.Trade{
		trade("0x1", 10, now, "0xflip", "0xa", "tok", models.SideBuy, 0.5, 100, 100),
		trade("0x2", 10, now.Add(time.Second), "0xflip", "0xb", "tok", models.SideSell, 0.5, 10, 10),
	}

	evidence := ScanAtomicWash(window, window)
	assert.Empty(t, evidence)
}

func TestScanAtomicWash_GroupsByMakerNotTaker(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	window := []models.Trade{
		trade("0x1", 10, now, "0xa", "0xshared", "tok", models.SideBuy, 0.5, 100, 100),
		trade("0x2", 10, now.Add(time.Second), "0xb", "0xshared", "tok", models.SideSell, 0.5, 100, 100),
	}

	evidence := ScanAtomicWash(window, window)
	assert.Empty(t, evidence, "trades sharing only a taker must not be grouped as one block-balance candidate")
}

func TestDetectors_AreDeterministic(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	window := []models.Trade{
		trade("0x1", 1, now, "0xa", "0xb", "tok", models.SideBuy, 0.5, 100, 50),
		trade("0x2", 1, now.Add(5*time.Second), "0xb", "0xa", "tok", models.SideSell, 0.5, 100, 50),
		trade("0x3", 2, now.Add(10*time.Second), "0xc", "0xc", "tok", models.SideBuy, 1, 10, 10),
	}

	for _, spec := range All {
		first := spec.Scan(window, window)
		second := spec.Scan(window, window)
		assert.Equal(t, len(first), len(second), "detector %s must be deterministic across repeated runs", spec.Kind)
		for i := range first {
			assert.Equal(t, first[i].Confidence, second[i].Confidence, "detector %s confidence must match across runs", spec.Kind)
		}
	}
}
