package detect

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysleuth/forensics/internal/models"
)

func TestScanNewWalletInsider_FlagsMakerRoleNotOnlyTaker(t *testing.T) {
	baseline := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	trigger := baseline.Add(30 * time.Hour)

	baselineTrade := trade("0xbase", 1, baseline, "0xold", "0xother", "tok", models.SideBuy, 0.5, 10, 10)
	insiderTrade := trade("0xins", 2, trigger, "0xnew", "0xold", "tok", models.SideBuy, 0.5, 1000, 1000)

	full := []models.Trade{baselineTrade, insiderTrade}
	window := []models.Trade{insiderTrade}

	evidence := ScanNewWalletInsider(window, full)
	require.Len(t, evidence, 1, "the maker role ('0xnew') must be flagged even though the taker ('0xold') is an old wallet")
	assert.Equal(t, models.EvidenceNewWalletInsider, evidence[0].Type)
	assert.Equal(t, models.StringSet{"0xnew"}, evidence[0].Addresses)
}

func TestScanHighWinRate_CountsMakerOnlyWallet(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var full []models.Trade
	for i := 0; i < 11; i++ {
		full = append(full, trade(
			"0xtx"+string(rune('a'+i)), int64(i), base.Add(time.Duration(i)*time.Minute),
			"0xmakeronly", "0xtaker"+string(rune('a'+i)), "tok", models.SideBuy, float64(i+1), 10, 10,
		))
	}
	window := full[:10]

	evidence := ScanHighWinRate(window, full)
	require.Len(t, evidence, 1, "a wallet that only ever appears as maker must still be evaluated for win rate")
	assert.Equal(t, models.StringSet{"0xmakeronly"}, evidence[0].Addresses)
	assert.InDelta(t, 1.0, evidence[0].Details["win_rate"], 1e-9)
}

func TestScanHighWinRate_BelowThresholdNotFlagged(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var full []models.Trade
	price := 10.0
	for i := 0; i < 11; i++ {
		if i%2 == 0 {
			price++
		} else {
			price--
		}
		full = append(full, trade(
			"0xtx"+string(rune('a'+i)), int64(i), base.Add(time.Duration(i)*time.Minute),
			"0xmakeronly", "0xothertaker", "tok", models.SideBuy, price, 10, 10,
		))
	}
	window := full[:10]

	evidence := ScanHighWinRate(window, full)
	assert.Empty(t, evidence)
}

func TestScanCircularTrade_TwoPartyCycle(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := []models.Trade{
		trade("0x1", 1, now, "0xb", "0xa", "tok", models.SideBuy, 0.5, 100, 100),
		trade("0x2", 2, now.Add(time.Second), "0xa", "0xb", "tok", models.SideSell, 0.5, 100, 100),
	}

	evidence := ScanCircularTrade(window, window)
	require.Len(t, evidence, 1)
	assert.Equal(t, models.EvidenceCircularTrade, evidence[0].Type)
	assert.Equal(t, 2, evidence[0].Details["cycle_length"])
}

func TestScanCircularTrade_NoReturnLegNoFinding(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := []models.Trade{
		trade("0x1", 1, now, "0xb", "0xa", "tok", models.SideBuy, 0.5, 100, 100),
		trade("0x2", 2, now.Add(time.Second), "0xc", "0xd", "tok", models.SideSell, 0.5, 100, 100),
	}

	evidence := ScanCircularTrade(window, window)
	assert.Empty(t, evidence)
}

func TestScanSybilCluster_ThreeAddressesClusteredSizeFlagged(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := []models.Trade{
		trade("0x1", 1, now, "0xmaker", "0xa", "tok", models.SideBuy, 0.5, 100, 100),
		trade("0x2", 1, now.Add(time.Second), "0xmaker", "0xb", "tok", models.SideBuy, 0.5, 105, 105),
		trade("0x3", 1, now.Add(2*time.Second), "0xmaker", "0xc", "tok", models.SideBuy, 0.5, 95, 95),
	}

	evidence := ScanSybilCluster(window, window)
	require.Len(t, evidence, 1)
	assert.Equal(t, models.EvidenceSybilCluster, evidence[0].Type)
	assert.Equal(t, 3, evidence[0].Details["cluster_size"])
}

func TestScanSybilCluster_TooFewAddressesNotFlagged(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := []models.Trade{
		trade("0x1", 1, now, "0xmaker", "0xa", "tok", models.SideBuy, 0.5, 100, 100),
		trade("0x2", 1, now.Add(time.Second), "0xmaker", "0xb", "tok", models.SideBuy, 0.5, 105, 105),
	}

	evidence := ScanSybilCluster(window, window)
	assert.Empty(t, evidence)
}

func TestScanVolumeSpike_SpikeAboveRollingMeanFlagged(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var full []models.Trade
	for i := 0; i < 12; i++ {
		ts := base.Add(time.Duration(i) * 5 * time.Minute)
		full = append(full, trade("0xbaseline"+string(rune('a'+i)), int64(i), ts, "0xm", "0xt", "tok", models.SideBuy, 0.5, 600, 600))
	}
	spikeTs := base.Add(12 * 5 * time.Minute)
	spike := trade("0xspike", 100, spikeTs, "0xm", "0xt", "tok", models.SideBuy, 0.5, 7000, 7000)
	full = append(full, spike)
	window := []models.Trade{spike}

	evidence := ScanVolumeSpike(window, full)
	require.Len(t, evidence, 1)
	assert.Equal(t, models.EvidenceVolumeSpike, evidence[0].Type)
	ratio, ok := evidence[0].Details["ratio"].(float64)
	require.True(t, ok)
	assert.Greater(t, ratio, volumeSpikeRatioMin)
}

func TestScanVolumeSpike_BelowBaselineNotFlagged(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	window := []models.Trade{
		trade("0x1", 1, base, "0xm", "0xt", "tok", models.SideBuy, 0.5, 10, 10),
	}
	evidence := ScanVolumeSpike(window, window)
	assert.Empty(t, evidence)
}

func TestScanGasAnomaly_HighGasRelativeToMedianFlagged(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var full []models.Trade
	for i := int64(1); i <= 5; i++ {
		tr := trade("0xnorm"+string(rune('a'+i)), i, now.Add(time.Duration(i)*time.Second), "0xm", "0xt", "tok", models.SideBuy, 0.5, 10, 10)
		tr.GasPrice = "30000000000"
		full = append(full, tr)
	}

	spike := trade("0xspike", 6, now.Add(6*time.Second), "0xm", "0xt", "tok", models.SideBuy, 0.5, 10, 10)
	spike.GasPrice = "300000000000"
	full = append(full, spike)
	window := []models.Trade{spike}

	evidence := ScanGasAnomaly(window, full)
	require.Len(t, evidence, 1)
	assert.Equal(t, models.EvidenceGasAnomaly, evidence[0].Type)
}

func TestScanGasAnomaly_NormalGasNotFlagged(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var full []models.Trade
	for i := int64(1); i <= 5; i++ {
		tr := trade("0xnorm"+string(rune('a'+i)), i, now.Add(time.Duration(i)*time.Second), "0xm", "0xt", "tok", models.SideBuy, 0.5, 10, 10)
		tr.GasPrice = "30000000000"
		full = append(full, tr)
	}
	regular := trade("0xreg", 6, now.Add(6*time.Second), "0xm", "0xt", "tok", models.SideBuy, 0.5, 10, 10)
	regular.GasPrice = "31000000000"
	full = append(full, regular)
	window := []models.Trade{regular}

	evidence := ScanGasAnomaly(window, full)
	assert.Empty(t, evidence)
}
