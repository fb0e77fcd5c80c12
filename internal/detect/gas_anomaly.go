/**
 * @description
 * Gas Anomaly (front-run): flags trades whose gas price is far above the
 * median gas price of trades in the preceding 256 blocks.
 */

package detect

import (
	"math"
	"math/big"
	"sort"

	"github.com/polysleuth/forensics/internal/models"
)

const (
	gasAnomalyLookbackBlocks = 256
	gasAnomalyRatioThreshold = 2.0
)

// ScanGasAnomaly implements detector 4.4.3.
func ScanGasAnomaly(window, full []models.Trade) []models.Evidence {
	var out []models.Evidence

	for _, t := range window {
		gasPrice := parseGasPrice(t.GasPrice)
		if gasPrice <= 0 {
			continue
		}

		median := medianGasPriceInWindow(full, t.BlockNumber-gasAnomalyLookbackBlocks, t.BlockNumber-1)
		if median <= 0 {
			continue
		}

		ratio := gasPrice / median
		if ratio <= gasAnomalyRatioThreshold {
			continue
		}

		confidence := 0.4 + 0.1*math.Log2(ratio)
		if confidence > 0.8 {
			confidence = 0.8
		}

		out = append(out, newEvidence(
			models.EvidenceGasAnomaly,
			confidence,
			t.Timestamp,
			[]string{t.Taker, t.Maker},
			[]string{t.TxHash},
			t.TokenID,
			t.Volume,
			models.JSONMap{"gas_price": gasPrice, "block_median_gas_price": median, "ratio": ratio},
		))
	}

	return out
}

func parseGasPrice(s string) float64 {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0
	}
	f := new(big.Float).SetInt(v)
	out, _ := f.Float64()
	return out
}

func medianGasPriceInWindow(full []models.Trade, fromBlock, toBlock int64) float64 {
	var values []float64
	for _, t := range full {
		if t.BlockNumber < fromBlock || t.BlockNumber > toBlock {
			continue
		}
		gp := parseGasPrice(t.GasPrice)
		if gp > 0 {
			values = append(values, gp)
		}
	}
	if len(values) == 0 {
		return 0
	}

	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}
