/**
 * @description
 * Volume Spike: bins trades into 5-minute buckets per market and compares
 * each bucket against a trailing 1-hour rolling mean sampled at a 1-minute
 * stride.
 */

package detect

import (
	"math"
	"time"

	"github.com/polysleuth/forensics/internal/models"
)

const (
	volumeSpikeBucket        = 5 * time.Minute
	volumeSpikeRollingWindow = time.Hour
	volumeSpikeStride        = time.Minute
	volumeSpikeRatioMin      = 10.0
	volumeSpikeMinBaseline   = 500.0
)

// ScanVolumeSpike implements detector 4.4.7.
func ScanVolumeSpike(window, full []models.Trade) []models.Evidence {
	byMarket := groupByToken(full)
	windowTxSet := make(map[string]struct{}, len(window))
	for _, t := range window {
		windowTxSet[t.TxHash] = struct{}{}
	}

	var items []evidenceTrigger
	for tokenID, trades := range byMarket {
		items = append(items, scanVolumeSpikeForMarket(tokenID, trades, windowTxSet)...)
	}
	return sortEvidenceByTrigger(items)
}

type volBucket struct {
	start   time.Time
	volume  float64
	txs     []string
	trigger models.Trade
}

func scanVolumeSpikeForMarket(tokenID string, trades []models.Trade, windowTxSet map[string]struct{}) []evidenceTrigger {
	if len(trades) == 0 {
		return nil
	}

	buckets := bucketize(trades, volumeSpikeBucket)
	if len(buckets) == 0 {
		return nil
	}

	var out []evidenceTrigger
	for i, b := range buckets {
		inWindow := false
		for _, tx := range b.txs {
			if _, ok := windowTxSet[tx]; ok {
				inWindow = true
				break
			}
		}
		if !inWindow {
			continue
		}

		mean := rollingMeanBefore(buckets, i, volumeSpikeRollingWindow, volumeSpikeStride)
		if mean < volumeSpikeMinBaseline {
			continue
		}

		ratio := b.volume / mean
		if ratio <= volumeSpikeRatioMin {
			continue
		}

		confidence := 0.3 + 0.05*math.Log10(ratio)
		if confidence > 0.7 {
			confidence = 0.7
		}

		out = append(out, evidenceTrigger{
			evidence: newEvidence(
				models.EvidenceVolumeSpike,
				confidence,
				b.start.Add(volumeSpikeBucket),
				nil,
				b.txs,
				tokenID,
				b.volume,
				models.JSONMap{"bucket_volume": b.volume, "rolling_mean": mean, "ratio": ratio},
			),
			trigger: b.trigger,
		})
	}
	return out
}

// bucketize groups trades into fixed-width, non-overlapping buckets aligned
// to the Unix epoch, sorted ascending by bucket start.
func bucketize(trades []models.Trade, width time.Duration) []volBucket {
	index := make(map[int64]*volBucket)
	var order []int64
	for _, t := range trades {
		key := t.Timestamp.Unix() / int64(width.Seconds())
		b, ok := index[key]
		if !ok {
			b = &volBucket{start: time.Unix(key*int64(width.Seconds()), 0).UTC(), trigger: t}
			index[key] = b
			order = append(order, key)
		}
		b.volume += t.Volume
		b.txs = append(b.txs, t.TxHash)
	}

	for i := 0; i < len(order); i++ {
		for j := i + 1; j < len(order); j++ {
			if order[j] < order[i] {
				order[i], order[j] = order[j], order[i]
			}
		}
	}

	out := make([]volBucket, 0, len(order))
	for _, k := range order {
		out = append(out, *index[k])
	}
	return out
}

// rollingMeanBefore approximates the 1-hour, 1-minute-stride rolling mean of
// bucket volume ending just before buckets[idx], sampling the bucket that
// covers each stride point.
func rollingMeanBefore(buckets []volBucket, idx int, window, stride time.Duration) float64 {
	end := buckets[idx].start
	start := end.Add(-window)

	var sum float64
	var samples int
	for t := start; t.Before(end); t = t.Add(stride) {
		vol, ok := volumeCoveringBucket(buckets, t, idx)
		if !ok {
			continue
		}
		sum += vol
		samples++
	}
	if samples == 0 {
		return 0
	}
	return sum / float64(samples)
}

func volumeCoveringBucket(buckets []volBucket, t time.Time, before int) (float64, bool) {
	for i := 0; i < before; i++ {
		b := buckets[i]
		if !t.Before(b.start) && t.Before(b.start.Add(volumeSpikeBucket)) {
			return b.volume, true
		}
	}
	return 0, false
}
