/**
 * @description
 * High Win-Rate: flags wallets whose trades disproportionately land on the
 * favorable side of the market's next price move.
 *
 * Win-rate definition (resolves the ambiguity the source left open):
 * a trade is a "win" iff the next trade in the same market, within a 24h
 * window, moves price favorably for the trade's side (BUY favorable =
 * next price higher; SELL favorable = next price lower). A trade with no
 * qualifying next trade is excluded from both numerator and denominator.
 */

package detect

import (
	"sort"
	"time"

	"github.com/polysleuth/forensics/internal/models"
)

const (
	highWinRateWindow     = 24 * time.Hour
	highWinRateMinTrades  = 10
	highWinRateThreshold  = 0.90
)

// ScanHighWinRate implements detector 4.4.2.
func ScanHighWinRate(window, full []models.Trade) []models.Evidence {
	byMarket := groupByToken(full)
	for k := range byMarket {
		sort.Slice(byMarket[k], func(i, j int) bool { return precedes(byMarket[k][i], byMarket[k][j]) })
	}

	tradersInWindow := make(map[string]struct{})
	for _, t := range window {
		tradersInWindow[t.Taker] = struct{}{}
		tradersInWindow[t.Maker] = struct{}{}
	}

	var items []evidenceTrigger
	for trader := range tradersInWindow {
		wins, judged, walletTrades := winRateForTrader(trader, full, byMarket)
		if judged < highWinRateMinTrades {
			continue
		}
		winRate := float64(wins) / float64(judged)
		if winRate <= highWinRateThreshold {
			continue
		}

		confidence := 0.5 + 0.5*(winRate-0.9)/0.1
		if confidence > 1.0 {
			confidence = 1.0
		}
		if confidence < 0.5 {
			confidence = 0.5
		}

		var txs []string
		var latest time.Time
		var volume float64
		var trigger models.Trade
		haveTrigger := false
		for _, t := range walletTrades {
			if !inWindow(t, window) {
				continue
			}
			txs = append(txs, t.TxHash)
			volume += t.Volume
			if t.Timestamp.After(latest) {
				latest = t.Timestamp
			}
			if !haveTrigger {
				trigger = t
				haveTrigger = true
			}
		}
		if len(txs) == 0 {
			continue
		}

		items = append(items, evidenceTrigger{
			evidence: newEvidence(
				models.EvidenceHighWinRate,
				confidence,
				latest,
				[]string{trader},
				txs,
				"",
				volume,
				models.JSONMap{"win_rate": winRate, "judged_trades": judged, "wins": wins},
			),
			trigger: trigger,
		})
	}
	return sortEvidenceByTrigger(items)
}

func inWindow(t models.Trade, window []models.Trade) bool {
	for _, w := range window {
		if w.TxHash == t.TxHash && w.LogIndex == t.LogIndex {
			return true
		}
	}
	return false
}

// winRateForTrader returns wins/judged trades and the trader's own trades,
// counting a trade toward the wallet whether it appears as maker or taker.
func winRateForTrader(trader string, full []models.Trade, byMarket map[string][]models.Trade) (wins, judged int, own []models.Trade) {
	for _, t := range full {
		if t.Taker != trader && t.Maker != trader {
			continue
		}
		own = append(own, t)

		marketTrades := byMarket[t.TokenID]
		next, ok := nextTradeWithin(marketTrades, t, highWinRateWindow)
		if !ok {
			continue
		}

		judged++
		favorable := (t.Side == models.SideBuy && next.Price > t.Price) ||
			(t.Side == models.SideSell && next.Price < t.Price)
		if favorable {
			wins++
		}
	}
	return wins, judged, own
}

func nextTradeWithin(marketTrades []models.Trade, t models.Trade, window time.Duration) (models.Trade, bool) {
	for _, candidate := range marketTrades {
		if !precedes(t, candidate) {
			continue
		}
		if candidate.Timestamp.Sub(t.Timestamp) > window {
			break
		}
		return candidate, true
	}
	return models.Trade{}, false
}
