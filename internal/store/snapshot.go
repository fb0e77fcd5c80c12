/**
 * @description
 * Snapshot is the read-only view the detector suite and health aggregator
 * operate over. It is copied out of the ring under a read lock and never
 * mutated afterward, so detector runs are unaffected by concurrent writes.
 */

package store

import (
	"time"

	"github.com/polysleuth/forensics/internal/models"
)

// Snapshot is an immutable, ascending-(block,log-index)-ordered view of the
// trade ring, plus the alert ring, at a single point in time.
type Snapshot struct {
	Trades []models.Trade
	Alerts []models.Alert
}

// Snapshot takes a point-in-time copy of the full trade and alert rings.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	trades := s.snapshotTradesLocked()
	alerts := make([]models.Alert, 0, s.alertLen)
	for _, slot := range s.alertRing {
		if slot != nil {
			alerts = append(alerts, slot.alert)
		}
	}
	s.mu.RUnlock()

	return Snapshot{Trades: trades, Alerts: alerts}
}

// RecentWindow returns the trades from the last window duration or the
// last k trades, whichever is smaller — the incremental-scan slice
// detectors run over on each streaming tick (N=60min, K=5000 per spec).
func (sn Snapshot) RecentWindow(window time.Duration, k int) []models.Trade {
	trades := sn.Trades
	if len(trades) == 0 {
		return trades
	}

	cutoff := trades[len(trades)-1].Timestamp.Add(-window)
	lo := 0
	for lo < len(trades) && trades[lo].Timestamp.Before(cutoff) {
		lo++
	}
	byTime := trades[lo:]

	if len(byTime) <= k {
		return byTime
	}
	return trades[len(trades)-k:]
}
