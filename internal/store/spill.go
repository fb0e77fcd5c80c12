/**
 * @description
 * Durable spill: every 10s, batches newly added trades and alerts from
 * their spill channels and upserts them into Postgres, ignoring duplicates
 * on (tx_hash, log_index) / (id). Failures are logged and the batch is
 * retried on the next tick; the ring itself is never affected by spill
 * failures.
 *
 * @dependencies
 * - gorm.io/gorm
 * - github.com/jackc/pgconn: retryable-error classification
 */

package store

import (
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/polysleuth/forensics/internal/logger"
	"github.com/polysleuth/forensics/internal/models"
)

const spillInterval = 10 * time.Second

func (s *Store) spillLoop() {
	ticker := time.NewTicker(spillInterval)
	defer ticker.Stop()

	var pendingTrades []models.Trade
	var pendingAlerts []models.Alert

	for {
		select {
		case <-s.stop:
			return
		case t := <-s.spillTradeCh:
			pendingTrades = append(pendingTrades, t)
		case a := <-s.spillAlertCh:
			pendingAlerts = append(pendingAlerts, a)
		case <-ticker.C:
			pendingTrades = drainTrades(s.spillTradeCh, pendingTrades)
			pendingAlerts = drainAlerts(s.spillAlertCh, pendingAlerts)

			if s.db == nil {
				pendingTrades = nil
				pendingAlerts = nil
				continue
			}

			if len(pendingTrades) > 0 {
				if err := s.flushTrades(pendingTrades); err != nil {
					s.log.With(logger.Fields{"error": err, "count": len(pendingTrades), "retryable": isRetryablePgError(err)}).Error("trade spill failed, retrying next tick")
				} else {
					pendingTrades = nil
				}
			}
			if len(pendingAlerts) > 0 {
				if err := s.flushAlerts(pendingAlerts); err != nil {
					s.log.With(logger.Fields{"error": err, "count": len(pendingAlerts)}).Error("alert spill failed, retrying next tick")
				} else {
					pendingAlerts = nil
				}
			}
		}
	}
}

func drainTrades(ch chan models.Trade, acc []models.Trade) []models.Trade {
	for {
		select {
		case t := <-ch:
			acc = append(acc, t)
		default:
			return acc
		}
	}
}

func drainAlerts(ch chan models.Alert, acc []models.Alert) []models.Alert {
	for {
		select {
		case a := <-ch:
			acc = append(acc, a)
		default:
			return acc
		}
	}
}

func (s *Store) flushTrades(trades []models.Trade) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tx_hash"}, {Name: "log_index"}},
			DoNothing: true,
		}).Create(&trades).Error
	})
}

func (s *Store) flushAlerts(alerts []models.Alert) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&alerts).Error
	})
}

// isRetryablePgError matches the serialization/deadlock failure codes the
// spill loop should treat as transient rather than logging as data errors.
func isRetryablePgError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40P01" || pgErr.Code == "40001"
	}
	return false
}
