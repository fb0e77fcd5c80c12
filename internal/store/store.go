/**
 * @description
 * The Evidence Store: bounded in-memory ring buffers for trades and alerts
 * with secondary indices, plus a durable relational spill. Owns the Trade
 * and Evidence/Alert collections exclusively, per the data model's
 * ownership rule.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/polysleuth/forensics/internal/logger"
	"github.com/polysleuth/forensics/internal/models"
)

// Notifier is the narrow contract the store uses to push change events,
// implemented by internal/alertbus.Bus. Kept as an interface so the store
// never has to know about subscriber management.
type Notifier interface {
	PublishTrade(t models.Trade)
	PublishAlert(a models.Alert)
}

type tradeSlot struct {
	seq   uint64
	trade models.Trade
}

type alertSlot struct {
	seq   uint64
	alert models.Alert
}

// Store is the concurrency-safe Evidence Store.
type Store struct {
	mu sync.RWMutex

	tradeCap  int
	tradeRing []*tradeSlot
	tradeHead int
	tradeLen  int
	tradeSeq  uint64

	dedupe    map[string]uint64 // "txhash:logindex" -> seq
	byTxHash  map[string][]uint64
	byAddress map[string][]uint64
	byToken   map[string][]uint64

	alertCap  int
	alertRing []*alertSlot
	alertHead int
	alertLen  int
	alertSeq  uint64

	totalTrades    int64
	totalVolume    float64
	washTradeCount int64
	totalAlerts    int64
	isStreaming    bool

	db       *gorm.DB
	notifier Notifier
	log      *logger.Entry

	spillTradeCh chan models.Trade
	spillAlertCh chan models.Alert
	stop         chan struct{}
}

// New constructs a Store with the given ring capacities. db may be nil in
// tests that don't exercise the durable spill.
func New(tradeCap, alertCap int, db *gorm.DB, notifier Notifier) *Store {
	s := &Store{
		tradeCap:  tradeCap,
		tradeRing: make([]*tradeSlot, tradeCap),
		dedupe:    make(map[string]uint64, tradeCap),
		byTxHash:  make(map[string][]uint64),
		byAddress: make(map[string][]uint64),
		byToken:   make(map[string][]uint64),
		alertCap:  alertCap,
		alertRing: make([]*alertSlot, alertCap),
		db:        db,
		notifier:  notifier,
		log:       logger.Component("store"),

		spillTradeCh: make(chan models.Trade, tradeCap),
		spillAlertCh: make(chan models.Alert, alertCap),
		stop:         make(chan struct{}),
	}
	go s.spillLoop()
	return s
}

// Close stops the durable spill loop.
func (s *Store) Close() {
	close(s.stop)
}

func dedupeKey(txHash string, logIndex uint) string {
	return txHash + ":" + itoa(logIndex)
}

func itoa(v uint) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// AddTrade appends a trade, updating indices and evicting the oldest entry
// if the ring is full. Duplicate (tx-hash, log-index) pairs are a no-op
// that returns the existing record. When notify is true a new_trade event
// is enqueued on the Alert Bus.
func (s *Store) AddTrade(t models.Trade, notify bool) models.Trade {
	s.mu.Lock()

	key := dedupeKey(t.TxHash, t.LogIndex)
	if existingSeq, ok := s.dedupe[key]; ok {
		existing := s.tradeBySeq(existingSeq)
		s.mu.Unlock()
		if existing != nil {
			return *existing
		}
		return t
	}

	seq := s.tradeSeq
	s.tradeSeq++

	if s.tradeLen == s.tradeCap {
		s.evictOldestTradeLocked()
	}

	slot := &tradeSlot{seq: seq, trade: t}
	s.tradeRing[s.tradeHead] = slot
	s.tradeHead = (s.tradeHead + 1) % s.tradeCap
	if s.tradeLen < s.tradeCap {
		s.tradeLen++
	}

	s.dedupe[key] = seq
	s.byTxHash[t.TxHash] = append(s.byTxHash[t.TxHash], seq)
	s.byAddress[t.Maker] = append(s.byAddress[t.Maker], seq)
	s.byAddress[t.Taker] = append(s.byAddress[t.Taker], seq)
	s.byToken[t.TokenID] = append(s.byToken[t.TokenID], seq)

	s.totalTrades++
	s.totalVolume += t.Volume
	if t.IsWash {
		s.washTradeCount++
	}

	s.mu.Unlock()

	select {
	case s.spillTradeCh <- t:
	default:
		s.log.Warn("spill queue full, trade will be picked up by ring re-scan only")
	}

	if notify && s.notifier != nil {
		s.notifier.PublishTrade(t)
	}

	return t
}

// evictOldestTradeLocked removes the ring's oldest trade and its index
// entries. Caller must hold s.mu.
func (s *Store) evictOldestTradeLocked() {
	oldest := s.tradeRing[s.tradeHead]
	if oldest == nil {
		return
	}

	delete(s.dedupe, dedupeKey(oldest.trade.TxHash, oldest.trade.LogIndex))
	s.byTxHash[oldest.trade.TxHash] = removeSeq(s.byTxHash[oldest.trade.TxHash], oldest.seq)
	s.byAddress[oldest.trade.Maker] = removeSeq(s.byAddress[oldest.trade.Maker], oldest.seq)
	s.byAddress[oldest.trade.Taker] = removeSeq(s.byAddress[oldest.trade.Taker], oldest.seq)
	s.byToken[oldest.trade.TokenID] = removeSeq(s.byToken[oldest.trade.TokenID], oldest.seq)
}

func removeSeq(seqs []uint64, target uint64) []uint64 {
	for i, v := range seqs {
		if v == target {
			return append(seqs[:i], seqs[i+1:]...)
		}
	}
	return seqs
}

func (s *Store) tradeBySeq(seq uint64) *models.Trade {
	for _, slot := range s.tradeRing {
		if slot != nil && slot.seq == seq {
			t := slot.trade
			return &t
		}
	}
	return nil
}

// MarkWash locates the trade by (tx_hash, log_index) in the ring and marks
// it as a detected wash trade in place, incrementing the wash-trade counter
// the first time a given trade is marked. Also updates the durable row when
// a database is configured. Reports false if the trade isn't in the ring.
func (s *Store) MarkWash(txHash string, logIndex uint, washType string, confidence float64) (models.Trade, bool) {
	s.mu.Lock()
	var found *models.Trade
	for _, slot := range s.tradeRing {
		if slot != nil && slot.trade.TxHash == txHash && slot.trade.LogIndex == logIndex {
			if !slot.trade.IsWash {
				slot.trade.IsWash = true
				slot.trade.WashType = washType
				slot.trade.WashConfidence = confidence
				s.washTradeCount++
			}
			t := slot.trade
			found = &t
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return models.Trade{}, false
	}

	if s.db != nil {
		if err := s.db.Model(&models.Trade{}).
			Where("tx_hash = ? AND log_index = ?", txHash, logIndex).
			Updates(map[string]interface{}{
				"is_wash":         true,
				"wash_type":       washType,
				"wash_confidence": confidence,
			}).Error; err != nil {
			s.log.With(logger.Fields{"error": err, "tx_hash": txHash, "log_index": logIndex}).Error("wash-trade persist failed")
		}
	}

	return *found, true
}

// AddEvidence persists an evidence item to the durable store. Evidence is
// never mutated after creation and is not ring-bounded in memory the way
// trades/alerts are; detectors re-derive it from snapshots on demand.
func (s *Store) AddEvidence(e models.Evidence) models.Evidence {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if s.db != nil {
		if err := s.db.Create(&e).Error; err != nil {
			s.log.With(logger.Fields{"error": err}).Error("evidence persist failed")
		}
	}
	return e
}

// AddAlert appends an alert, evicting the oldest if the ring is full, and
// optionally publishes a new_alert event.
func (s *Store) AddAlert(a models.Alert, notify bool) models.Alert {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	s.mu.Lock()
	seq := s.alertSeq
	s.alertSeq++

	if s.alertLen == s.alertCap {
		s.alertRing[s.alertHead] = nil
	}
	s.alertRing[s.alertHead] = &alertSlot{seq: seq, alert: a}
	s.alertHead = (s.alertHead + 1) % s.alertCap
	if s.alertLen < s.alertCap {
		s.alertLen++
	}
	s.totalAlerts++
	s.mu.Unlock()

	select {
	case s.spillAlertCh <- a:
	default:
		s.log.Warn("alert spill queue full")
	}

	if notify && s.notifier != nil {
		s.notifier.PublishAlert(a)
	}

	return a
}

// AckAlert locates the alert by ID in the ring and flips its Ack bit in
// place, also updating the durable row when a database is configured.
// Reports false if no alert with that ID is currently in the ring.
func (s *Store) AckAlert(id uuid.UUID) (models.Alert, bool) {
	s.mu.Lock()
	var found *models.Alert
	for _, slot := range s.alertRing {
		if slot != nil && slot.alert.ID == id {
			slot.alert.Ack = true
			a := slot.alert
			found = &a
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return models.Alert{}, false
	}

	if s.db != nil {
		if err := s.db.Model(&models.Alert{}).Where("id = ?", id).Update("ack", true).Error; err != nil {
			s.log.With(logger.Fields{"error": err, "alert_id": id}).Error("alert ack persist failed")
		}
	}

	return *found, true
}

// SetStreaming records whether the Stream Controller is currently running,
// surfaced via Stats().
func (s *Store) SetStreaming(v bool) {
	s.mu.Lock()
	s.isStreaming = v
	s.mu.Unlock()
}

// Stats summarizes the store's counters.
type Stats struct {
	TotalTrades    int64   `json:"total_trades"`
	TotalVolume    float64 `json:"total_volume"`
	WashTradeCount int64   `json:"wash_trade_count"`
	TotalAlerts    int64   `json:"total_alerts"`
	IsStreaming    bool    `json:"is_streaming"`
}

// Stats returns the current counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		TotalTrades:    s.totalTrades,
		TotalVolume:    s.totalVolume,
		WashTradeCount: s.washTradeCount,
		TotalAlerts:    s.totalAlerts,
		IsStreaming:    s.isStreaming,
	}
}

// Filter narrows a QueryTrades call.
type Filter struct {
	TokenID string
	Address string
	IsWash  *bool
	Side    models.Side
	Since   *time.Time
	Until   *time.Time
	Limit   int
	Offset  int
}

// QueryTrades serves from the in-memory ring when Since lies within the
// ring's window, falling through to the durable store otherwise.
func (s *Store) QueryTrades(f Filter) []models.Trade {
	if f.Since == nil || s.sinceWithinRing(*f.Since) {
		return s.queryRing(f)
	}
	return s.queryDurable(f)
}

func (s *Store) sinceWithinRing(since time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tradeLen == 0 {
		return true
	}
	oldestIdx := s.tradeHead
	if s.tradeLen < s.tradeCap {
		oldestIdx = 0
	}
	oldest := s.tradeRing[oldestIdx]
	if oldest == nil {
		return true
	}
	return !since.Before(oldest.trade.Timestamp)
}

func (s *Store) queryRing(f Filter) []models.Trade {
	s.mu.RLock()
	trades := s.snapshotTradesLocked()
	s.mu.RUnlock()

	filtered := applyFilter(trades, f)
	return paginate(filtered, f)
}

func (s *Store) queryDurable(f Filter) []models.Trade {
	if s.db == nil {
		return nil
	}
	q := s.db.Model(&models.Trade{})
	if f.TokenID != "" {
		q = q.Where("token_id = ?", f.TokenID)
	}
	if f.Address != "" {
		q = q.Where("maker = ? OR taker = ?", f.Address, f.Address)
	}
	if f.IsWash != nil {
		q = q.Where("is_wash = ?", *f.IsWash)
	}
	if f.Side != "" {
		q = q.Where("side = ?", f.Side)
	}
	if f.Since != nil {
		q = q.Where("timestamp >= ?", *f.Since)
	}
	if f.Until != nil {
		q = q.Where("timestamp <= ?", *f.Until)
	}
	limit := f.Limit
	if limit <= 0 || limit > 5000 {
		limit = 5000
	}
	var out []models.Trade
	q.Order("block_number ASC, log_index ASC").Limit(limit).Offset(f.Offset).Find(&out)
	return out
}

func applyFilter(trades []models.Trade, f Filter) []models.Trade {
	out := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		if f.TokenID != "" && t.TokenID != f.TokenID {
			continue
		}
		if f.Address != "" && t.Maker != f.Address && t.Taker != f.Address {
			continue
		}
		if f.IsWash != nil && t.IsWash != *f.IsWash {
			continue
		}
		if f.Side != "" && t.Side != f.Side {
			continue
		}
		if f.Since != nil && t.Timestamp.Before(*f.Since) {
			continue
		}
		if f.Until != nil && t.Timestamp.After(*f.Until) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func paginate(trades []models.Trade, f Filter) []models.Trade {
	limit := f.Limit
	if limit <= 0 || limit > 5000 {
		limit = 5000
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(trades) {
		return []models.Trade{}
	}
	end := offset + limit
	if end > len(trades) {
		end = len(trades)
	}
	return trades[offset:end]
}

// snapshotTradesLocked returns trades in ascending (block, log-index) order.
// Caller must hold at least a read lock.
func (s *Store) snapshotTradesLocked() []models.Trade {
	out := make([]models.Trade, 0, s.tradeLen)
	for _, slot := range s.tradeRing {
		if slot != nil {
			out = append(out, slot.trade)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		if out[i].LogIndex != out[j].LogIndex {
			return out[i].LogIndex < out[j].LogIndex
		}
		return out[i].TxHash < out[j].TxHash
	})
	return out
}
