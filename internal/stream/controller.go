/**
 * @description
 * Stream Controller: the poll-loop lifecycle that drives the forensic
 * pipeline end to end — fetch confirmed logs, decode, resolve markets,
 * commit trades, run incremental detectors, advance sync state. Owns no
 * data of its own; every mutation goes through Store, Resolver, or the
 * durable SyncState row.
 *
 * @dependencies
 * - gorm.io/gorm
 */

package stream

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/polysleuth/forensics/internal/alertbus"
	"github.com/polysleuth/forensics/internal/chain"
	"github.com/polysleuth/forensics/internal/decode"
	"github.com/polysleuth/forensics/internal/detect"
	"github.com/polysleuth/forensics/internal/logger"
	"github.com/polysleuth/forensics/internal/market"
	"github.com/polysleuth/forensics/internal/models"
	"github.com/polysleuth/forensics/internal/store"
)

// alertConfidenceThreshold is the minimum detector confidence that gets
// promoted from evidence to a subscriber-visible alert.
const alertConfidenceThreshold = 0.5

// detectorWindow/detectorMaxTrades bound the incremental re-scan slice per
// tick, per the N=60min/K=5000 rule.
const (
	detectorWindow    = 60 * time.Minute
	detectorMaxTrades = 5000
)

// cancelGraceDeadline bounds how long Stop() waits for the in-flight tick
// to reach a natural boundary before returning anyway.
const cancelGraceDeadline = 2 * time.Second

// Controller drives the {Idle -> Streaming -> Stopping -> Idle} lifecycle.
type Controller struct {
	mu    sync.Mutex
	state State

	client            *chain.Client
	resolver          *market.Resolver
	store             *store.Store
	bus               *alertbus.Bus
	db                *gorm.DB
	exchangeAddresses []common.Address
	confirmations     int64
	log               *logger.Entry

	cancel chan struct{}
	done   chan struct{}
}

// New constructs an idle Controller.
func New(client *chain.Client, resolver *market.Resolver, st *store.Store, bus *alertbus.Bus, db *gorm.DB, exchangeAddresses []common.Address, confirmations int64) *Controller {
	return &Controller{
		state:             StateIdle,
		client:            client,
		resolver:          resolver,
		store:             st,
		bus:               bus,
		db:                db,
		exchangeAddresses: exchangeAddresses,
		confirmations:     confirmations,
		log:               logger.Component("stream"),
	}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins the poll loop. It is idempotent: calling Start while already
// streaming is a no-op.
func (c *Controller) Start(pollInterval time.Duration, blocksPerPoll int64) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return
	}
	c.state = StateStreaming
	c.cancel = make(chan struct{})
	c.done = make(chan struct{})
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	c.store.SetStreaming(true)
	go c.loop(pollInterval, blocksPerPoll, cancel, done)
}

// Stop signals the poll loop to stop cooperatively and waits up to
// cancelGraceDeadline for it to reach a natural boundary.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != StateStreaming {
		c.mu.Unlock()
		return
	}
	c.state = StateStopping
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	close(cancel)

	select {
	case <-done:
	case <-time.After(cancelGraceDeadline):
		c.log.Warn("stop grace period elapsed before tick reached a boundary")
	}

	c.mu.Lock()
	c.state = StateIdle
	c.mu.Unlock()
	c.store.SetStreaming(false)
}

func (c *Controller) loop(pollInterval time.Duration, blocksPerPoll int64, cancel, done chan struct{}) {
	defer close(done)

	ctx := context.Background()
	lastBlock := c.loadSyncState(ctx)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cancel:
			return
		case <-ticker.C:
			select {
			case <-cancel:
				return
			default:
			}
			if err := c.tick(ctx, blocksPerPoll, &lastBlock, cancel); err != nil {
				c.log.With(logger.Fields{"error": err}).Error("tick failed")
			}
		}
	}
}

// Backfill runs a single one-shot tick covering the last `blocks`
// confirmed blocks. When the persisted SyncState cursor lies before that
// window, the range starts right after the cursor instead, so the gap is
// filled too. On success SyncState is set to the confirmed head. It is
// used by the /system/fetch endpoint and the standalone backfill CLI.
func (c *Controller) Backfill(ctx context.Context, blocks int64) error {
	head, err := c.client.GetBlockNumber(ctx)
	if err != nil {
		return err
	}
	confirmedHead := head - c.confirmations

	start := c.loadSyncState(ctx)
	from := confirmedHead - blocks + 1
	if from > start {
		// Fill the gap immediately preceding the requested window too, so
		// repeated backfills don't leave holes.
		from = start + 1
	}
	if from < 0 {
		from = 0
	}

	lastBlock := from - 1
	never := make(chan struct{})
	return c.tick(ctx, confirmedHead-lastBlock, &lastBlock, never)
}

func (c *Controller) tick(ctx context.Context, blocksPerPoll int64, lastBlock *int64, cancel chan struct{}) error {
	head, err := c.client.GetBlockNumber(ctx)
	if err != nil {
		return err
	}

	confirmedHead := head - c.confirmations
	if confirmedHead <= *lastBlock {
		return nil
	}

	to := *lastBlock + blocksPerPoll
	if to > confirmedHead {
		to = confirmedHead
	}
	from := *lastBlock + 1

	logs, err := c.client.GetLogs(ctx, from, to, c.exchangeAddresses, decode.Topics0())
	if err != nil {
		return err
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})

	if isCancelled(cancel) {
		return nil
	}

	splitTxs, mergeTxs := classifySplitMergeTxs(logs)

	for _, lg := range logs {
		if len(lg.Topics) == 0 || lg.Topics[0] != decode.OrderFilledTopic0 {
			continue
		}
		c.processFillLog(ctx, lg, splitTxs, mergeTxs)
	}

	if isCancelled(cancel) {
		return nil
	}

	c.runDetectors(ctx)

	*lastBlock = to
	return c.saveSyncState(ctx, *lastBlock)
}

func groupTradesByTx(trades []models.Trade) map[string][]models.Trade {
	out := make(map[string][]models.Trade, len(trades))
	for _, t := range trades {
		out[t.TxHash] = append(out[t.TxHash], t)
	}
	return out
}

func classifySplitMergeTxs(logs []chain.RawLog) (split, merge map[string]bool) {
	split = make(map[string]bool)
	merge = make(map[string]bool)
	for _, lg := range logs {
		if len(lg.Topics) == 0 {
			continue
		}
		switch lg.Topics[0] {
		case decode.PositionSplitTopic0:
			split[lg.TxHash.Hex()] = true
		case decode.PositionsMergeTopic0:
			merge[lg.TxHash.Hex()] = true
		}
	}
	return split, merge
}

func (c *Controller) processFillLog(ctx context.Context, lg chain.RawLog, splitTxs, mergeTxs map[string]bool) {
	fill, err := decode.DecodeOrderFilled(lg)
	if err != nil {
		c.recordMalformed(lg, err)
		return
	}

	ts, err := c.client.GetBlockTimestamp(ctx, int64(lg.BlockNumber))
	if err != nil {
		c.log.With(logger.Fields{"error": err, "block": lg.BlockNumber}).Warn("block timestamp lookup failed")
		return
	}

	gasPrice, err := c.client.GetTransactionGasPrice(ctx, lg.TxHash)
	if err != nil {
		c.log.With(logger.Fields{"error": err, "tx": lg.TxHash.Hex()}).Warn("gas price lookup failed")
	}

	trade, err := decode.DeriveTrade(fill, lg, lg.Address, ts, gasPrice)
	if err != nil {
		c.recordMalformed(lg, err)
		return
	}

	trade.HasSplitInTx = splitTxs[trade.TxHash]
	trade.HasMergeInTx = mergeTxs[trade.TxHash]

	if _, ok := c.resolver.Resolve(ctx, trade.TokenID); !ok {
		c.log.With(logger.Fields{"token_id": trade.TokenID}).Debug("market not yet resolved")
	}

	c.store.AddTrade(*trade, true)
}

func (c *Controller) recordMalformed(lg chain.RawLog, cause error) {
	e := models.Evidence{
		ID:           uuid.New(),
		Type:         models.EvidenceMalformedEvent,
		Confidence:   1.0,
		Timestamp:    time.Now().UTC(),
		Transactions: models.StringSet{lg.TxHash.Hex()},
		Details:      models.JSONMap{"error": cause.Error(), "log_index": lg.Index},
	}
	c.store.AddEvidence(e)
}

// runDetectors re-scans the incremental window with every registered
// detector, persisting evidence and promoting high-confidence findings to
// alerts.
func (c *Controller) runDetectors(ctx context.Context) {
	snapshot := c.store.Snapshot()
	window := snapshot.RecentWindow(detectorWindow, detectorMaxTrades)
	tradesByTx := groupTradesByTx(snapshot.Trades)

	for _, spec := range detect.All {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		evidence := spec.Scan(window, snapshot.Trades)

		for _, e := range evidence {
			stored := c.store.AddEvidence(e)

			for _, txHash := range stored.Transactions {
				for _, t := range tradesByTx[txHash] {
					c.store.MarkWash(t.TxHash, t.LogIndex, string(stored.Type), stored.Confidence)
				}
			}

			if stored.Confidence < alertConfidenceThreshold {
				continue
			}
			alert := models.Alert{
				ID:         uuid.New(),
				EvidenceID: stored.ID,
				Type:       stored.Type,
				Severity:   models.SeverityFor(stored.Confidence),
				Confidence: stored.Confidence,
				Addresses:  stored.Addresses,
				TokenID:    stored.TokenID,
				Timestamp:  stored.Timestamp,
			}
			c.store.AddAlert(alert, true)
		}

		if c.bus != nil {
			c.bus.PublishAnalysisStats(alertbus.AnalysisStats{
				Detector:          string(spec.Kind),
				EvidenceCount:     len(evidence),
				LastRunDurationMs: time.Since(start).Milliseconds(),
			})
		}
	}

	if c.bus != nil {
		c.bus.PublishStats(c.store.Stats())
	}
}

func (c *Controller) loadSyncState(ctx context.Context) int64 {
	if c.db == nil {
		return 0
	}
	var s models.SyncState
	err := c.db.WithContext(ctx).Where("key = ?", models.DefaultSyncKey).First(&s).Error
	if err != nil {
		head, err := c.client.GetBlockNumber(ctx)
		if err != nil {
			return 0
		}
		return head - 1
	}
	return s.LastBlock
}

func (c *Controller) saveSyncState(ctx context.Context, lastBlock int64) error {
	if c.db == nil {
		return nil
	}
	s := models.SyncState{Key: models.DefaultSyncKey, LastBlock: lastBlock}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_block", "updated_at"}),
	}).Create(&s).Error
}

func isCancelled(cancel chan struct{}) bool {
	select {
	case <-cancel:
		return true
	default:
		return false
	}
}
