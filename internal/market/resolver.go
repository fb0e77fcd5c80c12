/**
 * @description
 * Token-id -> Market resolution: an in-memory cache backed by Redis and a
 * durable Postgres table, with a bounded background queue for resolving
 * unknown token-ids against the venue's off-chain metadata catalog (an
 * external collaborator, reached only through the narrow MetadataFetcher
 * contract below).
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 * - gorm.io/gorm
 */

package market

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/polysleuth/forensics/internal/logger"
	"github.com/polysleuth/forensics/internal/models"
)

const (
	cacheTTL          = 5 * time.Minute
	cacheKeyPrefix    = "polysleuth:market:token:"
	pendingQueueSize  = 4096
	resolverWorkerLag = 250 * time.Millisecond
)

// MetadataFetcher resolves a token-id against the venue's off-chain catalog.
// This is the narrow external-collaborator contract; the forensic pipeline
// never talks HTTP directly.
type MetadataFetcher interface {
	FetchMarketByToken(ctx context.Context, tokenID string) (*models.Market, error)
}

// Resolver owns the Market cache, per spec.md's data-model ownership rule.
type Resolver struct {
	db      *gorm.DB
	redis   *redis.Client
	fetcher MetadataFetcher
	log     *logger.Entry

	mu    sync.RWMutex
	byTok map[string]*models.Market // token-id -> market, in-process fast path

	pending   chan string
	pendingMu sync.Mutex
	inFlight  map[string]struct{}
}

// NewResolver constructs a Resolver and starts its background resolution worker.
func NewResolver(db *gorm.DB, redisClient *redis.Client, fetcher MetadataFetcher) *Resolver {
	r := &Resolver{
		db:       db,
		redis:    redisClient,
		fetcher:  fetcher,
		log:      logger.Component("market"),
		byTok:    make(map[string]*models.Market),
		pending:  make(chan string, pendingQueueSize),
		inFlight: make(map[string]struct{}),
	}
	go r.resolveLoop()
	return r
}

// Resolve returns the market for tokenID if known. If unknown, it schedules
// an asynchronous resolution and returns ok=false immediately — callers
// should record the trade against "market=unknown" and let a later record
// pick up the resolved market once available (idempotent by tx-hash+log-index).
func (r *Resolver) Resolve(ctx context.Context, tokenID string) (*models.Market, bool) {
	r.mu.RLock()
	m, ok := r.byTok[tokenID]
	r.mu.RUnlock()
	if ok {
		return m, true
	}

	if cached, ok := r.fromCache(ctx, tokenID); ok {
		r.set(tokenID, cached)
		return cached, true
	}

	if r.db != nil {
		var market models.Market
		err := r.db.Where("yes_token_id = ? OR no_token_id = ?", tokenID, tokenID).First(&market).Error
		if err == nil {
			r.set(tokenID, &market)
			r.toCache(ctx, tokenID, &market)
			return &market, true
		}
	}

	r.schedule(tokenID)
	return nil, false
}

func (r *Resolver) set(tokenID string, m *models.Market) {
	r.mu.Lock()
	r.byTok[tokenID] = m
	r.mu.Unlock()
}

func (r *Resolver) fromCache(ctx context.Context, tokenID string) (*models.Market, bool) {
	if r.redis == nil {
		return nil, false
	}
	raw, err := r.redis.Get(ctx, cacheKeyPrefix+tokenID).Result()
	if err != nil {
		return nil, false
	}
	var m models.Market
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, false
	}
	return &m, true
}

func (r *Resolver) toCache(ctx context.Context, tokenID string, m *models.Market) {
	if r.redis == nil {
		return
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return
	}
	r.redis.Set(ctx, cacheKeyPrefix+tokenID, raw, cacheTTL)
}

// schedule enqueues tokenID for background resolution, deduplicating against
// tokens already in flight (storage.py's _market_fetch_queue pattern).
func (r *Resolver) schedule(tokenID string) {
	if r.fetcher == nil {
		return
	}

	r.pendingMu.Lock()
	if _, already := r.inFlight[tokenID]; already {
		r.pendingMu.Unlock()
		return
	}
	r.inFlight[tokenID] = struct{}{}
	r.pendingMu.Unlock()

	select {
	case r.pending <- tokenID:
	default:
		r.log.With(logger.Fields{"token_id": tokenID}).Warn("market resolve queue full, dropping")
		r.pendingMu.Lock()
		delete(r.inFlight, tokenID)
		r.pendingMu.Unlock()
	}
}

func (r *Resolver) resolveLoop() {
	ctx := context.Background()
	for tokenID := range r.pending {
		r.resolveOne(ctx, tokenID)
		r.pendingMu.Lock()
		delete(r.inFlight, tokenID)
		r.pendingMu.Unlock()
		time.Sleep(resolverWorkerLag)
	}
}

func (r *Resolver) resolveOne(ctx context.Context, tokenID string) {
	m, err := r.fetcher.FetchMarketByToken(ctx, tokenID)
	if err != nil || m == nil {
		r.log.With(logger.Fields{"token_id": tokenID, "error": err}).Warn("market resolution failed")
		return
	}

	r.set(tokenID, m)
	r.toCache(ctx, tokenID, m)

	if r.db != nil {
		if err := r.db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "condition_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"yes_token_id", "no_token_id", "slug", "question", "status", "tags", "updated_at"}),
		}).Create(m).Error; err != nil {
			r.log.With(logger.Fields{"condition_id": m.ConditionID, "error": err}).Error("market upsert failed")
		}
	}
}
