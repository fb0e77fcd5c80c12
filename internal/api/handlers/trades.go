/**
 * @description
 * /api/trades* handlers: raw trade queries, timeline aggregation, and
 * on-demand detector runs (basic + advanced) over the full snapshot.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 */

package handlers

import (
	"sort"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/polysleuth/forensics/internal/detect"
	"github.com/polysleuth/forensics/internal/health"
	"github.com/polysleuth/forensics/internal/models"
	"github.com/polysleuth/forensics/internal/store"
)

// TradeHandler serves the /api/trades* group.
type TradeHandler struct {
	deps Deps
}

// NewTradeHandler constructs a TradeHandler.
func NewTradeHandler(deps Deps) *TradeHandler {
	return &TradeHandler{deps: deps}
}

var basicDetectorsByPath = map[string]detect.ScanFunc{
	"insider":     detect.ScanNewWalletInsider,
	"high-winrate": detect.ScanHighWinRate,
	"gas-anomaly": detect.ScanGasAnomaly,
}

var advancedDetectorsByPath = map[string]detect.ScanFunc{
	"self-trades":     detect.ScanSelfTrade,
	"circular-trades": detect.ScanCircularTrade,
	"atomic-wash":     detect.ScanAtomicWash,
	"volume-spikes":   detect.ScanVolumeSpike,
	"sybil-clusters":  detect.ScanSybilCluster,
}

// GetTrades handles GET /api/trades.
func (h *TradeHandler) GetTrades(c *fiber.Ctx) error {
	filter, err := parseTradeFilter(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid query", "detail": err.Error()})
	}

	trades := h.deps.Store.QueryTrades(filter)
	return c.JSON(fiber.Map{"data": trades, "count": len(trades)})
}

// GetTimeline handles GET /api/trades/timeline.
func (h *TradeHandler) GetTimeline(c *fiber.Ctx) error {
	hours, err := parseIntParam(c.Query("hours"), 24, 1, 168)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid hours", "detail": err.Error()})
	}
	interval, err := parseIntParam(c.Query("interval"), 300, 1, 86400)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid interval", "detail": err.Error()})
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	trades := h.deps.Store.QueryTrades(store.Filter{Since: &since, Limit: 5000})

	buckets := timelineBuckets(trades, since, time.Duration(interval)*time.Second)
	return c.JSON(fiber.Map{"data": buckets, "hours": hours, "interval": interval})
}

// GetAnalysisBasic handles GET /api/trades/analysis/{insider|high-winrate|gas-anomaly}.
func (h *TradeHandler) GetAnalysisBasic(c *fiber.Ctx) error {
	kind := c.Params("kind")
	scan, ok := basicDetectorsByPath[kind]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown detector", "detail": kind})
	}
	return h.runScan(c, scan)
}

// GetAnalysisFull handles GET /api/trades/analysis/full.
func (h *TradeHandler) GetAnalysisFull(c *fiber.Ctx) error {
	snapshot := h.deps.Store.Snapshot()
	result := make(map[string][]models.Evidence)
	for _, spec := range detect.All {
		result[string(spec.Kind)] = spec.Scan(snapshot.Trades, snapshot.Trades)
	}
	return c.JSON(fiber.Map{"data": result})
}

// GetAnalysisAdvanced handles GET /api/trades/analysis/advanced/{...}.
func (h *TradeHandler) GetAnalysisAdvanced(c *fiber.Ctx) error {
	kind := c.Params("kind")
	scan, ok := advancedDetectorsByPath[kind]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown detector", "detail": kind})
	}
	return h.runScan(c, scan)
}

// GetMarketHealth handles GET /api/trades/analysis/advanced/market-health.
func (h *TradeHandler) GetMarketHealth(c *fiber.Ctx) error {
	snapshot := h.deps.Store.Snapshot()
	byToken := make(map[string][]models.Trade)
	for _, t := range snapshot.Trades {
		byToken[t.TokenID] = append(byToken[t.TokenID], t)
	}

	var evidenceRows []models.Evidence
	if h.deps.DB != nil {
		h.deps.DB.Order("timestamp ASC").Find(&evidenceRows)
	}
	evidenceByToken := make(map[string][]models.Evidence)
	for _, e := range evidenceRows {
		evidenceByToken[e.TokenID] = append(evidenceByToken[e.TokenID], e)
	}

	tokenIDParam := c.Query("token_id")
	results := make(map[string]health.MarketHealth)
	for tokenID, trades := range byToken {
		if tokenIDParam != "" && tokenID != tokenIDParam {
			continue
		}
		if mh, ok := health.Compute(tokenID, trades, evidenceByToken[tokenID]); ok {
			results[tokenID] = mh
		}
	}
	return c.JSON(fiber.Map{"data": results})
}

// GetFlaggedTx handles GET /api/trades/analysis/flagged-tx.
func (h *TradeHandler) GetFlaggedTx(c *fiber.Ctx) error {
	analysisType := c.Query("analysis_type")

	var evidenceRows []models.Evidence
	q := h.deps.DB
	if q == nil {
		return c.JSON(fiber.Map{"data": []interface{}{}})
	}
	tx := q.Model(&models.Evidence{})
	if analysisType != "" {
		tx = tx.Where("type = ?", analysisType)
	}
	if err := tx.Order("timestamp DESC").Limit(1000).Find(&evidenceRows).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "query failed", "detail": err.Error()})
	}

	type flagged struct {
		TxHash       string   `json:"tx_hash"`
		Addresses    []string `json:"addresses"`
		AnalysisType string   `json:"analysis_type"`
		Confidence   float64  `json:"confidence"`
	}
	var out []flagged
	for _, e := range evidenceRows {
		for _, tx := range e.Transactions {
			out = append(out, flagged{TxHash: tx, Addresses: e.Addresses, AnalysisType: string(e.Type), Confidence: e.Confidence})
		}
	}
	return c.JSON(fiber.Map{"data": out, "count": len(out)})
}

func (h *TradeHandler) runScan(c *fiber.Ctx, scan detect.ScanFunc) error {
	snapshot := h.deps.Store.Snapshot()
	evidence := scan(snapshot.Trades, snapshot.Trades)
	return c.JSON(fiber.Map{"data": evidence, "count": len(evidence)})
}

func parseTradeFilter(c *fiber.Ctx) (store.Filter, error) {
	limit, err := parseIntParam(c.Query("limit"), 500, 1, 5000)
	if err != nil {
		return store.Filter{}, err
	}
	offset, err := parseIntParam(c.Query("offset"), 0, 0, 1<<31-1)
	if err != nil {
		return store.Filter{}, err
	}

	f := store.Filter{
		TokenID: c.Query("token_id"),
		Address: c.Query("address"),
		Limit:   limit,
		Offset:  offset,
	}

	if side := c.Query("side"); side != "" {
		f.Side = models.Side(side)
	}
	if isWash := c.Query("is_wash"); isWash != "" {
		v := isWash == "true" || isWash == "1"
		f.IsWash = &v
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return store.Filter{}, err
		}
		f.Since = &t
	}
	if until := c.Query("until"); until != "" {
		t, err := time.Parse(time.RFC3339, until)
		if err != nil {
			return store.Filter{}, err
		}
		f.Until = &t
	}

	return f, nil
}

func parseIntParam(raw string, fallback, min, max int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return v, nil
}

type timelineBucket struct {
	Start  time.Time `json:"start"`
	Volume float64   `json:"volume"`
	Count  int       `json:"count"`
}

func timelineBuckets(trades []models.Trade, since time.Time, interval time.Duration) []timelineBucket {
	index := make(map[int64]*timelineBucket)
	var keys []int64
	for _, t := range trades {
		key := t.Timestamp.Sub(since) / interval
		b, ok := index[int64(key)]
		if !ok {
			b = &timelineBucket{Start: since.Add(time.Duration(key) * interval)}
			index[int64(key)] = b
			keys = append(keys, int64(key))
		}
		b.Volume += t.Volume
		b.Count++
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]timelineBucket, 0, len(keys))
	for _, k := range keys {
		out = append(out, *index[k])
	}
	return out
}
