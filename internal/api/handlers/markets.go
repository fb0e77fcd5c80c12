/**
 * @description
 * /api/markets* handlers: the resolved-market catalog plus a "hot markets"
 * ranking derived from recent trade volume in the Evidence Store.
 */

package handlers

import (
	"sort"

	"github.com/gofiber/fiber/v2"

	"github.com/polysleuth/forensics/internal/models"
)

// MarketHandler serves the /api/markets* group.
type MarketHandler struct {
	deps Deps
}

// NewMarketHandler constructs a MarketHandler.
func NewMarketHandler(deps Deps) *MarketHandler {
	return &MarketHandler{deps: deps}
}

// GetMarkets handles GET /api/markets.
func (h *MarketHandler) GetMarkets(c *fiber.Ctx) error {
	limit, err := parseIntParam(c.Query("limit"), 100, 1, 1000)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid limit", "detail": err.Error()})
	}

	if h.deps.DB == nil {
		return c.JSON(fiber.Map{"data": []models.Market{}})
	}

	q := h.deps.DB.Model(&models.Market{})
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var out []models.Market
	if err := q.Order("updated_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "query failed", "detail": err.Error()})
	}
	return c.JSON(fiber.Map{"data": out, "count": len(out)})
}

type hotMarket struct {
	TokenID string  `json:"token_id"`
	Volume  float64 `json:"volume"`
	Trades  int     `json:"trades"`
	Market  *models.Market `json:"market,omitempty"`
}

// GetHotMarkets handles GET /api/markets/hot, ranking tokens by trade
// volume observed in the current ring window.
func (h *MarketHandler) GetHotMarkets(c *fiber.Ctx) error {
	limit, err := parseIntParam(c.Query("limit"), 20, 1, 200)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid limit", "detail": err.Error()})
	}

	snapshot := h.deps.Store.Snapshot()
	byToken := make(map[string]*hotMarket)
	for _, t := range snapshot.Trades {
		hm, ok := byToken[t.TokenID]
		if !ok {
			hm = &hotMarket{TokenID: t.TokenID}
			byToken[t.TokenID] = hm
		}
		hm.Volume += t.Volume
		hm.Trades++
	}

	out := make([]hotMarket, 0, len(byToken))
	for _, hm := range byToken {
		out = append(out, *hm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Volume > out[j].Volume })
	if len(out) > limit {
		out = out[:limit]
	}

	if h.deps.DB != nil {
		for i := range out {
			var m models.Market
			if err := h.deps.DB.Where("yes_token_id = ? OR no_token_id = ?", out[i].TokenID, out[i].TokenID).First(&m).Error; err == nil {
				out[i].Market = &m
			}
		}
	}

	return c.JSON(fiber.Map{"data": out})
}

// GetMarketByToken handles GET /api/markets/:token_id.
func (h *MarketHandler) GetMarketByToken(c *fiber.Ctx) error {
	tokenID := c.Params("token_id")
	if h.deps.DB == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found", "detail": tokenID})
	}

	var m models.Market
	err := h.deps.DB.Where("yes_token_id = ? OR no_token_id = ?", tokenID, tokenID).First(&m).Error
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "market not resolved", "detail": tokenID})
	}
	return c.JSON(fiber.Map{"data": m})
}
