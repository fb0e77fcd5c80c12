/**
 * @description
 * REST route table. Wires the handler groups constructed from a shared
 * Deps bundle onto the /api namespace.
 *
 * @dependencies
 * - github.com/gofiber/fiber/v2
 */

package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/polysleuth/forensics/internal/api/handlers"
)

// SetupRoutes wires every REST endpoint onto app's /api group.
func SetupRoutes(app *fiber.App, deps handlers.Deps) {
	trade := handlers.NewTradeHandler(deps)
	market := handlers.NewMarketHandler(deps)
	alert := handlers.NewAlertHandler(deps)
	system := handlers.NewSystemHandler(deps)

	api := app.Group("/api")

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	trades := api.Group("/trades")
	trades.Get("/", trade.GetTrades)
	trades.Get("/timeline", trade.GetTimeline)
	trades.Get("/analysis/full", trade.GetAnalysisFull)
	trades.Get("/analysis/flagged-tx", trade.GetFlaggedTx)
	trades.Get("/analysis/advanced/market-health", trade.GetMarketHealth)
	trades.Get("/analysis/advanced/:kind", trade.GetAnalysisAdvanced)
	trades.Get("/analysis/:kind", trade.GetAnalysisBasic)

	markets := api.Group("/markets")
	markets.Get("/", market.GetMarkets)
	markets.Get("/hot", market.GetHotMarkets)
	markets.Get("/:token_id", market.GetMarketByToken)

	alerts := api.Group("/alerts")
	alerts.Get("/", alert.GetAlerts)
	alerts.Get("/recent", alert.GetRecentAlerts)
	alerts.Get("/stats", alert.GetAlertStats)
	alerts.Post("/:id/ack", alert.AckAlert)

	sys := api.Group("/system")
	sys.Get("/stats", system.GetStats)
	sys.Post("/fetch", system.PostFetch)
	sys.Post("/stream/start", system.PostStreamStart)
	sys.Post("/stream/stop", system.PostStreamStop)
}
