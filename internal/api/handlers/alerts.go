/**
 * @description
 * /api/alerts* handlers: alert ring queries and aggregate stats.
 */

package handlers

import (
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/polysleuth/forensics/internal/models"
)

// AlertHandler serves the /api/alerts* group.
type AlertHandler struct {
	deps Deps
}

// NewAlertHandler constructs an AlertHandler.
func NewAlertHandler(deps Deps) *AlertHandler {
	return &AlertHandler{deps: deps}
}

// GetAlerts handles GET /api/alerts.
func (h *AlertHandler) GetAlerts(c *fiber.Ctx) error {
	limit, err := parseIntParam(c.Query("limit"), 100, 1, 1000)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid limit", "detail": err.Error()})
	}

	alerts := sortedAlerts(h.deps)
	alerts = filterAlerts(alerts, c.Query("severity"), c.Query("token_id"))
	if len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return c.JSON(fiber.Map{"data": alerts, "count": len(alerts)})
}

// GetRecentAlerts handles GET /api/alerts/recent.
func (h *AlertHandler) GetRecentAlerts(c *fiber.Ctx) error {
	n, err := parseIntParam(c.Query("n"), 20, 1, 200)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid n", "detail": err.Error()})
	}
	alerts := sortedAlerts(h.deps)
	if len(alerts) > n {
		alerts = alerts[:n]
	}
	return c.JSON(fiber.Map{"data": alerts})
}

// GetAlertStats handles GET /api/alerts/stats.
func (h *AlertHandler) GetAlertStats(c *fiber.Ctx) error {
	alerts := sortedAlerts(h.deps)
	bySeverity := map[models.Severity]int{}
	byType := map[models.EvidenceType]int{}
	for _, a := range alerts {
		bySeverity[a.Severity]++
		byType[a.Type]++
	}
	return c.JSON(fiber.Map{
		"total":       len(alerts),
		"by_severity": bySeverity,
		"by_type":     byType,
	})
}

// AckAlert handles POST /api/alerts/:id/ack.
func (h *AlertHandler) AckAlert(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid id", "detail": err.Error()})
	}

	alert, ok := h.deps.Store.AckAlert(id)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "alert not found"})
	}
	return c.JSON(fiber.Map{"data": alert})
}

func sortedAlerts(deps Deps) []models.Alert {
	snapshot := deps.Store.Snapshot()
	alerts := make([]models.Alert, len(snapshot.Alerts))
	copy(alerts, snapshot.Alerts)
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Timestamp.After(alerts[j].Timestamp) })
	return alerts
}

func filterAlerts(alerts []models.Alert, severity, tokenID string) []models.Alert {
	if severity == "" && tokenID == "" {
		return alerts
	}
	out := make([]models.Alert, 0, len(alerts))
	for _, a := range alerts {
		if severity != "" && string(a.Severity) != severity {
			continue
		}
		if tokenID != "" && a.TokenID != tokenID {
			continue
		}
		out = append(out, a)
	}
	return out
}
