/**
 * @description
 * /api/system* handlers: aggregate counters and the Stream Controller's
 * lifecycle knobs (one-shot backfill, start/stop streaming).
 */

package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// SystemHandler serves the /api/system* group.
type SystemHandler struct {
	deps Deps
}

// NewSystemHandler constructs a SystemHandler.
func NewSystemHandler(deps Deps) *SystemHandler {
	return &SystemHandler{deps: deps}
}

// GetStats handles GET /api/system/stats.
func (h *SystemHandler) GetStats(c *fiber.Ctx) error {
	stats := h.deps.Store.Stats()
	return c.JSON(fiber.Map{
		"data":  stats,
		"state": h.deps.Stream.State(),
	})
}

// PostFetch handles POST /api/system/fetch?blocks=N, a one-shot backfill of
// up to the last N confirmed blocks.
func (h *SystemHandler) PostFetch(c *fiber.Ctx) error {
	blocks, err := parseIntParam(c.Query("blocks"), 100, 1, 100000)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid blocks", "detail": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Context(), 120*time.Second)
	defer cancel()

	if err := h.deps.Stream.Backfill(ctx, int64(blocks)); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "backfill failed", "detail": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok", "blocks": blocks})
}

// PostStreamStart handles POST /api/system/stream/start?poll_interval=&blocks_per_poll=,
// falling back to the configured defaults when a param is absent.
func (h *SystemHandler) PostStreamStart(c *fiber.Ctx) error {
	defaultPollSeconds := int(h.deps.Config.Stream.PollInterval / time.Second)
	pollSeconds, err := parseIntParam(c.Query("poll_interval"), defaultPollSeconds, 1, 3600)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid poll_interval", "detail": err.Error()})
	}

	blocksPerPoll, err := parseIntParam(c.Query("blocks_per_poll"), int(h.deps.Config.Stream.BlocksPerPoll), 1, 100000)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid blocks_per_poll", "detail": err.Error()})
	}

	h.deps.Stream.Start(time.Duration(pollSeconds)*time.Second, int64(blocksPerPoll))
	return c.JSON(fiber.Map{"status": "ok", "state": h.deps.Stream.State()})
}

// PostStreamStop handles POST /api/system/stream/stop.
func (h *SystemHandler) PostStreamStop(c *fiber.Ctx) error {
	h.deps.Stream.Stop()
	return c.JSON(fiber.Map{"status": "ok", "state": h.deps.Stream.State()})
}
