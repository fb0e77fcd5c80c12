/**
 * @description
 * The /ws endpoint: fans out Alert Bus messages to each connected client
 * and answers a small set of pull commands (ping, get_stats,
 * get_recent_trades, get_recent_alerts). One goroutine pumps writes (bus
 * messages plus periodic pings), one reads client commands; both exit
 * together on either side closing. Keepalive timing is lifted from the
 * upstream market-data client's ping/pong discipline.
 *
 * @dependencies
 * - github.com/gofiber/contrib/websocket
 */

package wsapi

import (
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/polysleuth/forensics/internal/alertbus"
	"github.com/polysleuth/forensics/internal/logger"
	"github.com/polysleuth/forensics/internal/store"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// clientCommand is the shape of a client -> server message.
type clientCommand struct {
	Cmd string `json:"cmd"`
}

// Handler serves the /ws upgrade and pumps Alert Bus traffic to it.
type Handler struct {
	bus   *alertbus.Bus
	store *store.Store
	log   *logger.Entry
}

// NewHandler constructs a wsapi Handler.
func NewHandler(bus *alertbus.Bus, st *store.Store) *Handler {
	return &Handler{bus: bus, store: st, log: logger.Component("wsapi")}
}

// Upgrade is registered as the fiber websocket.New handler for /ws.
func (h *Handler) Upgrade(c *websocket.Conn) {
	id, msgs, unsubscribe := h.bus.Subscribe()
	defer unsubscribe()

	log := h.log.With(logger.Fields{"subscriber": id.String()})

	c.SetReadLimit(1024 * 1024)
	c.SetReadDeadline(time.Now().Add(pongWait))
	c.SetPongHandler(func(string) error {
		c.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	go h.readLoop(c, done, log)
	h.writeLoop(c, msgs, done, log)
}

func (h *Handler) readLoop(c *websocket.Conn, done chan struct{}, log *logger.Entry) {
	defer close(done)
	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			return
		}
		var cmd clientCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			continue
		}
		h.handleCommand(c, cmd, log)
	}
}

func (h *Handler) handleCommand(c *websocket.Conn, cmd clientCommand, log *logger.Entry) {
	switch cmd.Cmd {
	case "ping":
		h.writeJSON(c, alertbus.Message{Kind: alertbus.KindPong, Timestamp: time.Now()})
	case "get_stats":
		h.writeJSON(c, alertbus.Message{Kind: alertbus.KindStats, Data: h.store.Stats(), Timestamp: time.Now()})
	case "get_recent_trades":
		snapshot := h.store.Snapshot()
		trades := snapshot.RecentWindow(time.Hour, 100)
		h.writeJSON(c, alertbus.Message{Kind: alertbus.KindNewTrade, Data: trades, Timestamp: time.Now()})
	case "get_recent_alerts":
		snapshot := h.store.Snapshot()
		alerts := snapshot.Alerts
		if len(alerts) > 100 {
			alerts = alerts[len(alerts)-100:]
		}
		h.writeJSON(c, alertbus.Message{Kind: alertbus.KindNewAlert, Data: alerts, Timestamp: time.Now()})
	default:
		log.With(logger.Fields{"cmd": cmd.Cmd}).Debug("unknown websocket command")
	}
}

func (h *Handler) writeLoop(c *websocket.Conn, msgs <-chan alertbus.Message, done chan struct{}, log *logger.Entry) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			if err := h.writeJSON(c, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) writeJSON(c *websocket.Conn, v interface{}) error {
	c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteJSON(v)
}
