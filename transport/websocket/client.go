package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wricardo/star-royale/game/engine"
)

// Inbound event names
const (
	EventMovement = "movement"
	EventClaim    = "claim"
)

// inbound is a client frame: {"event": "...", "data": {...}}
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type claimRequest struct {
	StarID uint64 `json:"starId"`
}

type handlerFunc func(c *Client, game Game, data json.RawMessage) error

// handlers maps inbound event names to their handlers. Unknown events are
// ignored.
var handlers = map[string]handlerFunc{
	EventMovement: handleMovement,
	EventClaim:    handleClaim,
}

func handleMovement(c *Client, game Game, data json.RawMessage) error {
	var m engine.Movement
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	game.Move(c.id, m)
	return nil
}

func handleClaim(c *Client, game Game, data json.RawMessage) error {
	var req claimRequest
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &req); err != nil {
			return err
		}
	}

	result := game.Claim(c.id, req.StarID)
	if result.Outcome != engine.ClaimAccepted {
		c.hub.logger.Debug("claim not accepted", "conn", c.id, "star", req.StarID, "outcome", result.Outcome)
	}
	return nil
}

// readPump feeds frames from the connection to the game. When the connection
// ends the player leaves and the client is unregistered.
func (c *Client) readPump(game Game) {
	defer func() {
		game.Leave(c.id)
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "conn", c.id, "err", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.hub.logger.Debug("rate limited frame dropped", "conn", c.id)
			continue
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			c.hub.logger.Debug("malformed frame ignored", "conn", c.id, "err", err)
			continue
		}

		handler, ok := handlers[msg.Event]
		if !ok {
			c.hub.logger.Debug("unknown event ignored", "conn", c.id, "event", msg.Event)
			continue
		}
		if err := handler(c, game, msg.Data); err != nil {
			c.hub.logger.Debug("malformed payload ignored", "conn", c.id, "event", msg.Event, "err", err)
		}
	}
}

// writePump writes queued events to the connection, one frame per event, and
// keeps the connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
