package realtime

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"fleetmarket-backend/internal/domain"
	"fleetmarket-backend/internal/logger"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096
)

// Client is the per-connection actor. Its readPump handles inbound messages
// sequentially; its writePump drains the send channel. All subscription
// state lives in the hub, which is the only goroutine that touches it.
type Client struct {
	id       string
	identity *domain.Identity
	conn     *websocket.Conn
	hub      *Hub

	// send is written only by the hub goroutine and closed only by the hub
	// when the client is deregistered, so a broadcast can never write to a
	// closed channel.
	send chan ServerMessage
}

func newClient(id string, identity *domain.Identity, conn *websocket.Conn, hub *Hub, sendBuffer int) *Client {
	return &Client{
		id:       id,
		identity: identity,
		conn:     conn,
		hub:      hub,
		send:     make(chan ServerMessage, sendBuffer),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// readPump pumps messages from the websocket to the hub. One goroutine per
// connection; inbound handling is strictly sequential.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("websocket read error", "conn_id", c.id, "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			c.hub.commands <- command{kind: cmdError, client: c, errMessage: "malformed message"}
			continue
		}

		switch msg.Type {
		case MsgSubscribeMetrics:
			c.hub.commands <- command{kind: cmdSubscribe, client: c, metrics: msg.Metrics}
		case MsgUnsubscribeMetrics:
			c.hub.commands <- command{kind: cmdUnsubscribe, client: c, metrics: msg.Metrics}
		case MsgRequestKPIs:
			c.hub.commands <- command{kind: cmdRequest, client: c, metric: "kpis"}
		case MsgRequestGeographic:
			c.hub.commands <- command{kind: cmdRequest, client: c, metric: "geographic"}
		case MsgRequestMetric:
			c.hub.commands <- command{kind: cmdRequest, client: c, metric: msg.Metric, timeRange: msg.TimeRange}
		default:
			c.hub.commands <- command{kind: cmdError, client: c, errMessage: "unknown message type"}
		}
	}
}

// writePump pumps messages from the send channel to the websocket. A closed
// send channel (hub deregistered us) closes the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Debug("websocket write error", "conn_id", c.id, "error", err)
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
