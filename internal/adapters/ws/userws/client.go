package userws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"procwatch/internal/domain"
	"procwatch/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	log logger.Logger

	ID string
}

func NewClient(hub *Hub, conn *websocket.Conn, log logger.Logger, cID string) *Client {
	ctx, cancel := context.WithCancel(hub.ctx)

	return &Client{
		ctx:    ctx,
		cancel: cancel,

		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),

		log: log.With("client_id", cID),

		ID: cID,
	}
}

func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.hub.Unregister(c)
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
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("ws: client disconnected unexpectedly", "error", err)
			}
			return
		}

		var msg domain.WsClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			c.log.Warn("ws: invalid client message", "error", err)
			continue
		}

		switch msg.Type {
		case domain.WsSubscribe:
			c.hub.Subscribe(c, msg.Channel)
		case domain.WsUnsubscribe:
			c.hub.Unsubscribe(c, msg.Channel)
		case domain.WsCommand:
			c.handleCommand(msg.Payload)
		default:
			c.log.Debug("ws: unknown client message type", "type", msg.Type)
		}
	}
}

func (c *Client) handleCommand(payload json.RawMessage) {
	var req domain.CommandRequest
	if len(payload) == 0 || json.Unmarshal(payload, &req) != nil {
		c.hub.reply(c, rejected(req, "invalid command payload"))
		return
	}

	if errs := c.hub.val.Validate(req); len(errs) > 0 {
		c.hub.reply(c, rejected(req, firstError(errs)))
		return
	}

	cmd, err := c.hub.svc.SendTestCommand(c.ctx, req)
	if err != nil {
		msg := "failed to send command"
		switch {
		case errors.Is(err, domain.ErrNotConnected):
			msg = "upstream is not connected"
		case errors.Is(err, domain.ErrInvalidPayload):
			msg = "metric_type is invalid"
		}
		c.hub.reply(c, rejected(req, msg))
		return
	}

	c.hub.reply(c, &domain.WsServerEvent{
		Event: domain.WsEventCommandAccepted,
		Payload: domain.CommandResultPayload{
			PID:        cmd.PID,
			MetricType: cmd.Channel.WireName(),
			Value:      cmd.Value,
		},
	})
}

func rejected(req domain.CommandRequest, reason string) *domain.WsServerEvent {
	return &domain.WsServerEvent{
		Event: domain.WsEventCommandRejected,
		Payload: domain.CommandResultPayload{
			PID:        domain.ProcessID(req.PID),
			MetricType: req.MetricType,
			Value:      req.Value,
			Error:      reason,
		},
	}
}

func firstError(errs map[string]string) string {
	first := ""
	for field := range errs {
		if first == "" || field < first {
			first = field
		}
	}
	return errs[first]
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			return

		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
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
