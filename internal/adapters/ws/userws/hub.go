// Package userws fans store and connection changes out to dashboard browsers.
package userws

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"procwatch/internal/adapters/http/validator"
	"procwatch/internal/domain"
	"procwatch/internal/logger"
)

type Hub struct {
	ctx    context.Context
	cancel context.CancelFunc

	svc domain.MetricsService
	val validator.Validator

	clients  map[*Client]bool
	channels map[string]map[*Client]bool

	// control carries registration and subscription changes in the order
	// each client issued them.
	control chan controlOp
	events  chan *domain.WsServerEvent
	direct  chan *directMessage

	log logger.Logger
}

type opKind int

const (
	opRegister opKind = iota
	opUnregister
	opSubscribe
	opUnsubscribe
)

type controlOp struct {
	kind    opKind
	client  *Client
	channel string
}

type directMessage struct {
	client *Client
	event  *domain.WsServerEvent
}

func NewHub(parent context.Context, svc domain.MetricsService, val validator.Validator, log logger.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)

	return &Hub{
		ctx:    ctx,
		cancel: cancel,

		svc: svc,
		val: val,

		clients:  make(map[*Client]bool),
		channels: make(map[string]map[*Client]bool),

		control: make(chan controlOp, 64),
		events:  make(chan *domain.WsServerEvent, 256),
		direct:  make(chan *directMessage, 64),

		log: log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.log.Info("ws: hub shutting down...")
			for client := range h.clients {
				close(client.send)
			}
			clear(h.clients)
			clear(h.channels)
			return

		case op := <-h.control:
			h.handleControl(op)

		case msg := <-h.direct:
			if h.clients[msg.client] {
				h.deliver(msg.client, msg.event)
			}

		case ev := <-h.events:
			h.handleEvent(ev)
		}
	}
}

func (h *Hub) Stop() {
	h.cancel()
}

// Broadcast queues ev for every subscriber of ev.Channel, or for every client
// when the channel is empty. It never blocks; events are dropped when the
// queue is full.
func (h *Hub) Broadcast(ev *domain.WsServerEvent) {
	select {
	case h.events <- ev:
	case <-h.ctx.Done():
	default:
		h.log.Warn("ws: broadcast buffer full, dropping event", "event", ev.Event)
	}
}

func (h *Hub) Register(c *Client) {
	h.enqueue(controlOp{kind: opRegister, client: c})
}

func (h *Hub) Unregister(c *Client) {
	h.enqueue(controlOp{kind: opUnregister, client: c})
}

func (h *Hub) Subscribe(c *Client, channel string) {
	h.enqueue(controlOp{kind: opSubscribe, client: c, channel: channel})
}

func (h *Hub) Unsubscribe(c *Client, channel string) {
	h.enqueue(controlOp{kind: opUnsubscribe, client: c, channel: channel})
}

func (h *Hub) enqueue(op controlOp) {
	select {
	case h.control <- op:
	case <-h.ctx.Done():
	}
}

func (h *Hub) handleControl(op controlOp) {
	switch op.kind {
	case opRegister:
		h.clients[op.client] = true
		h.log.Info("ws: client registered", "id", op.client.ID)

	case opUnregister:
		h.removeClient(op.client)

	case opSubscribe:
		if !h.clients[op.client] {
			return
		}
		if h.channels[op.channel] == nil {
			h.channels[op.channel] = make(map[*Client]bool)
		}
		h.channels[op.channel][op.client] = true
		h.sendInitial(op.client, op.channel)

	case opUnsubscribe:
		if subs, ok := h.channels[op.channel]; ok {
			delete(subs, op.client)
			if len(subs) == 0 {
				delete(h.channels, op.channel)
			}
		}
	}
}

func (h *Hub) reply(c *Client, ev *domain.WsServerEvent) {
	select {
	case h.direct <- &directMessage{client: c, event: ev}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) removeClient(c *Client) {
	if !h.clients[c] {
		return
	}

	delete(h.clients, c)
	close(c.send)
	h.log.Info("ws: client unregistered", "id", c.ID)

	for chID, subs := range h.channels {
		if _, subscribed := subs[c]; subscribed {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.channels, chID)
			}
		}
	}
}

func (h *Hub) handleEvent(ev *domain.WsServerEvent) {
	message, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("ws: failed to marshal server event", "error", err)
		return
	}

	targetClients := h.clients

	if ev.Channel != "" {
		subs, ok := h.channels[ev.Channel]
		if !ok {
			h.log.Debug("ws: event channel has no subscribers", "channel", ev.Channel)
			return
		}
		targetClients = subs
	}

	for client := range targetClients {
		h.push(client, message)
	}
}

func (h *Hub) deliver(c *Client, ev *domain.WsServerEvent) {
	message, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("ws: failed to marshal server event", "error", err)
		return
	}
	h.push(c, message)
}

func (h *Hub) push(c *Client, message []byte) {
	if !h.clients[c] {
		return
	}

	select {
	case c.send <- message:
	default:
		h.log.Warn("ws: client channel full, force unregister", "id", c.ID)
		h.removeClient(c)
	}
}

// sendInitial brings a new subscriber up to date with the current view.
func (h *Hub) sendInitial(c *Client, channel string) {
	view := h.svc.View()

	if channel == domain.WsChannelConnectionStatus {
		h.deliver(c, &domain.WsServerEvent{
			Channel: channel,
			Event:   domain.WsEventConnectionChanged,
			Payload: domain.ConnectionChangedPayload{State: view.ConnectionState},
		})
		return
	}

	rawPID, ok := strings.CutPrefix(channel, domain.ProcessChannelPrefix)
	if !ok {
		return
	}

	pid := domain.ProcessID(rawPID)
	proc := view.ByPid[pid]

	kinds := make([]domain.ChannelKind, 0, len(proc))
	for ch := range proc {
		kinds = append(kinds, ch)
	}
	slices.Sort(kinds)

	for _, ch := range kinds {
		h.deliver(c, &domain.WsServerEvent{
			Channel: channel,
			Event:   domain.WsEventChannelUpdated,
			Payload: domain.ChannelUpdatedPayload{
				SessionID: view.SessionID,
				Version:   view.Version,
				PID:       pid,
				Channel:   ch,
				State:     proc[ch],
			},
		})
	}
}
