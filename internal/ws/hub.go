// Package ws is the live pub/sub fan-out for exchange events: one room per
// channel name (orderbook:{marketId}:{outcome}, trades:{marketId},
// markets:{marketId}, user:{userId}), clients subscribe/unsubscribe by
// sending a small JSON control message over the same socket.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"wager-exchange/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub manages channel subscriptions and implements events.Sink.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*conn]bool
	allConn  map[*conn]bool
}

type conn struct {
	ws       *websocket.Conn
	send     chan []byte
	hub      *Hub
	channels map[string]bool
}

func NewHub() *Hub {
	return &Hub{
		channels: make(map[string]map[*conn]bool),
		allConn:  make(map[*conn]bool),
	}
}

// Publish implements events.Sink — broadcasts the envelope to every
// connection subscribed to env.Channel.
func (h *Hub) Publish(_ context.Context, env events.Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		log.Printf("ws: marshal envelope: %v", err)
		return
	}
	h.mu.RLock()
	room := h.channels[env.Channel]
	h.mu.RUnlock()
	for c := range room {
		select {
		case c.send <- b:
		default:
			// slow client, drop rather than block the publisher
		}
	}
}

// HandleWS upgrades the connection and starts its read/write pumps.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade error: %v", err)
		return
	}
	c := &conn{
		ws:       wsConn,
		send:     make(chan []byte, 64),
		hub:      h,
		channels: make(map[string]bool),
	}
	h.mu.Lock()
	h.allConn[c] = true
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()
}

func (c *conn) readPump() {
	defer func() {
		c.hub.removeConn(c)
		c.ws.Close()
	}()
	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			break
		}
		var sub struct {
			Action  string `json:"action"`
			Channel string `json:"channel"`
		}
		if err := json.Unmarshal(msg, &sub); err != nil {
			continue
		}
		switch sub.Action {
		case "subscribe":
			c.hub.subscribe(c, sub.Channel)
		case "unsubscribe":
			c.hub.unsubscribe(c, sub.Channel)
		}
	}
}

func (c *conn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			break
		}
	}
}

func (h *Hub) subscribe(c *conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.channels[channel]
	if !ok {
		room = make(map[*conn]bool)
		h.channels[channel] = room
	}
	room[c] = true
	c.channels[channel] = true
}

func (h *Hub) unsubscribe(c *conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.channels[channel]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(c.channels, channel)
}

func (h *Hub) removeConn(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.allConn, c)
	for ch := range c.channels {
		if room, ok := h.channels[ch]; ok {
			delete(room, c)
			if len(room) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	close(c.send)
}
