package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hakichain/hakichain/internal/chain"
	"github.com/hakichain/hakichain/internal/logging"
	"github.com/hakichain/hakichain/internal/metrics"
	"github.com/hakichain/hakichain/internal/util"
)

const (
	wsPingInterval = 54 * time.Second
	wsPongWait     = 60 * time.Second
	wsWriteWait    = 10 * time.Second
	wsReadLimit    = 64 * 1024
	wsSendBuffer   = 256
)

// WebSocketMessage is the envelope for every frame in both directions.
type WebSocketMessage struct {
	Type    string      `json:"type"`
	Channel string      `json:"channel,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// WebSocketClient is one connected /v1/events subscriber. A client with no
// subscriptions receives every contract's events.
type WebSocketClient struct {
	hub        *WebSocketHub
	conn       *websocket.Conn
	send       chan []byte
	subscribed map[string]bool
	mu         sync.RWMutex
}

// WebSocketHub fans contract events out to connected clients.
type WebSocketHub struct {
	clients    map[*WebSocketClient]bool
	broadcast  chan *WebSocketMessage
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	done       chan struct{}
	metrics    *metrics.Collector
	mu         sync.RWMutex
}

func NewWebSocketHub(m *metrics.Collector) *WebSocketHub {
	return &WebSocketHub{
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan *WebSocketMessage, 256),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		done:       make(chan struct{}),
		metrics:    m,
	}
}

// Run serves register, unregister and broadcast until ctx ends, then closes
// every client.
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.metrics.SetWebSocketClients(0)
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.metrics.SetWebSocketClients(n)
			logging.Debug("WebSocket client connected", "total_clients", n, logging.Component("websocket"))

		case client := <-h.unregister:
			h.remove(client)

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				continue
			}

			var slow []*WebSocketClient
			h.mu.RLock()
			for client := range h.clients {
				if !client.wants(msg.Channel) {
					continue
				}
				select {
				case client.send <- data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			for _, client := range slow {
				logging.Debug("WebSocket client too slow, disconnecting", logging.Component("websocket"))
				h.remove(client)
			}
		}
	}
}

func (h *WebSocketHub) remove(client *WebSocketClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWebSocketClients(n)
	logging.Debug("WebSocket client disconnected", "total_clients", n, logging.Component("websocket"))
}

// BroadcastToChannel queues a message for clients that want channel.
func (h *WebSocketHub) BroadcastToChannel(channel, eventType string, data interface{}) {
	msg := &WebSocketMessage{Type: eventType, Channel: channel, Data: data}

	select {
	case h.broadcast <- msg:
	default:
		logging.Warn("WebSocket broadcast buffer full", "channel", channel, logging.Component("websocket"))
	}
}

func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// forwardEvents publishes contract events on the channel named after the
// emitting contract until ctx ends or events is closed.
func (s *Server) forwardEvents(ctx context.Context, events <-chan chain.ContractEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.deps.Metrics.ObserveContractEvent(ev.Contract, ev.Name)
			s.wsHub.BroadcastToChannel(ev.Contract, "contract_event", ev)
		}
	}
}

func newWebSocketClient(hub *WebSocketHub, conn *websocket.Conn) *WebSocketClient {
	return &WebSocketClient{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, wsSendBuffer),
		subscribed: make(map[string]bool),
	}
}

func (c *WebSocketClient) wants(channel string) bool {
	if channel == "" {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribed) == 0 || c.subscribed[channel]
}

func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Debug("WebSocket read error", logging.Err(err), logging.Component("websocket"))
			}
			return
		}

		var msg WebSocketMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		c.handleMessage(&msg)
	}
}

func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) handleMessage(msg *WebSocketMessage) {
	switch msg.Type {
	case "subscribe":
		c.updateSubscriptions(msg, true)
	case "unsubscribe":
		c.updateSubscriptions(msg, false)
	case "ping":
		c.sendMessage(&WebSocketMessage{Type: "pong"})
	}
}

// updateSubscriptions reads {"channels": [...]} from msg.Data. Channels are
// contract names such as BountyEscrow.
func (c *WebSocketClient) updateSubscriptions(msg *WebSocketMessage, subscribe bool) {
	raw, err := json.Marshal(msg.Data)
	if err != nil {
		return
	}
	var req struct {
		Channels []string `json:"channels"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return
	}

	c.mu.Lock()
	for _, channel := range req.Channels {
		if subscribe {
			c.subscribed[channel] = true
		} else {
			delete(c.subscribed, channel)
		}
	}
	c.mu.Unlock()

	reply := "subscribed"
	if !subscribe {
		reply = "unsubscribed"
	}
	c.sendMessage(&WebSocketMessage{
		Type: reply,
		Data: map[string]interface{}{"channels": c.subscribedChannels()},
	})
}

func (c *WebSocketClient) sendMessage(msg *WebSocketMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	// The hub may have closed send already.
	defer func() { _ = recover() }()
	select {
	case c.send <- data:
	default:
	}
}

func (c *WebSocketClient) subscribedChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	channels := make([]string, 0, len(c.subscribed))
	for ch := range c.subscribed {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	return channels
}

// handleWebSocket upgrades GET /v1/events. Origins are checked against the
// CORS allow list.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("WebSocket upgrade failed", logging.Err(err), logging.Component("websocket"))
		return
	}

	client := newWebSocketClient(s.wsHub, conn)
	select {
	case s.wsHub.register <- client:
	case <-s.wsHub.done:
		conn.Close()
		return
	case <-r.Context().Done():
		conn.Close()
		return
	}

	util.SafeGoWithName("websocket-write", client.writePump)
	util.SafeGoWithName("websocket-read", client.readPump)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.config.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}
