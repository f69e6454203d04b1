package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/ratslap/game/engine"
	"github.com/wricardo/ratslap/transport/room"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Settings documents are the largest frames.
	maxMessageSize = 64 * 1024

	sendBufferSize = 256
)

// ErrSendBufferFull is returned when a slow client cannot keep up with its events
var ErrSendBufferFull = errors.New("send buffer full")

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins in development
		return true
	},
}

// Inbound is a decoded client frame
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handler receives connection lifecycle events and inbound frames
type Handler interface {
	HandleConnect(conn room.Connection, name string)
	HandleMessage(conn room.Connection, msg Inbound)
	HandleDisconnect(conn room.Connection)
}

// Client is a live Connection backed by a WebSocket
type Client struct {
	*room.Base
	hub  *Hub
	conn *websocket.Conn
	name string

	// closed by the hub once HandleConnect has run
	registered chan struct{}

	sendMu sync.Mutex
	send   chan []byte
	closed bool
}

// Emit queues an event for this client without blocking
func (c *Client) Emit(event string, payload any) error {
	data, err := json.Marshal(room.Envelope{Event: event, Data: payload})
	if err != nil {
		return err
	}

	c.sendMu.Lock()
	if c.closed {
		c.sendMu.Unlock()
		return room.ErrConnectionClosed
	}
	select {
	case c.send <- data:
	default:
		c.sendMu.Unlock()
		return ErrSendBufferFull
	}
	c.sendMu.Unlock()

	c.Dispatch(event, payload)
	return nil
}

func (c *Client) IsSynthetic() bool { return false }

func (c *Client) close() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Hub maintains the set of live clients and hands their frames to a Handler
type Hub struct {
	handler Handler
	logger  logrus.FieldLogger

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done chan struct{}

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a new WebSocket hub
func NewHub(handler Handler, logger logrus.FieldLogger) *Hub {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Hub{
		handler:    handler,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[string]*Client),
	}
}

// Run starts the hub's event loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for _, client := range h.clients {
				client.close()
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return
		}
	}
}

// Count returns the number of live clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request. A client may present a previous identity with
// ?id=; it is reused unless another live client holds it by registration time.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &Client{
		Base:       room.NewBase(id),
		hub:        h,
		conn:       conn,
		name:       r.URL.Query().Get("name"),
		registered: make(chan struct{}),
		send:       make(chan []byte, sendBufferSize),
	}

	select {
	case h.register <- client:
		<-client.registered
	case <-h.done:
		conn.Close()
		return
	}

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// registerClient adds a client and announces it to the handler. A client whose
// requested id is already live gets a fresh one before anyone sees it.
func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	if _, taken := h.clients[client.ID()]; taken {
		client.Base = room.NewBase(uuid.NewString())
	}
	h.clients[client.ID()] = client
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{"conn": client.ID(), "total": total}).Info("Client connected")
	h.handler.HandleConnect(client, client.name)
	close(client.registered)
}

// unregisterClient removes a client and tells the handler it is gone
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.ID()]
	if ok && current == client {
		delete(h.clients, client.ID())
	}
	total := len(h.clients)
	h.mu.Unlock()
	if !ok || current != client {
		return
	}

	client.close()
	h.logger.WithFields(logrus.Fields{"conn": client.ID(), "total": total}).Info("Client disconnected")
	h.handler.HandleDisconnect(client)
}

// readPump pumps frames from the WebSocket connection to the handler
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.WithField("conn", c.ID()).WithError(err).Warn("WebSocket error")
			}
			break
		}

		var msg Inbound
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			_ = c.Emit("error", engine.ErrMalformedPayload)
			continue
		}
		c.hub.handler.HandleMessage(c, msg)
	}
}

// writePump pumps messages from the send queue to the WebSocket connection
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
