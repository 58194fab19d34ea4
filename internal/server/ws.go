package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// Size of client send buffer.
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins; the server is a local tool, not an internet-facing service.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsClient is a single websocket connection watching one job.
type wsClient struct {
	hub   *WSHub
	conn  *websocket.Conn
	jobID string
	send  chan []byte
}

// readPump drains the connection so close frames and pongs are
// processed. Clients only listen; incoming payloads are discarded.
func (c *wsClient) readPump() {
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
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("Websocket read error", "error", err)
			}
			break
		}
	}
}

// writePump pumps events from the hub to the websocket connection.
func (c *wsClient) writePump() {
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
				// The hub closed the channel.
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

// WSHub maintains the set of active websocket clients and routes
// progress events to the clients watching each job.
type WSHub struct {
	mu         sync.RWMutex
	clients    map[*wsClient]bool
	broadcast  chan wsEnvelope
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
}

type wsEnvelope struct {
	jobID string
	data  []byte
}

// NewWSHub creates a new websocket hub.
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan wsEnvelope, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop.
func (h *WSHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			slog.Debug("Websocket client connected", "jobID", client.jobID, "total", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			slog.Debug("Websocket client disconnected", "jobID", client.jobID, "total", h.ClientCount())

		case env := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				if client.jobID != env.jobID {
					continue
				}
				select {
				case client.send <- env.data:
				default:
					// Client buffer is full, drop the connection.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop gracefully stops the hub.
func (h *WSHub) Stop() {
	close(h.done)
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastJob sends a progress event to all clients watching a job.
// Events are dropped silently when the hub's buffer is full.
func (h *WSHub) BroadcastJob(event ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal websocket event", "error", err)
		return
	}

	select {
	case h.broadcast <- wsEnvelope{jobID: event.JobID, data: data}:
	default:
	}
}

// serveWS upgrades an HTTP request to a websocket subscribed to a job.
func serveWS(hub *WSHub, w http.ResponseWriter, r *http.Request, jobID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		hub:   hub,
		conn:  conn,
		jobID: jobID,
		send:  make(chan []byte, sendBufferSize),
	}
	hub.register <- client

	go client.writePump()
	go client.readPump()
}
