package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"leadboard/internal/events"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Event names the board UI listens for.
const (
	EventQR              = "whatsapp-qr"
	EventWhatsAppStatus  = "whatsapp-status"
	EventMessageUpdate   = "message-update"
	EventAutoSyncStatus  = "auto-sync-status"
	EventAutoSyncSuccess = "auto-sync-success"
	EventAutoSyncError   = "auto-sync-error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // the UI is served from another origin
	},
}

// Client represents a connected WebSocket client
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of active clients and relays bus events to them.
type Hub struct {
	bus        *events.Bus
	log        *zap.Logger
	sub        <-chan events.Event
	cancel     func()
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.Mutex
	lastQR     string
}

// NewHub subscribes to bus right away so events emitted before Run starts
// are queued rather than lost.
func NewHub(bus *events.Bus, log *zap.Logger) *Hub {
	sub, cancel := bus.Subscribe(256)
	return &Hub{
		bus:        bus,
		log:        log.Named("ws"),
		sub:        sub,
		cancel:     cancel,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// WSEvent is the frame sent to clients.
type WSEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Run relays events until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer h.cancel()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			qr := h.lastQR
			h.mu.Unlock()
			h.log.Debug("websocket client registered")
			if qr != "" {
				if payload, err := encode(EventQR, events.QRData{Code: qr}); err == nil {
					client.send <- payload
				}
			}

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug("websocket client unregistered")

		case e, ok := <-h.sub:
			if !ok {
				return
			}
			h.track(e)
			name := EventName(e.Kind)
			if name == "" {
				continue
			}
			payload, err := encode(name, e.Data)
			if err != nil {
				h.log.Error("error marshaling ws event", zap.Error(err))
				continue
			}
			h.broadcast(payload)
		}
	}
}

func (h *Hub) track(e events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch e.Kind {
	case events.KindQR:
		if d, ok := e.Data.(events.QRData); ok {
			h.lastQR = d.Code
		}
	case events.KindReady, events.KindLoggedOut:
		h.lastQR = ""
	}
}

func (h *Hub) broadcast(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// LastQR is the pairing code replayed to newly connected clients.
func (h *Hub) LastQR() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastQR
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// EventName maps a bus event kind to the name the UI listens for.
func EventName(kind events.Kind) string {
	switch kind {
	case events.KindQR:
		return EventQR
	case events.KindReady, events.KindDisconnected, events.KindLoggedOut, events.KindError:
		return EventWhatsAppStatus
	case events.KindMessageReceived, events.KindMessageSent:
		return EventMessageUpdate
	case events.KindSyncStatus:
		return EventAutoSyncStatus
	case events.KindSyncSuccess:
		return EventAutoSyncSuccess
	case events.KindSyncError:
		return EventAutoSyncError
	}
	return ""
}

func encode(eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(WSEvent{Type: eventType, Data: data})
}

func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade error", zap.Error(err))
		return
	}
	client := &Client{hub: h, conn: conn, send: make(chan []byte, 256)}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	for {
		// clients only send pings
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	defer func() {
		c.conn.Close()
	}()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
