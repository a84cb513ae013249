// Package hub is the general-purpose WebSocket hub the dashboard and agents
// use for chat and push notifications. Clients identify themselves with an
// id ("teacher", or a student hostname); after that they can send chat
// messages to everyone or to a single client, and the backend can push
// arbitrary JSON to a named client.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// sendQueueSize bounds each client's outbound queue. Full queues drop, the
// same policy as the screen relay: never block a publisher on a dead reader.
const sendQueueSize = 64

// Conn is the subset of *websocket.Conn the hub drives.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Envelope is the JSON shape of every hub message.
type Envelope struct {
	Type      string `json:"type"` // identify | chat | system | notification | violation
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	ID        string `json:"id,omitempty"`
	Content   string `json:"content,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Hub routes messages between identified WebSocket clients.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	clients map[string]chan []byte
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.log = l }
}

// New creates an empty Hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		log:     slog.Default(),
		clients: make(map[string]chan []byte),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SendTo delivers payload to the named client if it is connected. Returns
// false when the client is absent or its queue is full.
func (h *Hub) SendTo(id string, payload []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch, ok := h.clients[id]
	if !ok {
		return false
	}
	select {
	case ch <- payload:
		return true
	default:
		return false
	}
}

// Broadcast delivers payload to every connected client except the one named
// by exclude (empty string excludes nobody).
func (h *Hub) Broadcast(payload []byte, exclude string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, ch := range h.clients {
		if id == exclude {
			continue
		}
		select {
		case ch <- payload:
		default:
		}
	}
}

func (h *Hub) register(id string) chan []byte {
	ch := make(chan []byte, sendQueueSize)
	h.mu.Lock()
	if old, ok := h.clients[id]; ok {
		// A reconnect with the same id replaces the stale registration.
		close(old)
	}
	h.clients[id] = ch
	h.mu.Unlock()
	return ch
}

// unregister removes the registration only if ch is still the live channel
// for id, and reports whether it did. A reconnect may already have replaced
// ch; the stale session's teardown must then leave the new one alone.
func (h *Hub) unregister(id string, ch chan []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[id]; ok && cur == ch {
		delete(h.clients, id)
		close(ch)
		return true
	}
	return false
}

// ServeConn drives one hub connection until it closes.
func (h *Hub) ServeConn(ctx context.Context, conn Conn) {
	var (
		clientID string
		queue    chan []byte
	)

	// Forwarding starts only after the client identifies; until then there
	// is nothing addressed to it.
	startForwarding := func(q chan []byte) {
		go func() {
			for msg := range q {
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					break
				}
			}
			conn.Close()
		}()
	}

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if mt != websocket.TextMessage {
			continue
		}

		var msg Envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "identify":
			if clientID != "" {
				continue // already identified
			}
			clientID = msg.ID
			if clientID == "" {
				clientID = uuid.NewString()
			}
			queue = h.register(clientID)
			startForwarding(queue)

			h.broadcastSystem(clientID+" joined the chat", clientID)
			h.log.InfoContext(ctx, "hub client identified", "id", clientID)

		case "chat":
			if clientID == "" {
				continue // chat before identify is dropped
			}
			to := msg.To
			if to == "" {
				to = "all"
			}
			out, err := json.Marshal(Envelope{
				Type:      "chat",
				From:      clientID,
				To:        to,
				Content:   msg.Content,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				continue
			}
			if to == "all" {
				h.Broadcast(out, "")
			} else {
				h.SendTo(to, out)
				// Echo back so the sender sees its own message in order.
				h.SendTo(clientID, out)
			}
		}
	}

	if clientID != "" && h.unregister(clientID, queue) {
		h.broadcastSystem(clientID+" left the chat", clientID)
		h.log.InfoContext(ctx, "hub client disconnected", "id", clientID)
	}
	conn.Close()
}

func (h *Hub) broadcastSystem(content, exclude string) {
	out, err := json.Marshal(Envelope{
		Type:      "system",
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	h.Broadcast(out, exclude)
}
