package web

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/dougsko/lorahat/pkg/logging"
	"github.com/dougsko/lorahat/pkg/storage"
)

// ErrHubClosed is returned by Record after the hub stopped
var ErrHubClosed = errors.New("hub closed")

// Message is the envelope pushed to websocket clients
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Hub keeps the connected websocket clients and fans frames out to them.
// It implements storage.Sink so the receiver can record straight into it.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a hub; call Run to start it
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run serves register, unregister and broadcast until ctx is done or
// Close is called.
func (h *Hub) Run(ctx context.Context) {
	logging.Debug("web", "websocket hub started")
	defer h.dropAll()
	defer h.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			logging.Info("web", "websocket client registered", logging.Fields{
				"remote": client.remoteAddr(), "clients": total})

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Info("web", "websocket client unregistered", logging.Fields{
				"remote": client.remoteAddr(), "clients": total})

		case msg := <-h.broadcast:
			data, err := json.Marshal(msg)
			if err != nil {
				logging.Errorf("web", "marshal broadcast: %v", err)
				continue
			}

			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// slow client
					close(client.send)
					delete(h.clients, client)
					logging.Warn("web", "client send buffer full, dropping", logging.Fields{
						"remote": client.remoteAddr()})
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Broadcast queues msg for every client; it never blocks
func (h *Hub) Broadcast(msg Message) bool {
	select {
	case h.broadcast <- msg:
		return true
	default:
		logging.Warnf("web", "broadcast channel full, %s message dropped", msg.Type)
		return false
	}
}

// Record pushes a frame to the live view
func (h *Hub) Record(rec storage.FrameRecord) error {
	select {
	case <-h.done:
		return ErrHubClosed
	default:
	}
	h.Broadcast(Message{Type: "frame", Timestamp: rec.Timestamp, Data: rec})
	return nil
}

// Close stops Run
func (h *Hub) Close() error {
	h.closeOnce.Do(func() { close(h.done) })
	return nil
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
