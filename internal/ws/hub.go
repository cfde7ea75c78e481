// Package ws broadcasts live telemetry snapshots to dashboard clients
// over websockets.
package ws

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/aegisharvest/coldchain/pkg/models"
)

// Hub maintains the set of connected clients and fans out broadcasts.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run owns the client set; all mutation happens on this goroutine.
// Returns when ctx is cancelled, closing every client send channel.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			log.Debug().Str("remote", client.remoteAddr()).Int("clients", len(h.clients)).Msg("ws client registered")

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				log.Debug().Str("remote", client.remoteAddr()).Int("clients", len(h.clients)).Msg("ws client unregistered")
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop it.
					delete(h.clients, client)
					close(client.send)
					log.Warn().Str("remote", client.remoteAddr()).Msg("ws client send buffer full, dropping")
				}
			}
		}
	}
}

// BroadcastTelemetry fans out one snapshot to every connected client.
// Never blocks the caller: if the hub's buffer is full the frame is dropped.
func (h *Hub) BroadcastTelemetry(snapshot models.TelemetrySnapshot) {
	payload, err := json.Marshal(map[string]any{"type": "telemetry", "payload": snapshot})
	if err != nil {
		log.Error().Err(err).Msg("marshal telemetry broadcast")
		return
	}
	select {
	case h.broadcast <- payload:
	default:
		log.Warn().Msg("ws broadcast buffer full, frame dropped")
	}
}
