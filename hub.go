package main

import (
	"context"
	"log/slog"
)

const pushBuffer = 256

type pushMessage struct {
	playerID string
	payload  []byte
}

// Hub fans rendered fragments out to every open socket of a player.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	push       chan pushMessage
	done       chan struct{}
	log        *slog.Logger
}

func newHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    map[string]map[*Client]bool{},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		push:       make(chan pushMessage, pushBuffer),
		done:       make(chan struct{}),
		log:        log,
	}
}

func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = map[string]map[*Client]bool{}
			return

		case client := <-h.register:
			if h.clients[client.playerID] == nil {
				h.clients[client.playerID] = map[*Client]bool{}
			}
			h.clients[client.playerID][client] = true

		case client := <-h.unregister:
			h.drop(client)

		case msg := <-h.push:
			for client := range h.clients[msg.playerID] {
				select {
				case client.send <- msg.payload:
				default:
					h.log.Warn("live client too slow, dropping", "player", msg.playerID)
					h.drop(client)
				}
			}
		}
	}
}

// attach registers client unless the hub has stopped.
func (h *Hub) attach(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// detach unregisters client; after shutdown there is nothing left to do.
func (h *Hub) detach(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) drop(client *Client) {
	set := h.clients[client.playerID]
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.playerID)
	}
}

// Push queues payload for the player's sockets. It never blocks; when the
// queue is full the update is dropped and the next page load catches up.
func (h *Hub) Push(playerID string, payload []byte) {
	select {
	case h.push <- pushMessage{playerID: playerID, payload: payload}:
	default:
		h.log.Warn("live push queue full", "player", playerID)
	}
}
