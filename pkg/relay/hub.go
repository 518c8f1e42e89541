package relay

import (
	"context"

	"github.com/campusgrid/campusgrid/pkg/log"
	"github.com/campusgrid/campusgrid/pkg/messages"
)

// inboundMessage pairs a raw wire message with the client that sent it.
type inboundMessage struct {
	client *Client
	data   []byte
}

// Hub routes messages between connected clients and tracks every
// player's last reported position. All hub state is owned by the Run
// goroutine; clients communicate with it through channels only.
type Hub struct {
	clients map[*Client]string // client -> player id ("" until join)
	players map[string]messages.PlayerEntry

	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]string),
		players:    make(map[string]messages.PlayerEntry),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundMessage),
		done:       make(chan struct{}),
	}
}

// Run processes hub events until the context is canceled. Once it
// returns, done is closed and pump goroutines stop handing off to the
// hub instead of blocking on its channels.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
			}
			return
		case client := <-h.register:
			h.clients[client] = ""
		case client := <-h.unregister:
			if playerID, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				if playerID != "" {
					delete(h.players, playerID)
					log.Info("Player %s left", playerID)
				}
			}
		case msg := <-h.inbound:
			h.handleMessage(msg.client, msg.data)
		}
	}
}

func (h *Hub) handleMessage(client *Client, data []byte) {
	msg, err := messages.DeserializeMessage(data)
	if err != nil {
		log.Warn("Dropping undecodable client message: %v", err)
		return
	}

	switch m := msg.(type) {
	case *messages.Join:
		h.clients[client] = m.ID
		if _, ok := h.players[m.ID]; !ok {
			h.players[m.ID] = messages.PlayerEntry{X: 1, Y: 1}
		}
		log.Info("Player %s joined", m.ID)
		h.broadcast(client, data)
	case *messages.Update:
		h.clients[client] = m.ID
		h.players[m.ID] = messages.PlayerEntry{X: m.X, Y: m.Y, Map: m.Map}
		h.broadcast(client, data)
	case *messages.RequestPositions:
		h.sendPositions(client)
	default:
		log.Warn("Dropping unexpected client message type %T", msg)
	}
}

// broadcast sends data to every client except the sender.
func (h *Hub) broadcast(sender *Client, data []byte) {
	for client := range h.clients {
		if client == sender {
			continue
		}
		select {
		case client.send <- data:
		default:
			// the client is too slow to keep up; drop it
			h.dropClient(client)
		}
	}
}

// dropClient removes a client together with its player entry, so that
// later positions snapshots never carry the dropped player as a ghost.
func (h *Hub) dropClient(client *Client) {
	playerID, ok := h.clients[client]
	if !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	if playerID != "" {
		delete(h.players, playerID)
		log.Info("Player %s dropped", playerID)
	}
}

// sendPositions answers a snapshot request with every known player.
// Receivers filter out their own entry themselves.
func (h *Hub) sendPositions(client *Client) {
	players := make(map[string]messages.PlayerEntry, len(h.players))
	for id, entry := range h.players {
		players[id] = entry
	}

	data, err := messages.SerializeMessage(messages.NewPositions(players))
	if err != nil {
		log.Error("Failed to serialize positions snapshot: %v", err)
		return
	}

	select {
	case client.send <- data:
	default:
		h.dropClient(client)
	}
}
