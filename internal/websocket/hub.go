package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

type directMessage struct {
	email   string
	payload []byte
}

// Hub maintains the set of active clients and routes notifications to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Messages for every connected client.
	broadcast chan []byte

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Messages addressed to a single account.
	direct chan directMessage

	// A map of account emails to the set of clients connected as that account.
	subscriptions map[string]map[*Client]bool

	done chan struct{}
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:     make(chan []byte, 64),
		Register:      make(chan *Client),
		Unregister:    make(chan *Client),
		direct:        make(chan directMessage, 64),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		done:          make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			h.addSubscription(client)
			log.Info().Int("total_clients", len(h.clients)).Str("email", client.Email).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				h.deliver(client, message)
			}
		case msg := <-h.direct:
			for client := range h.subscriptions[msg.email] {
				h.deliver(client, msg.payload)
			}
		}
	}
}

// Stop disconnects every client and ends Run.
func (h *Hub) Stop() {
	close(h.done)
}

// Join registers client. It reports false once the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters client. It is a no-op once the hub has stopped.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Notify queues a message for every connection of the given account. It never
// blocks: when the queue is full the message is dropped and false is returned.
func (h *Hub) Notify(email, action string, payload interface{}) bool {
	raw, ok := encode(action, payload)
	if !ok {
		return false
	}
	select {
	case h.direct <- directMessage{email: email, payload: raw}:
		return true
	default:
		log.Warn().Str("email", email).Str("action", action).Msg("Notification queue full, dropping message")
		return false
	}
}

// Publish queues a message for every connected client. Like Notify it never blocks.
func (h *Hub) Publish(action string, payload interface{}) bool {
	raw, ok := encode(action, payload)
	if !ok {
		return false
	}
	select {
	case h.broadcast <- raw:
		return true
	default:
		log.Warn().Str("action", action).Msg("Broadcast queue full, dropping message")
		return false
	}
}

func encode(action string, payload interface{}) ([]byte, bool) {
	raw, err := json.Marshal(Message{Action: action, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to encode notification")
		return nil, false
	}
	return raw, true
}

func (h *Hub) deliver(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		h.drop(client)
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	h.removeSubscription(client)
}

func (h *Hub) addSubscription(client *Client) {
	if h.subscriptions[client.Email] == nil {
		h.subscriptions[client.Email] = make(map[*Client]bool)
	}
	h.subscriptions[client.Email][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	subs, ok := h.subscriptions[client.Email]
	if !ok {
		return
	}
	delete(subs, client)
	if len(subs) == 0 {
		delete(h.subscriptions, client.Email)
	}
}
