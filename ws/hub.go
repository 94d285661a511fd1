package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nicebartender/chatrelay/db"
)

const tickInterval = 10 * time.Second

// OperatorStore records operators that authenticate.
type OperatorStore interface {
	TouchOperator(id, displayName string) (*db.Operator, error)
}

// Hub tracks operator connections, authenticates them and fans relay events
// out to every authenticated operator.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	stopped    chan struct{}
	mu         sync.RWMutex

	token string
	store OperatorStore
	log   *slog.Logger

	RPCRouter func(client Responder, req RPCRequest)
}

func NewHub(token string, store OperatorStore, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopped:    make(chan struct{}),
		token:      token,
		store:      store,
		log:        log,
	}
}

// Run owns client registration until ctx is done, then drops every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				h.dropLocked(client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			nonce := generateNonce()
			client.challenge(nonce)

			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

			client.SendJSON(NewEvent(EventChallenge, map[string]string{"nonce": nonce}))
			h.log.Info("operator connected, challenge sent")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.dropLocked(client)
				id, _ := client.Identity()
				h.log.Info("operator unregistered", "operatorID", id.OperatorID)
			}
			h.mu.Unlock()
		}
	}
}

// dropLocked forgets client and closes done, which stops its writer. send
// stays open: late replies and ticks may still race with the drop.
func (h *Hub) dropLocked(client *Client) {
	delete(h.clients, client)
	close(client.done)
}

// Register hands client to Run, which answers with a challenge. It is a
// no-op once Run has stopped.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.stopped:
		close(client.done)
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.stopped:
	}
}

// Broadcast sends event to every authenticated operator.
func (h *Hub) Broadcast(event RPCEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.IsAuthenticated() {
			client.SendJSON(event)
		}
	}
}

// OperatorCount reports authenticated operators.
func (h *Hub) OperatorCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.IsAuthenticated() {
			n++
		}
	}
	return n
}

func (h *Hub) handleMessage(client *Client, data []byte) {
	var msg RPCMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.log.Warn("invalid message", "err", err)
		return
	}

	if msg.Type != "req" {
		h.log.Warn("unknown message type", "type", msg.Type)
		return
	}

	if msg.Method == "connect" {
		h.handleConnect(client, msg)
		return
	}

	if !client.IsAuthenticated() {
		client.SendJSON(NewErrorResponse(msg.ID, "AUTH_REQUIRED", "Not authenticated"))
		return
	}

	var params map[string]json.RawMessage
	if msg.Params != nil {
		json.Unmarshal(msg.Params, &params)
	}
	if params == nil {
		params = make(map[string]json.RawMessage)
	}

	if h.RPCRouter != nil {
		h.RPCRouter(client, RPCRequest{ID: msg.ID, Method: msg.Method, Params: params})
	}
}

func (h *Hub) handleConnect(client *Client, msg RPCMessage) {
	operatorID, displayName, err := VerifyConnect(msg.Params, client.challengeNonce(), h.token)
	if err != nil {
		h.log.Warn("operator auth failed", "err", err)
		client.SendJSON(NewErrorResponse(msg.ID, "AUTH_FAILED", err.Error()))
		return
	}

	if h.store != nil {
		if _, err := h.store.TouchOperator(operatorID, displayName); err != nil {
			h.log.Error("touch operator failed", "err", err)
		}
	}

	client.authenticate(Identity{OperatorID: operatorID, DisplayName: displayName})
	client.SendJSON(NewResponse(msg.ID, map[string]any{
		"operatorId": operatorID,
		"policy": map[string]any{
			"tickIntervalMs": tickInterval.Milliseconds(),
		},
	}))

	h.log.Info("operator authenticated", "operatorID", operatorID, "displayName", displayName)

	go h.tickLoop(client)
}

func (h *Hub) tickLoop(client *Client) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-client.done:
			return
		case <-ticker.C:
			client.SendJSON(NewEvent(EventTick, nil))
		}
	}
}

func generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
