// Package rpc answers operator requests arriving over the ws hub.
package rpc

import (
	"encoding/json"
	"log/slog"

	"github.com/nicebartender/chatrelay/chat"
	"github.com/nicebartender/chatrelay/db"
	"github.com/nicebartender/chatrelay/dispatch"
	"github.com/nicebartender/chatrelay/twitch"
	"github.com/nicebartender/chatrelay/ws"
)

type Router struct {
	Hub    *ws.Hub
	Queue  *dispatch.Queue
	DB     *db.DB
	Twitch *twitch.Client

	// Ingest takes operator-injected messages the same way chat lines are
	// taken. Nil enqueues directly.
	Ingest func(chat.Message)
}

func NewRouter(hub *ws.Hub, queue *dispatch.Queue, database *db.DB, tw *twitch.Client) *Router {
	r := &Router{Hub: hub, Queue: queue, DB: database, Twitch: tw}
	hub.RPCRouter = r.Handle
	return r
}

func (r *Router) Handle(client ws.Responder, req ws.RPCRequest) {
	slog.Info("RPC", "method", req.Method)

	switch req.Method {
	case "queue.status":
		r.handleQueueStatus(client, req)
	case "queue.enqueue":
		r.handleQueueEnqueue(client, req)
	case "queue.dispatch":
		r.handleQueueDispatch(client, req)
	case "queue.drain":
		r.handleQueueDrain(client, req)
	case "queue.clear":
		r.handleQueueClear(client, req)
	case "queue.pause":
		r.handleQueuePause(client, req)
	case "queue.resume":
		r.handleQueueResume(client, req)
	case "deliveries.history":
		r.handleDeliveriesHistory(client, req)
	case "twitch.status":
		r.handleTwitchStatus(client, req)
	default:
		client.SendJSON(ws.NewErrorResponse(req.ID, "UNKNOWN_METHOD", "Unknown method: "+req.Method))
	}
}

// helpers

func jsonString(raw json.RawMessage) string {
	var s string
	if raw != nil {
		json.Unmarshal(raw, &s)
	}
	return s
}

func jsonInt(raw json.RawMessage) int {
	var i int
	if raw != nil {
		json.Unmarshal(raw, &i)
	}
	return i
}
