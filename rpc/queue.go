package rpc

import (
	"time"

	"github.com/nicebartender/chatrelay/chat"
	"github.com/nicebartender/chatrelay/ws"
)

func (r *Router) queueStatus() map[string]any {
	return map[string]any{
		"state":  r.Queue.State().String(),
		"length": r.Queue.Len(),
		"paused": r.Queue.Paused(),
	}
}

func (r *Router) handleQueueStatus(client ws.Responder, req ws.RPCRequest) {
	client.SendJSON(ws.NewResponse(req.ID, r.queueStatus()))
}

func (r *Router) handleQueueEnqueue(client ws.Responder, req ws.RPCRequest) {
	username := jsonString(req.Params["username"])
	body := jsonString(req.Params["message"])

	msg, err := chat.NewMessage(username, body, time.Now())
	if err != nil {
		client.SendJSON(ws.NewErrorResponse(req.ID, "INVALID_PARAMS", err.Error()))
		return
	}

	if r.Ingest != nil {
		r.Ingest(msg)
	} else {
		r.Queue.Enqueue(msg)
		r.Queue.ForceCheckIdle()
	}

	resp := r.queueStatus()
	resp["id"] = msg.ID.String()
	client.SendJSON(ws.NewResponse(req.ID, resp))
}

func (r *Router) handleQueueDispatch(client ws.Responder, req ws.RPCRequest) {
	r.Queue.ForceCheckIdle()
	client.SendJSON(ws.NewResponse(req.ID, r.queueStatus()))
}

func (r *Router) handleQueueDrain(client ws.Responder, req ws.RPCRequest) {
	n := r.Queue.DrainNow()
	resp := r.queueStatus()
	resp["delivered"] = n
	client.SendJSON(ws.NewResponse(req.ID, resp))
}

func (r *Router) handleQueueClear(client ws.Responder, req ws.RPCRequest) {
	dropped := r.Queue.Len()
	r.Queue.Clear()
	resp := r.queueStatus()
	resp["dropped"] = dropped
	client.SendJSON(ws.NewResponse(req.ID, resp))
}

func (r *Router) handleQueuePause(client ws.Responder, req ws.RPCRequest) {
	r.Queue.Pause()
	client.SendJSON(ws.NewResponse(req.ID, r.queueStatus()))
}

func (r *Router) handleQueueResume(client ws.Responder, req ws.RPCRequest) {
	r.Queue.Resume()
	client.SendJSON(ws.NewResponse(req.ID, r.queueStatus()))
}
