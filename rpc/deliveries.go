package rpc

import (
	"github.com/samber/lo"

	"github.com/nicebartender/chatrelay/db"
	"github.com/nicebartender/chatrelay/ws"
)

func (r *Router) handleDeliveriesHistory(client ws.Responder, req ws.RPCRequest) {
	if r.DB == nil {
		client.SendJSON(ws.NewErrorResponse(req.ID, "UNAVAILABLE", "delivery log disabled"))
		return
	}

	deliveries, err := r.DB.RecentDeliveries(jsonInt(req.Params["limit"]))
	if err != nil {
		client.SendJSON(ws.NewErrorResponse(req.ID, "DB_ERROR", err.Error()))
		return
	}
	if deliveries == nil {
		deliveries = []db.Delivery{}
	}

	pending := lo.CountBy(deliveries, func(d db.Delivery) bool {
		return d.Reply == nil && d.Error == nil
	})

	client.SendJSON(ws.NewResponse(req.ID, map[string]any{
		"deliveries": deliveries,
		"pending":    pending,
	}))
}

func (r *Router) handleTwitchStatus(client ws.Responder, req ws.RPCRequest) {
	if r.Twitch == nil {
		client.SendJSON(ws.NewResponse(req.ID, map[string]any{"state": "disabled"}))
		return
	}
	client.SendJSON(ws.NewResponse(req.ID, map[string]any{
		"state":   r.Twitch.State().String(),
		"channel": r.Twitch.Channel(),
	}))
}
