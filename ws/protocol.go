package ws

import "encoding/json"

// RPCMessage is the type-peek for incoming frames.
type RPCMessage struct {
	Type   string          `json:"type"`
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Event  string          `json:"event,omitempty"`
}

// RPCRequest is an authenticated operator request.
type RPCRequest struct {
	ID     string
	Method string
	Params map[string]json.RawMessage
}

type RPCResponse struct {
	Type    string    `json:"type"`
	ID      string    `json:"id"`
	OK      bool      `json:"ok"`
	Payload any       `json:"payload,omitempty"`
	Error   *RPCError `json:"error,omitempty"`
}

type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RPCEvent struct {
	Type    string `json:"type"`
	Event   string `json:"event"`
	Payload any    `json:"payload,omitempty"`
}

// Event names pushed to operators.
const (
	EventChallenge    = "connect.challenge"
	EventTick         = "tick"
	EventChatReceived = "chat.received"
	EventDelivered    = "queue.delivered"
	EventAgentReply   = "agent.reply"
	EventAgentError   = "agent.error"
)

// Responder is where a request's answer goes; *Client implements it.
type Responder interface {
	SendJSON(v any)
}

func NewResponse(id string, payload any) RPCResponse {
	return RPCResponse{Type: "res", ID: id, OK: true, Payload: payload}
}

func NewErrorResponse(id, code, message string) RPCResponse {
	return RPCResponse{
		Type:  "res",
		ID:    id,
		OK:    false,
		Error: &RPCError{Code: code, Message: message},
	}
}

func NewEvent(event string, payload any) RPCEvent {
	return RPCEvent{Type: "event", Event: event, Payload: payload}
}
