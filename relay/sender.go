//go:generate go run go.uber.org/mock/mockgen -source=sender.go -destination=../mocks/mock_chat_sender.go -package=mocks
package relay

import (
	"context"
	"time"

	"github.com/nicebartender/chatrelay/agent"
	"github.com/nicebartender/chatrelay/chat"
	"github.com/nicebartender/chatrelay/db"
	"github.com/nicebartender/chatrelay/ws"
)

// ChatSender is the agent backend. agent.Endpoint implements it.
type ChatSender interface {
	ChatSend(ctx context.Context, sessionKey, message string) (*agent.ChatResponse, error)
}

// Store is the delivery log.
type Store interface {
	InsertDelivery(msg chat.Message, deliveredAt time.Time) (*db.Delivery, error)
	SetReply(id, reply string) error
	SetError(id, errMsg string) error
}

type Broadcaster interface {
	Broadcast(event ws.RPCEvent)
}
