package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nicebartender/chatrelay/chat"
	"github.com/nicebartender/chatrelay/metrics"
	"github.com/nicebartender/chatrelay/ws"
)

const DefaultReplyTimeout = 2 * time.Minute

// Forwarder is the queue consumer. Deliver records the message, tells
// operators and hands it to the agent on a background goroutine, so the
// queue's cooldown starts as soon as the message leaves the queue.
type Forwarder struct {
	ctx     context.Context
	sender  ChatSender
	session string
	store   Store
	hub     Broadcaster
	log     *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time

	wg sync.WaitGroup
}

type ForwarderOption func(*Forwarder)

func WithStore(s Store) ForwarderOption { return func(f *Forwarder) { f.store = s } }

func WithBroadcaster(b Broadcaster) ForwarderOption { return func(f *Forwarder) { f.hub = b } }

func WithLogger(log *slog.Logger) ForwarderOption { return func(f *Forwarder) { f.log = log } }

func WithMetrics(m *metrics.Metrics) ForwarderOption { return func(f *Forwarder) { f.metrics = m } }

func WithReplyTimeout(d time.Duration) ForwarderOption {
	return func(f *Forwarder) { f.timeout = d }
}

// NewForwarder builds a consumer sending to session on sender. A nil sender
// only records and announces deliveries. Agent calls are cancelled with ctx.
func NewForwarder(ctx context.Context, sender ChatSender, session string, opts ...ForwarderOption) *Forwarder {
	f := &Forwarder{
		ctx:     ctx,
		sender:  sender,
		session: session,
		log:     slog.Default(),
		timeout: DefaultReplyTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Deliver implements dispatch.Consumer.
func (f *Forwarder) Deliver(msg chat.Message) {
	deliveredAt := f.now()
	id := msg.ID.String()

	if f.store != nil {
		if _, err := f.store.InsertDelivery(msg, deliveredAt); err != nil {
			f.log.Error("relay: record delivery failed", "id", id, "err", err)
		}
	}

	f.broadcast(ws.EventDelivered, map[string]any{
		"message":     msg,
		"deliveredAt": deliveredAt,
	})

	if f.sender == nil {
		return
	}

	f.wg.Add(1)
	go f.callAgent(msg)
}

// Wait blocks until every agent call started by Deliver has finished.
func (f *Forwarder) Wait() {
	f.wg.Wait()
}

func (f *Forwarder) callAgent(msg chat.Message) {
	defer f.wg.Done()

	id := msg.ID.String()
	ctx, cancel := context.WithTimeout(f.ctx, f.timeout)
	defer cancel()

	resp, err := f.sender.ChatSend(ctx, f.session, msg.String())
	if err != nil {
		f.log.Error("relay: chat.send failed", "id", id, "user", msg.Username, "err", err)
		f.metrics.AgentReply("error")
		if f.store != nil {
			if err := f.store.SetError(id, err.Error()); err != nil {
				f.log.Error("relay: record error failed", "id", id, "err", err)
			}
		}
		f.broadcast(ws.EventAgentError, map[string]any{"id": id, "error": err.Error()})
		return
	}

	f.metrics.AgentReply("ok")
	f.log.Info("relay: agent replied", "id", id, "user", msg.Username, "len", len(resp.Text))
	if f.store != nil {
		if err := f.store.SetReply(id, resp.Text); err != nil {
			f.log.Error("relay: record reply failed", "id", id, "err", err)
		}
	}
	f.broadcast(ws.EventAgentReply, map[string]any{"id": id, "text": resp.Text})
}

func (f *Forwarder) broadcast(event string, payload any) {
	if f.hub != nil {
		f.hub.Broadcast(ws.NewEvent(event, payload))
	}
}
