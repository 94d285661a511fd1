package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/nicebartender/chatrelay/agent"
	"github.com/nicebartender/chatrelay/chat"
	"github.com/nicebartender/chatrelay/db"
	"github.com/nicebartender/chatrelay/dispatch"
	"github.com/nicebartender/chatrelay/mocks"
	"github.com/nicebartender/chatrelay/moderation"
	"github.com/nicebartender/chatrelay/twitch"
	"github.com/nicebartender/chatrelay/ws"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type events struct {
	mu  sync.Mutex
	got []ws.RPCEvent
}

func (e *events) Broadcast(event ws.RPCEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.got = append(e.got, event)
}

func (e *events) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.got))
	for i, ev := range e.got {
		out[i] = ev.Event
	}
	return out
}

func message(t *testing.T, user, body string) chat.Message {
	t.Helper()
	m, err := chat.NewMessage(user, body, time.Now())
	require.NoError(t, err)
	return m
}

func TestForwarder_Deliver(t *testing.T) {
	req := require.New(t)

	t.Run("agent replies", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := mocks.NewMockChatSender(ctrl)
		store := mocks.NewMockStore(ctrl)
		hub := &events{}
		msg := message(t, "alice", "hi bot")

		gomock.InOrder(
			store.EXPECT().InsertDelivery(msg, gomock.Any()).Return(&db.Delivery{ID: msg.ID.String()}, nil),
			sender.EXPECT().ChatSend(gomock.Any(), "main", "alice: hi bot").Return(&agent.ChatResponse{Text: "hello alice"}, nil),
			store.EXPECT().SetReply(msg.ID.String(), "hello alice").Return(nil),
		)

		f := NewForwarder(context.Background(), sender, "main",
			WithStore(store), WithBroadcaster(hub), WithLogger(quiet))
		f.Deliver(msg)
		f.Wait()

		req.Equal([]string{ws.EventDelivered, ws.EventAgentReply}, hub.names())
	})

	t.Run("agent fails", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := mocks.NewMockChatSender(ctrl)
		store := mocks.NewMockStore(ctrl)
		hub := &events{}
		msg := message(t, "bob", "yo")

		store.EXPECT().InsertDelivery(msg, gomock.Any()).Return(&db.Delivery{ID: msg.ID.String()}, nil)
		sender.EXPECT().ChatSend(gomock.Any(), "main", "bob: yo").Return(nil, errors.New("agent aborted"))
		store.EXPECT().SetError(msg.ID.String(), "agent aborted").Return(nil)

		f := NewForwarder(context.Background(), sender, "main",
			WithStore(store), WithBroadcaster(hub), WithLogger(quiet))
		f.Deliver(msg)
		f.Wait()

		req.Equal([]string{ws.EventDelivered, ws.EventAgentError}, hub.names())
	})

	t.Run("store failure does not block the agent", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		sender := mocks.NewMockChatSender(ctrl)
		store := mocks.NewMockStore(ctrl)
		msg := message(t, "carol", "hey")

		store.EXPECT().InsertDelivery(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk full"))
		sender.EXPECT().ChatSend(gomock.Any(), gomock.Any(), gomock.Any()).Return(&agent.ChatResponse{Text: "ok"}, nil)
		store.EXPECT().SetReply(msg.ID.String(), "ok").Return(errors.New("disk full"))

		f := NewForwarder(context.Background(), sender, "main", WithStore(store), WithLogger(quiet))
		f.Deliver(msg)
		f.Wait()
	})

	t.Run("no sender only records", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockStore(ctrl)
		hub := &events{}
		msg := message(t, "dave", "hello")

		store.EXPECT().InsertDelivery(msg, gomock.Any()).Return(&db.Delivery{ID: msg.ID.String()}, nil)

		f := NewForwarder(context.Background(), nil, "main",
			WithStore(store), WithBroadcaster(hub), WithLogger(quiet))
		f.Deliver(msg)
		f.Wait()

		req.Equal([]string{ws.EventDelivered}, hub.names())
	})
}

func TestForwarder_DoesNotHoldTheQueue(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockChatSender(ctrl)

	release := make(chan struct{})
	sender.EXPECT().ChatSend(gomock.Any(), "main", gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _ string) (*agent.ChatResponse, error) {
			<-release
			return &agent.ChatResponse{Text: "done"}, nil
		}).Times(2)

	f := NewForwarder(context.Background(), sender, "main", WithLogger(quiet))
	q := dispatch.New(dispatch.WithCooldown(0), dispatch.WithLogger(quiet))
	q.RegisterConsumer(f.Deliver)

	q.Enqueue(message(t, "alice", "1"))
	q.Enqueue(message(t, "bob", "2"))
	q.ForceCheckIdle()

	req.Equal(0, q.Len())
	req.Equal(dispatch.Idle, q.State())

	close(release)
	f.Wait()
}

func TestForwarder_ReplyTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockChatSender(ctrl)
	hub := &events{}

	sender.EXPECT().ChatSend(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _, _ string) (*agent.ChatResponse, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	f := NewForwarder(context.Background(), sender, "main",
		WithBroadcaster(hub), WithLogger(quiet), WithReplyTimeout(10*time.Millisecond))
	f.Deliver(message(t, "alice", "slow"))
	f.Wait()

	require.Equal(t, []string{ws.EventDelivered, ws.EventAgentError}, hub.names())
}

func TestIngest_CensorsQueuesAndDispatches(t *testing.T) {
	req := require.New(t)
	mod, err := moderation.NewModerator([]string{"badger"}, '*', quiet)
	req.NoError(err)

	q := dispatch.New(dispatch.WithCooldown(time.Hour), dispatch.WithLogger(quiet))
	var got []chat.Message
	q.RegisterConsumer(func(m chat.Message) { got = append(got, m) })
	hub := &events{}

	sink := Ingest(q, mod, hub, quiet)
	sink(message(t, "alice", "the badger is here"))
	sink(message(t, "bob", "second"))

	req.Len(got, 1)
	req.Equal("the ****** is here", got[0].Message)
	req.Equal(1, q.Len())
	req.Equal(dispatch.Cooldown, q.State())
	req.Equal([]string{ws.EventChatReceived, ws.EventChatReceived}, hub.names())
}

func TestIngest_NilCollaborators(t *testing.T) {
	q := dispatch.New(dispatch.WithCooldown(0), dispatch.WithLogger(quiet))
	var got []string
	q.RegisterConsumer(func(m chat.Message) { got = append(got, m.String()) })

	sink := Ingest(q, nil, nil, nil)
	sink(message(t, "alice", "hi"))

	require.Equal(t, []string{"alice: hi"}, got)
}

func TestFollowConnection(t *testing.T) {
	req := require.New(t)
	q := dispatch.New(dispatch.WithCooldown(0), dispatch.WithLogger(quiet))
	var got []string
	q.RegisterConsumer(func(m chat.Message) { got = append(got, m.String()) })
	hook := FollowConnection(q, quiet)

	hook(twitch.Disconnected)
	req.True(q.Paused())

	q.Enqueue(message(t, "alice", "while away"))
	q.ForceCheckIdle()
	req.Empty(got)

	hook(twitch.Connecting)
	req.True(q.Paused())

	hook(twitch.Connected)
	req.False(q.Paused())
	req.Equal([]string{"alice: while away"}, got)
}

func TestFollowConnection_ReconnectKeepsCooldown(t *testing.T) {
	req := require.New(t)
	mock := clock.NewMock()
	q := dispatch.New(dispatch.WithClock(mock), dispatch.WithLogger(quiet))
	var mu sync.Mutex
	var got []string
	q.RegisterConsumer(func(m chat.Message) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, m.String())
	})
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(got)
	}
	hook := FollowConnection(q, quiet)

	q.Enqueue(message(t, "alice", "1"))
	q.Enqueue(message(t, "bob", "2"))
	q.ForceCheckIdle()
	req.Equal(1, count())

	mock.Add(time.Second)
	hook(twitch.Disconnected)
	hook(twitch.Connecting)
	hook(twitch.Connected)
	req.Equal(1, count())

	mock.Add(dispatch.DefaultCooldown - time.Second)
	req.Eventually(func() bool { return count() == 2 }, time.Second, 5*time.Millisecond)
}
