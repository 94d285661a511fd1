package rpc

import (
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nicebartender/chatrelay/chat"
	"github.com/nicebartender/chatrelay/db"
	"github.com/nicebartender/chatrelay/dispatch"
	"github.com/nicebartender/chatrelay/twitch"
	"github.com/nicebartender/chatrelay/ws"
)

type responder struct {
	mu  sync.Mutex
	out []ws.RPCResponse
}

func (r *responder) SendJSON(v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, v.(ws.RPCResponse))
}

func (r *responder) last(t *testing.T) ws.RPCResponse {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.out)
	return r.out[len(r.out)-1]
}

func (r *responder) payload(t *testing.T) map[string]any {
	t.Helper()
	res := r.last(t)
	require.True(t, res.OK, "response error: %+v", res.Error)
	p, ok := res.Payload.(map[string]any)
	require.True(t, ok)
	return p
}

type recorder struct {
	mu   sync.Mutex
	msgs []chat.Message
}

func (r *recorder) consume(m chat.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func newRouter(t *testing.T, cooldown time.Duration) (*Router, *recorder) {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "relay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	q := dispatch.New(dispatch.WithCooldown(cooldown))
	rec := &recorder{}
	q.RegisterConsumer(rec.consume)

	hub := ws.NewHub("", nil, nil)
	r := NewRouter(hub, q, database, twitch.NewClient())
	require.NotNil(t, hub.RPCRouter)
	return r, rec
}

func request(method string, params map[string]any) ws.RPCRequest {
	raw := make(map[string]json.RawMessage, len(params))
	for k, v := range params {
		b, _ := json.Marshal(v)
		raw[k] = b
	}
	return ws.RPCRequest{ID: "1", Method: method, Params: raw}
}

func TestRouter_EnqueueDelivers(t *testing.T) {
	req := require.New(t)
	r, rec := newRouter(t, 0)
	out := &responder{}

	r.Handle(out, request("queue.enqueue", map[string]any{"username": "alice", "message": "hi"}))

	p := out.payload(t)
	req.NotEmpty(p["id"])
	req.Equal(0, p["length"])
	req.Equal("idle", p["state"])
	req.Equal(1, rec.count())
}

func TestRouter_EnqueueRequiresUsername(t *testing.T) {
	r, rec := newRouter(t, 0)
	out := &responder{}

	r.Handle(out, request("queue.enqueue", map[string]any{"message": "hi"}))

	res := out.last(t)
	require.False(t, res.OK)
	require.Equal(t, "INVALID_PARAMS", res.Error.Code)
	require.Equal(t, 0, rec.count())
}

func TestRouter_EnqueueUsesIngest(t *testing.T) {
	r, rec := newRouter(t, 0)
	var ingested []chat.Message
	r.Ingest = func(m chat.Message) { ingested = append(ingested, m) }
	out := &responder{}

	r.Handle(out, request("queue.enqueue", map[string]any{"username": "alice", "message": "hi"}))

	require.Len(t, ingested, 1)
	require.Equal(t, "alice: hi", ingested[0].String())
	require.Equal(t, 0, rec.count())
}

func TestRouter_PauseDispatchResume(t *testing.T) {
	req := require.New(t)
	r, rec := newRouter(t, 0)
	out := &responder{}

	r.Handle(out, request("queue.pause", nil))
	req.Equal(true, out.payload(t)["paused"])

	r.Handle(out, request("queue.enqueue", map[string]any{"username": "alice", "message": "1"}))
	r.Handle(out, request("queue.enqueue", map[string]any{"username": "bob", "message": "2"}))
	r.Handle(out, request("queue.dispatch", nil))
	req.Equal(2, out.payload(t)["length"])
	req.Equal(0, rec.count())

	r.Handle(out, request("queue.resume", nil))
	p := out.payload(t)
	req.Equal(false, p["paused"])
	req.Equal(0, p["length"])
	req.Equal(2, rec.count())
}

func TestRouter_DrainAndClear(t *testing.T) {
	req := require.New(t)
	r, rec := newRouter(t, time.Hour)
	out := &responder{}

	r.Handle(out, request("queue.enqueue", map[string]any{"username": "alice", "message": "1"}))
	req.Equal("cooldown", out.payload(t)["state"])
	r.Handle(out, request("queue.enqueue", map[string]any{"username": "bob", "message": "2"}))
	r.Handle(out, request("queue.enqueue", map[string]any{"username": "carol", "message": "3"}))

	r.Handle(out, request("queue.drain", nil))
	p := out.payload(t)
	req.Equal(2, p["delivered"])
	req.Equal(0, p["length"])
	req.Equal(3, rec.count())

	r.Handle(out, request("queue.enqueue", map[string]any{"username": "dave", "message": "4"}))
	r.Handle(out, request("queue.clear", nil))
	p = out.payload(t)
	req.Equal(1, p["dropped"])
	req.Equal(0, p["length"])
	req.Equal("idle", p["state"])
}

func TestRouter_DeliveriesHistory(t *testing.T) {
	req := require.New(t)
	r, _ := newRouter(t, 0)
	out := &responder{}

	msg, err := chat.NewMessage("alice", "hi", time.Now())
	req.NoError(err)
	d, err := r.DB.InsertDelivery(msg, time.Now())
	req.NoError(err)
	req.NoError(r.DB.SetReply(d.ID, "hello"))
	msg2, err := chat.NewMessage("bob", "yo", time.Now())
	req.NoError(err)
	_, err = r.DB.InsertDelivery(msg2, time.Now().Add(time.Second))
	req.NoError(err)

	r.Handle(out, request("deliveries.history", map[string]any{"limit": 10}))
	p := out.payload(t)
	req.Len(p["deliveries"], 2)
	req.Equal(1, p["pending"])
}

func TestRouter_TwitchStatus(t *testing.T) {
	r, _ := newRouter(t, 0)
	out := &responder{}

	r.Handle(out, request("twitch.status", nil))
	require.Equal(t, "disconnected", out.payload(t)["state"])
}

func TestRouter_UnknownMethod(t *testing.T) {
	r, _ := newRouter(t, 0)
	out := &responder{}

	r.Handle(out, request("rooms.list", nil))
	res := out.last(t)
	require.False(t, res.OK)
	require.Equal(t, "UNKNOWN_METHOD", res.Error.Code)
}
