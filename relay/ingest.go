// Package relay wires the Twitch client, the dispatch queue and the agent
// together: Ingest is the producer side and Forwarder the consumer.
package relay

import (
	"log/slog"

	"github.com/nicebartender/chatrelay/chat"
	"github.com/nicebartender/chatrelay/dispatch"
	"github.com/nicebartender/chatrelay/moderation"
	"github.com/nicebartender/chatrelay/twitch"
	"github.com/nicebartender/chatrelay/ws"
)

// Ingest returns the sink for incoming chat messages. Each message is
// censored when mod is set, queued, announced to operators and then the
// queue is poked so an idle queue delivers immediately. mod and hub may be
// nil.
func Ingest(q *dispatch.Queue, mod *moderation.Moderator, hub Broadcaster, log *slog.Logger) func(chat.Message) {
	if log == nil {
		log = slog.Default()
	}
	return func(msg chat.Message) {
		if censored, found := mod.Censor(msg.Message); len(found) > 0 {
			log.Info("relay: censored message", "user", msg.Username, "words", found)
			msg = msg.WithBody(censored)
		}

		q.Enqueue(msg)
		log.Info("relay: queued", "user", msg.Username, "message", msg.Message, "len", q.Len())

		if hub != nil {
			hub.Broadcast(ws.NewEvent(ws.EventChatReceived, map[string]any{
				"message": msg,
				"queue":   q.Len(),
			}))
		}

		q.ForceCheckIdle()
	}
}

// FollowConnection pauses q while the Twitch connection is down and resumes
// it once connected again. A cooldown already running still has to elapse.
func FollowConnection(q *dispatch.Queue, log *slog.Logger) func(twitch.State) {
	if log == nil {
		log = slog.Default()
	}
	return func(s twitch.State) {
		switch s {
		case twitch.Disconnected:
			log.Info("relay: twitch disconnected, pausing queue", "pending", q.Len())
			q.Pause()
		case twitch.Connected:
			q.Resume()
		}
	}
}
