// Package dispatch serializes chat messages to a single consumer with a
// cooldown between deliveries.
//
// A Queue hands the head message to its consumer only when it is Idle. Once
// the consumer returns, a cooldown timer is armed; when it fires the queue
// goes back to Idle and tries again on its own, so a backlog drains at one
// message per cooldown without any outside polling.
package dispatch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/nicebartender/chatrelay/chat"
	"github.com/nicebartender/chatrelay/metrics"
)

const DefaultCooldown = 15 * time.Second

// Consumer receives one message at a time. It is called synchronously from
// whichever goroutine triggered the dispatch and should return quickly.
type Consumer func(chat.Message)

type Queue struct {
	cooldown time.Duration
	clock    clock.Clock
	log      *slog.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	messages []chat.Message
	state    State
	consumer Consumer
	paused   bool
	timer    *clock.Timer
	// epoch invalidates armed timers when Clear or DrainNow runs.
	epoch uint64
}

type Option func(*Queue)

// WithCooldown sets the pause after each delivery. Zero drains the queue
// synchronously.
func WithCooldown(d time.Duration) Option { return func(q *Queue) { q.cooldown = d } }

func WithClock(c clock.Clock) Option { return func(q *Queue) { q.clock = c } }

func WithLogger(log *slog.Logger) Option { return func(q *Queue) { q.log = log } }

func WithMetrics(m *metrics.Metrics) Option { return func(q *Queue) { q.metrics = m } }

func New(opts ...Option) *Queue {
	q := &Queue{
		cooldown: DefaultCooldown,
		clock:    clock.New(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue appends msg to the tail. It does not trigger a delivery; call
// ForceCheckIdle afterwards for that.
func (q *Queue) Enqueue(msg chat.Message) {
	q.mu.Lock()
	q.messages = append(q.messages, msg)
	n := len(q.messages)
	q.mu.Unlock()

	q.metrics.Enqueued()
	q.metrics.SetQueueLength(n)
	q.log.Debug("dispatch: enqueued", "user", msg.Username, "len", n)
}

// RegisterConsumer installs fn as the delivery target, replacing any
// previous one. A delivery already handed to the old consumer is not
// recalled.
func (q *Queue) RegisterConsumer(fn Consumer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.consumer = fn
}

// TryDispatch delivers the head message if the queue is Idle. It is a no-op
// while a delivery or cooldown is in progress, when the queue is empty or
// paused, or when no consumer is registered.
func (q *Queue) TryDispatch() {
	q.run(false)
}

// ForceCheckIdle is what producers call right after Enqueue so an idle
// queue starts draining immediately.
func (q *Queue) ForceCheckIdle() {
	q.run(false)
}

// DrainNow delivers every queued message back to back, skipping the
// cooldown between them, and arms a single cooldown after the last one.
// Deliveries stay sequential and ordered. It returns how many messages were
// delivered; zero if a delivery is already in flight.
func (q *Queue) DrainNow() int {
	return q.run(true)
}

// Clear discards the backlog. A queue in Cooldown returns to Idle and its
// pending timer, left running, no longer has any effect. A delivery in
// flight completes normally.
func (q *Queue) Clear() {
	q.mu.Lock()
	dropped := len(q.messages)
	q.messages = nil
	q.epoch++
	q.state, _ = transition(q.state, eventReset, false)
	q.mu.Unlock()

	q.metrics.SetQueueLength(0)
	q.log.Info("dispatch: cleared", "dropped", dropped)
}

// Pause stops deliveries. The backlog is kept and an armed cooldown keeps
// running, so the gap after the last delivery is honoured across a pause.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.paused {
		return
	}
	q.paused = true
	q.log.Info("dispatch: paused", "pending", len(q.messages), "state", q.state)
}

// Resume re-enables deliveries and dispatches the head if the queue is Idle.
// A queue still in Cooldown delivers when the cooldown elapses.
func (q *Queue) Resume() {
	q.mu.Lock()
	wasPaused := q.paused
	q.paused = false
	q.mu.Unlock()

	if wasPaused {
		q.log.Info("dispatch: resumed")
	}
	q.run(false)
}

func (q *Queue) HasMessages() bool {
	return q.Len() > 0
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.messages)
}

func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.paused
}

func (q *Queue) run(bypass bool) int {
	delivered := 0
	for {
		q.mu.Lock()
		if bypass && q.state == Cooldown {
			q.stopTimerLocked()
			q.state, _ = transition(q.state, eventReset, false)
		}
		next, eff := transition(q.state, eventTry, q.readyLocked())
		q.state = next
		if eff != effectDeliver {
			q.mu.Unlock()
			return delivered
		}
		msg := q.messages[0]
		q.messages[0] = chat.Message{}
		q.messages = q.messages[1:]
		remaining := len(q.messages)
		consumer := q.consumer
		q.mu.Unlock()

		q.metrics.SetQueueLength(remaining)
		q.deliver(consumer, msg)
		delivered++

		q.mu.Lock()
		next, eff = transition(q.state, eventDelivered, false)
		q.state = next
		if eff != effectArmCooldown {
			q.mu.Unlock()
			return delivered
		}
		if q.cooldown <= 0 || (bypass && len(q.messages) > 0) {
			q.state, _ = transition(q.state, eventElapsed, false)
			q.mu.Unlock()
			continue
		}
		q.armLocked()
		q.mu.Unlock()
		return delivered
	}
}

// deliver calls consumer and contains a panic so the state machine always
// advances past Dispatching.
func (q *Queue) deliver(consumer Consumer, msg chat.Message) {
	defer func() {
		if r := recover(); r != nil {
			q.metrics.ConsumerPanicked()
			q.log.Error("dispatch: consumer panicked", "id", msg.ID, "user", msg.Username, "panic", r)
		}
	}()

	q.log.Info("dispatch: delivering", "user", msg.Username, "message", msg.Message)
	consumer(msg)
	q.metrics.Delivered()
}

func (q *Queue) armLocked() {
	epoch := q.epoch
	q.timer = q.clock.AfterFunc(q.cooldown, func() {
		q.elapsed(epoch)
	})
}

func (q *Queue) elapsed(epoch uint64) {
	q.mu.Lock()
	if epoch != q.epoch {
		q.mu.Unlock()
		return
	}
	q.timer = nil
	next, eff := transition(q.state, eventElapsed, false)
	q.state = next
	q.mu.Unlock()

	if eff == effectRetry {
		q.run(false)
	}
}

func (q *Queue) stopTimerLocked() {
	q.epoch++
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
}

func (q *Queue) readyLocked() bool {
	return len(q.messages) > 0 && q.consumer != nil && !q.paused
}
