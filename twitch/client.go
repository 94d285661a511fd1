// Package twitch is a minimal Twitch chat (IRC over websocket) client that
// turns channel messages into chat.Message values.
package twitch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"github.com/nicebartender/chatrelay/chat"
	"github.com/nicebartender/chatrelay/metrics"
)

const (
	DefaultURL  = "wss://irc-ws.chat.twitch.tv:443"
	DefaultHost = "tmi.twitch.tv"

	writeWait = 10 * time.Second
)

var (
	ErrAlreadyConnected = errors.New("twitch: already connected")
	ErrNotConnected     = errors.New("twitch: not connected")
)

// AuthError is returned by Connect when no token is available. No transport
// is opened.
type AuthError struct {
	Nickname string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("twitch: missing oauth token for %q", e.Nickname)
}

// TransportError wraps a failure of the underlying websocket.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("twitch: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn is the subset of *websocket.Conn the client needs.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type websocketDialer struct {
	dialer *websocket.Dialer
}

func (d websocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type connectParams struct {
	Nickname string `validate:"required"`
	Channel  string `validate:"required"`
}

var validate = validator.New()

type Client struct {
	url     string
	host    string
	dialer  Dialer
	log     *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.Mutex
	conn    Conn
	state   State
	channel string
	onMsg   func(chat.Message)
	onState func(State)
	// gen identifies the current connect attempt; Disconnect bumps it so a
	// dial that finishes late cannot install its conn.
	gen uint64
	// changes holds transitions not yet reported to onState.
	changes []State

	notifyMu sync.Mutex

	writeMu sync.Mutex
}

type Option func(*Client)

func WithURL(url string) Option { return func(c *Client) { c.url = url } }

// WithHost sets the server host used for the PONG reply and for matching
// the "<user>.<host>" part of chat lines.
func WithHost(host string) Option { return func(c *Client) { c.host = host } }

func WithDialer(d Dialer) Option { return func(c *Client) { c.dialer = d } }

func WithLogger(log *slog.Logger) Option { return func(c *Client) { c.log = log } }

func WithMetrics(m *metrics.Metrics) Option { return func(c *Client) { c.metrics = m } }

func NewClient(opts ...Option) *Client {
	c := &Client{
		url:    DefaultURL,
		host:   DefaultHost,
		dialer: websocketDialer{dialer: websocket.DefaultDialer},
		log:    slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnMessage registers the sink for parsed chat messages. It is called from
// the read loop, so it must not block for long.
func (c *Client) OnMessage(fn func(chat.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMsg = fn
}

// OnStateChange registers a callback invoked after every state transition.
// Calls are made without the client's lock held and arrive in order.
func (c *Client) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = fn
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) Channel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// Connect opens the websocket and sends PASS, NICK and JOIN in that order.
// It returns once the handshake has been written; inbound lines are then
// processed on a background goroutine until the connection drops or
// Disconnect is called. There is no automatic reconnect.
func (c *Client) Connect(ctx context.Context, token, nickname, channel string) error {
	if token == "" {
		return &AuthError{Nickname: nickname}
	}
	channel = strings.ToLower(strings.TrimPrefix(channel, "#"))
	if err := validate.Struct(connectParams{Nickname: nickname, Channel: channel}); err != nil {
		return fmt.Errorf("twitch: connect params: %w", err)
	}

	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.gen++
	gen := c.gen
	c.setStateLocked(Connecting)
	c.mu.Unlock()
	c.notify()

	c.log.Info("twitch: connecting", "url", c.url, "nick", nickname, "channel", channel)
	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.mu.Lock()
		if c.gen == gen {
			c.setStateLocked(Disconnected)
		}
		c.mu.Unlock()
		c.notify()
		return &TransportError{Op: "dial", Err: err}
	}

	c.mu.Lock()
	if c.gen != gen {
		// Disconnect ran while we were dialing, maybe followed by
		// another Connect.
		c.mu.Unlock()
		conn.Close()
		return ErrNotConnected
	}
	c.conn = conn
	c.channel = channel
	c.setStateLocked(Connected)
	c.mu.Unlock()
	c.notify()

	for _, cmd := range []string{
		"PASS oauth:" + token,
		"NICK " + nickname,
		"JOIN #" + channel,
	} {
		if err := c.write(conn, cmd); err != nil {
			c.drop(conn)
			return &TransportError{Op: "handshake", Err: err}
		}
	}

	go c.readLoop(conn)

	c.log.Info("twitch: connected", "channel", channel)
	return nil
}

// Disconnect closes the transport if one is open. It is safe to call in any
// state, any number of times.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	prev := c.state
	c.gen++
	c.setStateLocked(Disconnected)
	c.mu.Unlock()
	c.notify()

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.log.Debug("twitch: close", "err", err)
		}
	}
	if prev != Disconnected {
		c.log.Info("twitch: disconnected")
	}
}

func (c *Client) readLoop(conn Conn) {
	defer c.drop(conn)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("twitch: connection lost", "err", &TransportError{Op: "read", Err: err})
			} else {
				c.log.Debug("twitch: read loop ended", "err", err)
			}
			return
		}
		c.handlePayload(conn, payload)
	}
}

// drop marks the client disconnected if conn is still the active transport.
func (c *Client) drop(conn Conn) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.setStateLocked(Disconnected)
	c.mu.Unlock()
	c.notify()

	conn.Close()
	c.log.Info("twitch: disconnected")
}

// handlePayload processes every line of one frame in order. A PONG is
// written before the next line is looked at.
func (c *Client) handlePayload(conn Conn, payload []byte) {
	c.mu.Lock()
	g := Grammar{Channel: c.channel, HostSuffix: c.host}
	sink := c.onMsg
	c.mu.Unlock()

	for _, raw := range strings.Split(string(payload), "\r\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}

		line := ParseLine(raw, g)
		c.metrics.Line(line.Kind.String())

		switch line.Kind {
		case LineKeepalive:
			if err := c.write(conn, "PONG :"+c.host); err != nil {
				c.log.Warn("twitch: pong failed", "err", err)
				continue
			}
			c.metrics.Pong()

		case LineChat:
			msg, err := chat.NewMessage(line.User, line.Body, c.now())
			if err != nil {
				c.log.Debug("twitch: dropped chat line", "err", err)
				continue
			}
			c.log.Info("twitch: chat", "user", msg.Username, "message", msg.Message)
			if sink != nil {
				sink(msg)
			}

		default:
			c.log.Debug("twitch: ignored line", "line", raw)
		}
	}
}

func (c *Client) write(conn Conn, cmd string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if ws, ok := conn.(*websocket.Conn); ok {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
	}
	return conn.WriteMessage(websocket.TextMessage, []byte(cmd+"\r\n"))
}

func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	c.metrics.SetConnectionState(int(s))
	c.changes = append(c.changes, s)
}

// notify reports queued transitions to onState. Callers invoke it after
// releasing c.mu; notifyMu keeps reports in transition order.
func (c *Client) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	for {
		c.mu.Lock()
		if len(c.changes) == 0 {
			c.mu.Unlock()
			return
		}
		s := c.changes[0]
		c.changes = c.changes[1:]
		fn := c.onState
		c.mu.Unlock()

		if fn != nil {
			fn(s)
		}
	}
}
