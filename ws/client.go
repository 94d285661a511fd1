package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = (pongWait * 9) / 10
	maxFrameSize = 64 << 10
	sendBuffer   = 256
)

// Identity is who an operator connection authenticated as.
type Identity struct {
	OperatorID  string
	DisplayName string
}

// Client is one operator websocket. Outbound frames are queued on send and
// written by a single writer goroutine; done is closed by the hub when the
// client is dropped, which ends the writer.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	mu    sync.RWMutex
	nonce string
	ident *Identity
}

func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Identity returns the authenticated identity and whether connect succeeded.
func (c *Client) Identity() (Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ident == nil {
		return Identity{}, false
	}
	return *c.ident, true
}

func (c *Client) IsAuthenticated() bool {
	_, ok := c.Identity()
	return ok
}

func (c *Client) challenge(nonce string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nonce = nonce
}

func (c *Client) challengeNonce() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nonce
}

func (c *Client) authenticate(id Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ident = &id
}

// SendJSON queues v for the writer. Frames for a dropped client, or one
// whose buffer is full, are discarded.
func (c *Client) SendJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("marshal error", "err", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		slog.Warn("operator send buffer full, dropping message")
	}
}

// Serve runs the connection until the peer goes away or the hub drops it.
func (c *Client) Serve() {
	go c.writeLoop()
	c.readLoop()
}

func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Info("operator disconnected", "err", err)
			}
			return
		}
		c.hub.handleMessage(c, frame)
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
