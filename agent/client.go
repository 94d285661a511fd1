// Package agent talks to the conversational agent gateway over its
// websocket RPC protocol: challenge, signed connect, then chat.send with
// streamed chat events.
package agent

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrNotConnected     = errors.New("agent: not connected")
	ErrConnectionClosed = errors.New("agent: connection closed")
)

const (
	clientID    = "chatrelay"
	clientMode  = "ui"
	clientRole  = "operator"
	scopeList   = "operator.read,operator.write"
	protocolVer = 3
)

type Client struct {
	url   string
	token string
	log   *slog.Logger

	challengeTimeout time.Duration
	requestTimeout   time.Duration
	replyTimeout     time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	writeMu   sync.Mutex
	nextID    atomic.Int64

	pending   map[string]chan wireMessage
	pendingMu sync.Mutex

	// runs routes chat events to the ChatSend call that started the run.
	runs   map[string]*run
	runsMu sync.Mutex

	events chan wireMessage
	done   chan struct{}

	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
	deviceID   string
}

type wireMessage struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  any             `json:"params,omitempty"`
	OK      bool            `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
	Event   string          `json:"event,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ChatResponse struct {
	Text string
}

type run struct {
	sessionKey string
	events     chan chatPayload
}

type chatPayload struct {
	RunID      string `json:"runId"`
	SessionKey string `json:"sessionKey"`
	State      string `json:"state"`
	Error      string `json:"error"`
	Message    *struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

type Option func(*Client)

func WithLogger(log *slog.Logger) Option { return func(c *Client) { c.log = log } }

// WithTimeouts overrides how long to wait for the connect challenge, for a
// request's response and for the final chat event.
func WithTimeouts(challenge, request, reply time.Duration) Option {
	return func(c *Client) {
		c.challengeTimeout = challenge
		c.requestTimeout = request
		c.replyTimeout = reply
	}
}

func NewClient(url, token string, opts ...Option) *Client {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	hash := sha256.Sum256(pub)

	c := &Client{
		url:              normalizeURL(url),
		token:            token,
		log:              slog.Default(),
		challengeTimeout: 10 * time.Second,
		requestTimeout:   60 * time.Second,
		replyTimeout:     120 * time.Second,
		pending:          make(map[string]chan wireMessage),
		runs:             make(map[string]*run),
		events:           make(chan wireMessage, 100),
		done:             make(chan struct{}),
		privateKey:       priv,
		publicKey:        pub,
		deviceID:         hex.EncodeToString(hash[:]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// normalizeURL keeps an explicit ws/wss scheme, maps http(s) to ws(s) and
// defaults bare hosts to wss.
func normalizeURL(url string) string {
	url = strings.TrimSuffix(url, "/")
	switch {
	case strings.HasPrefix(url, "ws://"), strings.HasPrefix(url, "wss://"):
		return url
	case strings.HasPrefix(url, "http://"):
		return "ws://" + strings.TrimPrefix(url, "http://")
	case strings.HasPrefix(url, "https://"):
		return "wss://" + strings.TrimPrefix(url, "https://")
	}
	return "wss://" + url
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect dials the gateway and completes the signed handshake. A Client
// connects once; Pool builds a fresh one when the connection is gone.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go c.readLoop(conn)

	if err := c.authenticate(ctx); err != nil {
		conn.Close()
		return fmt.Errorf("auth: %w", err)
	}

	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.log.Info("agent: connected", "url", c.url)
	return nil
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	defer func() {
		close(c.done)
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.log.Debug("agent: read loop ended", "err", err)
			return
		}

		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "res":
			c.pendingMu.Lock()
			ch, ok := c.pending[msg.ID]
			delete(c.pending, msg.ID)
			c.pendingMu.Unlock()
			if ok {
				ch <- msg
			}
		case "event":
			if msg.Event == "chat" {
				c.routeChat(msg.Payload)
				continue
			}
			select {
			case c.events <- msg:
			default:
				c.log.Warn("agent: event buffer full, dropping", "event", msg.Event)
			}
		}
	}
}

func (c *Client) send(ctx context.Context, method string, params any) (wireMessage, error) {
	id := fmt.Sprintf("relay-%d", c.nextID.Add(1))

	ch := make(chan wireMessage, 1)
	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()
	forget := func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}

	data, err := json.Marshal(wireMessage{Type: "req", ID: id, Method: method, Params: params})
	if err != nil {
		forget()
		return wireMessage{}, err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		forget()
		return wireMessage{}, ErrNotConnected
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		forget()
		return wireMessage{}, err
	}

	timer := time.NewTimer(c.requestTimeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		forget()
		return wireMessage{}, fmt.Errorf("timeout waiting for %s response", method)
	case <-ctx.Done():
		forget()
		return wireMessage{}, ctx.Err()
	case <-c.done:
		return wireMessage{}, ErrConnectionClosed
	}
}

func base64URLEncode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// authenticate waits for connect.challenge and answers with a connect
// request signed by the device key.
func (c *Client) authenticate(ctx context.Context) error {
	nonce, err := c.awaitChallenge(ctx)
	if err != nil {
		return err
	}

	signedAt := time.Now().UnixMilli()
	signPayload := fmt.Sprintf("v2|%s|%s|%s|%s|%s|%d|%s|%s",
		c.deviceID, clientID, clientMode, clientRole, scopeList, signedAt, c.token, nonce)
	signature := ed25519.Sign(c.privateKey, []byte(signPayload))

	params := map[string]any{
		"minProtocol": protocolVer,
		"maxProtocol": protocolVer,
		"client": map[string]any{
			"id":          clientID,
			"displayName": "Chat Relay",
			"version":     "1.0.0",
			"platform":    "server",
			"mode":        clientMode,
		},
		"role":   clientRole,
		"scopes": strings.Split(scopeList, ","),
		"caps":   []string{},
		"auth":   map[string]any{"token": c.token},
		"device": map[string]any{
			"id":        c.deviceID,
			"publicKey": base64URLEncode(c.publicKey),
			"signature": base64URLEncode(signature),
			"signedAt":  signedAt,
			"nonce":     nonce,
		},
	}

	resp, err := c.send(ctx, "connect", params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("connect error: %s: %s", resp.Error.Code, resp.Error.Message)
	}
	if !resp.OK {
		return errors.New("connect rejected")
	}
	return nil
}

func (c *Client) awaitChallenge(ctx context.Context) (string, error) {
	timeout := time.NewTimer(c.challengeTimeout)
	defer timeout.Stop()

	for {
		select {
		case evt := <-c.events:
			if evt.Event != "connect.challenge" {
				continue
			}
			var payload struct {
				Nonce string `json:"nonce"`
			}
			json.Unmarshal(evt.Payload, &payload)
			if payload.Nonce != "" {
				return payload.Nonce, nil
			}
		case <-timeout.C:
			return "", errors.New("timeout waiting for challenge")
		case <-ctx.Done():
			return "", ctx.Err()
		case <-c.done:
			return "", errors.New("connection closed before challenge")
		}
	}
}

// ChatSend sends message to the agent session and collects the run's chat
// events until the final one. Deltas are concatenated; a non-empty final
// text replaces them. Concurrent calls on one client each see only their
// own run.
func (c *Client) ChatSend(ctx context.Context, sessionKey, message string) (*ChatResponse, error) {
	runID := fmt.Sprintf("relay-%d-%d", time.Now().UnixNano(), c.nextID.Add(1))
	r := &run{sessionKey: sessionKey, events: make(chan chatPayload, 64)}
	c.trackRun(runID, r)
	defer func() { c.forgetRun(runID) }()

	params := map[string]any{
		"sessionKey":     sessionKey,
		"message":        message,
		"deliver":        false,
		"idempotencyKey": runID,
	}

	resp, err := c.send(ctx, "chat.send", params)
	if err != nil {
		return nil, fmt.Errorf("chat.send: %w", err)
	}
	if !resp.OK {
		errMsg := "unknown error"
		if resp.Error != nil {
			errMsg = resp.Error.Message
		}
		return nil, fmt.Errorf("chat.send rejected: %s", errMsg)
	}

	var started struct {
		RunID string `json:"runId"`
	}
	json.Unmarshal(resp.Payload, &started)
	if started.RunID != "" && started.RunID != runID {
		c.forgetRun(runID)
		runID = started.RunID
		c.trackRun(runID, r)
	}

	var fullText strings.Builder
	timeout := time.NewTimer(c.replyTimeout)
	defer timeout.Stop()

	for {
		select {
		case payload := <-r.events:
			text := payload.text()

			switch payload.State {
			case "delta":
				fullText.WriteString(text)
			case "final":
				if text != "" {
					return &ChatResponse{Text: text}, nil
				}
				return &ChatResponse{Text: fullText.String()}, nil
			case "error":
				return nil, fmt.Errorf("agent error: %s", payload.Error)
			case "aborted":
				return nil, errors.New("agent aborted")
			}
		case <-timeout.C:
			if fullText.Len() > 0 {
				return &ChatResponse{Text: fullText.String()}, nil
			}
			return nil, errors.New("timeout waiting for agent response")
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.done:
			return nil, errors.New("connection closed during chat")
		}
	}
}

func (c *Client) trackRun(id string, r *run) {
	c.runsMu.Lock()
	defer c.runsMu.Unlock()
	c.runs[id] = r
}

func (c *Client) forgetRun(id string) {
	c.runsMu.Lock()
	defer c.runsMu.Unlock()
	delete(c.runs, id)
}

// routeChat hands a chat event to its run. Events without a runId go to the
// only run open on their session, if there is exactly one.
func (c *Client) routeChat(raw json.RawMessage) {
	var payload chatPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}

	c.runsMu.Lock()
	r := c.runs[payload.RunID]
	if r == nil && payload.RunID == "" {
		var match []*run
		for _, candidate := range c.runs {
			if payload.SessionKey == "" || candidate.sessionKey == payload.SessionKey {
				match = append(match, candidate)
			}
		}
		if len(match) == 1 {
			r = match[0]
		}
	}
	c.runsMu.Unlock()

	if r == nil {
		c.log.Debug("agent: chat event for unknown run", "runId", payload.RunID, "sessionKey", payload.SessionKey)
		return
	}
	select {
	case r.events <- payload:
	default:
		c.log.Warn("agent: run buffer full, dropping", "runId", payload.RunID)
	}
}

func (p chatPayload) text() string {
	if p.Message == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range p.Message.Content {
		b.WriteString(block.Text)
	}
	return b.String()
}
