package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Pool keeps one live gateway connection per (url, token) pair and
// reconnects lazily when a connection has dropped.
type Pool struct {
	mu      sync.Mutex
	clients map[string]*Client
	opts    []Option
	log     *slog.Logger
}

func NewPool(log *slog.Logger, opts ...Option) *Pool {
	if log == nil {
		log = slog.Default()
	}
	return &Pool{
		clients: make(map[string]*Client),
		opts:    append([]Option{WithLogger(log)}, opts...),
		log:     log,
	}
}

// Get returns a connected client for url/token, dialing a new one if needed.
func (p *Pool) Get(ctx context.Context, url, token string) (*Client, error) {
	key := url + "|" + token
	p.mu.Lock()
	if c, ok := p.clients[key]; ok && c.IsConnected() {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	p.log.Info("agent pool: connecting", "url", url)
	c := NewClient(url, token, p.opts...)
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("pool connect: %w", err)
	}

	p.mu.Lock()
	if old, ok := p.clients[key]; ok && old != c {
		old.Close()
	}
	p.clients[key] = c
	p.mu.Unlock()

	return c, nil
}

func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, c := range p.clients {
		c.Close()
	}
	p.clients = make(map[string]*Client)
}

// Endpoint binds a pool to one gateway so callers only name the session.
type Endpoint struct {
	Pool  *Pool
	URL   string
	Token string
}

func (e Endpoint) ChatSend(ctx context.Context, sessionKey, message string) (*ChatResponse, error) {
	c, err := e.Pool.Get(ctx, e.URL, e.Token)
	if err != nil {
		return nil, err
	}
	return c.ChatSend(ctx, sessionKey, message)
}
