package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/nicebartender/chatrelay/agent"
	"github.com/nicebartender/chatrelay/credentials"
	"github.com/nicebartender/chatrelay/db"
	"github.com/nicebartender/chatrelay/dispatch"
	"github.com/nicebartender/chatrelay/metrics"
	"github.com/nicebartender/chatrelay/moderation"
	"github.com/nicebartender/chatrelay/relay"
	"github.com/nicebartender/chatrelay/rpc"
	"github.com/nicebartender/chatrelay/twitch"
	"github.com/nicebartender/chatrelay/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("chatrelay stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	censorChar, _ := cfg.CensorRune()
	mod, err := moderation.NewModerator(cfg.Words(), censorChar, log)
	if err != nil {
		return fmt.Errorf("moderator: %w", err)
	}

	queue := dispatch.New(
		dispatch.WithCooldown(cfg.Cooldown),
		dispatch.WithLogger(log),
		dispatch.WithMetrics(m),
	)

	hub := ws.NewHub(cfg.OperatorToken, database, log)

	var sender relay.ChatSender
	if cfg.AgentURL != "" {
		pool := agent.NewPool(log)
		defer pool.Close()
		sender = agent.Endpoint{Pool: pool, URL: cfg.AgentURL, Token: cfg.AgentToken}
	} else {
		log.Warn("AGENT_URL not set, deliveries are only logged")
	}

	forwarder := relay.NewForwarder(ctx, sender, cfg.AgentSession,
		relay.WithStore(database),
		relay.WithBroadcaster(hub),
		relay.WithLogger(log),
		relay.WithMetrics(m),
	)
	queue.RegisterConsumer(forwarder.Deliver)
	defer forwarder.Wait()

	tw := twitch.NewClient(
		twitch.WithURL(cfg.TwitchURL),
		twitch.WithHost(cfg.TwitchHost),
		twitch.WithLogger(log),
		twitch.WithMetrics(m),
	)
	ingest := relay.Ingest(queue, mod, hub, log)
	tw.OnMessage(ingest)
	tw.OnStateChange(relay.FollowConnection(queue, log))

	router := rpc.NewRouter(hub, queue, database, tw)
	router.Ingest = ingest

	token, err := credentials.Chain{
		credentials.StaticLoader{Token: cfg.TwitchToken},
		credentials.FileLoader{Path: cfg.TwitchTokenFile},
	}.Load(ctx)
	if err != nil && !errors.Is(err, credentials.ErrTokenNotFound) {
		return fmt.Errorf("load twitch token: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("upgrade failed", "err", err)
			return
		}
		client := ws.NewClient(hub, conn)
		hub.Register(client)
		go client.Serve()
	})

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","twitch":%q,"queue":%d}`, tw.State(), queue.Len())
	})

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("chatrelay starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		err := tw.Connect(gctx, token, cfg.TwitchNick, cfg.TwitchChannel)
		var authErr *twitch.AuthError
		if errors.As(err, &authErr) {
			return fmt.Errorf("no twitch token found (set TWITCH_TOKEN or %s): %w", cfg.TwitchTokenFile, err)
		}
		if err != nil {
			// No reconnect; operators can still use the queue.
			log.Error("twitch connect failed", "err", err)
		}
		<-gctx.Done()
		tw.Disconnect()
		return nil
	})

	return g.Wait()
}
