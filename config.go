package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

type Config struct {
	ListenAddr string `env:"RELAY_ADDR"`
	DBPath     string `env:"RELAY_DB,default=chatrelay.db"`
	LogLevel   string `env:"LOG_LEVEL,default=INFO"`

	TwitchURL       string `env:"TWITCH_URL,default=wss://irc-ws.chat.twitch.tv:443" validate:"required,url"`
	TwitchHost      string `env:"TWITCH_HOST,default=tmi.twitch.tv" validate:"required"`
	TwitchNick      string `env:"TWITCH_NICK" validate:"required"`
	TwitchChannel   string `env:"TWITCH_CHANNEL" validate:"required"`
	TwitchToken     string `env:"TWITCH_TOKEN"`
	TwitchTokenFile string `env:"TWITCH_TOKEN_FILE,default=twitch_token.txt"`

	Cooldown time.Duration `env:"DISPATCH_COOLDOWN,default=15s" validate:"gte=0"`

	AgentURL     string `env:"AGENT_URL"`
	AgentToken   string `env:"AGENT_TOKEN"`
	AgentSession string `env:"AGENT_SESSION,default=agent:main:main"`

	OperatorToken string `env:"OPERATOR_TOKEN"`

	CensoredWords string `env:"CENSORED_WORDS"`
	CensorChar    string `env:"CENSOR_CHAR,default=*"`
}

// LoadConfig reads .env, then the environment, then command-line flags.
func LoadConfig(args []string) (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = defaultAddr()
	}

	fs := flag.NewFlagSet("chatrelay", flag.ContinueOnError)
	fs.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "Listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite delivery log path")
	fs.StringVar(&cfg.TwitchNick, "nick", cfg.TwitchNick, "Twitch login name")
	fs.StringVar(&cfg.TwitchChannel, "channel", cfg.TwitchChannel, "Twitch channel to join")
	fs.DurationVar(&cfg.Cooldown, "cooldown", cfg.Cooldown, "Pause between deliveries to the agent")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "DEBUG, INFO, WARN or ERROR")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if _, err := cfg.CensorRune(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func defaultAddr() string {
	// Railway, Render, etc. set PORT
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":8090"
}

// Words returns the comma-separated censored words, trimmed, empties removed.
func (c Config) Words() []string {
	return lo.Compact(lo.Map(strings.Split(c.CensoredWords, ","), func(w string, _ int) string {
		return strings.TrimSpace(w)
	}))
}

func (c Config) CensorRune() (rune, error) {
	r := []rune(c.CensorChar)
	if len(r) != 1 {
		return 0, fmt.Errorf("CENSOR_CHAR must be a single character, got %q", c.CensorChar)
	}
	return r[0], nil
}

func (c Config) Level() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}
