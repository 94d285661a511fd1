// Package credentials finds the Twitch OAuth token the relay logs in with.
// The token is opaque here: it is located, never validated.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

var ErrTokenNotFound = errors.New("oauth token not found")

var (
	oauthPattern = regexp.MustCompile(`oauth:([a-zA-Z0-9]+)`)
	barePattern  = regexp.MustCompile(`[a-zA-Z0-9]{30,}`)
)

type Loader interface {
	Load(ctx context.Context) (string, error)
}

// ExtractToken pulls a token out of arbitrary file content: an explicit
// "oauth:<token>" wins, otherwise the first run of 30 or more alphanumerics.
func ExtractToken(data string) (string, bool) {
	if m := oauthPattern.FindStringSubmatch(data); m != nil {
		return m[1], true
	}
	if m := barePattern.FindString(data); m != "" {
		return m, true
	}
	return "", false
}

// FileLoader reads the token from a file written by an external tool.
type FileLoader struct {
	Path string
}

func (l FileLoader) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if l.Path == "" {
		return "", ErrTokenNotFound
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s missing", ErrTokenNotFound, l.Path)
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	token, ok := ExtractToken(string(data))
	if !ok {
		return "", fmt.Errorf("%w in %s", ErrTokenNotFound, l.Path)
	}
	return token, nil
}

// StaticLoader returns a token supplied directly, e.g. from the environment.
// An "oauth:" prefix is stripped since the client adds it back.
type StaticLoader struct {
	Token string
}

func (l StaticLoader) Load(context.Context) (string, error) {
	token := strings.TrimPrefix(strings.TrimSpace(l.Token), "oauth:")
	if token == "" {
		return "", ErrTokenNotFound
	}
	return token, nil
}

// Chain tries each loader in order and returns the first token found.
type Chain []Loader

func (c Chain) Load(ctx context.Context) (string, error) {
	for _, l := range c {
		token, err := l.Load(ctx)
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, ErrTokenNotFound) {
			return "", err
		}
		slog.Debug("credentials: loader had no token", "loader", fmt.Sprintf("%T", l), "err", err)
	}
	return "", ErrTokenNotFound
}
