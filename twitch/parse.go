package twitch

import "strings"

// LineKind classifies one inbound IRC line.
type LineKind int

const (
	LineUnrecognized LineKind = iota
	LineKeepalive
	LineChat
)

func (k LineKind) String() string {
	switch k {
	case LineKeepalive:
		return "keepalive"
	case LineChat:
		return "chat"
	default:
		return "unrecognized"
	}
}

// Line is the parsed form of one inbound line. User and Body are set only
// for LineChat.
type Line struct {
	Kind LineKind
	User string
	Body string
}

// Grammar holds the configuration constants a chat line must match.
type Grammar struct {
	Channel    string // without the leading '#'
	HostSuffix string // e.g. "tmi.twitch.tv"
}

// ParseLine classifies line against g:
//
//	PING ...                                              -> LineKeepalive
//	:<user>!<user>@<user>.<suffix> PRIVMSG #<chan> :<body> -> LineChat
//
// Anything else, including tagged lines and other commands, is LineUnrecognized.
func ParseLine(line string, g Grammar) Line {
	if strings.HasPrefix(line, "PING") {
		return Line{Kind: LineKeepalive}
	}

	rest, ok := strings.CutPrefix(line, ":")
	if !ok {
		return Line{}
	}
	prefix, rest, ok := strings.Cut(rest, " ")
	if !ok {
		return Line{}
	}
	nick, ok := parsePrefix(prefix, g.HostSuffix)
	if !ok {
		return Line{}
	}

	command, rest, ok := strings.Cut(rest, " ")
	if !ok || command != "PRIVMSG" {
		return Line{}
	}
	target, body, ok := strings.Cut(rest, " :")
	if !ok || body == "" {
		return Line{}
	}
	if !strings.EqualFold(target, "#"+g.Channel) {
		return Line{}
	}

	return Line{Kind: LineChat, User: nick, Body: body}
}

// parsePrefix checks "<nick>!<user>@<label>.<suffix>" and returns nick.
func parsePrefix(prefix, suffix string) (string, bool) {
	nick, userHost, ok := strings.Cut(prefix, "!")
	if !ok || !isWord(nick) {
		return "", false
	}
	user, host, ok := strings.Cut(userHost, "@")
	if !ok || !isWord(user) {
		return "", false
	}
	label, ok := strings.CutSuffix(host, "."+suffix)
	if !ok || !isWord(label) {
		return "", false
	}
	return nick, true
}

func isWord(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			return false
		}
	}
	return true
}
