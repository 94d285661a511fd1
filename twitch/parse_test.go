package twitch

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	g := Grammar{Channel: "chan", HostSuffix: "tmi.example.com"}

	tests := []struct {
		name string
		line string
		want Line
	}{
		{
			name: "keepalive",
			line: "PING :tmi.example.com",
			want: Line{Kind: LineKeepalive},
		},
		{
			name: "bare keepalive",
			line: "PING",
			want: Line{Kind: LineKeepalive},
		},
		{
			name: "chat line",
			line: ":alice!alice@alice.tmi.example.com PRIVMSG #chan :hello there",
			want: Line{Kind: LineChat, User: "alice", Body: "hello there"},
		},
		{
			name: "body keeps colons",
			line: ":bob_99!bob_99@bob_99.tmi.example.com PRIVMSG #chan :time is 12:30 :)",
			want: Line{Kind: LineChat, User: "bob_99", Body: "time is 12:30 :)"},
		},
		{
			name: "channel match ignores case",
			line: ":alice!alice@alice.tmi.example.com PRIVMSG #Chan :hi",
			want: Line{Kind: LineChat, User: "alice", Body: "hi"},
		},
		{
			name: "other channel",
			line: ":alice!alice@alice.tmi.example.com PRIVMSG #other :hi",
			want: Line{Kind: LineUnrecognized},
		},
		{
			name: "server notice",
			line: ":tmi.example.com NOTICE * :Login authentication failed",
			want: Line{Kind: LineUnrecognized},
		},
		{
			name: "numeric reply",
			line: ":tmi.example.com 001 nick :Welcome, GLHF!",
			want: Line{Kind: LineUnrecognized},
		},
		{
			name: "join",
			line: ":alice!alice@alice.tmi.example.com JOIN #chan",
			want: Line{Kind: LineUnrecognized},
		},
		{
			name: "wrong host suffix",
			line: ":alice!alice@alice.evil.example.com PRIVMSG #chan :hi",
			want: Line{Kind: LineUnrecognized},
		},
		{
			name: "empty body",
			line: ":alice!alice@alice.tmi.example.com PRIVMSG #chan :",
			want: Line{Kind: LineUnrecognized},
		},
		{
			name: "non word nick",
			line: ":al-ice!alice@alice.tmi.example.com PRIVMSG #chan :hi",
			want: Line{Kind: LineUnrecognized},
		},
		{
			name: "tagged line",
			line: "@badge-info=;color=#FF0000 :alice!alice@alice.tmi.example.com PRIVMSG #chan :hi",
			want: Line{Kind: LineUnrecognized},
		},
		{
			name: "garbage",
			line: "hello world",
			want: Line{Kind: LineUnrecognized},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ParseLine(tt.line, g))
		})
	}
}

func TestLineKind_String(t *testing.T) {
	require.Equal(t, "keepalive", LineKeepalive.String())
	require.Equal(t, "chat", LineChat.String())
	require.Equal(t, "unrecognized", LineUnrecognized.String())
}
