package irc

import (
	"testing"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/urlbot/internal/bot"
)

func TestToEvent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		line string
		want bot.Event
		ok   bool
	}{
		{
			name: "channel message",
			line: ":alice!a@host PRIVMSG #chan :see https://example.com",
			want: bot.Privmsg{Sender: "alice", Target: "#chan", Text: "see https://example.com"},
			ok:   true,
		},
		{
			name: "private message replies to sender",
			line: ":alice!a@host PRIVMSG urlbot :hi",
			want: bot.Privmsg{Sender: "alice", Target: "alice", Text: "hi"},
			ok:   true,
		},
		{
			name: "ctcp ignored",
			line: ":alice!a@host PRIVMSG #chan :\x01ACTION waves\x01",
		},
		{
			name: "kick",
			line: ":op!o@host KICK #chan urlbot :bye",
			want: bot.Kick{Channel: "#chan", Nick: "urlbot"},
			ok:   true,
		},
		{
			name: "invite",
			line: ":bob!b@host INVITE urlbot #room",
			want: bot.Invite{Inviter: "bob", Nick: "urlbot", Channel: "#room"},
			ok:   true,
		},
		{
			name: "unrelated command",
			line: ":server 001 urlbot :Welcome",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			msg, err := ircmsg.ParseLine(tt.line)
			require.NoError(t, err)
			got, ok := toEvent(msg)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNickOf(t *testing.T) {
	t.Parallel()
	require.Equal(t, "alice", nickOf("alice!a@host"))
	require.Equal(t, "irc.example.org", nickOf("irc.example.org"))
}

func TestJoinedChannelsTracking(t *testing.T) {
	t.Parallel()

	s := New(Settings{}, nil)
	s.track("#Two", true)
	s.track("#one", true)
	s.track("#two", true)
	require.Equal(t, []string{"#one", "#two"}, s.JoinedChannels())

	s.track("#ONE", false)
	require.Equal(t, []string{"#two"}, s.JoinedChannels())
}
