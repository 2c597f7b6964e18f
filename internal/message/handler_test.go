package message

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/urlbot/internal/bot"
	"github.com/JakeFAU/urlbot/internal/config"
	"github.com/JakeFAU/urlbot/internal/history"
	"github.com/JakeFAU/urlbot/internal/history/sqlite"
)

type sent struct {
	kind   string
	target string
	text   string
}

type fakeClient struct {
	nick   string
	joined []string
	sent   []sent
}

func (c *fakeClient) SendMessage(target, text string) error {
	c.sent = append(c.sent, sent{"privmsg", target, text})
	return nil
}

func (c *fakeClient) SendNotice(target, text string) error {
	c.sent = append(c.sent, sent{"notice", target, text})
	return nil
}

func (c *fakeClient) JoinChannel(name string) error {
	c.sent = append(c.sent, sent{"join", name, ""})
	c.joined = append(c.joined, name)
	return nil
}

func (c *fakeClient) CurrentNick() string { return c.nick }

func (c *fakeClient) JoinedChannels() []string { return c.joined }

// fakeResolver answers "title of <url>" unless the URL contains "fail".
type fakeResolver struct {
	calls []string
}

func (r *fakeResolver) Resolve(_ context.Context, rawURL string) (string, error) {
	r.calls = append(r.calls, rawURL)
	if strings.Contains(rawURL, "fail") {
		return "", errors.New(rawURL + ": failed to parse title")
	}
	return "title of " + rawURL, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeChannels struct {
	added   []string
	removed []string
}

func (f *fakeChannels) AddChannel(name string) error {
	f.added = append(f.added, name)
	return nil
}

func (f *fakeChannels) RemoveChannel(name string) error {
	f.removed = append(f.removed, name)
	return nil
}

type harness struct {
	h        *Handler
	client   *fakeClient
	resolver *fakeResolver
	store    history.Store
	channels *fakeChannels
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()
	cfg := config.Default()
	mutate(&cfg)

	store, err := sqlite.Open(sqlite.Memory, fixedClock{now: time.Date(2018, time.June, 1, 10, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	hs := &harness{
		client:   &fakeClient{nick: "urlbot", joined: []string{"#chan"}},
		resolver: &fakeResolver{},
		store:    store,
		channels: &fakeChannels{},
	}
	hs.h = NewHandler(cfg, hs.client, hs.resolver, store, hs.channels, nil)
	return hs
}

func (hs *harness) say(sender, target, text string) {
	hs.h.Handle(context.Background(), bot.Privmsg{Sender: sender, Target: target, Text: text})
}

func TestTitleReply(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(*config.Config) {})
	hs.say("alice", "#chan", "look https://example.com/page")

	require.Equal(t, []sent{{"privmsg", "#chan", "⤷ title of https://example.com/page"}}, hs.client.sent)
}

func TestDuplicateURLInMessageResolvedOnce(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(*config.Config) {})
	hs.say("alice", "#chan", "https://example.com/a https://EXAMPLE.com:443/a#frag https://example.com/b")

	require.Equal(t, []string{"https://example.com/a", "https://example.com/b"}, hs.resolver.calls)
	require.Len(t, hs.client.sent, 2)
	require.Equal(t, "⤷ title of https://example.com/a", hs.client.sent[0].text)
	require.Equal(t, "⤷ title of https://example.com/b", hs.client.sent[1].text)
}

func TestRepostCarriesFirstPoster(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(c *config.Config) { c.Features.History = true })
	hs.say("alice", "#chan", "https://example.com/")
	hs.say("bob", "#chan", "https://example.com/")

	require.Len(t, hs.client.sent, 2)
	require.Equal(t, "⤷ title of https://example.com/", hs.client.sent[0].text)
	require.Equal(t, "⤷ title of https://example.com/ → Fri Jun  1 10:00:00 2018 alice (#chan)", hs.client.sent[1].text)
}

func TestRepostMasksHighlight(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(c *config.Config) {
		c.Features.History = true
		c.Features.MaskHighlights = true
	})
	hs.say("alice", "#chan", "https://example.com/")
	hs.say("bob", "#chan", "https://example.com/")

	require.Contains(t, hs.client.sent[1].text, " a\u200dlice (#chan)")
	require.Equal(t, 1, strings.Count(hs.client.sent[1].text, "\u200d"))
}

func TestRepostScopedToChannel(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(c *config.Config) { c.Features.History = true })
	hs.say("alice", "#one", "https://example.com/")
	hs.say("bob", "#two", "https://example.com/")
	require.Equal(t, "⤷ title of https://example.com/", hs.client.sent[1].text)

	cross := newHarness(t, func(c *config.Config) {
		c.Features.History = true
		c.Features.CrossChannelHistory = true
	})
	cross.say("alice", "#one", "https://example.com/")
	cross.say("bob", "#two", "https://example.com/")
	require.True(t, strings.HasSuffix(cross.client.sent[1].text, "alice (#one)"))
}

func TestQueriesAreNotLogged(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(c *config.Config) { c.Features.History = true })
	hs.say("alice", "alice", "https://example.com/")
	prev, err := hs.store.CheckPrepost(context.Background(), "https://example.com/")
	require.NoError(t, err)
	require.Nil(t, prev)
	require.Equal(t, "alice", hs.client.sent[0].target)
}

func TestUnsafeAndNonHTTPTokensIgnored(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(*config.Config) {})
	hs.say("alice", "#chan", "<https://example.com/> https://ex.com/{x} ftp://example.com/ mailto:a@b.com example.com")
	hs.say("alice", "#chan", "prefix links with http:// or https:/// please, http:foo https://:443/")

	require.Empty(t, hs.resolver.calls)
	require.Empty(t, hs.client.sent)
}

func TestPartialURLs(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(c *config.Config) { c.Features.PartialURLs = true })
	hs.say("alice", "#chan", "see example.com/x and user@example.com and foo.notatld and 1example.com and com")

	require.Equal(t, []string{"http://example.com/x"}, hs.resolver.calls)
}

func TestURLLimitCountsAnnouncedTitles(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(c *config.Config) { c.Params.URLLimit = 2 })
	hs.say("alice", "alice", "https://fail.test/ https://a.test/ https://b.test/ https://c.test/")

	require.Equal(t, []string{"https://fail.test/", "https://a.test/", "https://b.test/"}, hs.resolver.calls)
}

func TestLongRepliesTruncated(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(*config.Config) {})
	hs.say("alice", "#chan", "https://example.com/"+strings.Repeat("é", 400))

	require.Len(t, hs.client.sent, 1)
	got := hs.client.sent[0].text
	require.LessOrEqual(t, len(got), maxLineBytes)
	require.True(t, strings.HasPrefix(got, "⤷ title of https://example.com/"))
}

func TestLongErrorsTruncated(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(*config.Config) {})
	hs.say("alice", "alice", "https://fail.test/"+strings.Repeat("ü", 400))

	require.Len(t, hs.client.sent, 1)
	got := hs.client.sent[0].text
	require.LessOrEqual(t, len(got), maxLineBytes)
	require.True(t, utf8.ValidString(got))
	require.True(t, strings.HasPrefix(got, "https://fail.test/"))
}

func TestSendNoticeOnlyInChannels(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(c *config.Config) { c.Features.SendNotice = true })
	hs.say("alice", "#chan", "https://example.com/")
	hs.say("alice", "alice", "https://example.org/")

	require.Equal(t, "notice", hs.client.sent[0].kind)
	require.Equal(t, "privmsg", hs.client.sent[1].kind)
}

func TestErrorRouting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		target string
		want   []sent
	}{
		{
			name:   "query always gets the error",
			mutate: func(*config.Config) {},
			target: "alice",
			want:   []sent{{"privmsg", "alice", "https://fail.test/: failed to parse title"}},
		},
		{
			name:   "channel error is silent by default",
			mutate: func(*config.Config) {},
			target: "#chan",
			want:   nil,
		},
		{
			name:   "reply with errors",
			mutate: func(c *config.Config) { c.Features.ReplyWithErrors = true },
			target: "#chan",
			want:   []sent{{"privmsg", "#chan", "https://fail.test/: failed to parse title"}},
		},
		{
			name:   "errors to poster",
			mutate: func(c *config.Config) { c.Features.SendErrorsToPoster = true },
			target: "#chan",
			want:   []sent{{"privmsg", "alice", "https://fail.test/: failed to parse title"}},
		},
		{
			name:   "status channels joined then messaged",
			mutate: func(c *config.Config) { c.Params.StatusChannels = []string{"#status", "#ops"} },
			target: "#chan",
			want: []sent{
				{"join", "#status", ""},
				{"join", "#ops", ""},
				{"privmsg", "#status", "https://fail.test/: failed to parse title"},
				{"privmsg", "#ops", "https://fail.test/: failed to parse title"},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			hs := newHarness(t, tt.mutate)
			hs.say("alice", tt.target, "https://fail.test/")
			require.Equal(t, tt.want, hs.client.sent)
		})
	}
}

func TestStatusChannelsNotRejoined(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(c *config.Config) { c.Params.StatusChannels = []string{"#Status"} })
	hs.client.joined = append(hs.client.joined, "#status")
	hs.say("alice", "#chan", "https://fail.test/")

	require.Equal(t, []sent{{"privmsg", "#Status", "https://fail.test/: failed to parse title"}}, hs.client.sent)
}

func TestStatusChannelMessagesIgnored(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(c *config.Config) { c.Params.StatusChannels = []string{"#status"} })
	hs.say("alice", "#status", "https://example.com/")
	hs.say("alice", "#status", "just chatting")

	require.Empty(t, hs.resolver.calls)
	require.Equal(t, []sent{{"privmsg", "alice", "ignoring messages in channel #status"}}, hs.client.sent)
}

func TestNickResponse(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(c *config.Config) {
		c.Features.NickResponse = true
		c.Params.NickResponseStr = "I resolve URLs"
	})
	hs.say("alice", "#chan", "hey urlbot, you there?")
	hs.say("alice", "#chan", "urlbotty is not me")
	hs.say("alice", "#chan", "urlbot: https://example.com/")

	require.Equal(t, []sent{
		{"privmsg", "#chan", "I resolve URLs"},
		{"privmsg", "#chan", "⤷ title of https://example.com/"},
	}, hs.client.sent)
}

func TestInviteJoinsAndSaves(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(c *config.Config) {
		c.Features.Invite = true
		c.Features.Autosave = true
	})
	hs.h.Handle(context.Background(), bot.Invite{Inviter: "alice", Nick: "someoneelse", Channel: "#other"})
	hs.h.Handle(context.Background(), bot.Invite{Inviter: "alice", Nick: "urlbot", Channel: "#new"})

	require.Equal(t, []sent{{"join", "#new", ""}}, hs.client.sent)
	require.Equal(t, []string{"#new"}, hs.channels.added)
}

func TestInviteDisabled(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(c *config.Config) { c.Features.Autosave = true })
	hs.h.Handle(context.Background(), bot.Invite{Inviter: "alice", Nick: "urlbot", Channel: "#new"})

	require.Empty(t, hs.client.sent)
	require.Empty(t, hs.channels.added)
}

func TestKickRemovesChannelWithAutosave(t *testing.T) {
	t.Parallel()

	hs := newHarness(t, func(c *config.Config) { c.Features.Autosave = true })
	hs.h.Handle(context.Background(), bot.Kick{Channel: "#chan", Nick: "alice"})
	hs.h.Handle(context.Background(), bot.Kick{Channel: "#chan", Nick: "urlbot"})
	require.Equal(t, []string{"#chan"}, hs.channels.removed)

	off := newHarness(t, func(*config.Config) {})
	off.h.Handle(context.Background(), bot.Kick{Channel: "#chan", Nick: "urlbot"})
	require.Empty(t, off.channels.removed)
}
