package irc

import (
	"strings"

	"github.com/ergochat/irc-go/ircmsg"

	"github.com/JakeFAU/urlbot/internal/bot"
)

// toEvent translates a raw line into a bot event. Private messages get the
// sender as reply target; CTCP requests are dropped.
func toEvent(m ircmsg.Message) (bot.Event, bool) {
	switch m.Command {
	case "PRIVMSG":
		if len(m.Params) < 2 {
			return nil, false
		}
		text := m.Params[1]
		if strings.HasPrefix(text, "\x01") {
			return nil, false
		}
		sender := nickOf(m.Source)
		target := m.Params[0]
		if !bot.IsChannel(target) {
			target = sender
		}
		return bot.Privmsg{Sender: sender, Target: target, Text: text}, true
	case "KICK":
		if len(m.Params) < 2 {
			return nil, false
		}
		return bot.Kick{Channel: m.Params[0], Nick: m.Params[1]}, true
	case "INVITE":
		if len(m.Params) < 2 {
			return nil, false
		}
		return bot.Invite{Inviter: nickOf(m.Source), Nick: m.Params[0], Channel: m.Params[1]}, true
	}
	return nil, false
}

// nickOf extracts the nickname from a nick!user@host source.
func nickOf(source string) string {
	if i := strings.IndexByte(source, '!'); i >= 0 {
		return source[:i]
	}
	return source
}
