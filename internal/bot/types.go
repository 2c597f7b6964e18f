// Package bot defines core types shared across the bot's subsystems.
package bot

import "strings"

// Event is an inbound chat event delivered by the transport.
type Event interface {
	isEvent()
}

// Privmsg is a chat line. Target is the reply target: the channel for channel
// messages, the sender for private queries.
type Privmsg struct {
	Sender string
	Target string
	Text   string
}

// Kick reports Nick being removed from Channel.
type Kick struct {
	Channel string
	Nick    string
}

// Invite reports Inviter inviting Nick to Channel.
type Invite struct {
	Inviter string
	Nick    string
	Channel string
}

func (Privmsg) isEvent() {}
func (Kick) isEvent()    {}
func (Invite) isEvent()  {}

// IsChannel reports whether target names a channel rather than a nick.
func IsChannel(target string) bool {
	return strings.HasPrefix(target, "#") || strings.HasPrefix(target, "&")
}

// OutcomeKind distinguishes successful and failed resolutions.
type OutcomeKind int

// Outcome kinds.
const (
	OutcomeTitle OutcomeKind = iota
	OutcomeError
)

// Outcome is the per-URL result of processing one token.
type Outcome struct {
	Kind OutcomeKind
	Text string
}

// Title builds a successful outcome.
func Title(text string) Outcome {
	return Outcome{Kind: OutcomeTitle, Text: text}
}

// Error builds a failed outcome.
func Error(text string) Outcome {
	return Outcome{Kind: OutcomeError, Text: text}
}
