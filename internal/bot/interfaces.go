package bot

import "time"

// Client is the narrow view of a connected chat transport.
type Client interface {
	SendMessage(target, text string) error
	SendNotice(target, text string) error
	JoinChannel(name string) error
	CurrentNick() string
	JoinedChannels() []string
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces session IDs.
type IDGenerator interface {
	NewID() (string, error)
}
