// Package irc adapts an ergochat ircevent connection to bot.Client and
// translates inbound lines into bot events.
package irc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlbot/internal/bot"
	"github.com/JakeFAU/urlbot/internal/buildinfo"
	"github.com/JakeFAU/urlbot/internal/config"
)

const (
	// quitGrace bounds how long Run waits for the server to close after QUIT.
	quitGrace = 5 * time.Second
	// livenessInterval is how often Run polls the connection state in case no
	// disconnect callback fires.
	livenessInterval = time.Second
)

// Settings describes one connection.
type Settings struct {
	Connection config.ConnectionConfig
	// Channels joined after registration.
	Channels []string
}

// Session is one IRC connection. It satisfies bot.Client.
type Session struct {
	conn     *ircevent.Connection
	settings Settings
	logger   *zap.Logger

	mu     sync.Mutex
	joined map[string]string

	closed    chan struct{}
	closeOnce sync.Once
}

var _ bot.Client = (*Session)(nil)

// New prepares a session; nothing is dialled until Run.
func New(s Settings, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := s.Connection
	conn := &ircevent.Connection{
		Server:      net.JoinHostPort(c.Server, strconv.Itoa(c.Port)),
		Nick:        c.Nickname,
		User:        c.Username,
		RealName:    c.Realname,
		Password:    c.Password,
		UseTLS:      c.UseTLS,
		Version:     buildinfo.UserAgent(),
		QuitMessage: buildinfo.Name,
	}
	if c.UseTLS {
		conn.TLSConfig = &tls.Config{ServerName: c.Server, MinVersion: tls.VersionTLS12}
	}
	return &Session{
		conn:     conn,
		settings: s,
		logger:   logger,
		joined:   make(map[string]string),
		closed:   make(chan struct{}),
	}
}

// OnEvent registers fn for every translated inbound event. Callbacks run on
// the connection's read loop, one at a time.
func (s *Session) OnEvent(fn func(bot.Event)) {
	for _, code := range []string{"PRIVMSG", "KICK", "INVITE"} {
		s.conn.AddCallback(code, func(m ircmsg.Message) {
			if ev, ok := toEvent(m); ok {
				fn(ev)
			}
		})
	}
}

// Run connects, identifies, joins the configured channels and blocks until
// the connection drops or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	s.conn.AddCallback("JOIN", func(m ircmsg.Message) {
		if len(m.Params) > 0 && s.isMe(nickOf(m.Source)) {
			s.track(m.Params[0], true)
		}
	})
	s.conn.AddCallback("PART", func(m ircmsg.Message) {
		if len(m.Params) > 0 && s.isMe(nickOf(m.Source)) {
			s.track(m.Params[0], false)
		}
	})
	s.conn.AddCallback("KICK", func(m ircmsg.Message) {
		if len(m.Params) > 1 && s.isMe(m.Params[1]) {
			s.track(m.Params[0], false)
		}
	})
	s.conn.AddDisconnectCallback(func(ircmsg.Message) {
		s.logger.Info("disconnected")
		s.markClosed()
	})
	s.conn.AddConnectCallback(func(ircmsg.Message) {
		s.logger.Info("registered", zap.String("nick", s.CurrentNick()))
		if pw := s.settings.Connection.NickPassword; pw != "" {
			if err := s.conn.Privmsg("NickServ", "IDENTIFY "+pw); err != nil {
				s.logger.Warn("identify", zap.Error(err))
			}
		}
		for _, ch := range s.settings.Channels {
			if err := s.JoinChannel(ch); err != nil {
				s.logger.Warn("join", zap.String("channel", ch), zap.Error(err))
			}
		}
	})

	if err := s.conn.Connect(); err != nil {
		return fmt.Errorf("connect %s: %w", s.conn.Server, err)
	}
	s.logger.Info("connected", zap.String("server", s.conn.Server))

	return s.wait(ctx, s.conn.Quit, s.conn.Connected)
}

// markClosed records that the connection is gone. The disconnect callback may
// fire more than once.
func (s *Session) markClosed() {
	s.closeOnce.Do(func() { close(s.closed) })
}

// wait blocks until the connection closes or ctx ends. On cancellation it
// sends QUIT and gives the server quitGrace to close the socket.
func (s *Session) wait(ctx context.Context, quit func(), connected func() bool) error {
	ticker := time.NewTicker(livenessInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.closed:
			return errors.New("disconnected: connection closed")
		case <-ticker.C:
			if !connected() {
				s.markClosed()
			}
		case <-ctx.Done():
			quit()
			select {
			case <-s.closed:
			case <-time.After(quitGrace):
			}
			return nil
		}
	}
}

// SendMessage implements bot.Client.
func (s *Session) SendMessage(target, text string) error {
	return s.conn.Privmsg(target, text)
}

// SendNotice implements bot.Client.
func (s *Session) SendNotice(target, text string) error {
	return s.conn.Notice(target, text)
}

// JoinChannel implements bot.Client.
func (s *Session) JoinChannel(name string) error {
	return s.conn.Join(name)
}

// CurrentNick implements bot.Client.
func (s *Session) CurrentNick() string {
	return s.conn.CurrentNick()
}

// JoinedChannels implements bot.Client.
func (s *Session) JoinedChannels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.joined))
	for _, name := range s.joined {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Session) track(channel string, in bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(channel)
	if in {
		s.joined[key] = channel
		return
	}
	delete(s.joined, key)
}

func (s *Session) isMe(nick string) bool {
	return strings.EqualFold(nick, s.CurrentNick())
}
