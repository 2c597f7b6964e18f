// Package message turns inbound chat events into replies: URL titles,
// repost notices, error reports and channel membership changes.
package message

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/urlbot/internal/bot"
	"github.com/JakeFAU/urlbot/internal/config"
	"github.com/JakeFAU/urlbot/internal/history"
	"github.com/JakeFAU/urlbot/internal/metrics"
)

// Resolver resolves one URL to a title.
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// ChannelStore persists the configured channel list; config.Saver satisfies it.
type ChannelStore interface {
	AddChannel(name string) error
	RemoveChannel(name string) error
}

// Handler processes events for one network connection. It is not safe for
// concurrent use; events are handled one at a time.
type Handler struct {
	cfg      config.Config
	client   bot.Client
	resolver Resolver
	store    history.Store
	channels ChannelStore
	logger   *zap.Logger
}

// NewHandler wires a Handler. store may be nil when history is disabled and
// channels may be nil when autosave is disabled.
func NewHandler(
	cfg config.Config,
	client bot.Client,
	resolver Resolver,
	store history.Store,
	channels ChannelStore,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:      cfg,
		client:   client,
		resolver: resolver,
		store:    store,
		channels: channels,
		logger:   logger,
	}
}

// Handle dispatches one event.
func (h *Handler) Handle(ctx context.Context, ev bot.Event) {
	switch e := ev.(type) {
	case bot.Privmsg:
		h.privmsg(ctx, e)
	case bot.Invite:
		h.invite(e)
	case bot.Kick:
		h.kick(e)
	}
}

func (h *Handler) privmsg(ctx context.Context, msg bot.Privmsg) {
	ping := isPing(h.client.CurrentNick(), msg.Text)

	if h.cfg.Params.IsStatusChannel(msg.Target) {
		if ping || containsURLs(msg.Text) {
			h.send(msg.Sender, "ignoring messages in channel "+msg.Target, "status")
		}
		return
	}

	outcomes := h.ProcessTitles(ctx, msg)
	for _, o := range outcomes {
		switch o.Kind {
		case bot.OutcomeTitle:
			h.respond(msg, o.Text)
		case bot.OutcomeError:
			h.respondError(msg, o.Text)
		}
	}

	if len(outcomes) == 0 && ping && h.cfg.Features.NickResponse && h.cfg.Params.NickResponseStr != "" {
		h.respond(msg, h.cfg.Params.NickResponseStr)
	}
}

// ProcessTitles resolves the URLs in msg and returns one outcome per URL, in
// message order.
func (h *Handler) ProcessTitles(ctx context.Context, msg bot.Privmsg) []bot.Outcome {
	var outcomes []bot.Outcome
	seen := make(map[string]struct{})
	processed := 0
	chanmsg := bot.IsChannel(msg.Target)

	for _, token := range strings.Fields(msg.Text) {
		if containsUnsafeChars(token) {
			continue
		}
		if h.cfg.Features.PartialURLs {
			if full, ok := addSchemeForTLD(token); ok {
				token = full
			}
		}
		u, err := url.Parse(token)
		if err != nil || !isFetchable(u) {
			continue
		}
		key := normalizeURL(u)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		h.logger.Info("resolve", zap.String("url", token), zap.String("target", msg.Target))
		title, err := h.resolver.Resolve(ctx, token)
		if err != nil {
			h.logger.Warn("resolve failed", zap.String("url", token), zap.Error(err))
			outcomes = append(outcomes, bot.Error(truncate(err.Error(), maxLineBytes)))
			continue
		}
		reply := truncate(h.reply(ctx, msg, token, title, chanmsg), maxLineBytes)
		h.logger.Info("title", zap.String("reply", reply))
		outcomes = append(outcomes, bot.Title(reply))

		// only announced titles count towards the limit
		processed++
		if processed >= h.cfg.Params.URLLimit {
			break
		}
	}
	return outcomes
}

// reply formats the announcement for one title, consulting and updating
// the history when enabled.
func (h *Handler) reply(ctx context.Context, msg bot.Privmsg, rawURL, title string, chanmsg bool) string {
	if !h.cfg.Features.History || h.store == nil {
		return formatTitle(title)
	}

	prev, err := h.store.CheckPrepost(ctx, rawURL)
	if err != nil {
		h.logger.Error("check prepost", zap.String("url", rawURL), zap.Error(err))
		return formatTitle(title)
	}
	if prev != nil && !h.cfg.Features.CrossChannelHistory && prev.Channel != msg.Target {
		prev = nil
	}
	if prev != nil {
		user := prev.User
		if h.cfg.Features.MaskHighlights {
			user = maskHighlight(user)
		}
		return formatPrepost(title, prev.TimeCreated, user, prev.Channel)
	}

	if chanmsg {
		entry := history.Entry{Title: title, URL: rawURL, User: msg.Sender, Channel: msg.Target}
		if err := h.store.AddLog(ctx, entry); err != nil {
			h.logger.Error("add log", zap.String("url", rawURL), zap.Error(err))
		}
	}
	return formatTitle(title)
}

func (h *Handler) respond(msg bot.Privmsg, text string) {
	if h.cfg.Features.SendNotice && bot.IsChannel(msg.Target) {
		if err := h.client.SendNotice(msg.Target, text); err != nil {
			h.logger.Error("send notice", zap.String("target", msg.Target), zap.Error(err))
			return
		}
		metrics.ObserveAnnouncement(h.cfg.Network.Name, "notice")
		return
	}
	h.send(msg.Target, text, "message")
}

func (h *Handler) respondError(msg bot.Privmsg, text string) {
	chanmsg := bot.IsChannel(msg.Target)
	if !chanmsg || h.cfg.Features.ReplyWithErrors {
		h.respond(msg, text)
	}
	// a query already carries the error back to the poster
	if chanmsg && h.cfg.Features.SendErrorsToPoster {
		h.send(msg.Sender, text, "error")
	}
	if chanmsg {
		h.messageStatusChannels(text)
	}
}

// messageStatusChannels joins any status channel not yet joined and sends text to all of them.
func (h *Handler) messageStatusChannels(text string) {
	if len(h.cfg.Params.StatusChannels) == 0 {
		return
	}
	joined := make(map[string]struct{})
	for _, c := range h.client.JoinedChannels() {
		joined[strings.ToLower(c)] = struct{}{}
	}
	for _, c := range h.cfg.Params.StatusChannels {
		if _, ok := joined[strings.ToLower(c)]; ok {
			continue
		}
		if err := h.client.JoinChannel(c); err != nil {
			h.logger.Error("join status channel", zap.String("channel", c), zap.Error(err))
		}
	}
	for _, c := range h.cfg.Params.StatusChannels {
		h.send(c, text, "status")
	}
}

func (h *Handler) send(target, text, kind string) {
	if err := h.client.SendMessage(target, text); err != nil {
		h.logger.Error("send message", zap.String("target", target), zap.Error(err))
		return
	}
	metrics.ObserveAnnouncement(h.cfg.Network.Name, kind)
}
