package message

import (
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/urlbot/internal/bot"
)

func (h *Handler) isMe(nick string) bool {
	return strings.EqualFold(nick, h.client.CurrentNick())
}

// invite joins the channel the bot was invited to and, with autosave, adds it
// to the configuration file.
func (h *Handler) invite(ev bot.Invite) {
	if !h.cfg.Features.Invite || !h.isMe(ev.Nick) {
		return
	}
	h.logger.Info("invited", zap.String("channel", ev.Channel), zap.String("by", ev.Inviter))
	if err := h.client.JoinChannel(ev.Channel); err != nil {
		h.logger.Error("join channel", zap.String("channel", ev.Channel), zap.Error(err))
		return
	}
	if h.cfg.Features.Autosave && h.channels != nil {
		if err := h.channels.AddChannel(ev.Channel); err != nil {
			h.logger.Error("error writing config", zap.String("channel", ev.Channel), zap.Error(err))
		}
	}
}

// kick drops the channel the bot was kicked from when autosave is on.
func (h *Handler) kick(ev bot.Kick) {
	if !h.cfg.Features.Autosave || h.channels == nil || !h.isMe(ev.Nick) {
		return
	}
	h.logger.Info("kicked", zap.String("channel", ev.Channel))
	if err := h.channels.RemoveChannel(ev.Channel); err != nil {
		h.logger.Error("error writing config", zap.String("channel", ev.Channel), zap.Error(err))
	}
}
