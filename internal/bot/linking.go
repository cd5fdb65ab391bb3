package bot

import (
	"context"
	"log/slog"
	"strings"

	"github.com/mymmrac/telego"

	"github.com/tonimelisma/pickrelay/internal/store"
)

// handleForward links the channel a forwarded post came from.
func (s *Service) handleForward(ctx context.Context, m *telego.Message, user string) {
	origin, ok := m.ForwardOrigin.(*telego.MessageOriginChannel)
	if !ok || origin.Chat.Type != telego.ChatTypeChannel {
		s.reply(ctx, m.Chat.ID, msgForwardNotChannel)
		return
	}

	s.linkChannel(ctx, user, store.Channel{ChatID: origin.Chat.ID, Title: origin.Chat.Title})
}

// handleChannelPost accepts "/link CODE" posted in a channel where the bot
// is an admin.
func (s *Service) handleChannelPost(ctx context.Context, post *telego.Message) {
	cmd, args := parseCommand(post.Text)
	if cmd != "/link" || len(args) != 1 {
		return
	}

	user, ok, err := s.state.ConsumeLinkCode(ctx, strings.TrimSpace(args[0]))
	if err != nil {
		s.logger.Error("consuming link code", slog.String("error", err.Error()))
		return
	}

	if !ok {
		s.logger.Info("unknown or expired link code", slog.Int64("chat_id", post.Chat.ID))
		return
	}

	s.linkChannel(ctx, user, store.Channel{ChatID: post.Chat.ID, Title: post.Chat.Title})
}

func (s *Service) linkChannel(ctx context.Context, user string, ch store.Channel) {
	chatID, err := chatOf(user)
	if err != nil {
		s.logger.Error("linking channel", slog.String("error", err.Error()))
		return
	}

	if err := s.state.PutChannel(ctx, user, ch); err != nil {
		s.logger.Error("saving channel", slog.String("user", user), slog.String("error", err.Error()))
		s.reply(ctx, chatID, msgInternalError)

		return
	}

	s.logger.Info("channel linked", slog.String("user", user), slog.Int64("chat_id", ch.ChatID))
	s.reply(ctx, chatID, "Linked channel: "+channelLabel(&ch))
}
