package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tonimelisma/pickrelay/internal/relay"
	"github.com/tonimelisma/pickrelay/internal/store"
)

func (s *Service) cmdConnect(ctx context.Context, chatID int64, user string) {
	state, err := s.newState()
	if err != nil {
		s.logger.Error("generating oauth state", slog.String("error", err.Error()))
		s.reply(ctx, chatID, msgInternalError)

		return
	}

	if err := s.state.PutOAuthState(ctx, state, user); err != nil {
		s.logger.Error("saving oauth state", slog.String("user", user), slog.String("error", err.Error()))
		s.reply(ctx, chatID, msgInternalError)

		return
	}

	url := s.oauth.AuthCodeURL(state)

	if err := s.msg.NotifyWithButton(ctx, chatID, msgConnectPrompt, msgConnectButton, url); err != nil {
		s.logger.Warn("sending connect link failed", slog.String("user", user), slog.String("error", err.Error()))
	}
}

func (s *Service) cmdSetChannel(ctx context.Context, chatID int64, user string) {
	code, err := s.state.CreateLinkCode(ctx, user)
	if err != nil {
		s.logger.Error("creating link code", slog.String("user", user), slog.String("error", err.Error()))
		s.reply(ctx, chatID, msgInternalError)

		return
	}

	s.reply(ctx, chatID, fmt.Sprintf(
		"Add me as an admin of your channel, then post this message in the channel:\n\n/link %s\n\n"+
			"The code expires in %d minutes. You can also forward any post from the channel to me.",
		code, int(store.LinkCodeTTL/time.Minute),
	))
}

func (s *Service) cmdPicker(ctx context.Context, chatID int64, user string) {
	creds, err := s.state.GetCredentials(ctx, user)
	if err != nil {
		s.logger.Error("loading credentials", slog.String("user", user), slog.String("error", err.Error()))
		s.reply(ctx, chatID, msgInternalError)

		return
	}

	if creds == nil {
		s.reply(ctx, chatID, msgNeedConnect)
		return
	}

	ch, err := s.state.GetChannel(ctx, user)
	if err != nil {
		s.logger.Error("loading channel", slog.String("user", user), slog.String("error", err.Error()))
		s.reply(ctx, chatID, msgInternalError)

		return
	}

	if ch == nil {
		s.reply(ctx, chatID, msgNeedChannel)
		return
	}

	rep := &dmReporter{msg: s.msg, chatID: chatID, logger: s.logger}
	dest := ch.ChatID

	id, err := s.runner.Submit(relay.Task{
		Key: user,
		Run: func(ctx context.Context) error {
			return s.relayer.Relay(ctx, user, dest, rep)
		},
	})

	switch {
	case errors.Is(err, relay.ErrBusy):
		s.reply(ctx, chatID, msgBusy)
	case errors.Is(err, relay.ErrQueueFull):
		s.reply(ctx, chatID, msgQueueFull)
	case errors.Is(err, relay.ErrPoolClosed):
		s.reply(ctx, chatID, msgClosing)
	case err != nil:
		s.logger.Error("submitting relay task", slog.String("user", user), slog.String("error", err.Error()))
		s.reply(ctx, chatID, msgInternalError)
	default:
		s.logger.Info("relay task queued",
			slog.String("user", user),
			slog.String("task_id", id),
			slog.Int64("dest", dest),
		)
		s.reply(ctx, chatID, msgCreating)
	}
}

func (s *Service) cmdCancel(ctx context.Context, chatID int64, user string) {
	if s.runner.Cancel(user) {
		s.reply(ctx, chatID, msgCancelling)
		return
	}

	s.reply(ctx, chatID, msgNoJob)
}

func (s *Service) cmdStatus(ctx context.Context, chatID int64, user string) {
	var b strings.Builder

	creds, err := s.state.GetCredentials(ctx, user)

	switch {
	case err != nil:
		s.logger.Error("loading credentials", slog.String("user", user), slog.String("error", err.Error()))
		b.WriteString("Google: unknown (error)\n")
	case creds == nil:
		b.WriteString("Google: not connected\n")
	case creds.Email != "":
		fmt.Fprintf(&b, "Google: %s\n", creds.Email)
	default:
		b.WriteString("Google: connected\n")
	}

	ch, err := s.state.GetChannel(ctx, user)

	switch {
	case err != nil:
		s.logger.Error("loading channel", slog.String("user", user), slog.String("error", err.Error()))
		b.WriteString("Channel: unknown (error)\n")
	case ch == nil:
		b.WriteString("Channel: not linked\n")
	default:
		fmt.Fprintf(&b, "Channel: %s\n", channelLabel(ch))
	}

	if s.runner.Active(user) {
		b.WriteString("Job: running")
	} else {
		b.WriteString("Job: idle")
	}

	s.reply(ctx, chatID, b.String())
}

func channelLabel(ch *store.Channel) string {
	if ch.Title == "" {
		return fmt.Sprintf("%d", ch.ChatID)
	}

	return fmt.Sprintf("%s (%d)", ch.Title, ch.ChatID)
}
