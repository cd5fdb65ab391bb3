// Package bot is the Telegram command layer for multi-user mode. It links
// each Telegram user to a Google account and a destination channel, and
// turns /picker requests into relay tasks on the worker pool.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/mymmrac/telego"
	"golang.org/x/oauth2"

	"github.com/tonimelisma/pickrelay/internal/auth"
	"github.com/tonimelisma/pickrelay/internal/config"
	"github.com/tonimelisma/pickrelay/internal/relay"
	"github.com/tonimelisma/pickrelay/internal/store"
)

// pollTimeout is the getUpdates long-poll timeout in seconds.
const pollTimeout = 30

// State is the persistent per-user state the bot reads and writes.
// *store.Store implements it.
type State interface {
	GetCredentials(ctx context.Context, user string) (*auth.Credentials, error)
	PutCredentials(ctx context.Context, user string, creds *auth.Credentials) error
	GetChannel(ctx context.Context, user string) (*store.Channel, error)
	PutChannel(ctx context.Context, user string, ch store.Channel) error
	CreateLinkCode(ctx context.Context, user string) (string, error)
	ConsumeLinkCode(ctx context.Context, code string) (string, bool, error)
	PutOAuthState(ctx context.Context, state, user string) error
	ConsumeOAuthState(ctx context.Context, state string) (string, bool, error)
}

// OAuthFlow is the web-server OAuth exchange. *auth.OAuth implements it.
type OAuthFlow interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*auth.Credentials, error)
	LookupEmail(ctx context.Context, accessToken string) string
}

// Messenger sends text to a Telegram chat. *telegram.Notifier implements it.
type Messenger interface {
	Notify(ctx context.Context, chatID int64, text string) error
	NotifyWithButton(ctx context.Context, chatID int64, text, label, url string) error
}

// Runner schedules relay tasks. *relay.Pool implements it.
type Runner interface {
	Submit(t relay.Task) (string, error)
	Cancel(key string) bool
	Active(key string) bool
}

// Relayer runs one full relay for user into chatID.
type Relayer interface {
	Relay(ctx context.Context, user string, chatID int64, rep relay.Reporter) error
}

// Service handles bot updates.
type Service struct {
	holder  *config.Holder
	state   State
	oauth   OAuthFlow
	msg     Messenger
	runner  Runner
	relayer Relayer
	logger  *slog.Logger

	// newState generates OAuth state values. Tests override it.
	newState func() (string, error)
}

// New creates a Service.
func New(
	holder *config.Holder,
	state State,
	oauth OAuthFlow,
	msg Messenger,
	runner Runner,
	relayer Relayer,
	logger *slog.Logger,
) *Service {
	return &Service{
		holder:   holder,
		state:    state,
		oauth:    oauth,
		msg:      msg,
		runner:   runner,
		relayer:  relayer,
		logger:   logger,
		newState: auth.NewState,
	}
}

// Poll receives updates by long polling and dispatches them until ctx is
// canceled.
func (s *Service) Poll(ctx context.Context, bot *telego.Bot) error {
	updates, err := bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        pollTimeout,
		AllowedUpdates: []string{"message", "channel_post"},
	})
	if err != nil {
		return fmt.Errorf("bot: starting long polling: %w", err)
	}

	s.logger.Info("telegram bot polling", slog.String("username", bot.Username()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}

			s.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate dispatches one update. Errors are reported to the user or
// logged; none are returned.
func (s *Service) HandleUpdate(ctx context.Context, u telego.Update) {
	switch {
	case u.ChannelPost != nil:
		s.handleChannelPost(ctx, u.ChannelPost)
	case u.Message != nil:
		s.handleMessage(ctx, u.Message)
	}
}

func (s *Service) handleMessage(ctx context.Context, m *telego.Message) {
	if m.From == nil || m.Chat.Type != telego.ChatTypePrivate {
		return
	}

	user := userKey(m.From.ID)

	if !s.allowed(m.From.ID) {
		s.logger.Debug("message from user not on allow list", slog.Int64("user_id", m.From.ID))
		s.reply(ctx, m.Chat.ID, msgNotAllowed)

		return
	}

	if m.ForwardOrigin != nil {
		s.handleForward(ctx, m, user)
		return
	}

	cmd, _ := parseCommand(m.Text)
	s.logger.Debug("command received", slog.String("user", user), slog.String("command", cmd))

	switch cmd {
	case "/start", "/help":
		s.reply(ctx, m.Chat.ID, msgHelp)
	case "/connect":
		s.cmdConnect(ctx, m.Chat.ID, user)
	case "/setchannel":
		s.cmdSetChannel(ctx, m.Chat.ID, user)
	case "/picker":
		s.cmdPicker(ctx, m.Chat.ID, user)
	case "/cancel":
		s.cmdCancel(ctx, m.Chat.ID, user)
	case "/status":
		s.cmdStatus(ctx, m.Chat.ID, user)
	case "/link":
		s.reply(ctx, m.Chat.ID, msgLinkInChannel)
	case "":
		s.reply(ctx, m.Chat.ID, msgHelp)
	default:
		s.reply(ctx, m.Chat.ID, msgUnknownCommand)
	}
}

// allowed applies telegram.allowed_users from the live config. An empty
// list admits everyone.
func (s *Service) allowed(id int64) bool {
	list := s.holder.Config().Telegram.AllowedUsers

	return len(list) == 0 || slices.Contains(list, id)
}

func (s *Service) reply(ctx context.Context, chatID int64, text string) {
	if err := s.msg.Notify(ctx, chatID, text); err != nil {
		s.logger.Warn("reply failed", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}

func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// chatOf maps a user key back to the private chat with that user.
func chatOf(user string) (int64, error) {
	id, err := strconv.ParseInt(user, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bot: invalid user key %q: %w", user, err)
	}

	return id, nil
}
