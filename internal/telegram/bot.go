package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// NewBot creates a Bot API client. apiURL overrides the default server
// (for a self-hosted Bot API server or tests) when non-empty. httpClient
// may be nil.
func NewBot(token, apiURL string, httpClient *http.Client, logger *slog.Logger) (*telego.Bot, error) {
	opts := []telego.BotOption{telego.WithLogger(slogAdapter{logger: logger})}

	if apiURL != "" {
		opts = append(opts, telego.WithAPIServer(strings.TrimRight(apiURL, "/")))
	}

	if httpClient != nil {
		opts = append(opts, telego.WithHTTPClient(httpClient))
	}

	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("telegram: creating bot: %w", err)
	}

	return bot, nil
}

// ParseChatID accepts a numeric chat id ("-1001234567890") or a public
// channel username, with or without the leading "@".
func ParseChatID(s string) (telego.ChatID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return telego.ChatID{}, errors.New("telegram: empty chat id")
	}

	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		return tu.ID(id), nil
	}

	name := strings.TrimPrefix(s, "@")
	if name == "" || strings.ContainsAny(name, " /") {
		return telego.ChatID{}, fmt.Errorf("telegram: invalid chat id %q", s)
	}

	return tu.Username("@" + name), nil
}

// slogAdapter routes telego's internal logging into slog. Telego masks the
// bot token in what it logs.
type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Debugf(format string, args ...any) {
	a.logger.Debug("telego: " + fmt.Sprintf(format, args...))
}

func (a slogAdapter) Errorf(format string, args ...any) {
	a.logger.Warn("telego: " + fmt.Sprintf(format, args...))
}
