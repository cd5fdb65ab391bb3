package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Notifier sends plain-text notices to a chat. Link previews are disabled
// so picker URLs do not expand into cards.
type Notifier struct {
	bot *telego.Bot
}

// NewNotifier creates a Notifier.
func NewNotifier(bot *telego.Bot) *Notifier {
	return &Notifier{bot: bot}
}

// Notify sends text to chatID.
func (n *Notifier) Notify(ctx context.Context, chatID int64, text string) error {
	msg := tu.Message(tu.ID(chatID), text).
		WithLinkPreviewOptions(&telego.LinkPreviewOptions{IsDisabled: true})

	if _, err := n.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("telegram: notifying %d: %w", chatID, err)
	}

	return nil
}

// NotifyWithButton sends text with a single inline URL button below it.
func (n *Notifier) NotifyWithButton(ctx context.Context, chatID int64, text, label, url string) error {
	msg := tu.Message(tu.ID(chatID), text).
		WithLinkPreviewOptions(&telego.LinkPreviewOptions{IsDisabled: true}).
		WithReplyMarkup(tu.InlineKeyboard(tu.InlineKeyboardRow(tu.InlineKeyboardButton(label).WithURL(url))))

	if _, err := n.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("telegram: notifying %d: %w", chatID, err)
	}

	return nil
}
