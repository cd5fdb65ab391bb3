package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tonimelisma/pickrelay/internal/auth"
	"github.com/tonimelisma/pickrelay/internal/picker"
	"github.com/tonimelisma/pickrelay/internal/relay"
)

// notifyTimeout bounds one progress message. Messages outlive the run's
// context so the user still hears about a cancellation.
const notifyTimeout = 15 * time.Second

// dmReporter sends run events to the requesting user's private chat.
type dmReporter struct {
	msg    Messenger
	chatID int64
	logger *slog.Logger
}

func (r *dmReporter) PickerReady(ctx context.Context, uri string) {
	r.send(ctx, func(ctx context.Context) error {
		return r.msg.NotifyWithButton(ctx, r.chatID, msgPickerPrompt+uri, msgPickerButton, uri)
	})
}

func (r *dmReporter) Progress(ctx context.Context, sent int) {
	r.text(ctx, fmt.Sprintf("Progress: %d sent…", sent))
}

func (r *dmReporter) ItemFailed(ctx context.Context, o relay.Outcome) {
	name := o.Filename
	if name == "" {
		name = o.ItemID
	}

	r.text(ctx, fmt.Sprintf("Skipped one (%s): %s", name, o.Detail))
}

func (r *dmReporter) Finished(ctx context.Context, res *relay.Result) {
	r.text(ctx, res.Summary())
}

func (r *dmReporter) Fatal(ctx context.Context, err error) {
	r.text(ctx, fatalMessage(err))
}

func (r *dmReporter) text(ctx context.Context, s string) {
	r.send(ctx, func(ctx context.Context) error {
		return r.msg.Notify(ctx, r.chatID, s)
	})
}

func (r *dmReporter) send(ctx context.Context, fn func(context.Context) error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := fn(sctx); err != nil {
		r.logger.Warn("progress message failed", slog.Int64("chat_id", r.chatID), slog.String("error", err.Error()))
	}
}

// fatalMessage phrases a run-aborting error for the user.
func fatalMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "Picker job cancelled."
	case errors.Is(err, auth.ErrAuthRequired):
		return "Picker job failed: Google access expired. Send /connect to link your account again."
	case errors.Is(err, picker.ErrSelectionTimeout):
		return "Picker job failed: the selection was not finished in time."
	default:
		return "Picker job failed: " + err.Error()
	}
}
