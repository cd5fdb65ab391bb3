package relay

import (
	"context"
	"log/slog"
)

// Reporter receives user-facing run events. Implementations must not block
// for long; delivery failures are theirs to log.
type Reporter interface {
	// PickerReady publishes the URI the user opens to select media.
	PickerReady(ctx context.Context, pickerURI string)
	// Progress fires every N successful deliveries.
	Progress(ctx context.Context, sent int)
	// ItemFailed reports one failed item. The run continues.
	ItemFailed(ctx context.Context, o Outcome)
	// Finished reports the final tally of a run that reached the end.
	Finished(ctx context.Context, r *Result)
	// Fatal reports the error that aborted the run. Called at most once,
	// and never together with Finished.
	Fatal(ctx context.Context, err error)
}

// LogReporter writes run events to a logger. It is the fallback when no
// user channel exists.
type LogReporter struct {
	Logger *slog.Logger
}

// PickerReady implements Reporter.
func (l LogReporter) PickerReady(_ context.Context, _ string) {
	l.Logger.Info("picker session ready for selection")
}

// Progress implements Reporter.
func (l LogReporter) Progress(_ context.Context, sent int) {
	l.Logger.Info("relay progress", slog.Int("sent", sent))
}

// ItemFailed implements Reporter.
func (l LogReporter) ItemFailed(_ context.Context, o Outcome) {
	l.Logger.Warn("item failed", slog.String("item_id", o.ItemID), slog.String("detail", o.Detail))
}

// Finished implements Reporter.
func (l LogReporter) Finished(_ context.Context, r *Result) {
	l.Logger.Info("relay finished",
		slog.Int("sent", r.Sent),
		slog.Int("skipped", r.Skipped),
		slog.Int("failed", r.Failed),
	)
}

// Fatal implements Reporter.
func (l LogReporter) Fatal(_ context.Context, err error) {
	l.Logger.Error("relay failed", slog.String("error", err.Error()))
}
