// Package relay runs the transfer pipeline: it creates a picker session,
// waits for the user's selection, and relays every picked item to a
// Telegram chat, recording each delivery in a ledger so re-runs skip it.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/mymmrac/telego"
	"golang.org/x/time/rate"

	"github.com/tonimelisma/pickrelay/internal/auth"
	"github.com/tonimelisma/pickrelay/internal/picker"
	"github.com/tonimelisma/pickrelay/internal/telegram"
)

// Defaults applied when Options leaves a field zero.
const (
	DefaultProgressEvery = 10
	DefaultUploadPause   = 500 * time.Millisecond
	DefaultMaxWait       = 30 * time.Minute

	// teardownTimeout bounds the session delete after the run context ends.
	teardownTimeout = 10 * time.Second
)

// PickerAPI is the subset of picker.Client the pipeline drives.
type PickerAPI interface {
	CreateSession(ctx context.Context) (*picker.Session, error)
	WaitUntilReady(ctx context.Context, s *picker.Session, maxWait time.Duration) (*picker.Session, error)
	Items(ctx context.Context, sessionID string) iter.Seq2[picker.Item, error]
	Fetch(ctx context.Context, item picker.Item, w io.Writer) (*picker.Media, error)
	DeleteSession(ctx context.Context, id string) error
}

// Sender delivers one payload to a chat. telegram.Uploader implements it.
type Sender interface {
	Send(ctx context.Context, chat telego.ChatID, p telegram.Payload) (telegram.Representation, error)
}

// Ledger remembers delivered items for one destination.
type Ledger interface {
	Has(ctx context.Context, itemID string) (bool, error)
	MarkDone(ctx context.Context, itemID string) error
}

// Options tunes a Pipeline.
type Options struct {
	// Chat is the destination every item is sent to.
	Chat telego.ChatID
	// MaxWait bounds how long the user may take to finish selecting.
	MaxWait time.Duration
	// UploadPause is the minimum spacing between two uploads.
	UploadPause time.Duration
	// ProgressEvery triggers a progress report after this many sends.
	ProgressEvery int
	// DeleteSession removes the picker session when the run ends.
	DeleteSession bool
	// TempDir holds per-item download files. Empty means os.TempDir.
	TempDir string
}

// Pipeline relays one picker selection at a time. A Pipeline is not safe
// for concurrent Runs; the Pool builds one per task.
type Pipeline struct {
	picker PickerAPI
	sender Sender
	ledger Ledger
	opts   Options
	logger *slog.Logger

	state   State
	nowFunc func() time.Time
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(pk PickerAPI, sender Sender, ledger Ledger, opts Options, logger *slog.Logger) *Pipeline {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = DefaultProgressEvery
	}

	if opts.MaxWait <= 0 {
		opts.MaxWait = DefaultMaxWait
	}

	if opts.UploadPause < 0 {
		opts.UploadPause = 0
	}

	return &Pipeline{
		picker:  pk,
		sender:  sender,
		ledger:  ledger,
		opts:    opts,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// State returns the pipeline's current state.
func (p *Pipeline) State() State {
	return p.state
}

// Run executes one full relay. Per-item failures are recorded as Outcomes
// and never abort the run. A fatal error (session creation, missing
// authorization, selection timeout, enumeration failure, cancellation) is
// reported once through rep and returned together with the partial Result.
func (p *Pipeline) Run(ctx context.Context, rep Reporter) (*Result, error) {
	res := &Result{
		RunID:   uuid.NewString(),
		Started: p.nowFunc(),
	}

	logger := p.logger.With(slog.String("run_id", res.RunID))
	p.setState(logger, StateIdle)

	sess, err := p.picker.CreateSession(ctx)
	if err != nil {
		return p.fail(ctx, logger, rep, res, nil, err)
	}

	res.SessionID = sess.ID
	logger = logger.With(slog.String("session_id", sess.ID))
	p.setState(logger, StateSessionCreated)

	rep.PickerReady(ctx, sess.PickerURI)
	p.setState(logger, StateAwaitingSelection)

	if _, err := p.picker.WaitUntilReady(ctx, sess, p.opts.MaxWait); err != nil {
		return p.fail(ctx, logger, rep, res, sess, err)
	}

	p.setState(logger, StateEnumerating)

	limiter := p.newLimiter()

	for item, err := range p.picker.Items(ctx, sess.ID) {
		if err != nil {
			return p.fail(ctx, logger, rep, res, sess, fmt.Errorf("relay: enumerating picked items: %w", err))
		}

		if ctx.Err() != nil {
			return p.fail(ctx, logger, rep, res, sess, ctx.Err())
		}

		o, fatal := p.relayItem(ctx, logger, limiter, item)
		if fatal != nil {
			return p.fail(ctx, logger, rep, res, sess, fatal)
		}

		res.add(o)

		switch o.Status {
		case StatusSent:
			if res.Sent%p.opts.ProgressEvery == 0 {
				rep.Progress(ctx, res.Sent)
			}
		case StatusFailed:
			rep.ItemFailed(ctx, o)
		case StatusSkipped:
		}

		p.setState(logger, StateEnumerating)
	}

	p.setState(logger, StateFinalized)
	res.Duration = p.nowFunc().Sub(res.Started)

	if p.opts.DeleteSession {
		p.teardown(ctx, logger, sess.ID)
	}

	logger.Info("relay run complete",
		slog.Int("sent", res.Sent),
		slog.Int("skipped", res.Skipped),
		slog.Int("failed", res.Failed),
		slog.Duration("duration", res.Duration),
	)

	rep.Finished(ctx, res)

	return res, nil
}

// relayItem moves one item through fetch, upload and record. The returned
// error is non-nil only when the whole run must stop.
func (p *Pipeline) relayItem(
	ctx context.Context, logger *slog.Logger, limiter *rate.Limiter, item picker.Item,
) (Outcome, error) {
	o := Outcome{ItemID: item.ID, Filename: item.Filename}
	logger = logger.With(slog.String("item_id", item.ID))

	done, err := p.ledger.Has(ctx, item.ID)
	if err != nil {
		return failed(o, err), nil
	}

	if done {
		logger.Debug("item already delivered, skipping")
		o.Status = StatusSkipped
		o.Detail = "already sent"

		return o, nil
	}

	p.setState(logger, StateFetching)

	tmp, err := os.CreateTemp(p.opts.TempDir, "pickrelay-*")
	if err != nil {
		return failed(o, fmt.Errorf("relay: creating temp file: %w", err)), nil
	}

	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	media, err := p.picker.Fetch(ctx, item, tmp)
	if err != nil {
		if fatal := fatalCause(ctx, err); fatal != nil {
			return o, fatal
		}

		logger.Warn("download failed", slog.String("error", err.Error()))

		return failed(o, err), nil
	}

	o.Filename = media.Filename

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return failed(o, fmt.Errorf("relay: rewinding temp file: %w", err)), nil
	}

	p.setState(logger, StateUploading)

	if err := limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return o, ctx.Err()
		}

		// The next upload slot lies past the context deadline.
		logger.Warn("upload slot unavailable", slog.String("error", err.Error()))

		return failed(o, fmt.Errorf("relay: waiting for upload slot: %w", err)), nil
	}

	repr, err := p.sender.Send(ctx, p.opts.Chat, telegram.Payload{
		Filename: media.Filename,
		MimeType: media.MimeType,
		Size:     media.Size,
		Body:     tmp,
	})
	if err != nil {
		if fatal := fatalCause(ctx, err); fatal != nil {
			return o, fatal
		}

		logger.Warn("upload failed",
			slog.String("mime_type", media.MimeType),
			slog.Int64("size", media.Size),
			slog.String("error", err.Error()),
		)

		return failed(o, err), nil
	}

	p.setState(logger, StateRecording)

	// The item is already in the chat; a ledger miss only means a later
	// run may send it again.
	if err := p.ledger.MarkDone(ctx, item.ID); err != nil {
		logger.Error("delivered item not recorded in ledger", slog.String("error", err.Error()))
	}

	logger.Info("item relayed",
		slog.String("as", repr.String()),
		slog.Int64("size", media.Size),
	)

	o.Status = StatusSent

	return o, nil
}

// fail reports a fatal error once, tears down an existing session, and
// returns the partial result.
func (p *Pipeline) fail(
	ctx context.Context, logger *slog.Logger, rep Reporter, res *Result, sess *picker.Session, err error,
) (*Result, error) {
	res.Duration = p.nowFunc().Sub(res.Started)

	logger.Error("relay run aborted",
		slog.String("state", p.state.String()),
		slog.Int("sent", res.Sent),
		slog.String("error", err.Error()),
	)

	if sess != nil && p.opts.DeleteSession {
		p.teardown(ctx, logger, sess.ID)
	}

	p.setState(logger, StateFinalized)
	rep.Fatal(ctx, err)

	return res, err
}

// teardown deletes the session. It runs after cancellation too, so it uses
// a context detached from the run.
func (p *Pipeline) teardown(ctx context.Context, logger *slog.Logger, id string) {
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
	defer cancel()

	if err := p.picker.DeleteSession(tctx, id); err != nil {
		logger.Warn("picker session cleanup failed", slog.String("error", err.Error()))
		return
	}

	logger.Debug("picker session deleted")
}

func (p *Pipeline) newLimiter() *rate.Limiter {
	if p.opts.UploadPause == 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}

	return rate.NewLimiter(rate.Every(p.opts.UploadPause), 1)
}

func (p *Pipeline) setState(logger *slog.Logger, s State) {
	if p.state == s {
		return
	}

	logger.Debug("pipeline state", slog.String("from", p.state.String()), slog.String("to", s.String()))
	p.state = s
}

// fatalCause returns the error that should abort the run, or nil when err
// only affects the current item.
func fatalCause(ctx context.Context, err error) error {
	if errors.Is(err, auth.ErrAuthRequired) {
		return err
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}

	return nil
}

func failed(o Outcome, err error) Outcome {
	o.Status = StatusFailed
	o.Detail = err.Error()

	return o
}
