package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/tonimelisma/pickrelay/internal/auth"
	"github.com/tonimelisma/pickrelay/internal/config"
	"github.com/tonimelisma/pickrelay/internal/picker"
	"github.com/tonimelisma/pickrelay/internal/relay"
	"github.com/tonimelisma/pickrelay/internal/store"
	"github.com/tonimelisma/pickrelay/internal/telegram"
)

// newOAuth builds the Google OAuth client from config.
func newOAuth(cfg *config.Config, logger *slog.Logger) (*auth.OAuth, error) {
	settings, err := cfg.Transfer.Parse()
	if err != nil {
		return nil, err
	}

	return auth.NewOAuth(auth.Settings{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		AuthURL:      cfg.Google.AuthURL,
		TokenURL:     cfg.Google.TokenURL,
		UserinfoURL:  cfg.Google.UserinfoURL,
		Scopes:       cfg.Google.Scopes,
	}, httpClient(settings.HTTPTimeout), logger), nil
}

// pipelineRelayer assembles a fresh pipeline for every run from the live
// config, so reloaded limits and pauses apply to the next run.
type pipelineRelayer struct {
	holder *config.Holder
	guard  *auth.Guard
	bot    *telego.Bot
	store  *store.Store
	logger *slog.Logger
}

// Relay implements bot.Relayer.
func (r *pipelineRelayer) Relay(ctx context.Context, user string, chatID int64, rep relay.Reporter) error {
	_, err := r.run(ctx, user, tu.ID(chatID), rep)
	return err
}

// run relays one selection for user into chat.
func (r *pipelineRelayer) run(ctx context.Context, user string, chat telego.ChatID, rep relay.Reporter) (*relay.Result, error) {
	snap := r.holder.Snapshot()
	cfg, settings := snap.Config, snap.Transfer

	logger := r.logger.With(slog.String("user", user))

	pk := picker.NewClient(cfg.Google.PickerURL, httpClient(settings.UploadTimeout), r.guard.TokenSource(user), logger)
	pk.SetDownloadLimit(settings.FileMaxBytes)

	uploader := telegram.NewUploader(r.bot, telegram.Limits{
		PhotoMaxBytes: settings.PhotoMaxBytes,
		FileMaxBytes:  settings.FileMaxBytes,
	}, cfg.Telegram.CaptionFilenames, logger)

	p := relay.NewPipeline(pk, uploader, r.store.Ledger(ledgerKey(chat)), relay.Options{
		Chat:          chat,
		MaxWait:       settings.MaxWait,
		UploadPause:   settings.UploadPause,
		ProgressEvery: settings.ProgressEvery,
		DeleteSession: settings.DeleteSession,
	}, logger)

	return p.Run(ctx, rep)
}

// ledgerKey names a destination in the ledger: the numeric chat id, or the
// @username for public channels addressed by name.
func ledgerKey(chat telego.ChatID) string {
	if chat.Username != "" {
		return chat.Username
	}

	return strconv.FormatInt(chat.ID, 10)
}
