package main

import (
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/pickrelay/internal/auth"
	"github.com/tonimelisma/pickrelay/internal/bot"
	"github.com/tonimelisma/pickrelay/internal/config"
	"github.com/tonimelisma/pickrelay/internal/relay"
	"github.com/tonimelisma/pickrelay/internal/store"
	"github.com/tonimelisma/pickrelay/internal/telegram"
)

func newBotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the multi-user Telegram bot",
		Long: "Serve Telegram users: each links a Google account with /connect and a\n" +
			"channel with /setchannel, then sends /picker to relay a selection.\n" +
			"Also serves the OAuth callback at server.public_base_url.",
		RunE: runBot,
	}
}

func runBot(cmd *cobra.Command, _ []string) error {
	cfg := resolvedCfg
	if err := config.RequireBot(cfg); err != nil {
		return err
	}

	holder, err := config.NewHolder(cfg, resolvedCfgPath)
	if err != nil {
		return err
	}

	settings := holder.Transfer()

	unlock, err := writePIDFile(cfg.BotPIDPath())
	if err != nil {
		return err
	}
	defer unlock()

	logger := buildLogger()
	ctx := shutdownContext(cmd.Context(), logger)

	st, err := store.Open(ctx, cfg.StateDBPath(), logger)
	if err != nil {
		return err
	}
	defer st.Close()

	o, err := newOAuth(cfg, logger)
	if err != nil {
		return err
	}

	o = o.WithRedirectURL(strings.TrimRight(cfg.Server.PublicBaseURL, "/") + cfg.Server.CallbackPath)
	guard := auth.NewGuard(st.Credentials(), o, settings.TokenMargin, logger)

	tgBot, err := telegram.NewBot(cfg.Telegram.BotToken, cfg.Telegram.APIURL, httpClient(settings.UploadTimeout), logger)
	if err != nil {
		return err
	}

	pool := relay.NewPool(settings.Workers, settings.QueueSize, logger)

	relayer := &pipelineRelayer{
		holder: holder,
		guard:  guard,
		bot:    tgBot,
		store:  st,
		logger: logger,
	}

	svc := bot.New(holder, st, o, telegram.NewNotifier(tgBot), pool, relayer, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return pool.Run(gctx) })
	g.Go(func() error { return svc.Poll(gctx, tgBot) })
	g.Go(func() error { return svc.ServeCallback(gctx, cfg.Server.ListenAddr, cfg.Server.CallbackPath) })
	g.Go(func() error { return config.Watch(gctx, holder, logger) })

	statusf("Bot running. Press Ctrl-C to stop.\n")

	return g.Wait()
}
