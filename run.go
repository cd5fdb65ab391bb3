package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/pickrelay/internal/auth"
	"github.com/tonimelisma/pickrelay/internal/config"
	"github.com/tonimelisma/pickrelay/internal/relay"
	"github.com/tonimelisma/pickrelay/internal/store"
	"github.com/tonimelisma/pickrelay/internal/telegram"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Pick media in Google Photos and send it to a Telegram channel",
		Long: "Create a Google Photos Picker session, wait for you to finish selecting,\n" +
			"then post every picked item to the channel. Items already sent to the\n" +
			"same channel are skipped. Requires 'pickrelay login' first.",
		RunE: runRun,
	}
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg := resolvedCfg
	if err := config.RequireRun(cfg); err != nil {
		return err
	}

	holder, err := config.NewHolder(cfg, resolvedCfgPath)
	if err != nil {
		return err
	}

	settings := holder.Transfer()

	chat, err := telegram.ParseChatID(cfg.Telegram.ChannelID)
	if err != nil {
		return err
	}

	logger := buildLogger()
	ctx := shutdownContext(cmd.Context(), logger)

	o, err := newOAuth(cfg, logger)
	if err != nil {
		return err
	}

	guard := auth.NewGuard(auth.NewFileStore(cfg.TokenDir()), o, settings.TokenMargin, logger)

	if _, err := guard.EnsureValid(ctx, cliUser); err != nil {
		if errors.Is(err, auth.ErrAuthRequired) {
			return fmt.Errorf("not logged in, run 'pickrelay login' first: %w", err)
		}

		return err
	}

	st, err := store.Open(ctx, cfg.StateDBPath(), logger)
	if err != nil {
		return err
	}
	defer st.Close()

	tgBot, err := telegram.NewBot(cfg.Telegram.BotToken, cfg.Telegram.APIURL, httpClient(settings.UploadTimeout), logger)
	if err != nil {
		return err
	}

	r := &pipelineRelayer{
		holder: holder,
		guard:  guard,
		bot:    tgBot,
		store:  st,
		logger: logger,
	}

	rep := &cliReporter{w: os.Stderr, quiet: flagQuiet, qr: stderrIsTerminal()}

	res, err := r.run(ctx, cliUser, chat, rep)

	if flagJSON && res != nil {
		if encErr := printResultJSON(os.Stdout, res); encErr != nil && err == nil {
			err = encErr
		}
	}

	return err
}

// cliReporter prints run events for a terminal user. The fatal error is
// not printed here: the command returns it.
type cliReporter struct {
	w     io.Writer
	quiet bool
	qr    bool
}

func (r *cliReporter) PickerReady(_ context.Context, uri string) {
	// The picker link must stay visible even with --quiet.
	fmt.Fprintf(r.w, "Open this link on your phone, select items, then tap Done:\n\n  %s\n\n", uri)

	if r.qr {
		qrterminal.GenerateHalfBlock(uri, qrterminal.L, r.w)
	}

	r.printf("Waiting for your selection...\n")
}

func (r *cliReporter) Progress(_ context.Context, sent int) {
	r.printf("Progress: %d sent…\n", sent)
}

func (r *cliReporter) ItemFailed(_ context.Context, o relay.Outcome) {
	name := o.Filename
	if name == "" {
		name = o.ItemID
	}

	fmt.Fprintf(r.w, "Skipped %s: %s\n", name, o.Detail)
}

func (r *cliReporter) Finished(_ context.Context, res *relay.Result) {
	r.printf("%s\n", res.Summary())
}

func (r *cliReporter) Fatal(context.Context, error) {}

func (r *cliReporter) printf(format string, args ...any) {
	if !r.quiet {
		fmt.Fprintf(r.w, format, args...)
	}
}

// runResultJSON is the JSON schema for `run --json`.
type runResultJSON struct {
	RunID      string        `json:"run_id"`
	SessionID  string        `json:"session_id,omitempty"`
	Sent       int           `json:"sent"`
	Skipped    int           `json:"skipped"`
	Failed     int           `json:"failed"`
	DurationMS int64         `json:"duration_ms"`
	Items      []outcomeJSON `json:"items"`
}

type outcomeJSON struct {
	ID       string `json:"id"`
	Filename string `json:"filename,omitempty"`
	Status   string `json:"status"`
	Detail   string `json:"detail,omitempty"`
}

func printResultJSON(w io.Writer, res *relay.Result) error {
	out := runResultJSON{
		RunID:      res.RunID,
		SessionID:  res.SessionID,
		Sent:       res.Sent,
		Skipped:    res.Skipped,
		Failed:     res.Failed,
		DurationMS: res.Duration.Milliseconds(),
		Items:      make([]outcomeJSON, 0, len(res.Outcomes)),
	}

	for _, o := range res.Outcomes {
		out.Items = append(out.Items, outcomeJSON{ID: o.ItemID, Filename: o.Filename, Status: string(o.Status), Detail: o.Detail})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(out)
}
