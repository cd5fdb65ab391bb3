package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/pickrelay/internal/auth"
	"github.com/tonimelisma/pickrelay/internal/config"
	"github.com/tonimelisma/pickrelay/internal/store"
	"github.com/tonimelisma/pickrelay/internal/telegram"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show login, channel, and ledger state",
		RunE:  runStatus,
	}
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	TokenFile   string     `json:"token_file"`
	LoggedIn    bool       `json:"logged_in"`
	Email       string     `json:"email,omitempty"`
	Expiry      *time.Time `json:"expiry,omitempty"`
	TokenValid  bool       `json:"token_valid"`
	Refreshable bool       `json:"refreshable"`
	Channel     string     `json:"channel,omitempty"`
	Delivered   *int       `json:"delivered,omitempty"`
	StateDB     string     `json:"state_db"`
	PhotoMax    int64      `json:"photo_max_bytes"`
	FileMax     int64      `json:"file_max_bytes"`
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg := resolvedCfg
	ctx := cmd.Context()

	out, err := collectStatus(ctx, cfg, time.Now(), buildLogger())
	if err != nil {
		return err
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	printStatus(os.Stdout, out)

	return nil
}

// collectStatus gathers status without touching the network.
func collectStatus(ctx context.Context, cfg *config.Config, now time.Time, logger *slog.Logger) (*statusOutput, error) {
	settings, err := cfg.Transfer.Parse()
	if err != nil {
		return nil, err
	}

	files := auth.NewFileStore(cfg.TokenDir())
	out := &statusOutput{
		TokenFile: files.Path(cliUser),
		Channel:   cfg.Telegram.ChannelID,
		StateDB:   cfg.StateDBPath(),
		PhotoMax:  settings.PhotoMaxBytes,
		FileMax:   settings.FileMaxBytes,
	}

	creds, err := files.Get(ctx, cliUser)
	if err != nil {
		return nil, err
	}

	if creds != nil {
		out.LoggedIn = true
		out.Email = creds.Email
		out.TokenValid = creds.ValidAt(now, settings.TokenMargin)
		out.Refreshable = creds.RefreshToken != ""

		if !creds.Expiry.IsZero() {
			exp := creds.Expiry
			out.Expiry = &exp
		}
	}

	if out.Channel == "" {
		return out, nil
	}

	if _, err := os.Stat(out.StateDB); err != nil {
		return out, nil //nolint:nilerr // no database yet means nothing delivered
	}

	n, err := countDelivered(ctx, cfg, out.Channel, logger)
	if err != nil {
		return nil, err
	}

	out.Delivered = &n

	return out, nil
}

func countDelivered(ctx context.Context, cfg *config.Config, channel string, logger *slog.Logger) (int, error) {
	chat, err := telegram.ParseChatID(channel)
	if err != nil {
		return 0, err
	}

	st, err := store.Open(ctx, cfg.StateDBPath(), logger)
	if err != nil {
		return 0, err
	}
	defer st.Close()

	return st.Ledger(ledgerKey(chat)).Count(ctx)
}

func printStatus(w io.Writer, s *statusOutput) {
	fmt.Fprintf(w, "Token file:  %s\n", s.TokenFile)

	switch {
	case !s.LoggedIn:
		fmt.Fprintln(w, "Google:      not logged in (run 'pickrelay login')")
	case s.Email != "":
		fmt.Fprintf(w, "Google:      %s\n", s.Email)
	default:
		fmt.Fprintln(w, "Google:      logged in")
	}

	if s.LoggedIn {
		expiry := "-"
		if s.Expiry != nil {
			expiry = formatTime(*s.Expiry)
		}

		state := "expired"

		switch {
		case s.TokenValid:
			state = "valid"
		case s.Refreshable:
			state = "expired, will refresh"
		}

		fmt.Fprintf(w, "Token:       %s (expires %s)\n", state, expiry)
	}

	if s.Channel == "" {
		fmt.Fprintln(w, "Channel:     not set (use --channel or telegram.channel_id)")
	} else {
		fmt.Fprintf(w, "Channel:     %s\n", s.Channel)
	}

	if s.Delivered != nil {
		fmt.Fprintf(w, "Delivered:   %d item(s)\n", *s.Delivered)
	}

	fmt.Fprintf(w, "Limits:      photo %s, file %s\n", formatSize(s.PhotoMax), formatSize(s.FileMax))
	fmt.Fprintf(w, "State DB:    %s\n", s.StateDB)
}
