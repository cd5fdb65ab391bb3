package config

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// redacted replaces secret values in rendered output.
const redacted = "********"

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, giving
// users visibility into the effective values after all four override layers
// (defaults -> file -> env -> CLI) have been applied. Secrets are masked.
func RenderEffective(cfg *Config, path string, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", path)

	renderGoogleSection(ew, &cfg.Google)
	renderTelegramSection(ew, &cfg.Telegram)
	renderServerSection(ew, &cfg.Server)
	renderTransferSection(ew, &cfg.Transfer)
	renderLoggingSection(ew, &cfg.Logging)
	ew.printf("[storage]\n")
	ew.printf("  data_dir = %q\n", cfg.DataDir())

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderGoogleSection(ew *errWriter, g *GoogleConfig) {
	ew.printf("[google]\n")
	ew.printf("  client_id     = %q\n", g.ClientID)
	ew.printf("  client_secret = %q\n", mask(g.ClientSecret))
	ew.printf("  auth_url      = %q\n", g.AuthURL)
	ew.printf("  token_url     = %q\n", g.TokenURL)
	ew.printf("  userinfo_url  = %q\n", g.UserinfoURL)
	ew.printf("  picker_url    = %q\n", g.PickerURL)
	ew.printf("  scopes        = [%s]\n", joinQuoted(g.Scopes))
	ew.printf("\n")
}

func renderTelegramSection(ew *errWriter, t *TelegramConfig) {
	ew.printf("[telegram]\n")
	ew.printf("  bot_token         = %q\n", mask(t.BotToken))

	if t.APIURL != "" {
		ew.printf("  api_url           = %q\n", t.APIURL)
	}

	ew.printf("  channel_id        = %q\n", t.ChannelID)

	if len(t.AllowedUsers) > 0 {
		ids := make([]string, len(t.AllowedUsers))
		for i, id := range t.AllowedUsers {
			ids[i] = strconv.FormatInt(id, 10)
		}

		ew.printf("  allowed_users     = [%s]\n", strings.Join(ids, ", "))
	}

	ew.printf("  caption_filenames = %t\n", t.CaptionFilenames)
	ew.printf("\n")
}

func renderServerSection(ew *errWriter, s *ServerConfig) {
	ew.printf("[server]\n")
	ew.printf("  listen_addr     = %q\n", s.ListenAddr)
	ew.printf("  public_base_url = %q\n", s.PublicBaseURL)
	ew.printf("  callback_path   = %q\n", s.CallbackPath)
	ew.printf("\n")
}

func renderTransferSection(ew *errWriter, t *TransferConfig) {
	ew.printf("[transfer]\n")
	ew.printf("  photo_max_size = %q\n", t.PhotoMaxSize)
	ew.printf("  file_max_size  = %q\n", t.FileMaxSize)
	ew.printf("  upload_pause   = %q\n", t.UploadPause)
	ew.printf("  progress_every = %d\n", t.ProgressEvery)
	ew.printf("  max_wait       = %q\n", t.MaxWait)
	ew.printf("  delete_session = %t\n", t.DeleteSession)
	ew.printf("  workers        = %d\n", t.Workers)
	ew.printf("  queue_size     = %d\n", t.QueueSize)
	ew.printf("  token_margin   = %q\n", t.TokenMargin)
	ew.printf("  http_timeout   = %q\n", t.HTTPTimeout)
	ew.printf("  upload_timeout = %q\n", t.UploadTimeout)
	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, l *LoggingConfig) {
	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", l.LogLevel)
	ew.printf("  log_format = %q\n", l.LogFormat)
	ew.printf("\n")
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}

	return redacted
}

// joinQuoted formats a string slice as comma-separated quoted values.
func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = fmt.Sprintf("%q", item)
	}

	return strings.Join(quoted, ", ")
}
