package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validation range constants.
const (
	minWorkers       = 1
	maxWorkers       = 64
	minQueueSize     = 1
	minProgressEvery = 1
	minHTTPTimeout   = 1 * time.Second
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass. Secrets are not
// required here; each command checks the ones it needs (RequireBot, RequireRun).
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateGoogle(&cfg.Google)...)
	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateTransfer(&cfg.Transfer)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

// RequireBot checks the settings the long-running bot cannot start without.
func RequireBot(cfg *Config) error {
	var errs []error

	if cfg.Telegram.BotToken == "" {
		errs = append(errs, errors.New("telegram.bot_token: required (or set PICKRELAY_BOT_TOKEN)"))
	}

	errs = append(errs, requireGoogleClient(&cfg.Google)...)

	if cfg.Server.PublicBaseURL == "" {
		errs = append(errs, errors.New("server.public_base_url: required (or set PICKRELAY_PUBLIC_BASE_URL)"))
	}

	return errors.Join(errs...)
}

// RequireRun checks the settings the single-user run command needs.
func RequireRun(cfg *Config) error {
	var errs []error

	if cfg.Telegram.BotToken == "" {
		errs = append(errs, errors.New("telegram.bot_token: required (or set PICKRELAY_BOT_TOKEN)"))
	}

	if cfg.Telegram.ChannelID == "" {
		errs = append(errs, errors.New("telegram.channel_id: required (or pass --channel)"))
	}

	errs = append(errs, requireGoogleClient(&cfg.Google)...)

	return errors.Join(errs...)
}

// RequireLogin checks the settings the interactive login needs.
func RequireLogin(cfg *Config) error {
	return errors.Join(requireGoogleClient(&cfg.Google)...)
}

func requireGoogleClient(g *GoogleConfig) []error {
	var errs []error

	if g.ClientID == "" {
		errs = append(errs, errors.New("google.client_id: required (or set PICKRELAY_GOOGLE_CLIENT_ID)"))
	}

	if g.ClientSecret == "" {
		errs = append(errs, errors.New("google.client_secret: required (or set PICKRELAY_GOOGLE_CLIENT_SECRET)"))
	}

	return errs
}

func validateGoogle(g *GoogleConfig) []error {
	var errs []error

	for _, f := range []struct {
		name, value string
	}{
		{"google.auth_url", g.AuthURL},
		{"google.token_url", g.TokenURL},
		{"google.userinfo_url", g.UserinfoURL},
		{"google.picker_url", g.PickerURL},
	} {
		if err := validateHTTPURL(f.value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.name, err))
		}
	}

	if len(g.Scopes) == 0 {
		errs = append(errs, errors.New("google.scopes: must not be empty"))
	}

	return errs
}

func validateServer(s *ServerConfig) []error {
	var errs []error

	if s.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr: must not be empty"))
	}

	if !strings.HasPrefix(s.CallbackPath, "/") {
		errs = append(errs, fmt.Errorf("server.callback_path: must start with '/', got %q", s.CallbackPath))
	}

	if s.PublicBaseURL != "" {
		if err := validateHTTPURL(s.PublicBaseURL); err != nil {
			errs = append(errs, fmt.Errorf("server.public_base_url: %w", err))
		}
	}

	return errs
}

func validateTransfer(t *TransferConfig) []error {
	var errs []error

	if _, err := t.Parse(); err != nil {
		errs = append(errs, err)
	}

	if t.ProgressEvery < minProgressEvery {
		errs = append(errs, fmt.Errorf("transfer.progress_every: must be >= %d, got %d", minProgressEvery, t.ProgressEvery))
	}

	if t.Workers < minWorkers || t.Workers > maxWorkers {
		errs = append(errs, fmt.Errorf("transfer.workers: must be %d-%d, got %d", minWorkers, maxWorkers, t.Workers))
	}

	if t.QueueSize < minQueueSize {
		errs = append(errs, fmt.Errorf("transfer.queue_size: must be >= %d, got %d", minQueueSize, t.QueueSize))
	}

	return errs
}

// Parse converts the string-typed transfer settings into their typed form.
// Errors from every field are joined.
func (t *TransferConfig) Parse() (TransferSettings, error) {
	var errs []error

	s := TransferSettings{
		ProgressEvery: t.ProgressEvery,
		DeleteSession: t.DeleteSession,
		Workers:       t.Workers,
		QueueSize:     t.QueueSize,
	}

	var err error

	if s.PhotoMaxBytes, err = parsePositiveSize("transfer.photo_max_size", t.PhotoMaxSize); err != nil {
		errs = append(errs, err)
	}

	if s.FileMaxBytes, err = parsePositiveSize("transfer.file_max_size", t.FileMaxSize); err != nil {
		errs = append(errs, err)
	}

	if s.PhotoMaxBytes > 0 && s.FileMaxBytes > 0 && s.PhotoMaxBytes > s.FileMaxBytes {
		errs = append(errs, fmt.Errorf("transfer.photo_max_size: %s exceeds file_max_size %s", t.PhotoMaxSize, t.FileMaxSize))
	}

	if s.UploadPause, err = parseDuration("transfer.upload_pause", t.UploadPause, 0); err != nil {
		errs = append(errs, err)
	}

	if s.MaxWait, err = parseDuration("transfer.max_wait", t.MaxWait, time.Second); err != nil {
		errs = append(errs, err)
	}

	if s.TokenMargin, err = parseDuration("transfer.token_margin", t.TokenMargin, 0); err != nil {
		errs = append(errs, err)
	}

	if s.HTTPTimeout, err = parseDuration("transfer.http_timeout", t.HTTPTimeout, minHTTPTimeout); err != nil {
		errs = append(errs, err)
	}

	if s.UploadTimeout, err = parseDuration("transfer.upload_timeout", t.UploadTimeout, minHTTPTimeout); err != nil {
		errs = append(errs, err)
	}

	return s, errors.Join(errs...)
}

func parsePositiveSize(field, value string) (int64, error) {
	n, err := ParseSize(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}

	if n <= 0 {
		return 0, fmt.Errorf("%s: must be greater than zero", field)
	}

	return n, nil
}

func parseDuration(field, value string, floor time.Duration) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, value, err)
	}

	if d < floor {
		return 0, fmt.Errorf("%s: must be >= %s, got %s", field, floor, d)
	}

	return d, nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	switch l.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	switch l.LogFormat {
	case "auto", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}

	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("must be an absolute http(s) URL, got %q", raw)
	}

	return nil
}
