// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for pickrelay. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

import "time"

// Config is the top-level configuration structure parsed from a TOML file.
// Each section maps to one collaborator: Google OAuth and the Picker API,
// the Telegram bot, the OAuth callback server, the transfer pipeline,
// logging, and on-disk state.
type Config struct {
	Google   GoogleConfig   `toml:"google"`
	Telegram TelegramConfig `toml:"telegram"`
	Server   ServerConfig   `toml:"server"`
	Transfer TransferConfig `toml:"transfer"`
	Logging  LoggingConfig  `toml:"logging"`
	Storage  StorageConfig  `toml:"storage"`
}

// GoogleConfig holds the OAuth client registration and the API endpoints.
// Endpoints are configurable so tests and proxies can redirect them.
type GoogleConfig struct {
	ClientID     string   `toml:"client_id" env:"PICKRELAY_GOOGLE_CLIENT_ID"`
	ClientSecret string   `toml:"client_secret" env:"PICKRELAY_GOOGLE_CLIENT_SECRET"`
	AuthURL      string   `toml:"auth_url"`
	TokenURL     string   `toml:"token_url"`
	UserinfoURL  string   `toml:"userinfo_url"`
	PickerURL    string   `toml:"picker_url"`
	Scopes       []string `toml:"scopes"`
}

// TelegramConfig controls the bot account. ChannelID is only consulted by
// the single-user `run` command; bot mode resolves channels per user.
type TelegramConfig struct {
	BotToken         string  `toml:"bot_token" env:"PICKRELAY_BOT_TOKEN"`
	APIURL           string  `toml:"api_url"`
	ChannelID        string  `toml:"channel_id" env:"PICKRELAY_CHANNEL_ID"`
	AllowedUsers     []int64 `toml:"allowed_users" env:"PICKRELAY_ALLOWED_USERS" envSeparator:","`
	CaptionFilenames bool    `toml:"caption_filenames"`
}

// ServerConfig controls the OAuth callback HTTP server used in bot mode.
type ServerConfig struct {
	ListenAddr    string `toml:"listen_addr"`
	PublicBaseURL string `toml:"public_base_url" env:"PICKRELAY_PUBLIC_BASE_URL"`
	CallbackPath  string `toml:"callback_path"`
}

// TransferConfig controls the relay pipeline. Sizes are human-readable
// strings ("10MiB") and durations are Go duration strings ("500ms").
type TransferConfig struct {
	PhotoMaxSize  string `toml:"photo_max_size"`
	FileMaxSize   string `toml:"file_max_size"`
	UploadPause   string `toml:"upload_pause"`
	ProgressEvery int    `toml:"progress_every"`
	MaxWait       string `toml:"max_wait"`
	DeleteSession bool   `toml:"delete_session"`
	Workers       int    `toml:"workers"`
	QueueSize     int    `toml:"queue_size"`
	TokenMargin   string `toml:"token_margin"`
	HTTPTimeout   string `toml:"http_timeout"`
	UploadTimeout string `toml:"upload_timeout"`
}

// LoggingConfig controls log output: level and handler format.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level" env:"PICKRELAY_LOG_LEVEL"`
	LogFormat string `toml:"log_format"`
}

// StorageConfig locates the state database and token files.
// An empty DataDir means the platform default (see DefaultDataDir).
type StorageConfig struct {
	DataDir string `toml:"data_dir" env:"PICKRELAY_DATA_DIR"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Empty strings mean "not specified".
type CLIOverrides struct {
	ConfigPath string // --config flag (empty = use default)
	ChannelID  string // --channel flag
	DataDir    string // --data-dir flag
}

// TransferSettings is the parsed form of TransferConfig.
type TransferSettings struct {
	PhotoMaxBytes int64
	FileMaxBytes  int64
	UploadPause   time.Duration
	ProgressEvery int
	MaxWait       time.Duration
	DeleteSession bool
	Workers       int
	QueueSize     int
	TokenMargin   time.Duration
	HTTPTimeout   time.Duration
	UploadTimeout time.Duration
}
