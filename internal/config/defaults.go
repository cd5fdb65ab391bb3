package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain and match the limits the Telegram Bot API
// and the Google Photos Picker API document.
const (
	defaultAuthURL       = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL      = "https://oauth2.googleapis.com/token"
	defaultUserinfoURL   = "https://openidconnect.googleapis.com/v1/userinfo"
	defaultPickerURL     = "https://photospicker.googleapis.com/v1"
	defaultListenAddr    = ":8000"
	defaultCallbackPath  = "/oauth/callback"
	defaultPhotoMaxSize  = "10MiB"
	defaultFileMaxSize   = "2GiB"
	defaultUploadPause   = "500ms"
	defaultProgressEvery = 10
	defaultMaxWait       = "30m"
	defaultWorkers       = 4
	defaultQueueSize     = 16
	defaultTokenMargin   = "60s"
	defaultHTTPTimeout   = "60s"
	defaultUploadTimeout = "5m"
	defaultLogLevel      = "info"
	defaultLogFormat     = "auto"
)

// DefaultScopes are the OAuth scopes requested from Google. The picker scope
// is the only one the relay needs; openid+email let the bot show which
// account is linked.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/photospicker.mediaitems.readonly",
	"openid",
	"email",
}

// DefaultConfig returns a Config populated with all default values.
// This is used both as the starting point for TOML decoding (so unset
// fields retain defaults) and as the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Google: GoogleConfig{
			AuthURL:     defaultAuthURL,
			TokenURL:    defaultTokenURL,
			UserinfoURL: defaultUserinfoURL,
			PickerURL:   defaultPickerURL,
			Scopes:      append([]string(nil), DefaultScopes...),
		},
		Server: ServerConfig{
			ListenAddr:   defaultListenAddr,
			CallbackPath: defaultCallbackPath,
		},
		Transfer: defaultTransferConfig(),
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}

func defaultTransferConfig() TransferConfig {
	return TransferConfig{
		PhotoMaxSize:  defaultPhotoMaxSize,
		FileMaxSize:   defaultFileMaxSize,
		UploadPause:   defaultUploadPause,
		ProgressEvery: defaultProgressEvery,
		MaxWait:       defaultMaxWait,
		DeleteSession: true,
		Workers:       defaultWorkers,
		QueueSize:     defaultQueueSize,
		TokenMargin:   defaultTokenMargin,
		HTTPTimeout:   defaultHTTPTimeout,
		UploadTimeout: defaultUploadTimeout,
	}
}
