package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "pickrelay"

// File and directory names inside the data directory.
const (
	configFileName = "config.toml"
	stateDBName    = "state.db"
	tokensDirName  = "tokens"
	botPIDName     = "bot.pid"
)

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/pickrelay).
// On macOS, uses ~/Library/Application Support/pickrelay per Apple guidelines.
// Other platforms fall back to ~/.config/pickrelay.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxConfigDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// linuxConfigDir returns the XDG-compliant config directory for Linux.
func linuxConfigDir(home string) string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".config", appName)
}

// DefaultDataDir returns the platform-specific directory for application data
// (state database, token files).
// On Linux, respects XDG_DATA_HOME (defaults to ~/.local/share/pickrelay).
// On macOS, uses ~/Library/Application Support/pickrelay.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return linuxDataDir(home)
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

// linuxDataDir returns the XDG-compliant data directory for Linux.
func linuxDataDir(home string) string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(home, ".local", "share", appName)
}

// DefaultConfigPath returns the full path to the default config file.
// This is used as the fallback when neither PICKRELAY_CONFIG nor
// --config is specified.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, configFileName)
}

// DataDir returns the configured data directory, or the platform default.
func (c *Config) DataDir() string {
	if c.Storage.DataDir != "" {
		return c.Storage.DataDir
	}

	return DefaultDataDir()
}

// StateDBPath returns the path of the sqlite state database.
func (c *Config) StateDBPath() string {
	return filepath.Join(c.DataDir(), stateDBName)
}

// TokenDir returns the directory holding single-user token files.
func (c *Config) TokenDir() string {
	return filepath.Join(c.DataDir(), tokensDirName)
}

// BotPIDPath returns the lock file held by a running bot.
func (c *Config) BotPIDPath() string {
	return filepath.Join(c.DataDir(), botPIDName)
}
