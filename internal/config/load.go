package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are treated as fatal errors with "did you
// mean?" suggestions because a silently ignored typo in a token or size
// setting is hard to debug.
func Load(path string) (*Config, error) {
	cfg, err := decodeFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// decodeFile decodes path over DefaultConfig without validating.
func decodeFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values. Secrets usually arrive via
// the environment, so running without a file is a supported setup.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return decodeFile(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
// It returns the validated Config and the path it was read from.
func Resolve(envOv EnvOverrides, cli CLIOverrides) (*Config, string, error) {
	cfgPath := DefaultConfigPath()
	if envOv.ConfigPath != "" {
		cfgPath = envOv.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, "", err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, "", err
	}

	if cli.ChannelID != "" {
		cfg.Telegram.ChannelID = cli.ChannelID
	}

	if cli.DataDir != "" {
		cfg.Storage.DataDir = cli.DataDir
	}

	if err := Validate(cfg); err != nil {
		return nil, "", fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, cfgPath, nil
}

// Reload re-reads path and re-applies environment overrides. CLI overrides
// are not re-applied: reload is only used by the long-running bot, which
// takes no per-run flags.
func Reload(path string) (*Config, error) {
	cfg, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}
