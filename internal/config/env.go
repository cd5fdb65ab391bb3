package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
)

// EnvConfig names the environment variable that overrides the config path.
// Per-field overrides are declared with `env` struct tags on Config.
const EnvConfig = "PICKRELAY_CONFIG"

// EnvOverrides holds values derived from environment variables that affect
// how the config file is located, before it is parsed.
type EnvOverrides struct {
	ConfigPath string // PICKRELAY_CONFIG: override config file path
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
	}
}

// applyEnv overlays tagged environment variables onto cfg. Unset variables
// leave the file/default value in place.
func applyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("reading environment overrides: %w", err)
	}

	return nil
}
