package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// defaultConfigPath is tried when LEITNER_CONFIG is not set.
const defaultConfigPath = "./leitner.yaml"

// Load reads configuration and validates it.
//
// The YAML file path comes from the LEITNER_CONFIG environment variable.
// When LEITNER_CONFIG is unset, ./leitner.yaml is used if it exists;
// otherwise configuration comes from environment variables and defaults
// alone. A missing file is only an error when its path was given
// explicitly.
func Load() (*Config, error) {
	var cfg Config

	path := os.Getenv("LEITNER_CONFIG")
	explicitPath := path != ""
	if !explicitPath {
		path = defaultConfigPath
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}
