// Package config loads server configuration from an optional YAML file
// and environment variables. Priority: ENV > YAML > defaults.
package config

import "fmt"

// Recognized storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config is the root configuration for the leitner MCP server.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// StorageConfig selects and locates the persistence backend.
type StorageConfig struct {
	// Backend is "file" (JSON file store) or "sqlite".
	Backend string `yaml:"backend" env:"LEITNER_STORAGE" env-default:"file"`
	// DataFile is the JSON store path, used when Backend is "file".
	DataFile string `yaml:"data_file" env:"LEITNER_DATA_FILE" env-default:"./flashcards.json"`
	// DBPath is the SQLite database path, used when Backend is "sqlite".
	DBPath string `yaml:"db_path" env:"LEITNER_DB_PATH" env-default:"./flashcards.db"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is a zap level name: debug, info, warn, error.
	Level string `yaml:"level" env:"LEITNER_LOG_LEVEL" env-default:"debug"`
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q",
			BackendFile, BackendSQLite, c.Storage.Backend)
	}
	if c.Storage.Backend == BackendFile && c.Storage.DataFile == "" {
		return fmt.Errorf("storage.data_file must not be empty for the %q backend", BackendFile)
	}
	if c.Storage.Backend == BackendSQLite && c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path must not be empty for the %q backend", BackendSQLite)
	}
	return nil
}
