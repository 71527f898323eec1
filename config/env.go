package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// EnvDSN is the environment variable overriding the configured dsn.
const EnvDSN = "RHUBARB_DSN"

// LoadEnv loads the dotenv files into the environment, ".env" when none
// is given, and applies the variables overriding the configuration.
// Missing files are skipped and variables already set are kept.
func (c *Config) LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	if dsn := os.Getenv(EnvDSN); dsn != "" {
		c.DSN = dsn
	}
	return nil
}
