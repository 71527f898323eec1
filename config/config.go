// Package config loads rhubarb configuration files.
//
// A configuration names the database to connect to, the logging and
// caching behavior of the query engine, and the tables that can be
// queried through objectset:
//
//	dialect: postgres
//	dsn: postgres://localhost/library?sslmode=disable
//	log_level: debug
//	slow_query_threshold: 250ms
//	cache:
//	  enabled: true
//	  ttl: 5m
//	tables:
//	  - name: Author
//	    columns:
//	      - {name: id, type: bigint}
//	      - {name: name, type: text}
//	    relations:
//	      - {name: books, target: Book, local: id, remote: author_id, many: true}
//	  - name: Book
//	    columns:
//	      - {name: id, type: bigint}
//	      - {name: title, type: text}
//	      - {name: author_id, type: bigint, nullable: true}
//	    relations:
//	      - {name: author, target: Author, local: author_id, remote: id}
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/syssam/rhubarb/dialect"
)

// Config is the root of a configuration file.
type Config struct {
	Dialect string `yaml:"dialect"`
	DSN     string `yaml:"dsn,omitempty"`
	// Schema is the database schema of tables that do not set one.
	// Defaults to "public" for Postgres and "main" for SQLite.
	Schema             string        `yaml:"schema,omitempty"`
	Debug              bool          `yaml:"debug,omitempty"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold,omitempty"`
	LogLevel           string        `yaml:"log_level,omitempty"`
	Cache              CacheConfig   `yaml:"cache,omitempty"`
	Tables             []Table       `yaml:"tables,omitempty"`
}

// CacheConfig configures the second-level row cache.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	TTL        time.Duration `yaml:"ttl,omitempty"`
	MaxEntries int           `yaml:"max_entries,omitempty"`
}

// Defaults applied by Parse.
const (
	DefaultSlowQueryThreshold = 100 * time.Millisecond
	DefaultLogLevel           = "info"
	DefaultCacheTTL           = 5 * time.Minute
	DefaultCacheEntries       = 10_000
)

var dialects = []string{dialect.Postgres, dialect.SQLite}

// Load reads and parses the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config: file %q not found", path)
		}
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w (in %s)", err, path)
	}
	return cfg, nil
}

// Parse parses a configuration, applies defaults and validates it.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyDefaults() {
	if c.Dialect == "" {
		c.Dialect = dialect.Postgres
	}
	if c.Schema == "" {
		c.Schema = "public"
		if c.Dialect == dialect.SQLite {
			c.Schema = "main"
		}
	}
	if c.SlowQueryThreshold == 0 {
		c.SlowQueryThreshold = DefaultSlowQueryThreshold
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Cache.Enabled {
		if c.Cache.TTL == 0 {
			c.Cache.TTL = DefaultCacheTTL
		}
		if c.Cache.MaxEntries == 0 {
			c.Cache.MaxEntries = DefaultCacheEntries
		}
	}
	for i := range c.Tables {
		c.Tables[i].applyDefaults(c.Schema)
	}
}

// Validate reports the first invalid setting of the configuration.
func (c *Config) Validate() error {
	var errs []error
	if !slices.Contains(dialects, c.Dialect) {
		errs = append(errs, fmt.Errorf("config: unsupported dialect %q, expected one of %v", c.Dialect, dialects))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	if c.SlowQueryThreshold < 0 {
		errs = append(errs, errors.New("config: slow_query_threshold must not be negative"))
	}
	if c.Cache.TTL < 0 || c.Cache.MaxEntries < 0 {
		errs = append(errs, errors.New("config: cache ttl and max_entries must not be negative"))
	}
	errs = append(errs, c.validateTables()...)
	return errors.Join(errs...)
}

// Level returns the parsed log level.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("config: invalid log_level %q", c.LogLevel)
	}
	return l, nil
}

// Logger returns a text logger writing to w at the configured level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	l, _ := c.Level()
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}
