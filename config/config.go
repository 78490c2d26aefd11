// Package config loads settings from defaults, an optional TOML file and
// environment variables, in that order of precedence (last wins).
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/stevemurr/school-directory/store"
)

const (
	defaultBackend       = "json"
	defaultDataDir       = "./data"
	defaultKey           = "schools"
	defaultHost          = "0.0.0.0"
	defaultPort          = 8080
	defaultImageMaxBytes = 5 << 20
	defaultLogLevel      = "info"
	defaultLogFormat     = "json"
)

// Config holds all settings.
type Config struct {
	Store   StoreConfig   `toml:"store"`
	Server  ServerConfig  `toml:"server"`
	Image   ImageConfig   `toml:"image"`
	Logging LoggingConfig `toml:"logging"`
}

// StoreConfig selects the item store backend and the collection key.
type StoreConfig struct {
	Backend string `toml:"backend"` // "json", "sqlite", "memory"
	DataDir string `toml:"data_dir"`
	Key     string `toml:"key"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// ImageConfig bounds uploaded images. MaxBytes 0 disables the limit.
type ImageConfig struct {
	MaxBytes int64 `toml:"max_bytes"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`  // "debug", "info", "warn", "error"
	Format string `toml:"format"` // "json", "console"
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Store:   StoreConfig{Backend: defaultBackend, DataDir: defaultDataDir, Key: defaultKey},
		Server:  ServerConfig{Host: defaultHost, Port: defaultPort, AllowedOrigins: []string{"*"}},
		Image:   ImageConfig{MaxBytes: defaultImageMaxBytes},
		Logging: LoggingConfig{Level: defaultLogLevel, Format: defaultLogFormat},
	}
}

// Load builds a Config from defaults, the TOML file at path (skipped when path
// is empty) and SCHOOLDIR_* environment variables, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Store.Backend = envOrDefault("SCHOOLDIR_STORE_BACKEND", c.Store.Backend)
	c.Store.DataDir = envOrDefault("SCHOOLDIR_DATA_DIR", c.Store.DataDir)
	c.Store.Key = envOrDefault("SCHOOLDIR_STORAGE_KEY", c.Store.Key)
	c.Server.Host = envOrDefault("SCHOOLDIR_HOST", c.Server.Host)
	c.Server.Port = envPositiveInt("SCHOOLDIR_PORT", c.Server.Port)
	if v := strings.TrimSpace(os.Getenv("SCHOOLDIR_ALLOWED_ORIGINS")); v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}
	c.Image.MaxBytes = envNonNegativeInt64("SCHOOLDIR_IMAGE_MAX_BYTES", c.Image.MaxBytes)
	c.Logging.Level = strings.ToLower(envOrDefault("SCHOOLDIR_LOG_LEVEL", c.Logging.Level))
	c.Logging.Format = strings.ToLower(envOrDefault("SCHOOLDIR_LOG_FORMAT", c.Logging.Format))
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if !slices.Contains(store.Backends, c.Store.Backend) {
		return fmt.Errorf("unknown store backend %q (supported: %s)", c.Store.Backend, strings.Join(store.Backends, ", "))
	}
	if strings.TrimSpace(c.Store.Key) == "" {
		return fmt.Errorf("store key is required")
	}
	if err := store.ValidateKey(c.Store.Key); err != nil {
		return fmt.Errorf("store key: %w", err)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Image.MaxBytes < 0 {
		return fmt.Errorf("image max_bytes must not be negative")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("unknown log format %q (supported: json, console)", c.Logging.Format)
	}
	return nil
}

// Addr is the host:port the HTTP server listens on.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func envOrDefault(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func envPositiveInt(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return defaultVal
	}
	return parsed
}

func envNonNegativeInt64(key string, defaultVal int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil || parsed < 0 {
		return defaultVal
	}
	return parsed
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
