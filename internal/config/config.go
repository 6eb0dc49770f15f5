package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const configTOMLFileName = "config.toml"

const (
	defaultBaseURL        = "http://127.0.0.1:8080"
	defaultLogLevel       = "info"
	defaultTimeoutSeconds = 30
)

type Config struct {
	BaseURL            string `toml:"base_url"`
	LogLevel           string `toml:"log_level"`
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`
	DataDir            string `toml:"data_dir"`
}

// DefaultDir returns ~/.config/planhub, or the PLANHUB_CONFIG_DIR override.
func DefaultDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("PLANHUB_CONFIG_DIR")); override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "planhub"), nil
}

// LoadOrInit reads config.toml from dir, writing a normalized default file on
// first run. Environment overrides are applied on top, so a deployed file
// never has to be edited just to point at another server.
func LoadOrInit(dir string) (Config, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Config{}, err
	}

	path := filepath.Join(dir, configTOMLFileName)
	if b, err := os.ReadFile(path); err == nil {
		var cfg Config
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return Config{}, err
		}
		return applyEnv(normalize(cfg, dir)), nil
	} else if !os.IsNotExist(err) {
		return Config{}, err
	}

	cfg := normalize(Config{}, dir)
	if err := writeTOMLAtomically(path, cfg); err != nil {
		return Config{}, err
	}
	return applyEnv(cfg), nil
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// HistoryDBPath locates the local sqlite file for recently-opened projects.
func (c Config) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

func normalize(cfg Config, dir string) Config {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if strings.TrimSpace(cfg.LogLevel) == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.HTTPTimeoutSeconds <= 0 {
		cfg.HTTPTimeoutSeconds = defaultTimeoutSeconds
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = dir
	}
	return cfg
}

func applyEnv(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv("PLANHUB_BASE_URL")); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := strings.TrimSpace(os.Getenv("PLANHUB_LOG_LEVEL")); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(os.Getenv("PLANHUB_HTTP_TIMEOUT_SECONDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPTimeoutSeconds = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PLANHUB_DATA_DIR")); v != "" {
		cfg.DataDir = v
	}
	return cfg
}

func writeTOMLAtomically(path string, v any) error {
	b, err := toml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
