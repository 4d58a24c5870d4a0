// Package config provides configuration management for attune.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultWorkerPort is the port the worker listens on.
	DefaultWorkerPort = 37790

	// DefaultModel is the generative model used for recommendations.
	DefaultModel = "gemini-2.5-flash"

	// DefaultGenAIBaseURL is the generative-language REST endpoint.
	DefaultGenAIBaseURL = "https://generativelanguage.googleapis.com"

	// DefaultDebounce is the quiet period before a settled snapshot is sent upstream.
	DefaultDebounce = 1000 * time.Millisecond

	// DefaultRequestTimeout bounds a single recommendation request.
	DefaultRequestTimeout = 20 * time.Second

	// DefaultLanguage is used until the user picks one.
	DefaultLanguage = "en"

	// DefaultTheme is used until the user picks one.
	DefaultTheme = "system"

	dataDirName      = ".attune"
	dbFileName       = "attune.db"
	settingsFileName = "settings.json"
	badgerDirName    = "kv"
)

// SupportedLanguages lists the locales with translated error text.
var SupportedLanguages = []string{"en", "es", "de", "fr", "th"}

// StoreBackends lists the accepted persistence backends.
var StoreBackends = []string{"memory", "sqlite", "postgres", "redis", "badger"}

// Config holds worker configuration.
type Config struct {
	WorkerHost          string `json:"ATTUNE_WORKER_HOST"`
	UserIdentity        string `json:"ATTUNE_USER"`
	StoreBackend        string `json:"ATTUNE_STORE_BACKEND"`
	DBPath              string `json:"ATTUNE_DB_PATH"`
	BadgerPath          string `json:"ATTUNE_BADGER_PATH"`
	PostgresDSN         string `json:"ATTUNE_POSTGRES_DSN"`
	RedisAddr           string `json:"ATTUNE_REDIS_ADDR"`
	GenAIBaseURL        string `json:"ATTUNE_GENAI_BASE_URL"`
	Model               string `json:"ATTUNE_MODEL"`
	APIKey              string `json:"ATTUNE_API_KEY"`
	SoundscapeCatalog   string `json:"ATTUNE_SOUNDSCAPE_CATALOG"`
	DefaultLanguage     string `json:"ATTUNE_LANGUAGE"`
	DefaultTheme        string `json:"ATTUNE_THEME"`
	WorkerPort          int    `json:"ATTUNE_WORKER_PORT"`
	DebounceMillis      int    `json:"ATTUNE_DEBOUNCE_MS"`
	RequestTimeoutMs    int    `json:"ATTUNE_REQUEST_TIMEOUT_MS"`
	PromptTokenBudget   int    `json:"ATTUNE_PROMPT_TOKEN_BUDGET"`
	SimulatorIntervalMs int    `json:"ATTUNE_SIMULATOR_INTERVAL_MS"`
	RateLimitPerMinute  int    `json:"ATTUNE_RATE_LIMIT_PER_MINUTE"`
	MaxConns            int    `json:"ATTUNE_MAX_CONNS"`
	ArchivePlaceholder  bool   `json:"ATTUNE_ARCHIVE_PLACEHOLDER"`
	SimulatorEnabled    bool   `json:"ATTUNE_SIMULATOR_ENABLED"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		WorkerHost:          "127.0.0.1",
		WorkerPort:          DefaultWorkerPort,
		UserIdentity:        "local",
		StoreBackend:        "sqlite",
		DBPath:              DBPath(),
		BadgerPath:          filepath.Join(DataDir(), badgerDirName),
		GenAIBaseURL:        DefaultGenAIBaseURL,
		Model:               DefaultModel,
		DefaultLanguage:     DefaultLanguage,
		DefaultTheme:        DefaultTheme,
		DebounceMillis:      int(DefaultDebounce / time.Millisecond),
		RequestTimeoutMs:    int(DefaultRequestTimeout / time.Millisecond),
		PromptTokenBudget:   512,
		SimulatorIntervalMs: 3000,
		RateLimitPerMinute:  240,
		MaxConns:            4,
	}
}

// Debounce returns the configured quiet period.
func (c *Config) Debounce() time.Duration {
	if c.DebounceMillis <= 0 {
		return DefaultDebounce
	}
	return time.Duration(c.DebounceMillis) * time.Millisecond
}

// RequestTimeout returns the per-request upstream timeout.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutMs <= 0 {
		return DefaultRequestTimeout
	}
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// SimulatorInterval returns the tick interval for simulated readings.
func (c *Config) SimulatorInterval() time.Duration {
	if c.SimulatorIntervalMs <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.SimulatorIntervalMs) * time.Millisecond
}

// DataDir returns the data directory path.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, dataDirName)
}

// DBPath returns the SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), dbFileName)
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), settingsFileName)
}

// EnsureDataDir creates the data directory if it does not exist.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o750)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	if _, err := os.Stat(SettingsPath()); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return Save(Default())
}

// EnsureAll creates the data directory and default settings.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads settings.json over the defaults, then applies environment overrides.
// A malformed settings file is logged and ignored.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			log.Warn().Err(err).Str("path", SettingsPath()).Msg("Invalid settings file, using defaults")
			cfg = Default()
		}
	case os.IsNotExist(err):
	default:
		return nil, err
	}

	applyEnv(cfg)
	return cfg, nil
}

// Save writes cfg to settings.json atomically.
func Save(cfg *Config) error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return renameio.WriteFile(SettingsPath(), data, 0o600)
}

var (
	mu     sync.RWMutex
	cached *Config
)

// Get returns the process-wide configuration, loading it on first use.
func Get() *Config {
	mu.RLock()
	cfg := cached
	mu.RUnlock()
	if cfg != nil {
		return cfg
	}

	mu.Lock()
	defer mu.Unlock()
	if cached == nil {
		loaded, err := Load()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load config, using defaults")
			loaded = Default()
		}
		cached = loaded
	}
	return cached
}

// Reload re-reads the settings file and replaces the cached configuration.
func Reload() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	mu.Lock()
	cached = cfg
	mu.Unlock()
	return cfg, nil
}

// GetWorkerPort returns the worker port, preferring ATTUNE_WORKER_PORT.
func GetWorkerPort() int {
	if p, ok := envInt("ATTUNE_WORKER_PORT"); ok && p > 0 {
		return p
	}
	return Get().WorkerPort
}

func applyEnv(cfg *Config) {
	envString("ATTUNE_WORKER_HOST", &cfg.WorkerHost)
	envString("ATTUNE_USER", &cfg.UserIdentity)
	envString("ATTUNE_STORE_BACKEND", &cfg.StoreBackend)
	envString("ATTUNE_DB_PATH", &cfg.DBPath)
	envString("ATTUNE_BADGER_PATH", &cfg.BadgerPath)
	envString("ATTUNE_POSTGRES_DSN", &cfg.PostgresDSN)
	envString("ATTUNE_REDIS_ADDR", &cfg.RedisAddr)
	envString("ATTUNE_GENAI_BASE_URL", &cfg.GenAIBaseURL)
	envString("ATTUNE_MODEL", &cfg.Model)
	envString("ATTUNE_API_KEY", &cfg.APIKey)
	envString("ATTUNE_SOUNDSCAPE_CATALOG", &cfg.SoundscapeCatalog)
	envString("ATTUNE_LANGUAGE", &cfg.DefaultLanguage)
	envString("ATTUNE_THEME", &cfg.DefaultTheme)

	if v, ok := envInt("ATTUNE_WORKER_PORT"); ok && v > 0 {
		cfg.WorkerPort = v
	}
	if v, ok := envInt("ATTUNE_DEBOUNCE_MS"); ok && v > 0 {
		cfg.DebounceMillis = v
	}
	if v, ok := envInt("ATTUNE_REQUEST_TIMEOUT_MS"); ok && v > 0 {
		cfg.RequestTimeoutMs = v
	}
	if v, ok := envInt("ATTUNE_PROMPT_TOKEN_BUDGET"); ok && v > 0 {
		cfg.PromptTokenBudget = v
	}
	if v, ok := envBool("ATTUNE_ARCHIVE_PLACEHOLDER"); ok {
		cfg.ArchivePlaceholder = v
	}
	if v, ok := envBool("ATTUNE_SIMULATOR_ENABLED"); ok {
		cfg.SimulatorEnabled = v
	}
}

func envString(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) (bool, bool) {
	v := os.Getenv(key)
	if v == "" {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// IsSupportedLanguage reports whether lang has translated strings.
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
