// Package config provides process configuration from command-line flags,
// environment variables, and .env files.
//
// User-facing feature toggles (AI tagging, semantic search, retention days)
// live in the settings file instead; see package settings.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Storage  StorageConfig
	Server   ServerConfig
	Poller   PollerConfig
	Cache    CacheConfig
	Enrich   EnrichConfig
	Settings SettingsConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level       string
	Format      string // Optional: json or pretty
	ShowContent bool   // Log clipboard text instead of a length marker
}

// StorageConfig holds on-disk locations.
type StorageConfig struct {
	DataPath     string // Base directory (default: ~/.pasteV)
	DatabasePath string // SQLite file (default: {data}/clipboard.db)
}

// ServerConfig holds the local API server configuration.
type ServerConfig struct {
	Enabled      bool
	Host         string        // Bind address (default: 127.0.0.1)
	Port         string        // Server port (default: 7420)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 0, SSE streams stay open)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// PollerConfig holds clipboard polling configuration.
type PollerConfig struct {
	Interval       time.Duration // default: 1s
	MaxTextBytes   int           // text captures above this are dropped (default: 1 MiB)
	Backend        string        // wayland, x11, or none
	CommandTimeout time.Duration // per clipboard tool invocation (default: 2s)
}

// CacheConfig holds hot cache and memo sizes.
type CacheConfig struct {
	HotSize           int           // entries mirrored in memory (default: 100)
	QueryEmbeddingTTL time.Duration // in-process memo lifetime (default: 1h)
}

// EnrichConfig holds enrichment pipeline configuration.
type EnrichConfig struct {
	Concurrency  int           // concurrent entry chains (default: 4)
	OCRCommand   string        // OCR binary (default: tesseract)
	OCRLanguages string        // tesseract -l argument (default: eng)
	OCRTimeout   time.Duration // default: 30s
	AITimeout    time.Duration // per HTTP call (default: 60s)
	AIRateLimit  float64       // requests per second per endpoint (default: 2)
	AIBurst      int           // default: 4
}

// SettingsConfig locates the user settings file.
type SettingsConfig struct {
	Path string // default: {data}/app-config.json
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds a Config from the given arguments with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("pastev", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "", "Log format (json, pretty)")
	dataPath := fs.String("data-path", "", "Base directory for the database and settings")
	dbPath := fs.String("db-path", "", "SQLite database file")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	serverEnabled := fs.String("server", "", "Serve the local API (default: true)")
	serverHost := fs.String("host", "", "API bind address (default: 127.0.0.1)")
	serverPort := fs.String("port", "", "API port (default: 7420)")

	pollInterval := fs.String("poll-interval", "", "Clipboard poll interval (default: 1s)")
	maxTextBytes := fs.String("max-text-bytes", "", "Largest text capture kept (default: 1048576)")
	backend := fs.String("clipboard-backend", "", "Clipboard backend: wayland, x11, none")

	hotCacheSize := fs.String("hot-cache-size", "", "Entries mirrored in memory (default: 100)")
	concurrency := fs.String("enrich-concurrency", "", "Concurrent enrichment chains (default: 4)")
	ocrCommand := fs.String("ocr-command", "", "OCR binary (default: tesseract)")
	settingsPath := fs.String("settings-file", "", "User settings JSON file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level:       getConfigValue(*logLevel, "LOG_LEVEL", "info"),
			Format:      getConfigValue(*logFormat, "LOG_FORMAT", ""),
			ShowContent: getBoolConfigValue("", "LOG_SHOW_CONTENT", false),
		},
		Storage: StorageConfig{
			DataPath:     getConfigValue(*dataPath, "DATA_PATH", ""),
			DatabasePath: getConfigValue(*dbPath, "DB_PATH", ""),
		},
		Server: ServerConfig{
			Enabled: getBoolConfigValue(*serverEnabled, "SERVER_ENABLED", true),
			Host:    getConfigValue(*serverHost, "SERVER_HOST", "127.0.0.1"),
			Port:    getConfigValue(*serverPort, "SERVER_PORT", "7420"),
		},
		Poller: PollerConfig{
			MaxTextBytes: getIntConfigValue(*maxTextBytes, "MAX_TEXT_BYTES", 1024*1024),
			Backend:      getConfigValue(*backend, "CLIPBOARD_BACKEND", defaultBackend()),
		},
		Cache: CacheConfig{
			HotSize: getIntConfigValue(*hotCacheSize, "HOT_CACHE_SIZE", 100),
		},
		Enrich: EnrichConfig{
			Concurrency:  getIntConfigValue(*concurrency, "ENRICH_CONCURRENCY", 4),
			OCRCommand:   getConfigValue(*ocrCommand, "OCR_COMMAND", "tesseract"),
			OCRLanguages: getConfigValue("", "OCR_LANGUAGES", "eng"),
			AIRateLimit:  getFloatConfigValue("", "AI_RATE_LIMIT", 2),
			AIBurst:      getIntConfigValue("", "AI_BURST", 4),
		},
		Settings: SettingsConfig{
			Path: getConfigValue(*settingsPath, "SETTINGS_FILE", ""),
		},
	}

	durations := []struct {
		dst      *time.Duration
		flag     string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, "", "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, "", "SERVER_WRITE_TIMEOUT", "0s"},
		{&cfg.Server.IdleTimeout, "", "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Poller.Interval, *pollInterval, "POLL_INTERVAL", "1s"},
		{&cfg.Poller.CommandTimeout, "", "CLIPBOARD_COMMAND_TIMEOUT", "2s"},
		{&cfg.Cache.QueryEmbeddingTTL, "", "QUERY_EMBEDDING_TTL", "1h"},
		{&cfg.Enrich.OCRTimeout, "", "OCR_TIMEOUT", "30s"},
		{&cfg.Enrich.AITimeout, "", "AI_TIMEOUT", "60s"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{"development": true, "staging": true, "production": true}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Logger.Format != "" && c.Logger.Format != "json" && c.Logger.Format != "pretty" {
		return fmt.Errorf("invalid log format: %s (must be json or pretty)", c.Logger.Format)
	}

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	switch c.Poller.Backend {
	case "wayland", "x11", "none":
	default:
		return fmt.Errorf("invalid clipboard backend: %s (must be wayland, x11, or none)", c.Poller.Backend)
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.Poller.MaxTextBytes <= 0 {
		return errors.New("max text bytes must be positive")
	}
	if c.Cache.HotSize < 1 {
		return errors.New("hot cache size must be at least 1")
	}
	if c.Enrich.Concurrency < 1 {
		return errors.New("enrich concurrency must be at least 1")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}

	return nil
}

// Addr returns the API listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// defaultBackend guesses the clipboard tool from the session type.
func defaultBackend() string {
	switch {
	case os.Getenv("WAYLAND_DISPLAY") != "":
		return "wayland"
	case os.Getenv("DISPLAY") != "":
		return "x11"
	default:
		return "none"
	}
}

// expandPath expands ~ and makes the path absolute.
// If path is empty, defaultPath is returned unchanged.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandPaths resolves the data directory and the files inside it.
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	if c.Storage.DataPath, err = expandPath(c.Storage.DataPath, filepath.Join(homeDir, ".pasteV")); err != nil {
		return err
	}
	if c.Storage.DatabasePath, err = expandPath(c.Storage.DatabasePath,
		filepath.Join(c.Storage.DataPath, "clipboard.db")); err != nil {
		return err
	}
	if c.Settings.Path, err = expandPath(c.Settings.Path,
		filepath.Join(c.Storage.DataPath, "app-config.json")); err != nil {
		return err
	}
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.Atoi(strValue)
	if err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	result, err := strconv.ParseFloat(strValue, 64)
	if err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		// Env vars already set take precedence over the file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
