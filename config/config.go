// Package config loads the pwless configuration from the environment and an
// optional TOML secrets file. Environment variables always win over the file.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed version
var version string

//go:embed name
var name string

type LogLevel string

const (
	Debug  LogLevel = "debug"
	Info   LogLevel = "info"
	Notice LogLevel = "notice"
	Warn   LogLevel = "warn"
	Error  LogLevel = "error"
)

func GetVersion() string {
	return strings.TrimSpace(version)
}

func GetName() string {
	return strings.TrimSpace(name)
}

func GetLogLevel() LogLevel {
	if IsDebug() {
		return Debug
	}
	logLevel := os.Getenv("PWLESS_LOG_LEVEL")
	if logLevel == "" {
		return Info
	}
	return LogLevel(logLevel)
}

func IsDebug() bool {
	return os.Getenv("PWLESS_DEBUG") == "true"
}

func GetLogFolder() string {
	logFolderPath := os.Getenv("PWLESS_LOG_FOLDER")
	if logFolderPath == "" {
		logFolderPath = "/var/log"
	}
	return logFolderPath
}

// GetSecretsFile returns the path of the optional TOML secrets file.
func GetSecretsFile() string {
	path := os.Getenv("PWLESS_SECRETS_FILE")
	if path == "" {
		path = "pwless.toml"
	}
	return path
}

// ProviderConfig holds the credentials of the passkey provider API.
type ProviderConfig struct {
	URL       string `toml:"url"`
	PublicKey string `toml:"public_key"`
	SecretKey string `toml:"secret_key"`
	// PreAuthorized refuses registrations of users no administrator created
	// beforehand.
	PreAuthorized bool `toml:"pre_authorized"`
}

// WebConfig holds the settings of the admin/auth web server.
type WebConfig struct {
	Listen        string `toml:"listen"`
	Port          int    `toml:"port"`
	BasePath      string `toml:"base_path"`
	SessionSecret string `toml:"session_secret"`
	SessionMaxAge int    `toml:"session_max_age"`
	// RedisAddr switches the session store from signed cookies to Redis.
	RedisAddr string `toml:"redis_addr"`
}

// Config is the full runtime configuration.
type Config struct {
	Database *DatabaseConfig `toml:"database"`
	Provider ProviderConfig  `toml:"provider"`
	Web      WebConfig       `toml:"web"`
}

const defaultProviderURL = "https://v4.passwordless.dev"

func defaultConfig() *Config {
	return &Config{
		Database: GetDefaultDatabaseConfig(),
		Provider: ProviderConfig{URL: defaultProviderURL},
		Web: WebConfig{
			Port:          8080,
			BasePath:      "/",
			SessionMaxAge: 12 * 60 * 60,
		},
	}
}

// Load builds the configuration in three layers: defaults, the optional TOML
// secrets file and environment variables. The provider keys have no usable
// default, so missing keys are a startup error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if raw, err := os.ReadFile(GetSecretsFile()); err == nil {
		if err := toml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse secrets file %s: %w", GetSecretsFile(), err)
		}
	}

	applyEnv(cfg)

	if cfg.Provider.PublicKey == "" || cfg.Provider.SecretKey == "" {
		return nil, fmt.Errorf("provider keys are required: set PWLESS_API_PUBLIC_KEY and PWLESS_API_SECRET_KEY")
	}
	if err := cfg.Database.ValidateConfig(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Provider.URL, "PWLESS_API_URL")
	setString(&cfg.Provider.PublicKey, "PWLESS_API_PUBLIC_KEY")
	setString(&cfg.Provider.SecretKey, "PWLESS_API_SECRET_KEY")
	setBool(&cfg.Provider.PreAuthorized, "PWLESS_PRE_AUTHORIZED")

	setString(&cfg.Web.Listen, "PWLESS_WEB_LISTEN")
	setInt(&cfg.Web.Port, "PWLESS_WEB_PORT")
	setString(&cfg.Web.BasePath, "PWLESS_WEB_BASE_PATH")
	setString(&cfg.Web.SessionSecret, "PWLESS_SESSION_SECRET")
	setInt(&cfg.Web.SessionMaxAge, "PWLESS_SESSION_MAX_AGE")
	setString(&cfg.Web.RedisAddr, "PWLESS_REDIS_ADDR")

	if dbType := os.Getenv("PWLESS_DB_TYPE"); dbType != "" {
		cfg.Database.Type = DatabaseType(dbType)
	}
	setString(&cfg.Database.Schema, "PWLESS_DB_SCHEMA")
	setString(&cfg.Database.SQLite.Path, "PWLESS_DB_PATH")
	setString(&cfg.Database.Postgres.Host, "PWLESS_DB_HOST")
	setInt(&cfg.Database.Postgres.Port, "PWLESS_DB_PORT")
	setString(&cfg.Database.Postgres.Database, "PWLESS_DB_NAME")
	setString(&cfg.Database.Postgres.Username, "PWLESS_DB_USER")
	setString(&cfg.Database.Postgres.Password, "PWLESS_DB_PASSWORD")
	setString(&cfg.Database.Postgres.SSLMode, "PWLESS_DB_SSLMODE")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
