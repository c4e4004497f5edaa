package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultSensorPushBaseURL = "https://api.sensorpush.com/api/v1"
	DefaultPurgeSchedule     = "0 2 * * *"
)

// Config holds all configuration for the service. It is built and validated
// once by Load and must not be mutated afterwards.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	SensorPush SensorPushConfig `mapstructure:"sensorpush"`
	Polling    PollingConfig    `mapstructure:"polling"`
	Retention  RetentionConfig  `mapstructure:"retention"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Host            string        `mapstructure:"host"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// DatabaseConfig selects the storage engine. Driver is one of "postgres"
// (lib/pq), "pgx" or "sqlite". When DSN is empty a Postgres DSN is built
// from the discrete fields.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	SSLMode      string `mapstructure:"sslmode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type SensorPushConfig struct {
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type PollingConfig struct {
	Enabled                bool          `mapstructure:"enabled"`
	DefaultIntervalMinutes int           `mapstructure:"default_interval_minutes"`
	PurgeSchedule          string        `mapstructure:"purge_schedule"`
	JobTimeout             time.Duration `mapstructure:"job_timeout"`
}

type RetentionConfig struct {
	Months int `mapstructure:"months"`
}

type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	SessionTimeout   time.Duration `mapstructure:"session_timeout"`
	ManagerPinHash   string        `mapstructure:"manager_pin_hash"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration"`
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	MetadataTTL time.Duration `mapstructure:"metadata_ttl"`
}

type MonitoringConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

// MissingCredentials lists the SensorPush settings that are required to poll
// but not configured.
func (c SensorPushConfig) MissingCredentials() []string {
	var missing []string
	if strings.TrimSpace(c.Username) == "" {
		missing = append(missing, "SENSORPUSH_USERNAME")
	}
	if strings.TrimSpace(c.Password) == "" {
		missing = append(missing, "SENSORPUSH_PASSWORD")
	}
	return missing
}

// Load initializes configuration from environment variables and config file
func Load() (*Config, error) {
	return load(viper.New(), "./config")
}

func load(v *viper.Viper, configPaths ...string) (*Config, error) {
	v.SetEnvPrefix("SENSORHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)
	if err := bindLegacyEnv(v); err != nil {
		return nil, fmt.Errorf("error binding environment: %w", err)
	}

	// Load config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range configPaths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "15s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "sensorhub")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)

	// SensorPush defaults
	v.SetDefault("sensorpush.username", "")
	v.SetDefault("sensorpush.password", "")
	v.SetDefault("sensorpush.base_url", DefaultSensorPushBaseURL)
	v.SetDefault("sensorpush.timeout", "30s")

	// Polling defaults
	v.SetDefault("polling.enabled", true)
	v.SetDefault("polling.default_interval_minutes", 1)
	v.SetDefault("polling.purge_schedule", DefaultPurgeSchedule)
	v.SetDefault("polling.job_timeout", "5m")

	v.SetDefault("retention.months", 12)

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_timeout", "1h")
	v.SetDefault("auth.manager_pin_hash", "")
	v.SetDefault("auth.max_login_attempts", 4)
	v.SetDefault("auth.lockout_duration", "15m")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.metadata_ttl", "1h")

	// Monitoring defaults
	v.SetDefault("monitoring.log_level", "info")
}

// bindLegacyEnv keeps the variable names older deployments already export.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"sensorpush.username":               {"SENSORHUB_SENSORPUSH__USERNAME", "SENSORPUSH_USERNAME"},
		"sensorpush.password":               {"SENSORHUB_SENSORPUSH__PASSWORD", "SENSORPUSH_PASSWORD"},
		"sensorpush.base_url":               {"SENSORHUB_SENSORPUSH__BASE_URL", "SENSORPUSH_API_BASE_URL"},
		"polling.default_interval_minutes": {"SENSORHUB_POLLING__DEFAULT_INTERVAL_MINUTES", "DEFAULT_POLLING_INTERVAL"},
		"retention.months":                 {"SENSORHUB_RETENTION__MONTHS", "DATA_RETENTION_MONTHS"},
		"monitoring.log_level":             {"SENSORHUB_MONITORING__LOG_LEVEL", "LOG_LEVEL"},
		"database.dsn":                     {"SENSORHUB_DATABASE__DSN", "DATABASE_URL"},
		"auth.manager_pin_hash":            {"SENSORHUB_AUTH__MANAGER_PIN_HASH", "MANAGER_PIN_HASH"},
		"auth.max_login_attempts":          {"SENSORHUB_AUTH__MAX_LOGIN_ATTEMPTS", "MAX_LOGIN_ATTEMPTS"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return err
		}
	}
	return nil
}

func validateConfig(config *Config) error {
	switch config.Database.Driver {
	case "postgres", "pgx":
		if config.Database.DSN == "" && config.Database.Host == "" {
			return fmt.Errorf("database host or dsn is required for driver %s", config.Database.Driver)
		}
	case "sqlite":
		if config.Database.DSN == "" {
			config.Database.DSN = "sensorhub.db"
		}
	default:
		return fmt.Errorf("unsupported database driver %q", config.Database.Driver)
	}
	if config.SensorPush.BaseURL == "" {
		return fmt.Errorf("sensorpush base_url is required")
	}
	config.SensorPush.BaseURL = strings.TrimRight(config.SensorPush.BaseURL, "/")
	if config.SensorPush.Timeout <= 0 {
		return fmt.Errorf("sensorpush timeout must be positive")
	}
	if config.Polling.DefaultIntervalMinutes < 1 {
		return fmt.Errorf("polling default_interval_minutes must be at least 1, got %d", config.Polling.DefaultIntervalMinutes)
	}
	if strings.TrimSpace(config.Polling.PurgeSchedule) == "" {
		return fmt.Errorf("polling purge_schedule is required")
	}
	if config.Polling.JobTimeout <= 0 {
		return fmt.Errorf("polling job_timeout must be positive")
	}
	// Retention months below the floor are accepted here and raised to the
	// floor by the retention engine.
	if config.Retention.Months < 0 {
		return fmt.Errorf("retention months cannot be negative")
	}
	if config.Auth.SessionTimeout <= 0 {
		return fmt.Errorf("auth session_timeout must be positive")
	}
	if config.Auth.MaxLoginAttempts < 1 {
		return fmt.Errorf("auth max_login_attempts must be at least 1")
	}
	return nil
}
