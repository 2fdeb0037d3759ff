package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"checkin-platform/internal/aggregation"
	"checkin-platform/internal/measures"
	"checkin-platform/pkg/database"
)

// EnvPrefix prefixes every environment override, e.g. CHECKIN_DATABASE_HOST
const EnvPrefix = "CHECKIN"

// ConfigFileEnv names the environment variable holding the config file path
const ConfigFileEnv = "CHECKIN_CONFIG"

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Measures MeasuresConfig `mapstructure:"measures"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// DatabaseConfig holds PostgreSQL configuration. Persistence is skipped
// when Enabled is false.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// MeasuresConfig controls measure resolution. An empty DefaultRegion means
// exports without any country fail instead of guessing.
type MeasuresConfig struct {
	DefaultRegion   string `mapstructure:"default_region"`
	DefaultUnit     string `mapstructure:"default_unit"`
	MaxValidMeasure int    `mapstructure:"max_valid_measure"`
}

// IngestConfig controls how exports are fetched and processed
type IngestConfig struct {
	FetchTimeout   time.Duration `mapstructure:"fetch_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	Parallelism    int           `mapstructure:"parallelism"`
	MaxExportBytes int64         `mapstructure:"max_export_bytes"`
}

// StorageConfig holds S3-compatible artifact storage configuration
type StorageConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Endpoint      string `mapstructure:"endpoint"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Bucket        string `mapstructure:"bucket"`
	Region        string `mapstructure:"region"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	OwnerSecret   string `mapstructure:"owner_secret"`
}

// CacheConfig holds Redis result cache configuration
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// TelegramConfig holds weekly digest notification configuration
type TelegramConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	BotToken   string `mapstructure:"bot_token"`
	ChatID     int64  `mapstructure:"chat_id"`
	Weeks      int    `mapstructure:"weeks"`
	MaxRetries int    `mapstructure:"max_retries"`
}

// LoadConfig reads defaults, then the YAML file at path (or $CHECKIN_CONFIG)
// if one is given, then CHECKIN_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 32<<20)

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "checkin")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "checkin")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.conn_max_idle_time", "1m")

	// Logging defaults
	v.SetDefault("logging.level", "info")

	// Measures defaults
	v.SetDefault("measures.default_region", "")
	v.SetDefault("measures.default_unit", measures.DefaultUnit)
	v.SetDefault("measures.max_valid_measure", measures.MaxValidMeasure)

	// Ingest defaults
	v.SetDefault("ingest.fetch_timeout", "30s")
	v.SetDefault("ingest.max_retries", 3)
	v.SetDefault("ingest.parallelism", 4)
	v.SetDefault("ingest.max_export_bytes", 64<<20)

	// Storage defaults
	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket", "checkin-reports")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.use_ssl", false)
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.owner_secret", "")

	// Cache defaults
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.addr", "localhost:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.ttl", "24h")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("telegram.weeks", 4)
	v.SetDefault("telegram.max_retries", 3)
}

// Validate checks that all configuration values are valid and returns the
// first problem found
func (c *Config) Validate() error {
	// Validate Server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxBodyBytes < 1 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}

	// Validate Database config
	if c.Database.Enabled {
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required when database is enabled")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database.database is required when database is enabled")
		}
		if c.Database.MaxOpenConns < 1 {
			return fmt.Errorf("database.max_open_conns must be at least 1")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	// Validate Measures config
	if _, err := c.Measures.FallbackRegion(); err != nil {
		return fmt.Errorf("measures.default_region: %w", err)
	}
	if c.Measures.MaxValidMeasure < 1 {
		return fmt.Errorf("measures.max_valid_measure must be at least 1")
	}
	if _, err := measures.NewResolver(measures.Europe, c.Measures.ResolverConfig()); err != nil {
		return fmt.Errorf("measures.default_unit: %w", err)
	}

	// Validate Ingest config
	if c.Ingest.Parallelism < 1 {
		return fmt.Errorf("ingest.parallelism must be at least 1")
	}
	if c.Ingest.MaxRetries < 0 {
		return fmt.Errorf("ingest.max_retries must not be negative")
	}

	// Validate Storage config
	if c.Storage.Enabled {
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			return fmt.Errorf("storage.endpoint and storage.bucket are required when storage is enabled")
		}
		if c.Storage.OwnerSecret == "" {
			return fmt.Errorf("storage.owner_secret is required when storage is enabled")
		}
	}

	// Validate Cache config
	if c.Cache.Enabled && c.Cache.Addr == "" {
		return fmt.Errorf("cache.addr is required when cache is enabled")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == 0 {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	return nil
}

// FallbackRegion parses DefaultRegion; empty gives nil
func (m MeasuresConfig) FallbackRegion() (*measures.Region, error) {
	if strings.TrimSpace(m.DefaultRegion) == "" {
		return nil, nil
	}
	region, err := measures.ParseRegion(m.DefaultRegion)
	if err != nil {
		return nil, err
	}
	return &region, nil
}

// ResolverConfig returns the measure resolver settings
func (m MeasuresConfig) ResolverConfig() measures.Config {
	return measures.Config{
		DefaultUnit:     m.DefaultUnit,
		MaxValidMeasure: m.MaxValidMeasure,
	}
}

// AggregationConfig builds the aggregator settings
func (c *Config) AggregationConfig() (aggregation.Config, error) {
	fallback, err := c.Measures.FallbackRegion()
	if err != nil {
		return aggregation.Config{}, err
	}
	return aggregation.Config{
		FallbackRegion: fallback,
		Measures:       c.Measures.ResolverConfig(),
	}, nil
}

// PostgresConfig converts the database section for pkg/database
func (c *Config) PostgresConfig() *database.Config {
	return &database.Config{
		Host:            c.Database.Host,
		Port:            c.Database.Port,
		User:            c.Database.User,
		Password:        c.Database.Password,
		Database:        c.Database.Database,
		SSLMode:         c.Database.SSLMode,
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}
