package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"walletcore.com/internal/domain/entity"
)

const envPrefix = "LEDGER"

// Config holds the application configuration
type Config struct {
	Server        Server        `mapstructure:"server"`
	Log           Log           `mapstructure:"log"`
	Database      Database      `mapstructure:"database"`
	Redis         Redis         `mapstructure:"redis"`
	Ledger        Ledger        `mapstructure:"ledger"`
	Authorization Authorization `mapstructure:"authorization"`
	Webhook       Webhook       `mapstructure:"webhook"`
	Demo          Demo          `mapstructure:"demo"`
}

// Server configuration
type Server struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout     time.Duration `mapstructure:"idleTimeout"`
	RequestTimeout  time.Duration `mapstructure:"requestTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
}

// Log selects the minimum log level.
type Log struct {
	Level string `mapstructure:"level"`
}

// Database configuration. An empty DSN selects the in-memory store.
type Database struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"maxConns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// Redis configuration. An empty Addr disables the response cache.
type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Ledger holds the unit of work settings.
type Ledger struct {
	LockTimeout time.Duration `mapstructure:"lockTimeout"`
}

// Authorization configures the card authorization webhook.
type Authorization struct {
	AmountSource string `mapstructure:"amountSource"`
}

// Webhook configuration
type Webhook struct {
	HMACSecret         string        `mapstructure:"hmacSecret"`
	TimestampTolerance time.Duration `mapstructure:"timestampTolerance"`
	RequireSignature   bool          `mapstructure:"requireSignature"`
}

// Demo controls seeding of demo users and cards at boot.
type Demo struct {
	Seed bool `mapstructure:"seed"`
}

// LoadConfig loads configuration from YAML files in configDir.
// Uses CONFIG_ENV environment variable to determine which config file to
// merge over app-config.yaml. A .env file in the working directory is
// loaded first; variables already set in the environment win.
func LoadConfig(configDir string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	configEnv := os.Getenv("CONFIG_ENV")
	if configEnv == "" {
		configEnv = "local"
	}

	v := viper.New()

	// Load base app-config.yaml as template/defaults (if it exists)
	baseConfigPath := fmt.Sprintf("%s/app-config.yaml", configDir)
	baseConfigExists := false
	if _, err := os.Stat(baseConfigPath); err == nil {
		v.SetConfigFile(baseConfigPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read base config file: %w", err)
		}
		baseConfigExists = true
	}

	// Load environment-specific config (e.g., local.yaml when CONFIG_ENV=local)
	envConfigPath := fmt.Sprintf("%s/%s.yaml", configDir, configEnv)
	if _, err := os.Stat(envConfigPath); err == nil {
		v.SetConfigFile(envConfigPath)
		if baseConfigExists {
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("failed to merge env config file: %w", err)
			}
		} else if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read env config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys that are not in any YAML file are only picked up from the
	// environment when bound explicitly.
	bindings := map[string][]string{
		"server.port":                {"LEDGER_SERVER_PORT", "PORT"},
		"log.level":                  {"LEDGER_LOG_LEVEL", "LOG_LEVEL"},
		"database.dsn":               {"LEDGER_DATABASE_DSN", "DATABASE_URL"},
		"database.maxConns":          {"LEDGER_DATABASE_MAXCONNS"},
		"database.migrate":           {"LEDGER_DATABASE_MIGRATE"},
		"redis.addr":                 {"LEDGER_REDIS_ADDR", "REDIS_ADDR"},
		"redis.password":             {"LEDGER_REDIS_PASSWORD"},
		"redis.db":                   {"LEDGER_REDIS_DB"},
		"redis.ttl":                  {"LEDGER_REDIS_TTL"},
		"ledger.lockTimeout":         {"LEDGER_LEDGER_LOCKTIMEOUT", "LOCK_TIMEOUT"},
		"authorization.amountSource": {"LEDGER_AUTHORIZATION_AMOUNTSOURCE"},
		"webhook.hmacSecret":         {"LEDGER_WEBHOOK_HMAC_SECRET", "HMAC_SECRET"},
		"webhook.timestampTolerance": {"LEDGER_WEBHOOK_TIMESTAMP_TOLERANCE", "TIMESTAMP_TOLERANCE_MINUTES"},
		"webhook.requireSignature":   {"LEDGER_WEBHOOK_REQUIRE_SIGNATURE"},
		"demo.seed":                  {"LEDGER_DEMO_SEED"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	// Timestamp tolerance may be given as a bare number of minutes
	if toleranceStr := v.GetString("webhook.timestampTolerance"); toleranceStr != "" {
		if _, err := time.ParseDuration(toleranceStr); err != nil {
			minutes, convErr := strconv.Atoi(strings.TrimSpace(toleranceStr))
			if convErr != nil || minutes <= 0 {
				return nil, fmt.Errorf("webhook.timestampTolerance: %w", err)
			}
			v.Set("webhook.timestampTolerance", time.Duration(minutes)*time.Minute)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = 10 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 24 * time.Hour
	}
	if c.Ledger.LockTimeout == 0 {
		c.Ledger.LockTimeout = 5 * time.Second
	}
	if c.Authorization.AmountSource == "" {
		c.Authorization.AmountSource = string(entity.AmountFromTransaction)
	}
	if c.Webhook.TimestampTolerance == 0 {
		c.Webhook.TimestampTolerance = 5 * time.Minute
	}
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if _, err := entity.ParseAmountSource(c.Authorization.AmountSource); err != nil {
		return fmt.Errorf("authorization.amountSource: %w", err)
	}
	if c.Webhook.RequireSignature && c.Webhook.HMACSecret == "" {
		return errors.New("webhook.requireSignature is set but webhook.hmacSecret is empty")
	}
	if c.Ledger.LockTimeout < 0 {
		return fmt.Errorf("ledger.lockTimeout must not be negative, got %s", c.Ledger.LockTimeout)
	}
	return nil
}

// AmountSource returns the parsed authorization amount source.
func (c *Config) AmountSource() entity.AmountSource {
	src, err := entity.ParseAmountSource(c.Authorization.AmountSource)
	if err != nil {
		return entity.AmountFromTransaction
	}
	return src
}
