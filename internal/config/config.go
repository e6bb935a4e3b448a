package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath   = "CONFIG_PATH"
	EnvDBConnection = "DB_CONNECTION"
	EnvJWTSecret    = "JWT_SECRET"
	EnvJWTExpiry    = "JWT_EXPIRY"
	EnvListenAddr   = "LISTEN_ADDR"
	EnvLogLevel     = "LOG_LEVEL"
	EnvRedisAddr    = "REDIS_ADDR"
	EnvOrderTTL     = "ORDER_TTL"
	EnvStripeSecret = "STRIPE_SECRET_KEY"
	EnvStripeHook   = "STRIPE_WEBHOOK_SECRET"
	EnvEPayKey      = "EPAY_KEY"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
// A .env file in the working directory is applied first when present.
func LoadFromEnv() (AppConfig, error) {
	if errDotenv := godotenv.Load(); errDotenv != nil && !errors.Is(errDotenv, os.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("load .env: %w", errDotenv)
	}
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// Config is the full file-backed configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Log      LogConfig      `yaml:"log"`
	Redis    RedisConfig    `yaml:"redis"`
	Order    OrderConfig    `yaml:"order"`
	Payment  PaymentConfig  `yaml:"payment"`
	Invite   InviteConfig   `yaml:"invite"`

	// DatabaseDSN is the legacy flat key, preferred over database.dsn when set.
	DatabaseDSN string `yaml:"database-dsn"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"` // gin mode: debug, release, test
	CORSOrigins     []string      `yaml:"cors-origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`
	BaseURL         string        `yaml:"base-url"` // Public URL used for payment callbacks.
}

// DatabaseConfig holds the connection string and pool sizes.
type DatabaseConfig struct {
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max-open-conns"`
	MaxIdleConns int    `yaml:"max-idle-conns"`
}

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// LogConfig selects the log level and optional rotating file output.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max-size-mb"`
	MaxBackups int    `yaml:"max-backups"`
	MaxAgeDays int    `yaml:"max-age-days"`
}

// RedisConfig configures the shared redis client used by rate limiting.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// OrderConfig controls pending order lifetime.
type OrderConfig struct {
	TTL           time.Duration `yaml:"ttl"`
	SweepInterval time.Duration `yaml:"sweep-interval"`
}

// PaymentConfig groups external gateway credentials.
type PaymentConfig struct {
	Stripe StripeConfig `yaml:"stripe"`
	EPay   EPayConfig   `yaml:"epay"`
}

// StripeConfig configures Stripe Checkout.
type StripeConfig struct {
	Enabled       bool   `yaml:"enabled"`
	SecretKey     string `yaml:"secret-key"`
	WebhookSecret string `yaml:"webhook-secret"`
	Currency      string `yaml:"currency"`
	SuccessURL    string `yaml:"success-url"`
	CancelURL     string `yaml:"cancel-url"`
}

// EPayConfig configures an EPay-compatible aggregator for alipay and wxpay.
type EPayConfig struct {
	Enabled   bool     `yaml:"enabled"`
	APIURL    string   `yaml:"api-url"`
	PID       string   `yaml:"pid"`
	Key       string   `yaml:"key"`
	ReturnURL string   `yaml:"return-url"`
	Methods   []string `yaml:"methods"`
}

// InviteConfig configures inviter commission.
type InviteConfig struct {
	Enabled        bool `yaml:"enabled"`
	CommissionRate int  `yaml:"commission-rate"` // Percent of the first paid order.
}

const (
	// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
	defaultJWTExpiry     = 30 * 24 * time.Hour
	defaultListenAddr    = ":8080"
	defaultOrderTTL      = 30 * time.Minute
	defaultSweepInterval = time.Minute
	defaultShutdown      = 10 * time.Second
)

// Load reads the YAML config file, applies environment overrides and defaults.
// A missing file is not an error; the DSN requirement is checked separately.
func Load(configPath string) (Config, error) {
	var cfg Config
	data, errRead := os.ReadFile(configPath)
	if errRead != nil && !errors.Is(errRead, os.ErrNotExist) {
		return cfg, fmt.Errorf("read config file: %w", errRead)
	}
	if errRead == nil {
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return cfg, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		cfg.Database.DSN = dsn
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		cfg.Database.DSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		cfg.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			cfg.JWT.Expiry = expiry
		}
	}
	if addr := strings.TrimSpace(os.Getenv(EnvListenAddr)); addr != "" {
		cfg.Server.Addr = addr
	}
	if level := strings.TrimSpace(os.Getenv(EnvLogLevel)); level != "" {
		cfg.Log.Level = level
	}
	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		cfg.Redis.Addr = addr
	}
	if ttlRaw := strings.TrimSpace(os.Getenv(EnvOrderTTL)); ttlRaw != "" {
		if ttl, errParse := time.ParseDuration(ttlRaw); errParse == nil && ttl > 0 {
			cfg.Order.TTL = ttl
		} else if minutes, errAtoi := strconv.Atoi(ttlRaw); errAtoi == nil && minutes > 0 {
			cfg.Order.TTL = time.Duration(minutes) * time.Minute
		}
	}
	if key := strings.TrimSpace(os.Getenv(EnvStripeSecret)); key != "" {
		cfg.Payment.Stripe.SecretKey = key
	}
	if hook := strings.TrimSpace(os.Getenv(EnvStripeHook)); hook != "" {
		cfg.Payment.Stripe.WebhookSecret = hook
	}
	if key := strings.TrimSpace(os.Getenv(EnvEPayKey)); key != "" {
		cfg.Payment.EPay.Key = key
	}
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Addr) == "" {
		cfg.Server.Addr = defaultListenAddr
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		cfg.Server.ShutdownTimeout = defaultShutdown
	}
	if cfg.JWT.Expiry <= 0 {
		cfg.JWT.Expiry = defaultJWTExpiry
	}
	if cfg.Order.TTL <= 0 {
		cfg.Order.TTL = defaultOrderTTL
	}
	if cfg.Order.SweepInterval <= 0 {
		cfg.Order.SweepInterval = defaultSweepInterval
	}
	if strings.TrimSpace(cfg.Payment.Stripe.Currency) == "" {
		cfg.Payment.Stripe.Currency = "usd"
	}
	if len(cfg.Payment.EPay.Methods) == 0 {
		cfg.Payment.EPay.Methods = []string{"alipay", "wxpay"}
	}
	if cfg.Invite.CommissionRate < 0 {
		cfg.Invite.CommissionRate = 0
	}
	if cfg.Invite.CommissionRate > 100 {
		cfg.Invite.CommissionRate = 100
	}
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	cfg, errLoad := Load(configPath)
	if errLoad != nil {
		return JWTConfig{Secret: strings.TrimSpace(os.Getenv(EnvJWTSecret)), Expiry: defaultJWTExpiry}, nil
	}
	return cfg.JWT, nil
}

// WriteConfigFile persists cfg as YAML with restrictive permissions.
func WriteConfigFile(configPath string, cfg Config) error {
	data, errMarshal := yaml.Marshal(cfg)
	if errMarshal != nil {
		return fmt.Errorf("marshal config: %w", errMarshal)
	}
	if dir := filepath.Dir(configPath); dir != "" {
		if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
			return fmt.Errorf("create config dir: %w", errMkdir)
		}
	}
	if errWrite := os.WriteFile(configPath, data, 0o600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}
	return nil
}
