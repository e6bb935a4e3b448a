package ratelimit

import (
	"strings"

	"github.com/nyanpass/panel/internal/config"
	internalsettings "github.com/nyanpass/panel/internal/settings"
)

// SettingsConfig captures rate limit settings stored in DB config.
type SettingsConfig struct {
	Limit         int
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// LoadSettingsConfig loads the current rate limit settings snapshot.
func LoadSettingsConfig() SettingsConfig {
	return loadSettings(config.RedisConfig{})
}

// NewSettingsProvider returns a provider that falls back to file-level redis settings.
func NewSettingsProvider(fallback config.RedisConfig) SettingsProvider {
	return func() SettingsConfig { return loadSettings(fallback) }
}

func loadSettings(fallback config.RedisConfig) SettingsConfig {
	cfg := SettingsConfig{
		Limit:         internalsettings.Int(internalsettings.RateLimitKey, internalsettings.DefaultRateLimit),
		RedisEnabled:  internalsettings.Bool(internalsettings.RateLimitRedisEnabledKey, strings.TrimSpace(fallback.Addr) != ""),
		RedisAddr:     internalsettings.String(internalsettings.RateLimitRedisAddrKey, fallback.Addr),
		RedisPassword: internalsettings.String(internalsettings.RateLimitRedisPasswordKey, fallback.Password),
		RedisDB:       internalsettings.Int(internalsettings.RateLimitRedisDBKey, fallback.DB),
		RedisPrefix:   internalsettings.String(internalsettings.RateLimitRedisPrefixKey, internalsettings.DefaultRateLimitRedisPrefix),
	}
	cfg.RedisAddr = strings.TrimSpace(cfg.RedisAddr)
	cfg.RedisPassword = strings.TrimSpace(cfg.RedisPassword)
	if cfg.RedisDB < 0 {
		cfg.RedisDB = 0
	}
	if cfg.Limit < 0 {
		cfg.Limit = 0
	}
	return cfg
}

// DefaultSettingsLimit returns the default per-user rate limit configured in settings.
func DefaultSettingsLimit() int {
	return LoadSettingsConfig().Limit
}
