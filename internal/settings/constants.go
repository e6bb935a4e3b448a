package settings

// DB config keys and defaults for settings.
const (
	// SiteNameKey is the DB config key for the UI site name.
	SiteNameKey = "SITE_NAME"
	// DefaultSiteName is the fallback UI site name.
	DefaultSiteName = "NyanPass"
	// RegisterEnabledKey toggles self-service registration.
	RegisterEnabledKey = "REGISTER_ENABLED"
	// DefaultRegisterEnabled keeps registration open on fresh installs.
	DefaultRegisterEnabled = true
	// OrderTTLMinutesKey overrides the configured pending order lifetime (0 uses config).
	OrderTTLMinutesKey = "ORDER_TTL_MINUTES"
	// DefaultOrderTTLMinutes defers to the config file.
	DefaultOrderTTLMinutes = 0
	// TopUpMinAmountKey is the smallest online top-up, as a decimal amount.
	TopUpMinAmountKey = "TOPUP_MIN_AMOUNT"
	// DefaultTopUpMinAmount is the fallback minimum top-up in cents.
	DefaultTopUpMinAmount = 100
	// TopUpMaxAmountKey is the largest online top-up, as a decimal amount (0 means unlimited).
	TopUpMaxAmountKey = "TOPUP_MAX_AMOUNT"
	// DefaultTopUpMaxAmount is the fallback maximum top-up in cents.
	DefaultTopUpMaxAmount = 0
	// InviteCommissionRateKey overrides the configured commission percent.
	InviteCommissionRateKey = "INVITE_COMMISSION_RATE"
	// AuthRateLimitKey limits login, register and redeem attempts per client IP per minute.
	AuthRateLimitKey = "AUTH_RATE_LIMIT"
	// RateLimitKey controls the default per-user request limit per minute.
	RateLimitKey = "RATE_LIMIT"
	// RateLimitRedisEnabledKey toggles Redis-backed rate limiting.
	RateLimitRedisEnabledKey = "RATE_LIMIT_REDIS_ENABLED"
	// RateLimitRedisAddrKey defines the Redis address for rate limiting.
	RateLimitRedisAddrKey = "RATE_LIMIT_REDIS_ADDR"
	// RateLimitRedisPasswordKey defines the Redis password for rate limiting.
	RateLimitRedisPasswordKey = "RATE_LIMIT_REDIS_PASSWORD"
	// RateLimitRedisDBKey defines the Redis DB index for rate limiting.
	RateLimitRedisDBKey = "RATE_LIMIT_REDIS_DB"
	// RateLimitRedisPrefixKey defines the Redis key prefix for rate limiting.
	RateLimitRedisPrefixKey = "RATE_LIMIT_REDIS_PREFIX"
	// DefaultAuthRateLimit is the fallback auth attempts per minute.
	DefaultAuthRateLimit = 20
	// DefaultRateLimit is the fallback rate limit (0 means unlimited).
	DefaultRateLimit = 0
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "np:rl"
)
