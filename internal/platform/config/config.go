// Package config centralizes environment-driven configuration so main stays
// lean. Only the HTTP address and JWT key are required in practice; postgres,
// redis, and kafka are optional backends that default to off.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	platformstrings "provena/pkg/platform/strings"
)

// Config is the full server configuration.
type Config struct {
	Addr string

	// JWTSigningKey signs caller tokens. Override in production.
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string

	// ProvisioningKeyHash is the bcrypt hash gating /auth/token. Empty
	// disables issuance.
	ProvisioningKeyHash string

	// AdminAccount is bootstrapped with the admin role at startup.
	AdminAccount string
	// OperatorAccount is the custody account the exchange transfers assets
	// under. Sellers approve it before listing.
	OperatorAccount string

	// RequiredTopics overrides the claim topics an identity needs to count
	// as verified. Empty keeps the default set.
	RequiredTopics []string

	FeeCapBps        uint64
	MaxListingExpiry time.Duration
	CompletionWindow time.Duration

	// RateLimit is the per-caller request budget per RateLimitWindow.
	// Zero disables limiting.
	RateLimit       uint64
	RateLimitWindow time.Duration

	// PostgresURL enables the durable identity store and the event outbox.
	PostgresURL string

	Redis RedisConfig
	Kafka KafkaConfig
}

// RedisConfig configures the optional redis stream sink.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the optional outbox relay.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds a Config from PROVENA_* environment variables.
func FromEnv() Config {
	return Config{
		Addr:                envOr("PROVENA_ADDR", ":8080"),
		JWTSigningKey:       envOr("PROVENA_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:           envOr("PROVENA_JWT_ISSUER", "provena"),
		JWTAudience:         envOr("PROVENA_JWT_AUDIENCE", "provena-api"),
		ProvisioningKeyHash: os.Getenv("PROVENA_PROVISIONING_KEY_HASH"),
		AdminAccount:        envOr("PROVENA_ADMIN_ACCOUNT", "acct-admin"),
		OperatorAccount:     envOr("PROVENA_OPERATOR_ACCOUNT", "acct-exchange"),
		RequiredTopics:      envList("PROVENA_REQUIRED_TOPICS"),
		FeeCapBps:           envUint("PROVENA_FEE_CAP_BPS", 1_000),
		MaxListingExpiry:    envDuration("PROVENA_MAX_LISTING_EXPIRY", 90*24*time.Hour),
		CompletionWindow:    envDuration("PROVENA_COMPLETION_WINDOW", 7*24*time.Hour),
		RateLimit:           envUint("PROVENA_RATE_LIMIT", 0),
		RateLimitWindow:     envDuration("PROVENA_RATE_LIMIT_WINDOW", time.Minute),
		PostgresURL:         os.Getenv("PROVENA_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("PROVENA_REDIS_URL"),
			PoolSize:     int(envUint("PROVENA_REDIS_POOL_SIZE", 10)),
			MinIdleConns: int(envUint("PROVENA_REDIS_MIN_IDLE_CONNS", 2)),
			DialTimeout:  envDuration("PROVENA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("PROVENA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("PROVENA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: envList("PROVENA_KAFKA_BROKERS"),
			Topic:   envOr("PROVENA_KAFKA_TOPIC", "provena.events"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	out := platformstrings.DedupeAndTrim(strings.Split(v, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}

func envUint(key string, fallback uint64) uint64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
