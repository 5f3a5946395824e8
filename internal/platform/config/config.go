package config

import (
	"os"
	"strconv"
	"time"
)

// DeviceResetLeadDays is the minimum number of days before the voting date a
// device reset may still be approved.
const DeviceResetLeadDays = 3

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string

	// VoteHashSecret is the secret material mixed into every vote integrity
	// hash. Must be stable for the lifetime of an election.
	VoteHashSecret string

	// Timezone elections are evaluated in. Voting windows are calendar-local.
	Timezone *time.Location

	Redis RedisConfig

	// LifecycleInterval is how often the transition worker re-evaluates
	// elections.
	LifecycleInterval time.Duration
}

// RedisConfig configures the optional Redis-backed rate limiter.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("AGORA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	voteHashSecret := os.Getenv("VOTE_HASH_SECRET")
	if voteHashSecret == "" {
		voteHashSecret = "dev-vote-hash-secret"
	}

	loc := time.Local
	if tz := os.Getenv("AGORA_TIMEZONE"); tz != "" {
		if parsed, err := time.LoadLocation(tz); err == nil {
			loc = parsed
		}
	}

	interval := 30 * time.Second
	if raw := os.Getenv("LIFECYCLE_INTERVAL"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			interval = parsed
		}
	}

	return Server{
		Addr:              addr,
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSigningKey:     jwtSigningKey,
		VoteHashSecret:    voteHashSecret,
		Timezone:          loc,
		LifecycleInterval: interval,
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return fallback
}
