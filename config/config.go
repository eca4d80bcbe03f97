package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string

	// 抠图推理服务
	RembgBaseURL string
	RembgTimeout time.Duration

	// Limits
	MaxUploadBytes int64

	// Concurrency
	MaxConcurrentRemovals int64

	// rate limiting (per IP)
	RateLimitEvery time.Duration
	RateLimitBurst int

	// housekeeping
	SweepSpec  string // cron 表达式
	SessionTTL time.Duration
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port: envStr("PORT", "8080"),

		RembgBaseURL: envStr("REMBG_BASE_URL", "http://127.0.0.1:7000"),
		RembgTimeout: envDuration("REMBG_TIMEOUT", 120*time.Second),

		// 界面上宣传的 25MB 限制在这里真正生效
		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 25<<20),

		MaxConcurrentRemovals: envInt64("MAX_CONCURRENT_REMOVALS", 2),

		RateLimitEvery: envDuration("RATE_LIMIT_EVERY", time.Second),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 10),

		SweepSpec:  envStr("SWEEP_SPEC", "@every 5m"),
		SessionTTL: envDuration("SESSION_TTL", 30*time.Minute),
	}
}

func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.RembgBaseURL == "" {
		return fmt.Errorf("REMBG_BASE_URL must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.MaxConcurrentRemovals <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_REMOVALS must be positive, got %d", c.MaxConcurrentRemovals)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
