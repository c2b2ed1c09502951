package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// ストレージドライバー名
const (
	StorageDriverMemory   = "memory"
	StorageDriverRedis    = "redis"
	StorageDriverPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Upstream
	TrainAPIBaseURL   string
	UpstreamTimeout   time.Duration
	UpstreamSSRFGuard bool

	// Storage
	StorageDriver string
	StorageTTL    time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	DatabaseURL   string

	// Session
	SessionDiscardExpiredTokens bool

	// Rate Limit (req/min)
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	ServerPort     string
	MetricsEnabled bool

	// Cookie
	CookieSecure       bool
	CookieDomain       string
	ClientCookieMaxAge int

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// fileConfig はTOML設定ファイルの構造。
// 省略された項目は環境変数または組み込みのデフォルト値で補う。
type fileConfig struct {
	Server struct {
		Port              string `toml:"port"`
		CORSAllowedOrigin string `toml:"cors_allowed_origin"`
		MetricsEnabled    *bool  `toml:"metrics_enabled"`
	} `toml:"server"`
	Upstream struct {
		BaseURL   string `toml:"base_url"`
		Timeout   string `toml:"timeout"`
		SSRFGuard *bool  `toml:"ssrf_guard"`
	} `toml:"upstream"`
	Storage struct {
		Driver        string `toml:"driver"`
		TTL           string `toml:"ttl"`
		RedisAddr     string `toml:"redis_addr"`
		RedisPassword string `toml:"redis_password"`
		RedisDB       *int   `toml:"redis_db"`
		RedisPrefix   string `toml:"redis_prefix"`
		DatabaseURL   string `toml:"database_url"`
	} `toml:"storage"`
	Session struct {
		DiscardExpiredTokens *bool `toml:"discard_expired_tokens"`
	} `toml:"session"`
	Cookie struct {
		Secure       *bool  `toml:"secure"`
		Domain       string `toml:"domain"`
		ClientMaxAge *int   `toml:"client_max_age"`
	} `toml:"cookie"`
	RateLimit struct {
		General *int `toml:"general"`
		Auth    *int `toml:"auth"`
	} `toml:"rate_limit"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
}

// Load は設定を読み込む。
// 優先順位は 組み込みデフォルト < TOMLファイル（pathが空なら省略） < 環境変数。
// postgresドライバー選択時にDATABASE_URLが未設定の場合や、未知のドライバーの場合はエラーを返す。
func Load(path string) (*Config, error) {
	var fc fileConfig
	if path != "" {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{}

	// TRAIN_API_BASE_URLの欠落は検証しない（リクエストが失敗するだけ）
	cfg.TrainAPIBaseURL = getEnvString("TRAIN_API_BASE_URL", fc.Upstream.BaseURL)
	cfg.UpstreamTimeout = getEnvDuration("UPSTREAM_TIMEOUT", parseDuration(fc.Upstream.Timeout, 0))
	cfg.UpstreamSSRFGuard = getEnvBool("UPSTREAM_SSRF_GUARD", boolOr(fc.Upstream.SSRFGuard, false))

	cfg.StorageDriver = getEnvString("STORAGE_DRIVER", stringOr(fc.Storage.Driver, StorageDriverMemory))
	cfg.StorageTTL = getEnvDuration("STORAGE_TTL", parseDuration(fc.Storage.TTL, 0))
	cfg.RedisAddr = getEnvString("REDIS_ADDR", stringOr(fc.Storage.RedisAddr, "localhost:6379"))
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", fc.Storage.RedisPassword)
	cfg.RedisDB = getEnvInt("REDIS_DB", intOr(fc.Storage.RedisDB, 0))
	cfg.RedisPrefix = getEnvString("REDIS_PREFIX", stringOr(fc.Storage.RedisPrefix, "trainchecker"))
	cfg.DatabaseURL = getEnvString("DATABASE_URL", fc.Storage.DatabaseURL)

	cfg.SessionDiscardExpiredTokens = getEnvBool("SESSION_DISCARD_EXPIRED_TOKENS", boolOr(fc.Session.DiscardExpiredTokens, false))

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", intOr(fc.RateLimit.General, 120))
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", intOr(fc.RateLimit.Auth, 10))

	cfg.ServerPort = getEnvString("SERVER_PORT", stringOr(fc.Server.Port, "8080"))
	cfg.MetricsEnabled = getEnvBool("METRICS_ENABLED", boolOr(fc.Server.MetricsEnabled, true))

	cfg.CookieSecure = getEnvBool("COOKIE_SECURE", boolOr(fc.Cookie.Secure, false))
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", fc.Cookie.Domain)
	cfg.ClientCookieMaxAge = getEnvInt("CLIENT_COOKIE_MAX_AGE", intOr(fc.Cookie.ClientMaxAge, 31536000))

	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", stringOr(fc.Server.CORSAllowedOrigin, "http://localhost:5173"))
	cfg.LogLevel = getEnvString("LOG_LEVEL", stringOr(fc.Log.Level, "info"))

	if cfg.RateLimitGeneral <= 0 || cfg.RateLimitAuth <= 0 {
		return nil, fmt.Errorf("rate limits must be positive (general=%d, auth=%d)", cfg.RateLimitGeneral, cfg.RateLimitAuth)
	}

	switch cfg.StorageDriver {
	case StorageDriverMemory, StorageDriverRedis:
	case StorageDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=%s", StorageDriverPostgres)
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER: %q (allowed: memory, redis, postgres)", cfg.StorageDriver)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return parseDuration(v, defaultVal)
}

func parseDuration(v string, defaultVal time.Duration) time.Duration {
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func stringOr(v, defaultVal string) string {
	if v != "" {
		return v
	}
	return defaultVal
}

func intOr(v *int, defaultVal int) int {
	if v != nil {
		return *v
	}
	return defaultVal
}

func boolOr(v *bool, defaultVal bool) bool {
	if v != nil {
		return *v
	}
	return defaultVal
}
