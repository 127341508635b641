package shared

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"roomledger/internal/domain"
)

const (
	StoreMySQL  = "mysql"
	StoreMemory = "memory"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string

	StoreDriver string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	AMQPURL     string
	JWTSecret   string

	RateFeedBase string
	RateFeedKey  string
	RateFeedRPS  int
	Workers      int

	QuoteCacheTTL   time.Duration
	SameDayTurnover bool
	WriteRPS        int
}

// Load reads the environment, after an optional .env file in the working directory.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("could not read .env")
	}

	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),

		StoreDriver: strings.ToLower(env("STORE_DRIVER", StoreMySQL)),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/roomledger?parseTime=true&charset=utf8mb4&loc=UTC"),
		RedisAddr:   envOrUnset("REDIS_ADDR", "localhost:6379"),
		RedisDB:     atoi("REDIS_DB", 0),
		RedisPass:   env("REDIS_PASSWORD", ""),
		AMQPURL:     env("AMQP_URL", ""),
		JWTSecret:   env("JWT_SECRET", ""),

		RateFeedBase: env("RATEFEED_BASE_URL", ""),
		RateFeedKey:  env("RATEFEED_API_KEY", ""),
		RateFeedRPS:  atoi("RATEFEED_RPS", 5),
		Workers:      atoi("WORKERS", 8),

		QuoteCacheTTL:   time.Duration(atoi("QUOTE_CACHE_TTL_SECONDS", 300)) * time.Second,
		SameDayTurnover: envBool("SAME_DAY_TURNOVER", false),
		WriteRPS:        atoi("WRITE_RPS", 20),
	}
	if c.JWTSecret == "" {
		log.Warn().Msg("JWT_SECRET is empty; authenticated routes will reject every token")
	}
	if c.StoreDriver != StoreMySQL && c.StoreDriver != StoreMemory {
		log.Warn().Str("driver", c.StoreDriver).Msg("unknown STORE_DRIVER, falling back to mysql")
		c.StoreDriver = StoreMySQL
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	return c
}

// OverlapPolicy is the stay-overlap rule selected by SAME_DAY_TURNOVER.
func (c Config) OverlapPolicy() domain.OverlapPolicy {
	if c.SameDayTurnover {
		return domain.OverlapHalfOpen
	}
	return domain.OverlapInclusive
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// envOrUnset falls back to def only when k is absent; an explicit empty value is kept.
func envOrUnset(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func envBool(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", k).Str("value", v).Msg("not a boolean, using default")
		return def
	}
	return b
}
