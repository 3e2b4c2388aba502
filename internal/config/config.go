package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
	SourceMemory   = "memory"

	minSecretLen = 32
)

type Config struct {
	Port     string
	LogLevel string

	Source        string
	UpstreamURL   string
	UpstreamLimit int
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	RefreshInterval time.Duration

	JoinKey   string
	RowHeight int
	Overscan  int

	SessionSecret      string
	SessionTTL         time.Duration
	SessionLimitPerMin int

	MetricsEnabled bool
	MetricsToken   string
	AdminToken     string
}

// Load reads an optional .env file and then the environment. Variables
// already set in the environment win over the file.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var errs []error
	c := Config{
		Port:     getenv("PORT", "8080"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		Source:        strings.ToLower(getenv("RECORDS_SOURCE", SourceHTTP)),
		UpstreamURL:   getenv("UPSTREAM_URL", "https://dummyjson.com"),
		UpstreamLimit: getInt("UPSTREAM_LIMIT", 200, &errs),
		DatabaseURL:   os.Getenv("DATABASE_URL"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		CacheTTL:      getDuration("CACHE_TTL", 5*time.Minute, &errs),

		RefreshInterval: getDuration("REFRESH_INTERVAL", 0, &errs),

		JoinKey:   getenv("JOIN_KEY", "product-id"),
		RowHeight: getInt("ROW_HEIGHT", 100, &errs),
		Overscan:  getInt("OVERSCAN", 1, &errs),

		SessionSecret:      os.Getenv("SESSION_SECRET"),
		SessionTTL:         getDuration("SESSION_TTL", 30*time.Minute, &errs),
		SessionLimitPerMin: getInt("SESSION_LIMIT_PER_MIN", 30, &errs),

		MetricsEnabled: getBool("METRICS_ENABLED", true, &errs),
		MetricsToken:   os.Getenv("METRICS_TOKEN"),
		AdminToken:     os.Getenv("ADMIN_TOKEN"),
	}

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error

	switch c.Source {
	case SourceHTTP:
		if c.UpstreamURL == "" {
			errs = append(errs, errors.New("UPSTREAM_URL is required for the http source"))
		}
	case SourcePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres source"))
		}
	case SourceMemory:
	default:
		errs = append(errs, fmt.Errorf("RECORDS_SOURCE %q is not one of http, postgres, memory", c.Source))
	}

	if len(c.SessionSecret) < minSecretLen {
		errs = append(errs, fmt.Errorf("SESSION_SECRET is required and must be at least %d chars", minSecretLen))
	}
	if c.RowHeight <= 0 {
		errs = append(errs, errors.New("ROW_HEIGHT must be positive"))
	}
	if c.Overscan < 0 {
		errs = append(errs, errors.New("OVERSCAN must not be negative"))
	}

	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int, errs *[]error) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return n
}

func getDuration(k string, def time.Duration, errs *[]error) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return d
}

func getBool(k string, def bool, errs *[]error) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", k, err))
		return def
	}
	return b
}
