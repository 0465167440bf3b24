package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type config struct {
	listenAddr string
	logLevel   string
	logFormat  string

	apiKey      string
	apiEndpoint string

	rateLimit         int
	rateWindow        time.Duration
	rateBackend       string
	rateRedisAddr     string
	rateRedisPassword string
	rateRedisDB       int
	ratePrefix        string
	rateKeyHeader     string
	trustXFF          bool
	addHeaders        bool

	maxImageDimension int
	maxUploadBytes    int64

	upstreamTimeout    time.Duration
	upstreamRetries    int
	upstreamBackoff    time.Duration
	upstreamMaxBackoff time.Duration
	upstreamRPS        float64
	upstreamBurst      int

	concurrencyMax     int
	concurrencyTimeout time.Duration

	statsBackend   string
	statsPrefix    string
	statsTTL       time.Duration
	statsBucket    string
	statsTrackKeys bool

	corsOrigins []string
}

// loadDotEnv carrega o .env sobrescrevendo o ambiente; arquivo ausente não é erro.
func loadDotEnv(path string) error {
	err := godotenv.Overload(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func readConfig() (config, error) {
	cfg := config{}
	errs := &envErrors{}
	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.logFormat = strings.ToLower(getenvDefault("LOG_FORMAT", "json"))

	cfg.apiKey = strings.TrimSpace(os.Getenv("PIXEL_CUT_API_KEY"))
	cfg.apiEndpoint = strings.TrimSpace(os.Getenv("PIXEL_CUT_API_ENDPOINT"))

	// padrão do serviço: 2 requisições a cada 5 minutos por cliente
	cfg.rateLimit = getenvIntDefault(errs, "RATE_LIMIT", 2)
	cfg.rateWindow = getenvDurationDefault(errs, "RATE_WINDOW", 5*time.Minute)
	cfg.rateBackend = strings.ToLower(getenvDefault("RATE_BACKEND", "memory"))
	cfg.rateRedisAddr = os.Getenv("RATE_REDIS_ADDR")
	cfg.rateRedisPassword = os.Getenv("RATE_REDIS_PASSWORD")
	cfg.rateRedisDB = getenvIntDefault(errs, "RATE_REDIS_DB", 0)
	cfg.ratePrefix = getenvDefault("RATE_PREFIX", "tryon:window")
	cfg.rateKeyHeader = os.Getenv("RATE_KEY_HEADER")
	cfg.trustXFF = getenvBoolDefault(errs, "TRUST_XFF", false)
	cfg.addHeaders = getenvBoolDefault(errs, "ADD_RATELIMIT_HEADERS", true)

	cfg.maxImageDimension = getenvIntDefault(errs, "MAX_IMAGE_DIMENSION", 4096)
	cfg.maxUploadBytes = int64(getenvIntDefault(errs, "MAX_UPLOAD_BYTES", 10<<20))

	cfg.upstreamTimeout = getenvDurationDefault(errs, "UPSTREAM_TIMEOUT", 60*time.Second)
	cfg.upstreamRetries = getenvIntDefault(errs, "UPSTREAM_RETRIES", 0)
	cfg.upstreamBackoff = getenvDurationDefault(errs, "UPSTREAM_BACKOFF", 500*time.Millisecond)
	cfg.upstreamMaxBackoff = getenvDurationDefault(errs, "UPSTREAM_MAX_BACKOFF", 5*time.Second)
	cfg.upstreamRPS = getenvFloatDefault(errs, "UPSTREAM_RPS", 0)
	cfg.upstreamBurst = getenvIntDefault(errs, "UPSTREAM_BURST", 1)

	cfg.concurrencyMax = getenvIntDefault(errs, "CONCURRENCY_MAX", 100)
	cfg.concurrencyTimeout = getenvDurationDefault(errs, "CONCURRENCY_TIMEOUT", 0)

	cfg.statsBackend = strings.ToLower(getenvDefault("STATS_BACKEND", "memory"))
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "tryon:stats")
	cfg.statsTTL = getenvDurationDefault(errs, "STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackKeys = getenvBoolDefault(errs, "STATS_TRACK_KEYS", false)

	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.corsOrigins = append(cfg.corsOrigins, o)
		}
	}

	if err := errs.join(); err != nil {
		return config{}, err
	}
	if cfg.apiKey == "" {
		return config{}, errors.New("PIXEL_CUT_API_KEY is required")
	}
	if cfg.apiEndpoint == "" {
		return config{}, errors.New("PIXEL_CUT_API_ENDPOINT is required")
	}
	if cfg.rateLimit <= 0 {
		return config{}, errors.New("RATE_LIMIT must be > 0")
	}
	if cfg.rateWindow <= 0 {
		return config{}, errors.New("RATE_WINDOW must be > 0")
	}
	switch cfg.rateBackend {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.rateRedisAddr) == "" {
			return config{}, errors.New("RATE_REDIS_ADDR is required when RATE_BACKEND=redis")
		}
	default:
		return config{}, fmt.Errorf("RATE_BACKEND must be memory or redis, got %q", cfg.rateBackend)
	}
	switch cfg.statsBackend {
	case "none", "memory":
	case "redis":
		if strings.TrimSpace(cfg.rateRedisAddr) == "" {
			return config{}, errors.New("RATE_REDIS_ADDR is required when STATS_BACKEND=redis")
		}
	default:
		return config{}, fmt.Errorf("STATS_BACKEND must be none, memory or redis, got %q", cfg.statsBackend)
	}
	if _, err := zerolog.ParseLevel(cfg.logLevel); err != nil {
		return config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if cfg.logFormat != "json" && cfg.logFormat != "console" {
		return config{}, fmt.Errorf("LOG_FORMAT must be json or console, got %q", cfg.logFormat)
	}
	if cfg.maxImageDimension <= 0 {
		return config{}, errors.New("MAX_IMAGE_DIMENSION must be > 0")
	}
	if cfg.maxUploadBytes <= 0 {
		return config{}, errors.New("MAX_UPLOAD_BYTES must be > 0")
	}
	if cfg.upstreamTimeout <= 0 {
		return config{}, errors.New("UPSTREAM_TIMEOUT must be > 0")
	}
	if cfg.upstreamRetries < 0 {
		return config{}, errors.New("UPSTREAM_RETRIES must be >= 0")
	}
	if cfg.upstreamRPS < 0 {
		return config{}, errors.New("UPSTREAM_RPS must be >= 0")
	}
	if cfg.concurrencyMax < 0 {
		return config{}, errors.New("CONCURRENCY_MAX must be >= 0")
	}
	return cfg, nil
}

// usesRedis diz se algum backend precisa do cliente Redis.
func (c config) usesRedis() bool {
	return c.rateBackend == "redis" || c.statsBackend == "redis"
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// envErrors junta os valores que não fazem parse; qualquer um derruba o startup.
type envErrors struct{ errs []error }

func (e *envErrors) add(k, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", k, v, err))
}

func (e *envErrors) join() error { return errors.Join(e.errs...) }

func getenvIntDefault(errs *envErrors, k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		errs.add(k, v, err)
		return def
	}
	return i
}

func getenvFloatDefault(errs *envErrors, k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		errs.add(k, v, err)
		return def
	}
	return f
}

func getenvBoolDefault(errs *envErrors, k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		errs.add(k, v, err)
		return def
	}
	return b
}

func getenvDurationDefault(errs *envErrors, k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		errs.add(k, v, err)
		return def
	}
	return d
}
