package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tryon-gateway/middleware/ratelimit"
	rlapp "tryon-gateway/middleware/ratelimit/application"
	"tryon-gateway/middleware/ratelimit/domain"
	"tryon-gateway/middleware/ratelimit/infra"
	"tryon-gateway/vton"
	"tryon-gateway/vton/application"
	vtoninfra "tryon-gateway/vton/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := loadDotEnv(".env"); err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config error")
	}
	cfg, err := readConfig()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config error")
	}
	logger := newLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var rdb *redis.Client
	if cfg.usesRedis() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.rateRedisAddr,
			Password: cfg.rateRedisPassword,
			DB:       cfg.rateRedisDB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancelPing := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancelPing()
		if err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.rateRedisAddr).Msg("redis ping error")
		}
	}

	policy := domain.Policy{Limit: cfg.rateLimit, Window: cfg.rateWindow}

	var window domain.WindowStore
	switch cfg.rateBackend {
	case "redis":
		window, err = infra.NewRedisWindowStore(rdb, policy, infra.WithWindowPrefix(cfg.ratePrefix))
		if err != nil {
			logger.Fatal().Err(err).Msg("rate limiter error")
		}
	default:
		mem := infra.NewMemoryWindowStore(policy)
		mem.StartJanitor(ctx)
		window = mem
	}

	var (
		stats    domain.StatsStore
		memStats *infra.MemoryStatsStore
	)
	switch cfg.statsBackend {
	case "memory":
		memStats = infra.NewMemoryStatsStore(infra.WithTrackKeys(cfg.statsTrackKeys))
		stats = memStats
	case "redis":
		stats = infra.NewRedisStatsStore(
			rdb,
			infra.WithStatsPrefix(cfg.statsPrefix),
			infra.WithStatsTTL(cfg.statsTTL),
			infra.WithStatsBucket(cfg.statsBucket),
			infra.WithStatsTrackKeys(cfg.statsTrackKeys),
		)
	}

	provider, err := vtoninfra.NewPixelcutClient(vtoninfra.PixelcutConfig{
		Endpoint:   cfg.apiEndpoint,
		APIKey:     cfg.apiKey,
		Timeout:    cfg.upstreamTimeout,
		Retries:    cfg.upstreamRetries,
		Backoff:    cfg.upstreamBackoff,
		MaxBackoff: cfg.upstreamMaxBackoff,
		RPS:        cfg.upstreamRPS,
		Burst:      cfg.upstreamBurst,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("provider client error")
	}

	svc := &application.Service{
		Validator: application.Validator{
			MaxDimension: cfg.maxImageDimension,
			MaxBytes:     cfg.maxUploadBytes,
		},
		Admission: rlapp.Service{Store: window, Policy: policy, Logger: logger},
		Provider:  provider,
		Logger:    logger,
	}

	h := vton.NewRouter(vton.RouterOptions{
		TryOn: &vton.Handler{
			Service:         svc,
			KeyFunc:         ratelimit.DefaultKeyFunc(cfg.rateKeyHeader, cfg.trustXFF),
			Stats:           stats,
			AddLimitHeaders: cfg.addHeaders,
			MaxUploadBytes:  cfg.maxUploadBytes,
			Logger:          logger,
		},
		Stats: memStats,
		Concurrency: ratelimit.ConcurrencyOptions{
			Max:            cfg.concurrencyMax,
			AcquireTimeout: cfg.concurrencyTimeout,
		},
		CORSOrigins: cfg.corsOrigins,
		Logger:      logger,
	})

	// o provedor pode levar até UPSTREAM_TIMEOUT por tentativa, então a escrita
	// precisa cobrir todas as tentativas e o download do resultado
	attempts := time.Duration(cfg.upstreamRetries+1) * 2
	srv := &http.Server{
		Addr:              cfg.listenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      attempts*cfg.upstreamTimeout + 30*time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Str("addr", cfg.listenAddr).
		Str("provider", provider.Endpoint()).
		Msg("try-on gateway listening")
	logger.Info().
		Int("limit", cfg.rateLimit).
		Dur("window", cfg.rateWindow).
		Str("backend", cfg.rateBackend).
		Str("key_header", cfg.rateKeyHeader).
		Bool("trust_xff", cfg.trustXFF).
		Msg("rate limit")
	logger.Info().
		Dur("timeout", cfg.upstreamTimeout).
		Int("retries", cfg.upstreamRetries).
		Float64("rps", cfg.upstreamRPS).
		Msg("upstream")
	logger.Info().
		Str("backend", cfg.statsBackend).
		Int("concurrency_max", cfg.concurrencyMax).
		Dur("concurrency_timeout", cfg.concurrencyTimeout).
		Msg("stats and concurrency")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func newLogger(cfg config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.logLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.logFormat == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
