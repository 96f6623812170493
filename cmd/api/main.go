package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/app"
	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/health"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/ratelimit"
	"github.com/noah-isme/toko-cart/internal/session"
	"github.com/noah-isme/toko-cart/internal/snapshot"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().
		Str("env", cfg.AppEnv).
		Str("version", version).
		Logger()
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)

	tracing := cfg.Obs.TracingEnabled
	if tracing {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:    "toko-cart-api",
			ServiceVersion: version,
			Exporter:       cfg.Obs.TracingExporter,
			Endpoint:       cfg.Obs.OTLPEndpoint,
			SamplingRatio:  cfg.Obs.SamplingRatio,
			Environment:    cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracing = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	sessions, err := session.NewIssuer(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise session issuer")
	}

	var archive cart.Archiver
	if cfg.SnapshotEnabled {
		redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse asynq redis uri")
		}
		taskClient := asynq.NewClient(redisOpt)
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close task client")
			}
		}()
		archive = snapshot.Enqueuer{Client: taskClient, Queue: cfg.SnapshotQueue, MaxRetry: cfg.SnapshotMaxRetry}
	}

	vouchers, err := app.VoucherRegistry(cfg, pool)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise voucher registry")
	}
	cartSvc, err := app.NewCartService(cfg, redisClient, catalog.Repository{DB: pool}, vouchers, archive, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise cart service")
	}
	promoLimiter, err := ratelimit.New(redisClient, cfg.RateLimitPromo, "cart:promo")
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise promo rate limiter")
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	deps := app.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Redis:        redisClient,
		Sessions:     sessions,
		Cart:         cartSvc,
		Archive:      snapshot.Repository{DB: pool},
		PromoLimiter: promoLimiter,
		Validator:    validator.New(validator.WithRequiredStructEnabled()),
		HTTPMetrics:  httpMetrics,
		Metrics:      cfg.Obs.MetricsEnabled,
		Tracing:      tracing,
		Health: health.Handler{Checks: []health.Check{
			{Name: "db", Timeout: cfg.Obs.ReadyTimeout, Ping: pool.Ping},
			{Name: "redis", Timeout: cfg.Obs.ReadyTimeout, Ping: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}},
		}},
	}
	if cfg.Obs.PprofEnabled {
		profiler := middleware.Profiler()
		if cfg.Obs.PprofUser != "" {
			profiler = middleware.BasicAuth("pprof", map[string]string{cfg.Obs.PprofUser: cfg.Obs.PprofPass})(profiler)
		}
		deps.Mount = func(r chi.Router) { r.Mount("/debug", profiler) }
	}

	var handler http.Handler = app.NewRouter(deps)
	if tracing {
		handler = obs.InstrumentHandler(handler, "toko-cart-api")
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	health.SetReady(true)
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
	}

	// Fail readiness first so the balancer stops routing before connections drain.
	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown")
	}
	logger.Info().Msg("server stopped")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	initCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "toko-cart-api"

	pool, err := pgxpool.NewWithConfig(initCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(initCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *redis.Client {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	client := redis.NewClient(opts)
	if cfg.Obs.TracingEnabled {
		if err := redisotel.InstrumentTracing(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis tracing")
		}
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return client
}
