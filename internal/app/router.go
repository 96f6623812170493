package app

import (
	"net/http"

	validator "github.com/go-playground/validator/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/common"
	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/health"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/ratelimit"
	"github.com/noah-isme/toko-cart/internal/security"
	"github.com/noah-isme/toko-cart/internal/session"
	"github.com/noah-isme/toko-cart/internal/snapshot"
)

// Dependencies enumerates the collaborators the HTTP surface is built from.
type Dependencies struct {
	Config       *config.Config
	Logger       zerolog.Logger
	Redis        *redis.Client
	Sessions     *session.Issuer
	Cart         *cart.Service
	Archive      snapshot.Store
	PromoLimiter *limiter.Limiter
	Validator    *validator.Validate
	HTTPMetrics  *obs.HTTPMetrics
	Metrics      bool
	Tracing      bool
	Health       health.Handler
	// Mount registers extra top-level routes such as pprof.
	Mount func(chi.Router)
}

// NewRouter builds the API router.
func NewRouter(d Dependencies) http.Handler {
	cfg := d.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	validate := d.Validator
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}
	sessions := session.Middleware{Issuer: d.Sessions, Cookie: cfg.SessionCookieName}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(sessions.Resolve)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token", session.HeaderName, common.IdempotencyHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{HSTS: cfg.CookieSecure, NoStore: true}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if d.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)
	if d.Mount != nil {
		d.Mount(r)
	}

	logger := d.Logger
	promo := ratelimit.Handler{
		Limiter: d.PromoLimiter,
		Key:     ratelimit.SessionOrIP("promo"),
		OnError: func(err error) {
			logger.Warn().Err(err).Msg("promo rate limit store unavailable")
		},
	}
	cartHandler := &cart.Handler{
		Svc:        d.Cart,
		Sessions:   d.Sessions,
		Validate:   validate,
		CookieName: cfg.SessionCookieName,
		SecureHTTP: cfg.CookieSecure,
	}
	archiveHandler := &snapshot.Handler{Store: d.Archive}
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}

	r.Route("/api/v1", func(v chi.Router) {
		if cfg.CSRFEnabled {
			v.Use(security.CSRF{SessionHeader: session.HeaderName, Secure: cfg.CookieSecure}.Middleware)
		}
		v.Use(idem.Middleware)
		cartHandler.Register(v, sessions.Require, promo.Middleware)
		v.With(sessions.Require).Get("/cart/archive", archiveHandler.Latest)
	})
	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}
