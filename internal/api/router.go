package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/calcapi/internal/api/handlers"
	"github.com/isdelr/calcapi/internal/auth"
	"github.com/isdelr/calcapi/internal/monitoring"
	"github.com/isdelr/calcapi/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"github.com/unrolled/secure"
)

// RouterConfig holds everything the router needs.
type RouterConfig struct {
	Users          services.UserServiceProvider
	Calculations   services.CalculationServiceProvider
	Tokens         *auth.TokenIssuer
	DB             handlers.Pinger
	CORSOrigins    []string
	AuthRateLimit  string // "20-M" = 20/min per IP; empty disables
	MetricsEnabled bool
	Development    bool
}

// NewRouter creates and configures a new Chi router.
func NewRouter(cfg RouterConfig) (*chi.Mux, error) {
	authLimit, err := newIPRateLimiter(cfg.AuthRateLimit)
	if err != nil {
		return nil, fmt.Errorf("invalid auth rate limit %q: %w", cfg.AuthRateLimit, err)
	}

	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	if cfg.MetricsEnabled {
		r.Use(monitoring.Middleware)
	}
	r.Use(secure.New(secure.Options{
		IsDevelopment:         cfg.Development,
		ContentTypeNosniff:    true,
		FrameDeny:             true,
		BrowserXssFilter:      true,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}).Handler)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(cfg.Users)
	calcHandler := handlers.NewCalculationHandler(cfg.Calculations)

	r.Method(http.MethodGet, "/health", handlers.NewHealthHandler(cfg.DB))
	if cfg.MetricsEnabled {
		r.Handle("/metrics", monitoring.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(authLimit)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	r.Route("/calculations", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Tokens, cfg.Users))
		r.Get("/", calcHandler.List)
		r.Post("/", calcHandler.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", calcHandler.Get)
			r.Put("/", calcHandler.Update)
			r.Delete("/", calcHandler.Delete)
		})
	})

	return r, nil
}

// newIPRateLimiter returns middleware that limits by client IP (in-memory store).
func newIPRateLimiter(rateFormatted string) (func(next http.Handler) http.Handler, error) {
	if rateFormatted == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	rate, err := limiter.NewRateFromFormatted(rateFormatted)
	if err != nil {
		return nil, err
	}
	instance := limiter.New(memory.NewStore(), rate)
	return stdlib.NewMiddleware(instance, stdlib.WithLimitReachedHandler(handlers.RateLimited)).Handler, nil
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}
