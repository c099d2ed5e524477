package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/learnhub/auth-service/internal/auth"
	"github.com/learnhub/auth-service/internal/domain"
	"github.com/learnhub/auth-service/internal/repository"
	"github.com/learnhub/auth-service/internal/service"
	"github.com/learnhub/auth-service/pkg/health"
	"github.com/learnhub/auth-service/pkg/middleware"
)

// RouterConfig holds the dependencies and settings for the HTTP router.
type RouterConfig struct {
	AuthService    *service.AuthService
	UserRepo       repository.UserRepository
	JWTManager     *auth.JWTManager
	HealthHandler  *health.Handler
	Logger         *slog.Logger
	CORS           CORSConfig
	CookieTTL      time.Duration
	SecureCookies  bool
	RateLimitRPS   int
	RateLimitBurst int
}

// NewRouter creates a chi router with all auth service routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(CORS(cfg.CORS))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("auth"))

	// Health check endpoints
	r.Get("/health/live", cfg.HealthHandler.LivenessHandler())
	r.Get("/health/ready", cfg.HealthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	authHandler := NewAuthHandler(cfg.AuthService, cfg.Logger, cfg.CookieTTL, cfg.SecureCookies)
	authMw := NewAuthMiddleware(cfg.JWTManager, cfg.UserRepo, cfg.Logger)

	r.Route("/api/v1/auth", func(r chi.Router) {
		// Public endpoints, rate limited per client IP.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.Logger))

			r.Group(func(r chi.Router) {
				r.Use(ContentTypeJSON)

				r.Post("/register", authHandler.Register)
				r.Post("/login", authHandler.Login)
				r.With(authMw.OptionalAuth).Post("/logout", authHandler.Logout)
				r.Post("/forgot-password", authHandler.ForgotPassword)
				r.Put("/reset-password/{token}", authHandler.ResetPassword)
				r.Post("/resend-verification", authHandler.ResendVerification)
			})

			r.Get("/verify-email/{token}", authHandler.VerifyEmail)
		})

		// Authenticated endpoints.
		r.Group(func(r chi.Router) {
			r.Use(authMw.RequireAuth)

			r.Get("/me", authHandler.Me)

			r.Group(func(r chi.Router) {
				r.Use(ContentTypeJSON)
				r.Put("/update-password", authHandler.UpdatePassword)
			})
		})
	})

	// Admin endpoints.
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(authMw.RequireAuth)
		r.Use(authMw.RequireRole(domain.RoleAdmin))

		r.Delete("/accounts/{id}", authHandler.DeleteAccount)
	})

	return r
}
