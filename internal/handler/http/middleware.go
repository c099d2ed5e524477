package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/learnhub/auth-service/internal/auth"
	"github.com/learnhub/auth-service/internal/domain"
	"github.com/learnhub/auth-service/internal/repository"
	"github.com/learnhub/auth-service/pkg/logger"
)

// unauthorizedMessage is the single message returned for every bearer-auth
// failure. Missing header, malformed token, bad signature, expiry, and a
// deleted account are indistinguishable to the caller.
const unauthorizedMessage = "not authorized to access this resource"

type contextKey string

const userContextKey contextKey = "authenticated_user"

// AuthMiddleware validates bearer tokens and attaches the account to the
// request context.
type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	userRepo   repository.UserRepository
	logger     *slog.Logger
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(jwtManager *auth.JWTManager, userRepo repository.UserRepository, log *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{jwtManager: jwtManager, userRepo: userRepo, logger: log}
}

// RequireAuth rejects requests without a valid bearer token for an existing
// account. The token's claims are never trusted for anything beyond the
// account ID; role and verification state are read fresh from storage.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := m.authenticate(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, response{
				Error: &errorResponse{Code: "UNAUTHORIZED", Message: unauthorizedMessage},
			})
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		ctx = logger.WithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth attaches the account to the context when a valid bearer token
// is present, and proceeds anonymously otherwise.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := m.authenticate(r); ok {
			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = logger.WithUserID(ctx, user.ID)
			r = r.WithContext(ctx)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole rejects authenticated requests whose account does not hold one
// of the given roles. Must be mounted inside RequireAuth.
func (m *AuthMiddleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				writeJSON(w, http.StatusUnauthorized, response{
					Error: &errorResponse{Code: "UNAUTHORIZED", Message: unauthorizedMessage},
				})
				return
			}

			if _, ok := allowed[user.Role]; !ok {
				writeJSON(w, http.StatusForbidden, response{
					Error: &errorResponse{Code: "FORBIDDEN", Message: "insufficient permissions"},
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// authenticate extracts and validates the bearer token and loads the account.
func (m *AuthMiddleware) authenticate(r *http.Request) (*domain.User, bool) {
	token := bearerToken(r)
	if token == "" {
		return nil, false
	}

	claims, err := m.jwtManager.ValidateToken(token)
	if err != nil {
		m.logger.DebugContext(r.Context(), "token validation failed",
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	user, err := m.userRepo.GetByID(r.Context(), claims.UserID)
	if err != nil {
		m.logger.DebugContext(r.Context(), "token account lookup failed",
			slog.String("user_id", claims.UserID),
			slog.String("error", err.Error()),
		)
		return nil, false
	}

	return user, true
}

// bearerToken extracts the token from the Authorization header, falling back
// to the session cookie.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}

	return ""
}

// UserFromContext returns the authenticated account attached by RequireAuth,
// or nil.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userContextKey).(*domain.User)
	return user
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if !strings.HasPrefix(ct, "application/json") {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnsupportedMediaType)
				_, _ = w.Write([]byte(`{"success":false,"error":{"code":"UNSUPPORTED_MEDIA_TYPE","message":"Content-Type must be application/json"}}`))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	AllowedOrigins []string
	Environment    string
}

// CORS returns a middleware that sets Cross-Origin Resource Sharing headers.
// In development mode (or when AllowedOrigins contains "*"), a wildcard origin
// is used. Otherwise only the explicitly listed origins are allowed and the
// request Origin header is validated against the list.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	allowWildcard := cfg.Environment == "development"
	originSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			allowWildcard = true
		}
		originSet[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if allowWildcard {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" {
				if _, ok := originSet[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Correlation-ID")
			w.Header().Set("Access-Control-Max-Age", "3600")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
