package http

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/auth-service/internal/auth"
	"github.com/learnhub/auth-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- ContentTypeJSON ---

func TestContentTypeJSON_ValidJSON_Passes(t *testing.T) {
	called := false
	handler := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/test", strings.NewReader(`{"key":"value"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, called)
}

func TestContentTypeJSON_JSONWithCharset_Passes(t *testing.T) {
	handler := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/test", strings.NewReader(`{"key":"value"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestContentTypeJSON_WrongContentType_Returns415(t *testing.T) {
	handler := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/test", strings.NewReader(`key=value`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rr.Code)
	assert.Contains(t, rr.Body.String(), "UNSUPPORTED_MEDIA_TYPE")
}

func TestContentTypeJSON_GetWithoutBody_Passes(t *testing.T) {
	called := false
	handler := ContentTypeJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, called)
}

// --- CORS ---

func TestCORS_DevelopmentAllowsWildcard(t *testing.T) {
	handler := CORS(CORSConfig{Environment: "development"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Origin", "http://anywhere.example")
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_ProductionValidatesOrigin(t *testing.T) {
	mw := CORS(CORSConfig{
		Environment:    "production",
		AllowedOrigins: []string{"https://app.learnhub.dev"},
	})
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Origin", "https://app.learnhub.dev")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "https://app.learnhub.dev", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Origin", "https://evil.example")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	called := false
	handler := CORS(CORSConfig{Environment: "development"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/test", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.False(t, called)
}

// --- RequireAuth / RequireRole ---

func TestRequireAuth_ValidTokenAttachesUser(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret-key-for-testing", time.Hour)
	userRepo := newFakeUserRepo()
	mw := NewAuthMiddleware(jwtManager, userRepo, discardLogger())

	stored := &domain.User{ID: "u-1", Email: "a@b.com", Role: domain.RoleStudent}
	require.NoError(t, userRepo.Create(t.Context(), stored))

	token, err := jwtManager.GenerateToken("u-1")
	require.NoError(t, err)

	var got *domain.User
	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, "u-1", got.ID)
}

func TestRequireAuth_CookieFallback(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret-key-for-testing", time.Hour)
	userRepo := newFakeUserRepo()
	mw := NewAuthMiddleware(jwtManager, userRepo, discardLogger())

	require.NoError(t, userRepo.Create(t.Context(), &domain.User{ID: "u-1", Email: "a@b.com"}))
	token, err := jwtManager.GenerateToken("u-1")
	require.NoError(t, err)

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token})
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret-key-for-testing", time.Hour)
	mw := NewAuthMiddleware(jwtManager, newFakeUserRepo(), discardLogger())

	handler := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), unauthorizedMessage)
}

func TestOptionalAuth_ValidTokenAttachesUser(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret-key-for-testing", time.Hour)
	userRepo := newFakeUserRepo()
	mw := NewAuthMiddleware(jwtManager, userRepo, discardLogger())

	require.NoError(t, userRepo.Create(t.Context(), &domain.User{ID: "u-1", Email: "a@b.com"}))
	token, err := jwtManager.GenerateToken("u-1")
	require.NoError(t, err)

	var got *domain.User
	handler := mw.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, "u-1", got.ID)
}

func TestOptionalAuth_MissingTokenProceedsAnonymous(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret-key-for-testing", time.Hour)
	mw := NewAuthMiddleware(jwtManager, newFakeUserRepo(), discardLogger())

	var got *domain.User
	handler := mw.OptionalAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Nil(t, got)
}

func TestRequireRole_Forbidden(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret-key-for-testing", time.Hour)
	userRepo := newFakeUserRepo()
	mw := NewAuthMiddleware(jwtManager, userRepo, discardLogger())

	require.NoError(t, userRepo.Create(t.Context(), &domain.User{ID: "u-1", Email: "a@b.com", Role: domain.RoleStudent}))
	token, err := jwtManager.GenerateToken("u-1")
	require.NoError(t, err)

	handler := mw.RequireAuth(mw.RequireRole(domain.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}
