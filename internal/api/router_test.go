package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kiranshivaraju/ednaflow/internal/api"
	mw "github.com/kiranshivaraju/ednaflow/internal/api/middleware"
	"github.com/kiranshivaraju/ednaflow/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

// --- stub cache ---

type stubCache struct {
	count int64
}

func (c *stubCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error { return nil }
func (c *stubCache) Get(_ context.Context, _ string) ([]byte, bool, error)            { return nil, false, nil }
func (c *stubCache) Delete(_ context.Context, _ ...string) error                      { return nil }
func (c *stubCache) Ping(_ context.Context) error                                     { return nil }
func (c *stubCache) Incr(_ context.Context, _ string) (int64, error)                  { return 0, nil }
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	c.count++
	return c.count, nil
}

// --- router tests ---

func okJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ok":true}`))
}

func newTestRouter(secret string, c cache.Cache) http.Handler {
	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(secret),
		RateLimit: mw.NewRateLimit(c, 60),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
		SignUpHandler:       okJSON,
		LoginHandler:        okJSON,
		LogoutHandler:       okJSON,
		CreateUploadHandler: okJSON,
		ListUploadsHandler:  okJSON,
		GetUploadHandler:    okJSON,
		DeleteUploadHandler: okJSON,
	})
}

func bearer(t *testing.T, sub string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sub,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter(testSecret, &stubCache{})

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter("", &stubCache{})

	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/auth/signup"},
		{"POST", "/auth/login"},
		{"POST", "/auth/logout"},
		{"POST", "/uploads"},
		{"GET", "/uploads"},
		{"GET", "/uploads/6a4c1e0e-5b7f-4f3a-9d2b-0c8e1f2a3b4c"},
		{"DELETE", "/uploads/6a4c1e0e-5b7f-4f3a-9d2b-0c8e1f2a3b4c"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "60", w.Header().Get("X-RateLimit-Limit"))
		})
	}
}

func TestRouter_UploadsRequireTokenWhenSecretSet(t *testing.T) {
	router := newTestRouter(testSecret, &stubCache{})

	for _, ep := range []struct{ method, path string }{
		{"POST", "/uploads"},
		{"GET", "/uploads"},
		{"GET", "/uploads/6a4c1e0e-5b7f-4f3a-9d2b-0c8e1f2a3b4c"},
		{"DELETE", "/uploads/6a4c1e0e-5b7f-4f3a-9d2b-0c8e1f2a3b4c"},
	} {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}

	req := httptest.NewRequest("GET", "/uploads", nil)
	req.Header.Set("Authorization", bearer(t, "user-1"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_AuthRoutesStayPublic(t *testing.T) {
	router := newTestRouter(testSecret, &stubCache{})

	req := httptest.NewRequest("POST", "/auth/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RateLimited(t *testing.T) {
	router := newTestRouter("", &stubCache{count: 60})

	req := httptest.NewRequest("GET", "/uploads", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestRouter_Preflight(t *testing.T) {
	router := newTestRouter(testSecret, &stubCache{})

	req := httptest.NewRequest("OPTIONS", "/uploads", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_NotImplemented(t *testing.T) {
	router := api.NewRouter(api.Dependencies{})

	req := httptest.NewRequest("POST", "/auth/signup", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter("", &stubCache{})

	req := httptest.NewRequest("GET", "/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}

var _ cache.Cache = (*stubCache)(nil)
