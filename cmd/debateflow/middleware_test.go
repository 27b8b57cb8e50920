package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/debateflow/config"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders()(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
}

func TestSecurityHeaders_ChainedWithOtherMiddleware(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	handler := Chain(inner, SecurityHeaders(), RequestID())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	// SecurityHeaders should be present
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "default-src 'self'", w.Header().Get("Content-Security-Policy"))
	// RequestID should also be present
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestChain_AppliesInOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Chain(okHandler(), mark("outer"), mark("middle"), mark("inner"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "middle", "inner"}, order)
}

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var fromCtx string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	handler := RequestID()(inner)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	id := w.Header().Get("X-Request-ID")
	require.NotEmpty(t, id)
	assert.True(t, len(id) > len("req-"))
	assert.Contains(t, id, "req-")
	assert.Equal(t, id, fromCtx)
}

func TestRequestID_PreservesClientProvided(t *testing.T) {
	handler := RequestID()(okHandler())

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "client-supplied-42")
	handler.ServeHTTP(w, r)

	assert.Equal(t, "client-supplied-42", w.Header().Get("X-Request-ID"))
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	handler := Recovery(zap.NewNop())(panicky)

	w := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAPIKeyAuth(t *testing.T) {
	keys := []string{"key-one", "key-two"}
	skip := []string{"/health"}
	handler := APIKeyAuth(keys, skip, zap.NewNop())(okHandler())

	tests := []struct {
		name       string
		path       string
		header     string
		query      string
		wantStatus int
	}{
		{name: "valid header key", path: "/v1/debates", header: "key-one", wantStatus: http.StatusOK},
		{name: "valid query key", path: "/v1/events", query: "key-two", wantStatus: http.StatusOK},
		{name: "wrong key", path: "/v1/debates", header: "nope", wantStatus: http.StatusUnauthorized},
		{name: "missing key", path: "/v1/debates", wantStatus: http.StatusUnauthorized},
		{name: "skip path needs no key", path: "/health", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := tt.path
			if tt.query != "" {
				target += "?api_key=" + tt.query
			}
			r := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				r.Header.Set("X-API-Key", tt.header)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "AUTHENTICATION")
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func signToken(t *testing.T, secret, issuer string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "tester",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTAuth(t *testing.T) {
	cfg := config.JWTConfig{
		Enabled: true,
		Secret:  "test-secret",
		Issuer:  "debateflow",
	}
	handler := JWTAuth(cfg, []string{"/health"}, zap.NewNop())(okHandler())

	tests := []struct {
		name       string
		path       string
		authHeader string
		wantStatus int
	}{
		{
			name:       "valid token",
			path:       "/v1/debates",
			authHeader: "Bearer " + signToken(t, "test-secret", "debateflow"),
			wantStatus: http.StatusOK,
		},
		{
			name:       "wrong secret",
			path:       "/v1/debates",
			authHeader: "Bearer " + signToken(t, "other-secret", "debateflow"),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong issuer",
			path:       "/v1/debates",
			authHeader: "Bearer " + signToken(t, "test-secret", "someone-else"),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing header",
			path:       "/v1/debates",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed header",
			path:       "/v1/debates",
			authHeader: "Basic dXNlcjpwYXNz",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "skip path needs no token",
			path:       "/health",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authHeader != "" {
				r.Header.Set("Authorization", tt.authHeader)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), "AUTHENTICATION")
			}
		})
	}
}

func TestJWTAuth_RejectsExpiredToken(t *testing.T) {
	cfg := config.JWTConfig{Enabled: true, Secret: "test-secret"}
	handler := JWTAuth(cfg, nil, zap.NewNop())(okHandler())

	claims := jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/v1/debates", nil)
	r.Header.Set("Authorization", "Bearer "+signed)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// burst 1:同一 IP 第二个立即到达的请求必须被拒
	handler := RateLimiter(ctx, 1, 1, zap.NewNop())(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/v1/debates", nil)
	first.RemoteAddr = "203.0.113.7:1234"
	w1 := httptest.NewRecorder()
	handler.ServeHTTP(w1, first)
	assert.Equal(t, http.StatusOK, w1.Code)

	second := httptest.NewRequest(http.MethodGet, "/v1/debates", nil)
	second.RemoteAddr = "203.0.113.7:1234"
	w2 := httptest.NewRecorder()
	handler.ServeHTTP(w2, second)
	assert.Equal(t, http.StatusTooManyRequests, w2.Code)
	assert.Contains(t, w2.Body.String(), "RATE_LIMIT")

	// 不同 IP 不受影响
	other := httptest.NewRequest(http.MethodGet, "/v1/debates", nil)
	other.RemoteAddr = "203.0.113.8:1234"
	w3 := httptest.NewRecorder()
	handler.ServeHTTP(w3, other)
	assert.Equal(t, http.StatusOK, w3.Code)
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		allowed     []string
		origin      string
		method      string
		wantStatus  int
		wantAllowed string
	}{
		{
			name:        "allowed origin gets headers",
			allowed:     []string{"https://app.example.com"},
			origin:      "https://app.example.com",
			method:      http.MethodGet,
			wantStatus:  http.StatusOK,
			wantAllowed: "https://app.example.com",
		},
		{
			name:       "unknown origin gets no headers",
			allowed:    []string{"https://app.example.com"},
			origin:     "https://evil.example.com",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
		{
			name:        "preflight for allowed origin",
			allowed:     []string{"https://app.example.com"},
			origin:      "https://app.example.com",
			method:      http.MethodOptions,
			wantStatus:  http.StatusNoContent,
			wantAllowed: "https://app.example.com",
		},
		{
			name:       "unconfigured rejects cross-origin preflight",
			allowed:    nil,
			origin:     "https://app.example.com",
			method:     http.MethodOptions,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "same-origin request passes when unconfigured",
			allowed:    nil,
			origin:     "",
			method:     http.MethodGet,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CORS(tt.allowed)(okHandler())

			r := httptest.NewRequest(tt.method, "/v1/debates", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllowed, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{path: "/v1/debates", want: "/v1/debates"},
		{path: "/v1/debates/history", want: "/v1/debates/history"},
		// 名册里的智能体名不是十六进制形状,保持原样
		{path: "/v1/agents/claude", want: "/v1/agents/claude"},
		{path: "/v1/sessions/550e8400-e29b-41d4-a716-446655440000", want: "/v1/sessions/:id"},
		{path: "/v1/sessions/deadbeef01", want: "/v1/sessions/:id"},
		{path: "/v1/items/12345", want: "/v1/items/:id"},
		{path: "/unknown/route", want: "/unknown/route"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}

func TestNoWriteTimeout_PassesThrough(t *testing.T) {
	called := false
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	// httptest.ResponseRecorder 不支持写超时控制,中间件应当忽略并继续
	handler := noWriteTimeout(inner)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/events", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
}
