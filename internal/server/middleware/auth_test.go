package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophcache/internal/server/handlers"
	"github.com/iudanet/gophcache/pkg/api"
)

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler)
}

var testJWTConfig = handlers.JWTConfig{
	Secret:         []byte("test-secret-key"),
	AccessTokenTTL: 15 * time.Minute,
}

func TestAuthMiddleware_Success(t *testing.T) {
	token, _, err := handlers.GenerateAccessToken(testJWTConfig, "svc-frontend")
	require.NoError(t, err)

	handler := AuthMiddleware(setupTestLogger(), testJWTConfig)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, ok := handlers.GetSubject(r.Context())
		require.True(t, ok, "subject should be in context")
		assert.Equal(t, "svc-frontend", subject)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil)
	req.Header.Set("Authorization", "bearer "+token)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestAuthMiddleware_Rejects(t *testing.T) {
	expired, _, err := handlers.GenerateAccessToken(handlers.JWTConfig{
		Secret:         testJWTConfig.Secret,
		AccessTokenTTL: -time.Minute,
	}, "svc")
	require.NoError(t, err)

	foreign, _, err := handlers.GenerateAccessToken(handlers.JWTConfig{
		Secret:         []byte("another-secret"),
		AccessTokenTTL: time.Minute,
	}, "svc")
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{name: "missing header", message: "missing token"},
		{name: "no Bearer prefix", header: "token123", message: "invalid token format"},
		{name: "wrong scheme", header: "Basic token123", message: "invalid token format"},
		{name: "only Bearer", header: "Bearer", message: "invalid token format"},
		{name: "empty token", header: "Bearer ", message: "invalid token format"},
		{name: "malformed token", header: "Bearer invalid.token.here", message: "invalid token"},
		{name: "expired token", header: "Bearer " + expired, message: "invalid token"},
		{name: "wrong secret", header: "Bearer " + foreign, message: "invalid token"},
	}

	handler := AuthMiddleware(setupTestLogger(), testJWTConfig)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("Handler should not be called")
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/widgets", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "Unauthorized", resp.Error)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
}
