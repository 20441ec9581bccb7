package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophcache/pkg/api"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name        string
		storage     Pinger
		wantCode    int
		wantStatus  string
		wantStorage string
	}{
		{
			name:       "no storage",
			wantCode:   http.StatusOK,
			wantStatus: "ok",
		},
		{
			name:        "storage available",
			storage:     setupTestStorage(t),
			wantCode:    http.StatusOK,
			wantStatus:  "ok",
			wantStorage: "ok",
		},
		{
			name: "storage unavailable",
			storage: pingerFunc(func(context.Context) error {
				return errors.New("database is closed")
			}),
			wantCode:    http.StatusServiceUnavailable,
			wantStatus:  "degraded",
			wantStorage: "unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(setupTestLogger(), "dev", tt.storage)

			req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
			w := httptest.NewRecorder()

			handler.Health(w, req)

			resp := w.Result()
			defer func() {
				err := resp.Body.Close()
				assert.NoError(t, err)
			}()

			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

			var healthResp api.HealthResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&healthResp))

			assert.Equal(t, tt.wantStatus, healthResp.Status)
			assert.Equal(t, tt.wantStorage, healthResp.Storage)
			assert.Equal(t, "dev", healthResp.Version)
		})
	}
}
