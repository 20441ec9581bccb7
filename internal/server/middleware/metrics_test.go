package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPMetrics_Middleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/{collection}/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "404" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("{}"))
	})
	handler := metrics.Middleware(mux)

	for _, path := range []string{"/api/v1/widgets/1", "/api/v1/parts/2", "/api/v1/widgets/404", "/nowhere"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(
		metrics.requests.WithLabelValues("GET /api/v1/{collection}/{id}", "GET", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.requests.WithLabelValues("GET /api/v1/{collection}/{id}", "GET", "404")))
	assert.Equal(t, float64(1), testutil.ToFloat64(
		metrics.requests.WithLabelValues("unmatched", "GET", "404")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.duration))
}

func TestNewHTTPMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewHTTPMetrics(reg)
	require.NoError(t, err)

	_, err = NewHTTPMetrics(reg)
	assert.Error(t, err)

	_, err = NewHTTPMetrics(nil)
	assert.NoError(t, err)
}
