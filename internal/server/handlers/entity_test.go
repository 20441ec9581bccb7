package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophcache/internal/models"
	"github.com/iudanet/gophcache/internal/server/storage"
	"github.com/iudanet/gophcache/pkg/api"
)

func newTestMux(t *testing.T, s storage.EntityStorage, wrap func(http.Handler) http.Handler) *http.ServeMux {
	t.Helper()
	if s == nil {
		s = setupTestStorage(t)
	}
	mux := http.NewServeMux()
	h := NewEntityHandler(setupTestLogger(), s, WithIDGenerator(func() string { return "generated" }))
	h.Register(mux, "/api/v1", wrap)
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeEntity(t *testing.T, w *httptest.ResponseRecorder) models.Entity {
	t.Helper()
	var e models.Entity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	return e
}

func TestEntityHandler_Lifecycle(t *testing.T) {
	mux := newTestMux(t, nil, nil)

	w := do(t, mux, http.MethodPost, "/api/v1/widgets", `{"id": 7, "name": "gear"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(7), decodeEntity(t, w)["id"])

	w = do(t, mux, http.MethodGet, "/api/v1/widgets/7", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gear", decodeEntity(t, w)["name"])

	w = do(t, mux, http.MethodPatch, "/api/v1/widgets/7", `{"name": "cog", "size": 3}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.Entity{"id": float64(7), "name": "cog", "size": float64(3)}, decodeEntity(t, w))

	w = do(t, mux, http.MethodGet, "/api/v1/widgets", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Entity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "cog", list[0]["name"])

	w = do(t, mux, http.MethodDelete, "/api/v1/widgets/7", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, mux, http.MethodGet, "/api/v1/widgets/7", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEntityHandler_CreateWithoutID(t *testing.T) {
	mux := newTestMux(t, nil, nil)

	w := do(t, mux, http.MethodPost, "/api/v1/widgets", `{"name": "gear"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "generated", decodeEntity(t, w)["id"])
}

func TestEntityHandler_EmptyList(t *testing.T) {
	mux := newTestMux(t, nil, nil)

	w := do(t, mux, http.MethodGet, "/api/v1/widgets", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestEntityHandler_DeleteMany(t *testing.T) {
	mux := newTestMux(t, nil, nil)
	for _, body := range []string{`{"id": 1}`, `{"id": 2}`, `{"id": 3}`} {
		require.Equal(t, http.StatusCreated, do(t, mux, http.MethodPost, "/api/v1/widgets", body).Code)
	}

	w := do(t, mux, http.MethodPatch, "/api/v1/widgets/delete", `[{"id": 1, "name": "x"}, 3, "404"]`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp api.DeleteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Deleted)

	w = do(t, mux, http.MethodGet, "/api/v1/widgets", "")
	var list []models.Entity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, float64(2), list[0]["id"])
}

type failingStorage struct {
	storage.EntityStorage
}

func (failingStorage) List(context.Context, string) ([]models.Entity, error) {
	return nil, errors.New("disk on fire")
}

func TestEntityHandler_Errors(t *testing.T) {
	mux := newTestMux(t, nil, nil)
	require.Equal(t, http.StatusCreated, do(t, mux, http.MethodPost, "/api/v1/widgets", `{"id": "a"}`).Code)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "duplicate id", method: http.MethodPost, path: "/api/v1/widgets", body: `{"id": "a"}`, want: http.StatusConflict},
		{name: "invalid json", method: http.MethodPost, path: "/api/v1/widgets", body: `{`, want: http.StatusBadRequest},
		{name: "array on create", method: http.MethodPost, path: "/api/v1/widgets", body: `[1]`, want: http.StatusBadRequest},
		{name: "invalid collection", method: http.MethodGet, path: "/api/v1/Widgets", want: http.StatusBadRequest},
		{name: "id too long", method: http.MethodGet, path: "/api/v1/widgets/" + strings.Repeat("x", 129), want: http.StatusBadRequest},
		{name: "update missing", method: http.MethodPatch, path: "/api/v1/widgets/b", body: `{"name": "x"}`, want: http.StatusNotFound},
		{name: "delete missing", method: http.MethodDelete, path: "/api/v1/widgets/b", want: http.StatusNotFound},
		{name: "bulk delete object", method: http.MethodPatch, path: "/api/v1/widgets/delete", body: `{"id": "a"}`, want: http.StatusBadRequest},
		{name: "bulk delete empty id", method: http.MethodPatch, path: "/api/v1/widgets/delete", body: `[{"name": "x"}]`, want: http.StatusBadRequest},
		{name: "body too large", method: http.MethodPost, path: "/api/v1/widgets", body: `{"blob": "` + strings.Repeat("x", MaxBodySize) + `"}`, want: http.StatusRequestEntityTooLarge},
		{name: "method not allowed", method: http.MethodPut, path: "/api/v1/widgets/a", body: `{}`, want: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, mux, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestEntityHandler_StorageFailure(t *testing.T) {
	mux := newTestMux(t, failingStorage{}, nil)

	w := do(t, mux, http.MethodGet, "/api/v1/widgets", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Internal Server Error", resp.Error)
	assert.Equal(t, "internal server error", resp.Message)
	assert.NotContains(t, w.Body.String(), "disk on fire")
}

func TestEntityHandler_Wrap(t *testing.T) {
	var patterns []string
	wrap := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			patterns = append(patterns, r.Pattern)
			next.ServeHTTP(w, r)
		})
	}
	mux := newTestMux(t, nil, wrap)

	do(t, mux, http.MethodGet, "/api/v1/widgets", "")
	do(t, mux, http.MethodPatch, "/api/v1/widgets/delete", `[]`)
	do(t, mux, http.MethodGet, "/api/v1/widgets/1", "")

	assert.Equal(t, []string{
		"GET /api/v1/{collection}",
		"PATCH /api/v1/{collection}/delete",
		"GET /api/v1/{collection}/{id}",
	}, patterns)
}
