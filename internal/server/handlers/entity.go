package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/iudanet/gophcache/internal/models"
	"github.com/iudanet/gophcache/internal/server/storage"
	"github.com/iudanet/gophcache/internal/validation"
	"github.com/iudanet/gophcache/pkg/api"
)

// MaxBodySize ограничивает размер тела запроса
const MaxBodySize = 1 << 20

// EntityHandler обрабатывает REST запросы к коллекциям
type EntityHandler struct {
	logger  *slog.Logger
	storage storage.EntityStorage
	newID   func() string
}

// EntityOption настраивает EntityHandler
type EntityOption func(*EntityHandler)

// WithIDGenerator replaces uuid.NewString for entities posted without an id
func WithIDGenerator(fn func() string) EntityOption {
	return func(h *EntityHandler) {
		h.newID = fn
	}
}

// NewEntityHandler создает новый handler для коллекций
func NewEntityHandler(logger *slog.Logger, s storage.EntityStorage, opts ...EntityOption) *EntityHandler {
	h := &EntityHandler{
		logger:  logger,
		storage: s,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the collection routes under prefix. wrap is applied to
// every route and may be nil.
func (h *EntityHandler) Register(mux *http.ServeMux, prefix string, wrap func(http.Handler) http.Handler) {
	if wrap == nil {
		wrap = func(next http.Handler) http.Handler { return next }
	}

	routes := []struct {
		pattern string
		fn      http.HandlerFunc
	}{
		{"GET " + prefix + "/{collection}", h.List},
		{"POST " + prefix + "/{collection}", h.Create},
		{"PATCH " + prefix + "/{collection}/delete", h.DeleteMany},
		{"GET " + prefix + "/{collection}/{id}", h.Get},
		{"PATCH " + prefix + "/{collection}/{id}", h.Update},
		{"DELETE " + prefix + "/{collection}/{id}", h.Delete},
	}
	for _, r := range routes {
		mux.Handle(r.pattern, wrap(r.fn))
	}
}

// List обрабатывает GET /api/v1/{collection}
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}

	entities, err := h.storage.List(r.Context(), collection)
	if err != nil {
		h.fail(w, "failed to list entities", err, slog.String("collection", collection))
		return
	}

	sendJSON(h.logger, w, entities, http.StatusOK)
}

// Get обрабатывает GET /api/v1/{collection}/{id}
func (h *EntityHandler) Get(w http.ResponseWriter, r *http.Request) {
	collection, id, ok := h.target(w, r)
	if !ok {
		return
	}

	entity, err := h.storage.Get(r.Context(), collection, id)
	if err != nil {
		h.fail(w, "failed to get entity", err, slog.String("collection", collection), slog.String("id", id))
		return
	}

	sendJSON(h.logger, w, entity, http.StatusOK)
}

// Create обрабатывает POST /api/v1/{collection}
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}

	var entity models.Entity
	if !h.decode(w, r, &entity) {
		return
	}
	if entity == nil {
		entity = models.Entity{}
	}

	if entity.ID() == "" {
		entity[models.IDField] = h.newID()
	}
	if err := validation.ValidateID(entity.ID()); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	created, err := h.storage.Create(r.Context(), collection, entity)
	if err != nil {
		h.fail(w, "failed to create entity", err, slog.String("collection", collection))
		return
	}

	h.logger.Info("entity created",
		slog.String("collection", collection),
		slog.String("id", created.ID()))

	sendJSON(h.logger, w, created, http.StatusCreated)
}

// Update обрабатывает PATCH /api/v1/{collection}/{id}
func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	collection, id, ok := h.target(w, r)
	if !ok {
		return
	}

	var changes models.Entity
	if !h.decode(w, r, &changes) {
		return
	}

	updated, err := h.storage.Update(r.Context(), collection, id, changes)
	if err != nil {
		h.fail(w, "failed to update entity", err, slog.String("collection", collection), slog.String("id", id))
		return
	}

	sendJSON(h.logger, w, updated, http.StatusOK)
}

// Delete обрабатывает DELETE /api/v1/{collection}/{id}
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	collection, id, ok := h.target(w, r)
	if !ok {
		return
	}

	if err := h.storage.Delete(r.Context(), collection, id); err != nil {
		h.fail(w, "failed to delete entity", err, slog.String("collection", collection), slog.String("id", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteMany обрабатывает PATCH /api/v1/{collection}/delete.
// Тело: массив сущностей или массив id.
func (h *EntityHandler) DeleteMany(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}

	var body []any
	if !h.decode(w, r, &body) {
		return
	}

	ids, err := collectIDs(body)
	if err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := h.storage.DeleteMany(r.Context(), collection, ids)
	if err != nil {
		h.fail(w, "failed to delete entities", err, slog.String("collection", collection))
		return
	}

	h.logger.Info("entities deleted",
		slog.String("collection", collection),
		slog.Int("requested", len(ids)),
		slog.Int("deleted", n))

	sendJSON(h.logger, w, api.DeleteResponse{Deleted: n}, http.StatusOK)
}

func collectIDs(body []any) ([]string, error) {
	ids := make([]string, 0, len(body))
	for i, item := range body {
		var id string
		if entity, ok := models.AsEntity(item); ok {
			id = entity.ID()
		} else {
			id = models.FormatID(item)
		}
		if err := validation.ValidateID(id); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *EntityHandler) collection(w http.ResponseWriter, r *http.Request) (string, bool) {
	collection := r.PathValue("collection")
	if err := validation.ValidateCollection(collection); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return collection, true
}

func (h *EntityHandler) target(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	collection, ok := h.collection(w, r)
	if !ok {
		return "", "", false
	}
	id := r.PathValue("id")
	if err := validation.ValidateID(id); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return "", "", false
	}
	return collection, id, true
}

// decode читает JSON тело с ограничением размера
func (h *EntityHandler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(h.logger, w, "request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		h.logger.Debug("failed to decode request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// fail переводит ошибку хранилища в HTTP статус
func (h *EntityHandler) fail(w http.ResponseWriter, msg string, err error, attrs ...any) {
	switch {
	case errors.Is(err, storage.ErrEntryNotFound):
		sendError(h.logger, w, "entity not found", http.StatusNotFound)
	case errors.Is(err, storage.ErrEntryExists):
		sendError(h.logger, w, "entity already exists", http.StatusConflict)
	case errors.Is(err, storage.ErrInvalidEntity):
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error(msg, append(attrs, slog.Any("error", err))...)
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
	}
}
