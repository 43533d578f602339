// Package handler implements the publish endpoint. POST runs the linear
// flow authorize, validate, allocate slug, write; GET lists published
// content summaries newest first, optionally served from a Redis cache.
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"siteapi/internal/publish"
	"siteapi/internal/publish/slug"
	"siteapi/internal/publish/store"
	"siteapi/internal/publish/validator"
	apperrors "siteapi/pkg/errors"
	"siteapi/pkg/logger"
	"siteapi/pkg/metrics"
	"siteapi/pkg/redis"
	"siteapi/pkg/tracing"
)

// listCacheKey holds the cached JSON listing in Redis.
const listCacheKey = "siteapi:posts:list"

// Handler orchestrates draft publication and content listing.
type Handler struct {
	store   *store.Store
	token   string        // empty means authorization is skipped
	cache   *redis.Client // nil when caching is disabled
	listTTL time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates the publish handler. cache may be nil.
func New(st *store.Store, token string, cache *redis.Client, listTTL time.Duration, m *metrics.Metrics) *Handler {
	return &Handler{
		store:   st,
		token:   token,
		cache:   cache,
		listTTL: listTTL,
		metrics: m,
		logger:  logger.WithComponent("publish-handler"),
	}
}

// Create handles POST /api/posts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "publish.create")
	defer span.End(ctx)
	log := logger.FromContext(ctx)

	if !h.authorized(r) {
		span.SetAttr("outcome", "unauthorized")
		h.metrics.PublishesTotal.WithLabelValues("unauthorized").Inc()
		h.writeJSON(w, http.StatusUnauthorized, map[string]any{
			"ok":      false,
			"message": "missing or invalid publish token",
		})
		return
	}

	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || ct != "application/json" {
		span.SetAttr("outcome", "unsupported_media")
		h.writeJSON(w, http.StatusUnsupportedMediaType, map[string]any{
			"ok":      false,
			"message": "unsupported content type, expecting application/json",
		})
		return
	}

	var draft publish.Draft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		span.SetAttr("outcome", "bad_json")
		h.metrics.PublishesTotal.WithLabelValues("validation_failed").Inc()
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok":      false,
			"message": "invalid JSON payload",
		})
		return
	}

	if err := validator.Validate(&draft); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			span.SetAttr("outcome", "validation_failed")
			h.metrics.PublishesTotal.WithLabelValues("validation_failed").Inc()
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"ok":     false,
				"errors": validationErr.Fields,
			})
			return
		}
	}

	allocated := slug.Allocate(draft.Slug, draft.Title)
	span.SetAttr("slug", allocated)

	path, err := h.store.CreateOnce(allocated, &draft, time.Now())
	if err != nil {
		if status := apperrors.HTTPStatusCode(err); status == http.StatusConflict {
			span.SetAttr("outcome", "conflict")
			h.metrics.PublishesTotal.WithLabelValues("conflict").Inc()
			h.writeJSON(w, status, map[string]any{
				"ok":      false,
				"message": "a post with this slug already exists",
				"slug":    allocated,
			})
			return
		}
		span.SetAttr("outcome", "error")
		h.metrics.PublishesTotal.WithLabelValues("error").Inc()
		log.Error("failed to persist post", "slug", allocated, "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":      false,
			"message": "failed to persist post content",
		})
		return
	}

	h.invalidateListCache(ctx)
	span.SetAttr("outcome", "created")
	h.metrics.PublishesTotal.WithLabelValues("created").Inc()
	log.Info("post published", "slug", allocated, "title_len", len(draft.Title), "body_len", len(draft.Body))

	h.writeJSON(w, http.StatusCreated, map[string]any{
		"ok":   true,
		"slug": allocated,
		"path": path,
	})
}

// List handles GET /api/posts.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	if h.cache != nil {
		if cached, err := h.cache.Get(ctx, listCacheKey); err == nil {
			h.metrics.PostsListedTotal.WithLabelValues("hit").Inc()
			h.writeRawJSON(w, http.StatusOK, []byte(cached))
			return
		} else if !redis.IsNilError(err) {
			log.Warn("list cache read failed", "error", err)
		}
	}

	posts, err := h.store.List(ctx)
	if err != nil {
		log.Error("failed to list posts", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":      false,
			"message": "failed to list posts",
		})
		return
	}

	body, err := json.Marshal(map[string]any{"ok": true, "posts": posts})
	if err != nil {
		log.Error("failed to encode post listing", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":      false,
			"message": "failed to list posts",
		})
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, listCacheKey, string(body), h.listTTL); err != nil {
			log.Warn("list cache write failed", "error", err)
		}
		h.metrics.PostsListedTotal.WithLabelValues("miss").Inc()
	} else {
		h.metrics.PostsListedTotal.WithLabelValues("bypass").Inc()
	}
	h.writeRawJSON(w, http.StatusOK, body)
}

// authorized compares the bearer credential against the configured token in
// constant time. With no token configured the endpoint is open.
func (h *Handler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	presented, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) == 1
}

// invalidateListCache drops the cached listing after a successful publish.
func (h *Handler) invalidateListCache(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Del(ctx, listCacheKey); err != nil {
		h.logger.Warn("list cache invalidation failed", "error", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
