// Package handler exposes search sessions over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/alex-user-go/stayfinder/internal/middleware"
	"github.com/alex-user-go/stayfinder/internal/obs"
	"github.com/alex-user-go/stayfinder/internal/ratelimit"
	"github.com/alex-user-go/stayfinder/internal/results"
	"github.com/alex-user-go/stayfinder/internal/session"
)

// Handler handles HTTP requests.
type Handler struct {
	sessions    *session.Registry
	rateLimiter *ratelimit.Limiter
	metrics     *obs.Metrics
	logger      *slog.Logger
	validate    *validator.Validate
}

// New creates a new Handler.
func New(sessions *session.Registry, rateLimiter *ratelimit.Limiter, metrics *obs.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		sessions:    sessions,
		rateLimiter: rateLimiter,
		metrics:     metrics,
		logger:      logger,
		validate:    NewValidator(),
	}
}

// Routes registers every endpoint on r.
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/healthz", obs.HealthHandler(h.logger)).Methods(http.MethodGet)
	r.HandleFunc("/metrics", h.metrics.MetricsHandler()).Methods(http.MethodGet)

	api := r.PathPrefix("/searches").Subrouter()
	api.Use(h.countRequests)
	api.HandleFunc("", h.CreateSearch).Methods(http.MethodPost)
	api.HandleFunc("/{id}", h.GetSearch).Methods(http.MethodGet)
	api.HandleFunc("/{id}", h.DeleteSearch).Methods(http.MethodDelete)
	api.HandleFunc("/{id}/filters", h.SetFilter).Methods(http.MethodPut)
	api.HandleFunc("/{id}/sort", h.SetSort).Methods(http.MethodPut)
	api.HandleFunc("/{id}/more", h.LoadMore).Methods(http.MethodPost)
}

// CreateResponse is returned when a session starts.
type CreateResponse struct {
	ID string `json:"id"`
}

// CreateSearch handles POST /searches.
func (h *Handler) CreateSearch(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.RequestID(r.Context())

	ip := ExtractIP(r)
	if !h.rateLimiter.Allow(ip) {
		h.logger.Warn("rate limit exceeded", "request_id", requestID, "ip", ip)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	var req CreateSearchRequest
	if err := h.decode(w, r, &req); err != nil {
		h.logger.Debug("invalid search request", "request_id", requestID, "error", err, "ip", ip)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctrl, err := h.sessions.Create(req.Query())
	if err != nil {
		if errors.Is(err, session.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, "shutting down")
			return
		}
		h.logger.Error("create session failed", "request_id", requestID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Location", "/searches/"+ctrl.ID())
	h.writeJSON(w, http.StatusCreated, CreateResponse{ID: ctrl.ID()})
}

// GetSearch handles GET /searches/{id}.
func (h *Handler) GetSearch(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, ctrl.View())
}

// SetFilter handles PUT /searches/{id}/filters.
func (h *Handler) SetFilter(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req FilterRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, ctrl.SetFilter(req.FilterState()))
}

// SetSort handles PUT /searches/{id}/sort.
func (h *Handler) SetSort(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req SortRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, ctrl.SetSort(results.SortCriterion(req.Criterion)))
}

// LoadMore handles POST /searches/{id}/more.
func (h *Handler) LoadMore(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, ctrl.LoadMore())
}

// DeleteSearch handles DELETE /searches/{id}.
func (h *Handler) DeleteSearch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.sessions.Delete(id); err != nil {
		h.sessionError(w, r, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*results.Controller, bool) {
	id := mux.Vars(r)["id"]
	ctrl, err := h.sessions.Get(id)
	if err != nil {
		h.sessionError(w, r, id, err)
		return nil, false
	}
	return ctrl, true
}

func (h *Handler) sessionError(w http.ResponseWriter, r *http.Request, id string, err error) {
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "search not found")
		return
	}
	h.logger.Error("session lookup failed", "request_id", middleware.RequestID(r.Context()), "session_id", id, "error", err)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func (h *Handler) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.metrics.IncRequests()
		next.ServeHTTP(w, r)
	})
}

// ExtractIP extracts the client IP from the request.
// Checks X-Forwarded-For, X-Real-IP, then falls back to RemoteAddr.
func ExtractIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Can't change status after WriteHeader, just log
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
