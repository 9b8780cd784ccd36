// internal/api/http/admin_handler.go
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"echo-dispatcher/internal/domain"
	"echo-dispatcher/internal/metrics"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// AdminHandler serves read-only views of the dispatcher.
type AdminHandler struct {
	slots    domain.SlotSource
	history  domain.ExchangeRepository
	logger   *slog.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(slots domain.SlotSource, history domain.ExchangeRepository, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		slots:    slots,
		history:  history,
		logger:   logger.With("component", "admin-handler"),
		validate: validator.New(),
		tracer:   otel.Tracer("echo-dispatcher-admin-api"),
	}
}

// A helper struct to capture the status code
type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// RegisterRoutes registers /slots, /exchanges/ and /metrics on mux.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/slots", h.instrument("/slots", http.HandlerFunc(h.handleSlots)))
	mux.Handle("/exchanges", h.instrument("/exchanges", http.HandlerFunc(h.handleExchanges)))
	mux.Handle("/exchanges/", h.instrument("/exchanges/{id}", http.HandlerFunc(h.handleExchanges)))
	mux.Handle("/metrics", promhttp.Handler())
}

func (h *AdminHandler) instrument(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "HTTP "+r.Method+" "+route, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(iw, r.WithContext(ctx))

		metrics.HttpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(iw.statusCode)).Inc()
		span.SetAttributes(attribute.Int("http.status_code", iw.statusCode))
		if iw.statusCode >= 500 {
			span.SetStatus(codes.Error, "Server Error")
		}
	})
}

func (h *AdminHandler) handleSlots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.respondJSON(w, http.StatusOK, h.slots.Snapshot())
}

func (h *AdminHandler) handleExchanges(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/exchanges"), "/")
	if id != "" {
		h.handleGetExchange(w, r, id)
		return
	}

	q := parseListExchangesQuery(r.URL.Query())
	if err := h.validate.Struct(q); err != nil {
		http.Error(w, "Invalid pagination: "+err.Error(), http.StatusBadRequest)
		return
	}

	records, err := h.history.List(r.Context(), q.Page, q.PageSize)
	if err != nil {
		h.logger.Error("failed to list exchanges", "error", err)
		http.Error(w, "Failed to list exchanges", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, records)
}

func (h *AdminHandler) handleGetExchange(w http.ResponseWriter, r *http.Request, id string) {
	record, err := h.history.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrExchangeNotFound) {
			http.Error(w, "Exchange not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to get exchange", "id", id, "error", err)
		http.Error(w, "Failed to get exchange", http.StatusInternalServerError)
		return
	}
	h.respondJSON(w, http.StatusOK, record)
}

func (h *AdminHandler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}
