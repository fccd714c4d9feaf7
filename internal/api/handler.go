// Package api serves read-only REST endpoints next to the RPC surface.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mmynk/rentledger/internal/service"
	"github.com/mmynk/rentledger/internal/storage"
)

// Metrics
var (
	httpReqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentledger_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rentledger_http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
	}, []string{"method", "endpoint"})
)

// maxUpload bounds CSV bodies.
const maxUpload = 10 << 20

type Handler struct {
	svc *service.ImportService
}

func NewHandler(svc *service.ImportService) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the endpoints on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/owners/{owner}/properties/{property}/balance", h.GetBalance).Methods("GET")
	r.HandleFunc("/batches", h.ListBatches).Methods("GET")
	r.HandleFunc("/imports/validate", h.ValidateCSV).Methods("POST")
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/owners/{owner}/properties/{property}/balance"
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("GET", endpoint))
	defer timer.ObserveDuration()

	vars := mux.Vars(r)
	ownerID, err := strconv.ParseInt(vars["owner"], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid owner id", "GET", endpoint)
		return
	}
	propertyID, err := strconv.ParseInt(vars["property"], 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid property id", "GET", endpoint)
		return
	}

	balance, err := h.svc.Balance(r.Context(), ownerID, propertyID, r.URL.Query().Get("period"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.respondError(w, http.StatusNotFound, err.Error(), "GET", endpoint)
			return
		}
		h.respondError(w, http.StatusBadRequest, err.Error(), "GET", endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"balance":   balance,
		"overdrawn": balance.Overdrawn(),
	}, "GET", endpoint)
}

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("GET", "/batches"))
	defer timer.ObserveDuration()

	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.respondError(w, http.StatusBadRequest, "invalid limit", "GET", "/batches")
			return
		}
		limit = n
	}

	batches, err := h.svc.RecentBatches(r.Context(), limit)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error(), "GET", "/batches")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]any{"batches": batches}, "GET", "/batches")
}

// ValidateCSV parses a CSV body with a header line and reports row issues.
func (h *Handler) ValidateCSV(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpLatency.WithLabelValues("POST", "/imports/validate"))
	defer timer.ObserveDuration()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUpload))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "failed to read body", "POST", "/imports/validate")
		return
	}

	parsed := h.svc.Validate(string(body), nil)
	if parsed.Fatal != nil {
		h.respondError(w, http.StatusUnprocessableEntity, parsed.Fatal.Error(), "POST", "/imports/validate")
		return
	}

	var issues []string
	for _, row := range parsed.Rows {
		if row.Err != nil {
			issues = append(issues, row.Err.Error())
		}
	}
	h.respondJSON(w, http.StatusOK, map[string]any{
		"valid_rows":  parsed.Valid(),
		"failed_rows": parsed.Failed(),
		"issues":      issues,
	}, "POST", "/imports/validate")
}

// Helpers
func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpReqTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, msg, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": msg}, method, endpoint)
}
