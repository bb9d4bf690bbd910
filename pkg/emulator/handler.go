// Package emulator is a local stand-in for the regulator's validation service. It
// applies structural checks to submitted instance documents and can be told to
// fail with 503 to exercise client retries.
package emulator

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/shunichi-ikebuchi/amsf-survey/pkg/taxonomy"
	"github.com/shunichi-ikebuchi/amsf-survey/pkg/validator"
)

// FailHeader arms fault injection: the request carrying it and the following ones
// are answered with 503 until the countdown reaches zero.
const FailHeader = "X-Emulator-Fail"

// maxDocumentSize bounds request bodies.
const maxDocumentSize = 10 << 20

// Handler serves the emulated validation API.
type Handler struct {
	store  *Store
	lookup taxonomy.Lookup
	logger *slog.Logger

	mu       sync.Mutex
	failures int
}

// Option configures a Handler.
type Option func(*Handler)

// WithLookup enables the taxonomy checks on facts.
func WithLookup(lookup taxonomy.Lookup) Option {
	return func(h *Handler) {
		h.lookup = lookup
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

// NewHandler creates a new Handler.
func NewHandler(store *Store, opts ...Option) *Handler {
	h := &Handler{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router of the emulator.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Post("/validate", h.Validate)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{id}", h.GetRun)
	})

	r.Put("/emulator/faults", h.SetFaults)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}

// FaultsRequest sets the number of upcoming requests to fail.
type FaultsRequest struct {
	Count int `json:"count"`
}

// SetFaults handles PUT /emulator/faults
func (h *Handler) SetFaults(w http.ResponseWriter, r *http.Request) {
	var req FaultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Count < 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Expected {\"count\": n} with n >= 0")
		return
	}

	h.mu.Lock()
	h.failures = req.Count
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, req)
}

// takeFailure arms the countdown from the request header and consumes one failure.
func (h *Handler) takeFailure(r *http.Request) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if v := r.Header.Get(FailHeader); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			h.failures = n
		}
	}
	if h.failures == 0 {
		return false
	}
	h.failures--
	return true
}

// Validate handles POST /api/validate
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	run := Run{
		ID:         uuid.NewString(),
		RequestID:  r.Header.Get("X-Request-ID"),
		ReceivedAt: time.Now().UTC(),
	}
	logger := h.logger.With("run_id", run.ID, "request_id", run.RequestID)

	if h.takeFailure(r) {
		run.Status = http.StatusServiceUnavailable
		run.Injected = true
		h.record(logger, run)
		logger.Info("injected failure")
		writeJSONError(w, http.StatusServiceUnavailable, "service_unavailable", "Injected failure")
		return
	}

	document, err := readDocument(r)
	if err != nil {
		run.Status = http.StatusBadRequest
		h.record(logger, run)
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	report := Check(document, h.lookup)
	run.Valid = report.Valid()
	run.ErrorCount = len(report.Errors)
	run.WarningCount = len(report.Warnings)
	if report.Instance != nil {
		run.FactCount = len(report.Instance.Facts)
		if entity, ok := report.Instance.EntityContext(); ok {
			run.Identifier = entity.Identifier
		}
	}

	run.Status = http.StatusOK
	if !run.Valid {
		run.Status = http.StatusUnprocessableEntity
	}
	h.record(logger, run)

	logger.Info("validated document",
		"valid", run.Valid,
		"facts", run.FactCount,
		"errors", run.ErrorCount,
		"warnings", run.WarningCount,
	)

	writeJSON(w, run.Status, validator.Result{
		Valid:    run.Valid,
		Errors:   nonNil(report.Errors),
		Warnings: nonNil(report.Warnings),
	})
}

func (h *Handler) record(logger *slog.Logger, run Run) {
	if err := h.store.PutRun(run); err != nil {
		logger.Error("failed to record run", "error", err)
	}
}

// ListRuns handles GET /api/runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSONError(w, http.StatusBadRequest, "invalid_parameter", "Invalid limit")
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// GetRun handles GET /api/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(chi.URLParam(r, "id"))
	if errors.Is(err, ErrNotFound) {
		writeJSONError(w, http.StatusNotFound, "not_found", "Run not found")
		return
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, "server_error", "Failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// readDocument accepts the JSON envelope or the raw document, depending on the
// content type.
func readDocument(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDocumentSize))
	if err != nil {
		return "", errors.New("failed to read request body")
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return string(body), nil
	}

	var req validator.ValidateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", errors.New("request body is not valid JSON")
	}
	if req.DocumentContent == "" {
		return "", errors.New("documentContent is required")
	}
	return req.DocumentContent, nil
}

func nonNil(issues []validator.Issue) []validator.Issue {
	if issues == nil {
		return []validator.Issue{}
	}
	return issues
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error response.
func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, ErrorResponse{
		Error:            code,
		ErrorDescription: description,
	})
}
