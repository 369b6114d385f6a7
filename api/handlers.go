/*
handlers.go - HTTP API handlers for the reading-plan engine

PURPOSE:
  Exposes progress.Service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the engine.

ENDPOINTS:
  Curriculum:
    GET    /api/curriculum                          Books and chapter counts

  Users:
    GET    /api/users/{id}/ledger                   Full read map
    GET    /api/users/{id}/stats                    Streak, rate, schedule status
    GET    /api/users/{id}/today                    Assignment window + read-ahead
    GET    /api/users/{id}/weekly                   Last 7 days
    GET    /api/users/{id}/plan                     Plan start date
    PUT    /api/users/{id}/plan                     Set plan start date
    PUT    /api/users/{id}/chapters/{book}/{chapter} Toggle one chapter
    POST   /api/users/{id}/books/{book}/mark        Mark a whole book
    POST   /api/users/{id}/advance-sync             Reconcile to a position
    DELETE /api/users/{id}/session                  End the session

  Admin:
    GET    /api/admin/distribution?top=N            Cross-user aggregates

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, chapter not in curriculum
  - 404: Record not found
  - 501: Store lacks an optional capability (plans, user listing)
  - 503: Record store unavailable; retry
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/reading-engine/progress"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *progress.Service
	Logger  *slog.Logger
}

// NewHandler creates a new handler over the given service.
func NewHandler(svc *progress.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Service: svc, Logger: logger}
}

func userID(r *http.Request) progress.UserID {
	return progress.UserID(chi.URLParam(r, "id"))
}

// bookParam decodes the {book} segment ("1%20Samuel" → "1 Samuel").
func bookParam(r *http.Request) (string, error) {
	return url.PathUnescape(chi.URLParam(r, "book"))
}

// =============================================================================
// CURRICULUM
// =============================================================================

func (h *Handler) GetCurriculum(w http.ResponseWriter, r *http.Request) {
	c := h.Service.Curriculum()
	books := c.Books()
	dto := CurriculumDTO{Books: make([]BookDTO, len(books)), TotalChapters: c.Len()}
	for i, b := range books {
		dto.Books[i] = BookDTO{Name: b.Name, Chapters: b.Chapters}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// USER READS
// =============================================================================

func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	id := userID(r)
	ledger, err := h.Service.GetProgressLedger(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "Failed to load ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, LedgerDTO{
		UserID:    string(id),
		Books:     ledger.Map(),
		Completed: ledger.CompletedCount(),
		Total:     ledger.Len(),
	})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Service.GetStats(r.Context(), userID(r))
	if err != nil {
		h.writeServiceError(w, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetToday(w http.ResponseWriter, r *http.Request) {
	a, err := h.Service.GetTodaysAssignment(r.Context(), userID(r))
	if err != nil {
		h.writeServiceError(w, "Failed to load assignment", err)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(a))
}

func (h *Handler) GetWeekly(w http.ResponseWriter, r *http.Request) {
	days, err := h.Service.GetWeeklyGrid(r.Context(), userID(r))
	if err != nil {
		h.writeServiceError(w, "Failed to load weekly grid", err)
		return
	}
	writeJSON(w, http.StatusOK, WeeklyDTO{Days: days})
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan, err := h.Service.GetPlan(r.Context(), userID(r))
	if err != nil {
		h.writeServiceError(w, "Failed to load plan", err)
		return
	}
	writeJSON(w, http.StatusOK, PlanDTO{UserID: string(plan.UserID), StartDate: plan.StartDate.String()})
}

func (h *Handler) SavePlan(w http.ResponseWriter, r *http.Request) {
	var req SavePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	start, err := progress.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD", err)
		return
	}

	plan := progress.Plan{UserID: userID(r), StartDate: start}
	if err := h.Service.SavePlan(r.Context(), plan); err != nil {
		h.writeServiceError(w, "Failed to save plan", err)
		return
	}
	writeJSON(w, http.StatusOK, PlanDTO{UserID: string(plan.UserID), StartDate: start.String()})
}

// =============================================================================
// USER WRITES
// =============================================================================

func (h *Handler) ToggleChapter(w http.ResponseWriter, r *http.Request) {
	book, err := bookParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid book", err)
		return
	}
	chapter, err := strconv.Atoi(chi.URLParam(r, "chapter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid chapter", err)
		return
	}

	var req ToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "completed is required", nil)
		return
	}

	dayDone, err := h.Service.ToggleChapter(r.Context(), userID(r), book, chapter, *req.Completed)
	if err != nil {
		h.writeServiceError(w, "Failed to update chapter", err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{
		Book:             book,
		Chapter:          chapter,
		Completed:        *req.Completed,
		DayJustCompleted: dayDone,
	})
}

func (h *Handler) MarkBook(w http.ResponseWriter, r *http.Request) {
	book, err := bookParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid book", err)
		return
	}

	var req MarkBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Completed == nil {
		writeError(w, http.StatusBadRequest, "completed is required", nil)
		return
	}

	result, err := h.Service.BulkMarkBook(r.Context(), userID(r), book, *req.Completed)
	if err != nil {
		h.writeSyncError(w, "Failed to mark book", result, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) AdvanceSync(w http.ResponseWriter, r *http.Request) {
	var req AdvanceSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Book == "" {
		writeError(w, http.StatusBadRequest, "book is required", nil)
		return
	}

	result, err := h.Service.AdvanceSync(r.Context(), userID(r), req.Book, req.Chapter)
	if err != nil {
		h.writeSyncError(w, "Failed to sync progress", result, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.Service.EndSession(userID(r))
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN
// =============================================================================

// GetDistribution returns cross-user aggregates. ?top=N bounds the book list (default 10).
func (h *Handler) GetDistribution(w http.ResponseWriter, r *http.Request) {
	top := 10
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "top must be a non-negative integer", err)
			return
		}
		top = n
	}

	d, err := h.Service.Distribution(r.Context(), progress.DistributionOptions{})
	if err != nil {
		h.writeServiceError(w, "Failed to compute distribution", err)
		return
	}

	weekdays := make(map[string]int, len(d.Weekdays))
	for day, n := range d.Weekdays {
		weekdays[time.Weekday(day).String()] = n
	}
	writeJSON(w, http.StatusOK, DistributionDTO{
		Users:    d.Users,
		TopBooks: d.TopBooks(top),
		Weekdays: weekdays,
		Buckets:  d.Buckets,
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.Service.OpenSessions(),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case progress.IsClientError(err):
		return http.StatusBadRequest
	case progress.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, progress.ErrStoreRequired):
		return http.StatusNotImplemented
	case progress.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error(message, "status", status, "error", err)
	}
	writeError(w, status, message, err)
}

// writeSyncError includes the partial result when some batches were written.
func (h *Handler) writeSyncError(w http.ResponseWriter, message string, result progress.SyncResult, err error) {
	var syncErr *progress.SyncError
	if !errors.As(err, &syncErr) {
		h.writeServiceError(w, message, err)
		return
	}
	h.Logger.Error(message, "failed_batches", syncErr.FailedBatches, "batches", syncErr.Batches, "error", err)
	writeJSON(w, http.StatusServiceUnavailable, SyncFailureResponse{
		Error:         message,
		Details:       err.Error(),
		Batches:       syncErr.Batches,
		FailedBatches: syncErr.FailedBatches,
		Result:        result,
	})
}
