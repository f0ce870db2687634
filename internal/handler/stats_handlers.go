package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mtlprog/taskboard/internal/handler/dto"
)

// handleGetStats returns board statistics.
// @Summary Get statistics
// @Description Counts by status, priority and department, overdue tasks and checklist progress.
// @Tags stats
// @Produce json
// @Success 200 {object} dto.StatsResponse
// @Router /stats [get]
func (h *Handler) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.taskService.Stats(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToStatsResponse(stats, time.Now().UTC()))
}

// handleListEvents returns journaled task changes so clients can catch up after a disconnect.
// @Summary List change events
// @Tags events
// @Produce json
// @Param after query int false "Return events with a greater id"
// @Param since query string false "RFC 3339 lower bound on event time"
// @Param limit query int false "Page size (1-500, default 100)"
// @Success 200 {object} dto.EventsResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /events [get]
func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filters := dto.EventsFilters{Limit: 100}

	if param := query.Get("after"); param != "" {
		n, err := strconv.ParseInt(param, 10, 64)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "after must be a non-negative integer")
			return
		}
		filters.After = n
	}

	if param := query.Get("since"); param != "" {
		since, err := time.Parse(time.RFC3339, param)
		if err != nil {
			respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "since must be an RFC 3339 timestamp")
			return
		}
		filters.Since = since
	}

	if param := query.Get("limit"); param != "" {
		if n, err := strconv.Atoi(param); err == nil && n > 0 && n <= 500 {
			filters.Limit = n
		}
	}

	events, err := h.taskService.Events(r.Context(), filters.After, filters.Since, filters.Limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, dto.ToEventsResponse(events, filters.After))
}
