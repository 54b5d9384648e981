package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evlin-hq/evlin-scheduler-api/internal/service"
	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/response"
)

// StatsHandler exposes check-in statistics and audit trail endpoints.
type StatsHandler struct {
	stats *service.StatsService
}

// NewStatsHandler constructs StatsHandler.
func NewStatsHandler(stats *service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

// CheckinStats godoc
// @Summary Aggregate check-in statistics for a student
// @Tags Stats
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/checkin-stats [get]
func (h *StatsHandler) CheckinStats(c *gin.Context) {
	stats, err := h.stats.GetCheckinStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// WeekProgress godoc
// @Summary Per-day progress for the week containing a date
// @Tags Stats
// @Produce json
// @Param id path string true "Student ID"
// @Param date query string false "Any date in the week (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/week-progress [get]
func (h *StatsHandler) WeekProgress(c *gin.Context) {
	weekOf := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, "malformed date, expected YYYY-MM-DD"))
			return
		}
		weekOf = parsed
	}
	progress, err := h.stats.WeekProgress(c.Request.Context(), c.Param("id"), weekOf)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// CheckinLog godoc
// @Summary Audit trail of session transitions, newest first
// @Tags Stats
// @Produce json
// @Param id path string true "Student ID"
// @Param limit query int false "Max entries (default 100, cap 500)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/checkin-log [get]
func (h *StatsHandler) CheckinLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.stats.ListCheckinLog(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// ExportCheckinHistory godoc
// @Summary Download the audit trail as CSV
// @Tags Stats
// @Produce text/csv
// @Param id path string true "Student ID"
// @Param limit query int false "Max entries (default 100, cap 500)"
// @Success 200 {string} string "CSV payload"
// @Router /students/{id}/checkin-export [get]
func (h *StatsHandler) ExportCheckinHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	payload, err := h.stats.ExportCheckinHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	filename := fmt.Sprintf("checkin-history-%s.csv", c.Param("id"))
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Data(http.StatusOK, "text/csv", payload)
}
