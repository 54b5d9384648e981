package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/evlin-hq/evlin-scheduler-api/internal/service"
	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/response"
)

// SessionHandler exposes session lifecycle endpoints.
type SessionHandler struct {
	sessions   *service.SessionService
	reschedule *service.RescheduleService
	metrics    *service.MetricsService
}

// NewSessionHandler constructs SessionHandler.
func NewSessionHandler(sessions *service.SessionService, reschedule *service.RescheduleService, metrics *service.MetricsService) *SessionHandler {
	return &SessionHandler{sessions: sessions, reschedule: reschedule, metrics: metrics}
}

type checkinRequest struct {
	Notes string `json:"notes"`
}

type sweepRequest struct {
	StudentID      string `json:"student_id"`
	AutoReschedule *bool  `json:"auto_reschedule"`
}

// ListByDate godoc
// @Summary List a student's sessions on a date
// @Tags Sessions
// @Produce json
// @Param id path string true "Student ID"
// @Param date query string false "Date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/sessions [get]
func (h *SessionHandler) ListByDate(c *gin.Context) {
	date := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrParse.Code, appErrors.ErrParse.Status, "malformed date, expected YYYY-MM-DD"))
			return
		}
		date = parsed
	}
	sessions, err := h.sessions.ListByDate(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// ListMissed godoc
// @Summary List missed sessions awaiting a reschedule or skip
// @Tags Sessions
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/sessions/missed [get]
func (h *SessionHandler) ListMissed(c *gin.Context) {
	sessions, err := h.sessions.ListUnresolvedMissed(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}

// CheckIn godoc
// @Summary Check in a pending session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body checkinRequest false "Optional notes"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/checkin [post]
func (h *SessionHandler) CheckIn(c *gin.Context) {
	var req checkinRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	instance, err := h.sessions.CheckIn(c.Request.Context(), c.Param("id"), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordCheckin()
	response.JSON(c, http.StatusOK, instance, nil)
}

// Cancel godoc
// @Summary Skip a pending or missed session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/cancel [post]
func (h *SessionHandler) Cancel(c *gin.Context) {
	instance, err := h.sessions.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, instance, nil)
}

// Reschedule godoc
// @Summary Manually reschedule a missed session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body service.RescheduleRequest true "New slot"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/reschedule [post]
func (h *SessionHandler) Reschedule(c *gin.Context) {
	var req service.RescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	replacement, err := h.sessions.Reschedule(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, replacement, nil)
}

// RescheduleOptions godoc
// @Summary Propose ranked replacement slots for a missed session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param studentId query string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/reschedule-options [get]
func (h *SessionHandler) RescheduleOptions(c *gin.Context) {
	studentID := c.Query("studentId")
	if studentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "studentId query parameter is required"))
		return
	}
	candidates, err := h.reschedule.FindSlots(c.Request.Context(), studentID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}

// Sweep godoc
// @Summary Mark overdue pending sessions as missed
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body sweepRequest false "Optional scope and auto-reschedule flag"
// @Success 200 {object} response.Envelope
// @Router /sessions/sweep [post]
func (h *SessionHandler) Sweep(c *gin.Context) {
	var req sweepRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	autoReschedule := true
	if req.AutoReschedule != nil {
		autoReschedule = *req.AutoReschedule
	}
	result, err := h.sessions.Sweep(c.Request.Context(), req.StudentID, autoReschedule)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSweep(len(result.Missed), len(result.Rescheduled))
	response.JSON(c, http.StatusOK, result, nil)
}

// SweepStudent godoc
// @Summary Mark one student's overdue pending sessions as missed
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body sweepRequest false "Auto-reschedule flag"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/sweep [post]
func (h *SessionHandler) SweepStudent(c *gin.Context) {
	var req sweepRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	autoReschedule := true
	if req.AutoReschedule != nil {
		autoReschedule = *req.AutoReschedule
	}
	result, err := h.sessions.Sweep(c.Request.Context(), c.Param("id"), autoReschedule)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSweep(len(result.Missed), len(result.Rescheduled))
	response.JSON(c, http.StatusOK, result, nil)
}
