package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
	"github.com/evlin-hq/evlin-scheduler-api/internal/service"
	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/response"
)

// ScheduleHandler exposes schedule proposal and confirmation endpoints.
type ScheduleHandler struct {
	schedules *service.ScheduleService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(schedules *service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules}
}

// Propose godoc
// @Summary Propose a schedule for a course
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.ProposeScheduleRequest true "Proposal payload"
// @Success 201 {object} response.Envelope
// @Router /schedules/propose [post]
func (h *ScheduleHandler) Propose(c *gin.Context) {
	var req service.ProposeScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	schedule, err := h.schedules.Propose(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Confirm godoc
// @Summary Confirm a proposed schedule and materialize its sessions
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/confirm [post]
func (h *ScheduleHandler) Confirm(c *gin.Context) {
	result, err := h.schedules.Confirm(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Get godoc
// @Summary Get a schedule with its slots
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id} [get]
func (h *ScheduleHandler) Get(c *gin.Context) {
	schedule, err := h.schedules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// ListByStudent godoc
// @Summary List a student's schedules
// @Tags Schedules
// @Produce json
// @Param id path string true "Student ID"
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/schedules [get]
func (h *ScheduleHandler) ListByStudent(c *gin.Context) {
	status := models.ScheduleStatus(c.Query("status"))
	schedules, err := h.schedules.ListByStudent(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, nil)
}
