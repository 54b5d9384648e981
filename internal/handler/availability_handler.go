package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evlin-hq/evlin-scheduler-api/internal/service"
	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/response"
)

// AvailabilityHandler exposes weekly availability endpoints.
type AvailabilityHandler struct {
	availability *service.AvailabilityService
}

// NewAvailabilityHandler constructs AvailabilityHandler.
func NewAvailabilityHandler(availability *service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// List godoc
// @Summary List a student's availability grouped by day
// @Tags Availability
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/availability [get]
func (h *AvailabilityHandler) List(c *gin.Context) {
	grouped, err := h.availability.ListByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grouped, nil)
}

// Add godoc
// @Summary Declare an availability window
// @Tags Availability
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.AddAvailabilityRequest true "Window payload"
// @Success 201 {object} response.Envelope
// @Router /students/{id}/availability [post]
func (h *AvailabilityHandler) Add(c *gin.Context) {
	var req service.AddAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	window, err := h.availability.Add(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, window)
}
