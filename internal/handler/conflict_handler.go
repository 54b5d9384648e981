package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/evlin-hq/evlin-scheduler-api/internal/service"
	appErrors "github.com/evlin-hq/evlin-scheduler-api/pkg/errors"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/response"
)

// ConflictHandler exposes the scheduling conflict check.
type ConflictHandler struct {
	conflicts *service.ConflictService
	metrics   *service.MetricsService
}

// NewConflictHandler constructs ConflictHandler.
func NewConflictHandler(conflicts *service.ConflictService, metrics *service.MetricsService) *ConflictHandler {
	return &ConflictHandler{conflicts: conflicts, metrics: metrics}
}

// Check godoc
// @Summary Check a proposed slot against commitments and availability
// @Tags Conflicts
// @Accept json
// @Produce json
// @Param payload body service.CheckConflictRequest true "Proposed slot"
// @Success 200 {object} response.Envelope
// @Router /conflicts/check [post]
func (h *ConflictHandler) Check(c *gin.Context) {
	var req service.CheckConflictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.conflicts.Check(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordConflictCheck(string(report.Verdict))
	response.JSON(c, http.StatusOK, report, nil)
}
