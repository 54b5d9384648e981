package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/evlin-hq/evlin-scheduler-api/internal/models"
	"github.com/evlin-hq/evlin-scheduler-api/internal/service"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/response"
)

// CourseHandler exposes the course catalog.
type CourseHandler struct {
	courses *service.CourseService
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses *service.CourseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// List godoc
// @Summary Search the course catalog
// @Tags Courses
// @Produce json
// @Param subject query string false "Filter by subject"
// @Param gradeLevel query int false "Filter by grade level"
// @Param difficulty query string false "Filter by difficulty"
// @Param activeOnly query bool false "Only active courses"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	var filter models.CourseFilter
	filter.Subject = strings.TrimSpace(c.Query("subject"))
	filter.Difficulty = strings.TrimSpace(c.Query("difficulty"))
	if grade, err := strconv.Atoi(c.Query("gradeLevel")); err == nil {
		filter.GradeLevel = grade
	}
	filter.ActiveOnly = c.DefaultQuery("activeOnly", "true") != "false"

	courses, err := h.courses.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, courses, nil)
}

// GetByCode godoc
// @Summary Get course by catalog code
// @Tags Courses
// @Produce json
// @Param code path string true "Course code"
// @Success 200 {object} response.Envelope
// @Router /courses/code/{code} [get]
func (h *CourseHandler) GetByCode(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}

// Get godoc
// @Summary Get course by id or code
// @Tags Courses
// @Produce json
// @Param id path string true "Course ID or code"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	course, err := h.courses.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, course, nil)
}
