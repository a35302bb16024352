package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schooldesk/attendance-api/internal/models"
	"github.com/schooldesk/attendance-api/internal/service"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
	"github.com/schooldesk/attendance-api/pkg/response"
)

// StudentHandler exposes student profile endpoints.
type StudentHandler struct {
	service    *service.StudentService
	attendance *service.AttendanceService
}

// NewStudentHandler constructs a student handler.
func NewStudentHandler(svc *service.StudentService, attendance *service.AttendanceService) *StudentHandler {
	return &StudentHandler{service: svc, attendance: attendance}
}

// authorizeRead lets admins and teachers through; a student caller must own
// the target profile. Writes the error response itself when it denies.
func (h *StudentHandler) authorizeRead(c *gin.Context, targetID string) bool {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return false
	}
	if claims.Role != models.RoleStudent {
		return true
	}
	self, err := h.service.GetByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return false
	}
	if self.ID != targetID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students may only view their own records"))
		return false
	}
	return true
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param department_id query string false "Filter by department"
// @Param course_id query string false "Filter by course"
// @Param year_level query int false "Filter by year level"
// @Param search query string false "Search keyword"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	var filter models.StudentFilter
	filter.DepartmentID = c.Query("department_id")
	filter.CourseID = c.Query("course_id")
	filter.YearLevel = queryInt(c, "year_level", 0)
	filter.Search = querySearch(c)
	filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder = pageFilter(c)

	students, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	if !h.authorizeRead(c, c.Param("id")) {
		return
	}
	student, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Update godoc
// @Summary Update student profile
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateStudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req service.UpdateStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	student, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Delete student profile
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// History godoc
// @Summary Attendance history for a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param class_id query string false "Scope to one class"
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/attendance [get]
func (h *StudentHandler) History(c *gin.Context) {
	if !h.authorizeRead(c, c.Param("id")) {
		return
	}
	rows, err := h.attendance.History(c.Request.Context(), c.Param("id"), c.Query("class_id"), queryInt(c, "limit", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// Summary godoc
// @Summary Attendance summary for a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Param class_id query string false "Scope to one class"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /students/{id}/attendance/summary [get]
func (h *StudentHandler) Summary(c *gin.Context) {
	if !h.authorizeRead(c, c.Param("id")) {
		return
	}
	summary, err := h.attendance.Summary(c.Request.Context(), c.Param("id"), c.Query("class_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
