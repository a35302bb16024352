package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schooldesk/attendance-api/internal/middleware"
	"github.com/schooldesk/attendance-api/internal/models"
	"github.com/schooldesk/attendance-api/internal/service"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
	"github.com/schooldesk/attendance-api/pkg/response"
)

// DashboardHandler exposes role-scoped dashboard endpoints.
type DashboardHandler struct {
	service  *service.DashboardService
	teachers *service.TeacherService
	students *service.StudentService
}

// NewDashboardHandler constructs a dashboard handler.
func NewDashboardHandler(svc *service.DashboardService, teachers *service.TeacherService, students *service.StudentService) *DashboardHandler {
	return &DashboardHandler{service: svc, teachers: teachers, students: students}
}

// Admin godoc
// @Summary School-wide attendance dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/admin [get]
func (h *DashboardHandler) Admin(c *gin.Context) {
	dashboard, cached, err := h.service.Admin(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, dashboard, nil, middleware.ExtractMeta(c))
}

// Teacher godoc
// @Summary Dashboard for the requesting teacher's classes
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dashboard/teacher [get]
func (h *DashboardHandler) Teacher(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	teacher, err := h.teachers.GetByUser(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	dashboard, cached, err := h.service.Teacher(c.Request.Context(), teacher.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, dashboard, nil, middleware.ExtractMeta(c))
}

// Student godoc
// @Summary Dashboard for the requesting student
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dashboard/student [get]
func (h *DashboardHandler) Student(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	// admins may inspect a specific student via query param
	studentID := c.Query("student_id")
	if studentID == "" || claims.Role != models.RoleAdmin {
		student, err := h.students.GetByUser(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		studentID = student.ID
	}

	dashboard, cached, err := h.service.Student(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, dashboard, nil, middleware.ExtractMeta(c))
}
