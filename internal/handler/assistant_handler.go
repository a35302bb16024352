package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/schooldesk/attendance-api/internal/models"
	"github.com/schooldesk/attendance-api/internal/service"
	appErrors "github.com/schooldesk/attendance-api/pkg/errors"
	"github.com/schooldesk/attendance-api/pkg/response"
)

// AssistantHandler exposes the attendance assistant endpoint.
type AssistantHandler struct {
	service  *service.AssistantService
	teachers *service.TeacherService
	students *service.StudentService
}

// NewAssistantHandler constructs an assistant handler.
func NewAssistantHandler(svc *service.AssistantService, teachers *service.TeacherService, students *service.StudentService) *AssistantHandler {
	return &AssistantHandler{service: svc, teachers: teachers, students: students}
}

// Ask godoc
// @Summary Ask the attendance assistant
// @Description Answers a natural-language question about attendance, scoped
// to one teacher or one student. Non-admins may only ask about themselves.
// @Tags Assistant
// @Accept json
// @Produce json
// @Param payload body service.AskRequest true "Question payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /assistant/ask [post]
func (h *AssistantHandler) Ask(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	switch claims.Role {
	case models.RoleTeacher:
		teacher, err := h.teachers.GetByUser(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if req.TeacherID == "" && req.StudentID == "" {
			req.TeacherID = teacher.ID
		}
		if req.TeacherID != teacher.ID || req.StudentID != "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "teachers may only ask about their own classes"))
			return
		}
	case models.RoleStudent:
		student, err := h.students.GetByUser(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, err)
			return
		}
		if req.TeacherID == "" && req.StudentID == "" {
			req.StudentID = student.ID
		}
		if req.StudentID != student.ID || req.TeacherID != "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "students may only ask about their own attendance"))
			return
		}
	}

	answer, err := h.service.Ask(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, answer, nil)
}
