package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/schooldesk/attendance-api/internal/handler"
	"github.com/schooldesk/attendance-api/internal/middleware"
	"github.com/schooldesk/attendance-api/internal/models"
	"github.com/schooldesk/attendance-api/internal/repository"
	"github.com/schooldesk/attendance-api/internal/service"
	"github.com/schooldesk/attendance-api/pkg/config"
	"github.com/schooldesk/attendance-api/pkg/logger"
	corsmiddleware "github.com/schooldesk/attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/schooldesk/attendance-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler wired by New.
type Handlers struct {
	Auth        *handler.AuthHandler
	Users       *handler.UserHandler
	Departments *handler.DepartmentHandler
	Courses     *handler.CourseHandler
	Teachers    *handler.TeacherHandler
	Students    *handler.StudentHandler
	Classes     *handler.ClassHandler
	Enrollments *handler.EnrollmentHandler
	Sessions    *handler.SessionHandler
	Attendance  *handler.AttendanceHandler
	Dashboard   *handler.DashboardHandler
	Assistant   *handler.AssistantHandler
	Realtime    *handler.RealtimeHandler
	Reports     *handler.ReportHandler
	Metrics     *handler.MetricsHandler
}

// Dependencies carries the cross-cutting pieces the router needs beyond
// the handlers themselves.
type Dependencies struct {
	Config      *config.Config
	Logger      *zap.Logger
	AuthService *service.AuthService
	Metrics     *service.MetricsService
	UserRepo    *repository.UserRepository
}

const (
	roleAdmin   = string(models.RoleAdmin)
	roleTeacher = string(models.RoleTeacher)
	roleStudent = string(models.RoleStudent)
)

// New builds the gin engine with all routes and middleware attached.
func New(h Handlers, deps Dependencies) *gin.Engine {
	if deps.Config.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(corsmiddleware.New(deps.Config.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	if deps.Config.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	auth := middleware.JWT(deps.AuthService)

	api := r.Group(deps.Config.APIPrefix)
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/login", h.Auth.Login)
			authGroup.POST("/refresh", h.Auth.Refresh)
			authGroup.POST("/logout", auth, h.Auth.Logout)
			authGroup.POST("/change-password", auth, h.Auth.ChangePassword)
			authGroup.GET("/me", auth, h.Auth.Me)
		}

		users := api.Group("/users", auth, middleware.RBAC(roleAdmin))
		{
			users.GET("", h.Users.List)
			users.POST("", middleware.Audit(deps.UserRepo, models.AuditActionUserCreate, "users"), h.Users.Register)
			users.GET("/:id", h.Users.Get)
			users.PATCH("/:id/active", h.Users.SetActive)
		}

		departments := api.Group("/departments", auth)
		{
			departments.GET("", h.Departments.List)
			departments.GET("/:id", h.Departments.Get)
			departments.POST("", middleware.RBAC(roleAdmin), h.Departments.Create)
			departments.PUT("/:id", middleware.RBAC(roleAdmin), h.Departments.Update)
			departments.DELETE("/:id", middleware.RBAC(roleAdmin), h.Departments.Delete)
		}

		courses := api.Group("/courses", auth)
		{
			courses.GET("", h.Courses.List)
			courses.GET("/:id", h.Courses.Get)
			courses.POST("", middleware.RBAC(roleAdmin), h.Courses.Create)
			courses.PUT("/:id", middleware.RBAC(roleAdmin), h.Courses.Update)
			courses.DELETE("/:id", middleware.RBAC(roleAdmin), h.Courses.Delete)
		}

		teachers := api.Group("/teachers", auth)
		{
			teachers.GET("", middleware.RBAC(roleAdmin, roleTeacher), h.Teachers.List)
			teachers.GET("/:id", middleware.RBAC(roleAdmin, roleTeacher), h.Teachers.Get)
			teachers.PUT("/:id", middleware.RBAC(roleAdmin), h.Teachers.Update)
			teachers.DELETE("/:id", middleware.RBAC(roleAdmin), h.Teachers.Delete)
		}

		students := api.Group("/students", auth)
		{
			students.GET("", middleware.RBAC(roleAdmin, roleTeacher), h.Students.List)
			students.GET("/:id", h.Students.Get)
			students.PUT("/:id", middleware.RBAC(roleAdmin), h.Students.Update)
			students.DELETE("/:id", middleware.RBAC(roleAdmin), h.Students.Delete)
			students.GET("/:id/attendance", h.Students.History)
			students.GET("/:id/attendance/summary", h.Students.Summary)
		}

		classes := api.Group("/classes", auth)
		{
			classes.GET("", h.Classes.List)
			classes.GET("/:id", h.Classes.Get)
			classes.GET("/:id/roster", middleware.RBAC(roleAdmin, roleTeacher), h.Classes.Roster)
			classes.POST("", middleware.RBAC(roleAdmin), h.Classes.Create)
			classes.PUT("/:id", middleware.RBAC(roleAdmin), h.Classes.Update)
			classes.DELETE("/:id", middleware.RBAC(roleAdmin), h.Classes.Delete)
		}

		enrollments := api.Group("/enrollments", auth)
		{
			enrollments.GET("", middleware.RBAC(roleAdmin, roleTeacher), h.Enrollments.List)
			enrollments.POST("", middleware.RBAC(roleAdmin), middleware.Audit(deps.UserRepo, models.AuditActionEnroll, "enrollments"), h.Enrollments.Enroll)
			enrollments.DELETE("/:id", middleware.RBAC(roleAdmin), middleware.Audit(deps.UserRepo, models.AuditActionUnenroll, "enrollments"), h.Enrollments.Unenroll)
		}

		sessions := api.Group("/sessions", auth)
		{
			sessions.GET("", middleware.RBAC(roleAdmin, roleTeacher), h.Sessions.List)
			sessions.GET("/:id", middleware.RBAC(roleAdmin, roleTeacher), h.Sessions.Get)
			sessions.POST("", middleware.RBAC(roleAdmin, roleTeacher), middleware.Audit(deps.UserRepo, models.AuditActionSessionStart, "sessions"), h.Sessions.Start)
			sessions.POST("/:id/end", middleware.RBAC(roleAdmin, roleTeacher), middleware.Audit(deps.UserRepo, models.AuditActionSessionEnd, "sessions"), h.Sessions.End)
			sessions.DELETE("/:id", middleware.RBAC(roleAdmin), middleware.Audit(deps.UserRepo, models.AuditActionSessionDelete, "sessions"), h.Sessions.Delete)
			sessions.GET("/:id/attendance", middleware.RBAC(roleAdmin, roleTeacher), h.Attendance.SessionRecords)
		}

		attendance := api.Group("/attendance", auth, middleware.RBAC(roleAdmin, roleTeacher))
		{
			attendance.POST("", middleware.Audit(deps.UserRepo, models.AuditActionAttendanceMark, "attendance"), h.Attendance.Mark)
			attendance.PUT("/:id", middleware.Audit(deps.UserRepo, models.AuditActionAttendanceMark, "attendance"), h.Attendance.Update)
		}

		dashboard := api.Group("/dashboard", auth, middleware.WithResponseMeta())
		{
			dashboard.GET("/admin", middleware.RBAC(roleAdmin), h.Dashboard.Admin)
			dashboard.GET("/teacher", middleware.RBAC(roleTeacher), h.Dashboard.Teacher)
			dashboard.GET("/student", middleware.RBAC(roleAdmin, roleStudent), h.Dashboard.Student)
		}

		if h.Assistant != nil {
			api.POST("/assistant/ask", auth, h.Assistant.Ask)
		}

		if h.Realtime != nil {
			api.GET("/realtime/classes", middleware.TokenFromQuery(deps.AuthService), h.Realtime.Subscribe)
		}

		if h.Reports != nil {
			reports := api.Group("/reports")
			{
				reports.GET("", auth, middleware.RBAC(roleAdmin, roleTeacher), h.Reports.ListMine)
				reports.POST("", auth, middleware.RBAC(roleAdmin, roleTeacher), h.Reports.Create)
				reports.GET("/:id", auth, middleware.RBAC(roleAdmin, roleTeacher), h.Reports.Get)
				// download authorizes via the signed token
				reports.GET("/download/:token", h.Reports.Download)
			}
		}
	}

	return r
}
