package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/schooldesk/attendance-api/api/swagger"
	"github.com/schooldesk/attendance-api/internal/handler"
	"github.com/schooldesk/attendance-api/internal/repository"
	"github.com/schooldesk/attendance-api/internal/router"
	"github.com/schooldesk/attendance-api/internal/service"
	"github.com/schooldesk/attendance-api/pkg/cache"
	"github.com/schooldesk/attendance-api/pkg/config"
	"github.com/schooldesk/attendance-api/pkg/database"
	"github.com/schooldesk/attendance-api/pkg/logger"
	"github.com/schooldesk/attendance-api/pkg/storage"
)

// @title SchoolDesk Attendance API
// @version 1.0.0
// @description Attendance tracking for block-scheduled classes
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard caching disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// repositories
	userRepo := repository.NewUserRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	classRepo := repository.NewClassRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	dashboardRepo := repository.NewDashboardRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// cross-cutting services
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, redisClient != nil)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})

	hub := service.NewRealtimeHub(metrics, cfg.Realtime.SendBufferSize, logr)
	if cfg.Realtime.Enabled {
		go hub.Run(ctx)
	}

	// domain services
	userSvc := service.NewUserService(userRepo, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, departmentRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	classSvc := service.NewClassService(classRepo, teacherRepo, courseRepo, hub, cacheSvc, validate, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, classRepo, validate, logr)
	sessionSvc := service.NewSessionService(sessionRepo, classRepo, teacherRepo, metrics, validate, logr)
	attendanceSvc := service.NewAttendanceService(attendanceRepo, sessionRepo, enrollmentRepo, metrics, validate, logr)
	dashboardSvc := service.NewDashboardService(dashboardRepo, attendanceRepo, cacheSvc, cfg.Dashboard.LowAttendanceThreshold, cfg.Dashboard.CacheTTL, logr)

	var assistantSvc *service.AssistantService
	if cfg.Assistant.APIKey != "" {
		assistantSvc = service.NewAssistantService(dashboardRepo, metrics, nil, service.AssistantConfig{
			APIKey:          cfg.Assistant.APIKey,
			BaseURL:         cfg.Assistant.BaseURL,
			Model:           cfg.Assistant.Model,
			Timeout:         cfg.Assistant.Timeout,
			MaxOutputTokens: cfg.Assistant.MaxOutputTokens,
			Temperature:     cfg.Assistant.Temperature,
		}, validate, logr)
	} else {
		logr.Info("assistant endpoint disabled, no API key configured")
	}

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare report storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportRepo := repository.NewReportRepository(db)
		reportSvc = service.NewReportService(reportRepo, sessionRepo, attendanceRepo, classRepo, store, signer, metrics, service.ReportQueueConfig{
			Concurrency: cfg.Reports.WorkerConcurrency,
			Retries:     cfg.Reports.WorkerRetries,
		}, validate, logr)
		reportSvc.Start(ctx)
		defer reportSvc.Stop()
	}

	handlers := router.Handlers{
		Auth:        handler.NewAuthHandler(authSvc),
		Users:       handler.NewUserHandler(userSvc),
		Departments: handler.NewDepartmentHandler(departmentSvc),
		Courses:     handler.NewCourseHandler(courseSvc),
		Teachers:    handler.NewTeacherHandler(teacherSvc),
		Students:    handler.NewStudentHandler(studentSvc, attendanceSvc),
		Classes:     handler.NewClassHandler(classSvc, enrollmentSvc),
		Enrollments: handler.NewEnrollmentHandler(enrollmentSvc),
		Sessions:    handler.NewSessionHandler(sessionSvc),
		Attendance:  handler.NewAttendanceHandler(attendanceSvc),
		Dashboard:   handler.NewDashboardHandler(dashboardSvc, teacherSvc, studentSvc),
		Metrics:     handler.NewMetricsHandler(metrics),
	}
	if assistantSvc != nil {
		handlers.Assistant = handler.NewAssistantHandler(assistantSvc, teacherSvc, studentSvc)
	}
	if cfg.Realtime.Enabled {
		handlers.Realtime = handler.NewRealtimeHandler(hub, cfg.CORS.AllowedOrigins, logr)
	}
	if reportSvc != nil {
		handlers.Reports = handler.NewReportHandler(reportSvc)
	}

	engine := router.New(handlers, router.Dependencies{
		Config:      cfg,
		Logger:      logr,
		AuthService: authSvc,
		Metrics:     metrics,
		UserRepo:    userRepo,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}
