package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/lms-api/api/swagger"
	"github.com/noah-isme/lms-api/internal/handler"
	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/repository"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/internal/tenancy"
	"github.com/noah-isme/lms-api/pkg/cache"
	"github.com/noah-isme/lms-api/pkg/config"
	"github.com/noah-isme/lms-api/pkg/database"
	"github.com/noah-isme/lms-api/pkg/jobs"
	"github.com/noah-isme/lms-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/lms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/lms-api/pkg/middleware/requestid"
	"github.com/noah-isme/lms-api/pkg/storage"
)

// @title LMS API
// @version 1.0.0
// @description Multi-tenant learning management backend
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, cache disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	tenantRepo := repository.NewTenantRepository(db)
	clientRepo := repository.NewClientRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	programRepo := repository.NewProgramRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	quizRepo := repository.NewQuizRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	analyticsRepo := repository.NewAnalyticsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()

	// Services.
	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.TTL, logr, cfg.Cache.Enabled && redisClient != nil)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
		Audience:           cfg.JWT.Audience,
		SingleSession:      cfg.JWT.SingleSession,
	})

	mediaSigner := storage.NewSignedURLSigner(cfg.Media.SignedURLSecret, cfg.Media.SignedURLTTL)

	tenantSvc := service.NewTenantService(tenantRepo, validate, logr)
	userSvc := service.NewUserService(userRepo, validate, logr)
	clientSvc := service.NewClientService(clientRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	teacherSvc := service.NewTeacherService(teacherRepo, validate, logr)
	programSvc := service.NewProgramService(programRepo, validate, logr)
	courseSvc := service.NewCourseService(courseRepo, mediaSigner, validate, logr)
	quizSvc := service.NewQuizService(quizRepo, courseRepo, validate, logr)

	notificationSvc := service.NewNotificationService(notificationRepo, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	}, logr)
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, studentRepo, courseRepo, notificationSvc, validate, logr)
	analyticsSvc := service.NewAnalyticsService(analyticsRepo, cacheSvc, metricsSvc, logr)

	exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(analyticsRepo, enrollmentRepo, userRepo, exportStorage, exportSigner, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.ResultTTL,
	}, logr, nil, nil)

	go runExportCleanup(ctx, exportSvc, cfg.Exports.CleanupInterval, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	tenantHandler := handler.NewTenantHandler(tenantSvc)
	userHandler := handler.NewUserHandler(userSvc)
	clientHandler := handler.NewClientHandler(clientSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	teacherHandler := handler.NewTeacherHandler(teacherSvc)
	programHandler := handler.NewProgramHandler(programSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	quizHandler := handler.NewQuizHandler(quizSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r, cfg, authSvc,
		authHandler, tenantHandler, userHandler, clientHandler, studentHandler,
		teacherHandler, programHandler, courseHandler, quizHandler,
		enrollmentHandler, notificationHandler, analyticsHandler, exportHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown incomplete", "error", err)
	}
}

func registerRoutes(r *gin.Engine, cfg *config.Config, authSvc *service.AuthService,
	auth *handler.AuthHandler, tenants *handler.TenantHandler, users *handler.UserHandler,
	clients *handler.ClientHandler, students *handler.StudentHandler, teachers *handler.TeacherHandler,
	programs *handler.ProgramHandler, courses *handler.CourseHandler, quizzes *handler.QuizHandler,
	enrollments *handler.EnrollmentHandler, notifications *handler.NotificationHandler,
	analytics *handler.AnalyticsHandler, exports *handler.ExportHandler) {

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", auth.Login)
	api.POST("/auth/refresh", auth.Refresh)

	// Download grants carry their own HMAC signature, so the route stays
	// outside the JWT group.
	api.GET("/exports/:token", exports.Download)

	authed := api.Group("", middleware.JWT(authSvc))

	authed.POST("/auth/logout", auth.Logout)
	authed.POST("/auth/change-password", auth.ChangePassword)
	authed.GET("/auth/me", auth.Me)

	admin := middleware.RequireRoles(tenancy.RoleSuperAdmin, tenancy.RoleTenantAdmin)
	contentWriter := middleware.RequireRoles(tenancy.RoleSuperAdmin, tenancy.RoleTenantAdmin, tenancy.RoleTeacher)
	superOnly := middleware.RequireRoles(tenancy.RoleSuperAdmin)

	tenantRoutes := authed.Group("/tenants", superOnly)
	tenantRoutes.GET("", tenants.List)
	tenantRoutes.POST("", tenants.Create)
	tenantRoutes.GET("/:id", tenants.Get)
	tenantRoutes.PUT("/:id", tenants.Update)
	tenantRoutes.DELETE("/:id", tenants.Delete)

	userRoutes := authed.Group("/users")
	userRoutes.GET("", admin, users.List)
	userRoutes.POST("", admin, users.Create)
	userRoutes.GET("/:id", middleware.RBAC("SUPER_ADMIN", "TENANT_ADMIN", "SELF"), users.Get)
	userRoutes.PUT("/:id", admin, users.Update)
	userRoutes.DELETE("/:id", admin, users.Delete)

	clientRoutes := authed.Group("/clients")
	clientRoutes.GET("", clients.List)
	clientRoutes.POST("", admin, clients.Create)
	clientRoutes.GET("/:id", clients.Get)
	clientRoutes.PUT("/:id", admin, clients.Update)
	clientRoutes.DELETE("/:id", admin, clients.Delete)

	studentRoutes := authed.Group("/students")
	studentRoutes.GET("", students.List)
	studentRoutes.POST("", admin, students.Create)
	studentRoutes.GET("/:id", students.Get)
	studentRoutes.PUT("/:id", admin, students.Update)
	studentRoutes.DELETE("/:id", admin, students.Delete)

	teacherRoutes := authed.Group("/teachers")
	teacherRoutes.GET("", teachers.List)
	teacherRoutes.POST("", admin, teachers.Create)
	teacherRoutes.GET("/:id", teachers.Get)
	teacherRoutes.PUT("/:id", admin, teachers.Update)
	teacherRoutes.DELETE("/:id", admin, teachers.Delete)

	programRoutes := authed.Group("/programs")
	programRoutes.GET("", programs.List)
	programRoutes.POST("", admin, programs.Create)
	programRoutes.GET("/:id", programs.Get)
	programRoutes.PUT("/:id", admin, programs.Update)
	programRoutes.DELETE("/:id", admin, programs.Delete)
	programRoutes.GET("/:id/specializations", programs.ListSpecializations)
	programRoutes.POST("/:id/specializations", admin, programs.CreateSpecialization)

	authed.PUT("/specializations/:id", admin, programs.UpdateSpecialization)
	authed.DELETE("/specializations/:id", admin, programs.DeleteSpecialization)

	courseRoutes := authed.Group("/courses")
	courseRoutes.GET("", courses.List)
	courseRoutes.POST("", contentWriter, courses.Create)
	courseRoutes.GET("/:id", courses.Get)
	courseRoutes.PUT("/:id", contentWriter, courses.Update)
	courseRoutes.DELETE("/:id", admin, courses.Delete)
	courseRoutes.POST("/:id/modules", contentWriter, courses.AddModule)

	authed.POST("/modules/:id/topics", contentWriter, courses.AddTopic)
	authed.POST("/topics/:id/videos", contentWriter, courses.AddVideo)
	authed.GET("/videos/:id/playback", courses.Playback)

	quizRoutes := authed.Group("/quizzes")
	quizRoutes.GET("", quizzes.List)
	quizRoutes.POST("", contentWriter, quizzes.Create)
	quizRoutes.GET("/:id", quizzes.Get)
	quizRoutes.PUT("/:id", contentWriter, quizzes.Update)
	quizRoutes.DELETE("/:id", admin, quizzes.Delete)
	quizRoutes.POST("/:id/questions", contentWriter, quizzes.AddQuestion)

	enrollmentRoutes := authed.Group("/enrollments")
	enrollmentRoutes.GET("", enrollments.List)
	enrollmentRoutes.POST("", contentWriter, enrollments.Enroll)
	enrollmentRoutes.GET("/:id", enrollments.Get)
	enrollmentRoutes.PUT("/:id", contentWriter, enrollments.Update)
	enrollmentRoutes.DELETE("/:id", admin, enrollments.Delete)

	notificationRoutes := authed.Group("/notifications")
	notificationRoutes.GET("", notifications.List)
	notificationRoutes.GET("/unread-count", notifications.UnreadCount)
	notificationRoutes.POST("/:id/read", notifications.MarkRead)

	analyticsRoutes := authed.Group("/analytics", contentWriter)
	analyticsRoutes.GET("/overview", analytics.Overview)
	analyticsRoutes.GET("/engagement", analytics.Engagement)
	analyticsRoutes.GET("/system", middleware.RequireRoles(tenancy.RoleSuperAdmin), analytics.System)

	authed.POST("/exports", admin, exports.Generate)
}

func runExportCleanup(ctx context.Context, exports *service.ExportService, interval time.Duration, logr *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := exports.Cleanup(0)
			if err != nil {
				logr.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				logr.Info("expired exports removed", zap.Int("count", len(removed)))
			}
		}
	}
}
