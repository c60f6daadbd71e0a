package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/project-review-api/api/swagger"
	"github.com/noah-isme/project-review-api/internal/handler"
	"github.com/noah-isme/project-review-api/internal/middleware"
	"github.com/noah-isme/project-review-api/internal/models"
	"github.com/noah-isme/project-review-api/internal/repository"
	"github.com/noah-isme/project-review-api/internal/service"
	"github.com/noah-isme/project-review-api/pkg/cache"
	"github.com/noah-isme/project-review-api/pkg/config"
	"github.com/noah-isme/project-review-api/pkg/database"
	"github.com/noah-isme/project-review-api/pkg/jobs"
	"github.com/noah-isme/project-review-api/pkg/logger"
	"github.com/noah-isme/project-review-api/pkg/mailer"
	corsmiddleware "github.com/noah-isme/project-review-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/project-review-api/pkg/middleware/requestid"
	"github.com/noah-isme/project-review-api/pkg/storage"
)

// @title Project Review API
// @version 1.0.0
// @description Academic project tracking: submissions, review workflow, grades, comments and metrics
// @BasePath /api/v1
// @schemes http
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, metrics cache disabled", "error", err)
		redisClient = nil
	}

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}

	telemetry := service.NewTelemetryService()

	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, telemetry, cfg.Metrics.CacheTTL, logr, cfg.Metrics.CacheEnabled && redisClient != nil)

	projectRepo := repository.NewProjectRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	metricsRepo := repository.NewMetricsRepository(db)
	userRepo := repository.NewUserRepository(db)

	var notifier mailer.Notifier
	switch cfg.Mail.Backend {
	case "sendgrid":
		notifier = mailer.NewSendGridNotifier(cfg.Mail.APIKey, cfg.Mail.FromName, cfg.Mail.FromEmail, logr)
	default:
		notifier = mailer.NewConsoleNotifier(logr)
	}

	notifyQueue := jobs.NewQueue("comment-notifications", func(ctx context.Context, job jobs.Job) error {
		notification, ok := job.Payload.(mailer.CommentNotification)
		if !ok {
			return fmt.Errorf("unexpected payload type for job %s", job.ID)
		}
		if err := notifier.NotifyCommentCreated(ctx, notification); err != nil {
			telemetry.RecordNotification(false)
			return err
		}
		telemetry.RecordNotification(true)
		return nil
	}, jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		MaxRetries: cfg.Notify.MaxRetries,
		RetryDelay: cfg.Notify.RetryDelay,
		Logger:     logr,
	})
	notifyQueue.Start(context.Background())
	defer notifyQueue.Stop()

	authSvc := service.NewAuthService(userRepo, nil, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "project-review-api",
	})
	metricsSvc := service.NewStudentMetricsService(metricsRepo, cacheSvc, logr)
	projectSvc := service.NewProjectService(projectRepo, metricsSvc, nil, logr, cfg.Uploads.AllowedExtensions)
	commentSvc := service.NewCommentService(commentRepo, projectRepo, userRepo, notifier, notifyQueue, telemetry, nil, logr)
	exportSvc := service.NewExportService(projectRepo, metricsRepo, exportStore, cfg.Exports.ResultTTL, logr, nil, nil)

	authHandler := handler.NewAuthHandler(authSvc)
	projectHandler := handler.NewProjectHandler(projectSvc, exportSvc)
	commentHandler := handler.NewCommentHandler(commentSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, exportSvc, telemetry)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Telemetry(telemetry))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(telemetry.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	authed := api.Group("")
	authed.Use(middleware.JWT(authSvc))

	authed.GET("/projects", projectHandler.List)
	authed.POST("/projects", middleware.RequireRoles(models.RoleStudent), projectHandler.Create)
	authed.GET("/projects/export", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), projectHandler.ExportCSV)
	authed.GET("/projects/:id", projectHandler.Get)
	authed.PUT("/projects/:id", projectHandler.Update)
	authed.PATCH("/projects/:id/state", projectHandler.ChangeState)
	authed.DELETE("/projects/:id", projectHandler.Delete)

	authed.GET("/projects/:id/comments", commentHandler.List)
	authed.POST("/projects/:id/comments", commentHandler.Create)
	authed.GET("/comments/recent", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), commentHandler.Recent)

	authed.GET("/students/:id/average", middleware.RBAC(string(models.RoleTeacher), string(models.RoleAdmin), "SELF"), metricsHandler.StudentAverage)
	authed.GET("/students/:id/metrics", middleware.RBAC(string(models.RoleTeacher), string(models.RoleAdmin), "SELF"), metricsHandler.StudentMetrics)
	authed.GET("/metrics/ranking", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), metricsHandler.Ranking)
	authed.GET("/metrics/ranking/export", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), metricsHandler.ExportRanking)
	authed.GET("/metrics/statistics", middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin), metricsHandler.GlobalStatistics)
	authed.GET("/metrics/system", middleware.RequireRoles(models.RoleAdmin), metricsHandler.Telemetry)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
