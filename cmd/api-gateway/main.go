package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/uh2c-dev/memoire-api/api/swagger"
	"github.com/uh2c-dev/memoire-api/internal/handler"
	"github.com/uh2c-dev/memoire-api/internal/middleware"
	"github.com/uh2c-dev/memoire-api/internal/repository"
	"github.com/uh2c-dev/memoire-api/internal/service"
	"github.com/uh2c-dev/memoire-api/pkg/cache"
	"github.com/uh2c-dev/memoire-api/pkg/config"
	"github.com/uh2c-dev/memoire-api/pkg/database"
	"github.com/uh2c-dev/memoire-api/pkg/export"
	"github.com/uh2c-dev/memoire-api/pkg/jobs"
	"github.com/uh2c-dev/memoire-api/pkg/logger"
	corsmiddleware "github.com/uh2c-dev/memoire-api/pkg/middleware/cors"
	reqidmiddleware "github.com/uh2c-dev/memoire-api/pkg/middleware/requestid"
	"github.com/uh2c-dev/memoire-api/pkg/storage"
)

// @title Memoire Workflow API
// @version 1.0.0
// @description Thesis approval workflow for themes, documents, meeting reports, plagiarism checks, and jury decisions
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
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck

	minutesStore, err := storage.NewLocalStorage(cfg.Minutes.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare minutes storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Minutes.SignedURLSecret, cfg.Minutes.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	themeRepo := repository.NewThemeRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	reportRepo := repository.NewMeetingReportRepository(db)
	plagiarismRepo := repository.NewPlagiarismRepository(db)
	juryRepo := repository.NewJuryRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := service.NewValidator()
	metrics := service.NewMetricsService()

	dispatcher := service.NewDispatcher(notificationRepo, metrics, logr, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		BufferSize: cfg.Notifications.BufferSize,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
		Logger:     logr,
	})
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "memoire-api",
		Audience:           []string{"memoire-clients"},
	})
	assignmentSvc := service.NewAssignmentService(assignmentRepo, userRepo, cacheRepo,
		cfg.Assignments.CacheTTL, dispatcher, userRepo, validate, metrics, logr)
	themeSvc := service.NewThemeService(themeRepo, assignmentSvc, dispatcher, userRepo, validate, metrics, logr)
	documentSvc := service.NewDocumentService(documentRepo, themeRepo, assignmentSvc,
		dispatcher, userRepo, validate, metrics, logr)
	reportSvc := service.NewReportService(reportRepo, themeRepo, userRepo, assignmentSvc,
		dispatcher, userRepo, validate, metrics, logr)
	settingsSvc := service.NewSettingsService(settingsRepo, cfg.Plagiarism.DefaultThreshold, userRepo, logr)
	plagiarismSvc := service.NewPlagiarismService(plagiarismRepo, documentRepo, settingsSvc,
		assignmentSvc, dispatcher, userRepo, validate, metrics, logr)
	jurySvc := service.NewJuryService(juryRepo, themeRepo, documentRepo, plagiarismRepo, userRepo,
		export.NewMinutesExporter(), minutesStore, signer, dispatcher, userRepo, validate, metrics, logr)
	notificationSvc := service.NewNotificationService(notificationRepo, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.RegisterRoutes(r, cfg.APIPrefix, authSvc, userRepo, handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		Themes:        handler.NewThemeHandler(themeSvc),
		Documents:     handler.NewDocumentHandler(documentSvc),
		Reports:       handler.NewMeetingReportHandler(reportSvc),
		Plagiarism:    handler.NewPlagiarismHandler(plagiarismSvc),
		Jury:          handler.NewJuryHandler(jurySvc, signer, minutesStore),
		Assignments:   handler.NewAssignmentHandler(assignmentSvc),
		Notifications: handler.NewNotificationHandler(notificationSvc),
		Settings:      handler.NewSettingsHandler(settingsSvc),
	})

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Sugar().Infow("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Sugar().Errorw("forced shutdown", "error", err)
	}
}
