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

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/edubridge-api/api/swagger"
	"github.com/noah-isme/edubridge-api/internal/handler"
	"github.com/noah-isme/edubridge-api/internal/middleware"
	"github.com/noah-isme/edubridge-api/internal/repository"
	"github.com/noah-isme/edubridge-api/internal/service"
	"github.com/noah-isme/edubridge-api/pkg/cache"
	"github.com/noah-isme/edubridge-api/pkg/config"
	"github.com/noah-isme/edubridge-api/pkg/database"
	"github.com/noah-isme/edubridge-api/pkg/jobs"
	"github.com/noah-isme/edubridge-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/edubridge-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edubridge-api/pkg/middleware/requestid"
	"github.com/noah-isme/edubridge-api/pkg/storage"
)

// @title EduBridge Portal API
// @version 1.0.0
// @description Classroom portal backend: attendance codes, chat, notes, announcements and calendar
// @BasePath /api/v1
// @schemes http https

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, attendance codes fall back to memory", "error", err)
		redisClient = nil
	}

	files, err := storage.NewLocalStorage(cfg.Notes.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to prepare note storage", "error", err)
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	noteRepo := repository.NewNoteRepository(db)
	announcementRepo := repository.NewAnnouncementRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)

	var codeStore service.AttendanceCodeStore = repository.NewMemoryCodeStore(cfg.Attendance.CodeTTLMargin)
	if redisClient != nil {
		codeStore = repository.NewRedisCodeStore(redisClient, cfg.Attendance.CodeTTLMargin)
	}

	cacheRepo := repository.NewCacheRepository(redisClient, "edubridge")
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Chat.ContactsCacheTTL, logr)

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "edubridge-api",
	})
	attendanceSvc := service.NewAttendanceService(codeStore, attendanceRepo, logr, metrics, service.AttendanceServiceConfig{
		MinCodeDuration: cfg.Attendance.MinCodeDuration,
		MaxCodeDuration: cfg.Attendance.MaxCodeDuration,
		CodeLength:      cfg.Attendance.CodeLength,
	})
	chatSvc := service.NewChatService(messageRepo, userRepo, cacheSvc, metrics, logr, service.ChatServiceConfig{
		MaxBodyLength:    cfg.Chat.MaxBodyLength,
		ContactsCacheTTL: cfg.Chat.ContactsCacheTTL,
	})
	noteSvc := service.NewNoteService(noteRepo, files, storage.NewSignedURLSigner(cfg.Notes.SignedURLSecret, cfg.Notes.SignedURLTTL),
		validate, logr, service.NoteServiceConfig{
			MaxFileSizeBytes: cfg.Notes.MaxFileSizeBytes,
			AllowedMIMEs:     cfg.Notes.AllowedMIMEs,
		}, jobs.QueueConfig{Workers: cfg.Notes.CleanupWorkers})
	announcementSvc := service.NewAnnouncementService(announcementRepo, cacheSvc, validate, logr)
	calendarSvc := service.NewCalendarService(calendarRepo, validate, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	noteSvc.StartCleanup(ctx)
	defer noteSvc.StopCleanup()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	chatHandler := handler.NewChatHandler(chatSvc)
	noteHandler := handler.NewNoteHandler(noteSvc)
	announcementHandler := handler.NewAnnouncementHandler(announcementSvc)
	calendarHandler := handler.NewCalendarHandler(calendarSvc)
	metricsHandler := handler.NewMetricsHandler(metrics)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.POST("/logout-all", middleware.JWT(authSvc), authHandler.LogoutAll)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	// Signed token downloads carry their own authorisation.
	api.GET("/notes/download", noteHandler.Download)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	attendance := protected.Group("/attendance")
	attendance.POST("/code", middleware.TeachersOnly(), attendanceHandler.IssueCode)
	attendance.POST("/submissions", attendanceHandler.Submit)
	attendance.GET("/records", attendanceHandler.ListRecords)
	attendance.GET("/export", middleware.TeachersOnly(), attendanceHandler.Export)

	chat := protected.Group("/chat")
	chat.GET("/messages", chatHandler.ListMessages)
	chat.POST("/messages", chatHandler.Send)
	chat.GET("/contacts", chatHandler.Contacts)

	notes := protected.Group("/notes")
	notes.GET("", noteHandler.List)
	notes.POST("", middleware.TeachersOnly(), noteHandler.Upload)
	notes.POST("/:id/download-link", noteHandler.SignedLink)
	notes.DELETE("/:id", noteHandler.Delete)

	announcements := protected.Group("/announcements")
	announcements.GET("", announcementHandler.List)
	announcements.POST("", middleware.TeachersOnly(), announcementHandler.Create)
	announcements.PUT("/:id", middleware.TeachersOnly(), announcementHandler.Update)
	announcements.DELETE("/:id", middleware.TeachersOnly(), announcementHandler.Delete)

	calendar := protected.Group("/calendar/events")
	calendar.GET("", calendarHandler.List)
	calendar.POST("", middleware.TeachersOnly(), calendarHandler.Create)
	calendar.PUT("/:id", middleware.TeachersOnly(), calendarHandler.Update)
	calendar.DELETE("/:id", middleware.TeachersOnly(), calendarHandler.Delete)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("forced shutdown", zap.Error(err))
	}
}
