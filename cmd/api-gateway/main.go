package main

import (
	"context"
	"errors"
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

	_ "github.com/noah-isme/giaoly-api/api/swagger"
	"github.com/noah-isme/giaoly-api/internal/handler"
	"github.com/noah-isme/giaoly-api/internal/middleware"
	"github.com/noah-isme/giaoly-api/internal/repository"
	"github.com/noah-isme/giaoly-api/internal/service"
	"github.com/noah-isme/giaoly-api/pkg/cache"
	"github.com/noah-isme/giaoly-api/pkg/calendar"
	"github.com/noah-isme/giaoly-api/pkg/config"
	"github.com/noah-isme/giaoly-api/pkg/database"
	"github.com/noah-isme/giaoly-api/pkg/export"
	"github.com/noah-isme/giaoly-api/pkg/jobs"
	"github.com/noah-isme/giaoly-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/giaoly-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/giaoly-api/pkg/middleware/requestid"
	"github.com/noah-isme/giaoly-api/pkg/provisioning"
	"github.com/noah-isme/giaoly-api/pkg/storage"
)

// @title Giáo Lý API
// @version 1.0.0
// @description Parish catechism administration: classes, attendance sessions, Mass attendance, scores, reports and learning materials.
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, report caching disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	location := calendar.LoadLocation(cfg.Sessions.Timezone)
	validate := validator.New()

	users := repository.NewUserRepository(db)
	years := repository.NewAcademicYearRepository(db)
	classes := repository.NewClassRepository(db)
	catechists := repository.NewCatechistRepository(db)
	students := repository.NewStudentRepository(db)
	sessions := repository.NewAttendanceSessionRepository(db)
	records := repository.NewAttendanceRecordRepository(db)
	massRecords := repository.NewMassAttendanceRepository(db)
	scores := repository.NewScoreRepository(db)
	materials := repository.NewMaterialRepository(db)
	dashboardCounts := repository.NewDashboardRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled && redisClient != nil)

	authSvc := service.NewAuthService(users, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	if _, err := authSvc.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword, cfg.Bootstrap.AdminName); err != nil {
		logr.Fatal("failed to bootstrap admin account", zap.Error(err))
	}
	yearSvc := service.NewAcademicYearService(years, validate, logr, cacheSvc)
	classSvc := service.NewClassService(classes, catechists, years, validate, logr, cacheSvc)
	catechistSvc := service.NewCatechistService(catechists, validate, logr)
	studentSvc := service.NewStudentService(students, classes, validate, logr, cacheSvc)

	sessionSvc := service.NewSessionService(service.SessionServiceParams{
		Sessions:  sessions,
		Records:   records,
		Students:  students,
		Classes:   classes,
		Cache:     cacheSvc,
		Metrics:   metricsSvc,
		Validator: validate,
		Logger:    logr,
		Config: service.SessionServiceConfig{
			Location:   location,
			MaxAge:     cfg.Sessions.MaxAge,
			CheckInURL: cfg.Sessions.CheckInURL,
		},
	})
	reaper, err := sessionSvc.StartReaper(cfg.Sessions.ReaperCron)
	if err != nil {
		logr.Fatal("failed to schedule session reaper", zap.Error(err))
	}

	recordSvc := service.NewAttendanceRecordService(records, classes, students, cacheSvc, validate, logr)
	massSvc := service.NewMassAttendanceService(massRecords, students, classes, students, cacheSvc, validate, logr, location)
	scoreSvc := service.NewScoreService(scores, classes, students, cacheSvc, validate, logr)

	reportSvc := service.NewReportService(service.ReportServiceParams{
		Classes:    classes,
		Students:   students,
		Attendance: records,
		Mass:       massRecords,
		Scores:     scores,
		Access:     classes,
		Cache:      cacheSvc,
		Logger:     logr,
		Config:     service.ReportServiceConfig{CacheTTL: cfg.Reports.CacheTTL},
	})
	exportSvc := service.NewExportService(service.ExportServiceParams{
		Classes:    classes,
		Students:   students,
		Attendance: records,
		Mass:       massRecords,
		Access:     classes,
		CSV:        export.NewCSVExporter(),
		PDF:        export.NewPDFExporter(),
		Location:   location,
		Logger:     logr,
	})
	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Counter: dashboardCounts,
		Years:   years,
		Cache:   cacheSvc,
		Logger:  logr,
		Config:  service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	importSvc := service.NewImportService(years, classes, catechists, studentSvc, cacheSvc, logr)

	objectStore, err := storage.NewLocalStorage(cfg.Materials.StorageDir)
	if err != nil {
		logr.Fatal("failed to prepare material storage", zap.Error(err))
	}
	materialSvc := service.NewMaterialService(
		materials,
		objectStore,
		storage.NewSignedURLSigner(cfg.Materials.SignedURLSecret, cfg.Materials.SignedURLTTL),
		classes,
		students,
		validate,
		logr,
		service.MaterialServiceConfig{
			Bucket:       cfg.Materials.Bucket,
			MaxFileSize:  cfg.Materials.MaxFileSizeBytes,
			AllowedMIMEs: cfg.Materials.AllowedMIMEs,
			APIPrefix:    cfg.APIPrefix,
		},
	)

	accountSvc := service.NewAccountService(service.AccountServiceParams{
		Provisioner: provisioning.NewClient(provisioning.Config{
			CatechistURL: cfg.Accounts.CatechistURL,
			StudentURL:   cfg.Accounts.StudentURL,
			ServiceKey:   cfg.Accounts.ServiceKey,
			Timeout:      cfg.Accounts.Timeout,
		}, nil),
		Catechists: catechists,
		Students:   students,
		Metrics:    metricsSvc,
		Validator:  validate,
		Logger:     logr,
	})
	provisionQueue := jobs.NewQueue("accounts", accountSvc.HandleJob, jobs.QueueConfig{
		Workers:       cfg.Accounts.BulkWorkers,
		BufferSize:    512,
		MaxRetries:    cfg.Accounts.BulkRetries,
		RetryDelay:    2 * time.Second,
		MaxRetryDelay: time.Minute,
		OnGiveUp:      accountSvc.HandleGiveUp,
		Logger:        logr,
	})
	provisionQueue.Start(ctx)
	accountSvc.AttachQueue(provisionQueue)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(metricsSvc, map[string]handler.ReadinessCheck{
		"database": func(ctx context.Context) error { return database.Ping(ctx, db) },
		"redis":    cacheRepo.Ping,
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Register(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:          handler.NewAuthHandler(authSvc),
		AcademicYears: handler.NewAcademicYearHandler(yearSvc),
		Classes:       handler.NewClassHandler(classSvc),
		Catechists:    handler.NewCatechistHandler(catechistSvc),
		Students:      handler.NewStudentHandler(studentSvc),
		Sessions:      handler.NewSessionHandler(sessionSvc),
		Attendance:    handler.NewAttendanceHandler(recordSvc, massSvc),
		Scores:        handler.NewScoreHandler(scoreSvc),
		Reports:       handler.NewReportHandler(reportSvc, exportSvc),
		Dashboard:     handler.NewDashboardHandler(dashboardSvc),
		Imports:       handler.NewImportHandler(importSvc),
		Materials:     handler.NewMaterialHandler(materialSvc),
		Accounts:      handler.NewAccountHandler(accountSvc),
		Metrics:       metricsHandler,
	}, middleware.JWT(authSvc))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
	if reaper != nil {
		<-reaper.Stop().Done()
	}
	provisionQueue.Stop()
}
