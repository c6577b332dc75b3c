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

	_ "github.com/hrcore/leave-api/api/swagger"
	"github.com/hrcore/leave-api/internal/handler"
	"github.com/hrcore/leave-api/internal/middleware"
	"github.com/hrcore/leave-api/internal/models"
	"github.com/hrcore/leave-api/internal/repository"
	"github.com/hrcore/leave-api/internal/service"
	"github.com/hrcore/leave-api/pkg/cache"
	"github.com/hrcore/leave-api/pkg/config"
	"github.com/hrcore/leave-api/pkg/database"
	"github.com/hrcore/leave-api/pkg/jobs"
	"github.com/hrcore/leave-api/pkg/logger"
	corsmiddleware "github.com/hrcore/leave-api/pkg/middleware/cors"
	reqidmiddleware "github.com/hrcore/leave-api/pkg/middleware/requestid"
)

// @title Leave API
// @version 1.0.0
// @description Leave accounting and approval engine
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("database connection failed", "error", err)
	}
	defer db.Close()

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheSvc *service.CacheService
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		} else {
			cacheRepo := repository.NewCacheRepository(redisClient, logr)
			cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.BalanceTTL, logr, true)
			defer cacheRepo.Close() //nolint:errcheck
		}
	}
	if cacheSvc == nil {
		cacheSvc = service.NewCacheService(nil, metricsSvc, 0, logr, false)
	}

	categoryRepo := repository.NewCategoryRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	historyRepo := repository.NewHistoryRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	orgRepo := repository.NewOrgRepository(db)

	notificationSvc := service.NewNotificationService(
		service.NewLogNotifier(logr),
		employeeRepo,
		jobs.Options{
			Workers:    cfg.Notifications.Workers,
			BufferSize: cfg.Notifications.BufferSize,
			MaxRetries: cfg.Notifications.MaxRetries,
			RetryDelay: cfg.Notifications.RetryDelay,
		},
		logr,
		cfg.Notifications.Enabled,
	)

	authSvc := service.NewAuthService(service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     "leave-api",
	}, logr)
	categorySvc := service.NewCategoryService(categoryRepo, validate, logr)
	balanceSvc := service.NewBalanceService(balanceRepo, employeeRepo, cacheSvc, logr, cfg.Leave.BalanceYearWindow, cfg.Cache.BalanceTTL)
	requestSvc := service.NewRequestService(requestRepo, categoryRepo, employeeRepo, historyRepo,
		notificationSvc, cacheSvc, metricsSvc, validate, logr, cfg.Leave.AllowOverdraft)
	rolloverSvc := service.NewRolloverService(balanceRepo, employeeRepo, categoryRepo,
		cacheSvc, metricsSvc, logr, cfg.Rollover.WorkerConcurrency)
	directorySvc := service.NewDirectoryService(orgRepo, employeeRepo, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	notificationSvc.Start(ctx)
	defer notificationSvc.Stop()

	requestHandler := handler.NewRequestHandler(requestSvc)
	balanceHandler := handler.NewBalanceHandler(balanceSvc, requestSvc)
	categoryHandler := handler.NewCategoryHandler(categorySvc)
	adminHandler := handler.NewAdminHandler(rolloverSvc)
	directoryHandler := handler.NewDirectoryHandler(directorySvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, db)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	requests := api.Group("/requests")
	{
		requests.POST("", middleware.DenyReadOnly(), requestHandler.Submit)
		requests.GET("", requestHandler.List)
		requests.GET("/:id", requestHandler.Get)
		requests.GET("/:id/history", requestHandler.History)
		requests.PUT("/:id/approve", middleware.DenyReadOnly(), requestHandler.Approve)
		requests.PUT("/:id/reject", middleware.DenyReadOnly(), requestHandler.Reject)
		requests.DELETE("/:id", middleware.DenyReadOnly(), requestHandler.Cancel)
	}

	api.GET("/org/units", directoryHandler.Units)
	api.GET("/org/units/:id", directoryHandler.Unit)
	api.GET("/org/units/:id/children", directoryHandler.UnitChildren)
	api.GET("/employees", directoryHandler.Employees)
	api.GET("/employees/:id", directoryHandler.Employee)
	api.GET("/employees/:id/approvers", directoryHandler.Approvers)

	api.GET("/balances", balanceHandler.My)
	api.GET("/employees/:id/balances", balanceHandler.ByEmployee)
	api.GET("/employees/:id/history", balanceHandler.EmployeeHistory)
	api.POST("/balances/:id/reset",
		middleware.RequireRoles(models.RoleAdmin, models.RoleHR), balanceHandler.Reset)
	api.GET("/balances/export",
		middleware.RequireRoles(models.RoleAdmin, models.RoleHR, models.RoleAuditor), balanceHandler.Export)

	categories := api.Group("/categories")
	{
		categories.GET("", categoryHandler.List)
		categories.GET("/:id", categoryHandler.Get)
		categories.POST("", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), categoryHandler.Create)
		categories.PUT("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), categoryHandler.Update)
		categories.DELETE("/:id", middleware.RequireRoles(models.RoleAdmin, models.RoleHR), categoryHandler.Deactivate)
	}

	admin := api.Group("/admin", middleware.RequireRoles(models.RoleAdmin, models.RoleHR))
	{
		admin.POST("/rollover", adminHandler.Rollover)
		admin.POST("/initialize-year", adminHandler.InitializeYear)
		admin.POST("/recalculate", adminHandler.Recalculate)
		admin.POST("/employees/:id/init-balances", adminHandler.InitEmployeeBalances)
	}

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
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}
