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

	_ "github.com/umsys/account-api/api/swagger"
	"github.com/umsys/account-api/internal/handler"
	"github.com/umsys/account-api/internal/middleware"
	"github.com/umsys/account-api/internal/models"
	"github.com/umsys/account-api/internal/repository"
	"github.com/umsys/account-api/internal/service"
	"github.com/umsys/account-api/pkg/cache"
	"github.com/umsys/account-api/pkg/config"
	"github.com/umsys/account-api/pkg/database"
	"github.com/umsys/account-api/pkg/jobs"
	"github.com/umsys/account-api/pkg/logger"
	"github.com/umsys/account-api/pkg/mailer"
	corsmiddleware "github.com/umsys/account-api/pkg/middleware/cors"
	ratelimitmiddleware "github.com/umsys/account-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/umsys/account-api/pkg/middleware/requestid"
)

// @title Account API
// @version 1.0.0
// @description Account management API with rotating refresh-token sessions
// @BasePath /
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and rate limiting degrade", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	accountRepo := repository.NewAccountRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	requestRepo := repository.NewRequestRepository(db)
	workflowRepo := repository.NewWorkflowRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	mailSvc := service.NewMailService(
		mailer.New(mailer.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		}, logr),
		cfg.Mail.Origin,
		jobs.QueueConfig{
			Workers:    cfg.Mail.Workers,
			MaxRetries: cfg.Mail.MaxRetries,
			RetryDelay: cfg.Mail.RetryDelay,
			Logger:     logr,
		},
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mailSvc.Start(rootCtx)
	defer mailSvc.Stop()

	authSvc := service.NewAuthService(accountRepo, validate, logr, service.AuthConfig{
		Secret:             cfg.JWT.Secret,
		Issuer:             cfg.JWT.Issuer,
		AccessTokenExpiry:  cfg.JWT.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.JWT.RefreshTokenExpiry,
	})
	accountSvc := service.NewAccountService(accountRepo, mailSvc, validate, logr)
	departmentSvc := service.NewDepartmentService(departmentRepo, cacheRepo, validate, logr)
	employeeSvc := service.NewEmployeeService(employeeRepo, departmentRepo, workflowRepo, validate, logr)
	requestSvc := service.NewRequestService(requestRepo, employeeRepo, workflowRepo, validate, logr)
	workflowSvc := service.NewWorkflowService(workflowRepo, employeeRepo, validate, logr)
	metricsSvc := service.NewMetricsService()

	authHandler := handler.NewAuthHandler(authSvc, cfg.JWT.RefreshTokenExpiry)
	accountHandler := handler.NewAccountHandler(accountSvc)
	departmentHandler := handler.NewDepartmentHandler(departmentSvc)
	employeeHandler := handler.NewEmployeeHandler(employeeSvc)
	requestHandler := handler.NewRequestHandler(requestSvc)
	workflowHandler := handler.NewWorkflowHandler(workflowSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))
	if cfg.RateLimit.Enabled {
		r.Use(ratelimitmiddleware.New(redisClient, cfg.RateLimit.Limit, cfg.RateLimit.Window, logr))
	}

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authRequired := middleware.JWT(authSvc)
	adminOnly := middleware.RequireRoles(models.RoleAdmin)

	accounts := api.Group("/accounts")
	{
		accounts.POST("/authenticate", authHandler.Authenticate)
		accounts.POST("/refresh-token", authHandler.RefreshToken)
		accounts.POST("/revoke-token", authRequired, authHandler.RevokeToken)
		accounts.POST("/register", accountHandler.Register)
		accounts.POST("/verify-email", accountHandler.VerifyEmail)
		accounts.POST("/forgot-password", accountHandler.ForgotPassword)
		accounts.POST("/validate-reset-token", accountHandler.ValidateResetToken)
		accounts.POST("/reset-password", accountHandler.ResetPassword)

		accounts.GET("", authRequired, adminOnly, accountHandler.List)
		accounts.GET("/export", authRequired, adminOnly, accountHandler.ExportCSV)
		accounts.GET("/:id", authRequired, middleware.RBAC(string(models.RoleAdmin), "SELF"), accountHandler.Get)
		accounts.POST("", authRequired, adminOnly, accountHandler.Create)
		accounts.PUT("/:id", authRequired, middleware.RBAC(string(models.RoleAdmin), "SELF"), accountHandler.Update)
		accounts.PUT("/:id/status", authRequired, adminOnly, accountHandler.UpdateStatus)
		accounts.DELETE("/:id", authRequired, middleware.RBAC(string(models.RoleAdmin), "SELF"), accountHandler.Delete)
	}

	departments := api.Group("/departments", authRequired)
	{
		departments.GET("", departmentHandler.List)
		departments.GET("/:id", departmentHandler.Get)
		departments.POST("", adminOnly, departmentHandler.Create)
		departments.PUT("/:id", adminOnly, departmentHandler.Update)
		departments.DELETE("/:id", adminOnly, departmentHandler.Delete)
	}

	employees := api.Group("/employees", authRequired)
	{
		employees.GET("", employeeHandler.List)
		employees.GET("/export", adminOnly, employeeHandler.ExportPDF)
		employees.GET("/:id", employeeHandler.Get)
		employees.POST("", adminOnly, employeeHandler.Create)
		employees.PUT("/:id", adminOnly, employeeHandler.Update)
		employees.POST("/:id/transfer", adminOnly, employeeHandler.Transfer)
		employees.DELETE("/:id", adminOnly, employeeHandler.Delete)
	}

	requests := api.Group("/requests", authRequired)
	{
		requests.GET("", adminOnly, requestHandler.List)
		requests.GET("/employee/:id", requestHandler.ListByEmployee)
		requests.GET("/:id", requestHandler.Get)
		requests.POST("", requestHandler.Create)
		requests.PUT("/:id", requestHandler.Update)
		requests.PUT("/:id/status", adminOnly, requestHandler.UpdateStatus)
		requests.DELETE("/:id", adminOnly, requestHandler.Delete)
	}

	workflows := api.Group("/workflows", authRequired)
	{
		workflows.GET("/employee/:id", workflowHandler.ListByEmployee)
		workflows.POST("", adminOnly, workflowHandler.Create)
		workflows.PUT("/:id/status", adminOnly, workflowHandler.UpdateStatus)
		workflows.DELETE("/:id", adminOnly, workflowHandler.Delete)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("failed to close redis", "error", err)
	}
	logr.Sugar().Infow("server stopped")
}
