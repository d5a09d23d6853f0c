package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/comedorapp/comedor-api/api/swagger"
	"github.com/comedorapp/comedor-api/internal/handler"
	"github.com/comedorapp/comedor-api/internal/middleware"
	"github.com/comedorapp/comedor-api/internal/models"
	"github.com/comedorapp/comedor-api/internal/repository"
	"github.com/comedorapp/comedor-api/internal/service"
	"github.com/comedorapp/comedor-api/pkg/cache"
	"github.com/comedorapp/comedor-api/pkg/config"
	"github.com/comedorapp/comedor-api/pkg/database"
	"github.com/comedorapp/comedor-api/pkg/logger"
	corsmiddleware "github.com/comedorapp/comedor-api/pkg/middleware/cors"
	reqidmiddleware "github.com/comedorapp/comedor-api/pkg/middleware/requestid"
)

// @title Comedor API
// @version 1.0.0
// @description Cafeteria meal plan administration API
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, dashboard caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	studentRepo := repository.NewStudentRepository(db)
	mealLogRepo := repository.NewMealLogRepository(db)
	extraRepo := repository.NewExtraRepository(db)
	userRepo := repository.NewUserRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Dashboard.CacheTTL, logr, redisClient != nil)
	syncSvc := service.NewSyncService(studentRepo, mealLogRepo, logr, metricsSvc, service.SyncConfig{
		WindowDays:    cfg.Billing.SyncWindowDays,
		NonServiceDay: cfg.Billing.NonServiceDay,
	}, time.Now)
	attendanceSvc := service.NewAttendanceService(mealLogRepo, syncSvc, validate, logr, cfg.Billing.NonServiceDay, time.Now)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	extraSvc := service.NewExtraService(extraRepo, studentRepo, validate, logr, time.Now)
	billingSvc := service.NewBillingService(mealLogRepo, extraRepo, studentRepo, userRepo, validate, logr, time.Now)
	dashboardSvc := service.NewDashboardService(mealLogRepo, extraRepo, cacheSvc, logr, cfg.Dashboard.CacheTTL, time.Now)
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "comedor-api",
		Audience:           []string{"comedor"},
	})

	authHandler := handler.NewAuthHandler(authSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	extraHandler := handler.NewExtraHandler(extraSvc)
	billingHandler := handler.NewBillingHandler(billingSvc)
	dashboardHandler := handler.NewDashboardHandler(dashboardSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)
	auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
	auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
	auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)

	protected := api.Group("")
	protected.Use(middleware.JWT(authSvc))

	staff := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleStaff)
	admin := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)

	protected.GET("/students", staff, studentHandler.List)
	protected.POST("/students", admin, studentHandler.Create)
	protected.GET("/students/:id", staff, studentHandler.Get)
	protected.PUT("/students/:id", admin, studentHandler.Update)
	protected.DELETE("/students/:id", admin, studentHandler.Delete)

	protected.GET("/attendance", staff, attendanceHandler.List)
	protected.POST("/attendance", staff, attendanceHandler.Mark)
	protected.PATCH("/attendance/:id/annul", staff, attendanceHandler.ToggleAnnul)
	protected.PATCH("/attendance/:id/extra", staff, attendanceHandler.SetExtra)
	protected.DELETE("/attendance/:id", admin, attendanceHandler.Delete)
	protected.GET("/students/:id/attendance", staff, attendanceHandler.StudentHistory)

	protected.GET("/students/:id/extras", staff, extraHandler.ListByStudent)
	protected.POST("/students/:id/extras", staff, extraHandler.Create)
	protected.DELETE("/extras/:id", admin, extraHandler.Delete)

	protected.GET("/students/:id/debt", staff, billingHandler.Debt)
	protected.POST("/students/:id/settle", admin, billingHandler.Settle)

	if cfg.Dashboard.Enabled {
		protected.GET("/dashboard/summary", admin, dashboardHandler.Summary)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
