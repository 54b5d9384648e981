package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/evlin-hq/evlin-scheduler-api/api/swagger"
	"github.com/evlin-hq/evlin-scheduler-api/internal/handler"
	"github.com/evlin-hq/evlin-scheduler-api/internal/middleware"
	"github.com/evlin-hq/evlin-scheduler-api/internal/repository"
	"github.com/evlin-hq/evlin-scheduler-api/internal/service"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/cache"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/config"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/database"
	"github.com/evlin-hq/evlin-scheduler-api/pkg/logger"
	corsmiddleware "github.com/evlin-hq/evlin-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/evlin-hq/evlin-scheduler-api/pkg/middleware/requestid"
)

// @title Evlin Scheduler API
// @version 1.0.0
// @description Course scheduling and session check-in service for homeschool families
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	// Redis is optional: without it stats are computed fresh on every request.
	var redisClient *redis.Client
	if client, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Warn("redis unavailable, stats caching disabled", zap.Error(err))
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	validate := validator.New()

	students := repository.NewStudentRepository(db)
	courses := repository.NewCourseRepository(db)
	availability := repository.NewAvailabilityRepository(db)
	schedules := repository.NewScheduleRepository(db)
	sessions := repository.NewSessionRepository(db)
	checkinLog := repository.NewCheckinLogRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	studentSvc := service.NewStudentService(students, validate, logr)
	courseSvc := service.NewCourseService(courses, logr)
	availabilitySvc := service.NewAvailabilityService(availability, validate, logr)
	conflictSvc := service.NewConflictService(schedules, availability, validate, logr)
	scheduleSvc := service.NewScheduleService(courses, schedules, sessions, cfg.Scheduler.DefaultDurationWeeks, validate, logr)
	rescheduleSvc := service.NewRescheduleService(sessions, availability, cfg.Scheduler.RescheduleDaysAhead, cfg.Scheduler.RescheduleMaxCandidates, logr)
	statsSvc := service.NewStatsService(sessions, checkinLog, cacheRepo, cfg.Checkin.StreakLookbackDays, cfg.Checkin.StatsCacheEnabled, cfg.Checkin.StatsCacheTTL, logr)
	sessionSvc := service.NewSessionService(sessions, schedules, checkinLog, rescheduleSvc, statsSvc, validate, logr)

	studentHandler := handler.NewStudentHandler(studentSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	availabilityHandler := handler.NewAvailabilityHandler(availabilitySvc)
	scheduleHandler := handler.NewScheduleHandler(scheduleSvc)
	conflictHandler := handler.NewConflictHandler(conflictSvc, metricsSvc)
	sessionHandler := handler.NewSessionHandler(sessionSvc, rescheduleSvc, metricsSvc)
	statsHandler := handler.NewStatsHandler(statsSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

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

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/students", studentHandler.List)
		api.POST("/students", studentHandler.Create)
		api.GET("/students/:id", studentHandler.Get)
		api.GET("/students/:id/availability", availabilityHandler.List)
		api.POST("/students/:id/availability", availabilityHandler.Add)
		api.GET("/students/:id/schedules", scheduleHandler.ListByStudent)
		api.GET("/students/:id/sessions", sessionHandler.ListByDate)
		api.GET("/students/:id/sessions/missed", sessionHandler.ListMissed)
		api.GET("/students/:id/checkin-stats", statsHandler.CheckinStats)
		api.GET("/students/:id/checkin-log", statsHandler.CheckinLog)
		api.GET("/students/:id/checkin-export", statsHandler.ExportCheckinHistory)
		api.GET("/students/:id/week-progress", statsHandler.WeekProgress)
		api.POST("/students/:id/sweep", sessionHandler.SweepStudent)

		api.GET("/courses", courseHandler.List)
		api.GET("/courses/:id", courseHandler.Get)
		api.GET("/courses/code/:code", courseHandler.GetByCode)

		api.POST("/conflicts/check", conflictHandler.Check)

		api.POST("/schedules/propose", scheduleHandler.Propose)
		api.GET("/schedules/:id", scheduleHandler.Get)
		api.POST("/schedules/:id/confirm", scheduleHandler.Confirm)

		api.POST("/sessions/sweep", sessionHandler.Sweep)
		api.POST("/sessions/:id/checkin", sessionHandler.CheckIn)
		api.POST("/sessions/:id/cancel", sessionHandler.Cancel)
		api.POST("/sessions/:id/reschedule", sessionHandler.Reschedule)
		api.GET("/sessions/:id/reschedule-options", sessionHandler.RescheduleOptions)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
