package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/nanakusa/questward/api/rest"
	"github.com/nanakusa/questward/audit"
	"github.com/nanakusa/questward/cache"
	"github.com/nanakusa/questward/config"
	dbadapter "github.com/nanakusa/questward/db"
	"github.com/nanakusa/questward/game/health"
	"github.com/nanakusa/questward/game/penalty"
	"github.com/nanakusa/questward/game/quest"
	mw "github.com/nanakusa/questward/middleware"
	"github.com/nanakusa/questward/model"
	"github.com/nanakusa/questward/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func main() {
	cfgPath := "config/config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- Logger ----
	var logger *zap.Logger
	var logErr error
	if cfg.Server.Debug {
		logger, logErr = zap.NewDevelopment()
	} else {
		logger, logErr = zap.NewProduction()
	}
	if logErr != nil {
		log.Fatalf("logger: %v", logErr)
	}
	defer logger.Sync()

	if cfg.Security.JWTSecret == "" {
		logger.Warn("security.jwt_secret is not set; tokens are signed with an empty key")
	}

	// ---- Database ----
	db, err := dbadapter.Open(cfg.Database)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := model.AutoMigrate(db); err != nil {
		log.Fatalf("db migrate: %v", err)
	}
	logger.Info("DB initialized", zap.String("mode", cfg.Database.Mode))

	// ---- Audit ----
	auditSvc := audit.New(db, logger)
	defer auditSvc.Stop(context.Background())

	// ---- Cache / PubSub ----
	cacheConfig := cache.CacheConfig{
		RedisAddr:       cfg.Cache.RedisAddr,
		RedisPassword:   cfg.Cache.RedisPassword,
		RedisDB:         cfg.Cache.RedisDB,
		LocalGCInterval: cfg.Cache.LocalGCInterval,
		LocalPubSubBuf:  cfg.Cache.LocalPubSubBuf,
	}
	c, err := cache.NewCache(cacheConfig)
	if err != nil {
		log.Fatalf("cache: %v", err)
	}
	pubsub, err := cache.NewPubSub(cacheConfig)
	if err != nil {
		log.Fatalf("pubsub: %v", err)
	}
	logger.Info("Cache initialized")

	// ---- Services ----
	trackerStore := penalty.NewStore(db)
	healthSvc := health.NewService(db, logger)
	questSvc := quest.NewService(db, trackerStore, logger)

	costs := penalty.Costs{
		DailyUnit:     cfg.Penalty.DailyUnit,
		WeeklyCost:    cfg.Penalty.WeeklyCost,
		OneTimeCost:   cfg.Penalty.OneTimeCost,
		ScheduledUnit: cfg.Penalty.ScheduledUnit,
		RetriggerFlat: cfg.Penalty.RetriggerFlat,
	}
	engine := penalty.NewEngine(trackerStore, costs, c, cfg.Penalty.RunLockTTL, logger)
	runner := penalty.NewRunner(engine, questSvc, healthSvc, auditSvc, c, pubsub, logger)

	// ---- Scheduler ----
	sched := scheduler.New(logger)
	defer sched.Stop()
	sched.AddTicker("penalty_check", cfg.Penalty.TickInterval, func() {
		runner.Tick(context.Background())
	})

	// ---- HTTP ----
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(mw.TraceID())
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(mw.RateLimit(rate.Limit(cfg.Security.RateLimitRPS), cfg.Security.RateLimitBurst))

	authH := rest.NewAuthHandler(db, c, cfg.Security, healthSvc)
	questH := rest.NewQuestHandler(questSvc, logger)
	penaltyH := rest.NewPenaltyHandler(runner, trackerStore, logger)
	playerH := rest.NewPlayerHandler(healthSvc)

	api := r.Group("/api")
	{
		api.POST("/auth/login", authH.Login)

		authed := api.Group("", mw.Auth(cfg.Security, c))
		{
			authed.POST("/auth/logout", authH.Logout)
			authed.POST("/auth/refresh", authH.Refresh)

			authed.GET("/player", playerH.Get)

			authed.POST("/quests", questH.Create)
			authed.GET("/quests", questH.List)
			authed.POST("/quests/:id/complete", questH.CompleteDay)
			authed.POST("/quests/:id/finish", questH.Complete)
			authed.POST("/quests/:id/abandon", questH.Abandon)
			authed.POST("/quests/:id/reactivate", questH.Reactivate)
			authed.DELETE("/quests/:id", questH.Delete)

			authed.POST("/penalty/run", penaltyH.Run)
			authed.GET("/penalty/last", penaltyH.LastRun)
			authed.GET("/penalty/trackers", penaltyH.ListTrackers)
			authed.GET("/penalty/trackers/:quest_id", penaltyH.History)
		}
	}

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	logger.Info("server listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
