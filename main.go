package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"nasdaq_screener/config"
	"nasdaq_screener/controllers"
	"nasdaq_screener/middleware"
	"nasdaq_screener/models"
	"nasdaq_screener/routes"
	"nasdaq_screener/scheduler"
	"nasdaq_screener/services/cache"
	"nasdaq_screener/services/marketdata"
	"nasdaq_screener/services/movingaverage"
)

func main() {
	// Load configuration; missing credentials stop the process here
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	log := config.NewLogger(cfg.LogLevel, cfg.Environment)
	log.Info("==============================================")
	log.Info("  NASDAQ Screener API - Starting...")
	log.Info("==============================================")

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := config.InitDB(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}

	log.Info("Running database migrations...")
	if err := models.MigrateStockModels(db); err != nil {
		log.WithError(err).Error("Migration failed")
	} else {
		log.Info("Database migrations completed successfully")
	}

	ctx, cancel := context.WithCancel(context.Background())

	store, err := cache.New(ctx, cfg.Cache, log)
	if err != nil {
		log.WithError(err).Warn("Cache backend unavailable, falling back to in-memory cache")
		store = cache.NewMemoryStore()
	}

	builder := movingaverage.NewBuilder(
		marketdata.NewRepository(db),
		movingaverage.OptionsFromConfig(cfg.Builder),
		log,
	).WithInvalidator(store)

	// Create Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(routes.CORS(cfg.CORSOrigins))
	router.Use(middleware.RequestLogger(log))

	setupHealthEndpoints(router, db)

	etl := controllers.NewETLController(ctx, builder, log)
	routes.SetupRoutes(router, routes.Controllers{
		Screener: controllers.NewScreenerController(db, store, cfg.Cache.TTL, log),
		Cache:    controllers.NewCacheController(store, log),
		ETL:      etl,
	})

	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server error")
		}
	}()

	jobScheduler, err := scheduler.NewScheduler(cfg.Schedule, builder, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create scheduler")
	}
	if err := jobScheduler.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start scheduler")
	}

	log.Info("Application fully initialized")

	gracefulShutdown(server, jobScheduler, etl, cancel, store, db, log)
}

// setupHealthEndpoints sets up liveness, readiness and startup checks
func setupHealthEndpoints(router *gin.Engine, db *gorm.DB) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "NASDAQ Screener API",
			"version": "1.0.0",
		})
	})

	// Liveness - always returns OK if server is running
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})

	// Readiness - checks the database connection
	router.GET("/ready", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database connection error",
			})
			return
		}

		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "not_ready",
				"message": "Database ping failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status": "ready",
		})
	})

	router.GET("/startup", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "started",
		})
	})
}

// gracefulShutdown handles graceful shutdown of the server
func gracefulShutdown(server *http.Server, jobScheduler *scheduler.Scheduler, etl *controllers.ETLController,
	cancel context.CancelFunc, store cache.Store, db *gorm.DB, log *logrus.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Wait for shutdown signal
	sig := <-quit
	log.WithField("signal", sig.String()).Info("Shutting down gracefully...")

	// Stop scheduler first
	jobScheduler.Stop()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("Server forced to shutdown")
	}

	// Cancel builds started over HTTP and wait for them to unwind
	cancel()
	etl.Wait()

	if err := store.Close(); err != nil {
		log.WithError(err).Warn("Failed to close cache")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
		log.Info("Database connection closed")
	}

	log.Info("Server shutdown completed")
}
