package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"nasdaq_screener/config"
	"nasdaq_screener/controllers"
	"nasdaq_screener/middleware"
	"nasdaq_screener/models"
	"nasdaq_screener/routes"
	"nasdaq_screener/services/cache"
)

var router *gin.Engine

func init() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	log := config.NewLogger(cfg.LogLevel, cfg.Environment)

	// Initialize database
	db, err := config.InitDB(cfg, log)
	if err != nil {
		panic("Failed to connect to database: " + err.Error())
	}

	if err := models.MigrateStockModels(db); err != nil {
		log.WithError(err).Error("Migration failed")
	}

	store, err := cache.New(context.Background(), cfg.Cache, log)
	if err != nil {
		log.WithError(err).Warn("Cache backend unavailable, falling back to in-memory cache")
		store = cache.NewMemoryStore()
	}

	// Set Gin mode
	gin.SetMode(gin.ReleaseMode)

	router = gin.New()
	router.Use(gin.Recovery())
	router.Use(routes.CORS(cfg.CORSOrigins))
	router.Use(middleware.RequestLogger(log))

	// Builds are not triggered from serverless functions; background work
	// does not outlive the request there.
	routes.SetupRoutes(router, routes.Controllers{
		Screener: controllers.NewScreenerController(db, store, cfg.Cache.TTL, log),
		Cache:    controllers.NewCacheController(store, log),
	})
}

// Handler is the Vercel serverless function handler
func Handler(w http.ResponseWriter, r *http.Request) {
	router.ServeHTTP(w, r)
}
