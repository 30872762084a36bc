package routes

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"nasdaq_screener/controllers"
	"nasdaq_screener/middleware"
)

// Write endpoints share one per-client budget
const (
	writeRequestsPerWindow = 10
	writeWindow            = time.Minute
)

// Controllers groups the handlers served by the API
type Controllers struct {
	Screener *controllers.ScreenerController
	Cache    *controllers.CacheController
	ETL      *controllers.ETLController
}

// SetupRoutes sets up all API routes
func SetupRoutes(router *gin.Engine, c Controllers) {
	api := router.Group("/api")
	{
		// Screener routes
		screener := api.Group("/screener")
		{
			screener.GET("/golden-cross", c.Screener.GoldenCross)
			screener.GET("/turned-profitable", c.Screener.TurnedProfitable)
			screener.GET("/rule-of-40", c.Screener.RuleOf40)
		}

		writes := api.Group("", middleware.RateLimitMiddleware(
			middleware.NewRateLimiter(writeRequestsPerWindow, writeWindow)))
		{
			writes.POST("/cache/revalidate", c.Cache.Revalidate)
			if c.ETL != nil {
				writes.POST("/etl/daily-ma", c.ETL.BuildDailyMA)
			}
		}
	}
}

// CORS builds the cross-origin policy. A "*" entry or an empty list allows
// every origin without credentials.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "X-Cache", middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}

	allowAll := len(origins) == 0
	for _, origin := range origins {
		if origin == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}
