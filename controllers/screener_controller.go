package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"nasdaq_screener/services/cache"
	"nasdaq_screener/services/fundamentals"
	"nasdaq_screener/services/marketdata"
	"nasdaq_screener/services/screener"
)

// ScreenerController handles stock screening requests
type ScreenerController struct {
	screener     *screener.GoldenCrossScreener
	fundamentals *fundamentals.Screener
	cache        cache.Store
	ttl          time.Duration
	log          *logrus.Logger
}

// NewScreenerController creates a new screener controller. A nil store
// disables response caching.
func NewScreenerController(db *gorm.DB, store cache.Store, ttl time.Duration, log *logrus.Logger) *ScreenerController {
	if store == nil {
		store = cache.Noop{}
	}
	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}
	return &ScreenerController{
		screener:     screener.NewGoldenCrossScreener(db, log),
		fundamentals: fundamentals.NewScreener(marketdata.NewRepository(db), log),
		cache:        store,
		ttl:          ttl,
		log:          log,
	}
}

// GoldenCross returns symbols whose moving averages are fully stacked
// GET /api/screener/golden-cross
func (sc *ScreenerController) GoldenCross(c *gin.Context) {
	params, err := screener.ParseParams(c.Request.URL.Query())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid query parameters",
			"details": err.Error(),
		})
		return
	}

	tags := []string{cache.TagGoldenCross, cache.TagDailyData, cache.TagQuarterlyData}
	sc.serveCached(c, params.CacheKey(), tags, "golden cross screen", func(ctx context.Context) (any, error) {
		return sc.screener.Screen(ctx, params)
	})
}

// TurnedProfitable returns companies whose latest quarter turned profitable
// GET /api/screener/turned-profitable
func (sc *ScreenerController) TurnedProfitable(c *gin.Context) {
	tags := []string{cache.TagTurnedProfitable, cache.TagQuarterlyData}
	sc.serveCached(c, "turned-profitable-screen", tags, "turned-profitable screen", func(ctx context.Context) (any, error) {
		return sc.fundamentals.TurnedProfitable(ctx)
	})
}

// RuleOf40 returns companies whose revenue growth plus operating margin
// reaches 40 percent
// GET /api/screener/rule-of-40
func (sc *ScreenerController) RuleOf40(c *gin.Context) {
	tags := []string{cache.TagRuleOf40, cache.TagQuarterlyData}
	sc.serveCached(c, "rule-of-40-screen", tags, "rule-of-40 screen", func(ctx context.Context) (any, error) {
		return sc.fundamentals.RuleOf40(ctx)
	})
}

// serveCached answers from the cache or computes, stores and returns the
// response. The key carries the tags' invalidation generation as read before
// computing, so a response computed across an invalidation is never served.
func (sc *ScreenerController) serveCached(c *gin.Context, key string, tags []string, name string, compute func(ctx context.Context) (any, error)) {
	ctx := c.Request.Context()
	entry := sc.log.WithField("key", key)
	tags = append(tags, key)

	useCache := true
	generation, err := sc.cache.Generation(ctx, tags...)
	if err != nil {
		entry.WithError(err).Warn("Cache generation read failed, bypassing cache")
		useCache = false
	}
	storeKey := cache.GenerationKey(key, generation)

	if useCache {
		if body, ok, err := sc.cache.Get(ctx, storeKey); err != nil {
			entry.WithError(err).Warn("Cache read failed")
		} else if ok {
			c.Header("X-Cache", "HIT")
			c.Data(http.StatusOK, "application/json; charset=utf-8", body)
			return
		}
	}

	result, err := compute(ctx)
	if err != nil {
		if errors.Is(err, screener.ErrInvalidParam) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid query parameters",
				"details": err.Error(),
			})
			return
		}
		entry.WithError(err).Error("Failed to run " + name)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to run " + name,
			"details": err.Error(),
		})
		return
	}

	body, err := json.Marshal(result)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to encode response",
			"details": err.Error(),
		})
		return
	}

	if useCache {
		if err := sc.cache.Set(ctx, storeKey, body, sc.ttl, tags...); err != nil {
			entry.WithError(err).Warn("Cache write failed")
		}
	}

	c.Header("X-Cache", "MISS")
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
