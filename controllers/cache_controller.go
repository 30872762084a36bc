package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"nasdaq_screener/services/cache"
)

// CacheController exposes tag-based cache revalidation
type CacheController struct {
	cache cache.Invalidator
	log   *logrus.Logger
}

// NewCacheController creates a new cache controller
func NewCacheController(inv cache.Invalidator, log *logrus.Logger) *CacheController {
	if inv == nil {
		inv = cache.Noop{}
	}
	return &CacheController{cache: inv, log: log}
}

// Revalidate drops every cached response carrying a tag
// POST /api/cache/revalidate
func (cc *CacheController) Revalidate(c *gin.Context) {
	var request struct {
		Tag string `json:"tag" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "tag is required",
			"details": err.Error(),
		})
		return
	}

	if err := cc.cache.Invalidate(c.Request.Context(), request.Tag); err != nil {
		cc.log.WithError(err).WithField("tag", request.Tag).Error("Cache revalidation failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to revalidate cache",
			"details": err.Error(),
		})
		return
	}

	cc.log.WithField("tag", request.Tag).Info("Cache revalidated")
	c.JSON(http.StatusOK, gin.H{
		"revalidated": true,
		"tag":         request.Tag,
	})
}
