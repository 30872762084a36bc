package controllers

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nasdaq_screener/services/movingaverage"
)

// ETLController triggers moving-average builds over HTTP
type ETLController struct {
	builder *movingaverage.Builder
	ctx     context.Context
	log     *logrus.Logger
	runs    sync.WaitGroup
}

// NewETLController creates a new ETL controller. Runs started through it
// are cancelled when ctx is done.
func NewETLController(ctx context.Context, builder *movingaverage.Builder, log *logrus.Logger) *ETLController {
	return &ETLController{
		builder: builder,
		ctx:     ctx,
		log:     log,
	}
}

// BuildDailyMA starts a moving-average build in the background
// POST /api/etl/daily-ma?date=YYYY-MM-DD&backfill=true
func (ec *ETLController) BuildDailyMA(c *gin.Context) {
	req := movingaverage.RunRequest{RunID: uuid.New().String()}

	if raw := c.Query("backfill"); raw != "" {
		backfill, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid backfill flag",
				"details": err.Error(),
			})
			return
		}
		req.Backfill = backfill
	}

	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid date, expected YYYY-MM-DD",
				"details": err.Error(),
			})
			return
		}
		if req.Backfill {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date and backfill cannot be combined"})
			return
		}
		req.Date = &date
	}

	// the slot is held before replying so concurrent requests see the conflict
	run, err := ec.builder.Reserve()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	ec.runs.Add(1)
	go func() {
		defer ec.runs.Done()
		ec.run(run, req)
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"status":   "accepted",
		"run_id":   req.RunID,
		"backfill": req.Backfill,
		"date":     c.Query("date"),
	})
}

func (ec *ETLController) run(run *movingaverage.Run, req movingaverage.RunRequest) {
	entry := ec.log.WithField("run_id", req.RunID)

	summaries, err := run.Execute(ec.ctx, req)
	if err != nil {
		entry.WithError(err).Error("Moving-average build failed")
		return
	}
	entry.WithField("dates", len(summaries)).Info("Moving-average build finished")
}

// Wait blocks until every build started by this controller has returned
func (ec *ETLController) Wait() {
	ec.runs.Wait()
}
