//go:build ignore

// Command etl runs a one-shot moving-average build.
//
//	go run scripts/etl.go build-ma
//	go run scripts/etl.go build-ma backfill
//	go run scripts/etl.go build-ma --date=2024-03-08
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"nasdaq_screener/config"
	"nasdaq_screener/models"
	"nasdaq_screener/services/cache"
	"nasdaq_screener/services/marketdata"
	"nasdaq_screener/services/movingaverage"
)

func usage() {
	fmt.Println("Usage: go run scripts/etl.go build-ma [backfill] [--date=YYYY-MM-DD]")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 || os.Args[1] != "build-ma" {
		usage()
	}

	fs := flag.NewFlagSet("build-ma", flag.ExitOnError)
	dateFlag := fs.String("date", "", "build a single date (YYYY-MM-DD) instead of the latest price date")
	args := os.Args[2:]

	req := movingaverage.RunRequest{RunID: uuid.New().String()}
	if len(args) > 0 && args[0] == "backfill" {
		req.Backfill = true
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		usage()
	}
	if *dateFlag != "" {
		if req.Backfill {
			fmt.Println("--date cannot be combined with backfill")
			os.Exit(1)
		}
		date, err := time.Parse("2006-01-02", *dateFlag)
		if err != nil {
			fmt.Printf("Invalid date %q: %v\n", *dateFlag, err)
			os.Exit(1)
		}
		req.Date = &date
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	log := config.NewLogger(cfg.LogLevel, cfg.Environment)

	db, err := config.InitDB(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("Database connection failed")
	}
	if err := models.MigrateStockModels(db); err != nil {
		log.WithError(err).Fatal("Migration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	builder := movingaverage.NewBuilder(marketdata.NewRepository(db), movingaverage.OptionsFromConfig(cfg.Builder), log)

	// Drop stale screener responses held by a shared cache
	if cfg.Cache.Provider == config.CacheRedis || cfg.Cache.Provider == config.CacheMongo {
		store, err := cache.New(ctx, cfg.Cache, log)
		if err != nil {
			log.WithError(err).Warn("Cache unavailable, responses will expire on their own")
		} else {
			defer store.Close()
			builder.WithInvalidator(store)
		}
	}

	summaries, err := builder.Execute(ctx, req)
	for _, s := range summaries {
		fmt.Printf("%s  symbols=%d written=%d skipped=%d failed=%d (%s)\n",
			s.Date.Format("2006-01-02"), s.Symbols, s.Written, s.Skipped, s.Failed, s.Duration.Round(time.Millisecond))
	}
	if err != nil {
		log.WithError(err).Fatal("Moving-average build failed")
	}
}
