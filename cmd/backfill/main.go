package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/juno/internal/backfill"
	"github.com/fortuna/juno/internal/cache"
	"github.com/fortuna/juno/internal/config"
	"github.com/fortuna/juno/internal/fantasy"
	"github.com/fortuna/juno/internal/ingest/espn"
	"github.com/fortuna/juno/internal/logger"
	"github.com/fortuna/juno/internal/store"
)

const (
	appName    = "juno-backfill"
	appVersion = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger.Init(cfg.LogLevel, "text", true)
	log := logger.WithComponent("backfill")

	var (
		dsn       = flag.String("dsn", cfg.DatabaseURL, "PostgreSQL DSN")
		espnBase  = flag.String("espn-url", cfg.ESPNAPIBase, "ESPN API base URL")
		season    = flag.String("season", "", "Season to backfill (e.g., 2025-26)")
		startDate = flag.String("start", "", "Start date (YYYY-MM-DD)")
		endDate   = flag.String("end", "", "End date (YYYY-MM-DD)")
		gameIDs   = flag.String("game", "", "ESPN game ID, or a comma-separated list")
		dryRun    = flag.Bool("dry-run", false, "Print the plan without fetching or writing anything")
	)
	flag.Parse()

	log.Infof("%s v%s", appName, appVersion)

	req, err := buildRequest(*season, *startDate, *endDate, *gameIDs, *dryRun)
	if err != nil {
		log.WithError(err).Fatal("Invalid arguments")
	}
	spec, err := backfill.Plan(req)
	if err != nil {
		log.WithError(err).Fatal("Specify --season, --start/--end, or --game")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reporter := &consoleReporter{log: log, dryRun: spec.DryRun}
	if spec.DryRun {
		if err := backfill.NewRunner(nil).Run(ctx, spec, reporter); err != nil {
			log.WithError(err).Fatal("Dry run failed")
		}
		return
	}

	db, err := store.NewDatabase(*dsn, store.Options{MaxOpenConns: cfg.DBMaxOpenConns}, logger.WithComponent("store"))
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	ingCfg := espn.IngesterConfig{Location: cfg.Location(), Season: req.Season}
	if ingCfg.Season == "" {
		ingCfg.Season = cfg.CurrentSeason
	}
	// Snapshot invalidation is best effort; a backfill can run without Redis.
	if rc, err := cache.NewRedisCache(cfg.RedisURL); err == nil {
		defer rc.Close()
		ingCfg.Snapshots = cache.NewSnapshotCache(rc, cfg.SnapshotCacheTTL)
	} else {
		log.WithError(err).Warn("Redis unavailable, cached snapshots will not be invalidated")
	}

	client := espn.NewClient(espn.Options{
		BaseURL:        *espnBase,
		RateLimit:      cfg.ESPNRateLimit,
		Timeout:        cfg.ExternalAPITimeout,
		RetryAttempts:  cfg.RetryAttempts,
		RetryBaseDelay: cfg.RetryBaseDelay,
		RetryMaxDelay:  cfg.RetryMaxDelay,
	}, logger.WithComponent("espn"))
	ingester := espn.NewIngester(db, client, ingCfg, logger.WithComponent("espn"))

	start := time.Now()
	if err := backfill.NewRunner(ingester).Run(ctx, spec, reporter); err != nil {
		log.WithError(err).Fatal("Backfill failed")
	}

	log.WithFields(logrus.Fields{
		"games":    reporter.games,
		"duration": time.Since(start).Round(time.Second).String(),
	}).Info("Backfill completed successfully")
}

func buildRequest(season, startStr, endStr, games string, dryRun bool) (backfill.Request, error) {
	req := backfill.Request{Season: season, DryRun: dryRun}

	for _, id := range strings.Split(games, ",") {
		if id = strings.TrimSpace(id); id != "" {
			req.GameIDs = append(req.GameIDs, id)
		}
	}

	if startStr != "" || endStr != "" {
		if startStr == "" || endStr == "" {
			return req, fmt.Errorf("--start and --end must be given together")
		}
		start, err := time.Parse(fantasy.DateLayout, startStr)
		if err != nil {
			return req, fmt.Errorf("invalid start date: %w", err)
		}
		end, err := time.Parse(fantasy.DateLayout, endStr)
		if err != nil {
			return req, fmt.Errorf("invalid end date: %w", err)
		}
		req.StartDate, req.EndDate = &start, &end
	}

	return req, nil
}

type consoleReporter struct {
	log    *logrus.Entry
	dryRun bool
	games  int
}

func (c *consoleReporter) OnJobStart(spec backfill.JobSpec) {
	c.log.WithFields(logrus.Fields{"type": spec.Type, "dry_run": c.dryRun}).Info("Starting job")
}

func (c *consoleReporter) OnDateStart(date time.Time, index int, total int) {
	c.log.Infof("[%d/%d] %s", index+1, total, fantasy.DateKey(date))
}

func (c *consoleReporter) OnGameProcessed(gameID string) {
	c.games++
	c.log.WithField("game_id", gameID).Debug("Processed game")
}

func (c *consoleReporter) OnProgress(message string, current int, total int) {
	c.log.Infof("Progress: %s (%d/%d)", message, current, total)
}

func (c *consoleReporter) OnJobComplete() {
	c.log.Info("Job complete")
}

func (c *consoleReporter) OnJobError(err error) {
	c.log.WithError(err).Error("Job error")
}
