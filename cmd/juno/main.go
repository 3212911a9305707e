package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fortuna/juno/internal/api/rest"
	"github.com/fortuna/juno/internal/api/websocket"
	"github.com/fortuna/juno/internal/backfill"
	"github.com/fortuna/juno/internal/cache"
	"github.com/fortuna/juno/internal/config"
	"github.com/fortuna/juno/internal/ingest"
	"github.com/fortuna/juno/internal/ingest/espn"
	"github.com/fortuna/juno/internal/ingest/google"
	"github.com/fortuna/juno/internal/logger"
	"github.com/fortuna/juno/internal/publisher"
	"github.com/fortuna/juno/internal/scheduler"
	"github.com/fortuna/juno/internal/service"
	"github.com/fortuna/juno/internal/store"
	"github.com/fortuna/juno/internal/store/repository"
)

const (
	serviceName    = "juno"
	serviceVersion = "1.0.0"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat, cfg.IsDevelopment())
	log := logger.WithComponent("main")
	log.WithFields(logrus.Fields{
		"version": serviceVersion,
		"env":     cfg.Env,
		"season":  cfg.CurrentSeason,
	}).Infof("Starting %s", serviceName)

	// Initialize database connection
	var db *store.Database
	err = retry(cfg, log, "database", func() error {
		var err error
		db, err = store.NewDatabase(cfg.DatabaseURL, store.Options{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnLifetime,
		}, logger.WithComponent("store"))
		return err
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if err := db.RunMigrations(migrateCtx, cfg.MigrationsDir); err != nil {
		migrateCancel()
		log.WithError(err).Fatal("Failed to run database migrations")
	}
	migrateCancel()
	log.Info("Database migrations applied")

	// Initialize Redis client with retry logic
	var redisCache *cache.RedisCache
	err = retry(cfg, log, "redis", func() error {
		var err error
		redisCache, err = cache.NewRedisCache(cfg.RedisURL)
		return err
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Redis")
	}
	defer redisCache.Close()

	streams := publisher.NewRedisStreamPublisher(redisCache.Client(), cfg.StreamMaxLen)
	snapshots := cache.NewSnapshotCache(redisCache, cfg.SnapshotCacheTTL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(logger.WithComponent("websocket"))
	go hub.Run(ctx)

	deps := service.Deps{
		Stores:    service.NewStores(db),
		Snapshots: snapshots,
		GameTypes: cfg.GameTypes(),
		Location:  cfg.Location(),
		Log:       logger.WithComponent("service"),
	}
	matchups := service.NewMatchupService(deps, cfg.ProjectionMode(), streams, hub)

	espnClient := espn.NewClient(espn.Options{
		BaseURL:          cfg.ESPNAPIBase,
		RateLimit:        cfg.ESPNRateLimit,
		Timeout:          cfg.ExternalAPITimeout,
		BreakerThreshold: cfg.CircuitBreakerThreshold,
		BreakerTimeout:   cfg.CircuitBreakerTimeout,
		RetryAttempts:    cfg.RetryAttempts,
		RetryBaseDelay:   cfg.RetryBaseDelay,
		RetryMaxDelay:    cfg.RetryMaxDelay,
	}, logger.WithComponent("espn"))
	espnIngester := espn.NewIngester(db, espnClient, espn.IngesterConfig{
		Location:  cfg.Location(),
		Season:    cfg.CurrentSeason,
		Publisher: streams,
		Snapshots: snapshots,
	}, logger.WithComponent("espn"))

	statusCfg := ingest.StatusConfig{Location: cfg.Location(), Refresh: matchups}
	if cfg.EnableGoogleFallback {
		scraper := google.NewClient(logger.WithComponent("google"))
		defer scraper.Close()
		statusCfg.Fallback = google.NewIngester(scraper, redisCache, google.DefaultCacheTTL, logger.WithComponent("google"))
		log.Info("Google Sports fallback enabled")
	}
	statusIngester := ingest.NewStatusIngester(espnIngester,
		repository.NewGameRepository(db), repository.NewTeamRepository(db),
		statusCfg, logger.WithComponent("status"))

	sched, err := scheduler.NewOrchestrator(espnIngester, statusIngester, matchups, scheduler.Config{
		DailyIngestCron:      cfg.DailyIngestCron,
		ScheduleSyncCron:     cfg.ScheduleSyncCron,
		LivePollCron:         cfg.LivePollCron,
		EnableDailyIngestion: cfg.EnableDailyIngestion,
		EnableScheduleSync:   cfg.EnableScheduleSync,
		EnableLivePolling:    cfg.EnableLivePolling,
		ScheduleLookahead:    cfg.ScheduleLookahead,
		Location:             cfg.Location(),
	}, logger.WithComponent("scheduler"))
	if err != nil {
		log.WithError(err).Fatal("Failed to create scheduler")
	}
	sched.Start()

	backfillService := backfill.NewService(db, espnIngester, logger.WithComponent("backfill"))
	backfillService.Start()

	restServer := rest.NewServer(cfg.RESTPort, rest.Services{
		Matchups: matchups,
		Leagues:  service.NewLeagueService(deps),
		Players:  service.NewPlayerService(deps),
		Rankings: service.NewRankingService(deps, cfg.RankingMaxRank),
		Games:    service.NewGameService(deps),
		Backfill: backfillService,
	}, map[string]rest.HealthChecker{
		"database": db,
		"redis":    redisCache,
	}, logger.WithComponent("rest"))
	go func() {
		if err := restServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("REST server error")
		}
	}()

	wsServer := websocket.NewServer(cfg.WSPort, hub, logger.WithComponent("websocket"))
	go func() {
		if err := wsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("WebSocket server error")
		}
	}()

	log.WithFields(logrus.Fields{
		"rest_port": cfg.RESTPort,
		"ws_port":   cfg.WSPort,
	}).Infof("%s started", serviceName)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("REST server shutdown error")
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("WebSocket server shutdown error")
	}
	if err := sched.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("Scheduler did not stop in time")
	}
	if err := backfillService.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Backfill workers did not stop in time")
	}
	cancel()

	log.Infof("%s stopped", serviceName)
}

// retry runs connect until it succeeds or the configured attempts run out.
func retry(cfg *config.Config, log *logrus.Entry, name string, connect func() error) error {
	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = connect(); err == nil {
			log.WithField("dependency", name).Info("Connected")
			return nil
		}
		if i < attempts {
			log.WithError(err).WithFields(logrus.Fields{
				"dependency": name,
				"attempt":    i,
				"max":        attempts,
			}).Warn("Connection attempt failed, retrying")
			time.Sleep(cfg.ConnectDelay)
		}
	}
	return err
}
