package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/ecodeli/delivery-engine/internal/api"
	"github.com/ecodeli/delivery-engine/internal/core/ports"
	"github.com/ecodeli/delivery-engine/internal/core/service"
	"github.com/ecodeli/delivery-engine/internal/infrastructure/config"
	mongodb "github.com/ecodeli/delivery-engine/internal/infrastructure/db/mongo"
	redisdb "github.com/ecodeli/delivery-engine/internal/infrastructure/db/redis"
	"github.com/ecodeli/delivery-engine/internal/infrastructure/ledger"
	"github.com/ecodeli/delivery-engine/internal/infrastructure/queue"
	"github.com/ecodeli/delivery-engine/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Service: "delivery-engine",
		Pretty:  cfg.Env == "development",
	})

	// --- Datastores ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(shutdownCtx)
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = rdb.Close() }()

	// --- Repositories ---
	announcementRepo := mongodb.NewAnnouncementRepository(db)
	routeRepo := mongodb.NewRouteRepository(db)
	matchRepo := mongodb.NewMatchRepository(db)
	deliveryRepo := mongodb.NewDeliveryRepository(db)
	trackingRepo := mongodb.NewTrackingRepository(db)
	authRepo := mongodb.NewAuthRepository(db)

	for _, idx := range []interface {
		EnsureIndexes(context.Context) error
	}{announcementRepo, routeRepo, matchRepo, deliveryRepo, trackingRepo, authRepo} {
		if err := idx.EnsureIndexes(ctx); err != nil {
			log.Fatal().Err(err).Msg("index creation failed")
		}
	}

	// --- Workers and external triggers ---
	notifyLog := logger.Component("notify")
	notifier := queue.NewDispatcher(cfg.Notify.Workers, queue.NewLogSink(notifyLog), notifyLog)
	notifier.Start(ctx)

	trigger := ledgerTriggerFor(cfg, logger.Component("ledger"))
	guard := redisdb.NewLedgerGuard(rdb)

	// --- Core services ---
	identity := service.NewIdentityService(authRepo, deliveryRepo)
	geo := service.NewGeoService(service.NewDistanceCache(cfg.Geo.CacheSize))
	authService := service.NewAuthService(authRepo, cfg.JWTSecret, 24*time.Hour)
	announcementService := service.NewAnnouncementService(announcementRepo, identity, log)
	routeService := service.NewRouteService(routeRepo, log)
	deliveryService := service.NewDeliveryService(
		deliveryRepo, announcementRepo, routeRepo, matchRepo, trackingRepo,
		identity, trigger, guard, notifier, log,
	)
	matchingService := service.NewMatchingService(
		announcementRepo, routeRepo, matchRepo, geo, deliveryService,
		identity, notifier,
		service.MatchingConfig{
			MaxDistanceKm:   cfg.Matching.MaxDistanceKm,
			ProximityWeight: cfg.Matching.ProximityWeight,
			PriceWeight:     cfg.Matching.PriceWeight,
			CandidateLimit:  cfg.Matching.CandidateLimit,
			ProposalLimit:   cfg.Matching.ProposalLimit,
			ProposalTTL:     cfg.Matching.ProposalTTL,
			AutoAcceptScore: cfg.Matching.AutoAcceptScore,
		},
		log,
	)
	validationService := service.NewValidationCodeService(deliveryRepo, trackingRepo, identity, notifier, log)

	// --- HTTP ---
	e := api.NewRouter(api.Deps{
		Mongo:         db,
		Redis:         rdb,
		JWTSecret:     cfg.JWTSecret,
		Log:           log,
		Auth:          authService,
		Announcements: announcementService,
		Routes:        routeService,
		Matching:      matchingService,
		Deliveries:    deliveryService,
		Validation:    validationService,
	})

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil {
			log.Info().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// ledgerTriggerFor picks the wallet integration: real HTTP when a URL is
// configured, log-only otherwise.
func ledgerTriggerFor(cfg *config.Config, log zerolog.Logger) ports.LedgerTrigger {
	if cfg.Ledger.URL != "" {
		return ledger.NewHTTPTrigger(cfg.Ledger.URL, log)
	}
	log.Warn().Msg("no ledger url configured, entries are logged only")
	return ledger.NewLogTrigger(log)
}
