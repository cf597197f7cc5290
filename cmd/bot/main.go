package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/support-bot/internal/api/http"
	"github.com/spec-kit/support-bot/internal/api/http/handlers"
	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/bot"
	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/internal/events"
	"github.com/spec-kit/support-bot/internal/gateway/bridge"
	"github.com/spec-kit/support-bot/internal/intake"
	"github.com/spec-kit/support-bot/internal/observability"
	"github.com/spec-kit/support-bot/internal/persistence"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/internal/service"
	"github.com/spec-kit/support-bot/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pg *persistence.Postgres
	var ticketStore repository.TicketStore
	switch cfg.Storage.Backend {
	case "postgres":
		pg, err = persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()
		if pg.PoolHandle() == nil {
			logger.Fatal("postgres storage backend selected but POSTGRES_DSN is empty")
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		ticketStore = repository.NewPostgresTicketStore(pg.PoolHandle())
	default:
		ticketStore = repository.NewFileTicketStore(cfg.Storage.TicketsFile, logger)
	}

	settingsStore := repository.NewFileSettingsStore(cfg.Storage.SettingsFile, logger)

	var redis *persistence.Redis
	intakeStore := intake.NewMemoryStore()
	if cfg.Intake.Backend == "redis" {
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		intakeStore = intake.NewRedisStore(redis.Client, cfg.Intake.IntakeTTL())
	}

	gw, err := bridge.Dial(ctx, cfg.Gateway, logger)
	if err != nil {
		logger.Fatal("failed to connect gateway bridge", zap.Error(err))
	}
	defer gw.Close() //nolint:errcheck

	dispatcher := events.NewInMemoryDispatcher()
	sink := events.NewKafkaSink(cfg.Kafka, logger)
	if sink != nil {
		defer sink.Close() //nolint:errcheck
	}

	archiver := service.NewArchiveService(gw, logger, cfg.Tickets.ArchivePageSize, cfg.Tickets.TranscriptLimit)
	ticketService, err := service.NewTicketService(ctx, service.TicketDependencies{
		Store:       ticketStore,
		Settings:    settingsStore,
		Intake:      intakeStore,
		Gateway:     gw,
		Dispatcher:  dispatcher,
		Archiver:    archiver,
		Scheduler:   service.TimerScheduler{},
		Logger:      logger,
		DeleteDelay: cfg.Tickets.DeleteDelay(),
	})
	if err != nil {
		logger.Fatal("failed to init ticket service", zap.Error(err))
	}
	settingsService := service.NewSettingsService(settingsStore)
	notificationService := service.NewNotificationService(dispatcher, settingsStore, gw, logger)
	worker.StartNotificationWorker(notificationService, sink, dispatcher)

	ticketService.Reconcile(ctx)

	metrics := observability.NewMetrics()
	router := bot.NewRouter(bot.RouterDependencies{
		Tickets:  ticketService,
		Settings: settingsService,
		Gateway:  gw,
		Metrics:  metrics,
		Logger:   logger,
		Prefix:   cfg.Gateway.CommandPrefix,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Admin:  handlers.NewAdminHandler(settingsService, tokens, cfg.Auth.AdminSecretHash),
		Tokens: tokens,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	runErr := make(chan error, 1)
	go func() {
		runErr <- gw.Run(ctx, router.Handle)
	}()

	waitForShutdown(logger, runErr)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger, runErr <-chan error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-runErr:
		logger.Error("gateway loop ended", zap.Error(err))
	}
}
