package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"wagerbook/api"
	"wagerbook/application"
	"wagerbook/config"
	"wagerbook/database"
	"wagerbook/domain/events"
	"wagerbook/domain/services"
	"wagerbook/infrastructure"
	"wagerbook/infrastructure/cache"
	"wagerbook/infrastructure/notify"
	"wagerbook/infrastructure/observability"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Run initializes and starts the ledger service
func Run(ctx context.Context) error {
	log.Println("Starting wagerbook...")

	// Load configuration
	cfg := config.Get()
	configureLogging(cfg)

	// Initialize database connection
	log.Println("Connecting to database...")
	if err := database.RunMigrationsWithURL(cfg.GetDatabaseURL()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Println("Database connection established successfully")

	// Initialize NATS, optional
	var natsClient *infrastructure.NATSClient
	mapper := infrastructure.NewEventSubjectMapper()
	publisher := infrastructure.NewLocalEventPublisher()
	if cfg.NATSServers != "" {
		log.Println("Connecting to NATS...")
		natsClient = infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsClient.Close()
		publisher = infrastructure.NewNATSEventPublisher(natsClient, mapper)
		if err := publisher.EnsureDomainEventStream(); err != nil {
			return fmt.Errorf("failed to ensure domain event stream: %w", err)
		}
		log.Println("NATS connection established successfully")
	} else {
		log.Println("NATS disabled, events dispatch in-process only")
	}

	// Initialize unit of work factory and in-process consumers
	log.Println("Initializing unit of work factory...")
	uowFactory := infrastructure.NewUnitOfWorkFactory(db, publisher)
	marketStream := infrastructure.NewMarketStream()
	defer marketStream.Close()
	uowFactory.RegisterLocalHandler(events.EventTypeMarketChanged, marketStream.HandleEvent)

	var balanceCache application.BalanceCache
	if cfg.RedisAddr != "" {
		log.Println("Connecting to Redis...")
		redisClient, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisClient.Close()
		redisCache := cache.NewRedisBalanceCache(redisClient, cfg.BalanceCacheTTL)
		uowFactory.RegisterLocalHandler(events.EventTypeBalanceChange, redisCache.HandleBalanceChange)
		balanceCache = redisCache
		log.Println("Redis balance cache enabled")
	}

	// Initialize metrics
	log.Println("Initializing metrics...")
	metrics := observability.NewMetricsProvider(cfg)
	if err := metrics.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metrics.Shutdown(shutdownCtx); err != nil {
			log.Printf("Error shutting down metrics: %v", err)
		}
	}()
	publisher.WithObserver(metrics)
	for _, eventType := range []events.EventType{
		events.EventTypeWagerPlaced,
		events.EventTypeWagerMatched,
		events.EventTypeWagerSettled,
		events.EventTypeBalanceChange,
	} {
		uowFactory.RegisterLocalHandler(eventType, metrics.HandleEvent)
	}

	// Initialize settlement notifications, optional
	var notifier *notify.DiscordNotifier
	if cfg.DiscordToken != "" && cfg.NotifyChannelID != "" {
		log.Println("Initializing Discord notifier...")
		session, err := notify.NewDiscordSession(cfg.DiscordToken)
		if err != nil {
			return err
		}
		notifier = notify.NewDiscordNotifier(session, cfg.NotifyChannelID)
		if natsClient != nil {
			subscriber := infrastructure.NewNATSEventSubscriber(natsClient, mapper).WithObserver(metrics)
			if err := subscriber.Subscribe(events.EventTypeWagerSettled, notifier.HandleWagerSettled); err != nil {
				return fmt.Errorf("failed to subscribe notifier: %w", err)
			}
		} else {
			uowFactory.RegisterLocalHandler(events.EventTypeWagerSettled, notifier.HandleWagerSettled)
		}
		log.Println("Discord notifier initialized successfully")
	}

	// Initialize application handlers
	log.Println("Initializing handlers...")
	policy := ledgerPolicy(cfg)
	atomic := application.NewAtomic(uowFactory, application.RetryPolicy{
		MaxAttempts:     cfg.RetryMaxAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
	}).WithObserver(metrics)

	accounts := application.NewAccountHandler(atomic, policy, balanceCache)
	wagers := application.NewWagerHandler(atomic, policy)
	markets := application.NewMarketHandler(atomic, policy)
	settlement := application.NewSettlementHandler(atomic, policy)
	log.Println("Handlers initialized successfully")

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := api.NewServer(wagers, accounts, markets, settlement)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("HTTP API listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return application.NewMarketEventWorker(marketStream, settlement).Run(gctx)
	})
	g.Go(func() error {
		return application.NewMarketLockWorker(markets, cfg.LockCheckInterval).Run(gctx)
	})
	if notifier != nil {
		g.Go(func() error {
			return notifier.Run(gctx)
		})
	}
	if natsClient != nil && cfg.FeedSubject != "" {
		feed := infrastructure.NewFeedSubscriber(natsClient, cfg.FeedSubject, markets).WithObserver(metrics)
		if err := feed.Start(); err != nil {
			return fmt.Errorf("failed to start feed subscriber: %w", err)
		}
	}

	server.SetReady(true)
	log.Printf("wagerbook is running in %s mode...", cfg.Environment)

	err = g.Wait()
	server.SetReady(false)
	log.Println("Shutting down wagerbook...")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Println("Shutdown completed")
	return nil
}

// ledgerPolicy builds the ledger rules from configuration
func ledgerPolicy(cfg *config.Config) services.LedgerPolicy {
	policy := services.DefaultLedgerPolicy()
	policy.MinWagerAmount = cfg.MinWagerAmount
	policy.MaxWagerAmount = cfg.MaxWagerAmount
	policy.DailyRealLimit = cfg.DailyRealLimit
	policy.StartingPracticeBalance = cfg.StartingPracticeBalance
	policy.Location = cfg.Location()
	return policy
}

func configureLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if cfg.Environment == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}
