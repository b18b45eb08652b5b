package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/handler"
	"storefront/internal/messaging"
	"storefront/internal/middleware"
	"storefront/internal/observability"
	"storefront/internal/ratelimit"
	"storefront/internal/repository/memory"
	"storefront/internal/repository/postgres"
	"storefront/internal/security"
	"storefront/internal/service"
)

type repositories struct {
	users     domain.UserRepository
	carts     domain.CartRepository
	wishlists domain.WishlistRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	observability.InitLogger(cfg.LogLevel, cfg.LogFormat)

	slog.Info("starting storefront server",
		slog.String("environment", cfg.Environment),
		slog.String("store_backend", cfg.StoreBackend),
		slog.String("rate_limit_backend", cfg.RateLimitBackend))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]handler.Check{}

	var repos repositories
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := config.NewPostgresConnection(cfg.DatabaseURL)
		if err != nil {
			slog.Error("failed to connect to database", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to postgresql")

		if err := postgres.RunMigrations(db); err != nil {
			slog.Error("failed to run migrations", slog.String("error", err.Error()))
			os.Exit(1)
		}

		repos, err = postgresRepositories(db)
		if err != nil {
			slog.Error("failed to prepare repositories", slog.String("error", err.Error()))
			os.Exit(1)
		}
		checks["database"] = handler.DatabaseCheck(db)
	default:
		repos = repositories{
			users:     memory.NewUserRepository(),
			carts:     memory.NewCartRepository(),
			wishlists: memory.NewWishlistRepository(),
		}
		slog.Warn("using in-memory store, data is lost on restart")
	}

	var counters ratelimit.Store
	switch cfg.RateLimitBackend {
	case config.BackendRedis:
		rdb, err := config.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			slog.Error("failed to connect to redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer rdb.Close()
		slog.Info("connected to redis")

		counters = ratelimit.NewRedisStore(rdb, nil)
		checks["redis"] = handler.RedisCheck(rdb)
	default:
		mem := ratelimit.NewMemoryStore(nil, 0)
		defer mem.Close()
		counters = mem
	}

	var publisher domain.EventPublisher = messaging.NoopPublisher{}
	if cfg.RabbitMQURL != "" {
		rmqCtx, rmqCancel := context.WithTimeout(ctx, 60*time.Second)
		rmq, err := messaging.NewRabbitMQWithRetry(rmqCtx, cfg.RabbitMQURL)
		rmqCancel()
		if err != nil {
			slog.Error("failed to connect to rabbitmq", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer rmq.Close()

		consumer := messaging.NewEventConsumer(rmq, messaging.LogActivity(slog.Default()))
		if err := consumer.Start(ctx); err != nil {
			slog.Error("failed to start event consumer", slog.String("error", err.Error()))
			os.Exit(1)
		}
		slog.Info("event consumer started")

		publisher = rmq
		checks["rabbitmq"] = handler.RabbitMQCheck(rmq)
	}

	tokens, err := security.NewTokenService(cfg.TokenSecret, cfg.TokenTTL)
	if err != nil {
		slog.Error("failed to create token service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	authService := service.NewAuthService(repos.users, tokens)
	store := service.NewSessionStore(repos.carts, repos.wishlists, service.WithEventPublisher(publisher))

	r := newRouter(routes{
		tokens:   tokens,
		auth:     handler.NewAuthHandler(authService),
		cart:     handler.NewCartHandler(store, cfg.PricingPolicy()),
		wishlist: handler.NewWishlistHandler(store),
		limiter:  middleware.NewRateLimiter(ratelimit.NewLimiter(counters, nil), cfg.Policies()),
		ready:    handler.Ready(checks),
		origins:  middleware.ParseOrigins(cfg.AllowedOrigins),
		openapi:  middleware.DefaultOpenAPIValidatorConfig(cfg.OpenAPIValidation, cfg.OpenAPISpecPath),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("storefront server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.String("error", err.Error()))
	}

	cancel()

	slog.Info("server stopped gracefully")
}

func postgresRepositories(db *sql.DB) (repositories, error) {
	carts, err := postgres.NewCartRepository(db)
	if err != nil {
		return repositories{}, err
	}
	wishlists, err := postgres.NewWishlistRepository(db)
	if err != nil {
		return repositories{}, err
	}
	return repositories{
		users:     postgres.NewUserRepository(db),
		carts:     carts,
		wishlists: wishlists,
	}, nil
}
