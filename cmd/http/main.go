package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fsanano/storefront/internal/config"
	"fsanano/storefront/internal/handler"
	"fsanano/storefront/internal/idempotency"
	"fsanano/storefront/internal/logging"
	"fsanano/storefront/internal/model"
	"fsanano/storefront/internal/repository"
	"fsanano/storefront/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(log)

	// 2. Setup storage
	ctx := context.Background()
	repo, closeRepo, err := openRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRepo()

	store, closeStore, err := openIdempotencyStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Setup Logic
	shopService := service.NewShopService(repo, log)
	shopHandler := handler.NewShopHandler(shopService, log)
	h := handler.NewHandler(shopHandler, store, log)

	// 4. Setup Server
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// 5. Run Server with Graceful Shutdown
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "port", cfg.ServerPort, "storage", cfg.Storage)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 2)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	log.Info("server exiting")
	return nil
}

func openRepository(ctx context.Context, cfg *config.Config, log *slog.Logger) (service.Repository, func(), error) {
	if cfg.Storage == config.StorageMemory {
		repo := repository.NewMemoryRepository()
		if err := seed(ctx, repo); err != nil {
			return nil, nil, err
		}
		log.Warn("using in-memory storage, data is lost on exit")
		return repo, func() {}, nil
	}

	dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := dbPool.Ping(ctx); err != nil {
		dbPool.Close()
		return nil, nil, err
	}
	log.Info("connected to database")

	repo := repository.NewShopRepository(dbPool)
	if err := repo.EnsureSchema(ctx); err != nil {
		dbPool.Close()
		return nil, nil, err
	}
	return repo, dbPool.Close, nil
}

func openIdempotencyStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (idempotency.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return idempotency.NewMemoryStore(cfg.IdempotencyTTL), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, err
	}
	log.Info("connected to redis", "addr", cfg.RedisAddr)

	return idempotency.NewRedisStore(client, cfg.IdempotencyTTL), func() { client.Close() }, nil
}

// seed fills an empty in-memory shop with an admin, a shopper and a few
// products.
func seed(ctx context.Context, repo *repository.MemoryRepository) error {
	users := []model.User{
		{Username: "admin", Role: model.RoleAdmin, Deposit: model.MustMoney("0")},
		{Username: "shopper", Role: model.RoleUser, Deposit: model.MustMoney("100")},
	}
	for _, u := range users {
		if _, err := repo.CreateUser(ctx, u); err != nil {
			return err
		}
	}

	products := []model.Product{
		{Name: "Desk Lamp", Price: model.MustMoney("9.99"), Inventory: 5, Category: "lighting"},
		{Name: "Notebook", Price: model.MustMoney("2.50"), Inventory: 40, Category: "stationery"},
		{Name: "Office Chair", Price: model.MustMoney("149.00"), Inventory: 2, Category: "furniture"},
	}
	for _, p := range products {
		if _, err := repo.CreateProduct(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
