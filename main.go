package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	auctions "auction-engine/internal/auctionService"
	bidding "auction-engine/internal/biddingService"
	"auction-engine/internal/config"
	"auction-engine/internal/events"
	"auction-engine/internal/lock"
	model "auction-engine/internal/models"
	"auction-engine/internal/repository"
	"auction-engine/internal/server"
	"auction-engine/internal/sweeper"
	"auction-engine/utils"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()
	if err := utils.SetLevel(cfg.LogLevel); err != nil {
		utils.Warn("unknown LOG_LEVEL, keeping info", map[string]any{"log_level": cfg.LogLevel})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, addUser, closeRepo := setupStorage(ctx, cfg)
	defer closeRepo()

	locker, closeLocker := setupLocker(ctx, cfg)
	defer closeLocker()

	publisher, closePublisher := setupPublisher(ctx, cfg)
	defer closePublisher()

	biddingSvc := bidding.NewBiddingService(repo, locker, publisher,
		bidding.WithLockWait(cfg.LockWait),
		bidding.WithConflictRetries(cfg.ConflictRetries),
	)
	auctionSvc := auctions.NewAuctionService(repo, locker,
		auctions.WithLockWait(cfg.LockWait),
		auctions.WithRetries(cfg.ConflictRetries),
	)
	sweep := sweeper.New(repo, locker, publisher,
		sweeper.WithParallelism(cfg.SweepParallelism),
		sweeper.WithLockWait(cfg.LockWait),
		sweeper.WithConflictRetries(cfg.ConflictRetries),
	)

	if cfg.SeedDemoData {
		prepopulate(ctx, addUser, auctionSvc)
	}

	scheduler, err := sweeper.NewScheduler(sweep, cfg.SweepSchedule, 10*time.Minute)
	if err != nil {
		utils.Fatal("failed to create sweep scheduler", map[string]any{"error": err.Error()})
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server.SetupRouter(biddingSvc, auctionSvc, sweep),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		utils.Info("starting auction server", map[string]any{
			"addr":           srv.Addr,
			"storage":        cfg.StorageDriver,
			"sweep_schedule": cfg.SweepSchedule,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Error("server failed", map[string]any{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	utils.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("server shutdown failed", map[string]any{"error": err.Error()})
	}
	scheduler.Stop(shutdownCtx)
}

// setupStorage returns the configured AuctionDB, a user registration func for seeding and a closer
func setupStorage(ctx context.Context, cfg *config.Config) (repository.AuctionDB, func(model.User) error, func()) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		repo, err := repository.NewPostgresRepo(cfg.PostgresURL)
		if err != nil {
			utils.Fatal("failed to connect to postgres", map[string]any{"error": err.Error()})
		}
		if err := repo.InitSchema(ctx); err != nil {
			utils.Fatal("failed to initialize schema", map[string]any{"error": err.Error()})
		}
		addUser := func(u model.User) error { return repo.AddUser(ctx, u) }
		return repo, addUser, func() { _ = repo.Close() }

	case config.DriverMemory:
		repo := repository.NewMemoryRepo()
		addUser := func(u model.User) error {
			repo.AddUser(u)
			return nil
		}
		return repo, addUser, func() {}

	default:
		utils.Fatal("unknown STORAGE_DRIVER", map[string]any{"driver": cfg.StorageDriver})
		return nil, nil, nil
	}
}

// setupLocker always serializes in-process and adds a Redis lock when REDIS_ADDR is set
func setupLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func()) {
	local := lock.NewLocalLocker()
	if cfg.RedisAddr == "" {
		return local, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		utils.Fatal("failed to connect to redis", map[string]any{"addr": cfg.RedisAddr, "error": err.Error()})
	}

	utils.Info("distributed auction locks enabled", map[string]any{"addr": cfg.RedisAddr, "ttl": cfg.LockTTL.String()})
	return lock.Chain{local, lock.NewRedisLocker(client, cfg.LockTTL)}, func() { _ = client.Close() }
}

func setupPublisher(ctx context.Context, cfg *config.Config) (events.Publisher, func()) {
	if cfg.NatsURL == "" {
		return events.LogPublisher{}, func() {}
	}

	pub, err := events.NewNATSPublisher(ctx, cfg.NatsURL)
	if err != nil {
		utils.Fatal("failed to set up NATS publisher", map[string]any{"url": cfg.NatsURL, "error": err.Error()})
	}
	utils.Info("publishing events to NATS JetStream", map[string]any{"stream": events.StreamName})
	return pub, func() { _ = pub.Close() }
}

// prepopulate adds sample users and auctions
func prepopulate(ctx context.Context, addUser func(model.User) error, svc *auctions.AuctionService) {
	users := []model.User{
		{UserID: "seller1", Username: "seller1"},
		{UserID: "user1", Username: "user1"},
		{UserID: "user2", Username: "user2"},
		{UserID: "user3", Username: "user3"},
	}
	for _, u := range users {
		if err := addUser(u); err != nil {
			utils.Warn("failed to seed user", map[string]any{"user_id": u.UserID, "error": err.Error()})
		}
	}

	now := time.Now().UTC()
	lots := []auctions.CreateAuctionInput{
		{OwnerID: "seller1", Title: "Nintendo DS", Description: "Gaming console", StartPrice: decimal.NewFromInt(100), EndDate: now.Add(24 * time.Hour)},
		{OwnerID: "seller1", Title: "Vintage camera", Description: "Working condition", StartPrice: decimal.NewFromInt(200), EndDate: now.Add(2 * time.Hour)},
		{OwnerID: "seller1", Title: "Signed vinyl", Description: "First pressing", StartPrice: decimal.NewFromInt(150), StartsAt: now.Add(time.Hour), EndDate: now.Add(72 * time.Hour)},
	}
	for _, in := range lots {
		a, err := svc.CreateAuction(ctx, in)
		if err != nil {
			utils.Warn("failed to seed auction", map[string]any{"title": in.Title, "error": err.Error()})
			continue
		}
		utils.Debug("seeded auction", map[string]any{"auction_id": a.AuctionID, "title": a.Title})
	}
}
