package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"taixiu/internal/api"
	"taixiu/internal/auth"
	"taixiu/internal/config"
	"taixiu/internal/db"
	"taixiu/internal/game"
	"taixiu/internal/notify"
	"taixiu/internal/store"

	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadAPIFromEnv()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("taixiu api failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.APIConfig, logger *slog.Logger) error {
	st, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	snap, err := st.Load(ctx)
	switch {
	case errors.Is(err, store.ErrNoSnapshot):
		logger.Info("no snapshot found, starting empty", "driver", cfg.Store.Driver)
	case err != nil:
		return fmt.Errorf("load snapshot: %w", err)
	}

	hub := notify.NewHub(notify.DefaultBuffer, logger)
	var notifier game.Notifier = hub
	var redisPub *notify.RedisPublisher
	if cfg.Redis.Addr != "" {
		rdb, err := db.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		redisPub = notify.NewRedisPublisher(rdb, cfg.Redis.Channel, 0, logger)
		notifier = notify.Multi{hub, redisPub}
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	writer := store.NewWriteBehind(st, cfg.Store.SaveEvery, logger)
	svc := game.NewService(
		game.Settings{BetDelay: cfg.BetDelay, HistoryCapacity: cfg.HistoryCapacity},
		game.NewEngine(rand.NewSource(seed)),
		logger,
		game.WithNotifier(notifier),
		game.WithPersister(writer),
	)
	svc.Restore(snap)
	if cfg.SeedDefaults {
		if err := svc.SeedDefaults(ctx); err != nil {
			return fmt.Errorf("seed defaults: %w", err)
		}
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	server := api.New(cfg, logger, tokens, svc, hub)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := svc.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error { return writer.Run(gctx) })
	if redisPub != nil {
		g.Go(func() error { return redisPub.Run(gctx) })
	}
	for name, loop := range svc.Loops(cfg.MarketTickEvery, cfg.AgentBetEvery, cfg.AgentTradeEvery) {
		g.Go(func() error { return game.RunEvery(gctx, logger, name, loop.Every, loop.Tick) })
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		logger.Info("taixiu api listening", "addr", cfg.Addr, "store", cfg.Store.Driver, "seed", seed)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	err = g.Wait()

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if ferr := writer.Flush(flushCtx); ferr != nil {
		logger.Error("final snapshot flush failed", "err", ferr)
	}
	if redisPub != nil {
		if ferr := redisPub.Flush(flushCtx); ferr != nil {
			logger.Warn("redis flush failed", "err", ferr)
		}
	}
	logger.Info("taixiu api stopped", "snapshots_written", writer.Written(), "snapshot_failures", writer.Failures())
	return err
}

func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "postgres":
		pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{})
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return pg, nil
	case "sqlite":
		return store.OpenSQLite(cfg.DataPath)
	case "memory":
		logger.Warn("memory store selected, state is lost on exit")
		return store.NewMemoryStore(), nil
	default:
		return store.NewFileStore(cfg.DataPath, cfg.Compress)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
