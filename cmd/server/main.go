package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/meilisearch/meilisearch-go"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"uncommon.org/progresstrack/internal/bootstrap"
	"uncommon.org/progresstrack/internal/config"
	userRepo "uncommon.org/progresstrack/internal/modules/user/repository"
	"uncommon.org/progresstrack/internal/server"
	"uncommon.org/progresstrack/pkg/database"
	"uncommon.org/progresstrack/pkg/logger"
	"uncommon.org/progresstrack/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := server.Dependencies{Config: cfg, Logger: log}
	var users userRepo.UserRepository

	if cfg.Database.Driver == database.DriverMongo {
		client, db, err := database.ConnectMongo(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer disconnectMongo(client)

		if err := bootstrap.EnsureIndexes(ctx, db); err != nil {
			return err
		}
		deps.Mongo = db
		users = userRepo.NewMongoUserRepository(db)
	} else {
		db, err := database.Connect(cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)

		if err := bootstrap.Migrate(db); err != nil {
			return err
		}
		deps.DB = db
		users = userRepo.NewUserRepository(db)
	}
	log.Info("record store ready", "driver", cfg.Database.Driver)

	if !cfg.IsProduction() {
		if err := bootstrap.SeedMentor(ctx, users, cfg.Auth.SeedEmail, cfg.Auth.SeedPassword, log); err != nil {
			return err
		}
	}

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, continuing", "error", err)
		}
		deps.Redis = rdb
	} else {
		log.Info("redis not configured; cache, cleanup queue, event feed and login rate limit disabled")
	}

	if cfg.Meili.Host != "" {
		host := cfg.Meili.Host
		if !strings.HasPrefix(host, "http") {
			host = "http://" + host + ":7700"
		}
		deps.Meili = meilisearch.New(host, meilisearch.WithAPIKey(cfg.Meili.MasterKey))
	}

	store, err := storage.New(cfg.Storage, log)
	if err != nil {
		return err
	}
	if err := store.Ensure(ctx); err != nil {
		return err
	}
	deps.Storage = store
	log.Info("attachment store ready", "driver", cfg.Storage.Driver)

	srv, err := server.NewServer(deps)
	if err != nil {
		return err
	}
	srv.StartBackground(ctx)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", httpServer.Addr, "profile", cfg.Student.Profile)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

func disconnectMongo(client *mongo.Client) {
	if err := client.Disconnect(context.Background()); err != nil {
		slog.Warn("mongo disconnect failed", "error", err)
	}
}
