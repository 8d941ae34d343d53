// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/jmulder/tunequiz/internal/auth"
	"github.com/jmulder/tunequiz/internal/config"
	"github.com/jmulder/tunequiz/internal/database"
	"github.com/jmulder/tunequiz/internal/game"
	"github.com/jmulder/tunequiz/internal/handlers"
	"github.com/jmulder/tunequiz/internal/middleware"
	"github.com/jmulder/tunequiz/internal/spotify"
	"github.com/jmulder/tunequiz/internal/store"
)

func main() {
	_ = godotenv.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Load()
	ctx := context.Background()

	auth.Init()

	var st store.Store
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatalf("redis ping failed (%s): %v", cfg.RedisAddr, err)
		}
		st = store.NewRedisStore(client, logger)
		logger.Infof("session store: redis at %s", cfg.RedisAddr)
	} else {
		st = store.NewMemoryStore()
		logger.Info("session store: in-memory (REDIS_ADDR not set)")
	}

	coord := game.NewCoordinator(st, logger)

	var prefs *database.Preferences
	if cfg.PostgresConfigured {
		pool, err := database.Connect(ctx)
		if err != nil {
			logger.Fatalf("postgres connect failed: %v", err)
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.Fatalf("schema setup failed: %v", err)
		}
		prefs = database.NewPreferences(pool)
		coord.SetArchiver(database.NewArchive(pool))
		logger.Info("postgres connected: host preferences and session archive enabled")
	} else {
		prefs = database.NewPreferences(nil)
		logger.Info("postgres not configured: preferences and archive disabled")
	}

	var profile spotify.ProfileProvider
	var catalog spotify.Catalog
	if cfg.DemoMode {
		mock := spotify.NewMock(logger)
		profile, catalog = mock, mock
		logger.Info("demo mode: serving the fixture catalog")
	} else {
		client := spotify.NewClient(logger)
		profile, catalog = client, client
	}

	srv := handlers.NewServer(logger, coord, st, profile, catalog, prefs)

	mux := http.NewServeMux()
	mux.HandleFunc("/session/create", srv.CreateSessionHandler)
	mux.HandleFunc("/session/join", srv.JoinSessionHandler)
	mux.HandleFunc("/catalog/search", srv.SearchHandler)
	mux.HandleFunc("/session/ws/", handlers.SessionWSHandler(logger, srv))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	handler := middleware.LogMiddleware(logger)(mux)

	logger.Infof("tunequiz server listening on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, handler); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}
