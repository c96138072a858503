package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventGraph/internal/config"
	"eventGraph/internal/graph"
	"eventGraph/internal/http-server/handlers/event/getAllEvents"
	"eventGraph/internal/http-server/handlers/event/getEventInfo"
	gqlhandler "eventGraph/internal/http-server/handlers/graphql"
	"eventGraph/internal/http-server/middleware/mwauth"
	"eventGraph/internal/http-server/middleware/mwloader"
	"eventGraph/internal/http-server/middleware/mwlogger"
	"eventGraph/internal/lib/jwt"
	"eventGraph/internal/lib/loader"
	"eventGraph/internal/lib/logger/handlers/slogpretty"
	"eventGraph/internal/lib/logger/sl"
	"eventGraph/internal/storage/postgres"
	"eventGraph/internal/storage/redis"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

type store interface {
	graph.Storage
	io.Closer
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("Starting event graph", slog.String("env", cfg.Env), slog.String("storage", cfg.Storage.Driver))
	log.Debug("Debug messages are enabled")

	storage, err := setupStorage(cfg)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}

	tokens := jwt.New(cfg.Auth.Secret, cfg.Auth.TokenTTL)

	loaderCfg := loader.Config{
		Wait:     cfg.Loader.Wait,
		MaxBatch: cfg.Loader.MaxBatch,
	}

	schema, err := graph.NewSchema(log, storage, tokens, graph.Config{
		BcryptCost:     cfg.Auth.BcryptCost,
		MaxParallelism: cfg.GraphQL.MaxParallelism,
		MaxBatch:       loaderCfg.MaxBatch,
	})
	if err != nil {
		log.Error("failed to build schema", sl.Err(err))
		os.Exit(1)
	}

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwlogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	router.Use(mwauth.New(log, tokens))

	router.With(mwloader.New(storage, loaderCfg)).Post("/graphql", gqlhandler.New(log, schema))
	router.Get("/events/{id}", getEventInfo.New(log, storage))
	router.Get("/events", getAllEvents.New(log, storage))

	log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", sl.Err(err))
			stop <- syscall.SIGTERM
		}
	}()

	sign := <-stop

	log.Info("application stopping", slog.String("signal", sign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server", sl.Err(err))
	}

	log.Info("application stopped")

	if err = storage.Close(); err != nil {
		log.Error("failed to close storage", sl.Err(err))
	}

	log.Info("storage closed")
}

func setupStorage(cfg *config.Config) (store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		s, err := postgres.InitDB(&cfg.Database)
		if err != nil {
			return nil, err
		}

		if err = s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, err
		}

		return s, nil
	case config.DriverRedis:
		return redis.New(ctx, &cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	h := opts.NewPrettyHandler(os.Stdout)

	return slog.New(h)
}
