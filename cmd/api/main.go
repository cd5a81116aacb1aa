package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Tomlord1122/todo-share/internal/auth"
	"github.com/Tomlord1122/todo-share/internal/config"
	"github.com/Tomlord1122/todo-share/internal/database"
	"github.com/Tomlord1122/todo-share/internal/events"
	"github.com/Tomlord1122/todo-share/internal/kafka"
	"github.com/Tomlord1122/todo-share/internal/logger"
	"github.com/Tomlord1122/todo-share/internal/metrics"
	"github.com/Tomlord1122/todo-share/internal/notify"
	"github.com/Tomlord1122/todo-share/internal/repository"
	"github.com/Tomlord1122/todo-share/internal/server"
	"github.com/Tomlord1122/todo-share/internal/service"
	"github.com/Tomlord1122/todo-share/internal/session"
)

type closer struct {
	name string
	io.Closer
}

func gracefulShutdown(apiServer *http.Server, closers []closer, log zerolog.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")
	stop()

	// The server has 5 seconds to finish the requests it is currently handling.
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Closed in reverse order of creation.
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Error().Err(err).Str("resource", closers[i].name).Msg("close failed")
			continue
		}
		log.Info().Str("resource", closers[i].name).Msg("closed")
	}

	log.Info().Msg("server exiting")
	done <- true
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "json")
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	// 1. Database
	dbService, err := database.New(cfg.DB.DSN(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	closers := []closer{{"database", dbService}}
	if cfg.DB.AutoMigrate {
		log.Info().Msg("running database auto-migration")
		if err := dbService.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("failed to auto-migrate database")
		}
	}
	gormDB := dbService.GetDB()

	// 2. Repositories
	userRepo := repository.NewGormUserRepository(gormDB)
	todoRepo := repository.NewGormTodoRepository(gormDB)
	shareRepo := repository.NewGormShareRepository(gormDB)
	notificationRepo := repository.NewGormNotificationRepository(gormDB)
	blogRepo := repository.NewGormBlogRepository(gormDB)

	// 3. Events
	m := metrics.New()
	var publisher events.Publisher
	switch cfg.EventMode {
	case config.EventModeKafka:
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		closers = append(closers, closer{"kafka producer", producer})
		publisher = producer
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing events to kafka")
	default:
		dispatcher := notify.NewDispatcher(notificationRepo, log.With().Str("component", "notify").Logger(), m)
		publisher = events.NewBus(log, dispatcher.Routes()...)
	}

	// 4. Token revocation
	var revoked session.RevocationStore = session.NewMemoryStore()
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to redis")
		}
		closers = append(closers, closer{"redis", client})
		revoked = session.NewRedisStore(client)
	}
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	// 5. Services
	access := service.NewAccessResolver(todoRepo, shareRepo)
	deps := server.Dependencies{
		Todos:         service.NewTodoService(todoRepo, shareRepo, userRepo, access, publisher, log),
		Shares:        service.NewShareService(todoRepo, shareRepo, userRepo, publisher, log),
		Notifications: service.NewNotificationService(notificationRepo),
		Auth:          service.NewAuthService(userRepo, tokens, revoked, log),
		Blogs:         service.NewBlogService(blogRepo, log),
		DB:            dbService,
		Metrics:       m,
	}

	// 6. Server
	chiServer := server.NewServer(cfg, deps, log)

	done := make(chan bool, 1)
	go gracefulShutdown(chiServer, closers, log, done)

	log.Info().Str("addr", chiServer.Addr).Str("event_mode", cfg.EventMode).Msg("starting server")
	err = chiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("http server stopped")
		os.Exit(1)
	}

	<-done
	log.Info().Msg("graceful shutdown complete")
}
