// Command notifier consumes todo events from kafka and writes the
// notifications for them. It is only needed with EVENT_MODE=kafka.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/joho/godotenv/autoload"

	"github.com/Tomlord1122/todo-share/internal/config"
	"github.com/Tomlord1122/todo-share/internal/database"
	"github.com/Tomlord1122/todo-share/internal/events"
	"github.com/Tomlord1122/todo-share/internal/kafka"
	"github.com/Tomlord1122/todo-share/internal/logger"
	"github.com/Tomlord1122/todo-share/internal/metrics"
	"github.com/Tomlord1122/todo-share/internal/notify"
	"github.com/Tomlord1122/todo-share/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "json")
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat).With().Str("service", "notifier").Logger()
	if len(cfg.Kafka.Brokers) == 0 {
		log.Fatal().Msg("KAFKA_BROKERS is required for the notifier")
	}

	dbService, err := database.New(cfg.DB.DSN(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	if cfg.DB.AutoMigrate {
		if err := dbService.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("failed to auto-migrate database")
		}
	}

	m := metrics.New()
	dispatcher := notify.NewDispatcher(
		repository.NewGormNotificationRepository(dbService.GetDB()),
		log.With().Str("component", "notify").Logger(),
		m,
	)
	bus := events.NewBus(log, dispatcher.Routes()...)
	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, bus, log)

	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		status := dbService.Health()["status"]
		if status == "down" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())
	probe := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := probe.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("probe server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	log.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Str("group_id", cfg.Kafka.GroupID).
		Msg("consuming todo events")
	runErr := consumer.Run(ctx)

	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := probe.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("probe server forced to shutdown")
	}
	cancel()
	if err := consumer.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close consumer")
	}
	if err := dbService.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close database")
	}
	if runErr != nil {
		log.Error().Err(runErr).Msg("consumer stopped")
		os.Exit(1)
	}
	log.Info().Msg("notifier exiting")
}
