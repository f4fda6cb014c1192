// The scheduler is the process behind recurring ledger entries: once per
// period it asks the recurrence scheduler to materialize everything due.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/budgetwise/backend/internal/database"
	"github.com/budgetwise/backend/internal/events"
	"github.com/budgetwise/backend/internal/events/kafka"
	"github.com/budgetwise/backend/internal/services"
	"github.com/budgetwise/backend/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("Starting recurrence scheduler")

	viper.AutomaticEnv()
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("kafka.topic", "KAFKA_TOPIC")
	viper.BindEnv("scheduler.interval", "SCHEDULER_INTERVAL")
	viper.SetDefault("kafka.topic", "ledger_events")
	viper.SetDefault("scheduler.interval", 24*time.Hour)

	db, err := database.InitDB()
	if err != nil {
		logger.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var publisher events.Publisher
	if brokers := viper.GetString("kafka.brokers"); brokers != "" {
		kafkaPublisher := kafka.NewPublisher(strings.Split(brokers, ","), viper.GetString("kafka.topic"))
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	store := postgres.NewStore(db)
	scheduler := services.NewRecurrenceScheduler(store, store, publisher, services.NewUserLocks())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interval := viper.GetDuration("scheduler.interval")
	logger.Info("Recurrence scheduler configured", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Run once at startup so entries that fell due while the process was
	// down are not delayed a full period.
	if count, err := scheduler.Run(ctx, time.Now()); err != nil {
		logger.Error("Initial run failed", "error", err)
	} else {
		logger.Info("Initial run complete", "entries_created", count)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				count, err := scheduler.Run(ctx, now)
				if err != nil {
					logger.Error("Periodic run failed", "error", err)
				} else {
					logger.Info("Periodic run complete",
						"entries_created", count,
						"next_run", now.Add(interval).Format(time.RFC3339))
				}
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())
	cancel()
	logger.Info("Recurrence scheduler shutdown complete")
}
