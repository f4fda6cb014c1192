package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/budgetwise/backend/internal/database"
	"github.com/budgetwise/backend/internal/events"
	"github.com/budgetwise/backend/internal/events/kafka"
	"github.com/budgetwise/backend/internal/handlers"
	mW "github.com/budgetwise/backend/internal/middleware"
	"github.com/budgetwise/backend/internal/models"
	"github.com/budgetwise/backend/internal/services"
	"github.com/budgetwise/backend/internal/storage/postgres"
)

func main() {
	// Load .env for local development; viper picks the values up from the
	// environment afterwards.
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	viper.AutomaticEnv()
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	viper.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	viper.BindEnv("kafka.topic", "KAFKA_TOPIC")
	viper.SetDefault("kafka.topic", "ledger_events")

	db, err := database.InitDB()
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	var publisher events.Publisher
	if brokers := viper.GetString("kafka.brokers"); brokers != "" {
		kafkaPublisher := kafka.NewPublisher(strings.Split(brokers, ","), viper.GetString("kafka.topic"))
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		slog.Info("Kafka publisher initialized", "brokers", brokers)
	} else {
		slog.Info("Kafka disabled - ledger events will not be published")
	}

	store := postgres.NewStore(db)
	locks := services.NewUserLocks()

	ledgerService := services.NewLedgerService(store, store, publisher, locks)
	authService := services.NewAuthService(store, redisClient)
	subscriptionService := services.NewSubscriptionService(store, store)

	ledgerHandler := handlers.NewLedgerHandler(ledgerService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)
	userHandler := handlers.NewUserHandler(store)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)
		r.Get("/plans", subscriptionHandler.ListPlans)
		r.Get("/plans/{id}", subscriptionHandler.GetPlan)

		// Protected endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.Auth(redisClient))

			r.Get("/auth/account", userHandler.GetAccount)

			r.Route("/incomes", func(r chi.Router) {
				ledgerHandler.Routes(r, models.EntryTypeIncome)
			})
			r.Route("/expenses", func(r chi.Router) {
				ledgerHandler.Routes(r, models.EntryTypeExpense)
			})

			r.Post("/plans/{id}/subscribe", subscriptionHandler.Subscribe)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("Server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped")
}
