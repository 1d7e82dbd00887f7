package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bookshop/internal/app/cart"
	"bookshop/internal/app/checkout"
	"bookshop/internal/app/ipn"
	"bookshop/internal/config"
	"bookshop/internal/fx"
	"bookshop/internal/gateway/vnpay"
	cart_http "bookshop/internal/handler/http/cart"
	checkout_http "bookshop/internal/handler/http/checkout"
	payment_http "bookshop/internal/handler/http/payment"
	kafka_handler "bookshop/internal/handler/kafka"
	"bookshop/internal/infrastructure/database"
	"bookshop/internal/infrastructure/kafka"
	"bookshop/internal/outbox"
	postgres_address_repo "bookshop/internal/repository/address_repo/postgres"
	postgres_book_repo "bookshop/internal/repository/book_repo/postgres"
	postgres_cart_repo "bookshop/internal/repository/cart_repo/postgres"
	postgres_order_repo "bookshop/internal/repository/order_repo/postgres"
	postgres_outbox_repo "bookshop/internal/repository/outbox_repo/postgres"
	postgres_payment_repo "bookshop/internal/repository/payment_repo/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"

	appLogger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	appLogger.Info("Bookshop checkout service starting...")

	appLogger.Info("Waiting for database to be available...")
	var db *sql.DB
	maxRetries := 10
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = database.NewPostgresDB(cfg.DB)
		if err == nil {
			appLogger.Info("Successfully connected to PostgreSQL database!")
			break
		}
		appLogger.Warn(fmt.Sprintf("Failed to connect to database (attempt %d/%d): %v. Retrying in %s...", i+1, maxRetries, err, retryDelay))
		time.Sleep(retryDelay)
	}
	if db == nil {
		appLogger.Fatal("Could not connect to database after multiple retries. Exiting.", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	appLogger.Info("Running database migrations...")
	migrateDSN := "postgres://" + cfg.GetDBMigrationConnectionString()
	m, err := migrate.New("file://migrations", migrateDSN)
	if err != nil {
		appLogger.Fatal("Failed to create migrate instance", zap.Error(err))
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	appLogger.Info("Database migrations completed successfully (or no new migrations).")

	kafkaProducer, err := kafka.NewProducer(cfg.GetKafkaBrokers(), appLogger)
	if err != nil {
		appLogger.Fatal("Failed to create Kafka producer", zap.Error(err))
	}
	defer func() {
		if err := kafkaProducer.Close(); err != nil {
			appLogger.Error("Error closing Kafka producer", zap.Error(err))
		}
	}()

	txManager := database.NewTxManager(db)
	cartRepository := postgres_cart_repo.NewCartRepository()
	bookRepository := postgres_book_repo.NewBookRepository()
	orderRepository := postgres_order_repo.NewOrderRepository()
	paymentRepository := postgres_payment_repo.NewPaymentRepository()
	addressRepository := postgres_address_repo.NewAddressRepository()
	userRepository := postgres_address_repo.NewUserRepository()
	outboxRepository := postgres_outbox_repo.NewOutboxRepository()

	converter := fx.NewClient(fx.Config{
		URL:       cfg.FXAPIURL,
		AccessKey: cfg.FXAccessKey,
		Timeout:   cfg.FXTimeout,
	}, appLogger)

	vnpConfig := vnpay.Config{
		TmnCode:    cfg.VNPayTmnCode,
		HashSecret: cfg.VNPayHashSecret,
		GatewayURL: cfg.VNPayGatewayURL,
		ReturnURL:  cfg.VNPayReturnURL,
	}

	cartService := cart.NewCartService(db, txManager, cartRepository, bookRepository, cfg.RecalcBatchSize, appLogger)
	checkoutService := checkout.NewCheckoutService(db, txManager, cartRepository, bookRepository,
		orderRepository, paymentRepository, addressRepository, userRepository, converter, vnpConfig, appLogger)
	ipnService := ipn.NewIPNService(txManager, orderRepository, paymentRepository, bookRepository,
		cartRepository, ipn.NewOutboxWriter(outboxRepository), cfg.VNPayHashSecret, cfg.KafkaOrderPaidTopic, appLogger)

	rootCtx, stopRoot := context.WithCancel(context.Background())
	defer stopRoot()

	outboxProcessor := outbox.NewProcessor(db, outboxRepository, kafkaProducer,
		cfg.OutboxPollInterval, cfg.OutboxPollTimeout, appLogger)
	outboxProcessor.Start(rootCtx)
	defer outboxProcessor.Stop()

	kafka.StartConsumer(rootCtx, cfg.GetKafkaBrokers(), cfg.KafkaBookUpdatedTopic, cfg.KafkaConsumerGroup,
		kafka_handler.BookUpdatedMessageHandler(cartService, appLogger), appLogger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-User-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Bookshop checkout service is healthy!"))
	})

	cart_http.RegisterRoutes(r, cartService, appLogger)
	checkout_http.RegisterRoutes(r, checkoutService, appLogger)
	payment_http.RegisterRoutes(r, ipnService, cfg.VNPayHashSecret, cfg.FrontendURL, appLogger)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("HTTP server failed", zap.Error(err))
		}
	}()
	appLogger.Info("Bookshop checkout service started", zap.String("address", server.Addr))

	<-sigChan

	appLogger.Info("Shutting down bookshop checkout service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Fatal("Graceful shutdown failed", zap.Error(err))
	}
	stopRoot()
	appLogger.Info("Bookshop checkout service stopped.")
}
