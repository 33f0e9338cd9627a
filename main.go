package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tripgenie/database"
	"tripgenie/engine"
	"tripgenie/events"
	"tripgenie/handlers"
	"tripgenie/services"
)

func main() {
	// Load .env file (ignored in production where env vars are set directly)
	_ = godotenv.Load()

	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	// Database
	store, err := database.Open(logger)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	// Provider gateway, wrapped with the Postgres-backed TTL cache
	gateway := services.NewGateway(services.GatewayConfigFromEnv(), logger)
	cachedGateway := services.NewCachedGateway(gateway, store, logger)
	defer cachedGateway.Close()

	// Core engine
	aggregator := engine.NewAggregator(cachedGateway, logger)

	// Optional AI rewrite (nil writer means deterministic insights only)
	insightWriter := services.NewInsightWriter(logger)

	// Optional Kafka analytics events
	var producer *events.Producer
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		producer = events.NewProducer(strings.Split(brokers, ","), logger)
		defer func() { _ = producer.Close() }()
		logger.Info("kafka producer enabled", zap.String("brokers", brokers))
	}

	// Gin
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	_ = r.SetTrustedProxies([]string{"0.0.0.0/0"})

	// CORS: allow configured frontend origins
	allowedOrigins := []string{"http://localhost:5173", "http://localhost:3000"}
	if frontendURLs := os.Getenv("FRONTEND_URL"); frontendURLs != "" {
		for _, u := range strings.Split(frontendURLs, ",") {
			if u = strings.TrimSpace(u); u != "" {
				allowedOrigins = append(allowedOrigins, u)
			}
		}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Routes
	api := r.Group("/api")
	handlers.NewHealthHandler(store).RegisterRoutes(api)
	handlers.NewEstimateHandler(aggregator, insightWriter, store, producer, logger).RegisterRoutes(api)
	handlers.NewDestinationsHandler(cachedGateway).RegisterRoutes(api)
	handlers.NewReportHandler(store, logger).RegisterRoutes(api)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{Addr: ":" + port, Handler: r}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("TripGenie backend starting", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	// Block until SIGINT/SIGTERM, then stop accepting requests and let the
	// deferred closes drain the cache queue, Kafka writer and DB pool.
	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forced shutdown", zap.Error(err))
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("GIN_MODE") == "release" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
