package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fjod/cart-recovery/internal/consumer"
	"github.com/fjod/cart-recovery/internal/domain"
	"github.com/fjod/cart-recovery/internal/gateway"
	"github.com/fjod/cart-recovery/internal/identity"
	"github.com/fjod/cart-recovery/internal/mirror"
	"github.com/fjod/cart-recovery/internal/recovery"
	"github.com/fjod/cart-recovery/internal/reminder"
	"github.com/fjod/cart-recovery/internal/snapshot"
	"github.com/fjod/cart-recovery/internal/stats"
	"github.com/fjod/cart-recovery/internal/store"
	enginesync "github.com/fjod/cart-recovery/internal/sync"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	HTTPPort        string
	RedisAddr       string
	RedisPassword   string
	MongoURI        string
	MongoDBName     string
	KafkaBrokers    []string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	SyncDebounce    time.Duration
	SyncMinInterval time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName:     getEnv("MONGO_DB_NAME", "recoverydb"),
		KafkaBrokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		SyncDebounce:    enginesync.DefaultDebounce,
		SyncMinInterval: enginesync.DefaultMinInterval,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	ctx := context.Background()

	// Device-local durable storage
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	log.Printf("Redis ping succeeded")

	snapshots := snapshot.NewRedisStore(redisClient)

	resolver, err := identity.NewResolver(ctx, snapshots)
	if err != nil {
		log.Fatalf("Failed to resolve identity: %v", err)
	}
	log.Printf("Session identity: %s", resolver.SessionID())

	// Remote mirror
	mongoDB, err := mirror.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	records := mirror.NewMongoRepository(mongoDB)
	log.Printf("Connected to MongoDB at %s", cfg.MongoURI)

	// Cart engine wiring
	marker := recovery.NewMarker(records, resolver)
	cartStore := store.NewCartStore(domain.DefaultPricing(), snapshots, marker)
	engine := enginesync.NewEngine(records, resolver, cfg.SyncDebounce, cfg.SyncMinInterval)
	cartStore.Subscribe(engine.CartChanged)

	if err := cartStore.Hydrate(ctx); err != nil {
		log.Printf("Failed to hydrate cart snapshot: %v", err)
	}

	// Admin path
	notifier := reminder.NewKafkaNotifier(cfg.KafkaBrokers...)
	defer notifier.Close()
	scheduler := reminder.NewScheduler(records, notifier, reminder.DefaultSendDelay)
	aggregator := stats.NewAggregator(records)

	// Checkout-completed events from the payment pipeline
	consumerCtx, cancelConsumer := context.WithCancel(ctx)
	checkoutConsumer := consumer.NewConsumer(cartStore, resolver, cfg.KafkaBrokers...)
	go checkoutConsumer.Run(consumerCtx)

	cartHandler := gateway.NewCartHandler(cartStore, resolver, cfg.RequestTimeout)
	adminHandler := gateway.NewAdminHandler(scheduler, aggregator, records, cfg.RequestTimeout)
	router := gateway.NewRouter(cartHandler, adminHandler, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Cart recovery engine listening on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server forced to shutdown: %v", err)
	}

	cancelConsumer()
	checkoutConsumer.Close()

	// Push the last local state before the process dies.
	engine.Flush(shutdownCtx)
	engine.Close()

	if err := mongoDB.Client().Disconnect(shutdownCtx); err != nil {
		log.Printf("mongo disconnect failed: %v", err)
	}
	log.Println("cart recovery engine stopped")
}
