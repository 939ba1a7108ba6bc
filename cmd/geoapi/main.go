package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/api/cache"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/api/router"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/referentiel"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/internal/refresh"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/geo-search-api/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting geo api", "port", cfg.Server.Port, "source", cfg.Dataset.Source)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownMetrics(shutdownCtx)
		}()
	}

	checker := health.NewChecker()

	var source dataset.Source
	switch cfg.Dataset.Source {
	case "s3":
		s3, err := dataset.NewObjectStoreSource(cfg.ObjectStore)
		if err != nil {
			slog.Error("failed to create object store source", "error", err)
			os.Exit(1)
		}
		source = s3
	case "postgres":
		pg, err := postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("failed to ensure snapshot table", "error", err)
			os.Exit(1)
		}
		checker.Register("postgres", health.PingCheck(pg.Ping))
		source = dataset.PostgresSource{Store: pg}
	default:
		source = dataset.FileSource{Dir: cfg.Dataset.Dir}
	}

	loader := dataset.NewLoader(source, dataset.LoaderOptions{
		GeometryFields: cfg.Dataset.GeometryFields,
		Timeout:        cfg.Dataset.LoadTimeout,
		Retry: resilience.RetryConfig{
			MaxAttempts:    cfg.Dataset.MaxRetries,
			InitialDelay:   500 * time.Millisecond,
			MaxDelay:       10 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
		},
	})

	files := make(map[referentiel.Kind]string, len(cfg.Dataset.Files))
	for kind, name := range cfg.Dataset.Files {
		files[referentiel.Kind(kind)] = name
	}
	registry, err := referentiel.NewRegistry(loader, files, m)
	if err != nil {
		slog.Error("invalid collection definitions", "error", err)
		os.Exit(1)
	}
	snap, err := registry.Reload(ctx)
	if err != nil {
		slog.Error("failed to load dataset", "error", err)
		os.Exit(1)
	}
	slog.Info("dataset loaded", "generation", snap.Generation, "counts", snap.Counts())

	checker.Register("dataset", health.SnapshotCheck(func() (int64, bool) {
		current := registry.Current()
		if current == nil {
			return 0, false
		}
		return current.Generation, true
	}))

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, shared cache tier disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
			checker.Register("redis", health.PingCheck(redisClient.Ping))
		}
	}

	var responseCache *cache.ResponseCache
	if cfg.Cache.Enabled {
		responseCache, err = cache.New(cfg.Cache, cache.NewRedisRemote(redisClient), m)
		if err != nil {
			slog.Error("failed to create response cache", "error", err)
			os.Exit(1)
		}
		defer responseCache.Close()
		slog.Info("response cache enabled", "ttl", cfg.Cache.TTL, "shared", redisClient != nil)
	}

	aggregator := analytics.NewAggregator()
	trackers := analytics.Trackers{aggregator}

	if cfg.Kafka.Enabled {
		lookupProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.LookupEvents)
		defer lookupProducer.Close()
		collector := analytics.NewCollector(lookupProducer, 10000, 100, time.Second)
		collector.Start(ctx)
		defer collector.Close()
		trackers = append(trackers, collector)
		slog.Info("lookup events published", "topic", cfg.Kafka.Topics.LookupEvents)

		reloadedProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DatasetReloaded)
		defer reloadedProducer.Close()
		refresher := refresh.New(registry, reloadedProducer, invalidator(responseCache))
		refreshConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DatasetRefresh, refresher.Handle)
		defer refreshConsumer.Close()
		go func() {
			if err := refreshConsumer.Start(ctx); err != nil {
				slog.Error("refresh consumer stopped", "error", err)
			}
		}()
		slog.Info("listening for dataset refreshes", "topic", cfg.Kafka.Topics.DatasetRefresh)
	}

	opts := router.Options{
		Health:         checker,
		Analytics:      analytics.NewHandler(aggregator),
		Metrics:        m,
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowOrigins = cfg.Server.CORSOrigins
		opts.CORS = cors
	}
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, 10*time.Minute)
		go limiter.Cleanup(ctx, time.Minute)
		opts.Limiter = limiter
	}

	h := handler.New(registry, responseCache, trackers, m)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.New(h, opts),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("geo api listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("geo api stopped")
}

// invalidator keeps a disabled cache from becoming a non-nil interface.
func invalidator(c *cache.ResponseCache) refresh.Invalidator {
	if c == nil {
		return nil
	}
	return c
}
