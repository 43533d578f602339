// Command siteapi starts the site's submission and publishing service.
//
// It serves the public contact endpoint at POST /api/contact and the
// authenticated publish endpoint at GET/POST /api/posts, plus health probes
// at /health. PostgreSQL (submission archive), Redis (listing cache), and
// Kafka (acceptance events) are optional collaborators, each enabled by
// configuration.
//
// Usage:
//
//	go run ./cmd/siteapi [-config configs/development.yaml]
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

	"golang.org/x/sync/errgroup"

	"siteapi/internal/captcha"
	contacthandler "siteapi/internal/contact/handler"
	contactstore "siteapi/internal/contact/store"
	publishhandler "siteapi/internal/publish/handler"
	publishstore "siteapi/internal/publish/store"
	"siteapi/internal/ratelimit"
	"siteapi/pkg/config"
	"siteapi/pkg/health"
	"siteapi/pkg/kafka"
	"siteapi/pkg/logger"
	"siteapi/pkg/metrics"
	"siteapi/pkg/middleware"
	"siteapi/pkg/postgres"
	"siteapi/pkg/redis"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting siteapi", "port", cfg.Server.Port)

	m := metrics.New()
	checker := health.NewChecker()

	var db *postgres.Client
	if cfg.Postgres.Enabled {
		db, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		slog.Info("connected to postgres")
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := db.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	var cache *redis.Client
	if cfg.Redis.Enabled {
		cache, err = redis.NewClient(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer cache.Close()
		slog.Info("connected to redis")
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := cache.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka, cfg.Kafka.ContactTopic)
		defer producer.Close()
		slog.Info("kafka producer initialized", "topic", cfg.Kafka.ContactTopic)
	}

	limiter := ratelimit.New(cfg.Contact.RateLimitWindow, cfg.Contact.RateLimitMax)
	defer limiter.Stop()

	verifier := captcha.New(cfg.Contact, captcha.WithLatencyObserver(m.CaptchaLatency.Observe))
	if verifier.Enabled() {
		slog.Info("captcha verification enabled", "failure_mode", cfg.Contact.CaptchaFailureMode)
	} else {
		slog.Warn("captcha verification disabled, no secret configured")
	}
	if cfg.Publish.Token == "" {
		slog.Warn("publish endpoint is open, no token configured")
	}

	var archive contacthandler.Archiver
	if db != nil {
		archive = contactstore.New(db)
	}
	var notifier contacthandler.Notifier
	if producer != nil {
		notifier = producer
	}

	contentStore := publishstore.New(cfg.Publish.ContentDir, cfg.Publish.Extension)
	checker.Register("content-dir", func(ctx context.Context) health.ComponentHealth {
		if err := os.MkdirAll(contentStore.Dir(), 0o755); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	ch := contacthandler.New(limiter, verifier, archive, notifier, m)
	ph := publishhandler.New(contentStore, cfg.Publish.Token, cache, cfg.Publish.ListTTL, m)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/contact", ch.Submit)
	mux.HandleFunc("GET /api/posts", ph.List)
	mux.HandleFunc("POST /api/posts", ph.Create)
	mux.HandleFunc("GET /health", checker.ReadyHandler())
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	chain := middleware.RequestID()(
		middleware.Metrics(m)(
			middleware.Timeout(cfg.Server.RequestTimeout)(mux),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var shutdownMetrics func(context.Context) error
	if cfg.Metrics.Enabled {
		shutdownMetrics = metrics.StartServer(cfg.Metrics.Port)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("siteapi listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if shutdownMetrics != nil {
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("siteapi stopped")
}
