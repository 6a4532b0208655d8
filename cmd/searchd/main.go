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

	"github.com/huddlechat/message-search/internal/message"
	"github.com/huddlechat/message-search/internal/message/consumer"
	"github.com/huddlechat/message-search/internal/search/authz"
	"github.com/huddlechat/message-search/internal/search/cache"
	"github.com/huddlechat/message-search/internal/search/engine"
	"github.com/huddlechat/message-search/internal/search/events"
	"github.com/huddlechat/message-search/internal/search/handler"
	"github.com/huddlechat/message-search/internal/search/index"
	"github.com/huddlechat/message-search/internal/search/indexer"
	"github.com/huddlechat/message-search/pkg/config"
	"github.com/huddlechat/message-search/pkg/health"
	"github.com/huddlechat/message-search/pkg/kafka"
	"github.com/huddlechat/message-search/pkg/logger"
	"github.com/huddlechat/message-search/pkg/metrics"
	"github.com/huddlechat/message-search/pkg/middleware"
	"github.com/huddlechat/message-search/pkg/postgres"
	pkgredis "github.com/huddlechat/message-search/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
		slog.Info("metrics server started", "port", cfg.Metrics.Port)
	}

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()
	messageStore := message.NewPostgresStore(pg.DB)
	accessProvider := authz.NewPostgresProvider(pg.DB)

	var queryCache *cache.QueryCache
	var redisClient *pkgredis.Client
	redisClient, err = pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		queryCache = cache.New(redisClient, cfg.Redis)
		slog.Info("search cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	eventsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
	defer eventsProducer.Close()
	collector := events.NewCollector(eventsProducer, 10000)
	collector.Start(ctx)
	defer collector.Close()
	slog.Info("observability collector started", "topic", cfg.Kafka.Topics.SearchEvents)

	idx := index.NewMemoryIndex()
	ix := indexer.New(idx, cfg.Indexer,
		indexer.WithCollector(collector),
		indexer.WithMetrics(m),
	)
	ix.Start(ctx)

	// The index lives in memory; every start replays the message store so
	// searches never run against a partial index.
	slog.Info("rebuilding index from message store")
	if err := ix.RebuildAll(ctx, messageStore); err != nil {
		slog.Error("index rebuild failed", "error", err)
		os.Exit(1)
	}
	slog.Info("index ready", "documents", idx.DocCount(), "terms", idx.TermCount())

	lifecycle := consumer.New(ix, invalidator(queryCache))
	messageConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.MessageEvents, lifecycle.Handle)
	go func() {
		if err := consumer.Run(ctx, messageConsumer); err != nil {
			slog.Error("message consumer error", "error", err)
		}
	}()
	defer messageConsumer.Close()
	slog.Info("message consumer started", "topic", cfg.Kafka.Topics.MessageEvents)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d documents indexed", idx.DocCount()),
		}
	})
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if err := pg.DB.PingContext(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	eng := engine.New(idx, accessProvider, messageStore, cfg.Search)
	h := handler.New(eng, queryCache, collector, m)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
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
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// invalidator avoids handing the consumer a non-nil interface wrapping a nil
// *cache.QueryCache when caching is disabled.
func invalidator(c *cache.QueryCache) consumer.Invalidator {
	if c == nil {
		return nil
	}
	return c
}
