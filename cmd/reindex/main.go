// Command reindex rebuilds a search index from the message store and reports
// what it found. Useful for verifying index integrity out of band and for
// sizing the startup rebuild of a new deployment.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/huddlechat/message-search/internal/message"
	"github.com/huddlechat/message-search/internal/search/index"
	"github.com/huddlechat/message-search/internal/search/indexer"
	"github.com/huddlechat/message-search/pkg/config"
	"github.com/huddlechat/message-search/pkg/logger"
	"github.com/huddlechat/message-search/pkg/postgres"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pg.Close()
	store := message.NewPostgresStore(pg.DB)

	idx := index.NewMemoryIndex()
	ix := indexer.New(idx, cfg.Indexer)

	start := time.Now()
	if err := ix.RebuildAll(ctx, store); err != nil {
		slog.Error("rebuild failed", "error", err)
		os.Exit(1)
	}
	elapsed := time.Since(start)

	slog.Info("rebuild complete",
		"documents", idx.DocCount(),
		"terms", idx.TermCount(),
		"avg_doc_length", fmt.Sprintf("%.1f", idx.AvgDocLength()),
		"elapsed", elapsed.Round(time.Millisecond).String(),
	)
}
