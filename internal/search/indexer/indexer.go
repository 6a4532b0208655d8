// Package indexer keeps the inverted index consistent with the message
// store. It consumes message lifecycle events (create, delete), is
// idempotent under replay, and supports full rebuilds from the authoritative
// store. Index failures never propagate to the message-creation path: a
// failed write goes through a bounded background retry queue, and exhaustion
// is surfaced as a metric plus an observability event.
package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/huddlechat/message-search/internal/message"
	"github.com/huddlechat/message-search/internal/search/events"
	"github.com/huddlechat/message-search/internal/search/index"
	"github.com/huddlechat/message-search/internal/search/tokenizer"
	"github.com/huddlechat/message-search/pkg/config"
	"github.com/huddlechat/message-search/pkg/metrics"
	"github.com/huddlechat/message-search/pkg/resilience"
)

// Store is the write-side interface to the inverted index.
type Store interface {
	Upsert(e *index.Entry) error
	Remove(messageID string) (bool, error)
	DocCount() int
}

const (
	opUpsert = "upsert"
	opRemove = "remove"
)

type retryOp struct {
	op        string
	entry     *index.Entry
	messageID string
	roomID    string
}

// Indexer applies message lifecycle changes to a Store.
type Indexer struct {
	store     Store
	cfg       config.IndexerConfig
	logger    *slog.Logger
	collector *events.Collector
	metrics   *metrics.Metrics
	retryCh   chan retryOp
	done      chan struct{}
}

// Option configures optional Indexer collaborators.
type Option func(*Indexer)

// WithCollector attaches an observability event collector.
func WithCollector(c *events.Collector) Option {
	return func(ix *Indexer) { ix.collector = c }
}

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ix *Indexer) { ix.metrics = m }
}

// New creates an Indexer over the given store.
func New(store Store, cfg config.IndexerConfig, opts ...Option) *Indexer {
	if cfg.RetryQueueSize <= 0 {
		cfg.RetryQueueSize = 1024
	}
	ix := &Indexer{
		store:   store,
		cfg:     cfg,
		logger:  slog.Default().With("component", "indexer"),
		retryCh: make(chan retryOp, cfg.RetryQueueSize),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Start launches the background retry worker. It drains until ctx is
// cancelled.
func (ix *Indexer) Start(ctx context.Context) {
	go func() {
		defer close(ix.done)
		for {
			select {
			case op := <-ix.retryCh:
				ix.retry(ctx, op)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Wait blocks until the retry worker has stopped.
func (ix *Indexer) Wait() {
	<-ix.done
}

// BuildEntry tokenizes a message into an index entry. It returns nil for
// messages with no indexable content; such messages get no entry at all.
func BuildEntry(msg message.Message) *index.Entry {
	tokens := tokenizer.Tokenize(msg.Content)
	if len(tokens) == 0 {
		return nil
	}
	terms := make(map[string]*index.Posting)
	for _, token := range tokens {
		p, exists := terms[token.Term]
		if !exists {
			p = &index.Posting{
				MessageID: msg.ID,
				RoomID:    msg.RoomID,
				DocLength: len(tokens),
				CreatedAt: msg.CreatedAt,
				Positions: make([]int, 0, 4),
			}
			terms[token.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
	}
	return &index.Entry{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		DocLength: len(tokens),
		CreatedAt: msg.CreatedAt,
		Terms:     terms,
	}
}

// OnMessageCreated indexes a newly committed message. Replaying the same
// message id replaces the previous entry (last write wins), so upstream
// dedup replays are harmless.
func (ix *Indexer) OnMessageCreated(ctx context.Context, msg message.Message) {
	entry := BuildEntry(msg)
	if entry == nil {
		// Empty content carries the invariant: no entry may exist.
		if removed, _ := ix.store.Remove(msg.ID); removed {
			ix.logger.Debug("removed entry for message with empty content", "message_id", msg.ID)
		}
		return
	}
	if err := ix.store.Upsert(entry); err != nil {
		ix.logger.Warn("index upsert failed, queueing retry",
			"message_id", msg.ID,
			"error", err,
		)
		ix.countOp(opUpsert, "error")
		ix.enqueue(retryOp{op: opUpsert, entry: entry, messageID: msg.ID, roomID: msg.RoomID})
		return
	}
	ix.countOp(opUpsert, "ok")
	ix.updateGauge()
	ix.logger.Debug("message indexed",
		"message_id", msg.ID,
		"room_id", msg.RoomID,
		"doc_length", entry.DocLength,
	)
}

// OnMessageDeleted removes the entry and all its postings. Deleting an id
// that was never indexed (or already removed) is logged, not raised.
func (ix *Indexer) OnMessageDeleted(ctx context.Context, messageID string) {
	removed, err := ix.store.Remove(messageID)
	if err != nil {
		ix.logger.Warn("index remove failed, queueing retry",
			"message_id", messageID,
			"error", err,
		)
		ix.countOp(opRemove, "error")
		ix.enqueue(retryOp{op: opRemove, messageID: messageID})
		return
	}
	if !removed {
		ix.logger.Debug("delete for unindexed message ignored", "message_id", messageID)
		return
	}
	ix.countOp(opRemove, "ok")
	ix.updateGauge()
	ix.logger.Debug("message removed from index", "message_id", messageID)
}

// RebuildAll reconstructs the index from the authoritative message store.
// Because Upsert is last-write-wins per message id and messages are keyed
// uniquely, applying the same message set in any order yields an identical
// index.
func (ix *Indexer) RebuildAll(ctx context.Context, src message.Store) error {
	start := time.Now()
	var indexed, skipped int
	err := src.Iterate(ctx, func(msg message.Message) error {
		entry := BuildEntry(msg)
		if entry == nil {
			skipped++
			return nil
		}
		if err := ix.store.Upsert(entry); err != nil {
			return err
		}
		indexed++
		return nil
	})
	if err != nil {
		return err
	}
	ix.updateGauge()
	ix.logger.Info("index rebuild complete",
		"indexed", indexed,
		"skipped_empty", skipped,
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return nil
}

func (ix *Indexer) enqueue(op retryOp) {
	select {
	case ix.retryCh <- op:
	default:
		ix.logger.Error("retry queue full, dropping index operation",
			"op", op.op,
			"message_id", op.messageID,
		)
		ix.exhausted(op, "retry queue full")
	}
}

func (ix *Indexer) retry(ctx context.Context, op retryOp) {
	err := resilience.Retry(ctx, "index-"+op.op, resilience.RetryConfig{
		MaxAttempts:  ix.cfg.RetryMaxAttempts,
		InitialDelay: ix.cfg.RetryInitialDelay,
		MaxDelay:     ix.cfg.RetryMaxDelay,
	}, func() error {
		switch op.op {
		case opUpsert:
			return ix.store.Upsert(op.entry)
		default:
			_, err := ix.store.Remove(op.messageID)
			return err
		}
	})
	if err != nil {
		ix.exhausted(op, err.Error())
		return
	}
	ix.countOp(op.op, "retried_ok")
	ix.updateGauge()
}

func (ix *Indexer) exhausted(op retryOp, reason string) {
	ix.logger.Error("index operation abandoned",
		"op", op.op,
		"message_id", op.messageID,
		"reason", reason,
	)
	if ix.metrics != nil {
		ix.metrics.IndexRetryExhausted.Inc()
	}
	if ix.collector != nil {
		ix.collector.Track(events.IndexRetryExhausted{
			Type:      events.TypeIndexRetryExhausted,
			Op:        op.op,
			MessageID: op.messageID,
			RoomID:    op.roomID,
			Error:     reason,
			Attempts:  ix.cfg.RetryMaxAttempts,
			Timestamp: time.Now().UTC(),
		})
	}
}

func (ix *Indexer) countOp(op, status string) {
	if ix.metrics != nil {
		ix.metrics.IndexOpsTotal.WithLabelValues(op, status).Inc()
	}
}

func (ix *Indexer) updateGauge() {
	if ix.metrics != nil {
		ix.metrics.IndexedMessages.Set(float64(ix.store.DocCount()))
	}
}
