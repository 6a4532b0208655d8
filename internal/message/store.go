package message

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	apperrors "github.com/huddlechat/message-search/pkg/errors"
)

// Store is the read-side interface the search engine needs from the
// authoritative message store: single-message hydration for result payloads
// and full iteration for index rebuilds.
type Store interface {
	Get(ctx context.Context, id string) (*Message, error)
	GetBatch(ctx context.Context, ids []string) (map[string]*Message, error)
	Iterate(ctx context.Context, fn func(Message) error) error
}

// PostgresStore reads messages from the chat system's messages table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore on an existing connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const messageColumns = `id, room_id, creator_id, content, COALESCE(client_dedup_id, ''), created_at`

// Get returns a single message by id, or ErrMessageNotFound.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = $1`, id)
	var m Message
	err := row.Scan(&m.ID, &m.RoomID, &m.CreatorID, &m.Content, &m.ClientDedupID, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying message %s: %w", id, err)
	}
	return &m, nil
}

// GetBatch returns the messages for the given ids, keyed by id. Missing ids
// are simply absent from the result.
func (s *PostgresStore) GetBatch(ctx context.Context, ids []string) (map[string]*Message, error) {
	result := make(map[string]*Message, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("querying message batch: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.CreatorID, &m.Content, &m.ClientDedupID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}
		result[m.ID] = &m
	}
	return result, rows.Err()
}

// Iterate walks every message in creation order, invoking fn for each.
// Used by index rebuilds; fn errors abort the iteration.
func (s *PostgresStore) Iterate(ctx context.Context, fn func(Message) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages ORDER BY created_at, id`)
	if err != nil {
		return fmt.Errorf("querying messages for iteration: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.CreatorID, &m.Content, &m.ClientDedupID, &m.CreatedAt); err != nil {
			return fmt.Errorf("scanning message row: %w", err)
		}
		if err := fn(m); err != nil {
			return err
		}
	}
	return rows.Err()
}
