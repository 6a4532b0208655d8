package authz

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/huddlechat/message-search/pkg/resilience"
)

// PostgresProvider reads room membership from the chat system's
// room_members table. Calls go through a circuit breaker so a struggling
// database fails searches fast instead of piling up connections.
type PostgresProvider struct {
	db      *sql.DB
	breaker *resilience.CircuitBreaker
}

// NewPostgresProvider creates a provider on an existing connection pool.
func NewPostgresProvider(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{
		db:      db,
		breaker: resilience.NewCircuitBreaker("room-access", resilience.CircuitBreakerConfig{}),
	}
}

// AccessibleRooms returns the ids of every room the user is a member of.
func (p *PostgresProvider) AccessibleRooms(ctx context.Context, userID string) (RoomSet, error) {
	var rooms RoomSet
	err := p.breaker.Execute(func() error {
		rows, err := p.db.QueryContext(ctx,
			`SELECT room_id FROM room_members WHERE user_id = $1`, userID)
		if err != nil {
			return fmt.Errorf("querying room membership for %s: %w", userID, err)
		}
		defer rows.Close()
		rooms = make(RoomSet)
		for rows.Next() {
			var roomID string
			if err := rows.Scan(&roomID); err != nil {
				return fmt.Errorf("scanning room id: %w", err)
			}
			rooms[roomID] = struct{}{}
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return rooms, nil
}
