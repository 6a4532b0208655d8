// Package message defines the chat message projection the search engine
// works with, the stores that serve it, and the lifecycle events that keep
// the index in sync with the authoritative message store.
package message

import "time"

// Message is the read-only projection of a chat message. Messages are
// immutable from the engine's point of view: an edit arrives as a delete
// followed by a re-create of the same id.
type Message struct {
	ID            string    `json:"id"`
	RoomID        string    `json:"room_id"`
	CreatorID     string    `json:"creator_id"`
	Content       string    `json:"content"`
	ClientDedupID string    `json:"client_dedup_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Event types for the message lifecycle stream.
const (
	EventCreated = "created"
	EventDeleted = "deleted"
)

// Event is the payload published on the message-events topic by the message
// store after a write commits. Events are keyed by room id so that all
// events for a room land on one partition and replay in commit order.
type Event struct {
	Type        string    `json:"type"`
	MessageID   string    `json:"message_id"`
	Message     *Message  `json:"message,omitempty"`
	CommittedAt time.Time `json:"committed_at"`
}
