// Package authz resolves the set of rooms a caller may search. Room
// membership itself is owned by the chat system; this package consumes it
// through the RoomAccessProvider interface and applies the filtering rules
// that keep search results inside the caller's rooms.
package authz

import (
	"context"

	apperrors "github.com/huddlechat/message-search/pkg/errors"
)

// RoomSet is a set of room ids.
type RoomSet map[string]struct{}

// NewRoomSet builds a RoomSet from ids.
func NewRoomSet(ids ...string) RoomSet {
	s := make(RoomSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Contains reports whether roomID is in the set.
func (s RoomSet) Contains(roomID string) bool {
	_, ok := s[roomID]
	return ok
}

// RoomAccessProvider is the external collaborator that knows which rooms a
// user belongs to.
type RoomAccessProvider interface {
	AccessibleRooms(ctx context.Context, userID string) (RoomSet, error)
}

// Resolve computes the effective room set for a search. With an explicit
// roomID the caller must be a member, and a miss is ErrAccessDenied rather
// than an empty result: permission failures stay distinguishable from "no
// matches". Without one the caller searches all their rooms; an empty
// membership set is a valid zero-result search, not an error.
func Resolve(access RoomSet, roomID string) (RoomSet, error) {
	if roomID == "" {
		return access, nil
	}
	if !access.Contains(roomID) {
		return nil, apperrors.ErrAccessDenied
	}
	return NewRoomSet(roomID), nil
}
