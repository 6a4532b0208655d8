package index

import "time"

// Posting records one message's occurrences of one term. Room id, document
// length, and creation time are denormalised onto the posting so that
// authorization filtering, length normalisation, and recency tie-breaking
// never need a second lookup at query time.
type Posting struct {
	MessageID string
	RoomID    string
	Frequency int
	Positions []int
	DocLength int
	CreatedAt time.Time
}

// PostingList is a set of postings for a single term, sorted by message id.
type PostingList []Posting

// Entry is the per-message index record: everything the index holds for one
// message. An Entry exists iff the message exists and has non-empty content.
type Entry struct {
	MessageID string
	RoomID    string
	DocLength int
	CreatedAt time.Time
	Terms     map[string]*Posting
}

// TermEntry pairs a term with its full posting list; used for snapshots.
type TermEntry struct {
	Term     string
	Postings PostingList
}
