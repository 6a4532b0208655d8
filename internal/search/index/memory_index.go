// Package index implements the in-memory inverted index over chat messages:
// term postings with positions for phrase matching, per-message entries for
// synchronous removal, and the corpus statistics the ranker needs.
package index

import (
	"sort"
	"sync"
)

// MemoryIndex is the inverted index store. A sync.RWMutex guards the maps;
// readers copy out the postings they need so a consistent snapshot is held
// without blocking writers for the duration of a query.
type MemoryIndex struct {
	mu          sync.RWMutex
	terms       map[string]map[string]*Posting
	entries     map[string]*Entry
	totalTokens int64
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		terms:   make(map[string]map[string]*Posting),
		entries: make(map[string]*Entry),
	}
}

// Upsert inserts the entry, replacing any existing entry for the same
// message id first. Calling it twice with the same entry is a no-op update,
// so replayed create events never produce duplicate postings.
func (m *MemoryIndex) Upsert(e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(e.MessageID)

	for term, posting := range e.Terms {
		docs, exists := m.terms[term]
		if !exists {
			docs = make(map[string]*Posting)
			m.terms[term] = docs
		}
		docs[e.MessageID] = posting
	}
	m.entries[e.MessageID] = e
	m.totalTokens += int64(e.DocLength)
	return nil
}

// Remove deletes the entry and all its postings for the given message id.
// It reports whether an entry existed.
func (m *MemoryIndex) Remove(messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(messageID), nil
}

func (m *MemoryIndex) removeLocked(messageID string) bool {
	entry, exists := m.entries[messageID]
	if !exists {
		return false
	}
	for term := range entry.Terms {
		docs := m.terms[term]
		delete(docs, messageID)
		if len(docs) == 0 {
			delete(m.terms, term)
		}
	}
	delete(m.entries, messageID)
	m.totalTokens -= int64(entry.DocLength)
	return true
}

// Postings returns a copy of the posting list for term, sorted by message
// id. Returns nil when the term is unknown.
func (m *MemoryIndex) Postings(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.terms[term]
	if !exists {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for _, posting := range docs {
		result = append(result, *posting)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].MessageID < result[j].MessageID
	})
	return result
}

// DocFreq returns the number of messages containing term.
func (m *MemoryIndex) DocFreq(term string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terms[term])
}

// DocCount returns the number of indexed messages.
func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// TermCount returns the number of distinct terms in the index.
func (m *MemoryIndex) TermCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.terms)
}

// AvgDocLength returns the mean term count across indexed messages.
func (m *MemoryIndex) AvgDocLength() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.entries) == 0 {
		return 0
	}
	return float64(m.totalTokens) / float64(len(m.entries))
}

// Contains reports whether a message is present in the index.
func (m *MemoryIndex) Contains(messageID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.entries[messageID]
	return exists
}

// Snapshot returns every term with its sorted postings, sorted by term.
// Two indexes built from the same messages in any order produce identical
// snapshots.
func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.terms))
	for term, docs := range m.terms {
		postings := make(PostingList, 0, len(docs))
		for _, posting := range docs {
			postings = append(postings, *posting)
		}
		sort.Slice(postings, func(i, j int) bool {
			return postings[i].MessageID < postings[j].MessageID
		})
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// Reset clears the index.
func (m *MemoryIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terms = make(map[string]map[string]*Posting)
	m.entries = make(map[string]*Entry)
	m.totalTokens = 0
}
