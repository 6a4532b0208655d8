// Package ranker scores candidate messages with a TF-IDF relevance formula.
// Scores are higher-is-better throughout. Ordering is fully deterministic:
// score descending, then created_at descending (newer first), then message
// id descending, so paginated results are stable across calls with
// unchanged data.
package ranker

import (
	"math"
	"sort"
	"time"

	"github.com/huddlechat/message-search/internal/search/index"
)

// Document-length normalisation constants.
const (
	k1 = 1.2
	b  = 0.75
)

// ScoredMessage is one ranked candidate.
type ScoredMessage struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	Score     float64   `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Params carries the corpus-wide statistics for IDF weighting. DocFreqs
// must be global document frequencies, not the counts after room filtering,
// or authorization would skew relevance.
type Params struct {
	TotalDocs    int
	AvgDocLength float64
	DocFreqs     map[string]int
}

// Rank scores every message appearing in postingsPerTerm. Each term
// contributes tf-normalised IDF weight; contributions sum across terms.
func Rank(postingsPerTerm map[string]index.PostingList, params Params) []ScoredMessage {
	type docState struct {
		score     float64
		roomID    string
		createdAt time.Time
	}
	scores := make(map[string]*docState)

	for term, postings := range postingsPerTerm {
		df := params.DocFreqs[term]
		if df == 0 {
			continue
		}
		idf := computeIDF(params.TotalDocs, df)
		for _, posting := range postings {
			tfNorm := computeTFNorm(
				float64(posting.Frequency),
				float64(posting.DocLength),
				params.AvgDocLength,
			)
			state, exists := scores[posting.MessageID]
			if !exists {
				state = &docState{
					roomID:    posting.RoomID,
					createdAt: posting.CreatedAt,
				}
				scores[posting.MessageID] = state
			}
			state.score += idf * tfNorm
		}
	}

	result := make([]ScoredMessage, 0, len(scores))
	for messageID, state := range scores {
		result = append(result, ScoredMessage{
			MessageID: messageID,
			RoomID:    state.roomID,
			Score:     math.Round(state.score*10000) / 10000,
			CreatedAt: state.createdAt,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Score != result[j].Score {
			return result[i].Score > result[j].Score
		}
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].MessageID > result[j].MessageID
	})
	return result
}

// computeIDF weights terms by rarity across the whole corpus. A term in
// every message scores zero and ordering falls back to recency.
func computeIDF(totalDocs, docFreq int) float64 {
	if totalDocs == 0 || docFreq == 0 {
		return 0
	}
	return math.Log(float64(totalDocs) / float64(docFreq))
}

// computeTFNorm rewards repeated terms with diminishing returns and keeps
// long messages from dominating on raw frequency alone.
func computeTFNorm(termFreq, docLength, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}
