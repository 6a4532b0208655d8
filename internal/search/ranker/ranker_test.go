package ranker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlechat/message-search/internal/search/index"
)

func posting(messageID, roomID string, freq, docLen int, createdAt time.Time) index.Posting {
	return index.Posting{
		MessageID: messageID,
		RoomID:    roomID,
		Frequency: freq,
		DocLength: docLen,
		CreatedAt: createdAt,
	}
}

func TestRankRareTermOutweighsCommonTerm(t *testing.T) {
	now := time.Now()
	// "kubernetes" appears in 1 of 100 docs, "deploy" in 50 of 100. Both
	// candidates have the same length and frequency; the rare-term match
	// must score higher.
	postings := map[string]index.PostingList{
		"kubernetes": {posting("m-rare", "r1", 1, 10, now)},
		"deploy":     {posting("m-common", "r1", 1, 10, now)},
	}
	ranked := Rank(postings, Params{
		TotalDocs:    100,
		AvgDocLength: 10,
		DocFreqs:     map[string]int{"kubernetes": 1, "deploy": 50},
	})

	require.Len(t, ranked, 2)
	assert.Equal(t, "m-rare", ranked[0].MessageID)
	assert.Equal(t, "m-common", ranked[1].MessageID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestRankSumsAcrossTerms(t *testing.T) {
	now := time.Now()
	// m-both matches both query terms, m-one just one.
	postings := map[string]index.PostingList{
		"deploy": {
			posting("m-both", "r1", 1, 10, now),
			posting("m-one", "r1", 1, 10, now),
		},
		"friday": {posting("m-both", "r1", 1, 10, now)},
	}
	ranked := Rank(postings, Params{
		TotalDocs:    100,
		AvgDocLength: 10,
		DocFreqs:     map[string]int{"deploy": 10, "friday": 10},
	})

	require.Len(t, ranked, 2)
	assert.Equal(t, "m-both", ranked[0].MessageID)
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestRankTermFrequencyDiminishingReturns(t *testing.T) {
	now := time.Now()
	postings := map[string]index.PostingList{
		"deploy": {
			posting("m-1x", "r1", 1, 20, now),
			posting("m-5x", "r1", 5, 20, now),
			posting("m-20x", "r1", 20, 20, now),
		},
	}
	ranked := Rank(postings, Params{
		TotalDocs:    100,
		AvgDocLength: 20,
		DocFreqs:     map[string]int{"deploy": 3},
	})

	require.Len(t, ranked, 3)
	assert.Equal(t, "m-20x", ranked[0].MessageID)
	assert.Equal(t, "m-5x", ranked[1].MessageID)
	assert.Equal(t, "m-1x", ranked[2].MessageID)

	gainLow := ranked[1].Score - ranked[2].Score
	gainHigh := ranked[0].Score - ranked[1].Score
	assert.Less(t, gainHigh, gainLow, "each extra occurrence is worth less")
}

func TestRankShortMessageBeatsLongOnEqualFrequency(t *testing.T) {
	now := time.Now()
	postings := map[string]index.PostingList{
		"deploy": {
			posting("m-short", "r1", 1, 5, now),
			posting("m-long", "r1", 1, 100, now),
		},
	}
	ranked := Rank(postings, Params{
		TotalDocs:    50,
		AvgDocLength: 20,
		DocFreqs:     map[string]int{"deploy": 2},
	})

	require.Len(t, ranked, 2)
	assert.Equal(t, "m-short", ranked[0].MessageID)
}

func TestRankTieBreaksOnRecencyThenID(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	postings := map[string]index.PostingList{
		"deploy": {
			posting("m-old", "r1", 1, 10, base),
			posting("m-new", "r1", 1, 10, base.Add(time.Hour)),
			posting("m-a", "r1", 1, 10, base.Add(2*time.Hour)),
			posting("m-b", "r1", 1, 10, base.Add(2*time.Hour)),
		},
	}
	ranked := Rank(postings, Params{
		TotalDocs:    10,
		AvgDocLength: 10,
		DocFreqs:     map[string]int{"deploy": 4},
	})

	require.Len(t, ranked, 4)
	// Identical scores throughout: newest first, then higher id first.
	assert.Equal(t, "m-b", ranked[0].MessageID)
	assert.Equal(t, "m-a", ranked[1].MessageID)
	assert.Equal(t, "m-new", ranked[2].MessageID)
	assert.Equal(t, "m-old", ranked[3].MessageID)
}

func TestRankTermInEveryDocumentScoresZero(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	postings := map[string]index.PostingList{
		"the": {
			posting("m1", "r1", 3, 10, base),
			posting("m2", "r1", 1, 10, base.Add(time.Minute)),
		},
	}
	ranked := Rank(postings, Params{
		TotalDocs:    2,
		AvgDocLength: 10,
		DocFreqs:     map[string]int{"the": 2},
	})

	require.Len(t, ranked, 2)
	assert.Zero(t, ranked[0].Score)
	assert.Zero(t, ranked[1].Score)
	// Ordering falls back to recency.
	assert.Equal(t, "m2", ranked[0].MessageID)
}

func TestRankDeterministic(t *testing.T) {
	now := time.Now()
	postings := func() map[string]index.PostingList {
		return map[string]index.PostingList{
			"deploy": {
				posting("m1", "r1", 2, 10, now),
				posting("m2", "r1", 1, 15, now.Add(time.Minute)),
			},
			"friday": {
				posting("m2", "r1", 1, 15, now.Add(time.Minute)),
				posting("m3", "r2", 3, 5, now.Add(2*time.Minute)),
			},
		}
	}
	params := Params{
		TotalDocs:    30,
		AvgDocLength: 12,
		DocFreqs:     map[string]int{"deploy": 5, "friday": 8},
	}

	first := Rank(postings(), params)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Rank(postings(), params))
	}
}

func TestRankScoresRounded(t *testing.T) {
	ranked := Rank(map[string]index.PostingList{
		"deploy": {posting("m1", "r1", 1, 7, time.Now())},
	}, Params{
		TotalDocs:    13,
		AvgDocLength: 9.5,
		DocFreqs:     map[string]int{"deploy": 3},
	})

	require.Len(t, ranked, 1)
	rounded := float64(int64(ranked[0].Score*10000+0.5)) / 10000
	assert.InDelta(t, rounded, ranked[0].Score, 1e-12)
}

func TestRankEmptyInput(t *testing.T) {
	ranked := Rank(map[string]index.PostingList{}, Params{TotalDocs: 10, AvgDocLength: 5})
	assert.Empty(t, ranked)
}
