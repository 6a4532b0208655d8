// Package benchmark contains Go benchmarks for the inverted index, the
// tokenizer, and the search pipeline, measuring throughput and allocation
// behaviour.
package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/huddlechat/message-search/internal/message"
	"github.com/huddlechat/message-search/internal/search/authz"
	"github.com/huddlechat/message-search/internal/search/engine"
	"github.com/huddlechat/message-search/internal/search/index"
	"github.com/huddlechat/message-search/internal/search/indexer"
	"github.com/huddlechat/message-search/pkg/config"
)

func benchMessage(i int, roomID, content string) message.Message {
	return message.Message{
		ID:        fmt.Sprintf("msg-%d", i),
		RoomID:    roomID,
		CreatorID: "bench-user",
		Content:   content,
		CreatedAt: time.Unix(1700000000+int64(i), 0),
	}
}

// BenchmarkIndexUpsert measures per-message insert throughput into the
// in-memory inverted index.
func BenchmarkIndexUpsert(b *testing.B) {
	idx := index.NewMemoryIndex()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg := benchMessage(i, "room-1", "deploy window opens friday evening after the release review wraps up")
		_ = idx.Upsert(indexer.BuildEntry(msg))
	}
}

// BenchmarkIndexPostings measures single-term lookup latency over 10 000
// indexed messages.
func BenchmarkIndexPostings(b *testing.B) {
	idx := index.NewMemoryIndex()
	for i := 0; i < 10000; i++ {
		msg := benchMessage(i, fmt.Sprintf("room-%d", i%20), "deploy window friday evening release review")
		_ = idx.Upsert(indexer.BuildEntry(msg))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		postings := idx.Postings("deploy")
		_ = postings
	}
}

// BenchmarkIndexPostingsParallel measures concurrent read throughput.
func BenchmarkIndexPostingsParallel(b *testing.B) {
	idx := index.NewMemoryIndex()
	for i := 0; i < 10000; i++ {
		msg := benchMessage(i, fmt.Sprintf("room-%d", i%20), "deploy window friday evening release review")
		_ = idx.Upsert(indexer.BuildEntry(msg))
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			postings := idx.Postings("deploy")
			_ = postings
		}
	})
}

// BenchmarkIndexSnapshot measures the cost of a full index snapshot.
func BenchmarkIndexSnapshot(b *testing.B) {
	idx := index.NewMemoryIndex()
	for i := 0; i < 5000; i++ {
		msg := benchMessage(i, "room-1", "snapshot benchmark with multiple distinct terms per message")
		_ = idx.Upsert(indexer.BuildEntry(msg))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		snapshot := idx.Snapshot()
		_ = snapshot
	}
}

type benchAccess struct{ rooms authz.RoomSet }

func (a benchAccess) AccessibleRooms(ctx context.Context, userID string) (authz.RoomSet, error) {
	return a.rooms, nil
}

// BenchmarkEngineSearch measures end-to-end query latency at various corpus
// sizes, authorization filtering included.
func BenchmarkEngineSearch(b *testing.B) {
	contents := []string{
		"deploy window opens friday evening",
		"lunch plans for the team on friday",
		"kubernetes upgrade postponed to monday",
		"release review notes and action items",
		"standup moved to noon this week",
	}
	for _, size := range []int{1000, 10000, 50000} {
		b.Run(fmt.Sprintf("corpus-%d", size), func(b *testing.B) {
			store := message.NewMemStore()
			idx := index.NewMemoryIndex()
			for i := 0; i < size; i++ {
				msg := benchMessage(i, fmt.Sprintf("room-%d", i%50), contents[i%len(contents)])
				store.Put(msg)
				_ = idx.Upsert(indexer.BuildEntry(msg))
			}
			rooms := make([]string, 25)
			for i := range rooms {
				rooms[i] = fmt.Sprintf("room-%d", i)
			}
			eng := engine.New(idx, benchAccess{rooms: authz.NewRoomSet(rooms...)}, store, config.SearchConfig{
				MinQueryLength: 2,
				MaxQueryLength: 100,
				DefaultLimit:   20,
				MaxLimit:       100,
				QueryTimeout:   time.Second,
			})

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				resp, err := eng.Search(context.Background(), engine.Request{
					UserID: "bench-user",
					Query:  "deploy friday",
				})
				if err != nil {
					b.Fatal(err)
				}
				_ = resp
			}
		})
	}
}
