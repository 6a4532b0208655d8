package consumer

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huddlechat/message-search/internal/message"
	"github.com/huddlechat/message-search/internal/search/index"
	"github.com/huddlechat/message-search/internal/search/indexer"
	"github.com/huddlechat/message-search/pkg/config"
)

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.calls++
	return nil
}

func newConsumer(t *testing.T) (*Consumer, *index.MemoryIndex, *countingInvalidator) {
	t.Helper()
	idx := index.NewMemoryIndex()
	ix := indexer.New(idx, config.IndexerConfig{})
	inv := &countingInvalidator{}
	return New(ix, inv), idx, inv
}

func encode(t *testing.T, event message.Event) []byte {
	t.Helper()
	data, err := json.Marshal(event)
	require.NoError(t, err)
	return data
}

func TestHandleCreatedIndexesMessage(t *testing.T) {
	c, idx, inv := newConsumer(t)

	payload := encode(t, message.Event{
		Type:      message.EventCreated,
		MessageID: "m1",
		Message: &message.Message{
			ID:        "m1",
			RoomID:    "r1",
			Content:   "deploy friday",
			CreatedAt: time.Now(),
		},
		CommittedAt: time.Now(),
	})

	require.NoError(t, c.Handle(context.Background(), []byte("r1"), payload))

	assert.True(t, idx.Contains("m1"))
	assert.Equal(t, 1, inv.calls)
}

func TestHandleDeletedRemovesMessage(t *testing.T) {
	c, idx, inv := newConsumer(t)
	ctx := context.Background()

	created := encode(t, message.Event{
		Type:      message.EventCreated,
		MessageID: "m1",
		Message: &message.Message{
			ID:        "m1",
			RoomID:    "r1",
			Content:   "deploy friday",
			CreatedAt: time.Now(),
		},
	})
	require.NoError(t, c.Handle(ctx, []byte("r1"), created))

	deleted := encode(t, message.Event{
		Type:      message.EventDeleted,
		MessageID: "m1",
	})
	require.NoError(t, c.Handle(ctx, []byte("r1"), deleted))

	assert.False(t, idx.Contains("m1"))
	assert.Equal(t, 2, inv.calls)
}

func TestHandleDeletedUnknownMessageIsStillApplied(t *testing.T) {
	c, idx, _ := newConsumer(t)

	payload := encode(t, message.Event{
		Type:      message.EventDeleted,
		MessageID: "never-indexed",
	})

	require.NoError(t, c.Handle(context.Background(), []byte("r1"), payload))
	assert.Zero(t, idx.DocCount())
}

func TestHandleMalformedPayloadDoesNotStallPartition(t *testing.T) {
	c, _, inv := newConsumer(t)

	err := c.Handle(context.Background(), []byte("r1"), []byte("{not json"))

	assert.NoError(t, err, "poison messages are skipped, not retried forever")
	assert.Zero(t, inv.calls)
}

func TestHandleUnknownEventTypeIgnored(t *testing.T) {
	c, idx, inv := newConsumer(t)

	payload := encode(t, message.Event{Type: "edited", MessageID: "m1"})

	require.NoError(t, c.Handle(context.Background(), []byte("r1"), payload))
	assert.Zero(t, idx.DocCount())
	assert.Zero(t, inv.calls)
}

func TestHandleCreatedWithoutPayloadIgnored(t *testing.T) {
	c, idx, inv := newConsumer(t)

	payload := encode(t, message.Event{Type: message.EventCreated, MessageID: "m1"})

	require.NoError(t, c.Handle(context.Background(), []byte("r1"), payload))
	assert.Zero(t, idx.DocCount())
	assert.Zero(t, inv.calls)
}

func TestHandleReplayedCreateIsIdempotent(t *testing.T) {
	c, idx, _ := newConsumer(t)
	ctx := context.Background()

	payload := encode(t, message.Event{
		Type:      message.EventCreated,
		MessageID: "m1",
		Message: &message.Message{
			ID:        "m1",
			RoomID:    "r1",
			Content:   "deploy friday",
			CreatedAt: time.Now(),
		},
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, c.Handle(ctx, []byte("r1"), payload))
	}

	assert.Equal(t, 1, idx.DocCount())
	assert.Len(t, idx.Postings("deploy"), 1)
}
