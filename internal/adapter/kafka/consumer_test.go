package kafka

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/ocean-map-engine/internal/domain"
	"github.com/couchcryptid/ocean-map-engine/internal/observability"
	"github.com/couchcryptid/ocean-map-engine/internal/rowset"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafkago.Message
	committed []int64
	closed    bool
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	f.mu.Lock()
	if len(f.messages) == 0 {
		f.mu.Unlock()
		<-ctx.Done()
		return kafkago.Message{}, ctx.Err()
	}
	msg := f.messages[0]
	f.messages = f.messages[1:]
	f.mu.Unlock()
	return msg, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func newTestConsumer(messages ...kafkago.Message) (*Consumer, *fakeReader, *rowset.Store) {
	reader := &fakeReader{messages: messages}
	store := rowset.New(0, observability.NewMetricsForTesting())
	c := &Consumer{
		reader:  reader,
		store:   store,
		logger:  slog.Default(),
		metrics: observability.NewMetricsForTesting(),
	}
	return c, reader, store
}

func runUntilDrained(t *testing.T, c *Consumer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	require.NoError(t, c.Run(ctx))
}

func TestConsumer_Run_AppendsBatch(t *testing.T) {
	msg := kafkago.Message{
		Offset: 7,
		Value: []byte(`{
			"area": "gulf", "model": "ncom", "source_file": "gulf_0310.nc",
			"rows": [
				{"lat": 28.5, "lon": -90.0, "temp": 21.5},
				{"lat": 28.6, "lon": -90.1, "temp": 22.0}
			]
		}`),
	}
	c, reader, store := newTestConsumer(msg)

	runUntilDrained(t, c)

	snap, ok := store.Get(rowset.Key{Area: "gulf", Model: "ncom"})
	require.True(t, ok)
	require.Len(t, snap.Rows, 2)
	assert.Equal(t, "gulf", snap.Rows[0][domain.KeyArea])
	assert.Equal(t, "ncom", snap.Rows[0][domain.KeyModel])
	assert.Equal(t, "gulf_0310.nc", snap.Rows[0][domain.KeySourceFile])
	assert.Equal(t, []int64{7}, reader.committed)
}

func TestConsumer_Run_SkipsAndCommitsMalformed(t *testing.T) {
	malformed := kafkago.Message{Offset: 1, Value: []byte(`not json`)}
	missingKey := kafkago.Message{Offset: 2, Value: []byte(`{"rows":[{"lat":28.5}]}`)}
	empty := kafkago.Message{Offset: 3, Value: []byte(`{"area":"gulf","model":"ncom","rows":[]}`)}
	good := kafkago.Message{Offset: 4, Value: []byte(`{"area":"gulf","model":"ncom","rows":[{"lat":28.5,"lon":-90.0}]}`)}

	c, reader, store := newTestConsumer(malformed, missingKey, empty, good)

	runUntilDrained(t, c)

	snap, ok := store.Get(rowset.Key{Area: "gulf", Model: "ncom"})
	require.True(t, ok)
	assert.Len(t, snap.Rows, 1)
	assert.Equal(t, []int64{1, 2, 3, 4}, reader.committed)
}

func TestConsumer_Close(t *testing.T) {
	c, reader, _ := newTestConsumer()
	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}

func TestDecodeBatch(t *testing.T) {
	t.Run("source file is optional", func(t *testing.T) {
		key, rows, err := decodeBatch([]byte(`{"area":"gulf","model":"ncom","rows":[{"lat":28.5}]}`))
		require.NoError(t, err)
		assert.Equal(t, rowset.Key{Area: "gulf", Model: "ncom"}, key)
		require.Len(t, rows, 1)
		_, present := rows[0][domain.KeySourceFile]
		assert.False(t, present)
	})

	t.Run("missing model is rejected", func(t *testing.T) {
		_, _, err := decodeBatch([]byte(`{"area":"gulf","rows":[{"lat":28.5}]}`))
		assert.Error(t, err)
	})
}
