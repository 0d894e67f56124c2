package ingestpipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sastik/logserver/internal/coldstore"
	"github.com/sastik/logserver/internal/hotstore"
	"github.com/sastik/logserver/internal/record"
)

func TestIngestWritesHotAndPublishes(t *testing.T) {
	hot := hotstore.New(time.Hour, 0)
	cold, err := coldstore.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { cold.Close() })

	var published []record.Record
	p, err := New(Config{BatchSize: 1}, hot, cold, func(r record.Record) {
		published = append(published, r)
	}, nil)
	require.NoError(t, err)

	rec := record.Record{
		CorrelationID: "11111111-1111-1111-1111-111111111111",
		Timestamp:     time.Now().UTC(),
		APIName:       "orders-api",
		ServiceName:   "orders",
		LogLevel:      record.LevelInfo,
	}
	require.NoError(t, p.Ingest(context.Background(), []record.Record{rec}))

	_, ok := hot.Get(rec.CorrelationID)
	assert.True(t, ok, "record must be written to the hot store")
	require.Len(t, published, 1)

	got, err := cold.Get(context.Background(), rec.CorrelationID)
	require.NoError(t, err, "batch size of 1 should have triggered an immediate flush")
	assert.Equal(t, rec.APIName, got.APIName)
}

func TestPendingHeldUntilFlush(t *testing.T) {
	hot := hotstore.New(time.Hour, 0)
	cold, err := coldstore.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { cold.Close() })

	p, err := New(Config{BatchSize: 100, FlushInterval: time.Hour}, hot, cold, nil, nil)
	require.NoError(t, err)

	rec := record.Record{
		CorrelationID: "22222222-2222-2222-2222-222222222222",
		Timestamp:     time.Now().UTC(),
		APIName:       "a", ServiceName: "b", LogLevel: record.LevelInfo,
	}
	require.NoError(t, p.Ingest(context.Background(), []record.Record{rec}))

	_, err = cold.Get(context.Background(), rec.CorrelationID)
	assert.ErrorIs(t, err, coldstore.ErrNotFound, "must not flush before batch size or interval trigger")

	p.flush(context.Background())
	_, err = cold.Get(context.Background(), rec.CorrelationID)
	assert.NoError(t, err)
}

func TestWriteBatchSpillsOnPersistentFailure(t *testing.T) {
	hot := hotstore.New(time.Hour, 0)
	p, err := New(Config{SpillDir: t.TempDir()}, hot, nil, nil, nil)
	require.NoError(t, err)

	badCold, err := coldstore.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	badCold.Close() // force every UpsertBatch call to fail
	p.cold = badCold

	rec := record.Record{CorrelationID: "33333333-3333-3333-3333-333333333333", Timestamp: time.Now().UTC()}
	p.writeBatch(context.Background(), []record.Record{rec})

	batches, err := p.spill.Drain()
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, rec.CorrelationID, batches[0][0].CorrelationID)
}
