package hotstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sastik/logserver/internal/record"
)

func TestPutGetDelete(t *testing.T) {
	s := New(time.Hour, 0)
	rec := record.Record{CorrelationID: "cid-1", Timestamp: time.Now()}

	require.NoError(t, s.Put("cid-1", rec))
	got, ok := s.Get("cid-1")
	require.True(t, ok)
	assert.Equal(t, "cid-1", got.CorrelationID)

	s.Delete("cid-1")
	_, ok = s.Get("cid-1")
	assert.False(t, ok)
}

func TestUnavailableDegradesGetPutEnumerate(t *testing.T) {
	s := New(time.Hour, 0)
	require.NoError(t, s.Put("cid-1", record.Record{CorrelationID: "cid-1"}))

	s.SetAvailable(false)
	assert.False(t, s.Available())

	err := s.Put("cid-2", record.Record{CorrelationID: "cid-2"})
	assert.ErrorIs(t, err, ErrCacheUnavailable)

	_, ok := s.Get("cid-1")
	assert.False(t, ok, "Get must report absent while unavailable even though the entry is still resident")

	assert.Equal(t, 0, s.Count())
	out, truncated := s.Enumerate(nil, 0)
	assert.Nil(t, out)
	assert.False(t, truncated)

	s.SetAvailable(true)
	_, ok = s.Get("cid-1")
	assert.True(t, ok, "entry survives an availability toggle")
}

func TestEnumerateFiltersAndOrdersDescending(t *testing.T) {
	s := New(time.Hour, 0)
	now := time.Now()
	require.NoError(t, s.Put("a", record.Record{CorrelationID: "a", ServiceName: "svc-a", Timestamp: now.Add(-2 * time.Minute)}))
	require.NoError(t, s.Put("b", record.Record{CorrelationID: "b", ServiceName: "svc-b", Timestamp: now.Add(-1 * time.Minute)}))
	require.NoError(t, s.Put("c", record.Record{CorrelationID: "c", ServiceName: "svc-a", Timestamp: now}))

	out, truncated := s.Enumerate(func(r record.Record) bool { return r.ServiceName == "svc-a" }, 0)
	require.False(t, truncated)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].CorrelationID)
	assert.Equal(t, "a", out[1].CorrelationID)
}

func TestEnumerateRespectsLimit(t *testing.T) {
	s := New(time.Hour, 0)
	now := time.Now()
	for i := 0; i < 5; i++ {
		cid := string(rune('a' + i))
		require.NoError(t, s.Put(cid, record.Record{CorrelationID: cid, Timestamp: now.Add(time.Duration(i) * time.Second)}))
	}
	out, _ := s.Enumerate(nil, 2)
	assert.Len(t, out, 2)
}
