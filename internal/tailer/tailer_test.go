package tailer

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sastik/logserver/internal/frame"
	"github.com/sastik/logserver/internal/position"
	"github.com/sastik/logserver/internal/record"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func frameFor(cid, body string) string {
	m := "**********" + cid + "**********"
	return m + body + m
}

func TestTailerDiscoversAndParsesNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	body := `{"correlationId":"11111111-1111-1111-1111-111111111111","timestamp":"2026-07-30T00:00:00Z","apiName":"a","serviceName":"s","logLevel":"INFO"}`
	require.NoError(t, os.WriteFile(path, []byte(frameFor("11111111-1111-1111-1111-111111111111", body)), 0o600))

	var mu sync.Mutex
	var got []record.Record
	sink := func(ctx context.Context, recs []record.Record) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, recs...)
		return nil
	}

	pos := position.New(nil, nil)
	tl := New(Config{Root: dir, PollInterval: 20 * time.Millisecond, MaxWorkers: 2}, frame.New(), pos, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tl.Run(ctx)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", got[0].CorrelationID)
}

func TestTailerDoesNotReprocessAlreadyConsumedBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	body1 := `{"correlationId":"22222222-2222-2222-2222-222222222222","timestamp":"2026-07-30T00:00:00Z","apiName":"a","serviceName":"s","logLevel":"INFO"}`
	require.NoError(t, os.WriteFile(path, []byte(frameFor("22222222-2222-2222-2222-222222222222", body1)), 0o600))

	var mu sync.Mutex
	var got []record.Record
	sink := func(ctx context.Context, recs []record.Record) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, recs...)
		return nil
	}

	pos := position.New(nil, nil)
	tl := New(Config{Root: dir, PollInterval: 20 * time.Millisecond, MaxWorkers: 2}, frame.New(), pos, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tl.Run(ctx)

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	// append a second frame; only the new one should arrive next.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	require.NoError(t, err)
	body2 := `{"correlationId":"33333333-3333-3333-3333-333333333333","timestamp":"2026-07-30T00:01:00Z","apiName":"a","serviceName":"s","logLevel":"INFO"}`
	_, err = f.WriteString(frameFor("33333333-3333-3333-3333-333333333333", body2))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", got[0].CorrelationID)
	assert.Equal(t, "33333333-3333-3333-3333-333333333333", got[1].CorrelationID)
}
